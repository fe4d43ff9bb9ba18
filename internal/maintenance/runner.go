// Package maintenance runs the periodic background jobs: keeping the
// Spotify token grant warm and trimming the execution history log. Jobs are
// scheduled with standard five-field cron expressions.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wakespot/wakespot/internal/logger"
)

// TokenRefresher forces a Spotify access token refresh.
type TokenRefresher interface {
	Refresh(ctx context.Context) error
}

// HistoryTrimmer drops execution records scheduled before the cutoff.
type HistoryTrimmer interface {
	Trim(cutoff time.Time) error
}

// Config holds the job schedules.
type Config struct {
	TokenRefreshSpec string
	HistoryTrimSpec  string
	HistoryMaxAge    time.Duration
}

// Runner owns the cron scheduler for the maintenance jobs.
type Runner struct {
	cron    *cron.Cron
	logger  *logger.Logger
	mu      sync.Mutex
	started bool
}

// NewRunner creates the runner and registers both jobs. Invalid cron
// expressions are reported at construction, not at first run.
func NewRunner(cfg Config, refresher TokenRefresher, trimmer HistoryTrimmer, log *logger.Logger) (*Runner, error) {
	r := &Runner{
		cron:   cron.New(),
		logger: log,
	}

	if _, err := r.cron.AddFunc(cfg.TokenRefreshSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := refresher.Refresh(ctx); err != nil {
			log.Warn("token keep-alive failed",
				logger.Field{Key: "err", Value: err.Error()})
			return
		}
		log.Debug("token keep-alive refreshed")
	}); err != nil {
		return nil, fmt.Errorf("invalid token refresh spec %q: %w", cfg.TokenRefreshSpec, err)
	}

	if _, err := r.cron.AddFunc(cfg.HistoryTrimSpec, func() {
		cutoff := time.Now().Add(-cfg.HistoryMaxAge)
		if err := trimmer.Trim(cutoff); err != nil {
			log.Warn("history trim failed",
				logger.Field{Key: "err", Value: err.Error()})
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid history trim spec %q: %w", cfg.HistoryTrimSpec, err)
	}

	return r, nil
}

// Start begins running the jobs until the context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return
	}
	r.started = true
	r.cron.Start()
	r.logger.Info("maintenance jobs started")

	go func() {
		<-ctx.Done()
		r.cron.Stop()
		r.mu.Lock()
		r.started = false
		r.mu.Unlock()
		r.logger.Info("maintenance jobs stopped")
	}()
}
