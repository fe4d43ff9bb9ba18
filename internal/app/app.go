// Package app wires the wakespot components together and manages their
// lifecycle: the shared config store, the Spotify client, the alarm
// scheduler, the readiness gate, the sleep timer, the maintenance jobs, and
// the HTTP status surface.
package app

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/wakespot/wakespot/internal/alarm"
	"github.com/wakespot/wakespot/internal/api"
	"github.com/wakespot/wakespot/internal/config"
	"github.com/wakespot/wakespot/internal/logger"
	"github.com/wakespot/wakespot/internal/maintenance"
	"github.com/wakespot/wakespot/internal/metrics"
	"github.com/wakespot/wakespot/internal/playback"
	"github.com/wakespot/wakespot/internal/readiness"
	"github.com/wakespot/wakespot/internal/sleeptimer"
	"github.com/wakespot/wakespot/internal/spotify"
)

// App owns all components. The scheduler runs as the single background
// worker; request handlers reach it only through the config store and the
// read-only snapshot, never through shared mutable state.
type App struct {
	store       *config.Store
	logger      *logger.Logger
	metrics     *metrics.Metrics
	spotify     *spotify.Client
	player      *playback.Player
	gate        *readiness.Checker
	scheduler   *alarm.Scheduler
	timer       *sleeptimer.Timer
	server      *api.Server
	maintenance *maintenance.Runner
}

// New builds the application from a loaded configuration.
func New(configPath string, cfg *config.Config, log *logger.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.Workspace.Path, 0755); err != nil {
		return nil, err
	}

	store, err := config.NewStore(configPath, cfg, log)
	if err != nil {
		return nil, err
	}

	m := metrics.Init("wakespot", nil)

	spotifyClient := spotify.NewClient(spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
		Market:       cfg.Spotify.Market,
	}, log)

	player := playback.NewPlayer(spotifyClient, log)

	gate := readiness.NewChecker(readiness.Config{
		Attempts:     cfg.Readiness.Attempts,
		Backoff:      time.Duration(cfg.Readiness.BackoffMillis) * time.Millisecond,
		ProbeTimeout: time.Duration(cfg.Readiness.ProbeTimeoutSec) * time.Second,
	}, spotifyClient, store.DeviceName, log, m)

	stateStore := alarm.NewStore(cfg.Workspace.StateFile(), log)
	history := alarm.NewHistory(cfg.Workspace.HistoryFile(), log)

	schedulerLog := log.With(logger.Field{Key: "component", Value: "scheduler"})
	scheduler := alarm.NewScheduler(store, gate, player, stateStore, history, schedulerLog, m, alarm.Options{
		GraceWindow: time.Duration(cfg.Alarm.GraceWindowSec) * time.Second,
		WakeCheck:   time.Duration(cfg.Alarm.WakeCheckSec) * time.Second,
	})

	timer := sleeptimer.New(player, log.With(logger.Field{Key: "component", Value: "sleeptimer"}))
	server := api.NewServer(cfg.HTTP.Listen, scheduler, timer, store,
		log.With(logger.Field{Key: "component", Value: "api"}))

	var maintenanceRunner *maintenance.Runner
	if cfg.Maintenance.Enabled {
		maintenanceRunner, err = maintenance.NewRunner(maintenance.Config{
			TokenRefreshSpec: cfg.Maintenance.TokenRefreshSpec,
			HistoryTrimSpec:  cfg.Maintenance.HistoryTrimSpec,
			HistoryMaxAge:    time.Duration(cfg.Maintenance.HistoryMaxDays) * 24 * time.Hour,
		}, spotifyClient, history, log.With(logger.Field{Key: "component", Value: "maintenance"}))
		if err != nil {
			return nil, err
		}
	}

	return &App{
		store:       store,
		logger:      log,
		metrics:     m,
		spotify:     spotifyClient,
		player:      player,
		gate:        gate,
		scheduler:   scheduler,
		timer:       timer,
		server:      server,
		maintenance: maintenanceRunner,
	}, nil
}

// Run starts every component and blocks until the context is cancelled.
// The scheduler persists its last known state before Run returns.
func (a *App) Run(ctx context.Context) error {
	if err := a.store.Watch(ctx); err != nil {
		a.logger.Warn("config file watching disabled",
			logger.Field{Key: "err", Value: err.Error()})
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.scheduler.Run(ctx); err != nil {
			a.logger.Error("alarm scheduler exited", err)
		}
	}()

	if a.maintenance != nil {
		a.maintenance.Start(ctx)
	}

	err := a.server.Start(ctx)

	// The server returns once the context is cancelled; wait for the
	// scheduler to persist and exit before reporting shutdown complete.
	wg.Wait()
	a.logger.Info("shutdown complete")
	return err
}

// Scheduler exposes the scheduler handle, used by tests and commands.
func (a *App) Scheduler() *alarm.Scheduler {
	return a.scheduler
}
