// Package sleeptimer implements the sleep-off timer: a cancellable one-shot
// countdown that fades out and pauses playback on the configured device.
package sleeptimer

import (
	"context"
	"sync"
	"time"

	"github.com/wakespot/wakespot/internal/logger"
)

// Stopper is the playback-stopping slice of the player.
type Stopper interface {
	Stop(ctx context.Context, deviceName string, fadeOut time.Duration) error
}

// Snapshot is a read-only view of the timer for the status surface.
type Snapshot struct {
	Active  bool       `json:"active"`
	EndsAt  *time.Time `json:"ends_at,omitempty"`
	Device  string     `json:"device,omitempty"`
	FadeOut string     `json:"fade_out,omitempty"`
}

// Timer is the sleep-off countdown. Only one countdown runs at a time;
// starting a new one supersedes the previous.
type Timer struct {
	stopper Stopper
	logger  *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	endsAt time.Time
	device string
	fade   time.Duration
	active bool
	// gen identifies the current countdown; a superseded run goroutine
	// carries a stale value and must not touch current state.
	gen uint64
}

// New creates an inactive sleep timer.
func New(stopper Stopper, log *logger.Logger) *Timer {
	return &Timer{
		stopper: stopper,
		logger:  log,
	}
}

// Start arms the countdown: after the duration elapses, playback on the
// device is faded out and paused. A running countdown is replaced.
func (t *Timer) Start(device string, duration, fadeOut time.Duration) {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.endsAt = time.Now().Add(duration)
	t.device = device
	t.fade = fadeOut
	t.active = true
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	t.logger.Info("sleep timer started",
		logger.Field{Key: "device", Value: device},
		logger.Field{Key: "duration", Value: duration.String()},
		logger.Field{Key: "fade_out", Value: fadeOut.String()})

	go t.run(ctx, gen, device, duration, fadeOut)
}

func (t *Timer) run(ctx context.Context, gen uint64, device string, duration, fadeOut time.Duration) {
	fireAfter := duration - fadeOut
	if fireAfter < 0 {
		fireAfter = 0
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(fireAfter):
	}

	stopCtx, cancel := context.WithTimeout(ctx, fadeOut+time.Minute)
	defer cancel()
	if err := t.stopper.Stop(stopCtx, device, fadeOut); err != nil {
		t.logger.Error("sleep timer failed to stop playback", err,
			logger.Field{Key: "device", Value: device})
	} else {
		t.logger.Info("sleep timer stopped playback",
			logger.Field{Key: "device", Value: device})
	}

	t.mu.Lock()
	if t.gen == gen {
		t.active = false
		t.cancel = nil
	}
	t.mu.Unlock()
}

// Cancel aborts a running countdown. Returns false when none was active.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active || t.cancel == nil {
		return false
	}
	t.cancel()
	t.cancel = nil
	t.active = false
	t.logger.Info("sleep timer cancelled",
		logger.Field{Key: "device", Value: t.device})
	return true
}

// Snapshot returns the current timer state.
func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{Active: t.active}
	if t.active {
		ends := t.endsAt
		snap.EndsAt = &ends
		snap.Device = t.device
		snap.FadeOut = t.fade.String()
	}
	return snap
}
