// Package playback adapts the Spotify client to the scheduler's playback
// collaborator contract: resolve the target device, apply shuffle and
// volume, start the configured playlist, and run the fade ramps.
package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/wakespot/wakespot/internal/alarm"
	"github.com/wakespot/wakespot/internal/logger"
	"github.com/wakespot/wakespot/internal/spotify"
)

const fadeSteps = 10

// Controller is the slice of the Spotify client the player drives.
type Controller interface {
	FindDevice(ctx context.Context, name string) (spotify.Device, error)
	SetShuffle(ctx context.Context, deviceID string, on bool) error
	SetVolume(ctx context.Context, deviceID string, percent int) error
	Play(ctx context.Context, deviceID, contextURI string) error
	Pause(ctx context.Context, deviceID string) error
}

// Player starts and stops alarm playback. It satisfies alarm.Playback.
type Player struct {
	spotify Controller
	logger  *logger.Logger
}

// NewPlayer creates a player on top of the given Spotify controller.
func NewPlayer(c Controller, log *logger.Logger) *Player {
	return &Player{
		spotify: c,
		logger:  log,
	}
}

// Start begins alarm playback per the alarm configuration. With a fade-in
// configured, playback starts at volume zero and a background ramp raises
// it to the target; the call itself returns as soon as playback is rolling,
// keeping its time bounded for the scheduler.
func (p *Player) Start(ctx context.Context, cfg alarm.Config) error {
	device, err := p.spotify.FindDevice(ctx, cfg.DeviceName)
	if err != nil {
		return fmt.Errorf("resolve device: %w", err)
	}

	startVolume := cfg.Volume
	if cfg.FadeIn > 0 {
		startVolume = 0
	}
	if err := p.spotify.SetVolume(ctx, device.ID, startVolume); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}

	// Shuffle is best effort: some devices reject the call while no
	// playback context exists yet.
	if err := p.spotify.SetShuffle(ctx, device.ID, cfg.Shuffle); err != nil {
		p.logger.Warn("failed to set shuffle",
			logger.Field{Key: "device", Value: cfg.DeviceName},
			logger.Field{Key: "err", Value: err.Error()})
	}

	if err := p.spotify.Play(ctx, device.ID, cfg.PlaylistURI); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}

	if cfg.FadeIn > 0 {
		go p.fade(device.ID, 0, cfg.Volume, cfg.FadeIn)
	}

	p.logger.Info("playback started",
		logger.Field{Key: "device", Value: cfg.DeviceName},
		logger.Field{Key: "playlist", Value: cfg.PlaylistURI},
		logger.Field{Key: "volume", Value: cfg.Volume})
	return nil
}

// Stop pauses playback on the named device, ramping the volume down first
// when a fade-out is requested. The previous volume is restored after the
// pause so the next manual session starts at a sane level.
func (p *Player) Stop(ctx context.Context, deviceName string, fadeOut time.Duration) error {
	device, err := p.spotify.FindDevice(ctx, deviceName)
	if err != nil {
		return fmt.Errorf("resolve device: %w", err)
	}

	if fadeOut > 0 {
		p.rampWithContext(ctx, device.ID, device.VolumePercent, 0, fadeOut)
	}

	if err := p.spotify.Pause(ctx, device.ID); err != nil {
		return fmt.Errorf("pause playback: %w", err)
	}

	if fadeOut > 0 && device.VolumePercent > 0 {
		if err := p.spotify.SetVolume(ctx, device.ID, device.VolumePercent); err != nil {
			p.logger.Warn("failed to restore volume after stop",
				logger.Field{Key: "device", Value: deviceName},
				logger.Field{Key: "err", Value: err.Error()})
		}
	}

	p.logger.Info("playback stopped",
		logger.Field{Key: "device", Value: deviceName})
	return nil
}

// fade runs a detached volume ramp. The context is derived fresh since the
// triggering call has already returned.
func (p *Player) fade(deviceID string, from, to int, over time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), over+30*time.Second)
	defer cancel()
	p.rampWithContext(ctx, deviceID, from, to, over)
}

// rampWithContext walks the volume from one level to another in fixed
// steps. Individual step failures are logged and skipped; a dropped step
// just makes the ramp slightly coarser.
func (p *Player) rampWithContext(ctx context.Context, deviceID string, from, to int, over time.Duration) {
	if from == to || over <= 0 {
		return
	}

	stepDelay := over / fadeSteps
	for step := 1; step <= fadeSteps; step++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(stepDelay):
		}

		volume := from + (to-from)*step/fadeSteps
		if err := p.spotify.SetVolume(ctx, deviceID, volume); err != nil {
			p.logger.Debug("fade step failed",
				logger.Field{Key: "volume", Value: volume},
				logger.Field{Key: "err", Value: err.Error()})
		}
	}
}
