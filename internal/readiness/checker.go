// Package readiness probes execution preconditions (network reachability,
// auth token validity, target device availability) just before an alarm
// fires. Probes are read-only: the gate never refreshes tokens or mutates
// player state. Every probe result is emitted as a structured diagnostic
// event, which is the primary surface for debugging missed alarms.
package readiness

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/wakespot/wakespot/internal/logger"
	"github.com/wakespot/wakespot/internal/metrics"
	"github.com/wakespot/wakespot/internal/retry"
)

// DefaultNetworkAddr is probed for plain TCP reachability when no override
// is configured. The Spotify API endpoint is the natural target since that
// is where playback calls will go.
const DefaultNetworkAddr = "api.spotify.com:443"

// Status is the aggregated result of one readiness check.
type Status struct {
	NetworkOK bool              `json:"network_ok"`
	TokenOK   bool              `json:"token_ok"`
	DeviceOK  bool              `json:"device_ok"`
	Elapsed   time.Duration     `json:"elapsed"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// Ready reports whether every dimension passed.
func (s Status) Ready() bool {
	return s.NetworkOK && s.TokenOK && s.DeviceOK
}

// Prober exposes the read-only Spotify probes the gate needs. Implemented
// by the Spotify client.
type Prober interface {
	// ProbeToken verifies the current access token is usable.
	ProbeToken(ctx context.Context) error
	// ProbeDevice verifies the named playback device is currently visible.
	ProbeDevice(ctx context.Context, name string) error
}

// Config bounds the gate. The total budget (Attempts probes of ProbeTimeout
// each, plus backoff waits, per dimension) must stay well under the
// scheduler's catch-up grace window; config validation enforces this.
type Config struct {
	Attempts     int
	Backoff      time.Duration
	ProbeTimeout time.Duration
	NetworkAddr  string
}

// Checker runs the bounded readiness check sequence.
type Checker struct {
	cfg     Config
	prober  Prober
	device  func() string // current target device name
	dial    func(ctx context.Context, addr string) error
	log     *logger.Logger
	metrics *metrics.Metrics

	mu   sync.RWMutex
	last *Status
}

// NewChecker creates a readiness checker. device supplies the target device
// name at check time so config edits are picked up without rebuilding the
// gate.
func NewChecker(cfg Config, prober Prober, device func() string, log *logger.Logger, m *metrics.Metrics) *Checker {
	if cfg.NetworkAddr == "" {
		cfg.NetworkAddr = DefaultNetworkAddr
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	return &Checker{
		cfg:     cfg,
		prober:  prober,
		device:  device,
		dial:    dialTCP,
		log:     log,
		metrics: m,
	}
}

func dialTCP(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Check runs the probe sequence and returns the aggregated status. A failed
// network probe short-circuits the remaining dimensions since they cannot
// succeed without connectivity; they are reported as failed with a skip
// marker in the detail map.
func (c *Checker) Check(ctx context.Context) Status {
	started := time.Now()
	status := Status{Detail: make(map[string]string)}

	status.NetworkOK = c.probe(ctx, "network", func(probeCtx context.Context) error {
		return c.dial(probeCtx, c.cfg.NetworkAddr)
	}, status.Detail)

	if status.NetworkOK {
		status.TokenOK = c.probe(ctx, "token", c.prober.ProbeToken, status.Detail)
		status.DeviceOK = c.probe(ctx, "device", func(probeCtx context.Context) error {
			return c.prober.ProbeDevice(probeCtx, c.device())
		}, status.Detail)
	} else {
		status.Detail["token"] = "skipped: network unreachable"
		status.Detail["device"] = "skipped: network unreachable"
	}

	status.Elapsed = time.Since(started)
	c.metrics.RecordReadinessDuration(status.Elapsed)

	c.log.Event("readiness_check",
		logger.Field{Key: "network_ok", Value: status.NetworkOK},
		logger.Field{Key: "token_ok", Value: status.TokenOK},
		logger.Field{Key: "device_ok", Value: status.DeviceOK},
		logger.Field{Key: "elapsed", Value: status.Elapsed.String()},
	)

	c.mu.Lock()
	snapshot := status
	c.last = &snapshot
	c.mu.Unlock()

	return status
}

// Last returns the most recent check result, or nil when none has run yet.
func (c *Checker) Last() *Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return nil
	}
	snapshot := *c.last
	return &snapshot
}

// probe runs one dimension with its own timeout and the shared retry budget.
func (c *Checker) probe(ctx context.Context, name string, fn func(context.Context) error, detail map[string]string) bool {
	err := retry.Do(ctx, retry.Config{
		MaxAttempts:    c.cfg.Attempts,
		InitialBackoff: c.cfg.Backoff,
		MaxBackoff:     c.cfg.Backoff,
	}, func() error {
		probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
		defer cancel()
		return fn(probeCtx)
	})

	ok := err == nil
	c.metrics.RecordProbe(name, ok)
	if err != nil {
		detail[name] = err.Error()
		c.log.Event("readiness_probe_failed",
			logger.Field{Key: "probe", Value: name},
			logger.Field{Key: "err", Value: err.Error()},
		)
	}
	return ok
}
