package readiness

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakespot/wakespot/internal/logger"
)

type fakeProber struct {
	mu         sync.Mutex
	tokenErr   error
	deviceErr  error
	tokenCalls int
	deviceName string
}

func (f *fakeProber) ProbeToken(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	return f.tokenErr
}

func (f *fakeProber) ProbeDevice(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deviceName = name
	return f.deviceErr
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func newTestChecker(t *testing.T, prober *fakeProber, dialErr error) *Checker {
	t.Helper()
	c := NewChecker(Config{
		Attempts:     2,
		Backoff:      time.Millisecond,
		ProbeTimeout: time.Second,
	}, prober, func() string { return "Bedroom" }, testLogger(t), nil)
	c.dial = func(ctx context.Context, addr string) error {
		return dialErr
	}
	return c
}

func TestCheck_AllReady(t *testing.T) {
	prober := &fakeProber{}
	c := newTestChecker(t, prober, nil)

	status := c.Check(context.Background())

	assert.True(t, status.Ready())
	assert.True(t, status.NetworkOK)
	assert.True(t, status.TokenOK)
	assert.True(t, status.DeviceOK)
	assert.Equal(t, "Bedroom", prober.deviceName)
	assert.Empty(t, status.Detail)
}

func TestCheck_NetworkFailureShortCircuits(t *testing.T) {
	prober := &fakeProber{}
	c := newTestChecker(t, prober, errors.New("connection refused"))

	status := c.Check(context.Background())

	assert.False(t, status.Ready())
	assert.False(t, status.NetworkOK)
	assert.False(t, status.TokenOK)
	assert.False(t, status.DeviceOK)
	// Token and device probes never run without connectivity.
	assert.Zero(t, prober.tokenCalls)
	assert.Equal(t, "skipped: network unreachable", status.Detail["token"])
	assert.Equal(t, "skipped: network unreachable", status.Detail["device"])
	assert.Contains(t, status.Detail["network"], "connection refused")
}

func TestCheck_TokenFailure(t *testing.T) {
	prober := &fakeProber{tokenErr: errors.New("401 unauthorized")}
	c := newTestChecker(t, prober, nil)

	status := c.Check(context.Background())

	assert.False(t, status.Ready())
	assert.True(t, status.NetworkOK)
	assert.False(t, status.TokenOK)
	// The device probe still runs so diagnostics cover every dimension.
	assert.True(t, status.DeviceOK)
	assert.Contains(t, status.Detail["token"], "401 unauthorized")
}

func TestCheck_DeviceFailure(t *testing.T) {
	prober := &fakeProber{deviceErr: errors.New("device not found")}
	c := newTestChecker(t, prober, nil)

	status := c.Check(context.Background())

	assert.False(t, status.Ready())
	assert.True(t, status.TokenOK)
	assert.False(t, status.DeviceOK)
	assert.Contains(t, status.Detail["device"], "device not found")
}

func TestCheck_RetriesProbes(t *testing.T) {
	prober := &fakeProber{tokenErr: errors.New("flaky")}
	c := newTestChecker(t, prober, nil)

	c.Check(context.Background())

	// Attempts=2: the failing token probe is tried twice.
	assert.Equal(t, 2, prober.tokenCalls)
}

func TestLast(t *testing.T) {
	prober := &fakeProber{}
	c := newTestChecker(t, prober, nil)

	assert.Nil(t, c.Last())

	c.Check(context.Background())

	last := c.Last()
	require.NotNil(t, last)
	assert.True(t, last.Ready())
}

func TestReady(t *testing.T) {
	assert.True(t, Status{NetworkOK: true, TokenOK: true, DeviceOK: true}.Ready())
	assert.False(t, Status{NetworkOK: true, TokenOK: true}.Ready())
	assert.False(t, Status{}.Ready())
}
