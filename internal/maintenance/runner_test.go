package maintenance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakespot/wakespot/internal/logger"
)

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRefresher) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

type fakeTrimmer struct {
	mu     sync.Mutex
	cutoff time.Time
	calls  int
}

func (f *fakeTrimmer) Trim(cutoff time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoff = cutoff
	f.calls++
	return nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func TestNewRunner_ValidSpecs(t *testing.T) {
	runner, err := NewRunner(Config{
		TokenRefreshSpec: "0 * * * *",
		HistoryTrimSpec:  "30 3 * * *",
		HistoryMaxAge:    90 * 24 * time.Hour,
	}, &fakeRefresher{}, &fakeTrimmer{}, testLogger(t))

	require.NoError(t, err)
	require.NotNil(t, runner)
}

func TestNewRunner_InvalidTokenSpec(t *testing.T) {
	_, err := NewRunner(Config{
		TokenRefreshSpec: "not a cron spec",
		HistoryTrimSpec:  "30 3 * * *",
	}, &fakeRefresher{}, &fakeTrimmer{}, testLogger(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "token refresh spec")
}

func TestNewRunner_InvalidTrimSpec(t *testing.T) {
	_, err := NewRunner(Config{
		TokenRefreshSpec: "0 * * * *",
		HistoryTrimSpec:  "61 99 * * *",
	}, &fakeRefresher{}, &fakeTrimmer{}, testLogger(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "history trim spec")
}

func TestRunner_StartIdempotent(t *testing.T) {
	runner, err := NewRunner(Config{
		TokenRefreshSpec: "0 * * * *",
		HistoryTrimSpec:  "30 3 * * *",
	}, &fakeRefresher{}, &fakeTrimmer{}, testLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner.Start(ctx)
	// A second Start while running is a no-op, not a double schedule.
	runner.Start(ctx)

	cancel()
}
