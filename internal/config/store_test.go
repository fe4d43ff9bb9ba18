package config

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakespot/wakespot/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := writeConfig(t, validConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	store, err := NewStore(path, cfg, testLogger(t))
	require.NoError(t, err)
	return store, path
}

func TestStore_AlarmConfig(t *testing.T) {
	store, _ := newTestStore(t)

	cfg, fingerprint, err := store.AlarmConfig()
	require.NoError(t, err)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 7, cfg.Time.Hour)
	assert.Equal(t, 0, cfg.Time.Minute)
	assert.Equal(t, "Europe/Berlin", cfg.Location.String())
	assert.Equal(t, "Bedroom", cfg.DeviceName)
	assert.True(t, cfg.Weekdays.Contains(time.Monday))
	assert.False(t, cfg.Weekdays.Contains(time.Tuesday))
	assert.NotEmpty(t, fingerprint)
}

func TestFingerprint_StableAndSensitive(t *testing.T) {
	a := AlarmConfig{Enabled: true, Time: "07:00", Volume: 45}
	b := AlarmConfig{Enabled: true, Time: "07:00", Volume: 45}
	c := AlarmConfig{Enabled: true, Time: "07:05", Volume: 45}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
}

func TestStore_Update(t *testing.T) {
	store, _ := newTestStore(t)
	_, before, err := store.AlarmConfig()
	require.NoError(t, err)

	require.NoError(t, store.Update(func(c *Config) error {
		c.Alarm.Time = "08:30"
		return nil
	}))

	cfg, after, err := store.AlarmConfig()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Time.Hour)
	assert.Equal(t, 30, cfg.Time.Minute)
	assert.NotEqual(t, before, after)

	// The update was written through to the file.
	reloaded, err := Load(store.path)
	require.NoError(t, err)
	assert.Equal(t, "08:30", reloaded.Alarm.Time)
}

func TestStore_Update_RejectsInvalid(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Update(func(c *Config) error {
		c.Alarm.Time = "not-a-time"
		return nil
	})
	require.Error(t, err)

	// The previous configuration stays active.
	cfg, _, err := store.AlarmConfig()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Time.Hour)
}

func TestStore_Update_PropagatesCallbackError(t *testing.T) {
	store, _ := newTestStore(t)
	sentinel := errors.New("nope")

	err := store.Update(func(c *Config) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}

func TestStore_OnChange(t *testing.T) {
	store, _ := newTestStore(t)

	var mu sync.Mutex
	notified := make(chan struct{}, 1)
	store.OnChange(func() {
		mu.Lock()
		defer mu.Unlock()
		select {
		case notified <- struct{}{}:
		default:
		}
	})

	require.NoError(t, store.Update(func(c *Config) error {
		c.Alarm.Volume = 60
		return nil
	}))

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("change listener was not notified")
	}
}

func TestStore_DeviceName(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Equal(t, "Bedroom", store.DeviceName())

	require.NoError(t, store.Update(func(c *Config) error {
		c.Alarm.DeviceName = "Kitchen"
		return nil
	}))
	assert.Equal(t, "Kitchen", store.DeviceName())
}
