package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	log, err := New(Config{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)
	return log, path
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud", Format: "json", Output: "stderr"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNew_InvalidFormat(t *testing.T) {
	_, err := New(Config{Level: "info", Format: "xml", Output: "stderr"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log format")
}

func TestNew_CreatesLogDirectory(t *testing.T) {
	log, path := fileLogger(t)
	log.Info("hello")

	assert.Contains(t, readLog(t, path), `"msg":"hello"`)
}

func TestEvent_CarriesEventField(t *testing.T) {
	log, path := fileLogger(t)

	log.Event("alarm_armed", Field{Key: "scheduled_local", Value: "07:00"})

	out := readLog(t, path)
	assert.Contains(t, out, `"event":"alarm_armed"`)
	assert.Contains(t, out, `"scheduled_local":"07:00"`)
}

func TestError_AttachesError(t *testing.T) {
	log, path := fileLogger(t)

	log.Error("save failed", errors.New("disk full"))

	assert.Contains(t, readLog(t, path), `"error":"disk full"`)
}

func TestWith_AttachesFieldsToEveryRecord(t *testing.T) {
	log, path := fileLogger(t)

	log.With(Field{Key: "component", Value: "scheduler"}).Info("started")
	log.With(Field{Key: "component", Value: "scheduler"}).Event("alarm_armed")

	out := readLog(t, path)
	assert.Contains(t, out, `"component":"scheduler"`)
	assert.Contains(t, out, `"msg":"started"`)
	assert.Contains(t, out, `"event":"alarm_armed"`)
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := New(Config{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)

	log.Debug("ignored")
	log.Info("ignored too")
	log.Warn("kept")

	out := readLog(t, path)
	assert.NotContains(t, out, "ignored")
	assert.Contains(t, out, `"msg":"kept"`)
}
