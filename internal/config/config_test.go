package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validConfig = `
[workspace]
path = "/tmp/wakespot-test"

[alarm]
enabled = true
time = "07:00"
weekdays = ["mon", "wed", "fri"]
timezone = "Europe/Berlin"
volume = 45
device_name = "Bedroom"
playlist_uri = "spotify:playlist:morning"

[spotify]
client_id = "test-client-id"
client_secret = "test-client-secret"
refresh_token = "test-refresh-token"
`

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.True(t, cfg.Alarm.Enabled)
	assert.Equal(t, "07:00", cfg.Alarm.Time)
	assert.Equal(t, []string{"mon", "wed", "fri"}, cfg.Alarm.Weekdays)
	assert.Equal(t, "Europe/Berlin", cfg.Alarm.Timezone)
	assert.Equal(t, 45, cfg.Alarm.Volume)
	assert.Empty(t, cfg.Validate())
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, 600, cfg.Alarm.GraceWindowSec)
	assert.Equal(t, 2, cfg.Alarm.WakeCheckSec)
	assert.Equal(t, 3, cfg.Readiness.Attempts)
	assert.Equal(t, 2000, cfg.Readiness.BackoffMillis)
	assert.Equal(t, 5, cfg.Readiness.ProbeTimeoutSec)
	assert.Equal(t, 30, cfg.SleepTimer.DefaultMinutes)
	assert.Equal(t, 60, cfg.SleepTimer.FadeOutSec)
	assert.Equal(t, "127.0.0.1:8274", cfg.HTTP.Listen)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 90, cfg.Maintenance.HistoryMaxDays)
}

func TestLoad_ExplicitZeroVolumePreserved(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[workspace]
path = "/tmp/wakespot-test"

[alarm]
enabled = true
time = "07:00"
volume = 0

[spotify]
client_id = "id"
client_secret = "test-client-secret"
refresh_token = "token"
`))
	require.NoError(t, err)

	// volume = 0 is a deliberate silent alarm, not an unset field.
	assert.Equal(t, 0, cfg.Alarm.Volume)
	assert.Empty(t, cfg.Validate())
}

func TestLoad_AbsentVolumeDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[workspace]
path = "/tmp/wakespot-test"

[alarm]
enabled = true
time = "07:00"

[spotify]
client_id = "id"
client_secret = "test-client-secret"
refresh_token = "token"
`))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Alarm.Volume)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoad_InvalidTOML(t *testing.T) {
	_, err := Load(writeConfig(t, "[alarm\nbroken"))
	assert.Error(t, err)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("WAKESPOT_TEST_SECRET", "secret-from-env")

	cfg, err := Load(writeConfig(t, `
[workspace]
path = "/tmp/wakespot-test"

[spotify]
client_id = "id"
client_secret = "${WAKESPOT_TEST_SECRET}"
refresh_token = "${WAKESPOT_TEST_UNSET:fallback-token}"
`))
	require.NoError(t, err)

	assert.Equal(t, "secret-from-env", cfg.Spotify.ClientSecret)
	assert.Equal(t, "fallback-token", cfg.Spotify.RefreshToken)
}

func TestValidate_BadTime(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)
	cfg.Alarm.Time = "25:99"

	errs := cfg.Validate()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "alarm.time")
}

func TestValidate_EnabledWithoutTime(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)
	cfg.Alarm.Time = ""

	errs := cfg.Validate()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "alarm.time is required")
}

func TestValidate_BadTimezone(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)
	cfg.Alarm.Timezone = "Mars/Olympus"

	errs := cfg.Validate()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "alarm.timezone")
}

func TestValidate_VolumeRange(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)
	cfg.Alarm.Volume = 150

	errs := cfg.Validate()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "alarm.volume")
}

func TestValidate_ReadinessBudgetExceedsGrace(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	// 10 attempts x (60s timeout + 2s backoff) is far past half of 600s.
	cfg.Readiness.Attempts = 10
	cfg.Readiness.ProbeTimeoutSec = 60

	errs := cfg.Validate()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "readiness budget")
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[workspace]
path = "/tmp/wakespot-test"
`))
	require.NoError(t, err)

	errs := cfg.Validate()
	var messages []string
	for _, e := range errs {
		messages = append(messages, e.Error())
	}
	assert.Contains(t, messages, "spotify.client_id is required")
	assert.Contains(t, messages, "spotify.client_secret is required")
	assert.Contains(t, messages, "spotify.refresh_token is required")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", maskSecret("abc"))
	assert.Equal(t, "se***********en", maskSecret("secret-from-een"))
}

func TestWorkspacePaths(t *testing.T) {
	w := WorkspaceConfig{Path: "/var/lib/wakespot"}
	assert.Equal(t, "/var/lib/wakespot/state.json", w.StateFile())
	assert.Equal(t, "/var/lib/wakespot/history.jsonl", w.HistoryFile())
}
