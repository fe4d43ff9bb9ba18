// Package config provides configuration loading and validation for wakespot.
// It supports TOML configuration files with environment variable expansion,
// default values, and validation, plus a thread-safe Store that request
// handlers and the scheduler share.
//
// Configuration structure:
//   - [workspace]: Workspace directory for state and history files
//   - [alarm]: Wake-up alarm settings and scheduler tunables
//   - [readiness]: Pre-fire readiness probe budget
//   - [spotify]: Spotify Web API credentials and target market
//   - [sleep_timer]: Sleep-off timer defaults
//   - [http]: Status/control API listener
//   - [logging]: Logging level, format, and output
//   - [maintenance]: Background maintenance job schedules
//
// Environment variables can be referenced using ${VAR} or ${VAR:default}
// syntax, e.g. client_secret = "${SPOTIFY_CLIENT_SECRET}".
package config

import "path/filepath"

// Config represents the main application configuration.
type Config struct {
	Workspace   WorkspaceConfig   `toml:"workspace"`
	Alarm       AlarmConfig       `toml:"alarm"`
	Readiness   ReadinessConfig   `toml:"readiness"`
	Spotify     SpotifyConfig     `toml:"spotify"`
	SleepTimer  SleepTimerConfig  `toml:"sleep_timer"`
	HTTP        HTTPConfig        `toml:"http"`
	Logging     LoggingConfig     `toml:"logging"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

// WorkspaceConfig locates the directory holding persisted scheduler state.
type WorkspaceConfig struct {
	Path string `toml:"path"`
}

// StateFile returns the path of the scheduler state file.
func (w *WorkspaceConfig) StateFile() string {
	return filepath.Join(w.Path, "state.json")
}

// HistoryFile returns the path of the execution history log.
func (w *WorkspaceConfig) HistoryFile() string {
	return filepath.Join(w.Path, "history.jsonl")
}

// AlarmConfig holds the user-facing alarm settings together with the
// scheduler tunables. Times are local wall-clock in the configured timezone;
// the scheduler never assumes UTC equals local.
type AlarmConfig struct {
	Enabled     bool     `toml:"enabled" json:"enabled"`
	Time        string   `toml:"time" json:"time"`         // "HH:MM"
	Weekdays    []string `toml:"weekdays" json:"weekdays"` // ["mon", "wed", ...]; empty = every day
	Timezone    string   `toml:"timezone" json:"timezone"` // IANA name; empty = system local
	Volume      int      `toml:"volume" json:"volume"`
	DeviceName  string   `toml:"device_name" json:"device_name"`
	PlaylistURI string   `toml:"playlist_uri" json:"playlist_uri"`
	FadeInSec   int      `toml:"fade_in_seconds" json:"fade_in_seconds"`
	Shuffle     bool     `toml:"shuffle" json:"shuffle"`

	GraceWindowSec int `toml:"grace_window_seconds" json:"grace_window_seconds"`
	WakeCheckSec   int `toml:"wake_check_seconds" json:"wake_check_seconds"`
}

// ReadinessConfig bounds the pre-fire readiness probes.
type ReadinessConfig struct {
	Attempts        int `toml:"attempts"`
	BackoffMillis   int `toml:"backoff_ms"`
	ProbeTimeoutSec int `toml:"probe_timeout_seconds"`
}

// SpotifyConfig holds Spotify Web API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RefreshToken string `toml:"refresh_token"`
	Market       string `toml:"market"`
}

// SleepTimerConfig holds sleep-off timer defaults.
type SleepTimerConfig struct {
	DefaultMinutes int `toml:"default_minutes"`
	FadeOutSec     int `toml:"fade_out_seconds"`
}

// HTTPConfig configures the status/control API listener.
type HTTPConfig struct {
	Listen string `toml:"listen"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// MaintenanceConfig configures the background maintenance jobs.
type MaintenanceConfig struct {
	Enabled          bool   `toml:"enabled"`
	TokenRefreshSpec string `toml:"token_refresh_spec"` // cron expression
	HistoryTrimSpec  string `toml:"history_trim_spec"`  // cron expression
	HistoryMaxDays   int    `toml:"history_max_days"`
}
