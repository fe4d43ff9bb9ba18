package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/wakespot/wakespot/internal/localtime"
)

// Load reads and parses a TOML configuration file, applies defaults and
// expands environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg, md)
	expandEnvVars(&cfg)

	return &cfg, nil
}

// Validate checks the configuration and returns all problems found.
func (c *Config) Validate() []error {
	var errors []error

	if c.Workspace.Path == "" {
		errors = append(errors, fmt.Errorf("workspace.path is required"))
	}

	if c.Alarm.Time != "" {
		if _, err := localtime.ParseTimeOfDay(c.Alarm.Time); err != nil {
			errors = append(errors, fmt.Errorf("alarm.time: %w", err))
		}
	} else if c.Alarm.Enabled {
		errors = append(errors, fmt.Errorf("alarm.time is required when the alarm is enabled"))
	}

	if _, err := localtime.ParseWeekdays(c.Alarm.Weekdays); err != nil {
		errors = append(errors, fmt.Errorf("alarm.weekdays: %w", err))
	}

	if c.Alarm.Timezone != "" {
		if _, err := time.LoadLocation(c.Alarm.Timezone); err != nil {
			errors = append(errors, fmt.Errorf("alarm.timezone: %w", err))
		}
	}

	if c.Alarm.Volume < 0 || c.Alarm.Volume > 100 {
		errors = append(errors, fmt.Errorf("alarm.volume must be between 0 and 100, got %d", c.Alarm.Volume))
	}

	if c.Alarm.GraceWindowSec <= 0 {
		errors = append(errors, fmt.Errorf("alarm.grace_window_seconds must be positive, got %d", c.Alarm.GraceWindowSec))
	}

	if c.Alarm.WakeCheckSec <= 0 {
		errors = append(errors, fmt.Errorf("alarm.wake_check_seconds must be positive, got %d", c.Alarm.WakeCheckSec))
	}

	// The readiness budget must stay well under the grace window so that
	// probing cannot push a catch-up fire past its own horizon.
	budget := time.Duration(c.Readiness.Attempts) *
		(time.Duration(c.Readiness.ProbeTimeoutSec)*time.Second + time.Duration(c.Readiness.BackoffMillis)*time.Millisecond)
	grace := time.Duration(c.Alarm.GraceWindowSec) * time.Second
	if budget*2 > grace {
		errors = append(errors, fmt.Errorf(
			"readiness budget %s exceeds half the grace window %s; lower readiness.attempts or the probe timeout", budget, grace))
	}

	if c.Spotify.ClientID == "" {
		errors = append(errors, fmt.Errorf("spotify.client_id is required"))
	}
	if c.Spotify.ClientSecret == "" {
		errors = append(errors, fmt.Errorf("spotify.client_secret is required"))
	} else if len(c.Spotify.ClientSecret) < 10 {
		errors = append(errors, fmt.Errorf("spotify.client_secret is too short (got %s)", maskSecret(c.Spotify.ClientSecret)))
	}
	if c.Spotify.RefreshToken == "" {
		errors = append(errors, fmt.Errorf("spotify.refresh_token is required"))
	}

	if c.Logging.Level != "" {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[strings.ToLower(c.Logging.Level)] {
			errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
		}
	}

	if c.Logging.Format != "" {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[strings.ToLower(c.Logging.Format)] {
			errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
		}
	}

	return errors
}

// maskSecret hides all but the first and last two characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// applyDefaults fills in default values for unset fields. The decode
// metadata distinguishes an absent volume key from an explicit zero, since a
// zero-volume alarm is a valid configuration.
func applyDefaults(c *Config, md toml.MetaData) {
	if c.Workspace.Path == "" {
		c.Workspace.Path = "~/.wakespot"
	}

	if !md.IsDefined("alarm", "volume") {
		c.Alarm.Volume = 50
	}
	if c.Alarm.GraceWindowSec == 0 {
		c.Alarm.GraceWindowSec = 600
	}
	if c.Alarm.WakeCheckSec == 0 {
		c.Alarm.WakeCheckSec = 2
	}

	if c.Readiness.Attempts == 0 {
		c.Readiness.Attempts = 3
	}
	if c.Readiness.BackoffMillis == 0 {
		c.Readiness.BackoffMillis = 2000
	}
	if c.Readiness.ProbeTimeoutSec == 0 {
		c.Readiness.ProbeTimeoutSec = 5
	}

	if c.SleepTimer.DefaultMinutes == 0 {
		c.SleepTimer.DefaultMinutes = 30
	}
	if c.SleepTimer.FadeOutSec == 0 {
		c.SleepTimer.FadeOutSec = 60
	}

	if c.HTTP.Listen == "" {
		c.HTTP.Listen = "127.0.0.1:8274"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Maintenance.TokenRefreshSpec == "" {
		c.Maintenance.TokenRefreshSpec = "0 * * * *"
	}
	if c.Maintenance.HistoryTrimSpec == "" {
		c.Maintenance.HistoryTrimSpec = "30 3 * * *"
	}
	if c.Maintenance.HistoryMaxDays == 0 {
		c.Maintenance.HistoryMaxDays = 90
	}
}

// expandEnvVars expands ${VAR} references and leading ~ in paths.
func expandEnvVars(c *Config) {
	c.Spotify.ClientID = expandEnv(c.Spotify.ClientID)
	c.Spotify.ClientSecret = expandEnv(c.Spotify.ClientSecret)
	c.Spotify.RefreshToken = expandEnv(c.Spotify.RefreshToken)
	c.Workspace.Path = expandHome(expandEnv(c.Workspace.Path))
}

// expandEnv expands an environment variable reference of the form
// ${VAR} or ${VAR:default}.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		if val := os.Getenv(parts[0]); val != "" {
			return val
		}
		return parts[1]
	}

	return os.Getenv(content)
}

// expandHome expands a leading ~ into the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
