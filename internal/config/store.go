package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"

	"github.com/wakespot/wakespot/internal/alarm"
	"github.com/wakespot/wakespot/internal/localtime"
	"github.com/wakespot/wakespot/internal/logger"
)

// Store is the shared, thread-safe configuration handle. Request handlers
// write through Update; the scheduler polls AlarmConfig on every wake-check
// and detects changes by fingerprint. External edits to the config file are
// picked up by Watch.
type Store struct {
	path   string
	logger *logger.Logger

	mu        sync.RWMutex
	cfg       *Config
	location  *time.Location
	savedAt   time.Time
	listeners []func()
}

// NewStore wraps an already loaded configuration.
func NewStore(path string, cfg *Config, log *logger.Logger) (*Store, error) {
	loc, err := resolveLocation(cfg.Alarm.Timezone)
	if err != nil {
		return nil, err
	}
	return &Store{
		path:     path,
		logger:   log,
		cfg:      cfg,
		location: loc,
	}, nil
}

func resolveLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// Config returns a copy of the full configuration.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.cfg
}

// AlarmConfig returns the typed alarm configuration, its fingerprint, and
// any deserialization error. This is the single boundary where raw config
// values become the scheduler's value object.
func (s *Store) AlarmConfig() (alarm.Config, string, error) {
	s.mu.RLock()
	raw := s.cfg.Alarm
	loc := s.location
	s.mu.RUnlock()

	fingerprint := Fingerprint(raw)

	tod, err := localtime.ParseTimeOfDay(raw.Time)
	if err != nil {
		return alarm.Config{}, fingerprint, err
	}
	days, err := localtime.ParseWeekdays(raw.Weekdays)
	if err != nil {
		return alarm.Config{}, fingerprint, err
	}

	return alarm.Config{
		Enabled:     raw.Enabled,
		Time:        tod,
		Weekdays:    days,
		Location:    loc,
		Volume:      raw.Volume,
		DeviceName:  raw.DeviceName,
		PlaylistURI: raw.PlaylistURI,
		FadeIn:      time.Duration(raw.FadeInSec) * time.Second,
		Shuffle:     raw.Shuffle,
	}, fingerprint, nil
}

// DeviceName returns the currently configured playback device name.
func (s *Store) DeviceName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Alarm.DeviceName
}

// Fingerprint derives a stable hash of the alarm section, used by the
// scheduler to detect configuration changes between wake-checks.
func Fingerprint(a AlarmConfig) string {
	data, err := json.Marshal(a)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// Update applies fn to a copy of the configuration, validates the result,
// installs it, and writes it back to the config file atomically. The
// scheduler observes the change on its next wake-check.
func (s *Store) Update(fn func(*Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := *s.cfg
	if err := fn(&updated); err != nil {
		return err
	}

	if errs := updated.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %v", errs[0])
	}

	loc, err := resolveLocation(updated.Alarm.Timezone)
	if err != nil {
		return err
	}

	if err := s.writeFile(&updated); err != nil {
		return err
	}

	s.cfg = &updated
	s.location = loc
	s.savedAt = time.Now()
	s.notifyLocked()
	return nil
}

// OnChange registers a callback invoked after every successful install of a
// new configuration, from Update or from a watched reload.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notifyLocked() {
	for _, fn := range s.listeners {
		go fn()
	}
}

// writeFile renders the configuration as TOML and writes it with the usual
// temp-then-rename pattern.
func (s *Store) writeFile(cfg *Config) error {
	tmpPath := s.path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	enc := toml.NewEncoder(file)
	enc.Indent = ""
	if err := enc.Encode(cfg); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, s.path)
}

// Watch reloads the configuration when the file changes on disk, until the
// context is cancelled. Editors and atomic renames generate create/rename
// event pairs, so the watcher watches the directory and filters by name.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				s.reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("config watcher error",
					logger.Field{Key: "err", Value: err.Error()})
			}
		}
	}()

	return nil
}

// reload re-reads the config file after an external edit. A file written by
// our own Update within the last second is skipped. Invalid edits are
// logged and the previous configuration stays active.
func (s *Store) reload() {
	s.mu.RLock()
	recentOwnWrite := time.Since(s.savedAt) < time.Second
	s.mu.RUnlock()
	if recentOwnWrite {
		return
	}

	cfg, err := Load(s.path)
	if err != nil {
		s.logger.Warn("ignoring unreadable config edit",
			logger.Field{Key: "err", Value: err.Error()})
		return
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		s.logger.Warn("ignoring invalid config edit",
			logger.Field{Key: "err", Value: errs[0].Error()})
		return
	}
	loc, err := resolveLocation(cfg.Alarm.Timezone)
	if err != nil {
		s.logger.Warn("ignoring config edit with invalid timezone",
			logger.Field{Key: "err", Value: err.Error()})
		return
	}

	s.mu.Lock()
	s.cfg = cfg
	s.location = loc
	s.notifyLocked()
	s.mu.Unlock()

	s.logger.Info("configuration reloaded from file",
		logger.Field{Key: "path", Value: s.path})
}
