package alarm

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/wakespot/wakespot/internal/logger"
)

// MonotonicRef pairs a wall-clock instant with the process monotonic
// reading taken at the same moment. A restarted process cannot trust the
// previous process's monotonic values, so lateness across restarts is
// estimated from the wall component; within one process run the monotonic
// component is authoritative.
type MonotonicRef struct {
	WallUTC       time.Time `json:"wall_utc"`
	UptimeSeconds float64   `json:"uptime_seconds"`
}

// PersistedState is the on-disk scheduler record: the next scheduled
// deadline plus the single-slot record of the last execution attempt.
// Unknown fields in the file are ignored and missing fields are treated as
// absent state, so the format stays forward and backward tolerant.
type PersistedState struct {
	ScheduledAtUTC   *time.Time        `json:"scheduled_at_utc,omitempty"`
	ScheduledAtLocal string            `json:"scheduled_at_local,omitempty"`
	Fingerprint      string            `json:"config_fingerprint,omitempty"`
	MonotonicRef     *MonotonicRef     `json:"monotonic_reference,omitempty"`
	LastScheduledUTC *time.Time        `json:"last_scheduled_utc,omitempty"`
	LastExecutedUTC  *time.Time        `json:"last_executed_utc,omitempty"`
	LastAttemptID    string            `json:"last_attempt_id,omitempty"`
	Outcome          string            `json:"outcome,omitempty"`
	Diagnostics      map[string]string `json:"diagnostics,omitempty"`
}

// Store persists scheduler state as a single JSON file. The scheduler loop
// is the only writer; concurrent readers rely on the atomic rename in Save
// to always observe an old-or-new complete file.
type Store struct {
	filePath string
	logger   *logger.Logger
}

// NewStore creates a state store writing to the given file path.
func NewStore(filePath string, log *logger.Logger) *Store {
	return &Store{
		filePath: filePath,
		logger:   log,
	}
}

// Load reads the persisted state. An absent, unreadable, or corrupt file is
// treated as absent state and never returned as an error: persistence only
// enhances restart resilience, it is not a hard dependency.
func (s *Store) Load() *PersistedState {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("state file unreadable, starting fresh",
				logger.Field{Key: "file", Value: s.filePath},
				logger.Field{Key: "err", Value: err.Error()})
		}
		return nil
	}

	var state PersistedState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("state file corrupt, starting fresh",
			logger.Field{Key: "file", Value: s.filePath},
			logger.Field{Key: "err", Value: err.Error()})
		return nil
	}

	return &state
}

// Save writes the state atomically: marshal to a temp file in the same
// directory, fsync, then rename over the target. A crash mid-save leaves
// either the old file or the new one, never a partial write.
func (s *Store) Save(state *PersistedState) error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.filePath + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	if _, err := file.Write(data); err != nil {
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

	return os.Rename(tmpPath, s.filePath)
}
