package alarm

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/wakespot/wakespot/internal/logger"
)

// ExecutionRecord is one finished execution attempt as appended to the
// history log. The history is an observability companion to the single-slot
// state file; the trim job caps its growth.
type ExecutionRecord struct {
	AttemptID    string            `json:"attempt_id"`
	ScheduledUTC time.Time         `json:"scheduled_utc"`
	ExecutedUTC  *time.Time        `json:"executed_utc,omitempty"`
	Outcome      Outcome           `json:"outcome"`
	Diagnostics  map[string]string `json:"diagnostics,omitempty"`
}

// History appends execution records to a JSONL file, one record per line.
type History struct {
	filePath string
	logger   *logger.Logger
}

// NewHistory creates a history log writing to the given file path.
func NewHistory(filePath string, log *logger.Logger) *History {
	return &History{
		filePath: filePath,
		logger:   log,
	}
}

// Append adds a record to the end of the log.
func (h *History) Append(rec ExecutionRecord) error {
	if err := os.MkdirAll(filepath.Dir(h.filePath), 0755); err != nil {
		return err
	}

	file, err := os.OpenFile(h.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	_, err = file.Write(append(data, '\n'))
	return err
}

// Load reads all records from the log. Unparseable lines are skipped with a
// warning rather than failing the whole read.
func (h *History) Load() ([]ExecutionRecord, error) {
	file, err := os.Open(h.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []ExecutionRecord{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var records []ExecutionRecord
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}

		var rec ExecutionRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			h.logger.Warn("skipping unparseable history line",
				logger.Field{Key: "file", Value: h.filePath},
				logger.Field{Key: "line", Value: lineNum})
			continue
		}
		records = append(records, rec)
	}

	return records, scanner.Err()
}

// Trim rewrites the log keeping only records scheduled after the cutoff.
// The rewrite uses the same temp-then-rename pattern as the state store.
func (h *History) Trim(cutoff time.Time) error {
	records, err := h.Load()
	if err != nil {
		return err
	}

	var kept []ExecutionRecord
	for _, rec := range records {
		if rec.ScheduledUTC.After(cutoff) {
			kept = append(kept, rec)
		}
	}

	if len(kept) == len(records) {
		return nil
	}

	tmpPath := h.filePath + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	for _, rec := range kept {
		data, err := json.Marshal(rec)
		if err != nil {
			file.Close()
			return err
		}
		if _, err := file.Write(append(data, '\n')); err != nil {
			file.Close()
			return err
		}
	}

	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, h.filePath); err != nil {
		return err
	}

	h.logger.Info("trimmed execution history",
		logger.Field{Key: "kept", Value: len(kept)},
		logger.Field{Key: "removed", Value: len(records) - len(kept)})
	return nil
}
