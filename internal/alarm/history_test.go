package alarm

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_AppendLoad(t *testing.T) {
	hist := NewHistory(filepath.Join(t.TempDir(), "history.jsonl"), testLogger(t))

	scheduled := time.Date(2024, time.July, 1, 5, 0, 0, 0, time.UTC)
	executed := scheduled.Add(2 * time.Second)

	require.NoError(t, hist.Append(ExecutionRecord{
		AttemptID:    "a1",
		ScheduledUTC: scheduled,
		ExecutedUTC:  &executed,
		Outcome:      OutcomeFired,
	}))
	require.NoError(t, hist.Append(ExecutionRecord{
		AttemptID:    "a2",
		ScheduledUTC: scheduled.Add(24 * time.Hour),
		Outcome:      OutcomeFailed,
		Diagnostics:  map[string]string{"network_ok": "false"},
	}))

	records, err := hist.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a1", records[0].AttemptID)
	assert.Equal(t, OutcomeFired, records[0].Outcome)
	assert.Equal(t, "a2", records[1].AttemptID)
	assert.Equal(t, "false", records[1].Diagnostics["network_ok"])
}

func TestHistory_Load_Absent(t *testing.T) {
	hist := NewHistory(filepath.Join(t.TempDir(), "history.jsonl"), testLogger(t))

	records, err := hist.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHistory_Load_SkipsBadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	hist := NewHistory(path, testLogger(t))

	require.NoError(t, hist.Append(ExecutionRecord{AttemptID: "a1", Outcome: OutcomeFired}))

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = file.WriteString("garbage line\n")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	require.NoError(t, hist.Append(ExecutionRecord{AttemptID: "a2", Outcome: OutcomeFired}))

	records, err := hist.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a1", records[0].AttemptID)
	assert.Equal(t, "a2", records[1].AttemptID)
}

func TestHistory_Trim(t *testing.T) {
	hist := NewHistory(filepath.Join(t.TempDir(), "history.jsonl"), testLogger(t))

	base := time.Date(2024, time.July, 1, 5, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, hist.Append(ExecutionRecord{
			AttemptID:    string(rune('a' + i)),
			ScheduledUTC: base.AddDate(0, 0, i),
			Outcome:      OutcomeFired,
		}))
	}

	require.NoError(t, hist.Trim(base.AddDate(0, 0, 2)))

	records, err := hist.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "d", records[0].AttemptID)
	assert.Equal(t, "e", records[1].AttemptID)
}

func TestHistory_Trim_NothingToRemove(t *testing.T) {
	hist := NewHistory(filepath.Join(t.TempDir(), "history.jsonl"), testLogger(t))

	base := time.Now().UTC()
	require.NoError(t, hist.Append(ExecutionRecord{AttemptID: "a1", ScheduledUTC: base, Outcome: OutcomeFired}))

	require.NoError(t, hist.Trim(base.Add(-time.Hour)))

	records, err := hist.Load()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
