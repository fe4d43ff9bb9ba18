// Package alarm implements the wake-up alarm scheduling core: a background
// loop that computes the next absolute fire instant from the alarm
// configuration, sleeps against the monotonic clock in bounded increments,
// re-validates configuration on every wake-check, applies catch-up grace for
// missed deadlines, and invokes the playback collaborator at most once per
// scheduled instant.
package alarm

import (
	"context"
	"time"

	"github.com/wakespot/wakespot/internal/localtime"
	"github.com/wakespot/wakespot/internal/readiness"
)

// Config is the typed alarm configuration as seen by the scheduler. It is
// produced at a single deserialization boundary by the config store; the
// scheduler itself never reads raw config keys.
type Config struct {
	Enabled     bool
	Time        localtime.TimeOfDay
	Weekdays    localtime.Weekdays
	Location    *time.Location
	Volume      int
	DeviceName  string
	PlaylistURI string
	FadeIn      time.Duration
	Shuffle     bool
}

// Outcome classifies a finished execution attempt.
type Outcome string

const (
	// OutcomeFired means playback was started successfully.
	OutcomeFired Outcome = "fired"
	// OutcomeSkippedDisabled means the alarm was disabled when the deadline
	// came due.
	OutcomeSkippedDisabled Outcome = "skipped-disabled"
	// OutcomeSkippedExpired means the deadline was missed by more than the
	// catch-up grace window.
	OutcomeSkippedExpired Outcome = "skipped-catchup-expired"
	// OutcomeFailed means readiness checks or playback start failed.
	OutcomeFailed Outcome = "failed"
)

// ConfigSource supplies the current alarm configuration together with a
// fingerprint used to detect changes between wake-checks. Implementations
// must be safe for concurrent use; the scheduler polls, it never subscribes.
type ConfigSource interface {
	AlarmConfig() (Config, string, error)
}

// Playback starts alarm playback on the configured device. Implementations
// are treated as black boxes with bounded call time; errors are reported as
// values and panics are contained by the scheduler.
type Playback interface {
	Start(ctx context.Context, cfg Config) error
}

// ReadinessChecker probes execution preconditions just before firing.
type ReadinessChecker interface {
	Check(ctx context.Context) readiness.Status
}

// Deadline is one computed schedule record. Deadlines are superseded, never
// mutated: each recomputation produces a fresh value.
type Deadline struct {
	// ScheduledUTC is the absolute instant the alarm should fire.
	ScheduledUTC time.Time
	// ScheduledLocal is the same instant in the alarm's timezone. Display
	// only; never used for elapsed-time decisions.
	ScheduledLocal time.Time
	// Fingerprint of the configuration this deadline was derived from.
	Fingerprint string
	// mono is the monotonic clock reading at which the deadline elapses.
	// Authoritative for "has the deadline passed" regardless of wall-clock
	// adjustments.
	mono time.Duration
}

// State names a scheduler state machine state.
type State string

const (
	// StateIdle means the alarm is disabled or has no valid deadline.
	StateIdle State = "idle"
	// StateArmed means a deadline is computed and the loop is sleeping.
	StateArmed State = "armed"
	// StateWoken means the deadline has been reached or overslept.
	StateWoken State = "woken"
	// StateExecuting means the readiness gate and playback are running.
	StateExecuting State = "executing"
)

// Snapshot is a read-only view of the scheduler for the status surface.
type Snapshot struct {
	State            State             `json:"state"`
	NextUTC          *time.Time        `json:"next_utc,omitempty"`
	NextLocal        string            `json:"next_local,omitempty"`
	Fingerprint      string            `json:"config_fingerprint,omitempty"`
	LastScheduledUTC *time.Time        `json:"last_scheduled_utc,omitempty"`
	LastExecutedUTC  *time.Time        `json:"last_executed_utc,omitempty"`
	LastAttempt      string            `json:"last_attempt_id,omitempty"`
	LastOutcome      Outcome           `json:"last_outcome,omitempty"`
	LastDiagnostics  map[string]string `json:"last_diagnostics,omitempty"`
}
