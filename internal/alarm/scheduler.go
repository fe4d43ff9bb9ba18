package alarm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wakespot/wakespot/internal/clock"
	"github.com/wakespot/wakespot/internal/localtime"
	"github.com/wakespot/wakespot/internal/logger"
	"github.com/wakespot/wakespot/internal/metrics"
)

const (
	defaultGraceWindow = 600 * time.Second
	defaultWakeCheck   = 2 * time.Second
)

// Options holds the scheduler tunables. Zero values fall back to the
// documented defaults.
type Options struct {
	// GraceWindow is the maximum lateness for which a missed deadline is
	// still fired rather than skipped. Default 600s.
	GraceWindow time.Duration
	// WakeCheck is the bounded sleep increment. Config edits and shutdown
	// signals are observed within one increment. Default 2s.
	WakeCheck time.Duration
	// Clock drives all deadline decisions. Default is the system clock.
	Clock clock.Clock
}

// Scheduler is the alarm scheduling core. One instance runs per process,
// owned by the app; request handlers interact with it only through the
// shared config store and the read-only Snapshot.
type Scheduler struct {
	source    ConfigSource
	gate      ReadinessChecker
	player    Playback
	store     *Store
	history   *History
	clock     clock.Clock
	log       *logger.Logger
	metrics   *metrics.Metrics
	grace     time.Duration
	wakeCheck time.Duration

	mu              sync.RWMutex
	state           State
	deadline        *Deadline
	lastScheduled   *time.Time
	lastExecuted    *time.Time
	lastAttemptID   string
	lastOutcome     Outcome
	lastDiagnostics map[string]string
}

// NewScheduler creates the scheduler. store and history may not be nil; the
// metrics handle may be nil.
func NewScheduler(source ConfigSource, gate ReadinessChecker, player Playback, store *Store, history *History, log *logger.Logger, m *metrics.Metrics, opts Options) *Scheduler {
	if opts.GraceWindow <= 0 {
		opts.GraceWindow = defaultGraceWindow
	}
	if opts.WakeCheck <= 0 {
		opts.WakeCheck = defaultWakeCheck
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem()
	}
	return &Scheduler{
		source:    source,
		gate:      gate,
		player:    player,
		store:     store,
		history:   history,
		clock:     opts.Clock,
		log:       log,
		metrics:   m,
		grace:     opts.GraceWindow,
		wakeCheck: opts.WakeCheck,
		state:     StateIdle,
	}
}

// Run executes the scheduler loop until the context is cancelled. The last
// known state is persisted before returning so a restart can resume.
func (s *Scheduler) Run(ctx context.Context) error {
	s.restore()
	s.log.Info("alarm scheduler started",
		logger.Field{Key: "grace_window", Value: s.grace.String()},
		logger.Field{Key: "wake_check", Value: s.wakeCheck.String()})

	ticker := time.NewTicker(s.wakeCheck)
	defer ticker.Stop()

	s.wakeTick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.persist()
			s.log.Info("alarm scheduler stopped")
			return nil
		case <-ticker.C:
			s.wakeTick(ctx)
		}
	}
}

// Snapshot returns a read-only view of the scheduler state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		State:           s.state,
		LastOutcome:     s.lastOutcome,
		LastAttempt:     s.lastAttemptID,
		LastDiagnostics: copyDiagnostics(s.lastDiagnostics),
	}
	if s.deadline != nil {
		next := s.deadline.ScheduledUTC
		snap.NextUTC = &next
		snap.NextLocal = s.deadline.ScheduledLocal.Format(time.RFC3339)
		snap.Fingerprint = s.deadline.Fingerprint
	}
	if s.lastScheduled != nil {
		t := *s.lastScheduled
		snap.LastScheduledUTC = &t
	}
	if s.lastExecuted != nil {
		t := *s.lastExecuted
		snap.LastExecutedUTC = &t
	}
	return snap
}

// restore loads persisted state and applies the catch-up decision: a
// deadline missed by less than the grace window stays due and fires on the
// first wake-check; one missed by more is recorded as expired and a fresh
// deadline is computed.
func (s *Scheduler) restore() {
	st := s.store.Load()
	if st == nil {
		return
	}

	s.mu.Lock()
	s.lastScheduled = st.LastScheduledUTC
	s.lastExecuted = st.LastExecutedUTC
	s.lastAttemptID = st.LastAttemptID
	s.lastOutcome = Outcome(st.Outcome)
	s.lastDiagnostics = st.Diagnostics
	s.mu.Unlock()

	if st.ScheduledAtUTC == nil {
		return
	}
	scheduled := st.ScheduledAtUTC.UTC()

	if s.slotConsumed(scheduled) {
		// The persisted deadline was already executed before shutdown; a
		// fresh one is computed on the first wake-check.
		return
	}

	local := scheduled
	if parsed, err := time.Parse(time.RFC3339, st.ScheduledAtLocal); err == nil {
		local = parsed
	}

	lateness := s.clock.Now().Sub(scheduled)
	switch {
	case lateness <= 0:
		// Still in the future: re-arm against this process's monotonic
		// clock.
		s.setDeadline(&Deadline{
			ScheduledUTC:   scheduled,
			ScheduledLocal: local,
			Fingerprint:    st.Fingerprint,
			mono:           s.clock.Uptime() - lateness,
		})
		s.transition(StateArmed)
		s.log.Event("alarm_rearmed_after_restart",
			logger.Field{Key: "scheduled_utc", Value: scheduled})
	case lateness <= s.grace:
		// Missed within grace: leave the deadline due so the first
		// wake-check runs the catch-up fire.
		s.setDeadline(&Deadline{
			ScheduledUTC:   scheduled,
			ScheduledLocal: local,
			Fingerprint:    st.Fingerprint,
			mono:           s.clock.Uptime() - lateness,
		})
		s.transition(StateWoken)
		s.log.Event("alarm_catchup_pending",
			logger.Field{Key: "scheduled_utc", Value: scheduled},
			logger.Field{Key: "lateness", Value: lateness.String()})
	default:
		// Missed beyond grace: record the skip; a fresh deadline is
		// computed on the first wake-check.
		s.recordOutcome(Deadline{ScheduledUTC: scheduled, ScheduledLocal: local, Fingerprint: st.Fingerprint},
			nil, OutcomeSkippedExpired, map[string]string{
				"lateness": lateness.String(),
			})
		s.log.Event("alarm_missed_too_late",
			logger.Field{Key: "scheduled_utc", Value: scheduled},
			logger.Field{Key: "lateness", Value: lateness.String()})
	}
}

// wakeTick is one bounded wake-check: re-validate configuration, recompute
// the deadline when stale, and fire when due.
func (s *Scheduler) wakeTick(ctx context.Context) {
	cfg, fingerprint, err := s.source.AlarmConfig()
	if err != nil {
		// Corrupt or missing configuration is treated as disabled, never
		// as a crash.
		s.log.Warn("alarm config unavailable, treating as disabled",
			logger.Field{Key: "err", Value: err.Error()})
		s.disarm()
		return
	}
	if !cfg.Enabled {
		s.disarm()
		return
	}

	current := s.currentDeadline()
	if current == nil || current.Fingerprint != fingerprint {
		current = s.arm(cfg, fingerprint)
		if current == nil {
			return
		}
	}

	if s.clock.Uptime() < current.mono {
		return
	}

	// Deadline reached or overslept.
	deadline := *current
	s.setDeadline(nil)

	if s.slotConsumed(deadline.ScheduledUTC) {
		// Idempotence: this scheduled instant already has an outcome; the
		// wake-check is a no-op beyond recomputing the next deadline.
		s.arm(cfg, fingerprint)
		return
	}

	s.transition(StateWoken)
	lateness := s.clock.Uptime() - deadline.mono
	if lateness > s.grace {
		s.recordOutcome(deadline, nil, OutcomeSkippedExpired, map[string]string{
			"lateness": lateness.String(),
		})
		s.log.Event("alarm_missed_too_late",
			logger.Field{Key: "scheduled_utc", Value: deadline.ScheduledUTC},
			logger.Field{Key: "lateness", Value: lateness.String()})
		s.arm(cfg, fingerprint)
		return
	}

	s.execute(ctx, cfg, deadline)
	s.arm(cfg, fingerprint)
}

// arm computes and persists the next deadline for the given configuration.
func (s *Scheduler) arm(cfg Config, fingerprint string) *Deadline {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	now := s.clock.Now()
	next := localtime.NextOccurrence(cfg.Time, cfg.Weekdays, loc, now)
	if next.IsZero() {
		s.log.Warn("no next occurrence for alarm schedule")
		s.disarm()
		return nil
	}

	deadline := &Deadline{
		ScheduledUTC:   next.UTC(),
		ScheduledLocal: next.In(loc),
		Fingerprint:    fingerprint,
		mono:           s.clock.Uptime() + next.Sub(now),
	}
	s.setDeadline(deadline)
	s.transition(StateArmed)
	s.metrics.SetNextDeadline(deadline.ScheduledUTC)
	s.persist()

	s.log.Event("alarm_armed",
		logger.Field{Key: "scheduled_utc", Value: deadline.ScheduledUTC},
		logger.Field{Key: "scheduled_local", Value: deadline.ScheduledLocal.Format(time.RFC3339)})
	return deadline
}

// disarm clears any pending deadline and moves to IDLE. A due, unconsumed
// deadline observed while disabling is recorded as skipped-disabled.
func (s *Scheduler) disarm() {
	current := s.currentDeadline()
	if current != nil && s.clock.Uptime() >= current.mono && !s.slotConsumed(current.ScheduledUTC) {
		s.recordOutcome(*current, nil, OutcomeSkippedDisabled, nil)
	}

	s.mu.Lock()
	changed := s.state != StateIdle || s.deadline != nil
	s.deadline = nil
	s.state = StateIdle
	s.mu.Unlock()

	if changed {
		s.metrics.RecordTransition(string(StateIdle))
		s.metrics.SetNextDeadline(time.Time{})
		s.persist()
		s.log.Event("alarm_idle")
	}
}

// execute runs the readiness gate and the playback callback for one due
// deadline. Exactly one outcome is recorded regardless of what fails; a
// panicking playback collaborator is contained and recorded as failed.
func (s *Scheduler) execute(ctx context.Context, cfg Config, deadline Deadline) {
	s.transition(StateExecuting)
	s.log.Event("alarm_executing",
		logger.Field{Key: "scheduled_utc", Value: deadline.ScheduledUTC})

	status := s.gate.Check(ctx)
	diagnostics := map[string]string{
		"network_ok": fmt.Sprintf("%t", status.NetworkOK),
		"token_ok":   fmt.Sprintf("%t", status.TokenOK),
		"device_ok":  fmt.Sprintf("%t", status.DeviceOK),
	}
	for k, v := range status.Detail {
		diagnostics[k] = v
	}

	if !status.Ready() {
		s.recordOutcome(deadline, nil, OutcomeFailed, diagnostics)
		s.log.Event("alarm_failed",
			logger.Field{Key: "scheduled_utc", Value: deadline.ScheduledUTC},
			logger.Field{Key: "reason", Value: "readiness check failed"})
		return
	}

	err := s.startPlayback(ctx, cfg)
	if err != nil {
		diagnostics["playback"] = err.Error()
		s.recordOutcome(deadline, nil, OutcomeFailed, diagnostics)
		s.log.Event("alarm_failed",
			logger.Field{Key: "scheduled_utc", Value: deadline.ScheduledUTC},
			logger.Field{Key: "reason", Value: err.Error()})
		return
	}

	executed := s.clock.Now().UTC()
	s.recordOutcome(deadline, &executed, OutcomeFired, diagnostics)
	s.log.Event("alarm_fired",
		logger.Field{Key: "scheduled_utc", Value: deadline.ScheduledUTC},
		logger.Field{Key: "executed_utc", Value: executed})
}

// startPlayback invokes the playback collaborator with panic containment.
func (s *Scheduler) startPlayback(ctx context.Context, cfg Config) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("playback panicked: %v", r)
		}
	}()
	return s.player.Start(ctx, cfg)
}

// recordOutcome fills the single execution slot for the deadline's
// scheduled instant and writes through to disk. Persistence errors are
// logged and swallowed: the in-memory loop keeps operating.
func (s *Scheduler) recordOutcome(deadline Deadline, executed *time.Time, outcome Outcome, diagnostics map[string]string) {
	attemptID := uuid.NewString()
	scheduled := deadline.ScheduledUTC

	s.mu.Lock()
	s.lastScheduled = &scheduled
	s.lastExecuted = executed
	s.lastAttemptID = attemptID
	s.lastOutcome = outcome
	s.lastDiagnostics = diagnostics
	s.mu.Unlock()

	s.metrics.RecordOutcome(string(outcome))
	s.persist()

	if s.history != nil {
		if err := s.history.Append(ExecutionRecord{
			AttemptID:    attemptID,
			ScheduledUTC: scheduled,
			ExecutedUTC:  executed,
			Outcome:      outcome,
			Diagnostics:  diagnostics,
		}); err != nil {
			s.log.Error("failed to append execution history", err)
		}
	}
}

// persist writes the current scheduler state through the store. Failures
// only degrade restart resilience, never in-memory correctness.
func (s *Scheduler) persist() {
	s.mu.RLock()
	st := &PersistedState{
		LastScheduledUTC: s.lastScheduled,
		LastExecutedUTC:  s.lastExecuted,
		LastAttemptID:    s.lastAttemptID,
		Outcome:          string(s.lastOutcome),
		Diagnostics:      s.lastDiagnostics,
		MonotonicRef: &MonotonicRef{
			WallUTC:       s.clock.Now().UTC(),
			UptimeSeconds: s.clock.Uptime().Seconds(),
		},
	}
	if s.deadline != nil {
		scheduled := s.deadline.ScheduledUTC
		st.ScheduledAtUTC = &scheduled
		st.ScheduledAtLocal = s.deadline.ScheduledLocal.Format(time.RFC3339)
		st.Fingerprint = s.deadline.Fingerprint
	}
	s.mu.RUnlock()

	if err := s.store.Save(st); err != nil {
		s.log.Error("failed to persist scheduler state", err)
	}
}

// slotConsumed reports whether the scheduled instant already has a recorded
// outcome. This is the at-most-once guarantee: one scheduled instant gets
// one execution attempt, ever.
func (s *Scheduler) slotConsumed(scheduled time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastScheduled != nil && s.lastScheduled.Equal(scheduled) && s.lastOutcome != ""
}

func (s *Scheduler) currentDeadline() *Deadline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deadline == nil {
		return nil
	}
	d := *s.deadline
	return &d
}

func (s *Scheduler) setDeadline(d *Deadline) {
	s.mu.Lock()
	s.deadline = d
	s.mu.Unlock()
}

func (s *Scheduler) transition(state State) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()
	s.metrics.RecordTransition(string(state))
}

func copyDiagnostics(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
