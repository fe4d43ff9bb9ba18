// Package clock abstracts the process clock so deadline decisions can be
// driven by a simulated clock in tests. The system implementation returns
// time.Time values carrying Go's monotonic reading, making Before/After
// comparisons immune to wall-clock jumps.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time and a monotonic uptime reading.
type Clock interface {
	// Now returns the current time. The system clock includes a monotonic
	// component, so comparisons between two Now values are drift-proof.
	Now() time.Time

	// Uptime returns the monotonic duration since the clock was created.
	// It is used as the persisted monotonic reference for restart-time
	// missed-deadline detection.
	Uptime() time.Duration
}

// System is the real process clock.
type System struct {
	start time.Time
}

// NewSystem creates a system clock anchored at the current instant.
func NewSystem() *System {
	return &System{start: time.Now()}
}

// Now returns the current time with monotonic reading.
func (s *System) Now() time.Time {
	return time.Now()
}

// Uptime returns the monotonic time elapsed since the clock was created.
func (s *System) Uptime() time.Duration {
	return time.Since(s.start)
}

// Simulated is a manually advanced clock for tests.
type Simulated struct {
	mu     sync.Mutex
	now    time.Time
	uptime time.Duration
}

// NewSimulated creates a simulated clock starting at the given instant.
func NewSimulated(start time.Time) *Simulated {
	return &Simulated{now: start}
}

// Now returns the simulated current time.
func (s *Simulated) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Uptime returns the simulated monotonic reading.
func (s *Simulated) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uptime
}

// Advance moves both the wall and monotonic readings forward.
func (s *Simulated) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
	s.uptime += d
}

// JumpWall moves only the wall reading, simulating an NTP step or a manual
// clock change. The monotonic reading is unaffected.
func (s *Simulated) JumpWall(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

// Set pins the wall reading to an absolute instant.
func (s *Simulated) Set(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = t
}
