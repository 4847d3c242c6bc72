package session

import (
	"sort"
	"time"
)

// CancelFunc cancels a scheduled tick. Calling it twice is harmless.
type CancelFunc func()

// Scheduler requests a callback on the next frame.
type Scheduler interface {
	ScheduleTick(fn func(now time.Time)) CancelFunc
}

// Runner drives a Session from a Scheduler: it re-arms after every frame
// while the session is counting down or playing, drops the outstanding
// request on pause, and issues a fresh one on resume.
type Runner struct {
	s      *Session
	sched  Scheduler
	cancel CancelFunc
}

// NewRunner binds s to sched.
func NewRunner(s *Session, sched Scheduler) *Runner {
	return &Runner{s: s, sched: sched}
}

// Session returns the driven session.
func (r *Runner) Session() *Session { return r.s }

// Start starts the session and requests the first frame.
func (r *Runner) Start(now time.Time) error {
	if err := r.s.Start(now); err != nil {
		return err
	}
	r.arm()
	return nil
}

// Pause pauses the session and cancels the outstanding frame.
func (r *Runner) Pause(now time.Time) error {
	if err := r.s.Pause(now); err != nil {
		return err
	}
	r.disarm()
	return nil
}

// Resume resumes the session and requests a new frame.
func (r *Runner) Resume(now time.Time) error {
	if err := r.s.Resume(now); err != nil {
		return err
	}
	r.arm()
	return nil
}

// Stop cancels any outstanding frame without touching the session.
func (r *Runner) Stop() {
	r.disarm()
}

// Running reports whether a frame is outstanding.
func (r *Runner) Running() bool {
	return r.cancel != nil
}

func (r *Runner) arm() {
	r.disarm()
	r.cancel = r.sched.ScheduleTick(r.frame)
}

func (r *Runner) disarm() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Runner) frame(now time.Time) {
	r.cancel = nil
	r.s.Tick(now)
	switch r.s.Phase() {
	case PhaseCountdown, PhasePlaying:
		r.arm()
	}
}

// ManualScheduler fires frames on demand with synthetic timestamps.
type ManualScheduler struct {
	now     time.Time
	nextID  int
	pending map[int]func(time.Time)
}

// NewManualScheduler returns a scheduler whose clock starts at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start, pending: map[int]func(time.Time){}}
}

// ScheduleTick implements Scheduler.
func (m *ManualScheduler) ScheduleTick(fn func(time.Time)) CancelFunc {
	m.nextID++
	id := m.nextID
	m.pending[id] = fn
	return func() { delete(m.pending, id) }
}

// Now returns the scheduler clock.
func (m *ManualScheduler) Now() time.Time { return m.now }

// Pending returns the number of outstanding callbacks.
func (m *ManualScheduler) Pending() int { return len(m.pending) }

// Step moves the clock by d and fires every callback registered before the
// call, in registration order. It returns how many fired.
func (m *ManualScheduler) Step(d time.Duration) int {
	m.now = m.now.Add(d)
	ids := make([]int, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fired := 0
	for _, id := range ids {
		fn, ok := m.pending[id]
		if !ok {
			continue
		}
		delete(m.pending, id)
		fn(m.now)
		fired++
	}
	return fired
}

// Advance moves the clock by d without firing anything. Input stamped with
// Now then lands between frames.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}
