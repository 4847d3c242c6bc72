package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/winniek75/baseball-vison.training/internal/session"
)

const defaultFrameInterval = time.Second / 60

// frameMsg is delivered by Bubble Tea when a requested frame is due.
type frameMsg struct {
	id int
	at time.Time
}

// frameScheduler turns session frame requests into tea.Tick commands. The
// commands are queued until Update drains them; a cancelled request leaves
// its frameMsg stale so it is dropped on arrival.
type frameScheduler struct {
	interval time.Duration
	nextID   int
	armed    map[int]func(time.Time)
	queued   []tea.Cmd
}

func newFrameScheduler(interval time.Duration) *frameScheduler {
	if interval <= 0 {
		interval = defaultFrameInterval
	}
	return &frameScheduler{interval: interval, armed: map[int]func(time.Time){}}
}

// ScheduleTick implements session.Scheduler.
func (f *frameScheduler) ScheduleTick(fn func(time.Time)) session.CancelFunc {
	f.nextID++
	id := f.nextID
	f.armed[id] = fn
	f.queued = append(f.queued, tea.Tick(f.interval, func(t time.Time) tea.Msg {
		return frameMsg{id: id, at: t}
	}))
	return func() { delete(f.armed, id) }
}

// fire runs the callback for msg. It reports false for stale frames.
func (f *frameScheduler) fire(msg frameMsg) bool {
	fn, ok := f.armed[msg.id]
	if !ok {
		return false
	}
	delete(f.armed, msg.id)
	fn(msg.at)
	return true
}

// drain returns the queued tick commands as one batch.
func (f *frameScheduler) drain() tea.Cmd {
	if len(f.queued) == 0 {
		return nil
	}
	cmds := f.queued
	f.queued = nil
	return tea.Batch(cmds...)
}

// armedIDs lists outstanding frame ids in request order.
func (f *frameScheduler) armedIDs() []int {
	ids := make([]int, 0, len(f.armed))
	for id := 1; id <= f.nextID; id++ {
		if _, ok := f.armed[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
