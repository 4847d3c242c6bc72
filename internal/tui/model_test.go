package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/winniek75/baseball-vison.training/internal/badges"
	"github.com/winniek75/baseball-vison.training/internal/model"
	"github.com/winniek75/baseball-vison.training/internal/rng"
	"github.com/winniek75/baseball-vison.training/internal/session"
)

// constSource makes every pitcher round a fastball strike.
type constSource struct{}

func (constSource) Float64() float64 { return 0.1 }
func (constSource) Intn(int) int     { return 0 }

type failingSink struct{}

func (failingSink) SaveResult(context.Context, model.SessionRecord, []model.RoundOutcome) error {
	return errors.New("read-only database")
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

var t0 = time.Date(2026, 7, 4, 20, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T, cfg model.Config, opts Options) (*Model, *testClock) {
	t.Helper()
	clock := &testClock{now: t0}
	opts.Now = clock.Now
	m, err := NewModel(cfg, opts)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	m.width, m.height = 80, 24
	return m, clock
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

var space = tea.KeyMsg{Type: tea.KeySpace}

// pump delivers every outstanding frame at clock time d after t0.
func pump(m *Model, clock *testClock, d time.Duration) {
	clock.now = t0.Add(d)
	for _, id := range m.sched.armedIDs() {
		m.Update(frameMsg{id: id, at: clock.now})
	}
}

func TestTapFlow(t *testing.T) {
	cfg := model.Config{Module: model.ModulePitcherReaction, Difficulty: 1}
	m, clock := newTestModel(t, cfg, Options{Rand: constSource{}})

	if !strings.Contains(m.View(), "press space to start") {
		t.Fatalf("idle screen missing start hint:\n%s", m.View())
	}
	if _, cmd := m.Update(space); cmd == nil {
		t.Fatalf("starting should request a frame")
	}
	if m.sess.Phase() != session.PhaseCountdown {
		t.Fatalf("expected countdown, got %s", m.sess.Phase())
	}
	pump(m, clock, 3*time.Second)
	pump(m, clock, 3500*time.Millisecond)
	if m.sess.State().Active == nil {
		t.Fatalf("expected a pitch in flight")
	}

	clock.now = t0.Add(3600 * time.Millisecond)
	m.Update(space)
	view := m.View()
	if !containsAll(view, []string{"Perfect!", "Score 300", "Combo 1"}) {
		t.Fatalf("view missing tap feedback:\n%s", view)
	}

	clock.now = t0.Add(5 * time.Second)
	if strings.Contains(m.View(), "Perfect!") {
		t.Fatalf("feedback should fade")
	}
}

func TestPauseCancelsFrames(t *testing.T) {
	cfg := model.Config{Module: model.ModulePitcherReaction, Difficulty: 1}
	m, clock := newTestModel(t, cfg, Options{Rand: constSource{}})
	m.Update(space)
	pump(m, clock, 3*time.Second)

	m.Update(key('p'))
	if m.sess.Phase() != session.PhasePaused || len(m.sched.armedIDs()) != 0 {
		t.Fatalf("pause should cancel frames, phase=%s armed=%v", m.sess.Phase(), m.sched.armedIDs())
	}
	if !strings.Contains(m.View(), "PAUSED") {
		t.Fatalf("paused view missing banner")
	}
	clock.now = t0.Add(time.Minute)
	m.Update(key('p'))
	if m.sess.Phase() != session.PhasePlaying || len(m.sched.armedIDs()) != 1 {
		t.Fatalf("resume should request a frame")
	}
}

func TestResultScreen(t *testing.T) {
	cfg := model.Config{Module: model.ModulePitcherReaction, Difficulty: 1}
	var got session.SessionEnded
	m, clock := newTestModel(t, cfg, Options{
		Rand:    constSource{},
		Sink:    failingSink{},
		History: []model.SessionRecord{{Result: model.SessionResult{TotalScore: 900}}},
		AfterSession: func(e session.SessionEnded) []string {
			got = e
			return []string{badges.FirstPlay}
		},
	})
	m.Update(space)
	pump(m, clock, 3*time.Second)
	pump(m, clock, time.Minute)

	if m.sess.Phase() != session.PhaseResult {
		t.Fatalf("expected result, got %s", m.sess.Phase())
	}
	if got.PersistErr == nil {
		t.Fatalf("hook should see the persistence error")
	}
	view := m.View()
	if !containsAll(view, []string{"Session complete", "First Pitch", "result not saved", "Best 900", "Last 0"}) {
		t.Fatalf("result view incomplete:\n%s", view)
	}

	m.Update(key('r'))
	if m.sess.Phase() != session.PhaseCountdown {
		t.Fatalf("r should restart, got %s", m.sess.Phase())
	}
}

func TestNumberChoiceInput(t *testing.T) {
	cfg := model.Config{Module: model.ModuleBallNumberHunt, Difficulty: 1}
	m, clock := newTestModel(t, cfg, Options{Rand: rng.NewSeeded(21)})
	m.Update(space)
	pump(m, clock, 3*time.Second)
	pump(m, clock, 3500*time.Millisecond)

	m.Update(space)
	if len(m.sess.State().History) != 0 {
		t.Fatalf("space must not answer a number round")
	}
	pump(m, clock, 5400*time.Millisecond)
	st := m.sess.State()
	if st.Active == nil || !st.Active.Revealed() {
		t.Fatalf("expected a revealed number")
	}
	if !strings.Contains(m.View(), "[4]") {
		t.Fatalf("choices not shown:\n%s", m.View())
	}
	idx := -1
	for i, c := range st.Active.Spec.Choices {
		if c == st.Active.Spec.DisplayedNumber {
			idx = i
		}
	}
	if idx < 0 {
		t.Fatalf("correct value missing from choices %v", st.Active.Spec.Choices)
	}
	clock.now = t0.Add(5500 * time.Millisecond)
	m.Update(key(rune('1' + idx)))
	hist := m.sess.State().History
	if len(hist) != 1 || !hist[0].IsCorrect {
		t.Fatalf("expected a correct answer, got %+v", hist)
	}
}

func TestQuitStopsRunner(t *testing.T) {
	cfg := model.Config{Module: model.ModulePitcherReaction, Difficulty: 2}
	m, _ := newTestModel(t, cfg, Options{})
	m.Update(space)
	_, cmd := m.Update(key('q'))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if len(m.sched.armedIDs()) != 0 {
		t.Fatalf("quit should cancel outstanding frames")
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
