// Package tui provides the Bubble Tea play screen.
package tui

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/winniek75/baseball-vison.training/internal/approach"
	"github.com/winniek75/baseball-vison.training/internal/badges"
	"github.com/winniek75/baseball-vison.training/internal/judge"
	"github.com/winniek75/baseball-vison.training/internal/model"
	"github.com/winniek75/baseball-vison.training/internal/rng"
	"github.com/winniek75/baseball-vison.training/internal/scoring"
	"github.com/winniek75/baseball-vison.training/internal/session"
)

const feedbackTTL = 900 * time.Millisecond

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F0F0F0"))
	countStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	ballStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	numberStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1F1F1F")).Background(lipgloss.Color("#F0F0F0"))
	zoneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	pausedStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	feedbackStyle = map[scoring.FeedbackKind]lipgloss.Style{
		scoring.FeedbackPerfect: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD54F")),
		scoring.FeedbackGreat:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#52C41A")),
		scoring.FeedbackMiss:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF4D4F")),
		scoring.FeedbackFake:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#36CFC9")),
		scoring.FeedbackNeutral: lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")),
	}
)

// Options wires the play screen to its collaborators.
type Options struct {
	Sink   session.Sink
	Logger *slog.Logger
	Rand   rng.Source
	// History seeds the footer with earlier sessions, oldest first.
	History []model.SessionRecord
	// AfterSession runs once per finished session and returns the badge keys
	// it newly unlocked.
	AfterSession func(session.SessionEnded) []string
	Frame        time.Duration
	Now          func() time.Time
}

// Model implements the Bubble Tea play UI.
type Model struct {
	sess   *session.Session
	runner *session.Runner
	sched  *frameScheduler
	log    *slog.Logger
	now    func() time.Time
	after  func(session.SessionEnded) []string

	width  int
	height int

	feedback   scoring.Feedback
	feedbackAt time.Time
	hasFeed    bool

	ended     *session.SessionEnded
	newBadges []string

	lastScore int
	bestScore int
	hasLast   bool
}

// NewModel constructs a play UI for cfg.
func NewModel(cfg model.Config, opts Options) (*Model, error) {
	m := &Model{
		sched: newFrameScheduler(opts.Frame),
		log:   opts.Logger,
		now:   opts.Now,
		after: opts.AfterSession,
	}
	if m.log == nil {
		m.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.now == nil {
		m.now = time.Now
	}
	sessOpts := []session.Option{
		session.WithLogger(m.log),
		session.WithListener(m.observe),
	}
	if opts.Sink != nil {
		sessOpts = append(sessOpts, session.WithSink(opts.Sink))
	}
	if opts.Rand != nil {
		sessOpts = append(sessOpts, session.WithRand(opts.Rand))
	}
	sess, err := session.New(cfg, sessOpts...)
	if err != nil {
		return nil, err
	}
	m.sess = sess
	m.runner = session.NewRunner(sess, m.sched)
	for _, rec := range opts.History {
		m.record(rec.Result.TotalScore)
	}
	return m, nil
}

// Session exposes the driven session.
func (m *Model) Session() *session.Session { return m.sess }

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case frameMsg:
		m.sched.fire(msg)
		return m, m.sched.drain()
	case tea.KeyMsg:
		if quit := m.handleKey(msg); quit {
			m.runner.Stop()
			return m, tea.Quit
		}
		return m, m.sched.drain()
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) bool {
	now := m.now()
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return true
	case tea.KeySpace, tea.KeyEnter:
		m.primary(now)
		return false
	case tea.KeyRunes:
	default:
		return false
	}
	if len(msg.Runes) != 1 {
		return false
	}
	switch r := msg.Runes[0]; {
	case r == 'q':
		return true
	case r == 'p':
		m.togglePause(now)
	case r == 'r' && m.sess.Phase() == session.PhaseResult:
		m.start(now)
	case r >= '1' && r <= '4':
		m.choose(int(r-'1'), now)
	}
	return false
}

// primary is the space/enter action: start, tap, or restart.
func (m *Model) primary(now time.Time) {
	switch m.sess.Phase() {
	case session.PhaseIdle, session.PhaseResult:
		m.start(now)
	case session.PhasePlaying:
		if m.sess.Variant().MultipleChoice {
			return
		}
		m.input(m.sess.Tap(now))
	}
}

func (m *Model) start(now time.Time) {
	m.ended = nil
	m.newBadges = nil
	m.hasFeed = false
	if err := m.runner.Start(now); err != nil {
		m.log.Warn("failed to start session", "err", err)
	}
}

func (m *Model) choose(idx int, now time.Time) {
	if m.sess.Phase() != session.PhasePlaying || !m.sess.Variant().MultipleChoice {
		return
	}
	st := m.sess.State()
	if st.Active == nil || idx >= len(st.Active.Spec.Choices) {
		return
	}
	m.input(m.sess.Answer(st.Active.Spec.Choices[idx], now))
}

func (m *Model) input(_ model.RoundOutcome, err error) {
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNoLiveStimulus), errors.Is(err, judge.ErrUnsupportedInput):
	default:
		m.log.Warn("input rejected", "err", err)
	}
}

func (m *Model) togglePause(now time.Time) {
	var err error
	switch m.sess.Phase() {
	case session.PhasePlaying:
		err = m.runner.Pause(now)
	case session.PhasePaused:
		err = m.runner.Resume(now)
	default:
		return
	}
	if err != nil {
		m.log.Warn("failed to toggle pause", "err", err)
	}
}

func (m *Model) observe(ev session.Event) {
	switch e := ev.(type) {
	case session.RoundResolved:
		m.feedback = e.Feedback
		m.feedbackAt = m.now()
		m.hasFeed = true
	case session.SessionEnded:
		m.ended = &e
		m.record(e.Result.TotalScore)
		if m.after != nil {
			m.newBadges = m.after(e)
		}
	}
}

func (m *Model) record(score int) {
	m.lastScore = score
	m.hasLast = true
	if score > m.bestScore {
		m.bestScore = score
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var lines []string
	switch m.sess.Phase() {
	case session.PhaseIdle:
		lines = m.viewIdle()
	case session.PhaseCountdown:
		lines = []string{countStyle.Render(fmt.Sprintf("%d", max(m.sess.State().Countdown, 1)))}
	case session.PhasePlaying, session.PhasePaused:
		lines = m.viewPlay()
	case session.PhaseResult:
		lines = m.viewResult()
	}
	content := strings.Join(lines, "\n")
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return content + "\n" + footer
	}
	footerLines := strings.Count(footer, "\n") + 1
	if m.height <= footerLines+1 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	bodyHeight := m.height - footerLines
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	return body + "\n" + lipgloss.PlaceHorizontal(m.width, lipgloss.Center, footer)
}

func (m *Model) viewIdle() []string {
	info, _ := model.LookupModule(m.sess.Config().Module)
	help := "space: tap on strikes · let balls and fakes go"
	if m.sess.Variant().MultipleChoice {
		help = "1-4: pick the number you saw"
	}
	return []string{
		titleStyle.Render(fmt.Sprintf("%s %s", info.Icon, info.Name)),
		footerStyle.Render(fmt.Sprintf("%s · level %d", m.sess.Profile().Label, m.sess.Profile().Level)),
		"",
		help,
		"",
		"press space to start",
	}
}

func (m *Model) fieldSize() (int, int) {
	w, h := m.width, m.height-4
	if w <= 0 || h <= 0 {
		return 40, 14
	}
	return w, h
}

func (m *Model) viewPlay() []string {
	st := m.sess.State()
	w, h := m.fieldSize()
	lines := renderField(st.Active, w, h, !m.sess.Variant().MultipleChoice)
	if st.Phase == session.PhasePaused {
		lines = append(lines, pausedStyle.Render("PAUSED · p to resume"))
	} else {
		lines = append(lines, m.renderFeedback())
	}
	if m.sess.Variant().MultipleChoice {
		lines = append(lines, renderChoices(st.Active))
	}
	return lines
}

func (m *Model) renderFeedback() string {
	if !m.hasFeed || m.now().Sub(m.feedbackAt) > feedbackTTL {
		return ""
	}
	style, ok := feedbackStyle[m.feedback.Kind]
	if !ok {
		style = footerStyle
	}
	return style.Render(m.feedback.Text)
}

func renderChoices(active *approach.State) string {
	if active == nil || !active.Revealed() {
		return footerStyle.Render("watch the ball")
	}
	parts := make([]string, len(active.Spec.Choices))
	for i, c := range active.Spec.Choices {
		parts[i] = fmt.Sprintf("[%d] %d", i+1, c)
	}
	return strings.Join(parts, "   ")
}

func (m *Model) viewResult() []string {
	res, ok := m.sess.Result()
	if !ok {
		return nil
	}
	lines := []string{
		titleStyle.Render("Session complete"),
		"",
		fmt.Sprintf("Score      %d", res.TotalScore),
		fmt.Sprintf("Accuracy   %.0f%% (%d/%d)", res.Accuracy*100, res.CorrectCount, res.TotalAttempts),
		fmt.Sprintf("Reaction   avg %s · best %s", formatMs(res.AvgReactionMs), formatMs(res.BestReactionMs)),
		fmt.Sprintf("Max combo  %d", res.MaxCombo),
	}
	for _, key := range m.newBadges {
		if info, ok := badges.Lookup(key); ok {
			lines = append(lines, fmt.Sprintf("New badge: %s %s", info.Emoji, info.Name))
		}
	}
	if m.ended != nil && m.ended.PersistErr != nil {
		lines = append(lines, warnStyle.Render("result not saved: "+m.ended.PersistErr.Error()))
	}
	return append(lines, "", footerStyle.Render("r: play again · q: quit"))
}

func formatMs(ms int) string {
	if ms <= 0 {
		return "-"
	}
	return fmt.Sprintf("%dms", ms)
}

func (m *Model) renderFooter() string {
	st := m.sess.State()
	segments := []string{}
	switch st.Phase {
	case session.PhasePlaying, session.PhasePaused:
		segments = append(segments,
			fmt.Sprintf("Score %d", st.Score),
			fmt.Sprintf("Combo %d", st.Combo),
			fmt.Sprintf("Time %ds", st.TimeRemainingSec),
		)
		if m.sess.Variant().RoundLimited {
			segments = append(segments, fmt.Sprintf("Round %d/%d", st.RoundsResolved, m.sess.Profile().TargetRoundCount))
		}
	}
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("Last %d", m.lastScore), fmt.Sprintf("Best %d", m.bestScore))
	}
	segments = append(segments, "p pause · q quit")
	return footerStyle.Render(strings.Join(wrapSegments(segments, m.width), "\n"))
}
