// Package statsui provides the Bubble Tea stats browser.
package statsui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/winniek75/baseball-vison.training/internal/model"
	"github.com/winniek75/baseball-vison.training/internal/stats"
	"github.com/winniek75/baseball-vison.training/internal/store"
)

type pane int

const (
	paneOverview pane = iota
	paneSessions
	paneModules
	paneProfile
	paneCount
)

var paneTitles = [paneCount]string{"Overview", "Sessions", "Modules", "Profile"}

var (
	tabOnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFF7E0")).
			Background(lipgloss.Color("#2F5D3A")).
			Padding(0, 2)
	tabOffStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9AA59C")).
			Padding(0, 2)
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5484D"))
)

// Model implements the Bubble Tea stats UI.
type Model struct {
	st  *store.Store
	cfg model.StatsConfig

	report  stats.Report
	earned  []model.EarnedBadge
	loadErr error

	active  pane
	pages   [paneCount]viewport.Model
	history table.Model
	form    *settingsForm

	width  int
	height int
}

// NewModel loads the report for cfg and returns the browser.
func NewModel(st *store.Store, cfg model.StatsConfig) *Model {
	m := &Model{st: st, cfg: cfg, history: newHistoryTable()}
	for i := range m.pages {
		m.pages[i] = viewport.New(0, 0)
	}
	m.reload()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.fillPages()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.form != nil {
			return m, m.updateForm(msg)
		}
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "esc":
		return tea.Quit
	case "tab", "right", "l":
		m.switchPane(1)
		return nil
	case "shift+tab", "left", "h":
		m.switchPane(-1)
		return nil
	case "]":
		m.setWindow(stepWindow(m.cfg.CurveWindow, 1))
		return nil
	case "[":
		m.setWindow(stepWindow(m.cfg.CurveWindow, -1))
		return nil
	case "/", "s":
		m.form = newSettingsForm(m.cfg, m.width)
		return m.form.focusField(0)
	}
	var cmd tea.Cmd
	if m.active == paneSessions {
		m.history, cmd = m.history.Update(msg)
	} else {
		m.pages[m.active], cmd = m.pages[m.active].Update(msg)
	}
	return cmd
}

func (m *Model) updateForm(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.form = nil
		return nil
	case tea.KeyEnter:
		cfg, err := m.form.apply(m.cfg)
		if err != nil {
			m.form.err = err.Error()
			return nil
		}
		m.form = nil
		m.cfg = cfg
		m.reload()
		return nil
	}
	return m.form.update(msg)
}

func (m *Model) switchPane(delta int) {
	m.active = pane((int(m.active) + delta + int(paneCount)) % int(paneCount))
	if m.active == paneSessions {
		m.history.Focus()
	} else {
		m.history.Blur()
	}
}

func (m *Model) setWindow(n int) {
	if n == m.cfg.CurveWindow {
		return
	}
	m.cfg.CurveWindow = n
	m.reload()
}

// reload queries the store and rebuilds every pane.
func (m *Model) reload() {
	ctx := context.Background()
	report, err := stats.BuildReport(ctx, m.st, m.cfg)
	if err != nil {
		m.loadErr = fmt.Errorf("failed to load stats: %w", err)
		return
	}
	earned, err := m.st.ListBadges(ctx, m.cfg.UserID)
	if err != nil {
		m.loadErr = fmt.Errorf("failed to load badges: %w", err)
		return
	}
	m.loadErr = nil
	m.report = report
	m.earned = earned
	m.history.SetRows(historyRows(report.Sessions))
	m.fillPages()
}

func (m *Model) fillPages() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.pages[paneOverview].SetContent(overviewPane(m.report.Sessions, m.cfg.CurveWindow, width))
	m.pages[paneModules].SetContent(modulesPane(m.report.Modules))
	m.pages[paneProfile].SetContent(profilePane(m.report.Profile, m.earned))
}

func (m *Model) resize() {
	h := m.bodyHeight()
	for i := range m.pages {
		m.pages[i].Width = m.width
		m.pages[i].Height = h
	}
	m.history.SetWidth(m.width)
	m.history.SetHeight(h)
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	header := m.header()
	footer := m.footer()
	body := frame(m.body(), m.width, m.bodyHeight())
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) bodyHeight() int {
	return max(m.height-lipgloss.Height(m.header())-lipgloss.Height(m.footer()), 1)
}

func (m *Model) header() string {
	tabs := make([]string, 0, paneCount)
	for i, title := range paneTitles {
		if pane(i) == m.active {
			tabs = append(tabs, tabOnStyle.Render(title))
		} else {
			tabs = append(tabs, tabOffStyle.Render(title))
		}
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	return frame(row+"\n"+dimStyle.Render(describeFilter(m.cfg)), m.width, 2)
}

func (m *Model) footer() string {
	if m.form != nil {
		return dimStyle.Render("tab: next field  enter: apply  esc: cancel")
	}
	help := dimStyle.Render("tab/←/→ pane  ↑/↓ scroll  [/] window  s settings  q quit")
	if m.loadErr != nil {
		return help + "\n" + errStyle.Render(m.loadErr.Error())
	}
	return help
}

func (m *Model) body() string {
	switch {
	case m.form != nil:
		return m.form.view()
	case m.loadErr != nil:
		return "Stats unavailable."
	case m.active == paneSessions && len(m.report.Sessions) == 0:
		return "No sessions found."
	case m.active == paneSessions:
		return m.history.View()
	}
	return m.pages[m.active].View()
}

func describeFilter(cfg model.StatsConfig) string {
	parts := []string{"user " + cfg.UserID}
	if cfg.Module != "" {
		parts = append(parts, "module "+string(cfg.Module))
	}
	if cfg.Since != nil {
		parts = append(parts, "since "+cfg.Since.Format(dateLayout))
	}
	if cfg.Last > 0 {
		parts = append(parts, fmt.Sprintf("last %d", cfg.Last))
	}
	parts = append(parts, fmt.Sprintf("window %d", cfg.CurveWindow))
	return strings.Join(parts, " · ")
}
