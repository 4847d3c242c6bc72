package statsui

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/winniek75/baseball-vison.training/internal/badges"
	"github.com/winniek75/baseball-vison.training/internal/model"
	"github.com/winniek75/baseball-vison.training/internal/stats"
)

const curveHeight = 8

var (
	tileStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#2F5D3A")).
			Padding(0, 2)
	tileLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9AA59C"))
	tileValueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFF7E0"))
)

func overviewPane(sessions []model.SessionRecord, window, width int) string {
	if len(sessions) == 0 {
		return "No sessions found. Play a round first."
	}
	var b strings.Builder
	b.WriteString(tiles(sessions, width))
	b.WriteString("\n\n")
	if err := stats.RenderCurvesWithSize(&b, sessions, window, width, curveHeight, true); err != nil {
		fmt.Fprintf(&b, "Curves unavailable: %v", err)
	}
	return strings.TrimRight(b.String(), "\n")
}

// tiles lays out headline numbers, wrapping onto a second row on narrow
// terminals.
func tiles(sessions []model.SessionRecord, width int) string {
	best, bestReaction := 0, 0
	var scoreSum, accSum float64
	for _, s := range sessions {
		r := s.Result
		best = max(best, r.TotalScore)
		scoreSum += float64(r.TotalScore)
		accSum += r.Accuracy
		if r.BestReactionMs > 0 && (bestReaction == 0 || r.BestReactionMs < bestReaction) {
			bestReaction = r.BestReactionMs
		}
	}
	n := float64(len(sessions))
	items := []string{
		tile("Sessions", strconv.Itoa(len(sessions))),
		tile("Best Score", strconv.Itoa(best)),
		tile("Avg Score", fmt.Sprintf("%.0f", scoreSum/n)),
		tile("Avg Accuracy", fmt.Sprintf("%.1f%%", accSum/n*100)),
		tile("Best Reaction", msText(bestReaction)),
	}
	var rows []string
	var row []string
	used := 0
	for _, t := range items {
		w := lipgloss.Width(t)
		if len(row) > 0 && used+w > width {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row, used = nil, 0
		}
		row = append(row, t)
		used += w
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func tile(label, value string) string {
	return tileStyle.Render(tileLabelStyle.Render(label) + "\n" + tileValueStyle.Render(value))
}

func modulesPane(aggs []stats.ModuleAggregate) string {
	var buf bytes.Buffer
	if err := stats.RenderModuleTable(&buf, aggs); err != nil {
		return fmt.Sprintf("Modules unavailable: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func profilePane(p stats.VisionProfile, earned []model.EarnedBadge) string {
	var buf bytes.Buffer
	if err := stats.RenderProfile(&buf, p); err != nil {
		return fmt.Sprintf("Profile unavailable: %v", err)
	}
	if err := badges.Render(&buf, earned); err != nil {
		return fmt.Sprintf("Badges unavailable: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

var historyColumns = []table.Column{
	{Title: "Played", Width: 16},
	{Title: "Module", Width: 18},
	{Title: "Lv", Width: 3},
	{Title: "Score", Width: 6},
	{Title: "Acc", Width: 7},
	{Title: "Avg ms", Width: 7},
	{Title: "Best ms", Width: 7},
	{Title: "Combo", Width: 5},
}

func newHistoryTable() table.Model {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Bold(true).
		Foreground(lipgloss.Color("#FFF7E0")).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(lipgloss.Color("#2F5D3A"))
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FFF7E0")).
		Background(lipgloss.Color("#2F5D3A"))
	return table.New(table.WithColumns(historyColumns), table.WithStyles(styles))
}

// historyRows lists sessions newest first.
func historyRows(sessions []model.SessionRecord) []table.Row {
	rows := make([]table.Row, 0, len(sessions))
	for i := len(sessions) - 1; i >= 0; i-- {
		rec := sessions[i]
		r := rec.Result
		name := string(r.ModuleID)
		if info, err := model.LookupModule(r.ModuleID); err == nil {
			name = info.Name
		}
		rows = append(rows, table.Row{
			rec.PlayedAt.Local().Format("2006-01-02 15:04"),
			name,
			strconv.Itoa(int(r.Difficulty)),
			strconv.Itoa(r.TotalScore),
			fmt.Sprintf("%.1f%%", r.Accuracy*100),
			msText(r.AvgReactionMs),
			msText(r.BestReactionMs),
			strconv.Itoa(r.MaxCombo),
		})
	}
	return rows
}

func msText(ms int) string {
	if ms <= 0 {
		return "-"
	}
	return strconv.Itoa(ms)
}
