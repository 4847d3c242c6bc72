package statsui

import "github.com/charmbracelet/lipgloss"

// frame clips s to w columns and h rows, then pads it to exactly that size.
func frame(s string, w, h int) string {
	if w <= 0 || h <= 0 {
		return s
	}
	clipped := lipgloss.NewStyle().MaxWidth(w).MaxHeight(h).Render(s)
	return lipgloss.NewStyle().Width(w).Height(h).Render(clipped)
}
