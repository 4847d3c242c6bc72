package stats

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/winniek75/baseball-vison.training/internal/model"
)

// iconCells is the terminal width reserved for a module icon. Some
// catalogue icons render as one cell without a variation selector, so
// they are padded to a common width.
const iconCells = 2

type align int

const (
	alignLeft align = iota
	alignRight
)

type column struct {
	title string
	align align
}

// textTable lays out plain-text report columns by terminal cell width.
type textTable struct {
	cols []column
	rows [][]string
}

func newTextTable(cols ...column) *textTable {
	return &textTable{cols: cols}
}

// add appends a row; missing cells render empty and extra cells are dropped.
func (t *textTable) add(cells ...string) {
	row := make([]string, len(t.cols))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

func (t *textTable) widths() []int {
	widths := make([]int, len(t.cols))
	for i, c := range t.cols {
		widths[i] = runewidth.StringWidth(c.title)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	return widths
}

func (t *textTable) lines() []string {
	if len(t.cols) == 0 {
		return nil
	}
	widths := t.widths()
	titles := make([]string, len(t.cols))
	for i, c := range t.cols {
		titles[i] = c.title
	}
	out := make([]string, 0, len(t.rows)+1)
	out = append(out, t.line(titles, widths))
	for _, row := range t.rows {
		out = append(out, t.line(row, widths))
	}
	return out
}

func (t *textTable) line(cells []string, widths []int) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		if t.cols[i].align == alignRight {
			parts[i] = runewidth.FillLeft(cell, widths[i])
		} else {
			parts[i] = runewidth.FillRight(cell, widths[i])
		}
	}
	// Trailing padding on the last left-aligned column is noise.
	return strings.TrimRight(strings.Join(parts, " "), " ")
}

func (t *textTable) write(w io.Writer) error {
	for _, line := range t.lines() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// moduleCell renders a module as its padded icon and display name.
func moduleCell(id model.ModuleID) string {
	info, err := model.LookupModule(id)
	if err != nil {
		return string(id)
	}
	return runewidth.FillRight(info.Icon, iconCells) + " " + info.Name
}
