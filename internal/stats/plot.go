package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Series represents a named data series for plotting.
type Series struct {
	Name   string
	Unit   string
	Values []float64
}

const (
	defaultPlotHeight   = 6
	minPlotWidth        = 10
	axisLabelWidth      = 7
	axisSeparator       = " │ "
	terminalWidthBackup = 80
)

var seriesColors = []lipgloss.Color{"6", "5", "3", "2", "4"}

// canvas is a grid of braille cells; each cell holds 2x4 dots.
type canvas struct {
	width  int
	height int
	cells  [][]uint8
}

func newCanvas(width, height int) *canvas {
	cells := make([][]uint8, height)
	for y := range cells {
		cells[y] = make([]uint8, width)
	}
	return &canvas{width: width, height: height, cells: cells}
}

// dot sets the dot at pixel (x, y); y grows downwards.
func (c *canvas) dot(x, y int) {
	cx, cy := x/2, y/4
	if x < 0 || y < 0 || cx >= c.width || cy >= c.height {
		return
	}
	c.cells[cy][cx] |= brailleBit[x%2][y%4]
}

func (c *canvas) line(x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	e := dx + dy
	for {
		c.dot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (c *canvas) row(y int) string {
	var b strings.Builder
	for _, mask := range c.cells[y] {
		b.WriteRune(rune(0x2800 + int(mask)))
	}
	return b.String()
}

var brailleBit = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// PlotSeries renders one braille chart per series, each with its own scale.
func PlotSeries(w io.Writer, title string, series []Series, width, height int) error {
	return PlotSeriesWithColor(w, title, series, width, height, false)
}

// PlotSeriesWithColor renders the charts with optional forced color output.
func PlotSeriesWithColor(w io.Writer, title string, series []Series, width, height int, forceColor bool) error {
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = PlotWidthFor(terminalWidth())
	}
	width = max(width, minPlotWidth)
	useColor := shouldUseColor(w, forceColor)

	drawn := false
	for i, s := range series {
		if len(s.Values) == 0 {
			continue
		}
		if !drawn && title != "" {
			if _, err := fmt.Fprintln(w, title); err != nil {
				return err
			}
		}
		drawn = true
		var style *lipgloss.Style
		if useColor {
			st := lipgloss.NewStyle().Foreground(seriesColors[i%len(seriesColors)])
			style = &st
		}
		if err := plotOne(w, s, width, height, style); err != nil {
			return err
		}
	}
	if drawn {
		_, err := fmt.Fprintln(w, "")
		return err
	}
	return nil
}

func plotOne(w io.Writer, s Series, width, height int, style *lipgloss.Style) error {
	values := resampleSeries(s.Values, width)
	lo, hi := seriesBounds(s.Values)
	if math.Abs(hi-lo) < 1e-9 {
		lo--
		hi++
	}

	c := newCanvas(width, height)
	pixels := height * 4
	prevX, prevY := -1, -1
	for x, v := range values {
		px, py := x*2, valueToRow(v, lo, hi, pixels)
		if prevX < 0 {
			c.dot(px, py)
		} else {
			c.line(prevX, prevY, px, py)
		}
		prevX, prevY = px, py
	}

	header := s.Name
	if s.Unit != "" {
		header += " (" + s.Unit + ")"
	}
	if _, err := fmt.Fprintf(w, "%s  last=%s\n", header, formatValue(s.Values[len(s.Values)-1])); err != nil {
		return err
	}
	for y := 0; y < height; y++ {
		label := ""
		switch y {
		case 0:
			label = formatValue(hi)
		case height - 1:
			label = formatValue(lo)
		}
		row := c.row(y)
		if style != nil {
			row = style.Render(row)
		}
		if _, err := fmt.Fprintf(w, "%s%s%s\n", padLeft(label, axisLabelWidth), axisSeparator, row); err != nil {
			return err
		}
	}
	return nil
}

func formatValue(v float64) string {
	if math.Abs(v) >= 100 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

func padLeft(s string, width int) string {
	if pad := width - runewidth.StringWidth(s); pad > 0 {
		return strings.Repeat(" ", pad) + s
	}
	return s
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	return max(totalWidth-axisLabelWidth-runewidth.StringWidth(axisSeparator), minPlotWidth)
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

// resampleSeries maps values onto width columns: buckets are averaged when
// shrinking and linearly interpolated when stretching.
func resampleSeries(values []float64, width int) []float64 {
	if len(values) == 0 || width <= 0 {
		return nil
	}
	out := make([]float64, width)
	n := len(values)
	switch {
	case n == width:
		copy(out, values)
	case n > width:
		for i := range out {
			start := i * n / width
			end := max((i+1)*n/width, start+1)
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
	case n == 1 || width == 1:
		for i := range out {
			out[i] = values[0]
		}
	default:
		for i := range out {
			pos := float64(i) * float64(n-1) / float64(width-1)
			idx := int(pos)
			if idx >= n-1 {
				out[i] = values[n-1]
				continue
			}
			frac := pos - float64(idx)
			out[i] = values[idx]*(1-frac) + values[idx+1]*frac
		}
	}
	return out
}

func valueToRow(v, lo, hi float64, rows int) int {
	if rows <= 1 {
		return 0
	}
	pos := (v - lo) / (hi - lo)
	row := int(math.Round((1 - pos) * float64(rows-1)))
	return max(0, min(row, rows-1))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
