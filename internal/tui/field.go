package tui

import (
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/winniek75/baseball-vison.training/internal/approach"
)

// cell is one terminal column of the play field. A wide rune fills its own
// cell and leaves the following one empty.
type cell struct {
	s     string
	width int
}

type field struct {
	w, h  int
	cells [][]cell
}

const (
	ballGlyph  = '●'
	zoneGlyphH = '─'
	zoneGlyphV = '│'
	// cellAspect compensates for terminal cells being about twice as tall as wide.
	cellAspect = 2.0
)

func newField(w, h int) *field {
	f := &field{w: w, h: h, cells: make([][]cell, h)}
	for y := range f.cells {
		row := make([]cell, w)
		for x := range row {
			row[x] = cell{s: " ", width: 1}
		}
		f.cells[y] = row
	}
	return f
}

func (f *field) set(x, y int, r rune, style lipgloss.Style) {
	if y < 0 || y >= f.h || x < 0 || x >= f.w {
		return
	}
	w := runewidth.RuneWidth(r)
	if w == 0 {
		return
	}
	if w == 2 && x+1 >= f.w {
		return
	}
	f.cells[y][x] = cell{s: style.Render(string(r)), width: w}
	if w == 2 {
		f.cells[y][x+1] = cell{}
	}
}

// text writes s centered on column cx as a single styled run.
func (f *field) text(cx, y int, s string, style lipgloss.Style) {
	w := runewidth.StringWidth(s)
	x := cx - w/2
	if y < 0 || y >= f.h || x < 0 || x+w > f.w || w == 0 {
		return
	}
	f.cells[y][x] = cell{s: style.Render(s), width: w}
	for i := 1; i < w; i++ {
		f.cells[y][x+i] = cell{}
	}
}

func (f *field) lines() []string {
	out := make([]string, f.h)
	for y, row := range f.cells {
		var b strings.Builder
		for _, c := range row {
			b.WriteString(c.s)
		}
		out[y] = b.String()
	}
	return out
}

// plate returns the center of the strike zone.
func (f *field) plate() (int, int) {
	return f.w / 2, int(float64(f.h-1) * 0.72)
}

// drawZone outlines the strike zone the tap variant aims at.
func (f *field) drawZone() {
	cx, cy := f.plate()
	hw := max(f.w/10, 3)
	hh := max(f.h/6, 1)
	for x := cx - hw; x <= cx+hw; x++ {
		f.set(x, cy-hh, zoneGlyphH, zoneStyle)
		f.set(x, cy+hh, zoneGlyphH, zoneStyle)
	}
	for y := cy - hh + 1; y < cy+hh; y++ {
		f.set(cx-hw, y, zoneGlyphV, zoneStyle)
		f.set(cx+hw, y, zoneGlyphV, zoneStyle)
	}
}

// ballCenter maps approach coordinates onto the field. The ball starts
// small near the top and grows as it nears the plate.
func (f *field) ballCenter(st *approach.State) (int, int) {
	px, py := f.plate()
	top := float64(f.h) * 0.15
	y := top + (float64(py)-top)*st.Depth + st.Y*float64(f.h)*0.2
	x := float64(px) + st.X*float64(f.w)/4
	return int(math.Round(x)), int(math.Round(y))
}

// drawBall paints the stimulus as a disc sized by its radius, with the
// number on top once it is readable.
func (f *field) drawBall(st *approach.State) {
	cx, cy := f.ballCenter(st)
	ry := st.Radius * float64(f.h) / 5
	rx := ry * cellAspect
	if ry < 0.5 {
		f.set(cx, cy, ballGlyph, ballStyle)
	} else {
		iy, ix := int(math.Ceil(ry)), int(math.Ceil(rx))
		for dy := -iy; dy <= iy; dy++ {
			for dx := -ix; dx <= ix; dx++ {
				nx, ny := float64(dx)/rx, float64(dy)/ry
				if nx*nx+ny*ny <= 1 {
					f.set(cx+dx, cy+dy, ballGlyph, ballStyle)
				}
			}
		}
	}
	if st.Spec.HasNumber && st.Revealed() {
		f.text(cx, cy, strconv.Itoa(st.Spec.DisplayedNumber), numberStyle)
	}
}

// renderField draws the zone and the live stimulus, if any.
func renderField(st *approach.State, w, h int, showZone bool) []string {
	if w <= 0 || h <= 0 {
		return nil
	}
	f := newField(w, h)
	if showZone {
		f.drawZone()
	}
	if st != nil {
		f.drawBall(st)
	}
	return f.lines()
}
