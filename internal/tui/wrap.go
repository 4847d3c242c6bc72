package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const segmentGap = "  "

// wrapSegments packs HUD segments into lines no wider than width. A segment
// is never split; one wider than width gets a line of its own.
func wrapSegments(segments []string, width int) []string {
	if len(segments) == 0 {
		return nil
	}
	if width <= 0 {
		return []string{strings.Join(segments, segmentGap)}
	}
	gap := runewidth.StringWidth(segmentGap)
	var lines []string
	var line []string
	lineWidth := 0
	for _, seg := range segments {
		w := runewidth.StringWidth(seg)
		if len(line) > 0 && lineWidth+gap+w > width {
			lines = append(lines, strings.Join(line, segmentGap))
			line = line[:0]
			lineWidth = 0
		}
		if len(line) > 0 {
			lineWidth += gap
		}
		line = append(line, seg)
		lineWidth += w
	}
	return append(lines, strings.Join(line, segmentGap))
}
