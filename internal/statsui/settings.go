package statsui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/winniek75/baseball-vison.training/internal/model"
)

const dateLayout = "2006-01-02"

// curveWindows are the moving-average widths reachable with [ and ].
var curveWindows = []int{1, 3, 5, 10, 20, 50}

// stepWindow moves n to the neighbouring entry of curveWindows in direction
// dir. Values between entries snap to the next one in that direction; n is
// kept when there is nothing further that way.
func stepWindow(n, dir int) int {
	if dir > 0 {
		for _, w := range curveWindows {
			if w > n {
				return w
			}
		}
		return n
	}
	for i := len(curveWindows) - 1; i >= 0; i-- {
		if curveWindows[i] < n {
			return curveWindows[i]
		}
	}
	return n
}

type settingField struct {
	input textinput.Model
	apply func(value string, cfg *model.StatsConfig) error
}

// settingsForm edits the report filters. Changes apply all at once.
type settingsForm struct {
	fields []settingField
	focus  int
	err    string
}

func newSettingsForm(cfg model.StatsConfig, width int) *settingsForm {
	since, last := "", ""
	if cfg.Since != nil {
		since = cfg.Since.Format(dateLayout)
	}
	if cfg.Last > 0 {
		last = strconv.Itoa(cfg.Last)
	}
	f := &settingsForm{fields: []settingField{
		{input: settingInput("Module      ", string(cfg.Module), "all modules", width), apply: applyModule},
		{input: settingInput("Since       ", since, dateLayout, width), apply: applySince},
		{input: settingInput("Last        ", last, "all sessions", width), apply: applyLast},
		{input: settingInput("Curve window", strconv.Itoa(cfg.CurveWindow), "", width), apply: applyWindow},
	}}
	return f
}

func settingInput(label, value, placeholder string, width int) textinput.Model {
	in := textinput.New()
	in.Prompt = label + " > "
	in.Placeholder = placeholder
	in.SetValue(value)
	in.Cursor.SetMode(cursor.CursorBlink)
	if width > 0 {
		in.Width = max(width-len(in.Prompt)-1, 8)
	}
	return in
}

func (f *settingsForm) focusField(i int) tea.Cmd {
	n := len(f.fields)
	f.focus = (i%n + n) % n
	var cmd tea.Cmd
	for j := range f.fields {
		if j == f.focus {
			cmd = f.fields[j].input.Focus()
			continue
		}
		f.fields[j].input.Blur()
	}
	return cmd
}

func (f *settingsForm) update(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyTab, tea.KeyDown:
		return f.focusField(f.focus + 1)
	case tea.KeyShiftTab, tea.KeyUp:
		return f.focusField(f.focus - 1)
	}
	var cmd tea.Cmd
	f.fields[f.focus].input, cmd = f.fields[f.focus].input.Update(msg)
	return cmd
}

// apply returns base with every field applied, or the first field error.
func (f *settingsForm) apply(base model.StatsConfig) (model.StatsConfig, error) {
	cfg := base
	for _, field := range f.fields {
		if err := field.apply(strings.TrimSpace(field.input.Value()), &cfg); err != nil {
			return base, err
		}
	}
	return cfg, nil
}

func (f *settingsForm) view() string {
	var b strings.Builder
	b.WriteString("Report settings\n\n")
	for _, field := range f.fields {
		b.WriteString(field.input.View())
		b.WriteByte('\n')
	}
	if f.err != "" {
		b.WriteByte('\n')
		b.WriteString(errStyle.Render(f.err))
	}
	return strings.TrimRight(b.String(), "\n")
}

func applyModule(v string, cfg *model.StatsConfig) error {
	if v == "" {
		cfg.Module = ""
		return nil
	}
	if _, err := model.LookupModule(model.ModuleID(v)); err != nil {
		return err
	}
	cfg.Module = model.ModuleID(v)
	return nil
}

func applySince(v string, cfg *model.StatsConfig) error {
	if v == "" {
		cfg.Since = nil
		return nil
	}
	t, err := time.ParseInLocation(dateLayout, v, time.Local)
	if err != nil {
		return fmt.Errorf("since must look like %s", dateLayout)
	}
	cfg.Since = &t
	return nil
}

func applyLast(v string, cfg *model.StatsConfig) error {
	if v == "" {
		cfg.Last = 0
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fmt.Errorf("last must be a whole number >= 0")
	}
	cfg.Last = n
	return nil
}

func applyWindow(v string, cfg *model.StatsConfig) error {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fmt.Errorf("curve window must be a whole number >= 1")
	}
	cfg.CurveWindow = n
	return nil
}
