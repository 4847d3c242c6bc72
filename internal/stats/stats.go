// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/winniek75/baseball-vison.training/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Meta carries the session facts that are not derivable from rounds.
type Meta struct {
	ModuleID    model.ModuleID
	Difficulty  model.Difficulty
	DurationSec int
	Seed        int64
	StartedAt   time.Time
	EndedAt     time.Time
}

// Aggregate reduces a round history into a session result. Only counted
// rounds enter the attempt count; only timed rounds with a positive
// reaction enter reaction stats, whether or not the input was correct.
func Aggregate(history []model.RoundOutcome, meta Meta) model.SessionResult {
	res := model.SessionResult{
		Difficulty:  meta.Difficulty,
		DurationSec: meta.DurationSec,
		ModuleID:    meta.ModuleID,
		Seed:        meta.Seed,
		StartedAt:   meta.StartedAt,
		EndedAt:     meta.EndedAt,
	}

	var reactionSum float64
	timed := 0
	best := math.Inf(1)
	combo := 0
	for _, o := range history {
		res.TotalScore += o.PointsAwarded
		if o.Timed && o.ReactionMs > 0 {
			timed++
			reactionSum += o.ReactionMs
			if o.ReactionMs < best {
				best = o.ReactionMs
			}
		}
		if !o.Counted {
			continue
		}
		res.TotalAttempts++
		if o.IsCorrect {
			res.CorrectCount++
			combo++
			if combo > res.MaxCombo {
				res.MaxCombo = combo
			}
		} else {
			combo = 0
		}
	}

	if res.TotalAttempts > 0 {
		res.Accuracy = float64(res.CorrectCount) / float64(res.TotalAttempts)
	}
	if timed > 0 {
		res.AvgReactionMs = int(math.Round(reactionSum / float64(timed)))
		res.BestReactionMs = int(math.Round(best))
	}
	return res
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(min(i+1, window))
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := seriesBounds(values)
	if math.Abs(hi-lo) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - lo) / (hi - lo)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints a summary block for sessions.
func RenderSummary(w io.Writer, sessions []model.SessionRecord) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	var totalScore, totalAcc float64
	bestScore := 0
	var reactionSum float64
	reactionCount := 0
	bestReaction := 0
	for _, s := range sessions {
		r := s.Result
		totalScore += float64(r.TotalScore)
		totalAcc += r.Accuracy
		bestScore = max(bestScore, r.TotalScore)
		if r.AvgReactionMs > 0 {
			reactionSum += float64(r.AvgReactionMs)
			reactionCount++
		}
		if r.BestReactionMs > 0 && (bestReaction == 0 || r.BestReactionMs < bestReaction) {
			bestReaction = r.BestReactionMs
		}
	}
	count := float64(len(sessions))
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", len(sessions)),
		fmt.Sprintf("Avg Score: %.1f", totalScore/count),
		fmt.Sprintf("Best Score: %d", bestScore),
		fmt.Sprintf("Avg Accuracy: %.2f%%", (totalAcc/count)*100),
	}
	if reactionCount > 0 {
		lines = append(lines,
			fmt.Sprintf("Avg Reaction: %.0f ms", reactionSum/float64(reactionCount)),
			fmt.Sprintf("Best Reaction: %d ms", bestReaction),
		)
	} else {
		lines = append(lines, "Avg Reaction: -", "Best Reaction: -")
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// CurveSeries returns the smoothed score, accuracy and reaction series.
// Sessions without timed rounds carry the previous reaction value forward
// so they do not drag the curve to zero.
func CurveSeries(sessions []model.SessionRecord, window int) []Series {
	if len(sessions) == 0 {
		return nil
	}
	scores := make([]float64, len(sessions))
	accs := make([]float64, len(sessions))
	reactions := make([]float64, 0, len(sessions))
	last := 0.0
	for i, s := range sessions {
		scores[i] = float64(s.Result.TotalScore)
		accs[i] = s.Result.Accuracy * 100
		if s.Result.AvgReactionMs > 0 {
			last = float64(s.Result.AvgReactionMs)
		}
		if last > 0 {
			reactions = append(reactions, last)
		}
	}
	return []Series{
		{Name: "Score", Unit: "pts", Values: MovingAverage(scores, window)},
		{Name: "Accuracy", Unit: "%", Values: MovingAverage(accs, window)},
		{Name: "Reaction", Unit: "ms", Values: MovingAverage(reactions, window)},
	}
}

// RenderCurves prints learning curves for score, accuracy and reaction time.
func RenderCurves(w io.Writer, sessions []model.SessionRecord, window int) error {
	return RenderCurvesWithSize(w, sessions, window, 0, 6, false)
}

// RenderCurvesWithSize prints learning curves sized to a given total width.
func RenderCurvesWithSize(w io.Writer, sessions []model.SessionRecord, window, totalWidth, height int, useColor bool) error {
	series := CurveSeries(sessions, window)
	if len(series) == 0 {
		return nil
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	return PlotSeriesWithColor(w, "Learning Curves", series, width, height, useColor)
}

// ModuleAggregate summarizes all sessions of one module.
type ModuleAggregate struct {
	Module        model.ModuleID
	Sessions      int
	BestScore     int
	AvgAccuracy   float64
	AvgReactionMs float64
	MaxLevel      model.Difficulty
}

// ModuleAggregates groups sessions by module in catalogue order.
func ModuleAggregates(sessions []model.SessionRecord) []ModuleAggregate {
	type acc struct {
		ModuleAggregate
		accSum      float64
		reactionSum float64
		reactionN   int
	}
	byModule := map[model.ModuleID]*acc{}
	for _, s := range sessions {
		r := s.Result
		a, ok := byModule[r.ModuleID]
		if !ok {
			a = &acc{ModuleAggregate: ModuleAggregate{Module: r.ModuleID}}
			byModule[r.ModuleID] = a
		}
		a.Sessions++
		a.BestScore = max(a.BestScore, r.TotalScore)
		a.MaxLevel = max(a.MaxLevel, r.Difficulty)
		a.accSum += r.Accuracy
		if r.AvgReactionMs > 0 {
			a.reactionSum += float64(r.AvgReactionMs)
			a.reactionN++
		}
	}

	out := make([]ModuleAggregate, 0, len(byModule))
	for _, a := range byModule {
		agg := a.ModuleAggregate
		agg.AvgAccuracy = a.accSum / float64(a.Sessions)
		if a.reactionN > 0 {
			agg.AvgReactionMs = a.reactionSum / float64(a.reactionN)
		}
		out = append(out, agg)
	}
	sort.Slice(out, func(i, j int) bool {
		return moduleOrder(out[i].Module) < moduleOrder(out[j].Module)
	})
	return out
}

func moduleOrder(id model.ModuleID) int {
	for i, m := range model.Modules {
		if m.ID == id {
			return i
		}
	}
	return len(model.Modules)
}

// RenderModuleTable prints per-module aggregates.
func RenderModuleTable(w io.Writer, aggs []ModuleAggregate) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No module stats found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Per-Module"); err != nil {
		return err
	}
	tbl := newTextTable(
		column{title: "Module"},
		column{title: "Sessions", align: alignRight},
		column{title: "Best", align: alignRight},
		column{title: "Accuracy", align: alignRight},
		column{title: "Reaction (ms)", align: alignRight},
		column{title: "Max Lv", align: alignRight},
	)
	for _, a := range aggs {
		reaction := "-"
		if a.AvgReactionMs > 0 {
			reaction = fmt.Sprintf("%.0f", a.AvgReactionMs)
		}
		tbl.add(
			moduleCell(a.Module),
			fmt.Sprintf("%d", a.Sessions),
			fmt.Sprintf("%d", a.BestScore),
			fmt.Sprintf("%.1f%%", a.AvgAccuracy*100),
			reaction,
			fmt.Sprintf("%d", a.MaxLevel),
		)
	}
	if err := tbl.write(w); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderHistory prints one row per session, newest first.
func RenderHistory(w io.Writer, sessions []model.SessionRecord) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	tbl := newTextTable(
		column{title: "Played"},
		column{title: "Module"},
		column{title: "Lv", align: alignRight},
		column{title: "Score", align: alignRight},
		column{title: "Accuracy", align: alignRight},
		column{title: "Avg (ms)", align: alignRight},
		column{title: "Best (ms)", align: alignRight},
		column{title: "Combo", align: alignRight},
	)
	for i := len(sessions) - 1; i >= 0; i-- {
		s := sessions[i]
		r := s.Result
		tbl.add(
			s.PlayedAt.Local().Format("2006-01-02 15:04"),
			moduleCell(r.ModuleID),
			fmt.Sprintf("%d", r.Difficulty),
			fmt.Sprintf("%d", r.TotalScore),
			fmt.Sprintf("%.1f%%", r.Accuracy*100),
			msOrDash(r.AvgReactionMs),
			msOrDash(r.BestReactionMs),
			fmt.Sprintf("%d", r.MaxCombo),
		)
	}
	return tbl.write(w)
}

func msOrDash(ms int) string {
	if ms <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", ms)
}

func seriesBounds(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
