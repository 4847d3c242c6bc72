// Package generator builds round stimulus sequences.
package generator

import (
	"errors"
	"fmt"
	"time"

	"github.com/winniek75/baseball-vison.training/internal/difficulty"
	"github.com/winniek75/baseball-vison.training/internal/model"
	"github.com/winniek75/baseball-vison.training/internal/rng"
)

const (
	choiceCount   = 4
	decoyCount    = choiceCount - 1
	decoySpread   = 10
	maxDecoyDraws = 64
	defaultLoNum  = 1
	defaultHiNum  = 99
)

// ErrRangeTooSmall is returned when a numeric range cannot hold three decoys.
var ErrRangeTooSmall = errors.New("numeric range too small for decoys")

// Generator produces randomized round specs.
type Generator struct {
	rnd     rng.Source
	variant model.Variant
	seq     int
}

// New returns a Generator drawing from src.
func New(src rng.Source, variant model.Variant) *Generator {
	return &Generator{rnd: src, variant: variant}
}

// NextRound draws the next round. Fake is drawn first; the strike/ball split
// is only drawn for non-fake rounds.
func (g *Generator) NextRound(p difficulty.Profile, createdAt time.Duration) model.RoundSpec {
	g.seq++
	spec := model.RoundSpec{
		ID:        fmt.Sprintf("r%03d", g.seq),
		Seq:       g.seq,
		CreatedAt: createdAt,
	}

	switch {
	case g.variant.Fakes && g.rnd.Float64() < p.FakeRatio:
		spec.Kind = model.KindFake
	case g.variant.StrikeBall:
		if g.rnd.Float64() < p.StrikeRatio {
			spec.Kind = model.KindStrike
		} else {
			spec.Kind = model.KindBall
		}
	default:
		spec.Kind = model.KindTarget
	}

	if g.variant.StrikeBall {
		spec.Pitch = model.Pitches[g.rnd.Intn(len(model.Pitches))]
	} else {
		spec.Pitch = model.Pitches[0]
	}

	if g.variant.ShowsNumber {
		lo, hi := p.NumberRange()
		spec.DisplayedNumber = lo + g.rnd.Intn(hi-lo+1)
		spec.HasNumber = true
		if g.variant.MultipleChoice {
			choices, err := GenerateChoicesInRange(g.rnd, spec.DisplayedNumber, lo, hi)
			if err != nil {
				// Profile ranges always admit three decoys.
				panic(err)
			}
			spec.Choices = choices
		}
	}
	return spec
}

// GenerateChoices returns four distinct values in [1, 99] including correct.
func GenerateChoices(src rng.Source, correct int) ([]int, error) {
	return GenerateChoicesInRange(src, correct, defaultLoNum, defaultHiNum)
}

// GenerateChoicesInRange returns correct plus three distinct decoys drawn
// within ±10 of it, clamped to [lo, hi], in shuffled order.
func GenerateChoicesInRange(src rng.Source, correct, lo, hi int) ([]int, error) {
	if correct < lo || correct > hi {
		return nil, fmt.Errorf("correct value %d outside range %d-%d", correct, lo, hi)
	}
	if hi-lo+1 < choiceCount {
		return nil, fmt.Errorf("%w: %d-%d", ErrRangeTooSmall, lo, hi)
	}

	// Every value in [max(lo,c-10), min(hi,c+9)] is reachable; widen to the
	// full range when clamping leaves fewer than three candidates.
	spreadLo, spreadHi := correct-decoySpread, correct+decoySpread-1
	if clampInt(spreadHi, lo, hi)-clampInt(spreadLo, lo, hi) < decoyCount {
		spreadLo, spreadHi = lo, hi
	}

	choices := make([]int, 0, choiceCount)
	choices = append(choices, correct)
	seen := map[int]struct{}{correct: {}}
	for i := 0; i < maxDecoyDraws && len(choices) < choiceCount; i++ {
		candidate := clampInt(spreadLo+src.Intn(spreadHi-spreadLo+1), lo, hi)
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		choices = append(choices, candidate)
	}
	// A source that keeps repeating itself falls back to sweeping the
	// window, then the full range, for the first unused values.
	for _, bounds := range [][2]int{{max(spreadLo, lo), min(spreadHi, hi)}, {lo, hi}} {
		for v := bounds[0]; v <= bounds[1] && len(choices) < choiceCount; v++ {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			choices = append(choices, v)
		}
	}
	rng.Shuffle(src, choices)
	return choices, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
