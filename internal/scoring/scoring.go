// Package scoring turns judged reactions into points and tracks combos.
package scoring

import (
	"math"

	"github.com/winniek75/baseball-vison.training/internal/model"
)

// FakeIgnoreBonus is awarded for letting a fake pass untouched.
const FakeIgnoreBonus = 50

const (
	basePoints = 100
	comboStep  = 10
	comboCap   = 200
)

// tierSteps maps ratio ceilings to tiers and multipliers, fastest first.
var tierSteps = []struct {
	maxRatio   float64
	tier       model.Tier
	multiplier float64
}{
	{0.3, model.TierLightning, 3.0},
	{0.5, model.TierPerfect, 2.5},
	{0.7, model.TierGreat, 2.0},
	{0.9, model.TierGood, 1.5},
}

func ratio(reactionMs, windowMs float64) float64 {
	if windowMs <= 0 {
		return math.Inf(1)
	}
	return reactionMs / windowMs
}

// MultiplierFor is a step function of reactionMs/windowMs. Boundaries
// belong to the faster tier.
func MultiplierFor(reactionMs, windowMs float64) float64 {
	r := ratio(reactionMs, windowMs)
	for _, s := range tierSteps {
		if r <= s.maxRatio {
			return s.multiplier
		}
	}
	return 1.0
}

// TierFor grades a reaction with the same steps as MultiplierFor.
func TierFor(reactionMs, windowMs float64) model.Tier {
	r := ratio(reactionMs, windowMs)
	for _, s := range tierSteps {
		if r <= s.maxRatio {
			return s.tier
		}
	}
	return model.TierOK
}

// ComboBonus returns the capped bonus for the combo held before a round.
func ComboBonus(comboBefore int) int {
	if comboBefore <= 0 {
		return 0
	}
	return min(comboBefore*comboStep, comboCap)
}

// PointsFor returns round(100*d*multiplier + min(combo*10, 200)).
func PointsFor(reactionMs, windowMs float64, d model.Difficulty, comboBefore int) int {
	base := basePoints * float64(d) * MultiplierFor(reactionMs, windowMs)
	return int(math.Round(base + float64(ComboBonus(comboBefore))))
}

// Combo counts consecutive successes.
type Combo struct {
	current int
	max     int
}

// Hit records a success and returns the new combo.
func (c *Combo) Hit() int {
	c.current++
	if c.current > c.max {
		c.max = c.current
	}
	return c.current
}

// Break resets the combo after a failure.
func (c *Combo) Break() {
	c.current = 0
}

// Reset clears the combo and its maximum.
func (c *Combo) Reset() {
	*c = Combo{}
}

// Current returns the running combo.
func (c Combo) Current() int { return c.current }

// Max returns the best combo seen since the last Reset.
func (c Combo) Max() int { return c.max }

// Award returns the points for a judged outcome: timed successes score by
// PointsFor, an ignored fake earns FakeIgnoreBonus, everything else 0.
func Award(o model.RoundOutcome, windowMs float64, d model.Difficulty, comboBefore int) int {
	switch {
	case !o.IsCorrect:
		return 0
	case o.Timed:
		return PointsFor(o.ReactionMs, windowMs, d, comboBefore)
	case o.Spec.Kind == model.KindFake:
		return FakeIgnoreBonus
	default:
		return 0
	}
}
