// Package judge evaluates player input against the live stimulus.
package judge

import (
	"errors"
	"time"

	"github.com/winniek75/baseball-vison.training/internal/approach"
	"github.com/winniek75/baseball-vison.training/internal/difficulty"
	"github.com/winniek75/baseball-vison.training/internal/model"
	"github.com/winniek75/baseball-vison.training/internal/scoring"
)

var (
	// ErrNoLiveStimulus marks input that arrived with nothing decidable.
	// Callers treat it as a no-op.
	ErrNoLiveStimulus = errors.New("no live stimulus")
	// ErrUnsupportedInput marks input the variant does not take, such as a
	// tap in a multiple-choice round.
	ErrUnsupportedInput = errors.New("input not supported by this module")
)

// Rules are the per-session judging parameters.
type Rules struct {
	Variant model.Variant
	// WindowMs is the tolerance window used for tiers and points.
	WindowMs float64
}

// RulesFor derives the rules for a profile and variant. Reveal-gated rounds
// get a doubled window.
func RulesFor(p difficulty.Profile, v model.Variant) Rules {
	w := float64(p.StrikeWindowMs)
	if v.RevealGated {
		w *= 2
	}
	return Rules{Variant: v, WindowMs: w}
}

func reactionMs(st *approach.State, now time.Duration) float64 {
	return float64(now-st.DecidableSince()) / float64(time.Millisecond)
}

func live(st *approach.State, now time.Duration) bool {
	return st != nil && st.Accepts(now)
}

// Tap judges a tap at game time now.
func Tap(st *approach.State, now time.Duration, r Rules) (model.RoundOutcome, error) {
	if r.Variant.MultipleChoice {
		return model.RoundOutcome{}, ErrUnsupportedInput
	}
	if !live(st, now) {
		return model.RoundOutcome{}, ErrNoLiveStimulus
	}
	o := model.RoundOutcome{
		Spec:       st.Spec,
		ReactionMs: reactionMs(st, now),
		Timed:      true,
		Tapped:     true,
		Counted:    true,
	}
	switch st.Spec.Kind {
	case model.KindStrike, model.KindTarget:
		o.IsCorrect = true
		o.Tier = scoring.TierFor(o.ReactionMs, r.WindowMs)
	}
	return o, nil
}

// Answer judges a submitted number at game time now.
func Answer(st *approach.State, value int, now time.Duration, r Rules) (model.RoundOutcome, error) {
	if !r.Variant.ShowsNumber {
		return model.RoundOutcome{}, ErrUnsupportedInput
	}
	if !live(st, now) {
		return model.RoundOutcome{}, ErrNoLiveStimulus
	}
	o := model.RoundOutcome{
		Spec:       st.Spec,
		ReactionMs: reactionMs(st, now),
		Timed:      true,
		Counted:    true,
		Answer:     value,
		IsCorrect:  value == st.Spec.DisplayedNumber,
	}
	if o.IsCorrect {
		o.Tier = scoring.TierFor(o.ReactionMs, r.WindowMs)
	}
	return o, nil
}

// Expire judges a stimulus whose window closed without input. Untapped fakes
// succeed; untapped balls are neutral unless the variant counts them.
func Expire(spec model.RoundSpec, r Rules) model.RoundOutcome {
	o := model.RoundOutcome{Spec: spec, Expired: true, Counted: true}
	switch spec.Kind {
	case model.KindFake:
		o.IsCorrect = true
	case model.KindBall:
		o.Counted = r.Variant.CountIgnoredBalls
		o.IsCorrect = r.Variant.CountIgnoredBalls
	}
	return o
}
