// Package difficulty holds the static per-level tuning table.
package difficulty

import (
	"errors"
	"fmt"
	"time"

	"github.com/winniek75/baseball-vison.training/internal/model"
)

// ErrInvalidLevel is returned for levels outside 1-5.
var ErrInvalidLevel = errors.New("invalid difficulty level")

// Profile is the immutable tuning for one difficulty level.
type Profile struct {
	Level              model.Difficulty
	Label              string
	ApproachDurationMs int
	StrikeRatio        float64
	FakeRatio          float64
	SpinRate           float64
	StrikeWindowMs     int
	TargetRoundCount   int
	SessionDurationSec int
	BallIntervalMs     int
	NumberApproachMs   int
	AnswerWindowMs     int
	TwoDigit           bool
}

var profiles = [...]Profile{
	{
		Level: 1, Label: "Rookie",
		ApproachDurationMs: 1920, StrikeRatio: 0.70, FakeRatio: 0.0, SpinRate: 0.03,
		StrikeWindowMs: 800, TargetRoundCount: 15, SessionDurationSec: 45,
		BallIntervalMs: 2000, NumberApproachMs: 2185, AnswerWindowMs: 3000,
	},
	{
		Level: 2, Label: "Minor",
		ApproachDurationMs: 1800, StrikeRatio: 0.65, FakeRatio: 0.1, SpinRate: 0.05,
		StrikeWindowMs: 650, TargetRoundCount: 18, SessionDurationSec: 45,
		BallIntervalMs: 1750, NumberApproachMs: 2050, AnswerWindowMs: 2600,
	},
	{
		Level: 3, Label: "Semi-Pro",
		ApproachDurationMs: 1640, StrikeRatio: 0.60, FakeRatio: 0.2, SpinRate: 0.08,
		StrikeWindowMs: 500, TargetRoundCount: 20, SessionDurationSec: 60,
		BallIntervalMs: 1500, NumberApproachMs: 1870, AnswerWindowMs: 2200,
	},
	{
		Level: 4, Label: "Pro",
		ApproachDurationMs: 1440, StrikeRatio: 0.55, FakeRatio: 0.3, SpinRate: 0.12,
		StrikeWindowMs: 380, TargetRoundCount: 22, SessionDurationSec: 60,
		BallIntervalMs: 1250, NumberApproachMs: 1645, AnswerWindowMs: 1800, TwoDigit: true,
	},
	{
		Level: 5, Label: "Elite",
		ApproachDurationMs: 1160, StrikeRatio: 0.50, FakeRatio: 0.4, SpinRate: 0.18,
		StrikeWindowMs: 280, TargetRoundCount: 25, SessionDurationSec: 60,
		BallIntervalMs: 1000, NumberApproachMs: 1330, AnswerWindowMs: 1500, TwoDigit: true,
	},
}

// ProfileFor returns the profile for a validated level. It panics on a level
// outside 1-5; callers at the input boundary use Lookup instead.
func ProfileFor(level model.Difficulty) Profile {
	p, err := Lookup(level)
	if err != nil {
		panic(err)
	}
	return p
}

// Lookup returns the profile for level or ErrInvalidLevel.
func Lookup(level model.Difficulty) (Profile, error) {
	if !level.Valid() {
		return Profile{}, fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidLevel, level, model.MinDifficulty, model.MaxDifficulty)
	}
	return profiles[level-1], nil
}

// All returns every profile ordered by level.
func All() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles[:])
	return out
}

// StrikeWindow returns the tolerance window as a duration.
func (p Profile) StrikeWindow() time.Duration {
	return time.Duration(p.StrikeWindowMs) * time.Millisecond
}

// SessionDuration returns the session clock length.
func (p Profile) SessionDuration() time.Duration {
	return time.Duration(p.SessionDurationSec) * time.Second
}

// NumberRange returns the inclusive range of displayed numbers.
func (p Profile) NumberRange() (lo, hi int) {
	if p.TwoDigit {
		return 10, 99
	}
	return 1, 9
}
