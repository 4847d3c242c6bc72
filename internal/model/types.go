// Package model defines shared data structures.
package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownModule is returned for module ids outside the catalogue.
var ErrUnknownModule = errors.New("unknown module")

// Difficulty is a level from 1 (Rookie) to 5 (Elite).
type Difficulty int

// Difficulty bounds.
const (
	MinDifficulty Difficulty = 1
	MaxDifficulty Difficulty = 5
)

// Valid reports whether d is inside the closed 1-5 range.
func (d Difficulty) Valid() bool {
	return d >= MinDifficulty && d <= MaxDifficulty
}

// ModuleID identifies a training module.
type ModuleID string

// Training modules. Only pitcher-reaction and ball-number-hunt are playable.
const (
	ModulePitcherReaction ModuleID = "pitcher-reaction"
	ModuleBallNumberHunt  ModuleID = "ball-number-hunt"
	ModuleFlyTracer       ModuleID = "fly-tracer"
	ModuleFlashSign       ModuleID = "flash-sign"
	ModuleStadiumVision   ModuleID = "stadium-vision"
	ModuleInfieldReaction ModuleID = "infield-reaction"
	ModuleRunnerWatch     ModuleID = "runner-watch"
)

// ModuleInfo describes a module in the catalogue.
type ModuleInfo struct {
	ID        ModuleID
	Name      string
	Icon      string
	Skills    []string
	Available bool
}

// Modules lists the catalogue in display order.
var Modules = []ModuleInfo{
	{ID: ModulePitcherReaction, Name: "Pitcher Reaction", Icon: "⚡", Skills: []string{"KVA", "Hand-eye"}, Available: true},
	{ID: ModuleBallNumberHunt, Name: "Ball Number Hunt", Icon: "🔢", Skills: []string{"KVA", "Instant"}, Available: true},
	{ID: ModuleFlyTracer, Name: "Fly Tracer", Icon: "👁", Skills: []string{"DVA", "Pursuit"}},
	{ID: ModuleFlashSign, Name: "Flash Sign", Icon: "🌟", Skills: []string{"Instant", "Memory"}},
	{ID: ModuleStadiumVision, Name: "Stadium Vision", Icon: "🏟", Skills: []string{"Peripheral", "Spatial"}},
	{ID: ModuleInfieldReaction, Name: "Infield Reaction", Icon: "🧤", Skills: []string{"DVA", "Reaction"}},
	{ID: ModuleRunnerWatch, Name: "Runner Watch", Icon: "🔴", Skills: []string{"Peripheral", "Judgement"}},
}

// LookupModule returns catalogue info for id.
func LookupModule(id ModuleID) (ModuleInfo, error) {
	for _, m := range Modules {
		if m.ID == id {
			return m, nil
		}
	}
	return ModuleInfo{}, fmt.Errorf("%w: %q", ErrUnknownModule, id)
}

// PlayableModules returns the ids of modules that can be started.
func PlayableModules() []ModuleID {
	var ids []ModuleID
	for _, m := range Modules {
		if m.Available {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// StimulusKind classifies an approaching ball.
type StimulusKind int

// Stimulus kinds. Target is the single playable kind of variants without a
// strike/ball split.
const (
	KindStrike StimulusKind = iota
	KindBall
	KindFake
	KindTarget
)

func (k StimulusKind) String() string {
	switch k {
	case KindStrike:
		return "strike"
	case KindBall:
		return "ball"
	case KindFake:
		return "fake"
	case KindTarget:
		return "target"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseStimulusKind is the inverse of StimulusKind.String.
func ParseStimulusKind(s string) (StimulusKind, error) {
	for _, k := range []StimulusKind{KindStrike, KindBall, KindFake, KindTarget} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown stimulus kind %q", s)
}

// PitchType shapes the visual path of a tap-variant stimulus.
type PitchType struct {
	ID       string
	Name     string
	SpeedMul float64
	DriftX   float64
	DriftY   float64
}

// Pitches is the pitch repertoire.
var Pitches = []PitchType{
	{ID: "fastball", Name: "Fastball", SpeedMul: 1.0},
	{ID: "slider", Name: "Slider", SpeedMul: 0.88, DriftX: 0.35, DriftY: 0.15},
	{ID: "curve", Name: "Curve", SpeedMul: 0.78, DriftX: -0.25, DriftY: 0.3},
	{ID: "changeup", Name: "Changeup", SpeedMul: 0.72, DriftX: 0.1, DriftY: 0.05},
}

// PitchByID returns the pitch with id, or the fastball when unknown.
func PitchByID(id string) PitchType {
	for _, p := range Pitches {
		if p.ID == id {
			return p
		}
	}
	return Pitches[0]
}

// RoundSpec is an immutable stimulus description created at spawn time.
type RoundSpec struct {
	ID              string
	Seq             int
	Kind            StimulusKind
	Pitch           PitchType
	DisplayedNumber int
	HasNumber       bool
	Choices         []int
	CreatedAt       time.Duration
}

// Tier grades a reaction against its tolerance window.
type Tier int

// Tiers from fastest to slowest.
const (
	TierNone Tier = iota
	TierLightning
	TierPerfect
	TierGreat
	TierGood
	TierOK
)

func (t Tier) String() string {
	switch t {
	case TierLightning:
		return "Lightning"
	case TierPerfect:
		return "Perfect"
	case TierGreat:
		return "Great"
	case TierGood:
		return "Good"
	case TierOK:
		return "OK"
	default:
		return ""
	}
}

// RoundOutcome is the append-only record of one resolved round.
// Counted is false for neutral rounds that do not enter the attempt count.
type RoundOutcome struct {
	Spec          RoundSpec
	ReactionMs    float64
	Timed         bool
	IsCorrect     bool
	Counted       bool
	Tapped        bool
	Expired       bool
	Answer        int
	Tier          Tier
	PointsAwarded int
}

// SessionResult is the immutable summary of a finished session.
type SessionResult struct {
	TotalScore     int
	Accuracy       float64
	AvgReactionMs  int
	BestReactionMs int
	TotalAttempts  int
	CorrectCount   int
	MaxCombo       int
	Difficulty     Difficulty
	DurationSec    int
	ModuleID       ModuleID
	Seed           int64
	StartedAt      time.Time
	EndedAt        time.Time
}

// SessionRecord is a persisted session result.
type SessionRecord struct {
	ID       string
	UserID   string
	PlayedAt time.Time
	Result   SessionResult
}

// EarnedBadge is a badge unlocked by a user.
type EarnedBadge struct {
	Key      string
	EarnedAt time.Time
}

// Config defines play settings.
type Config struct {
	UserID            string
	Module            ModuleID
	Difficulty        Difficulty
	DurationSec       int
	Seed              int64
	SeedPhrase        string
	CountIgnoredBalls bool
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	UserID      string
	Module      ModuleID
	Since       *time.Time
	Last        int
	CurveWindow int
}

// Variant captures the per-module rules the engine needs.
type Variant struct {
	Module ModuleID
	// StrikeBall splits non-fake rounds into strikes and balls.
	StrikeBall bool
	// Fakes enables fake stimuli.
	Fakes bool
	// ShowsNumber puts a number on every stimulus.
	ShowsNumber bool
	// MultipleChoice offers four choices for the displayed number.
	MultipleChoice bool
	// RevealGated accepts input only after the reveal point and measures
	// reaction from it.
	RevealGated bool
	// RoundLimited ends the session after the profile's target round count.
	RoundLimited bool
	// CountIgnoredBalls counts an untapped ball as a correct attempt instead
	// of a neutral round.
	CountIgnoredBalls bool
}

// VariantFor returns the rules for a playable module.
func VariantFor(id ModuleID) (Variant, error) {
	switch id {
	case ModulePitcherReaction:
		return Variant{Module: id, StrikeBall: true, Fakes: true}, nil
	case ModuleBallNumberHunt:
		return Variant{Module: id, ShowsNumber: true, MultipleChoice: true, RevealGated: true, RoundLimited: true}, nil
	}
	if _, err := LookupModule(id); err != nil {
		return Variant{}, err
	}
	return Variant{}, fmt.Errorf("module %q is not playable yet", id)
}
