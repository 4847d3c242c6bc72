// Package approach advances one stimulus from the mound to the plate.
package approach

import (
	"math"
	"time"

	"github.com/winniek75/baseball-vison.training/internal/difficulty"
	"github.com/winniek75/baseball-vison.training/internal/model"
)

// Phase is the lifecycle stage of a stimulus.
type Phase int

const (
	// PhaseFlying accepts no input.
	PhaseFlying Phase = iota
	// PhaseDecidable accepts input until the window closes.
	PhaseDecidable
	// PhaseResolved is terminal.
	PhaseResolved
)

func (p Phase) String() string {
	switch p {
	case PhaseFlying:
		return "flying"
	case PhaseDecidable:
		return "decidable"
	case PhaseResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Visual constants, in field-relative units.
const (
	MinRadius = 0.12
	MaxRadius = 1.0

	// NumberRevealDepth is the depth at which a number-variant ball shows its number.
	NumberRevealDepth = 0.85

	// frameMs converts the per-frame spin rate into a per-millisecond one.
	frameMs       = 1000.0 / 60.0
	ballOffset    = 0.55
	fakeWobble    = 0.08
	fakeWobbleCyc = 3.0
)

// Timing fixes when a stimulus becomes decidable and when it expires,
// relative to its spawn.
type Timing struct {
	Duration time.Duration
	RevealAt time.Duration
	ExpireAt time.Duration
	SpinRate float64
}

// TimingFor derives the timing of spec under profile p and variant v. Tap
// variants are decidable from spawn and expire when the ball reaches the
// plate; slower pitches take longer. Reveal-gated variants open the window
// at NumberRevealDepth and keep it open for the profile's answer window.
func TimingFor(p difficulty.Profile, v model.Variant, spec model.RoundSpec) Timing {
	if v.RevealGated {
		d := time.Duration(p.NumberApproachMs) * time.Millisecond
		reveal := time.Duration(float64(d) * NumberRevealDepth)
		return Timing{
			Duration: d,
			RevealAt: reveal,
			ExpireAt: reveal + time.Duration(p.AnswerWindowMs)*time.Millisecond,
			SpinRate: p.SpinRate,
		}
	}
	mul := spec.Pitch.SpeedMul
	if mul <= 0 {
		mul = 1
	}
	d := time.Duration(float64(p.ApproachDurationMs)/mul) * time.Millisecond
	return Timing{Duration: d, ExpireAt: d, SpinRate: p.SpinRate}
}

// Step reports what changed during one Advance call.
type Step struct {
	Revealed bool
	Expired  bool
}

// State is the per-round simulation state. It is owned by a single session
// and never shared.
type State struct {
	Spec    model.RoundSpec
	SpawnAt time.Duration
	Timing  Timing

	Depth    float64
	Radius   float64
	X, Y     float64
	Rotation float64
	Phase    Phase

	elapsed time.Duration
}

// Launch creates the state for spec spawned at game time spawnAt.
func Launch(spec model.RoundSpec, t Timing, spawnAt time.Duration) *State {
	s := &State{Spec: spec, SpawnAt: spawnAt, Timing: t, Phase: PhaseFlying}
	if t.RevealAt <= 0 {
		s.Phase = PhaseDecidable
	}
	s.place()
	return s
}

// Elapsed returns the time since spawn observed by the last Advance.
func (s *State) Elapsed() time.Duration {
	return s.elapsed
}

// DecidableSince returns the game time at which input started being accepted.
func (s *State) DecidableSince() time.Duration {
	return s.SpawnAt + s.Timing.RevealAt
}

// Advance moves the stimulus to game time now. Time never runs backwards:
// an earlier now leaves the state untouched. Expired is reported once the
// window has strictly passed, so input stamped exactly at the boundary can
// still be accepted.
func (s *State) Advance(now time.Duration) Step {
	var step Step
	if s.Phase == PhaseResolved {
		return step
	}
	elapsed := now - s.SpawnAt
	if elapsed < s.elapsed {
		return step
	}
	s.elapsed = elapsed
	s.place()

	if s.Phase == PhaseFlying && elapsed >= s.Timing.RevealAt {
		s.Phase = PhaseDecidable
		step.Revealed = true
	}
	if elapsed > s.Timing.ExpireAt {
		step.Expired = true
	}
	return step
}

// Accepts reports whether input at game time now may resolve the stimulus.
func (s *State) Accepts(now time.Duration) bool {
	if s.Phase != PhaseDecidable {
		return false
	}
	return now-s.SpawnAt <= s.Timing.ExpireAt
}

// Resolve marks the stimulus terminal. It reports false when it was already
// resolved.
func (s *State) Resolve() bool {
	if s.Phase == PhaseResolved {
		return false
	}
	s.Phase = PhaseResolved
	return true
}

// Revealed reports whether the displayed number is visible.
func (s *State) Revealed() bool {
	return s.Phase != PhaseFlying
}

func (s *State) place() {
	s.Depth = depthAt(s.elapsed, s.Timing.Duration)
	s.Radius = MinRadius + (MaxRadius-MinRadius)*s.Depth
	s.Rotation = s.Timing.SpinRate * float64(s.elapsed.Milliseconds()) / frameMs

	d := s.Depth
	p := s.Spec.Pitch
	s.X = p.DriftX * math.Sin(d*math.Pi)
	s.Y = p.DriftY * d
	switch s.Spec.Kind {
	case model.KindBall:
		side := 1.0
		if s.Spec.Seq%2 == 0 {
			side = -1
		}
		s.X += side * ballOffset * d
	case model.KindFake:
		s.X += fakeWobble * math.Sin(d*math.Pi*fakeWobbleCyc)
	}
}

func depthAt(elapsed, duration time.Duration) float64 {
	if duration <= 0 {
		return 1
	}
	d := float64(elapsed) / float64(duration)
	if d < 0 {
		return 0
	}
	if d > 1 {
		return 1
	}
	return d
}
