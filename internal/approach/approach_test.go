package approach

import (
	"testing"
	"time"

	"github.com/winniek75/baseball-vison.training/internal/difficulty"
	"github.com/winniek75/baseball-vison.training/internal/model"
)

func tapVariant(t *testing.T) model.Variant {
	t.Helper()
	v, err := model.VariantFor(model.ModulePitcherReaction)
	if err != nil {
		t.Fatalf("variant: %v", err)
	}
	return v
}

func numberVariant(t *testing.T) model.Variant {
	t.Helper()
	v, err := model.VariantFor(model.ModuleBallNumberHunt)
	if err != nil {
		t.Fatalf("variant: %v", err)
	}
	return v
}

func TestTimingForTapVariant(t *testing.T) {
	p := difficulty.ProfileFor(1)
	spec := model.RoundSpec{Kind: model.KindStrike, Pitch: model.Pitches[0]}
	timing := TimingFor(p, tapVariant(t), spec)
	if timing.Duration != 1920*time.Millisecond {
		t.Fatalf("expected 1920ms, got %v", timing.Duration)
	}
	if timing.RevealAt != 0 || timing.ExpireAt != timing.Duration {
		t.Fatalf("unexpected timing: %+v", timing)
	}

	spec.Pitch = model.Pitches[3] // changeup
	slow := TimingFor(p, tapVariant(t), spec)
	if slow.Duration <= timing.Duration {
		t.Fatalf("expected slower pitch to take longer: %v <= %v", slow.Duration, timing.Duration)
	}
}

func TestTimingForNumberVariant(t *testing.T) {
	p := difficulty.ProfileFor(3)
	timing := TimingFor(p, numberVariant(t), model.RoundSpec{Kind: model.KindTarget})
	wantReveal := time.Duration(float64(1870*time.Millisecond) * NumberRevealDepth)
	if timing.RevealAt != wantReveal {
		t.Fatalf("expected reveal at %v, got %v", wantReveal, timing.RevealAt)
	}
	if timing.ExpireAt != wantReveal+2200*time.Millisecond {
		t.Fatalf("unexpected expiry %v", timing.ExpireAt)
	}
}

func TestDepthMonotonicAndClamped(t *testing.T) {
	timing := Timing{Duration: time.Second, ExpireAt: time.Second}
	s := Launch(model.RoundSpec{Kind: model.KindStrike, Pitch: model.Pitches[1]}, timing, 5*time.Second)
	if s.Depth != 0 || s.Phase != PhaseDecidable {
		t.Fatalf("unexpected initial state: depth=%v phase=%s", s.Depth, s.Phase)
	}

	prev := s.Depth
	prevRadius := s.Radius
	for ms := 16; ms <= 1000; ms += 16 {
		s.Advance(5*time.Second + time.Duration(ms)*time.Millisecond)
		if s.Depth <= prev {
			t.Fatalf("depth did not increase at %dms: %v <= %v", ms, s.Depth, prev)
		}
		if s.Radius <= prevRadius {
			t.Fatalf("radius did not grow at %dms", ms)
		}
		prev, prevRadius = s.Depth, s.Radius
	}

	s.Advance(5*time.Second + 3*time.Second)
	if s.Depth != 1 {
		t.Fatalf("expected depth clamped to 1, got %v", s.Depth)
	}
	if s.Radius != MaxRadius {
		t.Fatalf("expected max radius, got %v", s.Radius)
	}
}

func TestAdvanceIgnoresEarlierTime(t *testing.T) {
	s := Launch(model.RoundSpec{}, Timing{Duration: time.Second, ExpireAt: time.Second}, 0)
	s.Advance(500 * time.Millisecond)
	depth := s.Depth
	s.Advance(200 * time.Millisecond)
	if s.Depth != depth {
		t.Fatalf("depth moved backwards: %v -> %v", depth, s.Depth)
	}
}

func TestExpiryAfterWindow(t *testing.T) {
	s := Launch(model.RoundSpec{Kind: model.KindStrike}, Timing{Duration: time.Second, ExpireAt: time.Second}, 0)
	if step := s.Advance(time.Second); step.Expired {
		t.Fatalf("expired at the exact boundary")
	}
	if !s.Accepts(time.Second) {
		t.Fatalf("expected boundary input to be accepted")
	}
	if step := s.Advance(time.Second + time.Millisecond); !step.Expired {
		t.Fatalf("expected expiry past the window")
	}
	if s.Accepts(time.Second + time.Millisecond) {
		t.Fatalf("expected late input to be rejected")
	}
}

func TestRevealGatedPhases(t *testing.T) {
	timing := Timing{Duration: time.Second, RevealAt: 850 * time.Millisecond, ExpireAt: 2 * time.Second}
	s := Launch(model.RoundSpec{Kind: model.KindTarget, HasNumber: true}, timing, 0)
	if s.Phase != PhaseFlying || s.Revealed() {
		t.Fatalf("expected flying phase before reveal")
	}
	if s.Accepts(100 * time.Millisecond) {
		t.Fatalf("input accepted while flying")
	}
	if step := s.Advance(849 * time.Millisecond); step.Revealed {
		t.Fatalf("revealed too early")
	}
	step := s.Advance(850 * time.Millisecond)
	if !step.Revealed || s.Phase != PhaseDecidable {
		t.Fatalf("expected reveal at 850ms, got %+v phase=%s", step, s.Phase)
	}
	if step := s.Advance(900 * time.Millisecond); step.Revealed {
		t.Fatalf("reveal reported twice")
	}
	if s.DecidableSince() != 850*time.Millisecond {
		t.Fatalf("unexpected decidable start %v", s.DecidableSince())
	}
	if step := s.Advance(1500 * time.Millisecond); step.Expired || s.Depth != 1 {
		t.Fatalf("expected ball held at plate without expiry, depth=%v", s.Depth)
	}
}

func TestResolvedStateIsFrozen(t *testing.T) {
	s := Launch(model.RoundSpec{}, Timing{Duration: time.Second, ExpireAt: time.Second}, 0)
	s.Advance(300 * time.Millisecond)
	if !s.Resolve() {
		t.Fatalf("first resolve should succeed")
	}
	if s.Resolve() {
		t.Fatalf("second resolve should report already resolved")
	}
	depth := s.Depth
	if step := s.Advance(2 * time.Second); step.Expired || step.Revealed {
		t.Fatalf("resolved state reported a step: %+v", step)
	}
	if s.Depth != depth {
		t.Fatalf("resolved state advanced")
	}
	if s.Accepts(400 * time.Millisecond) {
		t.Fatalf("resolved state accepted input")
	}
}

func TestRotationFollowsSpinRate(t *testing.T) {
	s := Launch(model.RoundSpec{}, Timing{Duration: time.Second, ExpireAt: time.Second, SpinRate: 0.06}, 0)
	s.Advance(500 * time.Millisecond)
	want := 0.06 * 500 / frameMs
	if diff := s.Rotation - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected rotation %v, got %v", want, s.Rotation)
	}
}
