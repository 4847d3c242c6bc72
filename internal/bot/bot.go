// Package bot is a scripted player that drives sessions on virtual time.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/winniek75/baseball-vison.training/internal/model"
	"github.com/winniek75/baseball-vison.training/internal/rng"
	"github.com/winniek75/baseball-vison.training/internal/session"
)

const (
	// DefaultFrame matches a 60 Hz display.
	DefaultFrame = time.Second / 60
	minReaction  = 50 * time.Millisecond
	maxFrames    = 1_000_000
)

// Config tunes the scripted player.
type Config struct {
	ReactionMean time.Duration
	Jitter       time.Duration
	// ErrorRate is the probability of a wrong decision per round.
	ErrorRate float64
}

// Validate rejects settings the player cannot act on.
func (c Config) Validate() error {
	if c.ReactionMean <= 0 {
		return fmt.Errorf("reaction mean must be > 0")
	}
	if c.Jitter < 0 {
		return fmt.Errorf("jitter must be >= 0")
	}
	if c.ErrorRate < 0 || c.ErrorRate > 1 {
		return fmt.Errorf("error rate must be between 0 and 1")
	}
	return nil
}

type actionKind int

const (
	actionTap actionKind = iota
	actionAnswer
)

// action is a planned input in game time.
type action struct {
	kind  actionKind
	value int
	at    time.Duration
}

// Bot decides how to answer each round as it is announced. Attach Observe
// as a session listener.
type Bot struct {
	cfg    Config
	rnd    rng.Source
	plan   *action
	inputs int
	missed int
}

// New returns a bot drawing its decisions from src.
func New(cfg Config, src rng.Source) *Bot {
	return &Bot{cfg: cfg, rnd: src}
}

// Inputs returns how many inputs the bot sent.
func (b *Bot) Inputs() int { return b.inputs }

// Late returns how many inputs arrived after their window closed.
func (b *Bot) Late() int { return b.missed }

// Observe plans input for announced rounds.
func (b *Bot) Observe(ev session.Event) {
	switch e := ev.(type) {
	case session.RoundStarted:
		if !e.Spec.HasNumber {
			b.planTap(e.Spec, e.At)
		}
	case session.RoundRevealed:
		b.planAnswer(e.Spec, e.At)
	case session.RoundResolved, session.SessionEnded:
		b.plan = nil
	}
}

func (b *Bot) reaction() time.Duration {
	spread := (2*b.rnd.Float64() - 1) * float64(b.cfg.Jitter)
	return max(b.cfg.ReactionMean+time.Duration(spread), minReaction)
}

func (b *Bot) wrong() bool {
	return b.rnd.Float64() < b.cfg.ErrorRate
}

func (b *Bot) planTap(spec model.RoundSpec, at time.Duration) {
	shouldTap := spec.Kind == model.KindStrike || spec.Kind == model.KindTarget
	if b.wrong() {
		shouldTap = !shouldTap
	}
	if !shouldTap {
		b.plan = nil
		return
	}
	b.plan = &action{kind: actionTap, at: at + b.reaction()}
}

func (b *Bot) planAnswer(spec model.RoundSpec, at time.Duration) {
	value := spec.DisplayedNumber
	if b.wrong() {
		for _, c := range spec.Choices {
			if c != spec.DisplayedNumber {
				value = c
				break
			}
		}
	}
	b.plan = &action{kind: actionAnswer, value: value, at: at + b.reaction()}
}

// Run plays s to its result on virtual time starting at wall time start,
// one frame per step. s must have been created with b.Observe as a listener.
func Run(ctx context.Context, s *session.Session, b *Bot, start time.Time, frame time.Duration) (model.SessionResult, error) {
	if frame <= 0 {
		frame = DefaultFrame
	}
	sched := session.NewManualScheduler(start)
	runner := session.NewRunner(s, sched)
	if err := runner.Start(start); err != nil {
		return model.SessionResult{}, fmt.Errorf("failed to start session: %w", err)
	}
	defer runner.Stop()

	for i := 0; i < maxFrames; i++ {
		if res, ok := s.Result(); ok {
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			return model.SessionResult{}, err
		}
		next := sched.Now().Add(frame)
		if b.plan != nil {
			// No pauses in a scripted run, so game time maps 1:1 onto wall time.
			due := start.Add(b.plan.at)
			if !due.After(next) {
				if d := due.Sub(sched.Now()); d > 0 {
					sched.Advance(d)
				}
				b.act(s, sched.Now())
				continue
			}
		}
		sched.Step(frame)
	}
	return model.SessionResult{}, fmt.Errorf("session did not finish within %d frames", maxFrames)
}

func (b *Bot) act(s *session.Session, now time.Time) {
	p := b.plan
	b.plan = nil
	b.inputs++
	var err error
	switch p.kind {
	case actionTap:
		_, err = s.Tap(now)
	case actionAnswer:
		_, err = s.Answer(p.value, now)
	}
	if errors.Is(err, session.ErrNoLiveStimulus) {
		b.missed++
	}
}
