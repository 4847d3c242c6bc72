package session

import (
	"time"

	"github.com/winniek75/baseball-vison.training/internal/model"
	"github.com/winniek75/baseball-vison.training/internal/scoring"
)

// Event is one of the notifications a session emits. The set is closed.
type Event interface {
	event()
}

// PhaseChanged reports a phase transition.
type PhaseChanged struct {
	From, To Phase
	At       time.Duration
}

// CountdownTicked reports the remaining pre-game countdown.
type CountdownTicked struct {
	Remaining int
}

// RoundStarted reports a newly launched stimulus.
type RoundStarted struct {
	Spec model.RoundSpec
	At   time.Duration
}

// RoundRevealed reports that a reveal-gated stimulus became decidable.
type RoundRevealed struct {
	Spec model.RoundSpec
	At   time.Duration
}

// RoundResolved reports a judged round and the live score after it.
type RoundResolved struct {
	Outcome  model.RoundOutcome
	Feedback scoring.Feedback
	Score    int
	Combo    int
	At       time.Duration
}

// SessionEnded carries the frozen result. PersistErr is set when the sink
// rejected the record; the result is valid either way.
type SessionEnded struct {
	Result     model.SessionResult
	RecordID   string
	PersistErr error
}

func (PhaseChanged) event()    {}
func (CountdownTicked) event() {}
func (RoundStarted) event()    {}
func (RoundRevealed) event()   {}
func (RoundResolved) event()   {}
func (SessionEnded) event()    {}
