// Package export writes session history as JSON or YAML documents.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/winniek75/baseball-vison.training/internal/model"
)

// Format selects the document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want json or yaml)", s)
	}
}

// Source reads persisted history.
type Source interface {
	ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionRecord, error)
	ListRounds(ctx context.Context, sessionID string) ([]model.RoundOutcome, error)
}

// Document is the top-level export shape.
type Document struct {
	ExportedAt time.Time `json:"exported_at" yaml:"exported_at"`
	User       string    `json:"user,omitempty" yaml:"user,omitempty"`
	Sessions   []Session `json:"sessions" yaml:"sessions"`
}

// Session is one exported session record.
type Session struct {
	ID             string    `json:"id" yaml:"id"`
	UserID         string    `json:"user_id" yaml:"user_id"`
	PlayedAt       time.Time `json:"played_at" yaml:"played_at"`
	Module         string    `json:"module" yaml:"module"`
	Difficulty     int       `json:"difficulty" yaml:"difficulty"`
	DurationSec    int       `json:"duration_sec" yaml:"duration_sec"`
	Seed           int64     `json:"seed" yaml:"seed"`
	Score          int       `json:"score" yaml:"score"`
	Accuracy       float64   `json:"accuracy" yaml:"accuracy"`
	AvgReactionMs  int       `json:"avg_reaction_ms" yaml:"avg_reaction_ms"`
	BestReactionMs int       `json:"best_reaction_ms" yaml:"best_reaction_ms"`
	Attempts       int       `json:"attempts" yaml:"attempts"`
	Correct        int       `json:"correct" yaml:"correct"`
	MaxCombo       int       `json:"max_combo" yaml:"max_combo"`
	Rounds         []Round   `json:"rounds,omitempty" yaml:"rounds,omitempty"`
}

// Round is one exported round outcome. Optional values are nil when the
// round had none.
type Round struct {
	Seq        int      `json:"seq" yaml:"seq"`
	Kind       string   `json:"kind" yaml:"kind"`
	Pitch      string   `json:"pitch,omitempty" yaml:"pitch,omitempty"`
	Number     *int     `json:"number,omitempty" yaml:"number,omitempty"`
	Answer     *int     `json:"answer,omitempty" yaml:"answer,omitempty"`
	ReactionMs *float64 `json:"reaction_ms,omitempty" yaml:"reaction_ms,omitempty"`
	Correct    bool     `json:"correct" yaml:"correct"`
	Counted    bool     `json:"counted" yaml:"counted"`
	Expired    bool     `json:"expired" yaml:"expired"`
	Tier       string   `json:"tier,omitempty" yaml:"tier,omitempty"`
	Points     int      `json:"points" yaml:"points"`
}

// Build loads the sessions matching cfg and, when withRounds is set, their
// round outcomes.
func Build(ctx context.Context, src Source, cfg model.StatsConfig, withRounds bool, now time.Time) (Document, error) {
	records, err := src.ListSessions(ctx, cfg)
	if err != nil {
		return Document{}, fmt.Errorf("failed to list sessions: %w", err)
	}
	if cfg.Last > 0 && len(records) > cfg.Last {
		records = records[len(records)-cfg.Last:]
	}
	doc := Document{ExportedAt: now.UTC(), User: cfg.UserID, Sessions: make([]Session, 0, len(records))}
	for _, rec := range records {
		s := FromRecord(rec)
		if withRounds {
			rounds, err := src.ListRounds(ctx, rec.ID)
			if err != nil {
				return Document{}, fmt.Errorf("failed to list rounds for %s: %w", rec.ID, err)
			}
			s.Rounds = FromRounds(rounds)
		}
		doc.Sessions = append(doc.Sessions, s)
	}
	return doc, nil
}

// FromRecord maps a persisted record to its export shape.
func FromRecord(rec model.SessionRecord) Session {
	r := rec.Result
	return Session{
		ID:             rec.ID,
		UserID:         rec.UserID,
		PlayedAt:       rec.PlayedAt.UTC(),
		Module:         string(r.ModuleID),
		Difficulty:     int(r.Difficulty),
		DurationSec:    r.DurationSec,
		Seed:           r.Seed,
		Score:          r.TotalScore,
		Accuracy:       r.Accuracy,
		AvgReactionMs:  r.AvgReactionMs,
		BestReactionMs: r.BestReactionMs,
		Attempts:       r.TotalAttempts,
		Correct:        r.CorrectCount,
		MaxCombo:       r.MaxCombo,
	}
}

// FromRounds maps round outcomes to their export shape.
func FromRounds(rounds []model.RoundOutcome) []Round {
	out := make([]Round, 0, len(rounds))
	for _, o := range rounds {
		r := Round{
			Seq:     o.Spec.Seq,
			Kind:    o.Spec.Kind.String(),
			Pitch:   o.Spec.Pitch.ID,
			Correct: o.IsCorrect,
			Counted: o.Counted,
			Expired: o.Expired,
			Tier:    o.Tier.String(),
			Points:  o.PointsAwarded,
		}
		if o.Spec.HasNumber {
			n := o.Spec.DisplayedNumber
			r.Number = &n
			if !o.Expired {
				a := o.Answer
				r.Answer = &a
			}
		}
		if o.Timed {
			ms := o.ReactionMs
			r.ReactionMs = &ms
		}
		out = append(out, r)
	}
	return out
}

// Write encodes doc to w.
func Write(w io.Writer, format Format, doc Document) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to flush yaml: %w", err)
		}
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
	return nil
}

// Read decodes a document previously produced by Write.
func Read(r io.Reader, format Format) (Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("failed to decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("failed to decode yaml: %w", err)
		}
	default:
		return Document{}, fmt.Errorf("unknown export format %q", format)
	}
	return doc, nil
}
