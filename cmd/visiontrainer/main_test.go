package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/winniek75/baseball-vison.training/internal/badges"
	"github.com/winniek75/baseball-vison.training/internal/bot"
	"github.com/winniek75/baseball-vison.training/internal/difficulty"
	"github.com/winniek75/baseball-vison.training/internal/model"
	"github.com/winniek75/baseball-vison.training/internal/session"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestValidateConfig(t *testing.T) {
	good := model.Config{UserID: "local", Module: model.ModuleBallNumberHunt, Difficulty: 3}
	if err := validateConfig(good); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := good
	bad.Difficulty = 6
	if err := validateConfig(bad); !errors.Is(err, difficulty.ErrInvalidLevel) {
		t.Fatalf("expected invalid level, got %v", err)
	}

	bad = good
	bad.Module = model.ModuleFlyTracer
	if err := validateConfig(bad); err == nil || !strings.Contains(err.Error(), "pitcher-reaction") {
		t.Fatalf("expected playable list in error, got %v", err)
	}

	bad = good
	bad.Module = "bunt-drill"
	if err := validateConfig(bad); !errors.Is(err, model.ErrUnknownModule) {
		t.Fatalf("expected unknown module, got %v", err)
	}

	bad = good
	bad.DurationSec = -1
	if err := validateConfig(bad); err == nil {
		t.Fatalf("expected duration error")
	}

	bad = good
	bad.UserID = " "
	if err := validateConfig(bad); err == nil {
		t.Fatalf("expected user error")
	}
}

func TestParseSince(t *testing.T) {
	since, err := parseSince("")
	if err != nil || since != nil {
		t.Fatalf("expected nil since, got %v, %v", since, err)
	}
	since, err = parseSince("2026-05-04")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if since.Year() != 2026 || since.Month() != time.May || since.Day() != 4 {
		t.Fatalf("unexpected date %v", since)
	}
	if _, err := parseSince("05/04/2026"); err == nil {
		t.Fatalf("expected error")
	}
}

type fakeBadgeStore struct {
	count    int
	dates    []time.Time
	played   []model.ModuleID
	earned   []model.EarnedBadge
	inserted []string
	failList bool
}

func (f *fakeBadgeStore) CountSessions(context.Context, string) (int, error) { return f.count, nil }

func (f *fakeBadgeStore) PlayDates(context.Context, string) ([]time.Time, error) {
	return f.dates, nil
}

func (f *fakeBadgeStore) PlayedModules(context.Context, string) ([]model.ModuleID, error) {
	return f.played, nil
}

func (f *fakeBadgeStore) ListBadges(context.Context, string) ([]model.EarnedBadge, error) {
	if f.failList {
		return nil, errors.New("locked")
	}
	return f.earned, nil
}

func (f *fakeBadgeStore) InsertBadges(_ context.Context, _ string, keys []string, _ time.Time) error {
	f.inserted = append(f.inserted, keys...)
	return nil
}

func TestAwardBadgesFirstSession(t *testing.T) {
	now := time.Date(2026, 6, 10, 19, 0, 0, 0, time.Local)
	st := &fakeBadgeStore{
		count:  1,
		dates:  []time.Time{now},
		played: []model.ModuleID{model.ModulePitcherReaction},
	}
	ended := session.SessionEnded{
		RecordID: "rec-1",
		Result: model.SessionResult{
			ModuleID:      model.ModulePitcherReaction,
			Difficulty:    2,
			TotalScore:    1200,
			Accuracy:      1,
			AvgReactionMs: 240,
		},
	}
	got := awardBadges(context.Background(), st, quiet, "kid", ended, now)
	want := []string{badges.FirstPlay, badges.Reaction250, badges.Accuracy100, badges.Score1000}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if !slices.Equal(st.inserted, want) {
		t.Fatalf("expected inserted %v, got %v", want, st.inserted)
	}
}

func TestAwardBadgesSkipsUnsavedOrFailedLookups(t *testing.T) {
	now := time.Now()
	st := &fakeBadgeStore{count: 1}
	ended := session.SessionEnded{PersistErr: errors.New("disk full"), Result: model.SessionResult{TotalScore: 5000}}
	if got := awardBadges(context.Background(), st, quiet, "kid", ended, now); got != nil {
		t.Fatalf("expected no badges for unsaved session, got %v", got)
	}

	st.failList = true
	ended = session.SessionEnded{RecordID: "rec-2", Result: model.SessionResult{TotalScore: 5000}}
	if got := awardBadges(context.Background(), st, quiet, "kid", ended, now); got != nil {
		t.Fatalf("expected no badges when history fails, got %v", got)
	}
	if len(st.inserted) != 0 {
		t.Fatalf("unexpected insert %v", st.inserted)
	}
}

func TestBadgeContextSkipsEarned(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.Local)
	st := &fakeBadgeStore{
		count:  4,
		dates:  []time.Time{now, now.AddDate(0, 0, -1), now.AddDate(0, 0, -2)},
		played: []model.ModuleID{model.ModulePitcherReaction, model.ModuleBallNumberHunt},
		earned: []model.EarnedBadge{{Key: badges.FirstPlay}, {Key: badges.Streak3}},
	}
	ctx, err := badgeContext(context.Background(), st, "kid", now)
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if ctx.FirstPlay || ctx.CurrentStreak != 3 {
		t.Fatalf("unexpected context %+v", ctx)
	}
	got := badges.Evaluate(model.SessionResult{Accuracy: 0.5}, ctx)
	if !slices.Equal(got, []string{badges.AllModules}) {
		t.Fatalf("expected only all_modules, got %v", got)
	}
}

func TestSimulateIsReproducible(t *testing.T) {
	cfg := model.Config{UserID: "bot", Module: model.ModuleBallNumberHunt, Difficulty: 2, DurationSec: 20, Seed: 100}
	botCfg := bot.Config{ReactionMean: 350 * time.Millisecond, Jitter: 80 * time.Millisecond, ErrorRate: 0.2}
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	serial, err := simulate(context.Background(), cfg, botCfg, 4, 1, start, quiet)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	parallel, err := simulate(context.Background(), cfg, botCfg, 4, 3, start, quiet)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	for i := range serial {
		a, b := serial[i].record.Result, parallel[i].record.Result
		if a.Seed != cfg.Seed+int64(i) {
			t.Fatalf("run %d: expected seed %d, got %d", i, cfg.Seed+int64(i), a.Seed)
		}
		if a.TotalScore != b.TotalScore || a.CorrectCount != b.CorrectCount || a.AvgReactionMs != b.AvgReactionMs {
			t.Fatalf("run %d differs: %+v vs %+v", i, a, b)
		}
		if len(serial[i].rounds) != a.TotalAttempts {
			t.Fatalf("run %d: expected %d rounds, got %d", i, a.TotalAttempts, len(serial[i].rounds))
		}
		if serial[i].record.UserID != "bot" || !serial[i].record.PlayedAt.Equal(a.EndedAt) {
			t.Fatalf("run %d: unexpected record %+v", i, serial[i].record)
		}
	}
}

func TestSimulateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := model.Config{UserID: "bot", Module: model.ModulePitcherReaction, Difficulty: 1, Seed: 1}
	_, err := simulate(ctx, cfg, bot.Config{ReactionMean: 200 * time.Millisecond}, 2, 2, time.Now(), quiet)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestRenderSim(t *testing.T) {
	cfg := model.Config{Module: model.ModulePitcherReaction, Difficulty: 2, Seed: 10}
	runs := []simRun{
		{record: model.SessionRecord{Result: model.SessionResult{TotalScore: 500, Accuracy: 0.5, AvgReactionMs: 300, BestReactionMs: 250}}, inputs: 6, late: 1},
		{record: model.SessionRecord{Result: model.SessionResult{TotalScore: 700, Accuracy: 1, AvgReactionMs: 260, BestReactionMs: 210}}, inputs: 5},
	}
	var buf bytes.Buffer
	if err := renderSim(&buf, cfg, runs); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Simulated 2 x pitcher-reaction level 2 (seeds 10..11)", "Best Score: 700", "Inputs: 11 (late: 1)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}
