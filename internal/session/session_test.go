package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/winniek75/baseball-vison.training/internal/difficulty"
	"github.com/winniek75/baseball-vison.training/internal/model"
	"github.com/winniek75/baseball-vison.training/internal/rng"
	"github.com/winniek75/baseball-vison.training/internal/scoring"
)

// scripted replays a fixed float sequence, then repeats fallback.
type scripted struct {
	floats   []float64
	fallback float64
}

func (s *scripted) Float64() float64 {
	if len(s.floats) == 0 {
		return s.fallback
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scripted) Intn(n int) int {
	return int(s.Float64() * float64(n))
}

// Draw scripts for the pitcher variant: fake draw, strike draw, pitch.
var (
	strikeDraws = []float64{0.9, 0.1, 0.0}
	ballDraws   = []float64{0.9, 0.9, 0.0}
)

type recordingSink struct {
	calls  int
	rec    model.SessionRecord
	rounds []model.RoundOutcome
	err    error
}

func (r *recordingSink) SaveResult(_ context.Context, rec model.SessionRecord, rounds []model.RoundOutcome) error {
	r.calls++
	r.rec = rec
	r.rounds = rounds
	return r.err
}

var t0 = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func newPitcher(t *testing.T, level model.Difficulty, draws []float64, opts ...Option) (*Session, *[]Event) {
	t.Helper()
	var events []Event
	opts = append([]Option{
		WithRand(&scripted{floats: draws, fallback: 0.5}),
		WithListener(func(ev Event) { events = append(events, ev) }),
	}, opts...)
	s, err := New(model.Config{Module: model.ModulePitcherReaction, Difficulty: level, UserID: "tester"}, opts...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s, &events
}

// startPlaying runs the countdown and launches the first round at 3.5s.
func startPlaying(t *testing.T, s *Session) {
	t.Helper()
	if err := s.Start(t0); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Tick(at(3 * time.Second))
	if s.Phase() != PhasePlaying {
		t.Fatalf("expected playing after countdown, got %s", s.Phase())
	}
	s.Tick(at(ms(3500)))
	if s.State().Active == nil {
		t.Fatalf("expected a launched round after the lead-in")
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(model.Config{Module: model.ModulePitcherReaction, Difficulty: 6}); !errors.Is(err, difficulty.ErrInvalidLevel) {
		t.Fatalf("expected ErrInvalidLevel, got %v", err)
	}
	if _, err := New(model.Config{Module: "curling", Difficulty: 1}); !errors.Is(err, model.ErrUnknownModule) {
		t.Fatalf("expected ErrUnknownModule, got %v", err)
	}
	if _, err := New(model.Config{Module: model.ModuleFlyTracer, Difficulty: 1}); err == nil {
		t.Fatalf("expected error for a module that is not playable")
	}
	s, err := New(model.Config{Module: model.ModuleBallNumberHunt, Difficulty: 2})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Config().DurationSec != 45 || s.Config().Seed == 0 {
		t.Fatalf("expected profile duration and a generated seed, got %+v", s.Config())
	}
}

func TestCountdown(t *testing.T) {
	s, events := newPitcher(t, 1, strikeDraws)
	if err := s.Start(t0); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(t0); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("expected ErrInvalidPhase on double start, got %v", err)
	}
	for i := 1; i <= 3; i++ {
		s.Tick(at(time.Duration(i) * time.Second))
	}
	var counts []int
	for _, ev := range *events {
		if c, ok := ev.(CountdownTicked); ok {
			counts = append(counts, c.Remaining)
		}
	}
	if len(counts) != 4 || counts[0] != 3 || counts[3] != 0 {
		t.Fatalf("unexpected countdown %v", counts)
	}
	if s.Phase() != PhasePlaying {
		t.Fatalf("expected playing, got %s", s.Phase())
	}
	tr, ok := s.Pending()
	if !ok || tr.Kind != TransitionLeadIn || tr.At != ms(3500) {
		t.Fatalf("unexpected pending transition %+v", tr)
	}
	if s.State().TimeRemainingSec != 45 {
		t.Fatalf("expected 45s remaining, got %d", s.State().TimeRemainingSec)
	}
}

func TestInputWithoutStimulusIsNoop(t *testing.T) {
	s, _ := newPitcher(t, 1, strikeDraws)
	if _, err := s.Tap(t0); !errors.Is(err, ErrNoLiveStimulus) {
		t.Fatalf("expected ErrNoLiveStimulus while idle, got %v", err)
	}
	if err := s.Start(t0); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Tick(at(3 * time.Second))
	if _, err := s.Tap(at(ms(3200))); !errors.Is(err, ErrNoLiveStimulus) {
		t.Fatalf("expected ErrNoLiveStimulus during lead-in, got %v", err)
	}
	st := s.State()
	if st.Score != 0 || len(st.History) != 0 || st.Phase != PhasePlaying {
		t.Fatalf("stray tap changed the session: %+v", st)
	}
}

func TestStrikeTapScores(t *testing.T) {
	s, events := newPitcher(t, 1, strikeDraws)
	startPlaying(t, s)

	o, err := s.Tap(at(ms(3600)))
	if err != nil {
		t.Fatalf("tap: %v", err)
	}
	if !o.IsCorrect || math.Abs(o.ReactionMs-100) > 1e-9 || o.PointsAwarded != 300 {
		t.Fatalf("unexpected outcome %+v", o)
	}
	st := s.State()
	if st.Score != 300 || st.Combo != 1 || st.Active != nil {
		t.Fatalf("unexpected state %+v", st)
	}
	tr, ok := s.Pending()
	if !ok || tr.Kind != TransitionSpawnInterval || tr.At != ms(5500) {
		t.Fatalf("expected spawn interval at 5.5s, got %+v", tr)
	}
	if _, err := s.Tap(at(ms(3700))); !errors.Is(err, ErrNoLiveStimulus) {
		t.Fatalf("expected second tap to be a no-op, got %v", err)
	}

	var resolved []RoundResolved
	for _, ev := range *events {
		if r, ok := ev.(RoundResolved); ok {
			resolved = append(resolved, r)
		}
	}
	if len(resolved) != 1 || resolved[0].Score != 300 || resolved[0].Feedback.Kind != scoring.FeedbackPerfect {
		t.Fatalf("unexpected resolved events %+v", resolved)
	}
}

func TestInputAtExpiryBoundaryWins(t *testing.T) {
	s, _ := newPitcher(t, 1, strikeDraws)
	startPlaying(t, s)
	boundary := ms(3500 + 1920)

	s.Tick(at(boundary))
	if s.State().Active == nil {
		t.Fatalf("stimulus expired at the boundary")
	}
	o, err := s.Tap(at(boundary))
	if err != nil {
		t.Fatalf("tap at boundary: %v", err)
	}
	if o.Expired || !o.IsCorrect {
		t.Fatalf("expected the tap to win over expiry: %+v", o)
	}
	if len(s.State().History) != 1 {
		t.Fatalf("expected exactly one outcome")
	}
}

func TestStrikeExpiryBreaksCombo(t *testing.T) {
	draws := append(append([]float64{}, strikeDraws...), strikeDraws...)
	s, _ := newPitcher(t, 1, draws)
	startPlaying(t, s)
	if _, err := s.Tap(at(ms(3700))); err != nil {
		t.Fatalf("tap: %v", err)
	}
	s.Tick(at(ms(5500)))
	if s.State().Active == nil {
		t.Fatalf("expected second round launched at 5.5s")
	}
	s.Tick(at(ms(5500 + 1921)))
	st := s.State()
	if len(st.History) != 2 {
		t.Fatalf("expected expiry outcome, history=%d", len(st.History))
	}
	last := st.History[1]
	if !last.Expired || last.IsCorrect || !last.Counted || last.Timed || last.PointsAwarded != 0 {
		t.Fatalf("unexpected expiry outcome %+v", last)
	}
	if st.Combo != 0 || st.MaxCombo != 1 {
		t.Fatalf("expected combo reset, got %d (max %d)", st.Combo, st.MaxCombo)
	}
	tr, _ := s.Pending()
	if tr.Kind != TransitionCooldownAfterExpiry || tr.At != ms(5500+1920+800) {
		t.Fatalf("unexpected pending %+v", tr)
	}
}

func TestUntappedBallIsNeutral(t *testing.T) {
	s, _ := newPitcher(t, 1, ballDraws)
	startPlaying(t, s)
	s.Tick(at(ms(3500 + 1921)))
	st := s.State()
	if len(st.History) != 1 || st.History[0].Counted {
		t.Fatalf("expected neutral ball, got %+v", st.History)
	}
	s.Tick(at(50 * time.Second))
	res, ok := s.Result()
	if !ok {
		t.Fatalf("expected result after timer")
	}
	if res.TotalAttempts != 0 && res.CorrectCount > res.TotalAttempts {
		t.Fatalf("unexpected counts %+v", res)
	}
}

func TestIgnoredFakeEarnsBonus(t *testing.T) {
	s, _ := newPitcher(t, 2, []float64{0.05, 0.0})
	startPlaying(t, s)
	if s.State().Active.Spec.Kind != model.KindFake {
		t.Fatalf("expected a fake round")
	}
	s.Tick(at(ms(3500 + 1800 + 1)))
	st := s.State()
	if len(st.History) != 1 {
		t.Fatalf("expected fake resolved")
	}
	o := st.History[0]
	if !o.IsCorrect || o.PointsAwarded != scoring.FakeIgnoreBonus || st.Combo != 1 {
		t.Fatalf("unexpected fake outcome %+v combo=%d", o, st.Combo)
	}
}

func TestPauseDoesNotCountAsReaction(t *testing.T) {
	s, _ := newPitcher(t, 1, strikeDraws)
	startPlaying(t, s)
	s.Tick(at(ms(3550)))
	remaining := s.State().TimeRemainingSec

	if err := s.Pause(at(ms(3550))); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := s.Tap(at(ms(4000))); !errors.Is(err, ErrNoLiveStimulus) {
		t.Fatalf("expected taps to be ignored while paused, got %v", err)
	}
	s.Tick(at(ms(9000)))
	if s.State().GameTime != ms(3550) {
		t.Fatalf("game time moved while paused: %v", s.State().GameTime)
	}
	if err := s.Resume(at(ms(13550))); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := s.PausedFor(at(ms(13550))); got != 10*time.Second {
		t.Fatalf("expected 10s paused, got %v", got)
	}
	o, err := s.Tap(at(ms(13650)))
	if err != nil {
		t.Fatalf("tap: %v", err)
	}
	if math.Abs(o.ReactionMs-150) > 1e-9 {
		t.Fatalf("expected 150ms reaction excluding the pause, got %v", o.ReactionMs)
	}
	if s.State().TimeRemainingSec != remaining {
		t.Fatalf("clock ran during pause: %d -> %d", remaining, s.State().TimeRemainingSec)
	}
	if err := s.Resume(at(ms(14000))); !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("expected ErrInvalidPhase on resume while playing, got %v", err)
	}
}

func TestTimerEndsSessionAndPersists(t *testing.T) {
	sink := &recordingSink{}
	var ended []SessionEnded
	s, err := New(model.Config{Module: model.ModulePitcherReaction, Difficulty: 1, DurationSec: 4, Seed: 9},
		WithRand(&scripted{floats: strikeDraws, fallback: 0.1}),
		WithSink(sink),
		WithUserID("u-7"),
		WithListener(func(ev Event) {
			if e, ok := ev.(SessionEnded); ok {
				ended = append(ended, e)
			}
		}),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	startPlaying(t, s)
	if _, err := s.Tap(at(ms(3800))); err != nil {
		t.Fatalf("tap: %v", err)
	}
	// Second round launches at 5.5s and is still in flight at the 7s end.
	for d := ms(3800); d <= ms(7100); d += ms(100) {
		s.Tick(at(d))
	}
	if s.Phase() != PhaseResult {
		t.Fatalf("expected result phase, got %s", s.Phase())
	}
	res, ok := s.Result()
	if !ok {
		t.Fatalf("expected frozen result")
	}
	if res.TotalAttempts != 1 || res.CorrectCount != 1 || res.TotalScore != 250 || res.AvgReactionMs != 300 {
		t.Fatalf("in-flight round should be discarded: %+v", res)
	}
	if res.DurationSec != 4 || res.Seed != 9 || res.ModuleID != model.ModulePitcherReaction {
		t.Fatalf("unexpected result meta %+v", res)
	}
	if sink.calls != 1 || sink.rec.UserID != "u-7" || sink.rec.ID == "" || len(sink.rounds) != 1 {
		t.Fatalf("unexpected sink call %+v", sink)
	}
	if len(ended) != 1 || ended[0].PersistErr != nil || ended[0].RecordID != sink.rec.ID {
		t.Fatalf("unexpected session ended events %+v", ended)
	}
	if s.State().TimeRemainingSec != 0 {
		t.Fatalf("expected 0s remaining")
	}

	s.Tick(at(ms(9000)))
	if sink.calls != 1 {
		t.Fatalf("result phase must persist exactly once")
	}
}

func TestPersistFailureIsSwallowed(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	var hookErr error
	s, _ := newPitcher(t, 1, strikeDraws, WithSink(sink), OnPersistError(func(err error) { hookErr = err }))
	startPlaying(t, s)
	s.Tick(at(time.Minute))

	res, ok := s.Result()
	if !ok {
		t.Fatalf("expected result despite persistence failure")
	}
	if res.ModuleID != model.ModulePitcherReaction {
		t.Fatalf("unexpected result %+v", res)
	}
	if s.PersistFailures() != 1 || hookErr == nil {
		t.Fatalf("expected failure to be reported, count=%d hook=%v", s.PersistFailures(), hookErr)
	}
}

func TestResetAndRestart(t *testing.T) {
	s, _ := newPitcher(t, 1, strikeDraws)
	startPlaying(t, s)
	if _, err := s.Tap(at(ms(3600))); err != nil {
		t.Fatalf("tap: %v", err)
	}
	s.Tick(at(time.Minute))
	if s.Phase() != PhaseResult {
		t.Fatalf("expected result")
	}
	s.Reset()
	st := s.State()
	if st.Phase != PhaseIdle || st.Score != 0 || st.Combo != 0 || st.MaxCombo != 0 || len(st.History) != 0 {
		t.Fatalf("reset left state behind: %+v", st)
	}
	if _, ok := s.Result(); ok {
		t.Fatalf("reset should clear the result")
	}
	if err := s.Start(at(2 * time.Minute)); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if s.Phase() != PhaseCountdown {
		t.Fatalf("expected countdown after restart")
	}
}

// playRounds runs one unanswered attempt from start and returns the
// launched rounds as "id:pitch" pairs.
func playRounds(t *testing.T, s *Session, started *[]string, start time.Time) []string {
	t.Helper()
	*started = nil
	if err := s.Start(start); err != nil {
		t.Fatalf("start: %v", err)
	}
	for d := time.Duration(0); d <= 15*time.Second; d += ms(50) {
		s.Tick(start.Add(d))
	}
	if s.Phase() != PhaseResult {
		t.Fatalf("expected result phase, got %s", s.Phase())
	}
	return append([]string(nil), (*started)...)
}

func seededPitcher(t *testing.T, seed int64) (*Session, *[]string) {
	t.Helper()
	var started []string
	s, err := New(model.Config{Module: model.ModulePitcherReaction, Difficulty: 2, DurationSec: 10, Seed: seed},
		WithListener(func(ev Event) {
			if e, ok := ev.(RoundStarted); ok {
				started = append(started, fmt.Sprintf("%s:%v", e.Spec.ID, e.Spec.Pitch))
			}
		}),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return s, &started
}

func TestRestartReplaysRecordedSeed(t *testing.T) {
	for _, seed := range []int64{42, 0} {
		s, started := seededPitcher(t, seed)
		first := playRounds(t, s, started, t0)
		firstRes, _ := s.Result()

		second := playRounds(t, s, started, at(time.Hour))
		secondRes, _ := s.Result()
		if len(second) == 0 || second[0][:4] != "r001" {
			t.Fatalf("seed %d: restart should number rounds from r001, got %v", seed, second)
		}
		if seed != 0 && (secondRes.Seed != seed || !slices.Equal(first, second)) {
			t.Fatalf("seed %d: restart diverged: %v vs %v", seed, first, second)
		}

		for _, res := range []model.SessionResult{firstRes, secondRes} {
			want := first
			if res.Seed == secondRes.Seed {
				want = second
			}
			replay, replayStarted := seededPitcher(t, res.Seed)
			got := playRounds(t, replay, replayStarted, t0)
			if !slices.Equal(got, want) {
				t.Fatalf("seed %d: recorded seed %d does not replay: %v vs %v", seed, res.Seed, got, want)
			}
		}
	}
}

func TestUnansweredSessionScoresZero(t *testing.T) {
	s, _ := newPitcher(t, 1, ballDraws)
	if err := s.Start(t0); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Tick(at(3 * time.Second))
	s.Tick(at(time.Hour))
	res, ok := s.Result()
	if !ok {
		t.Fatalf("expected result")
	}
	if res.Accuracy != 0 || res.AvgReactionMs != 0 || res.TotalScore != 0 {
		t.Fatalf("expected zeroed result, got %+v", res)
	}
}

func TestNumberHuntEndsAfterTargetRounds(t *testing.T) {
	s, err := New(model.Config{Module: model.ModuleBallNumberHunt, Difficulty: 1, DurationSec: 600}, WithRand(rng.NewSeeded(7)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sched := NewManualScheduler(t0)
	r := NewRunner(s, sched)
	if err := r.Start(sched.Now()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 100000 && s.Phase() != PhaseResult; i++ {
		sched.Step(10 * time.Millisecond)
		st := s.State()
		if st.Active != nil && st.Active.Revealed() {
			if _, err := s.Answer(st.Active.Spec.DisplayedNumber, sched.Now()); err != nil {
				t.Fatalf("answer: %v", err)
			}
		}
	}
	// The frame already queued when the last answer landed sees the result
	// phase and does not re-arm.
	sched.Step(10 * time.Millisecond)
	res, ok := s.Result()
	if !ok {
		t.Fatalf("session did not end")
	}
	target := difficulty.ProfileFor(1).TargetRoundCount
	if res.TotalAttempts != target || res.CorrectCount != target || res.Accuracy != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.MaxCombo != target {
		t.Fatalf("expected max combo %d, got %d", target, res.MaxCombo)
	}
	if r.Running() || sched.Pending() != 0 {
		t.Fatalf("runner should stop after the result")
	}
}

func TestNumberHuntRejectsEarlyAnswer(t *testing.T) {
	s, err := New(model.Config{Module: model.ModuleBallNumberHunt, Difficulty: 3}, WithRand(rng.NewSeeded(3)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Start(t0); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Tick(at(ms(3500)))
	st := s.State()
	if st.Active == nil || st.Active.Revealed() {
		t.Fatalf("expected an unrevealed number ball")
	}
	if _, err := s.Answer(st.Active.Spec.DisplayedNumber, at(ms(3600))); !errors.Is(err, ErrNoLiveStimulus) {
		t.Fatalf("expected early answer to be rejected, got %v", err)
	}
	if _, err := s.Tap(at(ms(3600))); err == nil {
		t.Fatalf("expected tap to be rejected by the number module")
	}
}

func TestRunnerPauseCancelsFrames(t *testing.T) {
	s, _ := newPitcher(t, 1, strikeDraws)
	sched := NewManualScheduler(t0)
	r := NewRunner(s, sched)
	if err := r.Start(sched.Now()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 40; i++ {
		sched.Step(100 * time.Millisecond)
	}
	if s.Phase() != PhasePlaying || sched.Pending() != 1 {
		t.Fatalf("expected one outstanding frame while playing, phase=%s pending=%d", s.Phase(), sched.Pending())
	}
	if err := r.Pause(sched.Now()); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if sched.Pending() != 0 || r.Running() {
		t.Fatalf("pause should cancel the outstanding frame")
	}
	sched.Advance(time.Minute)
	if err := r.Resume(sched.Now()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if sched.Pending() != 1 {
		t.Fatalf("resume should request a fresh frame")
	}
	sched.Step(16 * time.Millisecond)
	if s.Phase() != PhasePlaying {
		t.Fatalf("pause time leaked into the session clock: %s", s.Phase())
	}
}

func TestIndependentSessions(t *testing.T) {
	a, _ := newPitcher(t, 1, strikeDraws)
	b, _ := newPitcher(t, 1, strikeDraws)
	startPlaying(t, a)
	startPlaying(t, b)
	if _, err := a.Tap(at(ms(3600))); err != nil {
		t.Fatalf("tap: %v", err)
	}
	if b.State().Score != 0 || b.State().Active == nil {
		t.Fatalf("sessions share state")
	}
}
