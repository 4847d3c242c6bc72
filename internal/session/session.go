// Package session runs one training session: countdown, timed play, pause,
// and the final result handed to the persistence sink.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/winniek75/baseball-vison.training/internal/approach"
	"github.com/winniek75/baseball-vison.training/internal/difficulty"
	"github.com/winniek75/baseball-vison.training/internal/generator"
	"github.com/winniek75/baseball-vison.training/internal/judge"
	"github.com/winniek75/baseball-vison.training/internal/model"
	"github.com/winniek75/baseball-vison.training/internal/rng"
	"github.com/winniek75/baseball-vison.training/internal/scoring"
	"github.com/winniek75/baseball-vison.training/internal/stats"
)

var (
	// ErrNoLiveStimulus is returned for input with nothing decidable. It is
	// a no-op marker, never a session failure.
	ErrNoLiveStimulus = judge.ErrNoLiveStimulus
	// ErrInvalidPhase is returned when an operation does not apply to the
	// current phase.
	ErrInvalidPhase = errors.New("operation not allowed in current phase")
)

// Phase is the session lifecycle stage.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCountdown
	PhasePlaying
	PhasePaused
	PhaseResult
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCountdown:
		return "countdown"
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	case PhaseResult:
		return "result"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Fixed presentation delays.
const (
	CountdownFrom         = 3
	LeadIn                = 500 * time.Millisecond
	CooldownAfterInput    = 600 * time.Millisecond
	CooldownAfterExpiry   = 800 * time.Millisecond
	countdownStep         = time.Second
	maxCatchUpIterations  = 10000
	defaultPersistTimeout = 5 * time.Second
)

// TransitionKind names the delay that gates the next launch.
type TransitionKind int

const (
	TransitionLeadIn TransitionKind = iota
	TransitionCooldownAfterInput
	TransitionCooldownAfterExpiry
	TransitionSpawnInterval
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionLeadIn:
		return "lead-in"
	case TransitionCooldownAfterInput:
		return "cooldown-after-input"
	case TransitionCooldownAfterExpiry:
		return "cooldown-after-expiry"
	case TransitionSpawnInterval:
		return "spawn-interval"
	default:
		return "unknown"
	}
}

// Transition is the scheduled launch of the next round, in game time.
type Transition struct {
	Kind TransitionKind
	At   time.Duration
}

// Sink receives finished sessions.
type Sink interface {
	SaveResult(ctx context.Context, rec model.SessionRecord, rounds []model.RoundOutcome) error
}

// State is a snapshot of the live session.
type State struct {
	Phase            Phase
	Score            int
	Combo            int
	MaxCombo         int
	Countdown        int
	TimeRemainingSec int
	RoundsResolved   int
	GameTime         time.Duration
	History          []model.RoundOutcome
	// Active is a copy of the in-flight stimulus, nil between rounds.
	Active *approach.State
}

// Option configures a Session.
type Option func(*Session)

// WithRand injects the random source.
func WithRand(src rng.Source) Option {
	return func(s *Session) { s.rnd = src }
}

// WithSink sets the persistence sink.
func WithSink(sink Sink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.log = logger }
}

// WithListener subscribes fn to session events. It may be given several times.
func WithListener(fn func(Event)) Option {
	return func(s *Session) { s.listeners = append(s.listeners, fn) }
}

// WithUserID overrides the user the result is recorded for.
func WithUserID(id string) Option {
	return func(s *Session) { s.cfg.UserID = id }
}

// WithContext sets the context used for sink writes.
func WithContext(ctx context.Context) Option {
	return func(s *Session) { s.ctx = ctx }
}

// OnPersistError registers a hook called when the sink fails.
func OnPersistError(fn func(error)) Option {
	return func(s *Session) { s.onPersistErr = fn }
}

// Session is an explicitly owned game session. It is not safe for
// concurrent use; one goroutine drives it.
type Session struct {
	cfg      model.Config
	profile  difficulty.Profile
	variant  model.Variant
	rules    judge.Rules
	duration time.Duration

	rnd          rng.Source
	gen          *generator.Generator
	injectedRand bool
	drawSeed     bool
	sink         Sink
	log          *slog.Logger
	ctx          context.Context
	listeners    []func(Event)
	onPersistErr func(error)

	clock     gameClock
	startedAt time.Time
	phase     Phase
	countdown int
	playStart time.Duration
	lastTime  time.Duration
	remaining int
	combo     scoring.Combo
	score     int
	history   []model.RoundOutcome
	active    *approach.State
	pending   *Transition
	result    *model.SessionResult

	persistFailures int
}

// New validates cfg and returns an idle session.
func New(cfg model.Config, opts ...Option) (*Session, error) {
	p, err := difficulty.Lookup(cfg.Difficulty)
	if err != nil {
		return nil, err
	}
	v, err := model.VariantFor(cfg.Module)
	if err != nil {
		return nil, err
	}
	if cfg.DurationSec < 0 {
		return nil, fmt.Errorf("invalid duration %d", cfg.DurationSec)
	}
	v.CountIgnoredBalls = cfg.CountIgnoredBalls

	s := &Session{
		cfg:     cfg,
		profile: p,
		variant: v,
		rules:   judge.RulesFor(p, v),
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		ctx:     context.Background(),
	}
	durationSec := cfg.DurationSec
	if durationSec == 0 {
		durationSec = p.SessionDurationSec
	}
	s.cfg.DurationSec = durationSec
	s.duration = time.Duration(durationSec) * time.Second

	for _, opt := range opts {
		opt(s)
	}
	s.injectedRand = s.rnd != nil
	s.drawSeed = cfg.Seed == 0 && cfg.SeedPhrase == ""
	s.reseed()
	return s, nil
}

// reseed rebuilds the random source and the generator so that the next
// attempt replays from s.cfg.Seed. A session without a configured seed
// draws a fresh one per attempt. An injected source is kept as is.
func (s *Session) reseed() {
	if !s.injectedRand {
		switch {
		case s.cfg.SeedPhrase != "":
			s.rnd = rng.NewStream(s.cfg.SeedPhrase, uint64(s.cfg.Seed))
		default:
			if s.drawSeed {
				s.cfg.Seed = rng.NewSeed()
			}
			s.rnd = rng.NewSeeded(s.cfg.Seed)
		}
	}
	s.gen = generator.New(s.rnd, s.variant)
}

// Config returns the effective configuration.
func (s *Session) Config() model.Config { return s.cfg }

// Profile returns the difficulty profile in use.
func (s *Session) Profile() difficulty.Profile { return s.profile }

// Variant returns the module rules in use.
func (s *Session) Variant() model.Variant { return s.variant }

// Rules returns the judging rules in use.
func (s *Session) Rules() judge.Rules { return s.rules }

// Phase returns the current phase.
func (s *Session) Phase() Phase { return s.phase }

// PersistFailures counts sink errors since New.
func (s *Session) PersistFailures() int { return s.persistFailures }

// Start begins the countdown. A finished session is reset first.
func (s *Session) Start(now time.Time) error {
	switch s.phase {
	case PhaseIdle:
	case PhaseResult:
		s.Reset()
	default:
		return fmt.Errorf("%w: start from %s", ErrInvalidPhase, s.phase)
	}
	s.clock.start(now)
	s.startedAt = now
	s.countdown = CountdownFrom
	s.remaining = int(s.duration / time.Second)
	s.setPhase(PhaseCountdown, 0)
	s.emit(CountdownTicked{Remaining: s.countdown})
	return nil
}

// Tick advances the session to wall time now.
func (s *Session) Tick(now time.Time) {
	switch s.phase {
	case PhaseCountdown:
		t := s.clock.at(now)
		s.lastTime = t
		remaining := max(CountdownFrom-int(t/countdownStep), 0)
		if remaining < s.countdown {
			s.countdown = remaining
			s.emit(CountdownTicked{Remaining: remaining})
		}
		if remaining == 0 {
			s.enterPlaying()
			s.advance(t, now)
		}
	case PhasePlaying:
		s.advance(s.clock.at(now), now)
	}
}

func (s *Session) enterPlaying() {
	s.playStart = time.Duration(CountdownFrom) * countdownStep
	s.pending = &Transition{Kind: TransitionLeadIn, At: s.playStart + LeadIn}
	s.setPhase(PhasePlaying, s.playStart)
}

// advance processes everything due up to game time t in chronological
// order: reveals, expiries, launches, then the session clock.
func (s *Session) advance(t time.Duration, now time.Time) {
	if t < s.lastTime {
		t = s.lastTime
	}
	s.lastTime = t
	endAt := s.playStart + s.duration
	horizon := min(t, endAt)

	for i := 0; i < maxCatchUpIterations && s.phase == PhasePlaying; i++ {
		if s.active != nil {
			step := s.active.Advance(horizon)
			if step.Revealed {
				s.emit(RoundRevealed{Spec: s.active.Spec, At: s.active.DecidableSince()})
			}
			if !step.Expired {
				break
			}
			expiredAt := s.active.SpawnAt + s.active.Timing.ExpireAt
			s.resolve(judge.Expire(s.active.Spec, s.rules), expiredAt, now)
			continue
		}
		if s.pending == nil || s.pending.At > horizon {
			break
		}
		s.launch(s.pending.At)
	}

	if s.phase != PhasePlaying {
		return
	}
	elapsed := t - s.playStart
	s.remaining = max(int((s.duration-elapsed+time.Second-1)/time.Second), 0)
	if t >= endAt {
		s.finish(endAt, now)
	}
}

func (s *Session) launch(at time.Duration) {
	spec := s.gen.NextRound(s.profile, at)
	timing := approach.TimingFor(s.profile, s.variant, spec)
	s.active = approach.Launch(spec, timing, at)
	s.pending = nil
	s.emit(RoundStarted{Spec: spec, At: at})
}

// Tap resolves the live stimulus with a tap at wall time now.
func (s *Session) Tap(now time.Time) (model.RoundOutcome, error) {
	return s.input(now, func(t time.Duration) (model.RoundOutcome, error) {
		return judge.Tap(s.active, t, s.rules)
	})
}

// Answer resolves the live stimulus with a submitted number at wall time now.
func (s *Session) Answer(value int, now time.Time) (model.RoundOutcome, error) {
	return s.input(now, func(t time.Duration) (model.RoundOutcome, error) {
		return judge.Answer(s.active, value, t, s.rules)
	})
}

func (s *Session) input(now time.Time, judgeFn func(time.Duration) (model.RoundOutcome, error)) (model.RoundOutcome, error) {
	if s.phase != PhasePlaying {
		return model.RoundOutcome{}, ErrNoLiveStimulus
	}
	t := s.clock.at(now)
	if t < s.lastTime {
		t = s.lastTime
	}
	// Bring the stimulus to the input's instant first; input stamped at or
	// before the window boundary still wins over expiry.
	s.advance(t, now)
	if s.phase != PhasePlaying || s.active == nil {
		return model.RoundOutcome{}, ErrNoLiveStimulus
	}
	o, err := judgeFn(t)
	if err != nil {
		return model.RoundOutcome{}, err
	}
	return s.resolve(o, t, now), nil
}

// resolve scores o, appends it to the history and schedules the next round.
func (s *Session) resolve(o model.RoundOutcome, at time.Duration, now time.Time) model.RoundOutcome {
	if !s.active.Resolve() {
		return o
	}
	spawnAt := s.active.SpawnAt
	s.active = nil

	o.PointsAwarded = scoring.Award(o, s.rules.WindowMs, s.profile.Level, s.combo.Current())
	if o.Counted {
		if o.IsCorrect {
			s.combo.Hit()
		} else {
			s.combo.Break()
		}
	}
	s.score += o.PointsAwarded
	s.history = append(s.history, o)
	s.emit(RoundResolved{
		Outcome:  o,
		Feedback: scoring.FeedbackFor(o, s.rules.WindowMs),
		Score:    s.score,
		Combo:    s.combo.Current(),
		At:       at,
	})

	if s.variant.RoundLimited && len(s.history) >= s.profile.TargetRoundCount {
		s.finish(at, now)
		return o
	}

	next := Transition{Kind: TransitionCooldownAfterInput, At: at + CooldownAfterInput}
	if o.Expired {
		next = Transition{Kind: TransitionCooldownAfterExpiry, At: at + CooldownAfterExpiry}
	}
	if s.variant.StrikeBall {
		if gap := spawnAt + time.Duration(s.profile.BallIntervalMs)*time.Millisecond; gap > next.At {
			next = Transition{Kind: TransitionSpawnInterval, At: gap}
		}
	}
	s.pending = &next
	return o
}

// finish freezes the result, hands it to the sink and enters the result
// phase. An unresolved stimulus is discarded unscored.
func (s *Session) finish(at time.Duration, now time.Time) {
	s.active = nil
	s.pending = nil
	if !s.variant.RoundLimited || at >= s.playStart+s.duration {
		s.remaining = 0
	}

	res := stats.Aggregate(s.history, stats.Meta{
		ModuleID:    s.cfg.Module,
		Difficulty:  s.cfg.Difficulty,
		DurationSec: s.cfg.DurationSec,
		Seed:        s.cfg.Seed,
		StartedAt:   s.startedAt,
		EndedAt:     now,
	})
	s.result = &res
	s.setPhase(PhaseResult, at)

	ended := SessionEnded{Result: res}
	if s.sink != nil {
		rec := model.SessionRecord{
			ID:       uuid.NewString(),
			UserID:   s.cfg.UserID,
			PlayedAt: now,
			Result:   res,
		}
		ended.RecordID = rec.ID
		ended.PersistErr = s.persist(rec)
	}
	s.emit(ended)
}

func (s *Session) persist(rec model.SessionRecord) error {
	ctx, cancel := context.WithTimeout(s.ctx, defaultPersistTimeout)
	defer cancel()
	rounds := make([]model.RoundOutcome, len(s.history))
	copy(rounds, s.history)
	err := s.sink.SaveResult(ctx, rec, rounds)
	if err == nil {
		return nil
	}
	s.persistFailures++
	s.log.Error("failed to persist session", "id", rec.ID, "module", rec.Result.ModuleID, "err", err)
	if s.onPersistErr != nil {
		s.onPersistErr(err)
	}
	return err
}

// Pause freezes game time and the session clock.
func (s *Session) Pause(now time.Time) error {
	if s.phase != PhasePlaying {
		return fmt.Errorf("%w: pause from %s", ErrInvalidPhase, s.phase)
	}
	t := s.clock.at(now)
	s.advance(t, now)
	if s.phase != PhasePlaying {
		return fmt.Errorf("%w: session ended", ErrInvalidPhase)
	}
	s.clock.pause(now)
	s.setPhase(PhasePaused, s.lastTime)
	return nil
}

// Resume continues a paused session where it left off.
func (s *Session) Resume(now time.Time) error {
	if s.phase != PhasePaused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidPhase, s.phase)
	}
	s.clock.resume(now)
	s.setPhase(PhasePlaying, s.clock.at(now))
	return nil
}

// Reset discards all live state and returns to idle. The next attempt
// restarts the round sequence from the recorded seed.
func (s *Session) Reset() {
	from := s.phase
	s.clock = gameClock{}
	s.startedAt = time.Time{}
	s.countdown = 0
	s.playStart = 0
	s.lastTime = 0
	s.remaining = 0
	s.combo.Reset()
	s.score = 0
	s.history = nil
	s.active = nil
	s.pending = nil
	s.result = nil
	if from != PhaseIdle {
		s.reseed()
	}
	s.phase = PhaseIdle
	if from != PhaseIdle {
		s.log.Debug("session phase", "from", from, "to", PhaseIdle)
		s.emit(PhaseChanged{From: from, To: PhaseIdle})
	}
}

// State returns a snapshot of the live session.
func (s *Session) State() State {
	st := State{
		Phase:            s.phase,
		Score:            s.score,
		Combo:            s.combo.Current(),
		MaxCombo:         s.combo.Max(),
		Countdown:        s.countdown,
		TimeRemainingSec: s.remaining,
		RoundsResolved:   len(s.history),
		GameTime:         s.lastTime,
		History:          append([]model.RoundOutcome(nil), s.history...),
	}
	if s.active != nil {
		active := *s.active
		st.Active = &active
	}
	return st
}

// Result returns the frozen result once the session has ended.
func (s *Session) Result() (model.SessionResult, bool) {
	if s.result == nil {
		return model.SessionResult{}, false
	}
	return *s.result, true
}

// Pending returns the scheduled launch of the next round, if any.
func (s *Session) Pending() (Transition, bool) {
	if s.pending == nil {
		return Transition{}, false
	}
	return *s.pending, true
}

// PausedFor returns the accumulated pause time at wall time now.
func (s *Session) PausedFor(now time.Time) time.Duration {
	return s.clock.pausedFor(now)
}

func (s *Session) setPhase(to Phase, at time.Duration) {
	from := s.phase
	s.phase = to
	s.log.Debug("session phase", "from", from, "to", to, "at", at)
	s.emit(PhaseChanged{From: from, To: to, At: at})
}

func (s *Session) emit(ev Event) {
	for _, fn := range s.listeners {
		fn(ev)
	}
}
