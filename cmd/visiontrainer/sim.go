package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/winniek75/baseball-vison.training/internal/bot"
	"github.com/winniek75/baseball-vison.training/internal/config"
	"github.com/winniek75/baseball-vison.training/internal/model"
	"github.com/winniek75/baseball-vison.training/internal/rng"
	"github.com/winniek75/baseball-vison.training/internal/session"
	"github.com/winniek75/baseball-vison.training/internal/stats"
)

// botSeedOffset separates the bot's random stream from the session's.
const botSeedOffset = 1 << 32

var (
	simModule       string
	simDifficulty   int
	simDuration     int
	simSeed         int64
	simSeedPhrase   string
	simRuns         int
	simReactionMean int
	simJitter       int
	simErrorRate    float64
	simUser         string
	simSave         bool
	simWorkers      int
)

func newSimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Play seeded sessions with a scripted player",
		Args:  cobra.NoArgs,
		RunE:  runSimCmd,
	}
	cmd.Flags().StringVar(&simModule, "module", defaultModule, "training module")
	cmd.Flags().IntVar(&simDifficulty, "difficulty", defaultDifficulty, "difficulty level 1-5")
	cmd.Flags().IntVar(&simDuration, "duration", 0, "session length in seconds (0 = difficulty default)")
	cmd.Flags().Int64Var(&simSeed, "seed", 0, "base seed; run i uses seed+i (0 = random)")
	cmd.Flags().StringVar(&simSeedPhrase, "seed-phrase", "", "derive round sequences from a phrase")
	cmd.Flags().IntVar(&simRuns, "runs", defaultSimRuns, "number of sessions")
	cmd.Flags().IntVar(&simReactionMean, "reaction-mean", defaultReactionMean, "mean reaction time in ms")
	cmd.Flags().IntVar(&simJitter, "jitter", defaultJitter, "reaction jitter in ms")
	cmd.Flags().Float64Var(&simErrorRate, "error-rate", defaultErrorRate, "probability of a wrong input (0-1)")
	cmd.Flags().StringVar(&simUser, "user", "bot", "user id for saved sessions")
	cmd.Flags().BoolVar(&simSave, "save", false, "persist results to the history database")
	cmd.Flags().IntVar(&simWorkers, "workers", runtime.NumCPU(), "parallel sessions")
	return cmd
}

func runSimCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyIntConfig(cmd, "runs", &simRuns, fileCfg.Sim.Runs)
	applyIntConfig(cmd, "reaction-mean", &simReactionMean, fileCfg.Sim.ReactionMean)
	applyIntConfig(cmd, "jitter", &simJitter, fileCfg.Sim.Jitter)
	applyFloatConfig(cmd, "error-rate", &simErrorRate, fileCfg.Sim.ErrorRate)

	cfg := model.Config{
		UserID:      simUser,
		Module:      model.ModuleID(simModule),
		Difficulty:  model.Difficulty(simDifficulty),
		DurationSec: simDuration,
		Seed:        simSeed,
		SeedPhrase:  simSeedPhrase,
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}
	if simRuns <= 0 {
		return fmt.Errorf("--runs must be > 0")
	}
	if simWorkers <= 0 {
		return fmt.Errorf("--workers must be > 0")
	}
	botCfg := bot.Config{
		ReactionMean: time.Duration(simReactionMean) * time.Millisecond,
		Jitter:       time.Duration(simJitter) * time.Millisecond,
		ErrorRate:    simErrorRate,
	}
	if err := botCfg.Validate(); err != nil {
		return err
	}
	if cfg.Seed == 0 && cfg.SeedPhrase == "" {
		cfg.Seed = rng.NewSeed()
	}

	logger := newLogger(cmd.ErrOrStderr())
	runs, err := simulate(cmd.Context(), cfg, botCfg, simRuns, simWorkers, time.Now(), logger)
	if err != nil {
		return err
	}

	if simSave {
		st, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()
		for _, r := range runs {
			if err := st.SaveResult(cmd.Context(), r.record, r.rounds); err != nil {
				return fmt.Errorf("failed to save sim session: %w", err)
			}
		}
		logErrf("Saved %d sessions for user %q\n", len(runs), cfg.UserID)
	}
	return renderSim(cmd.OutOrStdout(), cfg, runs)
}

type simRun struct {
	record model.SessionRecord
	rounds []model.RoundOutcome
	inputs int
	late   int
}

// simulate plays runs sessions concurrently. Run i uses seed cfg.Seed+i, so
// the batch is reproducible regardless of scheduling.
func simulate(ctx context.Context, cfg model.Config, botCfg bot.Config, runs, workers int, start time.Time, logger *slog.Logger) ([]simRun, error) {
	out := make([]simRun, runs)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < runs; i++ {
		g.Go(func() error {
			runCfg := cfg
			runCfg.Seed = cfg.Seed + int64(i)
			b := bot.New(botCfg, rng.NewSeeded(runCfg.Seed+botSeedOffset))
			s, err := session.New(runCfg,
				session.WithLogger(logger.With("run", i)),
				session.WithListener(b.Observe),
			)
			if err != nil {
				return fmt.Errorf("failed to create session %d: %w", i, err)
			}
			res, err := bot.Run(ctx, s, b, start, bot.DefaultFrame)
			if err != nil {
				return fmt.Errorf("failed to run session %d: %w", i, err)
			}
			out[i] = simRun{
				record: model.SessionRecord{UserID: runCfg.UserID, PlayedAt: res.EndedAt, Result: res},
				rounds: s.State().History,
				inputs: b.Inputs(),
				late:   b.Late(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func renderSim(w io.Writer, cfg model.Config, runs []simRun) error {
	records := make([]model.SessionRecord, len(runs))
	inputs, late := 0, 0
	for i, r := range runs {
		records[i] = r.record
		inputs += r.inputs
		late += r.late
	}
	seeds := fmt.Sprintf("seeds %d..%d", cfg.Seed, cfg.Seed+int64(len(runs)-1))
	if cfg.SeedPhrase != "" {
		seeds = fmt.Sprintf("phrase %q nonces %d..%d", cfg.SeedPhrase, cfg.Seed, cfg.Seed+int64(len(runs)-1))
	}
	if _, err := fmt.Fprintf(w, "Simulated %d x %s level %d (%s)\n\n", len(runs), cfg.Module, cfg.Difficulty, seeds); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderSummary(w, records); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if _, err := fmt.Fprintf(w, "Inputs: %d (late: %d)\n", inputs, late); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
