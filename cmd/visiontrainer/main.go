// Package main provides the CLI entrypoint for visiontrainer.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/winniek75/baseball-vison.training/internal/badges"
	"github.com/winniek75/baseball-vison.training/internal/config"
	"github.com/winniek75/baseball-vison.training/internal/difficulty"
	"github.com/winniek75/baseball-vison.training/internal/model"
	"github.com/winniek75/baseball-vison.training/internal/session"
	"github.com/winniek75/baseball-vison.training/internal/store"
	"github.com/winniek75/baseball-vison.training/internal/tui"
)

const (
	defaultModule       = string(model.ModulePitcherReaction)
	defaultDifficulty   = 1
	defaultUser         = "local"
	defaultCurveWindow  = 10
	defaultHistoryLast  = 20
	defaultSimRuns      = 20
	defaultReactionMean = 280
	defaultJitter       = 60
	defaultErrorRate    = 0.1
)

var (
	playModule            string
	playDifficulty        int
	playDuration          int
	playSeed              int64
	playSeedPhrase        string
	playUser              string
	playCountIgnoredBalls bool

	debugLogging bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "visiontrainer",
		Short:         "Baseball vision training in the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}

	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "log engine transitions to stderr")

	rootCmd.Flags().StringVar(&playModule, "module", defaultModule, "training module (pitcher-reaction, ball-number-hunt)")
	rootCmd.Flags().IntVar(&playDifficulty, "difficulty", defaultDifficulty, "difficulty level 1 (Rookie) to 5 (Elite)")
	rootCmd.Flags().IntVar(&playDuration, "duration", 0, "session length in seconds (0 = difficulty default)")
	rootCmd.Flags().Int64Var(&playSeed, "seed", 0, "random seed (0 = random)")
	rootCmd.Flags().StringVar(&playSeedPhrase, "seed-phrase", "", "derive a replayable round sequence from a phrase")
	rootCmd.Flags().StringVar(&playUser, "user", defaultUser, "user id recorded with each session")
	rootCmd.Flags().BoolVar(&playCountIgnoredBalls, "count-ignored-balls", false, "count an untapped ball as a correct attempt")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newBadgesCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newSimCmd())

	return rootCmd
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if debugLogging {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "module", &playModule, fileCfg.Play.Module)
	applyIntConfig(cmd, "difficulty", &playDifficulty, fileCfg.Play.Difficulty)
	applyIntConfig(cmd, "duration", &playDuration, fileCfg.Play.Duration)
	applyInt64Config(cmd, "seed", &playSeed, fileCfg.Play.Seed)
	applyStringConfig(cmd, "user", &playUser, fileCfg.Play.User)
	applyBoolConfig(cmd, "count-ignored-balls", &playCountIgnoredBalls, fileCfg.Play.CountIgnoredBalls)

	cfg := model.Config{
		UserID:            playUser,
		Module:            model.ModuleID(playModule),
		Difficulty:        model.Difficulty(playDifficulty),
		DurationSec:       playDuration,
		Seed:              playSeed,
		SeedPhrase:        playSeedPhrase,
		CountIgnoredBalls: playCountIgnoredBalls,
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	logger := newLogger(os.Stderr)
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	history, err := st.ListSessions(ctx, model.StatsConfig{UserID: cfg.UserID, Module: cfg.Module})
	if err != nil {
		logger.Error("failed to load history", "err", err)
	}

	m, err := tui.NewModel(cfg, tui.Options{
		Sink:    st,
		Logger:  logger,
		History: history,
		AfterSession: func(ended session.SessionEnded) []string {
			return awardBadges(ctx, st, logger, cfg.UserID, ended, time.Now())
		},
	})
	if err != nil {
		return err
	}
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// badgeStore is the part of the store badge evaluation reads and writes.
type badgeStore interface {
	CountSessions(ctx context.Context, userID string) (int, error)
	PlayDates(ctx context.Context, userID string) ([]time.Time, error)
	PlayedModules(ctx context.Context, userID string) ([]model.ModuleID, error)
	ListBadges(ctx context.Context, userID string) ([]model.EarnedBadge, error)
	InsertBadges(ctx context.Context, userID string, keys []string, at time.Time) error
}

// awardBadges evaluates the rule table against a persisted session and
// records what it unlocked. Unsaved sessions earn nothing.
func awardBadges(ctx context.Context, st badgeStore, logger *slog.Logger, userID string, ended session.SessionEnded, now time.Time) []string {
	if ended.PersistErr != nil || ended.RecordID == "" {
		return nil
	}
	bctx, err := badgeContext(ctx, st, userID, now)
	if err != nil {
		logger.Error("failed to load badge history", "err", err)
		return nil
	}
	keys := badges.Evaluate(ended.Result, bctx)
	if err := st.InsertBadges(ctx, userID, keys, now); err != nil {
		logger.Error("failed to save badges", "err", err, "badges", keys)
		return nil
	}
	return keys
}

func badgeContext(ctx context.Context, st badgeStore, userID string, now time.Time) (badges.Context, error) {
	count, err := st.CountSessions(ctx, userID)
	if err != nil {
		return badges.Context{}, fmt.Errorf("failed to count sessions: %w", err)
	}
	dates, err := st.PlayDates(ctx, userID)
	if err != nil {
		return badges.Context{}, fmt.Errorf("failed to load play dates: %w", err)
	}
	played, err := st.PlayedModules(ctx, userID)
	if err != nil {
		return badges.Context{}, fmt.Errorf("failed to load played modules: %w", err)
	}
	earned, err := st.ListBadges(ctx, userID)
	if err != nil {
		return badges.Context{}, fmt.Errorf("failed to load badges: %w", err)
	}
	keys := make([]string, 0, len(earned))
	for _, b := range earned {
		keys = append(keys, b.Key)
	}
	return badges.Context{
		Earned:        keys,
		CurrentStreak: badges.Streak(dates, now.Local()),
		FirstPlay:     count == 1,
		PlayedModules: played,
	}, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		logErrln("Created", path)
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return config.Template(config.Defaults{
		Module:       defaultModule,
		Difficulty:   defaultDifficulty,
		CurveWindow:  defaultCurveWindow,
		SimRuns:      defaultSimRuns,
		ReactionMean: defaultReactionMean,
		Jitter:       defaultJitter,
		ErrorRate:    defaultErrorRate,
	})
}

func validateConfig(cfg model.Config) error {
	if !cfg.Difficulty.Valid() {
		return fmt.Errorf("--difficulty must be between %d and %d: %w", model.MinDifficulty, model.MaxDifficulty, difficulty.ErrInvalidLevel)
	}
	if _, err := model.VariantFor(cfg.Module); err != nil {
		return fmt.Errorf("--module: %w (playable: %s)", err, playableList())
	}
	if cfg.DurationSec < 0 {
		return fmt.Errorf("--duration must be >= 0")
	}
	if strings.TrimSpace(cfg.UserID) == "" {
		return fmt.Errorf("--user must not be empty")
	}
	return nil
}

func playableList() string {
	ids := model.PlayableModules()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}

func parseSince(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --since value: %w", err)
	}
	return &parsed, nil
}

func parseModuleFilter(value string) (model.ModuleID, error) {
	if value == "" {
		return "", nil
	}
	if _, err := model.LookupModule(model.ModuleID(value)); err != nil {
		return "", fmt.Errorf("--module: %w", err)
	}
	return model.ModuleID(value), nil
}

func openStore() (*store.Store, func(), error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}, nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
