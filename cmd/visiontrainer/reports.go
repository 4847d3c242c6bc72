package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/winniek75/baseball-vison.training/internal/badges"
	"github.com/winniek75/baseball-vison.training/internal/config"
	"github.com/winniek75/baseball-vison.training/internal/export"
	"github.com/winniek75/baseball-vison.training/internal/model"
	"github.com/winniek75/baseball-vison.training/internal/stats"
	"github.com/winniek75/baseball-vison.training/internal/statsui"
)

var (
	statsUser        string
	statsModule      string
	statsSince       string
	statsLast        int
	statsCurveWindow int

	reportUser string

	historyModule string
	historyLast   int

	exportUser   string
	exportModule string
	exportSince  string
	exportLast   int
	exportFormat string
	exportOutput string
	exportSave   bool
	exportRounds bool
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Browse stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsUser, "user", defaultUser, "user id")
	cmd.Flags().StringVar(&statsModule, "module", "", "module filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "user", &statsUser, fileCfg.Play.User)
	applyIntConfig(cmd, "last", &statsLast, fileCfg.Stats.Last)
	applyIntConfig(cmd, "curve-window", &statsCurveWindow, fileCfg.Stats.CurveWindow)

	if statsCurveWindow < 1 {
		return fmt.Errorf("--curve-window must be >= 1")
	}
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	module, err := parseModuleFilter(statsModule)
	if err != nil {
		return err
	}
	since, err := parseSince(statsSince)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	m := statsui.NewModel(st, model.StatsConfig{
		UserID:      statsUser,
		Module:      module,
		Since:       since,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
	})
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Print the vision profile",
		Args:  cobra.NoArgs,
		RunE:  runProfileCmd,
	}
	cmd.Flags().StringVar(&reportUser, "user", defaultUser, "user id")
	return cmd
}

func runProfileCmd(cmd *cobra.Command, _ []string) error {
	user, err := resolveReportUser(cmd)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	report, err := stats.BuildReport(ctx, st, model.StatsConfig{UserID: user, CurveWindow: defaultCurveWindow})
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	dates, err := st.PlayDates(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to load play dates: %w", err)
	}

	out := cmd.OutOrStdout()
	if err := stats.RenderProfile(out, report.Profile); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderSummary(out, report.Sessions); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if _, err := fmt.Fprintf(out, "Current streak: %d day(s)\n", badges.Streak(dates, time.Now())); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newBadgesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "badges",
		Short: "List earned badges",
		Args:  cobra.NoArgs,
		RunE:  runBadgesCmd,
	}
	cmd.Flags().StringVar(&reportUser, "user", defaultUser, "user id")
	return cmd
}

func runBadgesCmd(cmd *cobra.Command, _ []string) error {
	user, err := resolveReportUser(cmd)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	earned, err := st.ListBadges(cmd.Context(), user)
	if err != nil {
		return fmt.Errorf("failed to load badges: %w", err)
	}
	if err := badges.Render(cmd.OutOrStdout(), earned); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent sessions",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&reportUser, "user", defaultUser, "user id")
	cmd.Flags().StringVar(&historyModule, "module", "", "module filter")
	cmd.Flags().IntVar(&historyLast, "last", defaultHistoryLast, "number of sessions to show (0 = all)")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	user, err := resolveReportUser(cmd)
	if err != nil {
		return err
	}
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	module, err := parseModuleFilter(historyModule)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	sessions, err := st.ListSessions(cmd.Context(), model.StatsConfig{UserID: user, Module: module})
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}
	sessions = stats.LastN(sessions, historyLast)
	out := cmd.OutOrStdout()
	if err := stats.RenderSummary(out, sessions); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if len(sessions) == 0 {
		return nil
	}
	if err := stats.RenderHistory(out, sessions); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// resolveReportUser applies the configured user unless --user was given.
func resolveReportUser(cmd *cobra.Command) (string, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	user := reportUser
	applyStringConfig(cmd, "user", &user, fileCfg.Play.User)
	return user, nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export session history as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportUser, "user", defaultUser, "user id")
	cmd.Flags().StringVar(&exportModule, "module", "", "module filter")
	cmd.Flags().StringVar(&exportSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&exportLast, "last", 0, "limit to last N sessions")
	cmd.Flags().StringVar(&exportFormat, "format", string(export.FormatJSON), "output format (json, yaml)")
	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&exportSave, "save", false, "write a timestamped file to the export directory")
	cmd.Flags().BoolVar(&exportRounds, "rounds", false, "include per-round outcomes")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "user", &exportUser, fileCfg.Play.User)

	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	if exportLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if exportSave && exportOutput != "" {
		return fmt.Errorf("--save and --output are mutually exclusive")
	}
	module, err := parseModuleFilter(exportModule)
	if err != nil {
		return err
	}
	since, err := parseSince(exportSince)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	now := time.Now()
	doc, err := export.Build(cmd.Context(), st, model.StatsConfig{
		UserID: exportUser,
		Module: module,
		Since:  since,
		Last:   exportLast,
	}, exportRounds, now)
	if err != nil {
		return err
	}

	path := exportOutput
	if exportSave {
		path = filepath.Join(config.DefaultExportDir(), fmt.Sprintf("sessions-%s.%s", now.Format("20060102-150405"), format))
	}
	if path == "" {
		return export.Write(cmd.OutOrStdout(), format, doc)
	}
	if err := writeExportFile(path, format, doc); err != nil {
		return err
	}
	logErrf("Wrote %d sessions to %s\n", len(doc.Sessions), path)
	return nil
}

func writeExportFile(path string, format export.Format, doc export.Document) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close export file: %w", cerr)
		}
	}()
	return export.Write(f, format, doc)
}
