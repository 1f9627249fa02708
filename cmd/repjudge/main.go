// Package main provides the CLI entrypoint for repjudge.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cheggaaa/pb/v3"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/repjudge/internal/analysis"
	"github.com/verte-zerg/repjudge/internal/config"
	"github.com/verte-zerg/repjudge/internal/historyui"
	"github.com/verte-zerg/repjudge/internal/judge"
	"github.com/verte-zerg/repjudge/internal/log"
	"github.com/verte-zerg/repjudge/internal/model"
	"github.com/verte-zerg/repjudge/internal/pose"
	"github.com/verte-zerg/repjudge/internal/report"
	"github.com/verte-zerg/repjudge/internal/server"
	"github.com/verte-zerg/repjudge/internal/store"
	"github.com/verte-zerg/repjudge/internal/tui"
)

const (
	defaultMovement = "thruster"
	defaultSide     = "left"
	defaultAddr     = "127.0.0.1:8787"
	defaultLogLevel = "warn"
	defaultSpeed    = 1.0
)

// judgeSettings holds the flags shared by analyze and serve.
type judgeSettings struct {
	movement      string
	depth         float64
	extension     float64
	side          string
	minVisibility float64
	fps           float64
	maxDuration   float64
}

var (
	logLevel string

	analyzeSettings judgeSettings
	analyzeCSV      string
	analyzeNoSave   bool
	analyzeReplay   bool
	analyzeSpeed    float64
	analyzeChart    bool

	reportCSV string

	historyMovement string
	historySince    string
	historyLast     int
	historyPlain    bool

	serveSettings judgeSettings
	serveAddr     string
	serveNoSave   bool
)

func main() {
	// A .env file in the working directory may set REPJUDGE_* and XDG variables.
	_ = godotenv.Load()
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "repjudge",
		Short:         "Judge functional-fitness reps from pose streams",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			log.Init(logLevel)
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMovementsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func (s *judgeSettings) register(cmd *cobra.Command, withStream bool) {
	cmd.Flags().StringVar(&s.movement, "movement", defaultMovement, "movement to judge ("+strings.Join(movementSlugs(), ", ")+")")
	cmd.Flags().Float64Var(&s.depth, "depth", judge.DefaultDepthThreshold, "knee angle below which depth is reached (degrees)")
	cmd.Flags().Float64Var(&s.extension, "extension", judge.DefaultExtensionThreshold, "angle above which hips, knees and elbows count as extended (degrees)")
	cmd.Flags().StringVar(&s.side, "side", defaultSide, "body side read from full landmark sets (left, right)")
	cmd.Flags().Float64Var(&s.minVisibility, "min-visibility", pose.DefaultMinVisibility, "minimum landmark visibility (0-1)")
	cmd.Flags().Float64Var(&s.fps, "fps", analysis.DefaultFPS, "frame rate for frames without timestamps")
	if withStream {
		cmd.Flags().Float64Var(&s.maxDuration, "max-duration", analysis.DefaultMaxDuration, "seconds of video to analyze (0 = no limit)")
	}
}

// resolve overlays config file values on flags the user did not set.
func (s *judgeSettings) resolve(cmd *cobra.Command, fileCfg config.FileConfig) model.AnalyzeConfig {
	applyStringConfig(cmd, "movement", &s.movement, fileCfg.Judge.Movement)
	applyFloatConfig(cmd, "depth", &s.depth, fileCfg.Judge.Depth)
	applyFloatConfig(cmd, "extension", &s.extension, fileCfg.Judge.Extension)
	applyStringConfig(cmd, "side", &s.side, fileCfg.Analyze.Side)
	applyFloatConfig(cmd, "min-visibility", &s.minVisibility, fileCfg.Analyze.MinVisibility)
	applyFloatConfig(cmd, "fps", &s.fps, fileCfg.Analyze.FPS)
	if cmd.Flags().Lookup("max-duration") != nil {
		applyFloatConfig(cmd, "max-duration", &s.maxDuration, fileCfg.Analyze.MaxDuration)
	}
	return model.AnalyzeConfig{
		Movement:      s.movement,
		Depth:         s.depth,
		Extension:     s.extension,
		Side:          s.side,
		MinVisibility: s.minVisibility,
		FPS:           s.fps,
		MaxDuration:   s.maxDuration,
	}
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <frames.jsonl|->",
		Short: "Judge a recorded pose stream",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyzeCmd,
	}
	analyzeSettings.register(cmd, true)
	cmd.Flags().StringVar(&analyzeCSV, "csv", "", "write the event log as CSV to this path (- for stdout)")
	cmd.Flags().BoolVar(&analyzeNoSave, "no-save", false, "do not store the session")
	cmd.Flags().BoolVar(&analyzeReplay, "replay", false, "replay the stream in a terminal UI")
	cmd.Flags().Float64Var(&analyzeSpeed, "speed", defaultSpeed, "replay speed multiplier")
	cmd.Flags().BoolVar(&analyzeChart, "chart", false, "plot the knee angle instead of a sparkline")
	return cmd
}

func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := analyzeSettings.resolve(cmd, fileCfg)
	if analyzeSpeed <= 0 {
		return fmt.Errorf("--speed must be > 0")
	}
	j, opts, err := analysis.FromConfig(cfg)
	if err != nil {
		return err
	}

	input, source, err := openInput(args[0])
	if err != nil {
		return err
	}
	defer func() {
		if cerr := input.Close(); cerr != nil {
			logErrf("failed to close input: %v\n", cerr)
		}
	}()

	started := time.Now()
	var summary analysis.Summary
	if analyzeReplay {
		summary, err = replay(input, j, opts, source)
	} else {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		reader, finish := withProgress(input)
		summary, err = analysis.Run(ctx, pose.NewDecoder(reader), j, opts, nil)
		finish()
		stop()
		if errors.Is(err, context.Canceled) {
			logErrln("interrupted; reporting partial results")
			err = nil
		}
	}
	if err != nil {
		return err
	}

	sc := report.FromSummary(summary)
	if !analyzeNoSave {
		id, err := saveSummary(cfg, source, started, summary)
		if err != nil {
			logErrf("failed to save session: %v\n", err)
		} else {
			sc.SessionID = id
		}
	}

	out := cmd.OutOrStdout()
	if analyzeCSV == "-" {
		return report.WriteCSV(out, summary.Events)
	}
	renderOpts := report.RenderOptions{
		Color: report.ShouldUseColor(out, false),
		Width: report.TerminalWidth(),
		Chart: analyzeChart,
	}
	if err := report.RenderScorecard(out, sc, renderOpts); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if analyzeCSV != "" {
		if err := writeCSVFile(analyzeCSV, summary.Events); err != nil {
			return err
		}
		logErrf("Wrote %s\n", analyzeCSV)
	}
	return nil
}

func replay(input io.Reader, j *judge.Judge, opts analysis.Options, source string) (analysis.Summary, error) {
	frames, err := pose.ReadAll(input)
	if err != nil {
		return analysis.Summary{}, fmt.Errorf("failed to read frame: %w", err)
	}
	session := analysis.NewSession(j, opts)
	m := tui.NewModel(session, frames, opts.FPS, analyzeSpeed, source)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return analysis.Summary{}, fmt.Errorf("failed to run replay TUI: %w", err)
	}
	if m.Interrupted() {
		logErrln("replay interrupted; reporting partial results")
	}
	return m.Summary(), nil
}

// withProgress wraps regular files in a byte progress bar on an interactive stderr.
func withProgress(input io.ReadCloser) (io.Reader, func()) {
	f, ok := input.(*os.File)
	if !ok || !report.IsTerminal(os.Stderr) {
		return input, func() {}
	}
	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return input, func() {}
	}
	bar := pb.Full.Start64(info.Size())
	bar.Set(pb.Bytes, true)
	return bar.NewProxyReader(f), func() { bar.Finish() }
}

func openInput(path string) (io.ReadCloser, string, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), "stdin", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open pose stream: %w", err)
	}
	return f, filepath.Base(path), nil
}

func saveSummary(cfg model.AnalyzeConfig, source string, started time.Time, summary analysis.Summary) (string, error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return "", fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	sess := model.Session{
		UUID:               uuid.NewString(),
		StartedAt:          started,
		EndedAt:            time.Now(),
		Source:             source,
		Movement:           summary.Config.Movement.Slug(),
		DepthThreshold:     summary.Config.DepthThreshold,
		ExtensionThreshold: summary.Config.ExtensionThreshold,
		Side:               cfg.Side,
		Reps:               summary.Reps,
		NoReps:             summary.NoReps,
		Frames:             summary.Frames,
		SkippedFrames:      summary.Skipped,
		AnalyzedSeconds:    summary.Analyzed,
	}
	if _, err := st.InsertSession(context.Background(), sess, summary.Events); err != nil {
		return "", err
	}
	return sess.UUID, nil
}

func writeCSVFile(path string, events []judge.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv: %w", err)
	}
	if err := report.WriteCSV(f, events); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close csv: %w", err)
	}
	return nil
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <session-id>",
		Short: "Print a stored session",
		Args:  cobra.ExactArgs(1),
		RunE:  runReportCmd,
	}
	cmd.Flags().StringVar(&reportCSV, "csv", "", "export the event log as CSV to this path (- for stdout)")
	return cmd
}

func runReportCmd(cmd *cobra.Command, args []string) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx := context.Background()
	sess, err := st.GetSession(ctx, args[0])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("session %q not found (see: repjudge history)", args[0])
		}
		return fmt.Errorf("failed to load session: %w", err)
	}
	events, err := st.ListEvents(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}

	out := cmd.OutOrStdout()
	switch reportCSV {
	case "":
	case "-":
		return report.WriteCSV(out, events)
	default:
		if err := writeCSVFile(reportCSV, events); err != nil {
			return err
		}
		logErrf("Wrote %s\n", reportCSV)
	}
	opts := report.RenderOptions{Color: report.ShouldUseColor(out, false), Width: report.TerminalWidth()}
	if err := report.RenderScorecard(out, report.FromSession(sess, events), opts); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse stored sessions",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historyMovement, "movement", "", "movement filter")
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N sessions")
	cmd.Flags().BoolVar(&historyPlain, "plain", false, "print a table instead of opening the TUI")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := historyConfig(historyMovement, historySince, historyLast)
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	out := cmd.OutOrStdout()
	if historyPlain || !report.IsTerminal(out) {
		h, err := report.BuildHistory(context.Background(), st, cfg)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		return report.RenderHistory(out, h)
	}

	m := historyui.NewModel(st, cfg)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run history TUI: %w", err)
	}
	return nil
}

func historyConfig(movement, since string, last int) (model.HistoryConfig, error) {
	cfg := model.HistoryConfig{Last: last}
	if last < 0 {
		return cfg, fmt.Errorf("--last must be >= 0")
	}
	if movement != "" {
		m, err := judge.ParseMovement(movement)
		if err != nil {
			return cfg, err
		}
		cfg.Movement = m.Slug()
	}
	if since != "" {
		parsed, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return cfg, fmt.Errorf("invalid --since value: %w", err)
		}
		cfg.Since = &parsed
	}
	return cfg, nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Judge live pose frames over WebSocket",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	serveSettings.register(cmd, false)
	cmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "listen address")
	cmd.Flags().BoolVar(&serveNoSave, "no-save", false, "do not store live sessions")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	if !cmd.Flags().Changed("log-level") {
		log.Init("info")
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := serveSettings.resolve(cmd, fileCfg)
	applyStringConfig(cmd, "addr", &serveAddr, fileCfg.Serve.Addr)
	if _, _, err := analysis.FromConfig(cfg); err != nil {
		return err
	}

	var st *store.Store
	if !serveNoSave {
		st, err = store.Open(config.DefaultDBPath())
		if err != nil {
			return fmt.Errorf("failed to open db: %w", err)
		}
		defer func() {
			if cerr := st.Close(); cerr != nil {
				logErrf("failed to close db: %v\n", cerr)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logErrf("Listening on ws://%s/ws\n", serveAddr)
	return server.New(cfg, st).ListenAndServe(ctx, serveAddr)
}

func newMovementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "movements",
		Short: "List supported movements",
		Args:  cobra.NoArgs,
		RunE:  runMovementsCmd,
	}
}

func runMovementsCmd(cmd *cobra.Command, _ []string) error {
	for _, m := range judge.Movements() {
		p, _ := judge.PolicyFor(m)
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%-10s  %-9s  %s\n", p.Slug, p.Name, p.Standard); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func movementSlugs() []string {
	movements := judge.Movements()
	out := make([]string, len(movements))
	for i, m := range movements {
		out[i] = m.Slug()
	}
	return out
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

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
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

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# repjudge configuration
# Uncomment a value to enable it. CLI flags override config values.

[judge]
# movement = %q     # %s
# depth = %.1f             # Knee angle below which depth is reached
# extension = %.1f        # Angle above which hips, knees and elbows are extended

[analyze]
# side = %q             # Body side read from full landmark sets
# min-visibility = %.1f     # Minimum landmark visibility (0-1)
# fps = %.1f               # Frame rate for frames without timestamps
# max-duration = %.1f      # Seconds of video analyzed (0 = no limit)

[serve]
# addr = %q
`,
		defaultMovement,
		strings.Join(movementSlugs(), " | "),
		judge.DefaultDepthThreshold,
		judge.DefaultExtensionThreshold,
		defaultSide,
		pose.DefaultMinVisibility,
		analysis.DefaultFPS,
		analysis.DefaultMaxDuration,
		defaultAddr,
	)
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
