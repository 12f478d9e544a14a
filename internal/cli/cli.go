// Package cli orchestrates a batch run after configuration loading: it wires
// the conversion backend, selects the presentation mode, executes the engine
// and renders the final summary and report.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/fclaiba/PDFConvertor/internal/cli/config"
	"github.com/fclaiba/PDFConvertor/internal/cli/hooks"
	"github.com/fclaiba/PDFConvertor/internal/cli/ui"
	"github.com/fclaiba/PDFConvertor/internal/convert"
	"github.com/fclaiba/PDFConvertor/pkg/converter"
)

// ErrPartialFailure signals that the run finished but at least one file was
// rejected, failed, or left pending. The command maps it to exit code 1.
var ErrPartialFailure = errors.New("one or more files were not converted")

const maxSummaryErrors = 10

// Run executes one batch conversion with the given settings.
func Run(ctx context.Context, cfg config.Settings, logger *slog.Logger) error {
	docConverter, err := convert.New(cfg.Engine, cfg.GotenbergURL, cfg.Logger)
	if err != nil {
		return err
	}
	cfg.Converter = docConverter

	if err := guardOutputDir(cfg, logger); err != nil {
		return err
	}

	var (
		report  converter.Report
		program *tea.Program
	)

	if cfg.TuiEnabled {
		model := ui.NewModel(cfg.AppVersion)
		program = tea.NewProgram(&model, tea.WithOutput(os.Stderr))
		cfg.EventHooks = hooks.NewCLIHooks(logger, true, false, program, nil)
	} else if !cfg.Verbose && term.IsTerminal(int(os.Stderr.Fd())) {
		cfg.EventHooks = hooks.NewCLIHooks(logger, false, false, nil, newProgressBar())
	} else {
		cfg.EventHooks = hooks.NewCLIHooks(logger, false, cfg.Verbose, nil, nil)
	}

	engine, err := converter.NewEngine(cfg.Options)
	if err != nil {
		return err
	}

	// The first interrupt cancels ctx for a graceful drain; a second one
	// aborts in-flight conversions immediately.
	abortDone := watchForAbort(ctx, engine, logger)
	defer abortDone()

	if program != nil {
		type runOutcome struct {
			report converter.Report
			err    error
		}
		outcome := make(chan runOutcome, 1)
		go func() {
			r, runErr := engine.Run(ctx)
			outcome <- runOutcome{r, runErr}
			// Normally OnRunComplete quits the program; the explicit Quit
			// covers fatal paths that never reach the hooks, and is a no-op
			// when the program is already shutting down.
			program.Quit()
		}()
		if _, tuiErr := program.Run(); tuiErr != nil {
			logger.Warn("TUI terminated abnormally", slog.Any("error", tuiErr))
		}
		res := <-outcome
		report, err = res.report, res.err
	} else {
		report, err = engine.Run(ctx)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if writeErr := writeReportFile(cfg, report); writeErr != nil {
		logger.Error("Failed to write report file", slog.String("path", cfg.ReportFile), slog.Any("error", writeErr))
		return writeErr
	}

	if renderErr := renderSummary(os.Stdout, cfg, report); renderErr != nil {
		return renderErr
	}

	if !report.Clean() {
		return ErrPartialFailure
	}
	return nil
}

// guardOutputDir refuses to run into a non-empty output directory unless
// --force was given. A missing directory is fine; the engine creates it.
func guardOutputDir(cfg config.Settings, logger *slog.Logger) error {
	if cfg.ForceOverwrite {
		return nil
	}
	entries, err := os.ReadDir(cfg.OutputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cannot inspect output directory '%s': %w", cfg.OutputDir, err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(strings.ToLower(entry.Name()), converter.PDFExtension) {
			return fmt.Errorf("%w: output directory '%s' already contains PDF files; use --force to overwrite",
				converter.ErrConfigValidation, cfg.OutputDir)
		}
	}
	logger.Debug("Output directory check passed", slog.String("path", cfg.OutputDir))
	return nil
}

// watchForAbort arms a hard-stop on the second interrupt. The first one is
// consumed by signal.NotifyContext in the command layer and cancels ctx.
func watchForAbort(ctx context.Context, engine *converter.Engine, logger *slog.Logger) (stop func()) {
	watchCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-watchCtx.Done():
			return
		case <-ctx.Done():
		}
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		fmt.Fprintln(os.Stderr, "\nInterrupted: waiting for in-flight conversions (press Ctrl+C again to abort)")
		select {
		case <-watchCtx.Done():
		case <-sigCh:
			logger.Warn("Second interrupt received, aborting in-flight conversions")
			engine.Abort()
		}
	}()
	return cancel
}

func newProgressBar() hooks.ProgressBar {
	return progressbar.NewOptions(0,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Converting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// writeReportFile persists the full structured report when --report is set.
func writeReportFile(cfg config.Settings, report converter.Report) error {
	if cfg.ReportFile == "" {
		return nil
	}
	var (
		data []byte
		err  error
	)
	switch cfg.ReportFormat {
	case "yaml":
		data, err = yaml.Marshal(report)
	default:
		data, err = json.MarshalIndent(report, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(cfg.ReportFile, data, 0o644)
}

// renderSummary writes the end-of-run summary to w in the configured format.
func renderSummary(w *os.File, cfg config.Settings, report converter.Report) error {
	if cfg.OutputFormat == converter.OutputFormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	s := report.Summary
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintln(w, "CONVERSION RESULTS")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Files discovered:      %d\n", s.TotalDiscovered)
	fmt.Fprintf(w, "Files rejected:        %d\n", s.RejectedCount)
	fmt.Fprintf(w, "Conversions succeeded: %d\n", s.SucceededCount)
	fmt.Fprintf(w, "Conversions failed:    %d\n", s.FailedCount)
	if s.TimedOutCount > 0 {
		fmt.Fprintf(w, "  of which timed out:  %d\n", s.TimedOutCount)
	}
	if s.PendingCount > 0 {
		fmt.Fprintf(w, "Not attempted:         %d\n", s.PendingCount)
	}
	if s.ValidatedCount > 0 {
		fmt.Fprintf(w, "Success rate:          %.1f%%\n", float64(s.SucceededCount)/float64(s.ValidatedCount)*100)
	}
	fmt.Fprintf(w, "Total time:            %.2fs\n", s.DurationSeconds)
	fmt.Fprintf(w, "Avg time per file:     %.2fs\n", s.AvgSecondsPerFile)
	fmt.Fprintf(w, "Files per minute:      %.1f\n", s.FilesPerMinute)
	if s.Incomplete {
		fmt.Fprintln(w, "\nRun was interrupted before all files were processed.")
	}

	var errLines []string
	for _, rej := range report.Rejected {
		errLines = append(errLines, fmt.Sprintf("%s: %s", rej.Path, rej.Message))
	}
	for _, res := range report.Failures() {
		errLines = append(errLines, fmt.Sprintf("%s: %s", res.InputPath, res.Message))
	}
	if len(errLines) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		shown := min(len(errLines), maxSummaryErrors)
		for _, line := range errLines[:shown] {
			fmt.Fprintf(w, "  - %s\n", line)
		}
		if len(errLines) > shown {
			fmt.Fprintf(w, "  ... and %d more\n", len(errLines)-shown)
		}
	}
	fmt.Fprintln(w, rule)
	return nil
}
