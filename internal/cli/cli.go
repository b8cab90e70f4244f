package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/johnsonice/ILA/internal/cli/hooks"
	"github.com/johnsonice/ILA/internal/cli/ui"
	"github.com/johnsonice/ILA/pkg/merger"
)

// Run orchestrates the main application logic after configuration loading. It
// selects the UI mode (TUI, progress bar, or plain logging), wires the
// matching hooks into the engine, executes the merge run, and emits the final
// report.
func Run(ctx context.Context, opts merger.Options, logger *slog.Logger) error {
	interactive := term.IsTerminal(int(os.Stderr.Fd()))

	var program *tea.Program
	tuiDone := make(chan error, 1)

	switch {
	case opts.TuiEnabled && interactive && !opts.Verbose:
		model := ui.NewModel()
		program = tea.NewProgram(&model, tea.WithOutput(os.Stderr))
		opts.EventHooks = hooks.NewCLIHooks(logger, true, false, program, nil)
		go func() {
			_, err := program.Run()
			tuiDone <- err
		}()

	case interactive && !opts.Verbose:
		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Merging groups"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSpinnerType(14),
		)
		opts.EventHooks = hooks.NewCLIHooks(logger, false, false, nil, bar)

	default:
		opts.EventHooks = hooks.NewCLIHooks(logger, false, opts.Verbose, nil, nil)
	}

	engine, err := merger.NewEngine(opts)
	if err != nil {
		if program != nil {
			program.Quit()
			<-tuiDone
		}
		logger.Error("Engine initialization failed", slog.Any("error", err))
		return err
	}

	report, runErr := engine.Run(ctx)

	if program != nil {
		// The run-complete message has already been sent through the hooks;
		// shut the TUI down so the summary prints on a clean terminal.
		program.Quit()
		if tuiErr := <-tuiDone; tuiErr != nil {
			logger.Warn("TUI exited with error", slog.Any("error", tuiErr))
		}
	}

	if runErr != nil {
		logger.Error("Merge run failed", slog.Any("error", runErr))
		return runErr
	}

	if err := emitReport(report, opts); err != nil {
		logger.Error("Failed to emit report", slog.Any("error", err))
		return err
	}

	// Failed groups do not abort the run, but the exit code should reflect them.
	if report.Summary.FailedCount > 0 {
		return fmt.Errorf("%d group(s) failed to merge", report.Summary.FailedCount)
	}
	return nil
}

// emitReport prints the run summary to stdout in the configured format and
// optionally persists the full report to a file.
func emitReport(report merger.Report, opts merger.Options) error {
	switch opts.ReportFormat {
	case merger.ReportFormatJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(data))
	default:
		fmt.Fprint(os.Stdout, report.TextSummary())
	}

	if opts.ReportFile != "" {
		if err := report.WriteFile(opts.ReportFile); err != nil {
			return fmt.Errorf("write report file '%s': %w", opts.ReportFile, err)
		}
	}
	return nil
}
