package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/johnsonice/ILA/pkg/merger"
)

// --- TUI Message Structs ---

// GroupDiscoveredMsg signals that a complete file group was assembled.
type GroupDiscoveredMsg struct {
	Pattern string
	Files   []string
}

// GroupStatusUpdateMsg signals a change in a group's merge status.
type GroupStatusUpdateMsg struct {
	Pattern  string
	Status   merger.Status
	Message  string
	Duration time.Duration
}

// RunCompleteMsg signals the completion of the entire merge run.
type RunCompleteMsg struct{ Report merger.Report }

// TUIProgram defines the interface needed to interact with the Bubble Tea
// program. The signature matches (*tea.Program).Send so a real program
// satisfies it directly.
type TUIProgram interface {
	Send(msg tea.Msg)
}

// ProgressBar defines the interface needed to interact with the progress bar.
// It matches the subset of schollz/progressbar/v3 methods the hooks use.
type ProgressBar interface {
	Add(num int) error
	Describe(description string)
	Close() error
}

// NoOpTUIProgram provides a default null implementation.
type NoOpTUIProgram struct{}

// Send implements TUIProgram.
func (n *NoOpTUIProgram) Send(msg tea.Msg) {}

// NoOpProgressBar provides a default null implementation.
type NoOpProgressBar struct{}

// Add implements ProgressBar.
func (n *NoOpProgressBar) Add(num int) error { return nil }

// Describe implements ProgressBar.
func (n *NoOpProgressBar) Describe(description string) {}

// Close implements ProgressBar.
func (n *NoOpProgressBar) Close() error { return nil }

// CLIHooks implements the merger.Hooks interface, bridging engine events to
// the CLI's UI layer (TUI, logger, progress bar).
type CLIHooks struct {
	logger         *slog.Logger
	tuiEnabled     bool
	verboseEnabled bool
	tuiProgram     TUIProgram
	progressBar    ProgressBar
	barActive      bool
	mu             sync.Mutex // Protects progressBar
}

// NewCLIHooks creates a new CLIHooks instance. Pass nil for tuiProgram or
// progressBar if not applicable; NoOp versions will be used.
func NewCLIHooks(logger *slog.Logger, tuiEnabled, verboseEnabled bool, tuiProg TUIProgram, progBar ProgressBar) merger.Hooks {
	barActive := progBar != nil
	if tuiProg == nil {
		tuiProg = &NoOpTUIProgram{}
	}
	if progBar == nil {
		progBar = &NoOpProgressBar{}
	}
	return &CLIHooks{
		logger:         logger,
		tuiEnabled:     tuiEnabled,
		verboseEnabled: verboseEnabled,
		tuiProgram:     tuiProg,
		progressBar:    progBar,
		barActive:      barActive,
	}
}

// OnGroupDiscovered handles the event when a complete group is assembled.
func (h *CLIHooks) OnGroupDiscovered(pattern string, files []string) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(GroupDiscoveredMsg{Pattern: pattern, Files: files})
	} else if h.verboseEnabled {
		h.logger.Debug("Group discovered", "pattern", pattern, "files", len(files))
	}
	return nil // Engine ignores hook errors
}

// OnGroupStatusUpdate handles events when a group's merge status changes.
// This method MUST be thread-safe.
func (h *CLIHooks) OnGroupStatusUpdate(pattern string, status merger.Status, message string, duration time.Duration) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(GroupStatusUpdateMsg{
			Pattern:  pattern,
			Status:   status,
			Message:  message,
			Duration: duration,
		})
		return nil
	}

	if h.verboseEnabled {
		logLevel := slog.LevelDebug
		logMsg := "Group status updated"
		attrs := []any{
			slog.String("pattern", pattern),
			slog.String("status", string(status)),
		}
		if duration > 0 {
			attrs = append(attrs, slog.Duration("duration", duration))
		}
		if message != "" {
			logKey := "message"
			if status == merger.StatusFailed {
				logKey = "error"
			}
			attrs = append(attrs, slog.String(logKey, message))
		}

		switch status {
		case merger.StatusSuccess, merger.StatusEmpty:
			logLevel = slog.LevelInfo
		case merger.StatusFailed:
			logLevel = slog.LevelError
			logMsg = "Group merge failed"
		}
		h.logger.Log(context.Background(), logLevel, logMsg, attrs...)
		return nil
	}

	if h.barActive {
		h.mu.Lock()
		defer h.mu.Unlock()

		isFinalState := status == merger.StatusSuccess ||
			status == merger.StatusFailed ||
			status == merger.StatusEmpty

		if isFinalState {
			_ = h.progressBar.Add(1)
		}
		if status == merger.StatusFailed {
			h.logger.Error("Group merge failed", "pattern", pattern, "error", message)
		}
		return nil
	}

	// Plain mode: only surface failures.
	if status == merger.StatusFailed {
		h.logger.Error("Group merge failed", "pattern", pattern, "error", message)
	}
	return nil
}

// OnRunComplete handles the event when the merge run finishes. Sends the final
// report to the TUI or finalizes the progress bar.
func (h *CLIHooks) OnRunComplete(report merger.Report) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(RunCompleteMsg{Report: report})
		return nil
	}
	if h.barActive {
		h.mu.Lock()
		_ = h.progressBar.Close()
		h.mu.Unlock()
		// Newline after the bar so the summary does not overlap it.
		_, _ = fmt.Fprintf(os.Stderr, "\n")
	}
	return nil
}
