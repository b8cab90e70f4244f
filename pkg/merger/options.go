package merger

import (
	"context"
	"log/slog"
	"time"
)

// Hooks defines callbacks for status updates during a merge run.
// Implementations MUST be thread-safe as methods may be called concurrently
// from multiple workers.
type Hooks interface {
	OnGroupDiscovered(pattern string, files []string) error
	OnGroupStatusUpdate(pattern string, status Status, message string, duration time.Duration) error
	OnRunComplete(report Report) error
}

// NoOpHooks provides a default, do-nothing implementation of the Hooks interface.
type NoOpHooks struct{}

// OnGroupDiscovered implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnGroupDiscovered(pattern string, files []string) error { return nil }

// OnGroupStatusUpdate implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnGroupStatusUpdate(pattern string, status Status, message string, duration time.Duration) error {
	return nil
}

// OnRunComplete implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnRunComplete(report Report) error { return nil }

// RecordLoader reads one structured-record file into a list of records.
type RecordLoader interface {
	Load(ctx context.Context, path string) ([]Record, error)
}

// LoaderFactory creates the RecordLoader used by the engine's workers.
type LoaderFactory func(opts *Options, loggerHandler slog.Handler) RecordLoader

// Options holds all configuration for a merge run.
type Options struct {
	// --- Core Paths ---
	SourceLocations []string `mapstructure:"sourceLocations"` // Required: ordered directories, one file per group each; order is merge precedence
	OutputDir       string   `mapstructure:"outputDir"`       // Required for persist mode: directory receiving merged group files

	// --- Application Info ---
	AppVersion string `mapstructure:"-"` // Populated by the caller from build info, reported in summaries

	// --- Merge Semantics ---
	IdentifierField         string     `mapstructure:"identifierField"`         // Record key used to correlate records (default "id")
	FallbackIdentifierField string     `mapstructure:"fallbackIdentifierField"` // Consulted when the primary field is absent (default "an")
	OutputMode              OutputMode `mapstructure:"outputMode"`              // persist-per-group, accumulate, or index-only
	FileExtension           string     `mapstructure:"fileExtension"`           // Extension filter during scanning (default ".json")
	CombinedFile            string     `mapstructure:"combinedFile"`            // Optional: also write all merged groups to this single file

	// --- Behavior & Control ---
	ConfigFilePath string       `mapstructure:"-"`            // Path to the loaded config file (for reporting)
	ProfileName    string       `mapstructure:"-"`            // Name of the profile used (for reporting)
	Verbose        bool         `mapstructure:"verbose"`      // Enable debug logging
	TuiEnabled     bool         `mapstructure:"tuiEnabled"`   // Hint for CLI to use TUI (ignored if Verbose)
	ReportFormat   ReportFormat `mapstructure:"reportFormat"` // Final summary format ("text", "json")
	ReportFile     string       `mapstructure:"reportFile"`   // Optional: persist the full report (.json or .yaml)

	// --- Performance & Retry ---
	Concurrency       int           `mapstructure:"concurrency"`   // Number of workers (0=auto)
	RetryAttempts     uint          `mapstructure:"retryAttempts"` // Max load attempts per file
	RetryDelayStr     string        `mapstructure:"retryDelay"`    // Fixed delay between attempts, duration string
	RetryDelay        time.Duration `mapstructure:"-"`             // Derived from RetryDelayStr
	DefaultEncoding   string        `mapstructure:"defaultEncoding"`
	DispatchWarnAfter time.Duration `mapstructure:"-"` // Internal: threshold for logging slow worker dispatch

	// --- Injected Dependencies ---
	Logger        slog.Handler  `mapstructure:"-"` // Required: logging backend
	EventHooks    Hooks         `mapstructure:"-"` // Optional: callback interface (defaults to NoOpHooks)
	LoaderFactory LoaderFactory `mapstructure:"-"` // Optional: factory for RecordLoader (testing)
}
