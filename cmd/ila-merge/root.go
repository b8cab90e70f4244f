package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/johnsonice/ILA/internal/cli"
	"github.com/johnsonice/ILA/internal/cli/config"
	"github.com/johnsonice/ILA/pkg/merger"
)

var (
	// These are set during build time using -ldflags.
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Flags persistent across commands.
	cfgFile     string
	profileName string
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ila-merge -l <sourceDir> [-l <sourceDir> ...] -o <outputDir>",
	Short: "Merges per-article tagging results from multiple source directories.",
	Long: `ila-merge scans one or more source directories for tagging result files,
groups files that share a filename pattern across all locations, and merges
the records of each complete group by article identifier.

It features:
  - Parallel merging of independent file groups.
  - Completeness gating: a group is merged only when every location has its file.
  - Bounded retries for transient file read failures.
  - Per-group output files, a single combined file, or an in-memory index.
  - An interactive Terminal UI (TUI) for monitoring progress.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		opts, logger, err := config.LoadAndValidate(cfgFile, profileName, version, verbose, cmd.Flags())
		if err != nil {
			// LoadAndValidate already logged the specific error to stderr.
			return err
		}

		// Give the TUI a moment to take over the terminal before output starts.
		if term.IsTerminal(int(os.Stderr.Fd())) && !verbose && opts.TuiEnabled {
			time.Sleep(100 * time.Millisecond)
		}

		return cli.Run(ctx, opts, logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	rootCmd.SetVersionTemplate(`{{.Use}} version {{.Version}}` + "\n")
	// Cobra prints the error and exits non-zero if RunE returns an error.
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init registers flags for the root command. Flag names align with the Viper
// keys bound in internal/cli/config.
func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default is search standard locations like ., $HOME/.config/ila-merge/)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Name of configuration profile to use")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging output (disables TUI)")

	rootCmd.PersistentFlags().StringArrayP("location", "l", []string{}, "Required. Source directory to scan; repeat for multiple locations (order is merge precedence)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output directory for merged group files")
	_ = rootCmd.MarkPersistentFlagRequired("location")

	// Merge semantics
	rootCmd.Flags().String("id-field", merger.DefaultIdentifierField, "Record field used to correlate records across files")
	rootCmd.Flags().String("fallback-id-field", merger.DefaultFallbackIdentifierField, "Record field consulted when the primary identifier is absent")
	rootCmd.Flags().String("output-mode", string(merger.DefaultOutputMode), `How merged groups are delivered ("persist-per-group", "accumulate", "index-only")`)
	rootCmd.Flags().String("extension", merger.DefaultFileExtension, "File extension to consider during scanning")
	rootCmd.Flags().String("combined-file", "", "Also write all merged groups to this single file in the output directory")

	// Performance & retry
	rootCmd.Flags().Int("concurrency", merger.DefaultConcurrency, "Number of parallel workers (0 for auto-detect CPU cores)")
	rootCmd.Flags().Uint("retry-attempts", merger.DefaultRetryAttempts, "Maximum load attempts per file before the group fails")
	rootCmd.Flags().String("retry-delay", merger.DefaultRetryDelayString, "Fixed delay between load attempts (e.g. '5s', '500ms')")

	// Output & reporting
	rootCmd.Flags().String("report-format", string(merger.DefaultReportFormat), `Final report format ("text", "json")`)
	rootCmd.Flags().String("report-file", "", "Persist the full run report to this path (.json or .yaml)")
	rootCmd.Flags().Bool("no-tui", false, "Disable interactive Terminal UI even if in a TTY")
	rootCmd.Flags().String("encoding", "", "Assumed encoding for files that are not valid UTF-8 (default: detect)")
}
