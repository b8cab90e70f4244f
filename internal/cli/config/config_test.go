package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnsonice/ILA/internal/cli/config"
	"github.com/johnsonice/ILA/pkg/merger"
)

// newTestFlags mirrors the flag set registered on the root command.
func newTestFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringArrayP("location", "l", []string{}, "")
	fs.StringP("output", "o", "", "")
	fs.BoolP("verbose", "v", false, "")
	fs.Bool("no-tui", false, "")
	fs.String("id-field", merger.DefaultIdentifierField, "")
	fs.String("fallback-id-field", merger.DefaultFallbackIdentifierField, "")
	fs.String("output-mode", string(merger.DefaultOutputMode), "")
	fs.Int("concurrency", merger.DefaultConcurrency, "")
	fs.String("extension", merger.DefaultFileExtension, "")
	fs.Uint("retry-attempts", merger.DefaultRetryAttempts, "")
	fs.String("retry-delay", merger.DefaultRetryDelayString, "")
	fs.String("combined-file", "", "")
	fs.String("report-format", string(merger.DefaultReportFormat), "")
	fs.String("report-file", "", "")
	fs.String("encoding", "", "")
	return fs
}

func TestLoadAndValidate(t *testing.T) {
	t.Run("defaults applied with flag-provided location", func(t *testing.T) {
		loc := t.TempDir()
		out := t.TempDir()
		fs := newTestFlags()
		require.NoError(t, fs.Set("location", loc))
		require.NoError(t, fs.Set("output", out))

		opts, logger, err := config.LoadAndValidate("", "", "1.2.3", false, fs)
		require.NoError(t, err)
		require.NotNil(t, logger)

		assert.Equal(t, []string{loc}, opts.SourceLocations)
		assert.Equal(t, out, opts.OutputDir)
		assert.Equal(t, "1.2.3", opts.AppVersion)
		assert.Equal(t, merger.DefaultIdentifierField, opts.IdentifierField)
		assert.Equal(t, merger.DefaultFallbackIdentifierField, opts.FallbackIdentifierField)
		assert.Equal(t, merger.DefaultOutputMode, opts.OutputMode)
		assert.Equal(t, merger.DefaultFileExtension, opts.FileExtension)
		assert.Equal(t, uint(merger.DefaultRetryAttempts), opts.RetryAttempts)
		assert.Equal(t, merger.DefaultRetryDelayDuration, opts.RetryDelay)
		assert.True(t, opts.TuiEnabled)
	})

	t.Run("location is required", func(t *testing.T) {
		fs := newTestFlags()
		_, _, err := config.LoadAndValidate("", "", "dev", false, fs)
		require.Error(t, err)
		assert.ErrorIs(t, err, merger.ErrConfigValidation)
	})

	t.Run("persist mode requires output", func(t *testing.T) {
		fs := newTestFlags()
		require.NoError(t, fs.Set("location", t.TempDir()))

		_, _, err := config.LoadAndValidate("", "", "dev", false, fs)
		assert.ErrorIs(t, err, merger.ErrConfigValidation)
	})

	t.Run("index-only mode needs no output", func(t *testing.T) {
		fs := newTestFlags()
		require.NoError(t, fs.Set("location", t.TempDir()))
		require.NoError(t, fs.Set("output-mode", string(merger.OutputModeIndexOnly)))

		opts, _, err := config.LoadAndValidate("", "", "dev", false, fs)
		require.NoError(t, err)
		assert.Equal(t, merger.OutputModeIndexOnly, opts.OutputMode)
		assert.Empty(t, opts.OutputDir)
	})

	t.Run("invalid output mode rejected", func(t *testing.T) {
		fs := newTestFlags()
		require.NoError(t, fs.Set("location", t.TempDir()))
		require.NoError(t, fs.Set("output", t.TempDir()))
		require.NoError(t, fs.Set("output-mode", "stream"))

		_, _, err := config.LoadAndValidate("", "", "dev", false, fs)
		assert.ErrorIs(t, err, merger.ErrConfigValidation)
	})

	t.Run("invalid retry delay rejected", func(t *testing.T) {
		fs := newTestFlags()
		require.NoError(t, fs.Set("location", t.TempDir()))
		require.NoError(t, fs.Set("output", t.TempDir()))
		require.NoError(t, fs.Set("retry-delay", "soon"))

		_, _, err := config.LoadAndValidate("", "", "dev", false, fs)
		assert.ErrorIs(t, err, merger.ErrConfigValidation)
	})

	t.Run("zero retry attempts rejected", func(t *testing.T) {
		fs := newTestFlags()
		require.NoError(t, fs.Set("location", t.TempDir()))
		require.NoError(t, fs.Set("output", t.TempDir()))
		require.NoError(t, fs.Set("retry-attempts", "0"))

		_, _, err := config.LoadAndValidate("", "", "dev", false, fs)
		assert.ErrorIs(t, err, merger.ErrConfigValidation)
	})

	t.Run("extension gains leading dot", func(t *testing.T) {
		fs := newTestFlags()
		require.NoError(t, fs.Set("location", t.TempDir()))
		require.NoError(t, fs.Set("output", t.TempDir()))
		require.NoError(t, fs.Set("extension", "json"))

		opts, _, err := config.LoadAndValidate("", "", "dev", false, fs)
		require.NoError(t, err)
		assert.Equal(t, ".json", opts.FileExtension)
	})

	t.Run("verbose disables TUI", func(t *testing.T) {
		fs := newTestFlags()
		require.NoError(t, fs.Set("location", t.TempDir()))
		require.NoError(t, fs.Set("output", t.TempDir()))

		opts, _, err := config.LoadAndValidate("", "", "dev", true, fs)
		require.NoError(t, err)
		assert.True(t, opts.Verbose)
		assert.False(t, opts.TuiEnabled)
	})

	t.Run("config file values honored", func(t *testing.T) {
		loc := t.TempDir()
		out := t.TempDir()
		cfgPath := filepath.Join(t.TempDir(), "ila-merge.yaml")
		cfg := "sourceLocations:\n  - " + loc + "\noutputDir: " + out + "\nconcurrency: 7\nretryDelay: 250ms\n"
		require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

		fs := newTestFlags()
		opts, _, err := config.LoadAndValidate(cfgPath, "", "dev", false, fs)
		require.NoError(t, err)
		assert.Equal(t, []string{loc}, opts.SourceLocations)
		assert.Equal(t, 7, opts.Concurrency)
		assert.Equal(t, 250*time.Millisecond, opts.RetryDelay)
		assert.Equal(t, cfgPath, opts.ConfigFilePath)
	})

	t.Run("flags override config file", func(t *testing.T) {
		locCfg := t.TempDir()
		locFlag := t.TempDir()
		out := t.TempDir()
		cfgPath := filepath.Join(t.TempDir(), "ila-merge.yaml")
		cfg := "sourceLocations:\n  - " + locCfg + "\noutputDir: " + out + "\n"
		require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

		fs := newTestFlags()
		require.NoError(t, fs.Set("location", locFlag))

		opts, _, err := config.LoadAndValidate(cfgPath, "", "dev", false, fs)
		require.NoError(t, err)
		assert.Equal(t, []string{locFlag}, opts.SourceLocations)
	})

	t.Run("profile overrides base config", func(t *testing.T) {
		loc := t.TempDir()
		out := t.TempDir()
		cfgPath := filepath.Join(t.TempDir(), "ila-merge.yaml")
		cfg := "sourceLocations:\n  - " + loc + "\noutputDir: " + out + "\nconcurrency: 2\n" +
			"profiles:\n  fast:\n    concurrency: 16\n"
		require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

		fs := newTestFlags()
		opts, _, err := config.LoadAndValidate(cfgPath, "fast", "dev", false, fs)
		require.NoError(t, err)
		assert.Equal(t, 16, opts.Concurrency)
		assert.Equal(t, "fast", opts.ProfileName)
	})

	t.Run("unknown profile fails", func(t *testing.T) {
		loc := t.TempDir()
		cfgPath := filepath.Join(t.TempDir(), "ila-merge.yaml")
		cfg := "sourceLocations:\n  - " + loc + "\n"
		require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

		fs := newTestFlags()
		_, _, err := config.LoadAndValidate(cfgPath, "nope", "dev", false, fs)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "profile 'nope' not found")
	})

	t.Run("locations become absolute", func(t *testing.T) {
		loc := t.TempDir()
		out := t.TempDir()
		wd, err := os.Getwd()
		require.NoError(t, err)
		rel, err := filepath.Rel(wd, loc)
		if err != nil {
			t.Skip("location not expressible relative to working directory")
		}

		fs := newTestFlags()
		require.NoError(t, fs.Set("location", rel))
		require.NoError(t, fs.Set("output", out))

		opts, _, err := config.LoadAndValidate("", "", "dev", false, fs)
		require.NoError(t, err)
		require.Len(t, opts.SourceLocations, 1)
		assert.True(t, filepath.IsAbs(opts.SourceLocations[0]))
	})
}
