package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/johnsonice/ILA/pkg/merger"
)

const (
	EnvPrefix         = "ILA"
	DefaultConfigName = "ila-merge"
)

// LoadAndValidate loads configuration from all sources (defaults, file,
// profile, env, flags), validates the merged configuration, derives values
// (absolute paths, retry delay), and sets up the logger. Returns the populated
// Options struct or an error.
func LoadAndValidate(cfgFile, profileName, appVersion string, verbose bool, flags *pflag.FlagSet) (merger.Options, *slog.Logger, error) {
	var opts merger.Options
	v := viper.New()

	// Temporary basic logger for early loading errors.
	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	setDefaults(v)

	// --- Load Config File ---
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			tempLogger.Error("Failed to get user home directory", slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
		v.AddConfigPath(filepath.Join(home, "."+DefaultConfigName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			tempLogger.Debug("No configuration file found, using defaults/env/flags.")
		} else {
			used := cfgFile
			if used == "" {
				used = fmt.Sprintf("searched locations for %s.yaml", DefaultConfigName)
			}
			tempLogger.Error("Error reading configuration file", slog.String("path", used), slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("error reading config file '%s': %w", used, err)
		}
	} else {
		opts.ConfigFilePath = v.ConfigFileUsed()
		tempLogger.Debug("Using configuration file", slog.String("path", opts.ConfigFilePath))
	}

	// --- Apply Profile ---
	opts.ProfileName = profileName
	if profileName != "" {
		profileKey := "profiles." + profileName
		if !v.IsSet(profileKey) {
			configPath := v.ConfigFileUsed()
			if configPath == "" {
				configPath = "(no config file found)"
			}
			err := fmt.Errorf("profile '%s' not found in config file '%s'", profileName, configPath)
			tempLogger.Error(err.Error())
			return opts, tempLogger, err
		}
		profileSettings := v.Sub(profileKey)
		if profileSettings == nil {
			err := fmt.Errorf("failed to load profile '%s' settings from config file '%s'", profileName, v.ConfigFileUsed())
			tempLogger.Error(err.Error())
			return opts, tempLogger, err
		}
		if err := v.MergeConfigMap(profileSettings.AllSettings()); err != nil {
			tempLogger.Error("Error merging profile", slog.String("profile", profileName), slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("error merging profile '%s': %w", profileName, err)
		}
		tempLogger.Debug("Applied configuration profile", slog.String("profile", profileName))
	}

	// --- Bind Environment Variables ---
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Bind Flags (Highest Priority) ---
	flagKeys := []string{
		"location", "output", "verbose", "no-tui", "id-field", "fallback-id-field",
		"output-mode", "concurrency", "extension", "retry-attempts", "retry-delay",
		"combined-file", "report-format", "report-file", "encoding",
	}
	for _, key := range flagKeys {
		flag := flags.Lookup(key)
		if flag == nil {
			tempLogger.Debug("Flag lookup failed during binding", slog.String("flag", key))
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			tempLogger.Error("Error binding flag", slog.String("flag", key), slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("error binding flag '--%s': %w", key, err)
		}
	}

	// Flag names differ from the mapstructure keys; alias them onto the config keys.
	v.RegisterAlias("sourceLocations", "location")
	v.RegisterAlias("outputDir", "output")
	v.RegisterAlias("identifierField", "id-field")
	v.RegisterAlias("fallbackIdentifierField", "fallback-id-field")
	v.RegisterAlias("outputMode", "output-mode")
	v.RegisterAlias("fileExtension", "extension")
	v.RegisterAlias("retryAttempts", "retry-attempts")
	v.RegisterAlias("retryDelay", "retry-delay")
	v.RegisterAlias("combinedFile", "combined-file")
	v.RegisterAlias("reportFormat", "report-format")
	v.RegisterAlias("reportFile", "report-file")
	v.RegisterAlias("defaultEncoding", "encoding")

	opts.AppVersion = appVersion
	if err := v.Unmarshal(&opts); err != nil {
		tempLogger.Error("Error unmarshalling configuration", slog.Any("error", err))
		return opts, tempLogger, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// --- Explicit Flag Overrides ---
	// Repeated flags and booleans are applied explicitly so command-line values
	// always win over file/env values.
	if flags.Changed("location") {
		if locs, _ := flags.GetStringArray("location"); len(locs) > 0 {
			opts.SourceLocations = locs
		}
	}
	if flags.Changed("output") {
		if out, _ := flags.GetString("output"); out != "" {
			opts.OutputDir = out
		}
	}
	if flags.Changed("verbose") || verbose {
		opts.Verbose = true
	}
	if flags.Changed("no-tui") {
		if noTui, _ := flags.GetBool("no-tui"); noTui {
			opts.TuiEnabled = false
		}
	}

	// --- Setup Final Logger ---
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logHandler)
	opts.Logger = logHandler

	if err := validateAndDeriveOptions(&opts, logger); err != nil {
		return opts, logger, err
	}

	logger.Debug("Configuration loading and validation complete",
		slog.String("configFile", opts.ConfigFilePath),
		slog.String("profile", opts.ProfileName),
		slog.Bool("verbose", opts.Verbose),
		slog.String("logLevel", logLevel.String()))

	return opts, logger, nil
}

// setDefaults establishes the default values for configuration options in Viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("sourceLocations", []string{})
	v.SetDefault("outputDir", "")
	v.SetDefault("identifierField", merger.DefaultIdentifierField)
	v.SetDefault("fallbackIdentifierField", merger.DefaultFallbackIdentifierField)
	v.SetDefault("outputMode", string(merger.DefaultOutputMode))
	v.SetDefault("fileExtension", merger.DefaultFileExtension)
	v.SetDefault("concurrency", merger.DefaultConcurrency)
	v.SetDefault("retryAttempts", merger.DefaultRetryAttempts)
	v.SetDefault("retryDelay", merger.DefaultRetryDelayString)
	v.SetDefault("combinedFile", "")
	v.SetDefault("reportFormat", string(merger.DefaultReportFormat))
	v.SetDefault("reportFile", "")
	v.SetDefault("defaultEncoding", "")
	v.SetDefault("verbose", merger.DefaultVerbose)
	v.SetDefault("tuiEnabled", merger.DefaultTuiEnabled)
}

// isValidEnumValue checks if a given string value is present in a slice of
// allowed enum values. Case-sensitive comparison.
func isValidEnumValue[T ~string](value T, allowedValues []T) bool {
	return slices.Contains(allowedValues, value)
}

// validateAndDeriveOptions performs semantic validation on the populated
// Options struct and calculates derived fields. It wraps errors with
// merger.ErrConfigValidation.
func validateAndDeriveOptions(opts *merger.Options, logger *slog.Logger) error {
	if len(opts.SourceLocations) == 0 {
		err := fmt.Errorf("%w: at least one source location is required (-l, --location)", merger.ErrConfigValidation)
		logger.Error(err.Error(), slog.String("key", "sourceLocations"))
		return err
	}
	for i, loc := range opts.SourceLocations {
		absLoc, err := filepath.Abs(loc)
		if err != nil {
			err = fmt.Errorf("%w: cannot resolve absolute path for location '%s': %w", merger.ErrConfigValidation, loc, err)
			logger.Error(err.Error(), slog.String("key", "sourceLocations"), slog.String("value", loc))
			return err
		}
		opts.SourceLocations[i] = absLoc
	}

	needsOutputDir := opts.OutputMode == merger.OutputModePersist || opts.CombinedFile != ""
	if needsOutputDir && opts.OutputDir == "" {
		err := fmt.Errorf("%w: output directory is required for output mode %q (-o, --output)", merger.ErrConfigValidation, opts.OutputMode)
		logger.Error(err.Error(), slog.String("key", "outputDir"))
		return err
	}
	if opts.OutputDir != "" {
		absOutput, err := filepath.Abs(opts.OutputDir)
		if err != nil {
			err = fmt.Errorf("%w: cannot resolve absolute output path '%s': %w", merger.ErrConfigValidation, opts.OutputDir, err)
			logger.Error(err.Error(), slog.String("key", "outputDir"), slog.String("value", opts.OutputDir))
			return err
		}
		opts.OutputDir = absOutput
	}

	allowedOutputModes := []merger.OutputMode{merger.OutputModePersist, merger.OutputModeAccumulate, merger.OutputModeIndexOnly}
	if !isValidEnumValue(opts.OutputMode, allowedOutputModes) {
		err := fmt.Errorf("%w: invalid value '%s' for key 'outputMode' (flag --output-mode). Allowed: %v", merger.ErrConfigValidation, opts.OutputMode, allowedOutputModes)
		logger.Error(err.Error(), slog.String("key", "outputMode"), slog.String("value", string(opts.OutputMode)))
		return err
	}
	allowedReportFormats := []merger.ReportFormat{merger.ReportFormatText, merger.ReportFormatJSON}
	if !isValidEnumValue(opts.ReportFormat, allowedReportFormats) {
		err := fmt.Errorf("%w: invalid value '%s' for key 'reportFormat' (flag --report-format). Allowed: %v", merger.ErrConfigValidation, opts.ReportFormat, allowedReportFormats)
		logger.Error(err.Error(), slog.String("key", "reportFormat"), slog.String("value", string(opts.ReportFormat)))
		return err
	}

	if opts.Concurrency < 0 {
		err := fmt.Errorf("%w: invalid value '%d' for key 'concurrency' (flag --concurrency). Must be >= 0", merger.ErrConfigValidation, opts.Concurrency)
		logger.Error(err.Error(), slog.String("key", "concurrency"), slog.Int("value", opts.Concurrency))
		return err
	}
	if opts.RetryAttempts == 0 {
		err := fmt.Errorf("%w: invalid value '0' for key 'retryAttempts' (flag --retry-attempts). Must be >= 1", merger.ErrConfigValidation)
		logger.Error(err.Error(), slog.String("key", "retryAttempts"))
		return err
	}

	if opts.FileExtension != "" && !strings.HasPrefix(opts.FileExtension, ".") {
		opts.FileExtension = "." + opts.FileExtension
	}

	// Viper delivers the retry delay as a string; parse it explicitly.
	delay, err := time.ParseDuration(opts.RetryDelayStr)
	if err != nil {
		err = fmt.Errorf("%w: invalid retry delay duration '%s' for key 'retryDelay': %w", merger.ErrConfigValidation, opts.RetryDelayStr, err)
		logger.Error(err.Error(), slog.String("key", "retryDelay"), slog.String("value", opts.RetryDelayStr))
		return err
	}
	if delay < 0 {
		err = fmt.Errorf("%w: invalid negative retry delay '%s' for key 'retryDelay'", merger.ErrConfigValidation, opts.RetryDelayStr)
		logger.Error(err.Error(), slog.String("key", "retryDelay"), slog.String("value", opts.RetryDelayStr))
		return err
	}
	opts.RetryDelay = delay

	// Verbose logging and the TUI contend for the terminal; verbose wins.
	if opts.Verbose && opts.TuiEnabled {
		logger.Debug("Verbose mode enabled, TUI disabled")
		opts.TuiEnabled = false
	}

	logger.Debug("Final derived settings validated",
		slog.Int("locations", len(opts.SourceLocations)),
		slog.String("outputMode", string(opts.OutputMode)),
		slog.Int("concurrency", opts.Concurrency),
		slog.Duration("retryDelay", opts.RetryDelay),
		slog.Bool("tuiEnabledEffective", opts.TuiEnabled))

	return nil
}
