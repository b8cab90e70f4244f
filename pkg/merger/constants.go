package merger

import "time"

// Constants defining default values for configuration options. These are used
// when setting up Viper defaults in the configuration loading process.
const (
	// DefaultConcurrency determines the default number of workers. 0 means runtime.NumCPU().
	DefaultConcurrency = 0
	// DefaultIdentifierField is the record key used to correlate records across sources.
	DefaultIdentifierField = "id"
	// DefaultFallbackIdentifierField is consulted when the primary identifier field is absent.
	DefaultFallbackIdentifierField = "an"
	// DefaultOutputMode is what the engine does with merged groups.
	DefaultOutputMode = OutputModePersist
	// DefaultFileExtension filters candidate files during directory scanning.
	DefaultFileExtension = ".json"
	// DefaultRetryAttempts bounds the number of load attempts per file.
	DefaultRetryAttempts = 3
	// DefaultRetryDelayString is the fixed delay between load attempts.
	DefaultRetryDelayString = "5s"
	// DefaultRetryDelayDuration is the parsed default retry delay.
	DefaultRetryDelayDuration = 5 * time.Second
	// DefaultReportFormat is the default format for the final summary.
	DefaultReportFormat = ReportFormatText
	// DefaultTuiEnabled is the default state for the Terminal UI.
	DefaultTuiEnabled = true
	// DefaultVerbose is the default state for verbose logging.
	DefaultVerbose = false
)

// SourceFilenameField is the per-record attribute carrying the original input
// filename; when present on the first record of a merged group it names the
// group's output file.
const SourceFilenameField = "ILA_original_filename"

// ReportSchemaVersion indicates the version of the JSON report structure.
const ReportSchemaVersion = "1.0"
