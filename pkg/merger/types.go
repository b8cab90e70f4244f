package merger

// Status defines the possible processing states of a file group during a run.
type Status string

// Constants representing the defined group processing statuses.
const (
	StatusPending Status = "pending"
	StatusMerging Status = "merging"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusEmpty   Status = "empty"
)

// OutputMode defines what the engine does with each successfully merged group.
type OutputMode string

const (
	// OutputModePersist writes every merged group to its own JSON file in the
	// output directory; the report carries the written paths.
	OutputModePersist OutputMode = "persist-per-group"
	// OutputModeAccumulate keeps every merged group in memory and returns it
	// inside the report.
	OutputModeAccumulate OutputMode = "accumulate"
	// OutputModeIndexOnly returns only the group indexes, bounding peak memory
	// when groups are numerous and large.
	OutputModeIndexOnly OutputMode = "index-only"
)

// ReportFormat defines the format for the final summary printed to standard
// output when the TUI is disabled.
type ReportFormat string

const (
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
)
