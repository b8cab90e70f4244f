package merger

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/johnsonice/ILA/pkg/util"
)

// Report summarizes the result of a single merge run. Depending on the output
// mode it carries written file paths, the merged groups themselves, or only
// group indexes.
type Report struct {
	Summary      ReportSummary `json:"summary" yaml:"summary"`
	WrittenFiles []string      `json:"writtenFiles,omitempty" yaml:"writtenFiles,omitempty"`
	Groups       []MergedGroup `json:"groups,omitempty" yaml:"groups,omitempty"`
	GroupIndexes []int         `json:"groupIndexes,omitempty" yaml:"groupIndexes,omitempty"`
	Errors       []GroupError  `json:"errors" yaml:"errors"`
}

// ReportSummary contains aggregated statistics for a merge run. A run's
// user-visible outcome is this set of counters, not a single pass/fail signal.
type ReportSummary struct {
	SourceLocations    []string   `json:"sourceLocations" yaml:"sourceLocations"`
	OutputDir          string     `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`
	OutputMode         OutputMode `json:"outputMode" yaml:"outputMode"`
	IdentifierField    string     `json:"identifierField" yaml:"identifierField"`
	ProfileUsed        string     `json:"profileUsed,omitempty" yaml:"profileUsed,omitempty"`
	ConfigFilePath     string     `json:"configFilePath,omitempty" yaml:"configFilePath,omitempty"`
	PatternsDiscovered int        `json:"patternsDiscovered" yaml:"patternsDiscovered"`
	CompleteGroups     int        `json:"completeGroups" yaml:"completeGroups"`
	IncompleteGroups   int        `json:"incompleteGroups" yaml:"incompleteGroups"`
	MergedCount        int        `json:"mergedCount" yaml:"mergedCount"`
	EmptyCount         int        `json:"emptyCount" yaml:"emptyCount"`
	FailedCount        int        `json:"failedCount" yaml:"failedCount"`
	RecordCount        int        `json:"recordCount" yaml:"recordCount"`
	Concurrency        int        `json:"concurrency" yaml:"concurrency"`
	DurationSeconds    float64    `json:"durationSeconds" yaml:"durationSeconds"`
	Timestamp          time.Time  `json:"timestamp" yaml:"timestamp"`
	AppVersion         string     `json:"appVersion,omitempty" yaml:"appVersion,omitempty"`
	SchemaVersion      string     `json:"schemaVersion,omitempty" yaml:"schemaVersion,omitempty"`
}

// WriteFile persists the report as JSON or YAML depending on the path's
// extension (.yaml/.yml selects YAML, anything else JSON).
func (r Report) WriteFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(r)
	default:
		data, err = json.MarshalIndent(r, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return util.WriteFileAtomic(path, data, 0644)
}

// TextSummary renders the one-screen human-readable summary printed when the
// report format is "text".
func (r Report) TextSummary() string {
	var b strings.Builder
	s := r.Summary
	fmt.Fprintf(&b, "Merge complete in %.2fs (%d workers, mode %s)\n", s.DurationSeconds, s.Concurrency, s.OutputMode)
	fmt.Fprintf(&b, "  Patterns discovered: %d (complete %d, incomplete %d)\n", s.PatternsDiscovered, s.CompleteGroups, s.IncompleteGroups)
	fmt.Fprintf(&b, "  Groups merged:       %d (%d records)\n", s.MergedCount, s.RecordCount)
	if s.EmptyCount > 0 {
		fmt.Fprintf(&b, "  Groups empty:        %d\n", s.EmptyCount)
	}
	fmt.Fprintf(&b, "  Groups failed:       %d\n", s.FailedCount)
	for _, ge := range r.Errors {
		fmt.Fprintf(&b, "    - group %d (%s): %s\n", ge.GroupIndex, ge.Pattern, ge.Error)
	}
	if len(r.WrittenFiles) > 0 {
		fmt.Fprintf(&b, "  Files written:       %d -> %s\n", len(r.WrittenFiles), s.OutputDir)
	}
	return b.String()
}
