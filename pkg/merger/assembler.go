package merger

import (
	"log/slog"
	"path/filepath"
)

// FileGroup is the unit of merge work: one file path per source location,
// sharing a canonical pattern, in precedence order. A FileGroup exists only if
// every slot was filled.
type FileGroup struct {
	Pattern string
	Paths   []string
}

// SourceFiles returns the base names of the group's member files.
func (g FileGroup) SourceFiles() []string {
	names := make([]string, len(g.Paths))
	for i, p := range g.Paths {
		names[i] = filepath.Base(p)
	}
	return names
}

// Assemble filters the pattern index down to complete groups, in discovery
// order, and reports how many patterns were dropped for missing a file in at
// least one location. Incomplete patterns are not an error.
func Assemble(index *PatternIndex, loggerHandler slog.Handler) (groups []FileGroup, incomplete int) {
	logger := slog.New(loggerHandler).With(slog.String("component", "assembler"))

	for _, pattern := range index.order {
		row := index.slots[pattern]
		complete := true
		for _, slot := range row {
			if !slot.Filled {
				complete = false
				break
			}
		}
		if !complete {
			incomplete++
			missing := make([]int, 0, len(row))
			for i, slot := range row {
				if !slot.Filled {
					missing = append(missing, i+1)
				}
			}
			logger.Debug("Pattern incomplete, dropped",
				slog.String("pattern", pattern), slog.Any("missingLocations", missing))
			continue
		}
		paths := make([]string, len(row))
		for i, slot := range row {
			paths[i] = slot.Path
		}
		groups = append(groups, FileGroup{Pattern: pattern, Paths: paths})
	}

	logger.Info("Assembled file groups",
		slog.Int("complete", len(groups)), slog.Int("incomplete", incomplete))
	return groups, incomplete
}
