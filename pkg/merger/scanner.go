package merger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Slot is one per-location position in a pattern's file group. A slot is
// Filled once a matching file is found in that location; completeness checks
// rely on the explicit flag rather than an empty path.
type Slot struct {
	Path   string
	Filled bool
}

// PatternIndex maps canonical patterns to their per-location slots, preserving
// first-seen order so group indexes are stable across a run.
type PatternIndex struct {
	slots map[string][]Slot
	order []string
	width int // number of source locations, fixed per scan
}

func newPatternIndex(width int) *PatternIndex {
	return &PatternIndex{slots: make(map[string][]Slot), width: width}
}

func (x *PatternIndex) fill(pattern string, locationIdx int, path string) {
	row, ok := x.slots[pattern]
	if !ok {
		row = make([]Slot, x.width)
		x.order = append(x.order, pattern)
	}
	row[locationIdx] = Slot{Path: path, Filled: true}
	x.slots[pattern] = row
}

// Len returns the number of distinct patterns discovered.
func (x *PatternIndex) Len() int { return len(x.order) }

// Slots returns the slot row for a pattern, or nil if the pattern was never seen.
func (x *PatternIndex) Slots(pattern string) []Slot { return x.slots[pattern] }

// CanonicalPattern derives the grouping key from a filename produced by one of
// the tagging passes. Filenames shaped like "2005_articles_1_<suffix>" map to
// "2005_articles_1_"; "2005_articles_<suffix>" (no batch number) maps to
// "2005_articles_". The second component must be the literal "articles" and the
// first must be all digits; anything else is unrecognized and excluded from
// grouping, which is deliberate, not an error.
func CanonicalPattern(filename string) (string, bool) {
	parts := strings.Split(filename, "_")
	if len(parts) < 3 || parts[1] != "articles" || !allDigits(parts[0]) {
		return "", false
	}
	if allDigits(parts[2]) {
		return fmt.Sprintf("%s_articles_%s_", parts[0], parts[2]), true
	}
	return fmt.Sprintf("%s_articles_", parts[0]), true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Scanner enumerates candidate files across the configured source locations
// and records them under their canonical pattern.
type Scanner struct {
	locations []string
	extension string
	logger    *slog.Logger
}

// NewScanner creates a Scanner. The location list is fixed configuration and
// its order determines merge-overwrite precedence downstream.
func NewScanner(opts *Options, loggerHandler slog.Handler) (*Scanner, error) {
	if len(opts.SourceLocations) == 0 {
		return nil, fmt.Errorf("%w: at least one source location must be provided", ErrConfigValidation)
	}
	ext := opts.FileExtension
	if ext == "" {
		ext = DefaultFileExtension
	}
	logger := slog.New(loggerHandler).With(slog.String("component", "scanner"))
	return &Scanner{
		locations: opts.SourceLocations,
		extension: ext,
		logger:    logger,
	}, nil
}

// Discover lists every location in order and builds the pattern index. A
// configured location that does not exist aborts the whole scan with
// ErrLocationNotFound; no partial index is returned. Files whose name yields
// no canonical pattern are skipped silently. Directory entries arrive sorted
// from os.ReadDir, so discovery order is deterministic across runs.
func (s *Scanner) Discover(ctx context.Context) (*PatternIndex, error) {
	s.logger.Info("Discovering file groups", slog.Int("locations", len(s.locations)))

	for i, loc := range s.locations {
		info, err := os.Stat(loc)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: location %d: %s", ErrLocationNotFound, i+1, loc)
			}
			return nil, fmt.Errorf("cannot access source location %q: %w", loc, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: location %d is not a directory: %s", ErrLocationNotFound, i+1, loc)
		}
	}

	index := newPatternIndex(len(s.locations))
	for i, loc := range s.locations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(loc)
		if err != nil {
			return nil, fmt.Errorf("cannot list source location %q: %w", loc, err)
		}
		fileCount := 0
		for _, entry := range entries {
			if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), s.extension) {
				continue
			}
			fileCount++
			pattern, ok := CanonicalPattern(entry.Name())
			if !ok {
				s.logger.Debug("Filename matches no canonical pattern, excluded from grouping",
					slog.String("file", entry.Name()), slog.Int("location", i+1))
				continue
			}
			index.fill(pattern, i, filepath.Join(loc, entry.Name()))
		}
		s.logger.Debug("Scanned source location",
			slog.Int("location", i+1), slog.String("path", loc), slog.Int("files", fileCount))
	}

	s.logger.Info("Scan complete", slog.Int("patterns", index.Len()))
	return index, nil
}
