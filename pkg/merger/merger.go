package merger

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
)

// GroupMerger folds the records of one complete file group together by
// identifier. Member files are processed strictly in source-location order;
// that order is semantically load-bearing (it determines last-writer-wins
// precedence) and must not be parallelized.
type GroupMerger struct {
	loader        RecordLoader
	idField       string
	fallbackField string
	logger        *slog.Logger
}

// NewGroupMerger creates a GroupMerger using the given loader.
func NewGroupMerger(opts *Options, loader RecordLoader, loggerHandler slog.Handler) *GroupMerger {
	idField := opts.IdentifierField
	if idField == "" {
		idField = DefaultIdentifierField
	}
	fallback := opts.FallbackIdentifierField
	if fallback == "" {
		fallback = DefaultFallbackIdentifierField
	}
	return &GroupMerger{
		loader:        loader,
		idField:       idField,
		fallbackField: fallback,
		logger:        slog.New(loggerHandler).With(slog.String("component", "merger")),
	}
}

// Merge loads every member file of the group and folds their records by
// identifier. The merged record for an identifier is seeded with just that
// identifier on first sight; every subsequent key overwrites, so later
// locations win ties while the identifier value itself is never overwritten.
// A record lacking both identifier fields aborts the entire group; the caller
// (engine worker) is the only boundary that catches it. Returns (nil, nil)
// when the group yields zero records.
func (m *GroupMerger) Merge(ctx context.Context, group FileGroup, groupIndex int) (*MergedGroup, error) {
	byID := make(map[string]Record)
	var order []string

	for _, path := range group.Paths {
		records, err := m.loader.Load(ctx, path)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			id, ok := ResolveIdentifier(rec, m.idField, m.fallbackField)
			if !ok {
				return nil, fmt.Errorf("%w: record without %q or %q in file %s",
					ErrMissingIdentifier, m.idField, m.fallbackField, filepath.Base(path))
			}
			merged, seen := byID[id]
			if !seen {
				merged = Record{m.idField: id}
				byID[id] = merged
				order = append(order, id)
			}
			foldInto(merged, rec, m.idField)
		}
	}

	if len(byID) == 0 {
		m.logger.Debug("Group yielded zero records", slog.String("pattern", group.Pattern))
		return nil, nil
	}

	records := make([]Record, len(order))
	for i, id := range order {
		records[i] = byID[id]
	}
	return &MergedGroup{
		GroupIndex:  groupIndex,
		Pattern:     group.Pattern,
		SourceFiles: group.SourceFiles(),
		Records:     records,
	}, nil
}
