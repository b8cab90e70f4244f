package merger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/johnsonice/ILA/pkg/util"
)

// GroupWriter persists merged groups as pretty-printed JSON files. Output
// names are derived from group-local data, so concurrent workers never write
// the same file and no locking is required.
type GroupWriter struct {
	outputDir string
	logger    *slog.Logger
}

// NewGroupWriter creates a GroupWriter targeting the given directory.
func NewGroupWriter(outputDir string, loggerHandler slog.Handler) *GroupWriter {
	return &GroupWriter{
		outputDir: outputDir,
		logger:    slog.New(loggerHandler).With(slog.String("component", "writer")),
	}
}

// WriteGroup writes one merged group's records as a single JSON file and
// returns the written path. The filename comes from the first record's
// tracked source-filename attribute when present, falling back to the first
// member file's stem.
func (w *GroupWriter) WriteGroup(group *MergedGroup) (string, error) {
	name := w.outputName(group)
	path := filepath.Join(w.outputDir, name)

	data, err := marshalRecords(group.Records)
	if err != nil {
		return "", fmt.Errorf("%w: group %d: %w", ErrWriteFailed, group.GroupIndex, err)
	}
	if err := util.WriteFileAtomic(path, data, 0644); err != nil {
		return "", fmt.Errorf("%w: group %d: %w", ErrWriteFailed, group.GroupIndex, err)
	}
	w.logger.Debug("Wrote merged group", slog.String("path", path), slog.Int("records", len(group.Records)))
	return path, nil
}

// WriteCombined writes all merged groups into one file. An empty filename
// selects a timestamped default.
func (w *GroupWriter) WriteCombined(groups []MergedGroup, filename string) (string, error) {
	if filename == "" {
		filename = fmt.Sprintf("merged_results_%s.json", time.Now().Format("20060102_150405"))
	}
	path := filepath.Join(w.outputDir, filename)

	data, err := marshalPretty(groups)
	if err != nil {
		return "", fmt.Errorf("%w: combined results: %w", ErrWriteFailed, err)
	}
	if err := util.WriteFileAtomic(path, data, 0644); err != nil {
		return "", fmt.Errorf("%w: combined results: %w", ErrWriteFailed, err)
	}
	w.logger.Info("Saved combined merge results", slog.String("path", path), slog.Int("groups", len(groups)))
	return path, nil
}

func (w *GroupWriter) outputName(group *MergedGroup) string {
	if len(group.Records) > 0 {
		if orig, ok := group.Records[0][SourceFilenameField].(string); ok && orig != "" {
			return ensureJSONExt(orig)
		}
	}
	// Fall back to the first member file's stem.
	first := group.SourceFiles[0]
	return ensureJSONExt(strings.TrimSuffix(first, filepath.Ext(first)))
}

func ensureJSONExt(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".json") {
		return name
	}
	return name + ".json"
}

func marshalRecords(records []Record) ([]byte, error) {
	return marshalPretty(records)
}

// marshalPretty renders multi-space-indented JSON with HTML escaping off so
// non-ASCII article text stays unescaped in output files.
func marshalPretty(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
