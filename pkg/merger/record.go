package merger

import (
	"math"
	"strconv"
	"time"
)

// Record is one variant-typed key-value mapping as decoded from a JSON record
// file: values are strings, numbers (float64), booleans, nulls, or lists.
// No fixed field set is assumed beyond the identifier.
type Record map[string]any

// ResolveIdentifier extracts the record's identifier via the primary field,
// falling back to the fallback field when the primary is absent or falsy.
// Empty strings, zero numbers and nulls do not count as identifiers, matching
// the upstream producers' convention of zeroing out unusable ids.
func ResolveIdentifier(rec Record, primaryField, fallbackField string) (string, bool) {
	if id, ok := stringifyIdentifier(rec[primaryField]); ok {
		return id, true
	}
	return stringifyIdentifier(rec[fallbackField])
}

func stringifyIdentifier(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return "", false
		}
		return val, true
	case float64:
		if val == 0 {
			return "", false
		}
		// Integral identifiers round-trip without a trailing ".0".
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10), true
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return "", false
	}
}

// foldInto copies every key of src except the identifier field into dst,
// overwriting existing values. Callers invoke it in source-location order, so
// the last location processed wins ties.
func foldInto(dst, src Record, idField string) {
	for key, value := range src {
		if key == idField {
			continue
		}
		dst[key] = value
	}
}

// MergedGroup is the result of merging one complete file group: the group's
// index in discovery order, its member file names in source-location order, and
// one record per distinct identifier seen across all member files.
type MergedGroup struct {
	GroupIndex  int      `json:"group_index"`
	Pattern     string   `json:"pattern"`
	SourceFiles []string `json:"source_files"`
	Records     []Record `json:"records"`
}

// GroupError describes one group excluded from the result set.
type GroupError struct {
	GroupIndex int    `json:"group_index"`
	Pattern    string `json:"pattern"`
	Error      string `json:"error"`
}

// groupResult is the internal envelope workers send to the aggregator.
type groupResult struct {
	index       int
	pattern     string
	status      Status
	merged      *MergedGroup // nil unless the records need to travel (accumulate/combined)
	written     string       // non-empty in persist mode on success
	recordCount int
	err         error
	duration    time.Duration
}
