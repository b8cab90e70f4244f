package merger

import "errors"

// Exported error variables. These represent the categories of faults the
// merger distinguishes; callers can check against them using errors.Is.

var (
	// ErrConfigValidation indicates that the provided Options failed validation
	// checks performed when constructing the Engine or Scanner (empty location
	// list, missing logger, invalid modes). Always fatal, returned before any
	// group is processed.
	ErrConfigValidation = errors.New("invalid configuration options provided")

	// ErrLocationNotFound indicates a configured source location does not exist.
	// Fatal for the whole scan: no partial pattern map is returned.
	ErrLocationNotFound = errors.New("source location does not exist")

	// ErrLoadFailed indicates a record file could not be read or parsed after
	// exhausting the configured retry attempts. Fatal for the containing group
	// only; sibling groups are unaffected.
	ErrLoadFailed = errors.New("failed to load record file")

	// ErrMissingIdentifier indicates a record exposes neither the primary nor
	// the fallback identifier field. Aborts the entire containing group; it is
	// caught only at the engine boundary. This is deliberately louder than a
	// load failure: a record without an identity is a data-integrity violation,
	// not a transient blip.
	ErrMissingIdentifier = errors.New("record missing identifier field")

	// ErrMalformedRecord indicates a list element in a record file is not an
	// object. Fatal for the containing group, same scope as ErrMissingIdentifier.
	ErrMalformedRecord = errors.New("record is not an object")

	// ErrWriteFailed indicates a merged group could not be persisted. The group
	// is excluded from the success count; other groups are unaffected.
	ErrWriteFailed = errors.New("failed to write merged group")
)
