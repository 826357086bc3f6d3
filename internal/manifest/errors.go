package manifest

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField marks a row without a required column value.
	ErrMissingField = errors.New("required field is missing")
	// ErrBadSize marks a size that is not a non-negative integer.
	ErrBadSize = errors.New("invalid size")
	// ErrBadDigest marks a digest the configured algorithm cannot produce.
	ErrBadDigest = errors.New("invalid digest")
	// ErrBadChunk marks a chunk descriptor that cannot be parsed.
	ErrBadChunk = errors.New("invalid chunk descriptor")
	// ErrChunkSum marks chunk lengths that do not add up to the file size.
	ErrChunkSum = errors.New("chunk lengths do not sum to file size")
	// ErrUnsafePath marks paths that would escape the install root.
	ErrUnsafePath = errors.New("path escapes install root")
	// ErrDuplicatePath marks a path declared twice.
	ErrDuplicatePath = errors.New("duplicate path")
	// ErrNoSource marks a file with no way to retrieve its bytes.
	ErrNoSource = errors.New("no retrieval source")
	// ErrBadHeader marks a CSV header without the required columns.
	ErrBadHeader = errors.New("invalid header")
)

// ParseError describes why a manifest was rejected.
type ParseError struct {
	// Line is the 1-based record number (CSV row or YAML list item), 0 for document-level errors.
	Line int
	// Path is the entry path when known.
	Path string
	// Err is the reason.
	Err error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line == 0:
		return fmt.Sprintf("parse manifest: %v", e.Err)
	case e.Path == "":
		return fmt.Sprintf("parse manifest: record %d: %v", e.Line, e.Err)
	default:
		return fmt.Sprintf("parse manifest: record %d (%s): %v", e.Line, e.Path, e.Err)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
