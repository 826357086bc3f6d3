package installer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyInstalled is returned by Install for a slug with an install record.
	ErrAlreadyInstalled = errors.New("product is already installed")
	// ErrVersionNotFound is returned when no enabled build matches the request.
	ErrVersionNotFound = errors.New("version not found")
	// ErrNotInstalled is returned when an operation needs an existing install.
	ErrNotInstalled = errors.New("product is not installed")
	// ErrUpToDate is returned by Update when the target version is already installed.
	ErrUpToDate = errors.New("product is up to date")
	// ErrFileDigestMismatch is returned when a reconstructed file fails verification.
	ErrFileDigestMismatch = errors.New("file digest mismatch")
	// ErrUnsafePath is returned when the install path cannot be removed safely.
	ErrUnsafePath = errors.New("refusing to operate on path")

	errNotDirectory = errors.New("not a directory")
)

// EntryError is the failure of a single manifest entry.
type EntryError struct {
	// Path is the manifest path of the entry.
	Path string
	// Err is the underlying failure.
	Err error
}

func (e EntryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e EntryError) Unwrap() error {
	return e.Err
}

// InstallFailedError aggregates the entries that failed in one call.
// The install root was rolled back before it is returned.
type InstallFailedError struct {
	// Slug is the product being installed or updated.
	Slug string
	// Failed lists every failed entry in manifest order.
	Failed []EntryError
}

func (e *InstallFailedError) Error() string {
	const shown = 3

	var b strings.Builder

	fmt.Fprintf(&b, "%s: %d file(s) failed", e.Slug, len(e.Failed))

	for i, failed := range e.Failed {
		if i == shown {
			fmt.Fprintf(&b, "; and %d more", len(e.Failed)-shown)
			break
		}

		b.WriteString("; ")
		b.WriteString(failed.Error())
	}

	return b.String()
}

// Unwrap exposes the per-entry causes to errors.Is and errors.As.
func (e *InstallFailedError) Unwrap() []error {
	result := make([]error, len(e.Failed))
	for i := range e.Failed {
		result[i] = e.Failed[i]
	}

	return result
}

// DirectoryCreateError reports an install directory that could not be created.
type DirectoryCreateError struct {
	// Path is the directory.
	Path string
	// Err is the underlying failure.
	Err error
}

func (e *DirectoryCreateError) Error() string {
	return fmt.Sprintf("create directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryCreateError) Unwrap() error {
	return e.Err
}

// DirectoryRemoveError reports an install directory that could not be removed.
type DirectoryRemoveError struct {
	// Path is the directory.
	Path string
	// Err is the underlying failure.
	Err error
}

func (e *DirectoryRemoveError) Error() string {
	return fmt.Sprintf("remove directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryRemoveError) Unwrap() error {
	return e.Err
}

// PartialUpdateError reports an update whose staged files could not all be
// swapped in. The install keeps its previous record, so running the update
// again downloads and replaces every file that still differs.
type PartialUpdateError struct {
	// Slug is the product being updated.
	Slug string
	// Applied counts the files that were replaced.
	Applied int
	// Failed lists the files left at their previous content, in manifest order.
	Failed []EntryError
}

func (e *PartialUpdateError) Error() string {
	return fmt.Sprintf("%s: update partially applied, %d of %d file(s) replaced; %v; run update again to repair",
		e.Slug, e.Applied, e.Applied+len(e.Failed), e.Failed[0])
}

// Unwrap exposes the per-entry causes to errors.Is and errors.As.
func (e *PartialUpdateError) Unwrap() []error {
	result := make([]error, len(e.Failed))
	for i := range e.Failed {
		result[i] = e.Failed[i]
	}

	return result
}
