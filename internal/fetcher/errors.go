package fetcher

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrDigestMismatch is returned when fetched bytes keep failing verification.
	ErrDigestMismatch = errors.New("chunk digest mismatch")
	// ErrLengthMismatch marks a body shorter or longer than the chunk.
	ErrLengthMismatch = errors.New("chunk length mismatch")
	// ErrStalled marks an attempt aborted because the server stopped sending data.
	ErrStalled = errors.New("transfer stalled")

	errBadRequest = errors.New("create request")
)

// StatusError is an unexpected HTTP response status.
type StatusError struct {
	// URL is the requested resource.
	URL string
	// Code is the HTTP status code.
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code >= http.StatusInternalServerError ||
		e.Code == http.StatusRequestTimeout ||
		e.Code == http.StatusTooManyRequests
}

// sinkError wraps failures of the local sink (write or read-back); they are never retried.
type sinkError struct {
	err error
}

func (e *sinkError) Error() string {
	return "write chunk: " + e.err.Error()
}

func (e *sinkError) Unwrap() error {
	return e.err
}

// sinkWriter tags write failures so they are not mistaken for network errors.
type sinkWriter struct {
	w interface{ Write(p []byte) (int, error) }
}

func (s sinkWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		return n, &sinkError{err: err}
	}

	return n, nil
}
