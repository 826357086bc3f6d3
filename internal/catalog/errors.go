package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrLoginFailed is returned when the storefront rejects the credentials.
	ErrLoginFailed = errors.New("login failed")
	// ErrNotLoggedIn is returned when the session is missing or expired.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrNoManifest is returned for versions without a manifest reference.
	ErrNoManifest = errors.New("version has no manifest")

	errAPIURLRequired = errors.New("api url must be provided")
)

// StatusError is an unexpected HTTP response from the storefront.
type StatusError struct {
	// URL is the requested resource.
	URL string
	// Code is the HTTP status code.
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}
