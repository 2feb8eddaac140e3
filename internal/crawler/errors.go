package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrListUnavailable marks a category whose list page could not be fetched.
	ErrListUnavailable = errors.New("list page unavailable")
	// ErrObjectNotFound is returned by a BlobStore for a missing object.
	ErrObjectNotFound = errors.New("object not found")
	// ErrCredentialRejected is returned when the lookup service refuses the API key.
	ErrCredentialRejected = errors.New("lookup credential rejected")
	// ErrQuotaExhausted is returned by a PlaceSearcher when the upstream quota is spent.
	ErrQuotaExhausted = errors.New("lookup quota exhausted")
)

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Terminal reports whether the status is a 4xx that retrying cannot fix.
func (e *StatusError) Terminal() bool {
	return e.Code >= 400 && e.Code < 500
}

// IsTerminal reports whether err must not be retried.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Terminal()
	}
	return false
}

// RetriesExhaustedError wraps the last error seen after every attempt failed.
type RetriesExhaustedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}
