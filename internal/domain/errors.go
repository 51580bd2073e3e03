package domain

import (
	"errors"
	"fmt"
)

// InsufficientDataError reports a stack that would hold fewer than the
// minimum 2 scenes required by the t-test. Window identifies the offending
// date range. Not retryable: re-running the same query yields the same scenes.
type InsufficientDataError struct {
	Window DateWindow
	Got    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: window %s holds %d scene(s), need at least 2", e.Window, e.Got)
}

// RemoteFetchError wraps a failure talking to an external data source.
// Retryable marks transient failures (network errors, 5xx responses) that the
// pipeline may retry with backoff; auth and bad-request failures are not.
type RemoteFetchError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("remote fetch %s: %v", e.Op, e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// GridMismatchError reports two rasters whose grids cannot be reconciled.
type GridMismatchError struct {
	A, B Grid
}

func (e *GridMismatchError) Error() string {
	return fmt.Sprintf("grid mismatch: %s vs %s", e.A, e.B)
}

// NoFootprintsError reports a footprint provider that returned zero
// footprints for the area of interest. Callers typically retry with a
// different provider (OSM has the broadest coverage in Eastern Europe).
type NoFootprintsError struct {
	Provider string
}

func (e *NoFootprintsError) Error() string {
	return fmt.Sprintf("no building footprints in area of interest using provider %q", e.Provider)
}

// IsRetryableFetch reports whether err is a transient remote failure worth
// retrying with backoff.
func IsRetryableFetch(err error) bool {
	var fe *RemoteFetchError
	return errors.As(err, &fe) && fe.Retryable
}
