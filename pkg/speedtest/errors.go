package speedtest

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned by Start while a prior run is still in progress.
	// The in-flight run is not disturbed.
	ErrBusy = errors.New("measurement already in progress")

	// ErrNoResult is returned when insights are requested before any
	// session has completed.
	ErrNoResult = errors.New("no measurement result available")

	// ErrUnknownProfile is returned for a profile outside the supported set.
	ErrUnknownProfile = errors.New("unknown usage profile")
)

// NetworkError wraps any transport-level failure from a probe.
//
// Inside the pipeline it triggers the degraded completion path; it is never
// surfaced to the UI as an error.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error probing %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func netErr(url string, err error) error {
	return &NetworkError{URL: url, Err: err}
}
