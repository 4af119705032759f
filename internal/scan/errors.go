package scan

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across subsystems.
var (
	// ErrNotFound signals that the requested scan does not exist.
	ErrNotFound = errors.New("scan not found")
	// ErrAlreadyExists signals a scan ID collision at intake.
	ErrAlreadyExists = errors.New("scan already exists")
	// ErrRateLimitExceeded signals per-domain admission rejection. It is fatal
	// to the scan and short-circuits before any analyzer runs.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// FetchErrorKind classifies fetch failures.
type FetchErrorKind string

// Fetch failure classes. Both are non-fatal to the scan; they fail only the
// analyzers that depend on the fetched page.
const (
	FetchTimeout      FetchErrorKind = "timeout"
	FetchNetworkError FetchErrorKind = "network"
)

// FetchError wraps a failed page retrieval with its classification.
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchTimeout reports whether err is a timeout-classified fetch failure.
func IsFetchTimeout(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchTimeout
}
