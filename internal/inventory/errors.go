package inventory

import (
	"errors"
	"fmt"
	"strings"
)

// ErrResourceNotSupported is returned by an API client method when the call is
// structurally unavailable for the current configuration (e.g. an API not
// enabled on this project). Iterators and side-band fetches treat it as an
// empty result rather than a failure.
var ErrResourceNotSupported = errors.New("inventory: resource not supported by api client")

// ErrNotInitialized is returned by Resource.Stack when called before Accept
// has bound the resource's parent chain. A Resource must never be read this
// way outside the call window of its own Accept.
var ErrNotInitialized = errors.New("inventory: resource stack not initialized")

// ErrUnsupportedRootPrefix is returned by FromRootID when the root id does not
// begin with a known prefix (organizations/, folders/, projects/).
var ErrUnsupportedRootPrefix = errors.New("inventory: unsupported root id prefix")

// ApiExecutionError wraps a failure surfaced by the API client. Message is the
// human-readable text the engine inspects for benign-error classification;
// Cause, when set, is the underlying transport/client error.
type ApiExecutionError struct {
	Message string
	Cause   error
}

func (e *ApiExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ApiExecutionError) Unwrap() error {
	return e.Cause
}

// NewApiExecutionError builds an ApiExecutionError from a message and an
// optional underlying cause.
func NewApiExecutionError(message string, cause error) *ApiExecutionError {
	return &ApiExecutionError{Message: message, Cause: cause}
}

// benignPhrases are substrings of an ApiExecutionError's message that mark the
// failure as "target is gone or transient" rather than a real problem: the
// engine swallows these without recording a warning. Kept as a single
// allowlist per the re-architecture note in SPEC_FULL.md §9 rather than a
// structured error kind, since the API client boundary does not expose one.
var benignPhrases = []string{
	"Not found",
	"Unknown project id",
	"scheduled for deletion",
}

// isBenign reports whether err is an *ApiExecutionError whose message matches
// one of the benign phrases.
func isBenign(err error) bool {
	var apiErr *ApiExecutionError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, phrase := range benignPhrases {
		if strings.Contains(apiErr.Message, phrase) {
			return true
		}
	}
	return false
}
