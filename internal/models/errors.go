package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the search, kvstore and splunkd packages.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidName indicates a bad collection name or output mode.
	ErrInvalidName = errors.New("invalid name")

	// ErrNoCapability indicates an operation was attempted without its
	// prerequisite state, e.g. a KV operation with no active collection.
	ErrNoCapability = errors.New("no such capability")

	// ErrOperation indicates the remote call succeeded at the transport level
	// but reported a failure, or omitted an expected artifact.
	ErrOperation = errors.New("operation error")

	// ErrNoOperationRunning indicates a fetch or write was attempted before
	// any search was submitted (or after it was cancelled).
	ErrNoOperationRunning = fmt.Errorf("%w: no operation running", ErrOperation)

	// ErrSearch is the recoverable failure classified from an ERROR message.
	ErrSearch = fmt.Errorf("%w: search error", ErrOperation)

	// ErrSearchFatal is the failure classified from a FATAL message.
	ErrSearchFatal = fmt.Errorf("%w: search fatal", ErrOperation)
)

// Severity markers recognized in the JSON result stream.
const (
	SeverityError = "ERROR"
	SeverityFatal = "FATAL"
)

// SearchError is a failure classified from the decoded message stream.
type SearchError struct {
	Severity string
	Text     string
}

func (e *SearchError) Error() string {
	return e.Severity + ": " + e.Text
}

// Unwrap maps the severity onto ErrSearch or ErrSearchFatal.
func (e *SearchError) Unwrap() error {
	if e.Severity == SeverityFatal {
		return ErrSearchFatal
	}
	return ErrSearch
}

// RemoteError is a non-2xx response from splunkd.
type RemoteError struct {
	Status   int
	Messages []Message
}

func (e *RemoteError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("splunkd returned status %d", e.Status)
	}
	texts := make([]string, 0, len(e.Messages))
	for _, m := range e.Messages {
		texts = append(texts, m.Type+": "+m.Text)
	}
	return fmt.Sprintf("splunkd returned status %d: %s", e.Status, strings.Join(texts, "; "))
}

// Unwrap reports remote failures as ErrOperation.
func (e *RemoteError) Unwrap() error {
	return ErrOperation
}
