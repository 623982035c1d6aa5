package scorestore

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Store operations.
var (
	// ErrNotFound indicates no record with the requested id exists in the
	// table. This is a normal outcome, not a backend failure.
	ErrNotFound = errors.New("record not found")

	// ErrBackendUnavailable indicates no scoreboard host is currently
	// reachable (for the remote backend, no world is attached to the
	// command transport). Operations fail fast without side effects.
	ErrBackendUnavailable = errors.New("scoreboard backend unavailable")
)

// TableAccessError indicates the backing objective for a table could not be
// created or opened.
type TableAccessError struct {
	Table string
	Err   error
}

func (e *TableAccessError) Error() string {
	return fmt.Sprintf("cannot access table %q: %v", e.Table, e.Err)
}

func (e *TableAccessError) Unwrap() error { return e.Err }

// EncodingTooLargeError indicates a serialized payload exceeds the maximum
// participant name length. The write is rejected outright; payloads are
// never truncated.
type EncodingTooLargeError struct {
	Size int
	Max  int
}

func (e *EncodingTooLargeError) Error() string {
	return fmt.Sprintf("encoded payload is %d bytes, exceeds maximum of %d", e.Size, e.Max)
}

// ParseError indicates a stored payload could not be decoded back into a
// JSON value, even after stripping command-shell escaping artifacts.
type ParseError struct {
	Payload string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse stored payload: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DeleteUnverifiedError indicates a delete was issued but a follow-up read
// still found the record after all retries and the broad-reset fallback.
// LastState carries the payload the verification read observed, for
// diagnostics.
type DeleteUnverifiedError struct {
	Table     string
	ID        int32
	Attempts  int
	LastState string
}

func (e *DeleteUnverifiedError) Error() string {
	return fmt.Sprintf("delete of %s[%d] unverified after %d attempts", e.Table, e.ID, e.Attempts)
}

// IsNotFound returns true if the error indicates a missing record rather
// than a backend failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailable returns true if the error indicates the scoreboard backend
// is not currently reachable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}
