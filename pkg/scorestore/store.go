package scorestore

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Record is the atomic stored unit: a row id (the scoreboard score) plus the
// decoded JSON payload (the participant name).
//
// The store does not enforce id uniqueness in the remote backend; callers
// are expected to treat the id as a primary key.
type Record struct {
	ID      int32           `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// ListResult holds the outcome of enumerating a table. Count is the number
// of successfully decoded rows. Corrupt rows are skipped, not counted; their
// ids are reported in Skipped so callers can reclaim the physical rows.
type ListResult struct {
	Items   []Record `json:"items"`
	Count   int      `json:"count"`
	Skipped []int32  `json:"skipped,omitempty"`
}

// Store is the key-value abstraction over a scoreboard. One logical table is
// backed by one scoreboard objective; tables are created lazily on first
// write.
//
// All operations return explicit errors from the package taxonomy and never
// panic across this boundary. The store offers no transactions: a Set
// followed by a Get from a different actor may observe either state.
type Store interface {
	// Set writes or overwrites the record at id, creating the table if
	// absent. In the remote backend an overwrite leaves the previous
	// participant as an orphan until Clear reclaims it.
	Set(ctx context.Context, table string, id int32, payload any) error

	// Get returns the payload of a record whose score equals id, or
	// ErrNotFound. When duplicates exist for an id (remote orphan leak),
	// the last-fetched row wins.
	Get(ctx context.Context, table string, id int32) (json.RawMessage, error)

	// Exists reports whether a record with the given id is present. A
	// missing record is not an error; only backend failures are.
	Exists(ctx context.Context, table string, id int32) (bool, error)

	// Delete removes the record(s) whose score equals id and verifies the
	// removal with a follow-up read, retrying with exponential backoff and
	// finally a broader reset before giving up with DeleteUnverifiedError.
	// Deleting an absent record succeeds.
	Delete(ctx context.Context, table string, id int32) error

	// List enumerates all records in the table. Rows with unparseable
	// payloads are logged and skipped, never failing the whole listing;
	// their ids land in ListResult.Skipped.
	List(ctx context.Context, table string) (*ListResult, error)

	// Clear removes every record in the table.
	Clear(ctx context.Context, table string) error
}

// Scoreboard is the in-process objective capability consumed by the Direct
// backend. Implementations must be safe for concurrent use.
type Scoreboard interface {
	// AddObjective creates an objective, or returns the existing one.
	AddObjective(name, displayName string) (Objective, error)

	// GetObjective returns an existing objective or ErrNotFound.
	GetObjective(name string) (Objective, error)
}

// Objective is a single scoreboard objective: a mutable map from participant
// name to integer score.
type Objective interface {
	Name() string
	SetScore(participant string, value int32) error
	Score(participant string) (int32, error)
	Participants() ([]string, error)
	HasParticipant(participant string) (bool, error)
	RemoveParticipant(participant string) error
}

// CommandResult is the outcome of one text command execution. SuccessCount
// is nil when the host omitted it, which some host versions do even for
// successful commands.
type CommandResult struct {
	SuccessCount  *int
	StatusMessage string
}

// errorKeywords are fragments of localized host error messages. A status
// message containing any of them is treated as failure regardless of
// SuccessCount.
var errorKeywords = []string{
	"error",
	"unknown command",
	"syntax",
	"couldn't",
	"does not exist",
	"doesn't exist",
	"fehler",
}

// Succeeded reports whether the command result represents success. A
// present, keyword-free status message counts as success even when the host
// omitted SuccessCount.
func (r *CommandResult) Succeeded() bool {
	if r == nil {
		return false
	}
	lower := strings.ToLower(r.StatusMessage)
	for _, kw := range errorKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	if r.SuccessCount != nil {
		return *r.SuccessCount > 0
	}
	return r.StatusMessage != ""
}

// Executor is the remote command capability consumed by the Remote backend:
// an asynchronous text command console that may reorder or drop commands
// under load.
type Executor interface {
	// Execute runs a single command and returns its raw result.
	Execute(ctx context.Context, command string) (*CommandResult, error)

	// Available reports whether a host world is currently attached.
	// Operations are gated on this to no-op cleanly while the backend is
	// away rather than erroring loudly.
	Available() bool
}

// deleteMaxAttempts bounds the verified-delete retry loop in both backends.
const deleteMaxAttempts = 3

// newDeleteBackoff returns the retry policy shared by both backends for
// verified deletes: fixed-step exponential backoff, bounded attempts.
func newDeleteBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 500 * time.Millisecond
	return backoff.WithMaxRetries(b, deleteMaxAttempts-1)
}
