package scorestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/cenkalti/backoff/v4"
)

// Command templates for the remote scoreboard console.
const (
	cmdObjectivesList   = "scoreboard objectives list"
	cmdObjectivesAdd    = `scoreboard objectives add %s dummy %s`
	cmdObjectivesRemove = `scoreboard objectives remove %s`
	cmdPlayersSet       = `scoreboard players set "%s" %s %d`
	cmdPlayersList      = `scoreboard players list %s`
	cmdPlayersListAll   = `scoreboard players list *`
	cmdPlayersReset     = `scoreboard players reset "%s" %s`
	cmdPlayersResetAll  = `scoreboard players reset "%s"`
)

// Remote implements Store by issuing textual scoreboard commands through an
// Executor and parsing the human-readable responses. All the fragility of
// driving a chat console as a database lives here and does not leak past the
// Store interface.
//
// Known limitations inherent to this backend:
//   - an overwrite of an existing id leaves the previous participant behind
//     as an orphan (there is no delete-by-score command shape that also
//     matches the old payload); Get and List filter by score so the orphan
//     is harmless, but the space is only reclaimed by Clear;
//   - a table with zero records is indistinguishable from a nonexistent one.
type Remote struct {
	exec Executor

	mu          sync.Mutex
	knownTables map[string]bool
}

// NewRemote creates a Remote store over the given command executor.
func NewRemote(exec Executor) *Remote {
	return &Remote{exec: exec, knownTables: make(map[string]bool)}
}

// run executes one command, folding transport errors and unavailability into
// the package taxonomy.
func (r *Remote) run(ctx context.Context, command string) (*CommandResult, error) {
	if !r.exec.Available() {
		return nil, ErrBackendUnavailable
	}
	res, err := r.exec.Execute(ctx, command)
	if err != nil {
		return nil, fmt.Errorf("command execution failed: %w", err)
	}
	return res, nil
}

// ensureObjective creates the backing objective for a table unless the
// "objectives list" output already names it. The existence check is anchored
// to a whole line-start token; a substring match would false-positive on
// tables whose name is a prefix of another's.
func (r *Remote) ensureObjective(ctx context.Context, table string) error {
	r.mu.Lock()
	known := r.knownTables[table]
	r.mu.Unlock()
	if known {
		return nil
	}

	res, err := r.run(ctx, cmdObjectivesList)
	if err != nil {
		return err
	}
	if !containsObjective(res.StatusMessage, table) {
		addRes, err := r.run(ctx, fmt.Sprintf(cmdObjectivesAdd, table, table))
		if err != nil {
			return err
		}
		if !addRes.Succeeded() {
			return &TableAccessError{Table: table, Err: errors.New(addRes.StatusMessage)}
		}
	}

	r.mu.Lock()
	r.knownTables[table] = true
	r.mu.Unlock()
	return nil
}

// listRows fetches all raw rows for a table. It first tries the listing
// scoped to the table; if that form errors or comes back empty (both
// observed, depending on host version), it falls back to listing every
// score and post-filtering each line by the table name embedded in the
// line's own text.
func (r *Remote) listRows(ctx context.Context, table string) ([]scoreRow, error) {
	res, err := r.run(ctx, fmt.Sprintf(cmdPlayersList, table))
	if err != nil {
		if IsUnavailable(err) {
			return nil, err
		}
	} else if res.Succeeded() {
		if rows := parseScoreOutput(res.StatusMessage, table, true); len(rows) > 0 {
			return rows, nil
		}
	}

	allRes, err := r.run(ctx, cmdPlayersListAll)
	if err != nil {
		return nil, err
	}
	if !allRes.Succeeded() {
		return nil, nil
	}
	return parseScoreOutput(allRes.StatusMessage, table, false), nil
}

// Set writes or overwrites the record at id, creating the table if absent.
// The write is a plain "players set": it does not remove a prior participant
// holding the same id, so overwriting leaves an orphan behind (see the type
// comment). Callers needing the space back run Clear.
func (r *Remote) Set(ctx context.Context, table string, id int32, payload any) error {
	encoded, err := Serialize(payload)
	if err != nil {
		return err
	}
	if err := r.ensureObjective(ctx, table); err != nil {
		return err
	}

	res, err := r.run(ctx, fmt.Sprintf(cmdPlayersSet, Escape(encoded), table, id))
	if err != nil {
		return err
	}
	if !res.Succeeded() {
		return &TableAccessError{Table: table, Err: fmt.Errorf("set rejected: %s", res.StatusMessage)}
	}
	return nil
}

// Get returns the payload of a record whose score equals id, or ErrNotFound.
// When the orphan leak has left several rows with the same id, the
// last-fetched row wins.
func (r *Remote) Get(ctx context.Context, table string, id int32) (json.RawMessage, error) {
	row, err := r.findRow(ctx, table, id)
	if err != nil {
		return nil, err
	}
	return Decode(row.participant)
}

// findRow scans the table for the last row whose score equals id.
func (r *Remote) findRow(ctx context.Context, table string, id int32) (*scoreRow, error) {
	rows, err := r.listRows(ctx, table)
	if err != nil {
		return nil, err
	}
	var match *scoreRow
	for i := range rows {
		if rows[i].score == id {
			match = &rows[i]
		}
	}
	if match == nil {
		return nil, ErrNotFound
	}
	return match, nil
}

// Exists reports whether any record with the given id is present. Only
// backend failures are errors; absence is (false, nil).
func (r *Remote) Exists(ctx context.Context, table string, id int32) (bool, error) {
	_, err := r.findRow(ctx, table, id)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the participant(s) whose score equals id, then verifies the
// removal with a follow-up lookup. Verification failures are retried with
// exponential backoff; after the retries are exhausted the participant is
// reset across all objectives as a broader fallback. If the row still shows
// up, DeleteUnverifiedError carries the last observed payload for
// diagnostics.
func (r *Remote) Delete(ctx context.Context, table string, id int32) error {
	row, err := r.findRow(ctx, table, id)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}

	attempts := 0
	op := func() error {
		attempts++
		if _, err := r.run(ctx, fmt.Sprintf(cmdPlayersReset, Escape(row.participant), table)); err != nil {
			if IsUnavailable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		current, err := r.findRow(ctx, table, id)
		if err == nil {
			row = current
			return fmt.Errorf("record %s[%d] still present after reset", table, id)
		}
		if IsNotFound(err) {
			return nil
		}
		return err
	}

	err = backoff.Retry(op, backoff.WithContext(newDeleteBackoff(), ctx))
	if err == nil {
		return nil
	}
	if IsUnavailable(err) {
		return err
	}

	// Broader fallback: reset this participant in every objective, then
	// verify one final time.
	if _, err := r.run(ctx, fmt.Sprintf(cmdPlayersResetAll, Escape(row.participant))); err != nil {
		log.Printf("[WARN] scorestore: broad reset fallback failed for %s[%d]: %v", table, id, err)
	}
	current, err := r.findRow(ctx, table, id)
	if err != nil && IsNotFound(err) {
		return nil
	}
	last := row.participant
	if current != nil {
		last = current.participant
	}
	return &DeleteUnverifiedError{Table: table, ID: id, Attempts: attempts, LastState: last}
}

// List enumerates every record in the table. Rows with unparseable payloads
// are logged, skipped, and reported in Skipped; they never fail the whole
// listing.
func (r *Remote) List(ctx context.Context, table string) (*ListResult, error) {
	rows, err := r.listRows(ctx, table)
	if err != nil {
		return nil, err
	}

	result := &ListResult{Items: []Record{}}
	for _, row := range rows {
		payload, err := Decode(row.participant)
		if err != nil {
			log.Printf("[WARN] scorestore: skipping unparseable row in %s (score %d): %v", table, row.score, err)
			result.Skipped = append(result.Skipped, row.score)
			continue
		}
		result.Items = append(result.Items, Record{ID: row.score, Payload: payload})
	}
	result.Count = len(result.Items)
	return result, nil
}

// Clear removes every record in the table by dropping and recreating the
// backing objective, which also reclaims orphans left behind by overwrites.
func (r *Remote) Clear(ctx context.Context, table string) error {
	if _, err := r.run(ctx, fmt.Sprintf(cmdObjectivesRemove, table)); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.knownTables, table)
	r.mu.Unlock()

	addRes, err := r.run(ctx, fmt.Sprintf(cmdObjectivesAdd, table, table))
	if err != nil {
		return err
	}
	if !addRes.Succeeded() {
		return &TableAccessError{Table: table, Err: errors.New(addRes.StatusMessage)}
	}

	r.mu.Lock()
	r.knownTables[table] = true
	r.mu.Unlock()
	return nil
}
