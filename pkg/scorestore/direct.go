package scorestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/cenkalti/backoff/v4"
)

// Direct implements Store against an in-process Scoreboard capability. It is
// used when the store lives in the same process as the command surface, and
// by tests, which pair it with the in-memory scoreboard.
type Direct struct {
	board Scoreboard
}

// NewDirect creates a Direct store over the given scoreboard capability.
func NewDirect(board Scoreboard) *Direct {
	return &Direct{board: board}
}

// objective returns the backing objective for a table, creating it when
// create is true. Absence without create maps to ErrNotFound.
func (d *Direct) objective(table string, create bool) (Objective, error) {
	obj, err := d.board.GetObjective(table)
	if err == nil {
		return obj, nil
	}
	if !IsNotFound(err) {
		return nil, &TableAccessError{Table: table, Err: err}
	}
	if !create {
		return nil, ErrNotFound
	}
	obj, err = d.board.AddObjective(table, table)
	if err != nil {
		return nil, &TableAccessError{Table: table, Err: err}
	}
	return obj, nil
}

// Set writes or overwrites the record at id, creating the table on first
// write. Overwrite is delete-then-recreate: there is no in-place update that
// preserves a payload, so any prior participant holding this id is removed
// before the new one is added.
func (d *Direct) Set(ctx context.Context, table string, id int32, payload any) error {
	encoded, err := Serialize(payload)
	if err != nil {
		return err
	}

	obj, err := d.objective(table, true)
	if err != nil {
		return err
	}

	// Remove any prior participant holding this id.
	participants, err := obj.Participants()
	if err != nil {
		return &TableAccessError{Table: table, Err: err}
	}
	for _, p := range participants {
		score, err := obj.Score(p)
		if err != nil {
			continue
		}
		if score == id && p != encoded {
			if err := obj.RemoveParticipant(p); err != nil {
				log.Printf("[WARN] scorestore: failed to remove old participant for %s[%d]: %v", table, id, err)
			}
		}
	}

	if err := obj.SetScore(encoded, id); err != nil {
		return &TableAccessError{Table: table, Err: err}
	}
	return nil
}

// Get returns the payload of the record whose score equals id. When several
// participants hold the same score, the last one scanned wins.
func (d *Direct) Get(ctx context.Context, table string, id int32) (json.RawMessage, error) {
	raw, err := d.fetchRaw(table, id)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// fetchRaw returns the undecoded participant name for id, or ErrNotFound.
func (d *Direct) fetchRaw(table string, id int32) (string, error) {
	obj, err := d.objective(table, false)
	if err != nil {
		if IsNotFound(err) {
			return "", ErrNotFound
		}
		return "", err
	}

	participants, err := obj.Participants()
	if err != nil {
		return "", &TableAccessError{Table: table, Err: err}
	}

	found := false
	var last string
	for _, p := range participants {
		score, err := obj.Score(p)
		if err != nil {
			continue
		}
		if score == id {
			last = p
			found = true
		}
	}
	if !found {
		return "", ErrNotFound
	}
	return last, nil
}

// Exists reports whether any record with the given id is present. Unlike
// Get it does not decode the payload, so a corrupt row still counts as
// existing.
func (d *Direct) Exists(ctx context.Context, table string, id int32) (bool, error) {
	_, err := d.fetchRaw(table, id)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the record(s) whose score equals id and verifies the
// removal. The removal is retried with exponential backoff; if verification
// still finds the row, a final per-participant removal is attempted before
// reporting DeleteUnverifiedError with the last observed payload attached.
func (d *Direct) Delete(ctx context.Context, table string, id int32) error {
	obj, err := d.objective(table, false)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}

	attempts := 0
	op := func() error {
		attempts++
		if err := d.removeByID(obj, id); err != nil {
			return err
		}
		raw, err := d.fetchRaw(table, id)
		if err == nil {
			return fmt.Errorf("record %s[%d] still present (%q)", table, id, raw)
		}
		if IsNotFound(err) {
			return nil
		}
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(newDeleteBackoff(), ctx)); err == nil {
		return nil
	}

	// Broad fallback: remove every participant still holding this id,
	// ignoring scan errors, then verify one last time.
	if err := d.removeByID(obj, id); err != nil {
		log.Printf("[WARN] scorestore: broad removal fallback failed for %s[%d]: %v", table, id, err)
	}
	raw, err := d.fetchRaw(table, id)
	if err != nil && IsNotFound(err) {
		return nil
	}
	return &DeleteUnverifiedError{Table: table, ID: id, Attempts: attempts, LastState: raw}
}

// removeByID removes every participant whose score equals id.
func (d *Direct) removeByID(obj Objective, id int32) error {
	participants, err := obj.Participants()
	if err != nil {
		return err
	}
	for _, p := range participants {
		score, err := obj.Score(p)
		if err != nil {
			continue
		}
		if score == id {
			if err := obj.RemoveParticipant(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// List enumerates every record in the table. Rows whose payload does not
// decode are logged, skipped, and reported in Skipped; an empty or absent
// table yields an empty result, not an error.
func (d *Direct) List(ctx context.Context, table string) (*ListResult, error) {
	result := &ListResult{Items: []Record{}}

	obj, err := d.objective(table, false)
	if err != nil {
		if IsNotFound(err) {
			return result, nil
		}
		return nil, err
	}

	participants, err := obj.Participants()
	if err != nil {
		return nil, &TableAccessError{Table: table, Err: err}
	}

	for _, p := range participants {
		score, err := obj.Score(p)
		if err != nil {
			continue
		}
		payload, err := Decode(p)
		if err != nil {
			log.Printf("[WARN] scorestore: skipping unparseable row in %s (score %d): %v", table, score, err)
			result.Skipped = append(result.Skipped, score)
			continue
		}
		result.Items = append(result.Items, Record{ID: score, Payload: payload})
	}
	result.Count = len(result.Items)
	return result, nil
}

// Clear removes every record in the table. Clearing an absent table is a
// no-op.
func (d *Direct) Clear(ctx context.Context, table string) error {
	obj, err := d.objective(table, false)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}

	participants, err := obj.Participants()
	if err != nil {
		return &TableAccessError{Table: table, Err: err}
	}
	for _, p := range participants {
		if err := obj.RemoveParticipant(p); err != nil {
			return &TableAccessError{Table: table, Err: err}
		}
	}
	return nil
}
