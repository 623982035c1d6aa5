package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shulkerdb/shulker/pkg/scorestore"
)

// Envelope wraps one message carried through the bridge. It is stored as a
// record payload; the record's numeric id is derived from (ID, Timestamp) by
// Key, which is how the bridge later finds the row to delete after
// processing.
type Envelope struct {
	// ID is globally unique per logical message. Caller-assigned, or
	// generated by NewEnvelope. Duplicate delivery suppression keys on it.
	ID string `json:"id"`

	// Timestamp is the creation time in Unix milliseconds. Messages
	// within one poll batch are delivered in Timestamp order.
	Timestamp int64 `json:"timestamp"`

	// Data is the carried message. Opaque to the bridge; callers narrow
	// it to their own message types.
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope wraps a JSON-compatible value in an Envelope. An empty id is
// replaced with a generated one (millisecond timestamp plus a random
// suffix).
func NewEnvelope(data any, id string) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal message data: %w", err)
	}
	now := time.Now().UnixMilli()
	if id == "" {
		id = fmt.Sprintf("%d_%s", now, uuid.New().String()[:8])
	}
	return &Envelope{ID: id, Timestamp: now, Data: raw}, nil
}

// Validate checks that the envelope is deliverable. Envelopes failing
// validation are treated as corrupt rows: deleted outright, never handed to
// handlers.
func (e *Envelope) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("envelope has no id")
	}
	if e.Timestamp <= 0 {
		return fmt.Errorf("envelope has no timestamp")
	}
	return nil
}

// Key derives the store row id for this envelope.
func (e *Envelope) Key() int32 {
	return scorestore.EncodeKey(fmt.Sprintf("%s_%d", e.ID, e.Timestamp))
}
