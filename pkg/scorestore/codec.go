package scorestore

import (
	"encoding/json"
	"strings"
)

// MaxPayloadLen is the maximum length, in bytes, of a serialized payload.
// Participant names on the scoreboard host top out at the 16-bit string
// length limit; anything longer is rejected outright rather than truncated.
const MaxPayloadLen = 32767

// Serialize converts a JSON-compatible value into the string form stored as
// a participant name. Deterministic key order is not required - payloads are
// always parsed back, never compared as strings.
//
// Returns an EncodingTooLargeError if the serialized form exceeds
// MaxPayloadLen.
func Serialize(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if len(data) > MaxPayloadLen {
		return "", &EncodingTooLargeError{Size: len(data), Max: MaxPayloadLen}
	}
	return string(data), nil
}

// Decode parses a stored participant name back into a JSON value.
//
// Payloads that travelled through the text command shell may carry
// double-quote escaping artifacts (`\"` instead of `"`). Decode first tries
// the string as-is, then retries after unescaping; only if both attempts
// fail does it return a ParseError. Decode never panics.
func Decode(s string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(s)
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}

	unescaped := Unescape(trimmed)
	if json.Valid([]byte(unescaped)) {
		return json.RawMessage(unescaped), nil
	}

	// Run a real unmarshal on the unescaped form to surface the underlying
	// syntax error in the ParseError.
	var v any
	err := json.Unmarshal([]byte(unescaped), &v)
	return nil, &ParseError{Payload: s, Err: err}
}

// DecodeInto parses a stored participant name into the provided destination.
func DecodeInto(s string, v any) error {
	raw, err := Decode(s)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &ParseError{Payload: s, Err: err}
	}
	return nil
}

// Unescape strips the double-quote escaping the command shell introduces
// when a payload travels inside a command string.
func Unescape(s string) string {
	return strings.ReplaceAll(s, `\"`, `"`)
}

// Escape prepares a payload for embedding inside a quoted command argument.
func Escape(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
