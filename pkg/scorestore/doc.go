// Package scorestore treats a scoreboard as a JSON key-value database.
//
// # Overview
//
// The scoreboard primitive only stores integer scores keyed by opaque string
// "participant" names. scorestore inverts that relationship: a logical table
// is backed 1:1 by a scoreboard objective, a stored record is a participant
// whose name is the JSON-serialized payload, and the participant's score is
// the record's integer row id. On top of this the package provides an
// ordinary key-value surface: Set, Get, Exists, Delete, List and Clear.
//
// # Backends
//
// Two interchangeable backends implement the Store interface:
//
//   - Direct runs against an in-process Scoreboard capability (an objective
//     API available in the same process as the command surface).
//   - Remote drives a text command console through an Executor capability and
//     parses the human-readable command output back into rows. It is used
//     when the scoreboard's host process is only reachable over a remote
//     text protocol.
//
// Everything fragile about driving a human-output console as a database
// (escaping artifacts, fuzzy line formats, version-dependent command shapes)
// is confined to the Remote backend; nothing above the Store interface sees
// any of it, so collaborators and tests can run against Direct with an
// in-memory scoreboard.
//
// # Consistency
//
// The underlying store is eventually consistent and offers no transactions.
// A Set followed by a Get from a different actor may race. The Remote
// backend additionally leaks an orphaned participant when Set overwrites an
// existing row id (the old participant keeps its score until Clear drops the
// objective); Get and List filter by score so the orphan is never surfaced
// incorrectly, but the space is only reclaimed by Clear.
//
// # Errors
//
// Every operation returns an explicit error from a small taxonomy:
// ErrBackendUnavailable, ErrNotFound, TableAccessError, EncodingTooLargeError,
// ParseError and DeleteUnverifiedError. Use IsNotFound to distinguish an
// absent record from a backend failure. Corrupt rows never fail a List; they
// are logged and skipped.
package scorestore
