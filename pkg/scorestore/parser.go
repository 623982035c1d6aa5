package scorestore

import (
	"regexp"
	"strconv"
	"strings"
)

// Parsing of human-readable scoreboard console output.
//
// The remote host has no structured query API; row data comes back as the
// text a player would see in chat. Two output shapes are known:
//
//	(a) a header line "Selected N objects for PARTICIPANT:" followed by one
//	    detail line per tracked objective, "- NAME: score (table)"
//	(b) a legacy single-line form "PARTICIPANT: score"
//
// The participant name is reported once in the header and then referenced by
// several detail lines, so the parser carries it as state across lines. Both
// matchers are tried in sequence on every line.

var (
	// Header of shape (a). The participant may itself contain colons (it
	// is a JSON payload), so the trailing colon is optional and stripped.
	scoreHeaderRe = regexp.MustCompile(`(?i)^selected\s+(\d+)\s+objects?\s+for\s+(.+?):?\s*$`)

	// Detail line of shape (a): "- NAME: score (table)". The
	// parenthesized table name is the authoritative table identity for
	// the row.
	scoreDetailRe = regexp.MustCompile(`^-\s*(.+?):\s*(-?\d+)\s*\((.+?)\)\s*$`)

	// Legacy shape (b): "PARTICIPANT: score". Greedy match keeps colons
	// inside the JSON participant intact.
	scoreLegacyRe = regexp.MustCompile(`^(.+):\s*(-?\d+)\s*$`)

	// Objective entry in "objectives list" output: "- name: ...". Used
	// for the anchored whole-token existence check.
	objectiveLineRe = regexp.MustCompile(`^-\s*(\S+):`)
)

// scoreRow is one participant/score pair extracted from console output,
// together with the table name embedded in its line (empty for legacy lines,
// which carry none).
type scoreRow struct {
	participant string
	score       int32
	table       string
}

// parseScoreOutput extracts all rows belonging to the requested table from a
// "players list" response.
//
// When scoped is true the output came from a table-scoped command, so legacy
// lines with no embedded table name are attributed to the requested table.
// When false (the unscoped fallback listing every table), each row must name
// its table in its own text; rows from other tables, and legacy rows that
// cannot be validated, are silently skipped rather than merged in.
func parseScoreOutput(output, table string, scoped bool) []scoreRow {
	var rows []scoreRow
	lastParticipant := ""

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := scoreHeaderRe.FindStringSubmatch(line); m != nil {
			lastParticipant = m[2]
			continue
		}

		if m := scoreDetailRe.FindStringSubmatch(line); m != nil {
			if lastParticipant == "" {
				continue
			}
			if m[3] != table {
				continue
			}
			score, err := strconv.ParseInt(m[2], 10, 32)
			if err != nil {
				continue
			}
			rows = append(rows, scoreRow{participant: lastParticipant, score: int32(score), table: m[3]})
			continue
		}

		if m := scoreLegacyRe.FindStringSubmatch(line); m != nil {
			if !scoped {
				continue
			}
			score, err := strconv.ParseInt(m[2], 10, 32)
			if err != nil {
				continue
			}
			rows = append(rows, scoreRow{participant: strings.TrimSpace(m[1]), score: int32(score), table: table})
		}
	}
	return rows
}

// containsObjective reports whether an "objectives list" output names the
// table. The match is anchored to a line-start token: a naive substring scan
// would false-positive on table names that are prefixes of others.
func containsObjective(output, table string) bool {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if m := objectiveLineRe.FindStringSubmatch(line); m != nil {
			if m[1] == table {
				return true
			}
		}
	}
	return false
}
