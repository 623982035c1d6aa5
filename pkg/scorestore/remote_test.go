package scorestore

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConsole emulates the host's scoreboard command console: it keeps real
// objective state and answers commands with the same human-readable text
// shapes the host produces. Knobs simulate observed host misbehavior.
type fakeConsole struct {
	mu sync.Mutex

	unavailable      bool
	scopedListBroken bool // scoped "players list <table>" errors out
	legacyFormat     bool // scoped listings use the "PARTICIPANT: score" shape
	failResets       int  // number of table-scoped resets to silently drop
	failBroadResets  bool // broad resets are dropped too

	commands   []string
	objectives map[string]map[string]int32 // table -> participant -> score
}

func newFakeConsole() *fakeConsole {
	return &fakeConsole{objectives: make(map[string]map[string]int32)}
}

func (f *fakeConsole) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unavailable
}

func (f *fakeConsole) commandCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.commands {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeConsole) executed(command string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.commands {
		if c == command {
			return true
		}
	}
	return false
}

// inject stores a participant directly, bypassing the command shell. Used to
// plant corrupt rows and escaping artifacts.
func (f *fakeConsole) inject(table, participant string, score int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objectives[table] == nil {
		f.objectives[table] = make(map[string]int32)
	}
	f.objectives[table][participant] = score
}

var (
	fakeSetRe        = regexp.MustCompile(`^scoreboard players set "(.*)" (\S+) (-?\d+)$`)
	fakeResetTableRe = regexp.MustCompile(`^scoreboard players reset "(.*)" (\S+)$`)
	fakeResetAllRe   = regexp.MustCompile(`^scoreboard players reset "(.*)"$`)
	fakeAddRe        = regexp.MustCompile(`^scoreboard objectives add (\S+) dummy (\S+)$`)
	fakeRemoveRe     = regexp.MustCompile(`^scoreboard objectives remove (\S+)$`)
	fakeListScopedRe = regexp.MustCompile(`^scoreboard players list (\S+)$`)
)

func (f *fakeConsole) Execute(ctx context.Context, command string) (*CommandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, command)

	// SuccessCount is never populated: some host versions omit it even on
	// success, and the store must cope.
	ok := func(msg string) (*CommandResult, error) {
		return &CommandResult{StatusMessage: msg}, nil
	}

	switch {
	case command == cmdObjectivesList:
		lines := []string{fmt.Sprintf("There are %d objective(s) on the scoreboard:", len(f.objectives))}
		names := make([]string, 0, len(f.objectives))
		for name := range f.objectives {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("- %s: displays as '%s'", name, name))
		}
		return ok(strings.Join(lines, "\n"))

	case fakeAddRe.MatchString(command):
		name := fakeAddRe.FindStringSubmatch(command)[1]
		if f.objectives[name] == nil {
			f.objectives[name] = make(map[string]int32)
		}
		return ok(fmt.Sprintf("Added new objective '%s'", name))

	case fakeRemoveRe.MatchString(command):
		name := fakeRemoveRe.FindStringSubmatch(command)[1]
		delete(f.objectives, name)
		return ok(fmt.Sprintf("Removed objective '%s'", name))

	case fakeSetRe.MatchString(command):
		m := fakeSetRe.FindStringSubmatch(command)
		participant, table := Unescape(m[1]), m[2]
		score, _ := strconv.ParseInt(m[3], 10, 32)
		if f.objectives[table] == nil {
			return ok(fmt.Sprintf("No objective '%s' exists", table))
		}
		f.objectives[table][participant] = int32(score)
		return ok(fmt.Sprintf("Set score of '%s' to %d", table, score))

	case command == cmdPlayersListAll:
		var lines []string
		names := make([]string, 0, len(f.objectives))
		for name := range f.objectives {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for participant, score := range f.objectives[name] {
				lines = append(lines, fmt.Sprintf("Selected 1 objects for %s:", participant))
				lines = append(lines, fmt.Sprintf("- %s: %d (%s)", name, score, name))
			}
		}
		if len(lines) == 0 {
			return ok("There are no tracked players")
		}
		return ok(strings.Join(lines, "\n"))

	case fakeListScopedRe.MatchString(command):
		table := fakeListScopedRe.FindStringSubmatch(command)[1]
		if f.scopedListBroken {
			return ok("Unknown command: scoreboard players list")
		}
		scores := f.objectives[table]
		if len(scores) == 0 {
			return ok("There are no tracked players")
		}
		var lines []string
		for participant, score := range scores {
			if f.legacyFormat {
				lines = append(lines, fmt.Sprintf("%s: %d", participant, score))
			} else {
				lines = append(lines, fmt.Sprintf("Selected 1 objects for %s:", participant))
				lines = append(lines, fmt.Sprintf("- %s: %d (%s)", table, score, table))
			}
		}
		return ok(strings.Join(lines, "\n"))

	case fakeResetTableRe.MatchString(command):
		m := fakeResetTableRe.FindStringSubmatch(command)
		participant, table := Unescape(m[1]), m[2]
		if f.failResets > 0 {
			f.failResets--
			return ok(fmt.Sprintf("Reset scores of '%s'", participant))
		}
		delete(f.objectives[table], participant)
		return ok(fmt.Sprintf("Reset scores of '%s'", participant))

	case fakeResetAllRe.MatchString(command):
		participant := Unescape(fakeResetAllRe.FindStringSubmatch(command)[1])
		if f.failBroadResets {
			return ok(fmt.Sprintf("Reset scores of '%s'", participant))
		}
		for _, scores := range f.objectives {
			delete(scores, participant)
		}
		return ok(fmt.Sprintf("Reset scores of '%s'", participant))

	default:
		return ok("Unknown command: " + command)
	}
}

func setupRemote(t *testing.T) (*Remote, *fakeConsole) {
	t.Helper()
	console := newFakeConsole()
	return NewRemote(console), console
}

func TestRemoteSetGet(t *testing.T) {
	store, console := setupRemote(t)
	ctx := context.Background()

	t.Run("round trip including embedded quotes", func(t *testing.T) {
		err := store.Set(ctx, "players", 5, map[string]any{"say": `"hello"`})
		require.NoError(t, err)

		payload, err := store.Get(ctx, "players", 5)
		require.NoError(t, err)
		assert.JSONEq(t, `{"say":"\"hello\""}`, string(payload))
	})

	t.Run("objective existence is checked once per table", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "players", 6, "A"))
		require.NoError(t, store.Set(ctx, "players", 7, "B"))
		assert.Equal(t, 1, console.commandCount(cmdObjectivesList))
	})

	t.Run("get of absent id is not found", func(t *testing.T) {
		_, err := store.Get(ctx, "players", 999)
		assert.True(t, IsNotFound(err))
	})

	t.Run("get from absent table is not found", func(t *testing.T) {
		_, err := store.Get(ctx, "ghosts", 1)
		assert.True(t, IsNotFound(err))
	})
}

func TestRemoteObjectiveTokenMatch(t *testing.T) {
	store, console := setupRemote(t)
	ctx := context.Background()

	// "players" is a prefix of an existing objective name; the existence
	// check must not be fooled into skipping creation.
	console.inject("players_backup", `"x"`, 1)
	require.NoError(t, store.Set(ctx, "players", 1, "A"))

	assert.Equal(t, 1, console.commandCount("scoreboard objectives add players "))
}

func TestRemoteOverwrite(t *testing.T) {
	store, console := setupRemote(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "players", 5, "A"))
	require.NoError(t, store.Set(ctx, "players", 5, "B"))

	// The old participant is orphaned, not reclaimed; both rows hold
	// score 5 and Get must still return a score-5 payload.
	payload, err := store.Get(ctx, "players", 5)
	require.NoError(t, err)
	assert.Contains(t, []string{`"A"`, `"B"`}, string(payload))

	console.mu.Lock()
	orphans := len(console.objectives["players"])
	console.mu.Unlock()
	assert.Equal(t, 2, orphans)

	t.Run("clear reclaims orphans", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx, "players"))
		require.NoError(t, store.Set(ctx, "players", 5, "C"))

		payload, err := store.Get(ctx, "players", 5)
		require.NoError(t, err)
		assert.Equal(t, `"C"`, string(payload))
	})
}

func TestRemoteListFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back when the scoped listing errors", func(t *testing.T) {
		store, console := setupRemote(t)
		console.scopedListBroken = true

		require.NoError(t, store.Set(ctx, "players", 1, "A"))
		require.NoError(t, store.Set(ctx, "inventory", 2, "B"))

		result, err := store.List(ctx, "players")
		require.NoError(t, err)
		require.Equal(t, 1, result.Count)
		assert.Equal(t, int32(1), result.Items[0].ID)
		assert.GreaterOrEqual(t, console.commandCount(cmdPlayersListAll), 1)
	})

	t.Run("legacy output shape is understood", func(t *testing.T) {
		store, console := setupRemote(t)
		console.legacyFormat = true

		require.NoError(t, store.Set(ctx, "players", 3, map[string]any{"n": "alex"}))

		result, err := store.List(ctx, "players")
		require.NoError(t, err)
		require.Equal(t, 1, result.Count)
		assert.JSONEq(t, `{"n":"alex"}`, string(result.Items[0].Payload))
	})
}

func TestRemoteListResilience(t *testing.T) {
	store, console := setupRemote(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "players", 1, "ok"))
	console.inject("players", "this is not json", 99)
	// A participant that kept its shell escaping artifacts must still
	// decode.
	console.inject("players", `{\"name\":\"alex\"}`, 7)

	result, err := store.List(ctx, "players")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, []int32{99}, result.Skipped)

	byID := make(map[int32]string)
	for _, rec := range result.Items {
		byID[rec.ID] = string(rec.Payload)
	}
	assert.JSONEq(t, `{"name":"alex"}`, byID[7])
	assert.NotContains(t, byID, int32(99))
}

func TestRemoteDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("delete is verified", func(t *testing.T) {
		store, _ := setupRemote(t)
		require.NoError(t, store.Set(ctx, "players", 5, "A"))

		require.NoError(t, store.Delete(ctx, "players", 5))

		exists, err := store.Exists(ctx, "players", 5)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("dropped reset is retried", func(t *testing.T) {
		store, console := setupRemote(t)
		require.NoError(t, store.Set(ctx, "players", 5, "A"))
		console.mu.Lock()
		console.failResets = 1
		console.mu.Unlock()

		require.NoError(t, store.Delete(ctx, "players", 5))

		exists, err := store.Exists(ctx, "players", 5)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("broad reset fallback after exhausted retries", func(t *testing.T) {
		store, console := setupRemote(t)
		require.NoError(t, store.Set(ctx, "players", 5, "A"))
		console.mu.Lock()
		console.failResets = 100
		console.mu.Unlock()

		require.NoError(t, store.Delete(ctx, "players", 5))
		assert.True(t, console.executed(`scoreboard players reset "\"A\""`))

		exists, err := store.Exists(ctx, "players", 5)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("unverifiable delete carries diagnostics", func(t *testing.T) {
		store, console := setupRemote(t)
		require.NoError(t, store.Set(ctx, "players", 5, "A"))
		console.mu.Lock()
		console.failResets = 100
		console.failBroadResets = true
		console.mu.Unlock()

		err := store.Delete(ctx, "players", 5)

		var unverified *DeleteUnverifiedError
		require.ErrorAs(t, err, &unverified)
		assert.Equal(t, "players", unverified.Table)
		assert.Equal(t, int32(5), unverified.ID)
		assert.Equal(t, `"A"`, unverified.LastState)
	})

	t.Run("deleting an absent record succeeds", func(t *testing.T) {
		store, _ := setupRemote(t)
		assert.NoError(t, store.Delete(ctx, "players", 42))
	})
}

func TestRemoteUnavailable(t *testing.T) {
	store, console := setupRemote(t)
	console.unavailable = true
	ctx := context.Background()

	assert.True(t, IsUnavailable(store.Set(ctx, "players", 1, "A")))

	_, err := store.Get(ctx, "players", 1)
	assert.True(t, IsUnavailable(err))

	_, err = store.List(ctx, "players")
	assert.True(t, IsUnavailable(err))
}
