// Package bridge carries JSON messages between two address spaces that
// cannot call each other directly, using two scorestore tables as a shared
// mailbox.
//
// One side writes its outbox table and polls its inbox table; the peer runs
// the same protocol with the table roles swapped, so the two configurations
// mirror each other. Delivery is at-least-once with duplicate suppression by
// message id: a row survives on the backend until a verified delete
// succeeds, and a bounded processed-id set keeps redelivered rows away from
// handlers. A slower, independent cleanup sweep removes processed and stale
// rows so the mailbox tables do not grow without bound.
package bridge

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/shulkerdb/shulker/pkg/scorestore"
)

// Handler consumes one received envelope. Returning a non-nil envelope sends
// it back through the bridge as a reply; returning an error only logs (the
// message is already marked processed and will not be redelivered).
type Handler func(Envelope) (*Envelope, error)

// Timing defaults and floors. The poll floor stops a misconfigured bridge
// from hammering the command backend.
const (
	DefaultPollInterval    = time.Second
	MinPollInterval        = 10 * time.Millisecond
	DefaultCleanupInterval = 30 * time.Second
	DefaultRetention       = 5 * time.Minute
	DefaultProcessedCap    = 1000
)

// Config tunes one side of the bridge. The peer runs with OutboxTable and
// InboxTable swapped.
type Config struct {
	// OutboxTable is written by Send; the peer polls it.
	OutboxTable string

	// InboxTable is polled for incoming envelopes; the peer writes it.
	InboxTable string

	// PollInterval is the inbox polling period. Values below
	// MinPollInterval are raised to it; zero means DefaultPollInterval.
	PollInterval time.Duration

	// CleanupInterval is the period of the independent cleanup sweep.
	CleanupInterval time.Duration

	// Retention is the age beyond which unprocessed rows are swept.
	Retention time.Duration

	// ProcessedCap bounds the processed-id set.
	ProcessedCap int

	// HandlerTimeout bounds a single handler invocation. Zero disables
	// the bound, in which case a hung handler stalls the poll loop.
	HandlerTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.OutboxTable == "" {
		c.OutboxTable = "bridge_outbox"
	}
	if c.InboxTable == "" {
		c.InboxTable = "bridge_inbox"
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollInterval < MinPollInterval {
		c.PollInterval = MinPollInterval
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.Retention == 0 {
		c.Retention = DefaultRetention
	}
	if c.ProcessedCap == 0 {
		c.ProcessedCap = DefaultProcessedCap
	}
	return c
}

// Stats is a snapshot of bridge counters.
type Stats struct {
	Sent              int64 `json:"sent"`
	Received          int64 `json:"received"`
	DuplicatesDropped int64 `json:"duplicates_dropped"`
	CorruptDropped    int64 `json:"corrupt_dropped"`
	DeleteFailures    int64 `json:"delete_failures"`
	CleanupRuns       int64 `json:"cleanup_runs"`
	ProcessedIDs      int   `json:"processed_ids"`
	Listening         bool  `json:"listening"`
}

// Bridge is one side of the mailbox protocol. Construct with New and share
// the single instance by reference; it owns no storage logic of its own,
// everything below it goes through the injected Store.
type Bridge struct {
	store scorestore.Store
	cfg   Config

	mu           sync.Mutex
	handlers     []Handler
	processed    *processedSet
	knownDeleted map[int32]bool
	isProcessing bool
	isCleaning   bool
	listening    bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	stats        Stats
}

// New creates a bridge over the given store. The bridge does not poll until
// StartListening is called; Send works immediately.
func New(store scorestore.Store, cfg Config) *Bridge {
	cfg = cfg.withDefaults()
	return &Bridge{
		store:        store,
		cfg:          cfg,
		processed:    newProcessedSet(cfg.ProcessedCap),
		knownDeleted: make(map[int32]bool),
	}
}

// OnReceive registers a handler for incoming envelopes. Handlers run
// sequentially, in registration order, for every message of a poll batch.
func (b *Bridge) OnReceive(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Send wraps data in an envelope and writes it to the outbox. An empty id
// gets a generated one. Send never fails loudly: any backend problem is
// logged and reported as false, and normal operation resumes once the
// backend is reachable again.
func (b *Bridge) Send(ctx context.Context, data any, id string) bool {
	env, err := NewEnvelope(data, id)
	if err != nil {
		log.Printf("[ERROR] bridge: cannot build envelope: %v", err)
		return false
	}
	return b.sendEnvelope(ctx, env)
}

// sendEnvelope writes a fully formed envelope to the outbox. Used by Send
// and for handler replies, which arrive with their own id and timestamp.
func (b *Bridge) sendEnvelope(ctx context.Context, env *Envelope) bool {
	if err := env.Validate(); err != nil {
		log.Printf("[ERROR] bridge: refusing to send invalid envelope: %v", err)
		return false
	}
	if err := b.store.Set(ctx, b.cfg.OutboxTable, env.Key(), env); err != nil {
		if scorestore.IsUnavailable(err) {
			log.Printf("[DEBUG] bridge: backend unavailable, dropping send of %s", env.ID)
		} else {
			log.Printf("[ERROR] bridge: failed to send %s: %v", env.ID, err)
		}
		return false
	}
	b.mu.Lock()
	b.stats.Sent++
	b.mu.Unlock()
	return true
}

// StartListening begins periodic inbox polling plus the independent cleanup
// sweep. Idempotent: calling it on a listening bridge does nothing.
func (b *Bridge) StartListening() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listening {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.listening = true
	b.stats.Listening = true

	b.wg.Add(1)
	go b.run(ctx)
	log.Printf("[INFO] bridge: listening on %q every %v (cleanup every %v)",
		b.cfg.InboxTable, b.cfg.PollInterval, b.cfg.CleanupInterval)
}

// StopListening stops the timers. An in-flight poll is not aborted, it
// simply is not rescheduled; StopListening returns once it has drained.
func (b *Bridge) StopListening() {
	b.mu.Lock()
	if !b.listening {
		b.mu.Unlock()
		return
	}
	b.listening = false
	b.stats.Listening = false
	cancel := b.cancel
	b.mu.Unlock()

	cancel()
	b.wg.Wait()
	log.Printf("[INFO] bridge: stopped listening on %q", b.cfg.InboxTable)
}

// run drives both timers until the context is cancelled. Poll and cleanup
// also guard each other with busy flags because Cleanup is publicly callable
// and must never race a poll against the same table.
func (b *Bridge) run(ctx context.Context) {
	defer b.wg.Done()

	pollTicker := time.NewTicker(b.cfg.PollInterval)
	defer pollTicker.Stop()
	cleanupTicker := time.NewTicker(b.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			b.poll(ctx)
		case <-cleanupTicker.C:
			b.Cleanup(ctx, b.cfg.Retention)
		}
	}
}

// beginWork flips the requested busy flag if neither poll nor cleanup is
// currently touching the inbox. Returns false when the cycle must be
// skipped.
func (b *Bridge) beginWork(cleanup bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isProcessing || b.isCleaning {
		return false
	}
	if cleanup {
		b.isCleaning = true
	} else {
		b.isProcessing = true
	}
	return true
}

func (b *Bridge) endWork(cleanup bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cleanup {
		b.isCleaning = false
	} else {
		b.isProcessing = false
	}
}

// inboxItem pairs a decoded envelope with the store row it came from.
type inboxItem struct {
	env   Envelope
	rowID int32
}

// poll runs one inbox cycle: list, drop corrupt and duplicate rows, deliver
// the survivors in timestamp order, then delete each delivered row.
//
// Ordering holds within the batch only; a message sent after the listing
// started may be observed in this cycle or the next.
func (b *Bridge) poll(ctx context.Context) {
	if !b.beginWork(false) {
		return
	}
	defer b.endWork(false)

	listing, err := b.store.List(ctx, b.cfg.InboxTable)
	if err != nil {
		if scorestore.IsUnavailable(err) {
			log.Printf("[DEBUG] bridge: backend unavailable, skipping poll")
		} else {
			log.Printf("[WARN] bridge: inbox poll failed: %v", err)
		}
		return
	}

	// Rows the store could not decode at all never reach Items; reclaim
	// them here so they cannot rot in the backend.
	for _, rowID := range listing.Skipped {
		b.mu.Lock()
		gone := b.knownDeleted[rowID]
		b.mu.Unlock()
		if gone {
			continue
		}
		log.Printf("[WARN] bridge: deleting corrupt inbox row %d", rowID)
		b.deleteRow(ctx, rowID)
		b.mu.Lock()
		b.stats.CorruptDropped++
		b.mu.Unlock()
	}

	var batch []inboxItem
	for _, rec := range listing.Items {
		b.mu.Lock()
		gone := b.knownDeleted[rec.ID]
		b.mu.Unlock()
		if gone {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(rec.Payload, &env); err != nil || env.Validate() != nil {
			// Corrupt: delete outright, never deliver.
			log.Printf("[WARN] bridge: deleting corrupt inbox row %d", rec.ID)
			b.deleteRow(ctx, rec.ID)
			b.mu.Lock()
			b.stats.CorruptDropped++
			b.mu.Unlock()
			continue
		}

		b.mu.Lock()
		dup := b.processed.Contains(env.ID)
		b.mu.Unlock()
		if dup {
			// Already delivered once; drop the copy without redelivery.
			b.deleteRow(ctx, rec.ID)
			b.mu.Lock()
			b.stats.DuplicatesDropped++
			b.mu.Unlock()
			continue
		}

		batch = append(batch, inboxItem{env: env, rowID: rec.ID})
	}

	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].env.Timestamp < batch[j].env.Timestamp
	})

	for _, item := range batch {
		// A second copy with the same id can land in the same batch;
		// it is a duplicate too, detected by id like any other.
		b.mu.Lock()
		if b.processed.Contains(item.env.ID) {
			b.stats.DuplicatesDropped++
			b.mu.Unlock()
			b.deleteRow(ctx, item.rowID)
			continue
		}
		// Mark processed before the handlers run, so a panicking or
		// failing handler cannot cause redelivery.
		b.processed.Add(item.env.ID)
		b.stats.Received++
		handlers := make([]Handler, len(b.handlers))
		copy(handlers, b.handlers)
		b.mu.Unlock()

		for _, h := range handlers {
			reply, err := b.invoke(h, item.env)
			if err != nil {
				log.Printf("[WARN] bridge: handler failed for %s: %v", item.env.ID, err)
				continue
			}
			if reply != nil {
				b.sendEnvelope(ctx, reply)
			}
		}

		b.deleteRow(ctx, item.rowID)
	}
}

// invoke runs one handler, bounded by HandlerTimeout when configured. A
// timed-out handler is abandoned, not killed; its eventual reply is
// discarded.
func (b *Bridge) invoke(h Handler, env Envelope) (*Envelope, error) {
	if b.cfg.HandlerTimeout <= 0 {
		return h(env)
	}

	type outcome struct {
		reply *Envelope
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		reply, err := h(env)
		done <- outcome{reply, err}
	}()

	select {
	case o := <-done:
		return o.reply, o.err
	case <-time.After(b.cfg.HandlerTimeout):
		log.Printf("[WARN] bridge: handler exceeded %v for %s, abandoning", b.cfg.HandlerTimeout, env.ID)
		return nil, nil
	}
}

// deleteRow removes a processed row with the store's verified delete. When
// even that fails the row id is marked locally deleted so the poll loop
// keeps moving; the backend-side orphan is left for the cleanup sweep or a
// table clear.
func (b *Bridge) deleteRow(ctx context.Context, rowID int32) {
	err := b.store.Delete(ctx, b.cfg.InboxTable, rowID)
	if err == nil {
		return
	}
	log.Printf("[WARN] bridge: delete of inbox row %d failed, marking locally deleted: %v", rowID, err)
	b.mu.Lock()
	b.knownDeleted[rowID] = true
	b.stats.DeleteFailures++
	b.mu.Unlock()
}

// Cleanup sweeps the inbox once: rows already processed or older than
// olderThan are deleted, the processed-id set is trimmed to its cap, and
// locally-deleted markers for rows the backend no longer reports are
// dropped. Never runs concurrently with a poll cycle.
func (b *Bridge) Cleanup(ctx context.Context, olderThan time.Duration) {
	if !b.beginWork(true) {
		return
	}
	defer b.endWork(true)

	if olderThan <= 0 {
		olderThan = b.cfg.Retention
	}

	listing, err := b.store.List(ctx, b.cfg.InboxTable)
	if err != nil {
		if !scorestore.IsUnavailable(err) {
			log.Printf("[WARN] bridge: cleanup listing failed: %v", err)
		}
		return
	}

	cutoff := time.Now().UnixMilli() - olderThan.Milliseconds()
	present := make(map[int32]bool, len(listing.Items))
	removed := 0
	for _, rowID := range listing.Skipped {
		present[rowID] = true
		b.deleteRow(ctx, rowID)
		removed++
	}
	for _, rec := range listing.Items {
		present[rec.ID] = true

		var env Envelope
		if err := json.Unmarshal(rec.Payload, &env); err != nil || env.Validate() != nil {
			b.deleteRow(ctx, rec.ID)
			removed++
			continue
		}

		b.mu.Lock()
		stale := env.Timestamp < cutoff || b.processed.Contains(env.ID)
		b.mu.Unlock()
		if stale {
			b.deleteRow(ctx, rec.ID)
			removed++
		}
	}

	b.mu.Lock()
	b.processed.Trim()
	for rowID := range b.knownDeleted {
		if !present[rowID] {
			delete(b.knownDeleted, rowID)
		}
	}
	b.stats.CleanupRuns++
	b.mu.Unlock()

	if removed > 0 {
		log.Printf("[INFO] bridge: cleanup removed %d inbox rows", removed)
	}
}

// OutboxData returns every decodable envelope currently in the outbox.
func (b *Bridge) OutboxData(ctx context.Context) ([]Envelope, error) {
	return b.tableData(ctx, b.cfg.OutboxTable)
}

// InboxData returns every decodable envelope currently in the inbox.
func (b *Bridge) InboxData(ctx context.Context) ([]Envelope, error) {
	return b.tableData(ctx, b.cfg.InboxTable)
}

func (b *Bridge) tableData(ctx context.Context, table string) ([]Envelope, error) {
	listing, err := b.store.List(ctx, table)
	if err != nil {
		return nil, err
	}
	envs := make([]Envelope, 0, len(listing.Items))
	for _, rec := range listing.Items {
		var env Envelope
		if err := json.Unmarshal(rec.Payload, &env); err != nil {
			continue
		}
		envs = append(envs, env)
	}
	sort.SliceStable(envs, func(i, j int) bool { return envs[i].Timestamp < envs[j].Timestamp })
	return envs, nil
}

// GetStats returns a snapshot of the bridge counters.
func (b *Bridge) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	stats := b.stats
	stats.ProcessedIDs = b.processed.Len()
	return stats
}
