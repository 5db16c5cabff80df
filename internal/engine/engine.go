// Package engine owns the operation queue: it drains queued mutations in
// insertion order, replays them against the remote API, and retries bounded
// per entry.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/keepsakehq/keepsake-go/internal/gateway"
	"github.com/keepsakehq/keepsake-go/internal/models"
	"github.com/keepsakehq/keepsake-go/internal/netmon"
	"github.com/keepsakehq/keepsake-go/internal/store"
)

const (
	defaultBatchSize    = 10
	defaultRetryCeiling = 3
	defaultRedrive      = time.Second
	defaultRetrySpacing = time.Second
)

// Engine drains the durable operation queue. One instance per store;
// construct it in the composition root and inject it where needed.
type Engine struct {
	store *store.Store
	gw    *gateway.Gateway
	mon   *netmon.Monitor
	log   zerolog.Logger

	batchSize    int
	retryCeiling int
	redrive      time.Duration
	retrySpacing time.Duration

	// onDropped observes entries removed at the retry ceiling. The drop
	// itself always happens; the hook only surfaces it.
	onDropped func(models.QueueEntry)

	inProgress atomic.Bool
	dispatch   map[dispatchKey]remoteCall
	// runCtx is read by goroutines NotifyEnqueued spawns while Start may
	// still be writing it, so access goes through the atomic pointer.
	runCtx atomic.Pointer[context.Context]
	unsub  func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithRedriveDelay sets the pause before a follow-up drain pass when the
// queue is still non-empty.
func WithRedriveDelay(d time.Duration) Option {
	return func(e *Engine) { e.redrive = d }
}

// WithRetrySpacing sets the base spacing before a failed entry becomes
// eligible again. Zero makes failed entries immediately eligible (tests).
func WithRetrySpacing(d time.Duration) Option {
	return func(e *Engine) { e.retrySpacing = d }
}

// WithOnDropped registers an observer for entries dropped at the retry
// ceiling.
func WithOnDropped(fn func(models.QueueEntry)) Option {
	return func(e *Engine) { e.onDropped = fn }
}

// New constructs an Engine over the given store, gateway and monitor.
func New(st *store.Store, gw *gateway.Gateway, mon *netmon.Monitor, opts ...Option) *Engine {
	e := &Engine{
		store:        st,
		gw:           gw,
		mon:          mon,
		log:          zerolog.Nop(),
		batchSize:    defaultBatchSize,
		retryCeiling: defaultRetryCeiling,
		redrive:      defaultRedrive,
		retrySpacing: defaultRetrySpacing,
	}
	background := context.Background()
	e.runCtx.Store(&background)
	for _, opt := range opts {
		opt(e)
	}
	e.dispatch = e.buildDispatch()
	return e
}

// Start wires the engine to connectivity events and, when already online,
// kicks off the startup drain.
func (e *Engine) Start(ctx context.Context) {
	e.runCtx.Store(&ctx)
	e.unsub = e.mon.Subscribe(func(s netmon.Status) {
		if s == netmon.StatusOnline {
			e.ProcessQueue(ctx)
		}
	})
	if e.mon.Online() {
		e.ProcessQueue(ctx)
	}
}

// Stop detaches the engine from connectivity events.
func (e *Engine) Stop() {
	if e.unsub != nil {
		e.unsub()
		e.unsub = nil
	}
}

// NotifyEnqueued wakes the engine after a repository enqueued an operation.
// The drain runs in the background so optimistic writes return immediately.
func (e *Engine) NotifyEnqueued() {
	if e.mon.Online() {
		go e.ProcessQueue(*e.runCtx.Load())
	}
}

// ProcessQueue drains one batch of queue entries in insertion order. It is
// single-flight: a call that finds a drain already running returns at once.
// Drain triggers are not queued, only drain work is.
func (e *Engine) ProcessQueue(ctx context.Context) {
	if !e.inProgress.CompareAndSwap(false, true) {
		return
	}
	if !e.mon.Online() {
		e.inProgress.Store(false)
		return
	}

	batch, err := e.store.NextBatch(e.batchSize, time.Now().Unix())
	if err != nil {
		e.log.Error().Err(err).Msg("failed to fetch queue batch")
		e.inProgress.Store(false)
		return
	}

	// Sequential on purpose: entries for one entity form an ordered
	// operation history. Batch entries were loaded before any create in it
	// drained, so server-assigned ids are carried forward in-memory as well
	// as rewritten in the store.
	renames := map[string]string{}
	for _, entry := range batch {
		if ctx.Err() != nil {
			break
		}
		applyRenames(&entry, renames)
		if tempID, serverID := e.replay(ctx, entry); tempID != "" {
			renames[tempID] = serverID
		}
	}

	e.inProgress.Store(false)

	depth, err := e.store.QueueDepth()
	if err != nil {
		e.log.Error().Err(err).Msg("failed to read queue depth")
		return
	}
	if depth > 0 && e.mon.Online() && ctx.Err() == nil {
		time.AfterFunc(e.redrive, func() { e.ProcessQueue(ctx) })
	}
}

// applyRenames substitutes ids reconciled earlier in the same drain pass.
func applyRenames(entry *models.QueueEntry, renames map[string]string) {
	for from, to := range renames {
		entry.EntityID = strings.ReplaceAll(entry.EntityID, from, to)
		entry.Data = bytes.ReplaceAll(entry.Data, []byte(from), []byte(to))
	}
}

// replay executes one queue entry. Failures are contained per entry; a
// failing entry never blocks the rest of the batch. For a drained create
// whose response carries a different server id, the temp/server id pair is
// returned so later entries in the pass can be rewritten.
func (e *Engine) replay(ctx context.Context, entry models.QueueEntry) (tempID, serverID string) {
	call, ok := e.dispatch[dispatchKey{entry.Entity, entry.Operation}]
	if !ok {
		e.log.Error().
			Str("entity", entry.Entity).
			Str("operation", string(entry.Operation)).
			Int64("entry_id", entry.ID).
			Msg("no dispatch for queue entry, dropping")
		e.drop(entry)
		return "", ""
	}

	resp, err := call(ctx, &entry)
	if err != nil {
		e.fail(entry, err)
		return "", ""
	}

	if entry.Operation == models.OpCreate {
		tempID, serverID = e.reconcileCreate(entry, resp)
	}
	if err := e.store.DeleteEntry(entry.ID); err != nil {
		e.log.Error().Err(err).Int64("entry_id", entry.ID).Msg("failed to delete replayed entry")
		return tempID, serverID
	}
	if entry.Operation != models.OpDelete {
		id := entry.EntityID
		if serverID != "" {
			id = serverID
		}
		e.confirm(entry.Entity, id)
	}
	opsReplayedTotal.WithLabelValues(entry.Entity, string(entry.Operation)).Inc()
	e.log.Debug().
		Str("entity", entry.Entity).
		Str("operation", string(entry.Operation)).
		Str("record_id", entry.EntityID).
		Msg("replayed queued operation")
	return tempID, serverID
}

// fail records a failed attempt, dropping the entry once it reaches the
// retry ceiling.
func (e *Engine) fail(entry models.QueueEntry, cause error) {
	entry.RetryCount++
	entry.LastError = cause.Error()
	opsFailedTotal.WithLabelValues(entry.Entity, string(entry.Operation)).Inc()

	if entry.RetryCount >= e.retryCeiling {
		e.log.Error().
			Str("entity", entry.Entity).
			Str("operation", string(entry.Operation)).
			Str("record_id", entry.EntityID).
			Int("retries", entry.RetryCount).
			Str("last_error", entry.LastError).
			Msg("queue entry exceeded retry ceiling, dropping permanently")
		e.drop(entry)
		return
	}

	next := time.Now().Add(e.retryDelay(entry.RetryCount)).Unix()
	if err := e.store.MarkEntryFailed(entry.ID, entry.RetryCount, entry.LastError, next); err != nil {
		e.log.Error().Err(err).Int64("entry_id", entry.ID).Msg("failed to record replay failure")
	}
}

// confirm flips a record to synced once its last queued operation drained.
// A record with further queued mutations stays unconfirmed so the refresh
// merge guard keeps protecting the local edits.
func (e *Engine) confirm(entity, id string) {
	n, err := e.store.PendingFor(id)
	if err != nil {
		e.log.Error().Err(err).Str("record_id", id).Msg("failed to count pending entries")
		return
	}
	if n > 0 {
		return
	}
	if err := e.store.MarkSynced(entity, id, time.Now().Unix()); err != nil {
		e.log.Error().Err(err).Str("record_id", id).Msg("failed to confirm record")
	}
}

func (e *Engine) drop(entry models.QueueEntry) {
	if err := e.store.DeleteEntry(entry.ID); err != nil {
		e.log.Error().Err(err).Int64("entry_id", entry.ID).Msg("failed to drop queue entry")
		return
	}
	opsDroppedTotal.WithLabelValues(entry.Entity, string(entry.Operation)).Inc()
	if e.onDropped != nil {
		e.onDropped(entry)
	}
}

// retryDelay spaces the nth retry exponentially from the configured base.
func (e *Engine) retryDelay(retryCount int) time.Duration {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.retrySpacing
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0
	// The constructor seeds the current interval before the overrides above;
	// Reset re-seeds it from the configured one.
	bo.Reset()

	d := bo.NextBackOff()
	for i := 1; i < retryCount; i++ {
		d = bo.NextBackOff()
	}
	return d
}

// reconcileCreate rewrites the temp client id to the server-assigned one
// when they differ, including queue entries still referencing the temp id.
func (e *Engine) reconcileCreate(entry models.QueueEntry, resp json.RawMessage) (tempID, serverID string) {
	var body struct {
		ID string `json:"id"`
	}
	if len(resp) == 0 || json.Unmarshal(resp, &body) != nil || body.ID == "" || body.ID == entry.EntityID {
		return "", ""
	}
	if err := e.store.ReconcileCreate(entry.Entity, entry.EntityID, body.ID); err != nil {
		e.log.Error().Err(err).
			Str("entity", entry.Entity).
			Str("temp_id", entry.EntityID).
			Str("server_id", body.ID).
			Msg("failed to reconcile server-assigned id")
		return "", ""
	}
	return entry.EntityID, body.ID
}
