package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepsakehq/keepsake-go/internal/gateway"
	"github.com/keepsakehq/keepsake-go/internal/models"
	"github.com/keepsakehq/keepsake-go/internal/netmon"
	"github.com/keepsakehq/keepsake-go/internal/store"
)

// recordingHandler captures every request and answers from respond.
type recordingHandler struct {
	mu       sync.Mutex
	requests []string // "METHOD path"
	respond  func(w http.ResponseWriter, r *http.Request)
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.requests = append(h.requests, r.Method+" "+r.URL.Path)
	h.mu.Unlock()
	if h.respond != nil {
		h.respond(w, r)
		return
	}
	_, _ = w.Write([]byte(`{}`))
}

func (h *recordingHandler) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.requests...)
}

type fixture struct {
	store   *store.Store
	monitor *netmon.Monitor
	handler *recordingHandler
	gateway *gateway.Gateway
	engine  *Engine
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	st, err := store.Open(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h := &recordingHandler{}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	mon := netmon.NewMonitor(zerolog.Nop())
	mon.SetStatus(netmon.StatusOnline)

	// A long redrive keeps background passes out of deterministic tests;
	// zero retry spacing makes failed entries immediately eligible again.
	base := []Option{WithRedriveDelay(time.Hour), WithRetrySpacing(0)}
	gw := gateway.New(srv.URL, "")
	eng := New(st, gw, mon, append(base, opts...)...)

	return &fixture{store: st, monitor: mon, handler: h, gateway: gw, engine: eng}
}

func enqueue(t *testing.T, st *store.Store, op models.Operation, entity, entityID string, data string) *models.QueueEntry {
	t.Helper()
	e := &models.QueueEntry{Operation: op, Entity: entity, EntityID: entityID, Data: []byte(data)}
	require.NoError(t, st.Enqueue(e))
	return e
}

func TestProcessQueueDrainsInOrder(t *testing.T) {
	f := newFixture(t)

	enqueue(t, f.store, models.OpCreate, models.EntityMemory, "m1", `{"title":"first"}`)
	enqueue(t, f.store, models.OpUpdate, models.EntityMemory, "m1", `{"title":"second"}`)
	enqueue(t, f.store, models.OpDelete, models.EntityMemory, "m1", `{}`)

	f.engine.ProcessQueue(context.Background())

	assert.Equal(t, []string{
		"POST /api/memories",
		"PATCH /api/memories/m1",
		"DELETE /api/memories/m1",
	}, f.handler.seen(), "replay must follow insertion order")

	depth, err := f.store.QueueDepth()
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestProcessQueueOfflineIsNoop(t *testing.T) {
	f := newFixture(t)
	f.monitor.SetStatus(netmon.StatusOffline)

	enqueue(t, f.store, models.OpCreate, models.EntityMemory, "m1", `{"title":"x"}`)
	f.engine.ProcessQueue(context.Background())

	assert.Empty(t, f.handler.seen())
	depth, _ := f.store.QueueDepth()
	assert.Equal(t, 1, depth)
}

func TestThirdFailureDropsEntry(t *testing.T) {
	var dropped []models.QueueEntry
	f := newFixture(t, WithOnDropped(func(e models.QueueEntry) { dropped = append(dropped, e) }))
	f.handler.respond = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}

	enqueue(t, f.store, models.OpCreate, models.EntityMemory, "m1", `{"title":"x"}`)

	ctx := context.Background()
	f.engine.ProcessQueue(ctx) // attempt 1
	depth, _ := f.store.QueueDepth()
	assert.Equal(t, 1, depth, "entry survives the first failure")

	f.engine.ProcessQueue(ctx) // attempt 2
	depth, _ = f.store.QueueDepth()
	assert.Equal(t, 1, depth, "entry survives the second failure")

	f.engine.ProcessQueue(ctx) // attempt 3: ceiling reached
	depth, _ = f.store.QueueDepth()
	assert.Zero(t, depth, "the third failure drops the entry")

	require.Len(t, dropped, 1)
	assert.Equal(t, "m1", dropped[0].EntityID)
	assert.Equal(t, 3, dropped[0].RetryCount)
	assert.NotEmpty(t, dropped[0].LastError)
	assert.Len(t, f.handler.seen(), 3)
}

func TestRetryDelayUsesConfiguredSpacing(t *testing.T) {
	eng := New(nil, nil, nil, WithRetrySpacing(2*time.Second))
	assert.Equal(t, 2*time.Second, eng.retryDelay(1))
	assert.Equal(t, 4*time.Second, eng.retryDelay(2))
	assert.Equal(t, 8*time.Second, eng.retryDelay(3))

	zero := New(nil, nil, nil, WithRetrySpacing(0))
	assert.Equal(t, time.Duration(0), zero.retryDelay(1), "zero spacing means no deferral")
}

func TestFailedEntryImmediatelyEligibleWithZeroSpacing(t *testing.T) {
	f := newFixture(t) // zero retry spacing
	f.handler.respond = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}

	enqueue(t, f.store, models.OpUpdate, models.EntityMemory, "m1", `{"title":"x"}`)
	f.engine.ProcessQueue(context.Background())

	batch, err := f.store.NextBatch(10, time.Now().Unix())
	require.NoError(t, err)
	require.Len(t, batch, 1, "zero spacing must not defer the failed entry")
	assert.Equal(t, 1, batch[0].RetryCount)
}

func TestFailureDoesNotBlockLaterEntries(t *testing.T) {
	f := newFixture(t)
	f.handler.respond = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/memories/bad" {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}

	enqueue(t, f.store, models.OpUpdate, models.EntityMemory, "bad", `{"title":"x"}`)
	enqueue(t, f.store, models.OpUpdate, models.EntityMemory, "good", `{"title":"y"}`)

	f.engine.ProcessQueue(context.Background())

	assert.Equal(t, []string{
		"PATCH /api/memories/bad",
		"PATCH /api/memories/good",
	}, f.handler.seen())

	batch, err := f.store.NextBatch(10, time.Now().Unix())
	require.NoError(t, err)
	require.Len(t, batch, 1, "only the failed entry remains")
	assert.Equal(t, "bad", batch[0].EntityID)
	assert.Equal(t, 1, batch[0].RetryCount)
}

func TestReconnectDrainIsSingleFlight(t *testing.T) {
	f := newFixture(t)
	f.engine.Start(context.Background())
	defer f.engine.Stop()

	enqueue(t, f.store, models.OpCreate, models.EntityMemory, "m1", `{"title":"x"}`)
	enqueue(t, f.store, models.OpCreate, models.EntityMemory, "m2", `{"title":"y"}`)

	// Rapid offline/online flapping must not duplicate remote calls for
	// entries already drained.
	f.monitor.SetStatus(netmon.StatusOffline)
	f.monitor.SetStatus(netmon.StatusOnline)
	f.monitor.SetStatus(netmon.StatusOffline)
	f.monitor.SetStatus(netmon.StatusOnline)

	assert.Len(t, f.handler.seen(), 2, "each entry is replayed exactly once")
	depth, _ := f.store.QueueDepth()
	assert.Zero(t, depth)
}

func TestCreateReconcilesServerID(t *testing.T) {
	f := newFixture(t)
	f.handler.respond = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"srv-9"}`))
	}

	const tempID = "3f1a2b3c-0000-4000-8000-00000000beef"
	require.NoError(t, f.store.Put(models.EntityMemory, store.Record{
		ID: tempID, OwnerID: "u1", Status: models.StatusOffline,
		Data: []byte(`{"id":"` + tempID + `","title":"Trip"}`),
	}))
	enqueue(t, f.store, models.OpCreate, models.EntityMemory, tempID, `{"clientId":"`+tempID+`","title":"Trip"}`)
	// A comment queued against the temp memory id before the create drained.
	enqueue(t, f.store, models.OpCreate, models.EntityComment, "c1", `{"memoryId":"`+tempID+`","content":"nice"}`)

	f.engine.ProcessQueue(context.Background())

	rec, err := f.store.Get(models.EntityMemory, "srv-9")
	require.NoError(t, err, "local record must be rekeyed to the server id")
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Data, &body))
	assert.Equal(t, "srv-9", body["id"])

	// The comment create that drained after the memory create must already
	// carry the server id in its path.
	assert.Equal(t, []string{
		"POST /api/memories",
		"POST /api/memories/srv-9/comments",
	}, f.handler.seen())
}

func TestDispatchPaths(t *testing.T) {
	f := newFixture(t)

	enqueue(t, f.store, models.OpCreate, models.EntityComment, "c1", `{"memoryId":"m1","content":"hi"}`)
	enqueue(t, f.store, models.OpDelete, models.EntityReaction, "r1", `{"memoryId":"m1"}`)
	enqueue(t, f.store, models.OpUpdate, models.EntityNotification, "n1", `{"read":true}`)
	enqueue(t, f.store, models.OpUpdate, models.EntityUser, "u1", `{"theme":"dark"}`)
	enqueue(t, f.store, models.OpCreate, models.EntityTag, "t1", `{"name":"beach"}`)
	enqueue(t, f.store, models.OpDelete, models.EntityStory, "s1", `{}`)
	enqueue(t, f.store, models.OpUpdate, models.EntityFamily, "f1", `{"name":"Nan"}`)

	f.engine.ProcessQueue(context.Background())

	assert.Equal(t, []string{
		"POST /api/memories/m1/comments",
		"DELETE /api/memories/m1/reactions/r1",
		"PATCH /api/notifications/n1",
		"PATCH /api/users/me/settings",
		"POST /api/tags",
		"DELETE /api/stories/s1",
		"PATCH /api/family/f1",
	}, f.handler.seen())

	depth, _ := f.store.QueueDepth()
	assert.Zero(t, depth)
}

func TestUnreplayablePairIsDropped(t *testing.T) {
	var dropped []models.QueueEntry
	f := newFixture(t, WithOnDropped(func(e models.QueueEntry) { dropped = append(dropped, e) }))

	// Notifications are never created client-side; such an entry has no
	// dispatch target.
	enqueue(t, f.store, models.OpCreate, models.EntityNotification, "n1", `{}`)
	f.engine.ProcessQueue(context.Background())

	assert.Empty(t, f.handler.seen())
	depth, _ := f.store.QueueDepth()
	assert.Zero(t, depth)
	assert.Len(t, dropped, 1)
}

func TestRedriveDrainsBeyondOneBatch(t *testing.T) {
	f := newFixture(t, WithRedriveDelay(5*time.Millisecond))

	for i := 0; i < 25; i++ {
		enqueue(t, f.store, models.OpCreate, models.EntityTag, "", `{"name":"tag"}`)
	}

	f.engine.ProcessQueue(context.Background())

	require.Eventually(t, func() bool {
		depth, err := f.store.QueueDepth()
		return err == nil && depth == 0
	}, 2*time.Second, 10*time.Millisecond, "follow-up passes drain the backlog")
	assert.Len(t, f.handler.seen(), 25)
}

func TestNotifyEnqueuedTriggersDrain(t *testing.T) {
	f := newFixture(t)
	f.engine.Start(context.Background())
	defer f.engine.Stop()

	enqueue(t, f.store, models.OpCreate, models.EntityMemory, "m1", `{"title":"x"}`)
	f.engine.NotifyEnqueued()

	require.Eventually(t, func() bool {
		depth, err := f.store.QueueDepth()
		return err == nil && depth == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotifyEnqueuedBeforeStart(t *testing.T) {
	f := newFixture(t)

	// Repositories may enqueue before the engine is started; the wake-up
	// must still drain against a usable context.
	enqueue(t, f.store, models.OpCreate, models.EntityMemory, "m1", `{"title":"x"}`)
	f.engine.NotifyEnqueued()

	require.Eventually(t, func() bool {
		depth, err := f.store.QueueDepth()
		return err == nil && depth == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartDrainsWhenAlreadyOnline(t *testing.T) {
	f := newFixture(t)

	enqueue(t, f.store, models.OpCreate, models.EntityMemory, "m1", `{"title":"x"}`)
	f.engine.Start(context.Background())
	defer f.engine.Stop()

	depth, _ := f.store.QueueDepth()
	assert.Zero(t, depth, "startup while online drains immediately")
	assert.Len(t, f.handler.seen(), 1)
}
