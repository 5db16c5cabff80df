package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepsakehq/keepsake-go/internal/models"
	"github.com/keepsakehq/keepsake-go/internal/netmon"
	"github.com/keepsakehq/keepsake-go/internal/repos"
)

// fakeRemote acts as the entity API for a full create-offline-then-reconnect
// round trip: it accepts the replayed create and serves it back on refresh.
type fakeRemote struct {
	mu       sync.Mutex
	memories []models.Memory
}

func (f *fakeRemote) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/memories":
		var payload struct {
			ClientID string `json:"clientId"`
			Title    string `json:"title"`
			Content  string `json:"content"`
			Date     string `json:"date"`
			UserID   string `json:"userId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		m := models.Memory{
			ID:      "srv-" + payload.ClientID[:8],
			UserID:  payload.UserID,
			Title:   payload.Title,
			Content: payload.Content,
			Date:    payload.Date,
		}
		f.memories = append(f.memories, m)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": m.ID})
	case r.Method == http.MethodGet && r.URL.Path == "/api/memories":
		_ = json.NewEncoder(w).Encode(f.memories)
	default:
		http.NotFound(w, r)
	}
}

// End to end: a memory created offline is queued, drained on reconnect with
// its server id reconciled, and flipped to synced by the next refresh.
func TestOfflineCreateReconnectRefresh(t *testing.T) {
	remote := &fakeRemote{}
	f := newFixture(t)
	f.handler.respond = remote.handle
	f.monitor.SetStatus(netmon.StatusOffline)

	memories := repos.NewMemories(repos.Deps{
		Store:    f.store,
		Gateway:  f.gateway,
		Monitor:  f.monitor,
		Notifier: f.engine,
		Log:      f.engine.log,
	})
	ctx := context.Background()

	m := &models.Memory{UserID: "u1", Title: "Trip", Content: "beach day", Date: "2024-01-01"}
	require.NoError(t, memories.Create(ctx, m))
	assert.Equal(t, models.StatusOffline, m.SyncStatus)

	all, err := memories.GetAll(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].SyncStatus.Unconfirmed())

	f.engine.Start(ctx)
	defer f.engine.Stop()

	// Reconnect: the monitor event drains the queue synchronously.
	f.monitor.SetStatus(netmon.StatusOnline)

	depth, err := f.store.QueueDepth()
	require.NoError(t, err)
	assert.Zero(t, depth, "the queued create drains on reconnect")

	// The next refresh serves the reconciled, now-synced record.
	all, err = memories.GetAll(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "srv-"+m.ID[:8], all[0].ID)
	assert.Equal(t, "Trip", all[0].Title)
	assert.Equal(t, models.StatusSynced, all[0].SyncStatus)
}
