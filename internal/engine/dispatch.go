package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/keepsakehq/keepsake-go/internal/errs"
	"github.com/keepsakehq/keepsake-go/internal/models"
)

// dispatchKey routes a queue entry to its remote call.
type dispatchKey struct {
	entity string
	op     models.Operation
}

type remoteCall func(ctx context.Context, entry *models.QueueEntry) (json.RawMessage, error)

// buildDispatch maps every replayable (entity, operation) pair to the API
// call that applies it. Pairs absent here are not replayable; the engine
// drops their entries instead of retrying forever.
func (e *Engine) buildDispatch() map[dispatchKey]remoteCall {
	g := e.gw
	d := map[dispatchKey]remoteCall{}

	d[dispatchKey{models.EntityMemory, models.OpCreate}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		return g.Post(ctx, "/api/memories", q.Data)
	}
	d[dispatchKey{models.EntityMemory, models.OpUpdate}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		return g.Patch(ctx, "/api/memories/"+q.EntityID, q.Data)
	}
	d[dispatchKey{models.EntityMemory, models.OpDelete}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		return g.Delete(ctx, "/api/memories/"+q.EntityID)
	}

	// Comments and reactions are created under their parent memory.
	d[dispatchKey{models.EntityComment, models.OpCreate}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		memoryID, err := payloadField(q.Data, "memoryId")
		if err != nil {
			return nil, err
		}
		return g.Post(ctx, fmt.Sprintf("/api/memories/%s/comments", memoryID), q.Data)
	}
	d[dispatchKey{models.EntityComment, models.OpUpdate}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		return g.Patch(ctx, "/api/comments/"+q.EntityID, q.Data)
	}
	d[dispatchKey{models.EntityComment, models.OpDelete}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		return g.Delete(ctx, "/api/comments/"+q.EntityID)
	}

	d[dispatchKey{models.EntityReaction, models.OpCreate}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		memoryID, err := payloadField(q.Data, "memoryId")
		if err != nil {
			return nil, err
		}
		return g.Post(ctx, fmt.Sprintf("/api/memories/%s/reactions", memoryID), q.Data)
	}
	d[dispatchKey{models.EntityReaction, models.OpDelete}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		memoryID, err := payloadField(q.Data, "memoryId")
		if err != nil {
			return nil, err
		}
		return g.Delete(ctx, fmt.Sprintf("/api/memories/%s/reactions/%s", memoryID, q.EntityID))
	}

	d[dispatchKey{models.EntityFamily, models.OpCreate}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		return g.Post(ctx, "/api/family", q.Data)
	}
	d[dispatchKey{models.EntityFamily, models.OpUpdate}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		return g.Patch(ctx, "/api/family/"+q.EntityID, q.Data)
	}
	d[dispatchKey{models.EntityFamily, models.OpDelete}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		return g.Delete(ctx, "/api/family/"+q.EntityID)
	}

	// Notifications are created server-side; only the read marker and
	// deletion are replayed.
	d[dispatchKey{models.EntityNotification, models.OpUpdate}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		return g.Patch(ctx, "/api/notifications/"+q.EntityID, q.Data)
	}
	d[dispatchKey{models.EntityNotification, models.OpDelete}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		return g.Delete(ctx, "/api/notifications/"+q.EntityID)
	}

	d[dispatchKey{models.EntityTag, models.OpCreate}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		return g.Post(ctx, "/api/tags", q.Data)
	}
	d[dispatchKey{models.EntityTag, models.OpUpdate}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		return g.Patch(ctx, "/api/tags/"+q.EntityID, q.Data)
	}
	d[dispatchKey{models.EntityTag, models.OpDelete}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		return g.Delete(ctx, "/api/tags/"+q.EntityID)
	}

	d[dispatchKey{models.EntityStory, models.OpCreate}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		return g.Post(ctx, "/api/stories", q.Data)
	}
	d[dispatchKey{models.EntityStory, models.OpUpdate}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		return g.Patch(ctx, "/api/stories/"+q.EntityID, q.Data)
	}
	d[dispatchKey{models.EntityStory, models.OpDelete}] = func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		return g.Delete(ctx, "/api/stories/"+q.EntityID)
	}

	// Settings live under the authenticated user; both the initial write
	// and later edits patch the same endpoint.
	settingsPatch := func(ctx context.Context, q *models.QueueEntry) (json.RawMessage, error) {
		return g.Patch(ctx, "/api/users/me/settings", q.Data)
	}
	d[dispatchKey{models.EntityUser, models.OpCreate}] = settingsPatch
	d[dispatchKey{models.EntityUser, models.OpUpdate}] = settingsPatch

	return d
}

// payloadField extracts a string field from a queued payload.
func payloadField(data json.RawMessage, field string) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return "", errs.Wrap(errs.CodeInvalid, "decode queue payload", err)
	}
	s, ok := m[field].(string)
	if !ok || s == "" {
		return "", errs.New(errs.CodeInvalid, "queue payload missing "+field)
	}
	return s, nil
}
