package repos

import (
	"context"
	"fmt"

	"github.com/keepsakehq/keepsake-go/internal/models"
)

// Reactions is the repository for typed reactions on memories. Reactions
// toggle rather than update: reacting again with the same type removes the
// reaction and queues the delete leg.
type Reactions struct {
	c collection[models.Reaction, *models.Reaction]
}

func NewReactions(d Deps) *Reactions {
	return &Reactions{c: collection[models.Reaction, *models.Reaction]{
		deps:  d,
		table: models.EntityReaction,
		touch: func(rc *models.Reaction, now int64) {
			if rc.CreatedAt == 0 {
				rc.CreatedAt = now
			}
		},
		// Reaction endpoints nest under the memory; the replay needs the
		// memory id to build the path.
		deletePayload: func(rc *models.Reaction) map[string]any {
			return map[string]any{"memoryId": rc.MemoryID}
		},
	}}
}

// ListByMemory returns all reactions on one memory, offline-first.
func (r *Reactions) ListByMemory(ctx context.Context, memoryID string) ([]models.Reaction, error) {
	return r.c.getAll(ctx, byScope, memoryID, fmt.Sprintf("/api/memories/%s/reactions", memoryID))
}

// Toggle adds the reaction if the user hasn't reacted with this type yet,
// and removes it otherwise. Returns true when a reaction was created.
func (r *Reactions) Toggle(_ context.Context, memoryID, userID, reactionType string) (bool, error) {
	existing, err := r.c.deps.Store.ListByScope(r.c.table, memoryID)
	if err != nil {
		return false, err
	}
	for _, rec := range existing {
		rc, err := r.c.decode(rec)
		if err != nil {
			return false, err
		}
		if rc.UserID == userID && rc.Type == reactionType {
			return false, r.c.remove(rc.ID)
		}
	}
	rc := &models.Reaction{MemoryID: memoryID, UserID: userID, Type: reactionType}
	return true, r.c.create(rc)
}
