package repos

import (
	"context"

	"github.com/keepsakehq/keepsake-go/internal/models"
)

// Notifications caches server-generated notifications. The only replayed
// mutations are the read marker and deletion; creation happens server-side
// and arrives via refresh.
type Notifications struct {
	c collection[models.Notification, *models.Notification]
}

func NewNotifications(d Deps) *Notifications {
	return &Notifications{c: collection[models.Notification, *models.Notification]{
		deps:  d,
		table: models.EntityNotification,
	}}
}

func (r *Notifications) GetAll(ctx context.Context, userID string) ([]models.Notification, error) {
	return r.c.getAll(ctx, byOwner, userID, "/api/notifications")
}

// MarkRead flips the read flag. Re-marking an already-read notification is
// a no-op and enqueues nothing.
func (r *Notifications) MarkRead(_ context.Context, id string) (*models.Notification, error) {
	return r.c.update(id, func(n *models.Notification) { n.Read = true })
}

func (r *Notifications) Delete(_ context.Context, id string) error {
	return r.c.remove(id)
}

// Evict prunes read notifications created before the cutoff from the local
// cache only. Nothing is enqueued; the server copy is untouched.
func (r *Notifications) Evict(userID string, before int64) (int, error) {
	recs, err := r.c.deps.Store.ListByOwner(r.c.table, userID)
	if err != nil {
		return 0, err
	}
	evicted := 0
	for _, rec := range recs {
		n, err := r.c.decode(rec)
		if err != nil {
			return evicted, err
		}
		if n.Read && n.CreatedAt < before {
			if err := r.c.deps.Store.Delete(r.c.table, n.ID); err != nil {
				return evicted, err
			}
			evicted++
		}
	}
	return evicted, nil
}
