package repos

import (
	"context"

	"github.com/keepsakehq/keepsake-go/internal/models"
)

// Tags is the repository for memory tags.
type Tags struct {
	c collection[models.Tag, *models.Tag]
}

func NewTags(d Deps) *Tags {
	return &Tags{c: collection[models.Tag, *models.Tag]{
		deps:  d,
		table: models.EntityTag,
		touch: func(t *models.Tag, now int64) {
			if t.CreatedAt == 0 {
				t.CreatedAt = now
			}
			t.UpdatedAt = now
		},
	}}
}

func (r *Tags) GetAll(ctx context.Context, userID string) ([]models.Tag, error) {
	return r.c.getAll(ctx, byOwner, userID, "/api/tags")
}

func (r *Tags) Create(_ context.Context, t *models.Tag) error {
	return r.c.create(t)
}

func (r *Tags) Update(_ context.Context, id string, mutate func(*models.Tag)) (*models.Tag, error) {
	return r.c.update(id, mutate)
}

func (r *Tags) Delete(_ context.Context, id string) error {
	return r.c.remove(id)
}
