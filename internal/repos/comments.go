package repos

import (
	"context"
	"fmt"

	"github.com/keepsakehq/keepsake-go/internal/models"
)

// Comments is the repository for comments on memories.
type Comments struct {
	c collection[models.Comment, *models.Comment]
}

func NewComments(d Deps) *Comments {
	return &Comments{c: collection[models.Comment, *models.Comment]{
		deps:  d,
		table: models.EntityComment,
		touch: func(cm *models.Comment, now int64) {
			if cm.CreatedAt == 0 {
				cm.CreatedAt = now
			}
			cm.UpdatedAt = now
		},
	}}
}

// ListByMemory returns all comments on one memory, offline-first.
func (r *Comments) ListByMemory(ctx context.Context, memoryID string) ([]models.Comment, error) {
	return r.c.getAll(ctx, byScope, memoryID, fmt.Sprintf("/api/memories/%s/comments", memoryID))
}

func (r *Comments) Create(_ context.Context, cm *models.Comment) error {
	return r.c.create(cm)
}

func (r *Comments) Update(_ context.Context, id string, mutate func(*models.Comment)) (*models.Comment, error) {
	return r.c.update(id, mutate)
}

func (r *Comments) Delete(_ context.Context, id string) error {
	return r.c.remove(id)
}
