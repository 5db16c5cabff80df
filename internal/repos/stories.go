package repos

import (
	"context"

	"github.com/keepsakehq/keepsake-go/internal/models"
)

// Stories caches generated narratives. Generation itself is a server
// concern; the core replays plain CRUD on the results.
type Stories struct {
	c collection[models.Story, *models.Story]
}

func NewStories(d Deps) *Stories {
	return &Stories{c: collection[models.Story, *models.Story]{
		deps:  d,
		table: models.EntityStory,
		touch: func(s *models.Story, now int64) {
			if s.CreatedAt == 0 {
				s.CreatedAt = now
			}
			s.UpdatedAt = now
		},
	}}
}

func (r *Stories) GetAll(ctx context.Context, userID string) ([]models.Story, error) {
	return r.c.getAll(ctx, byOwner, userID, "/api/stories")
}

func (r *Stories) Create(_ context.Context, s *models.Story) error {
	return r.c.create(s)
}

func (r *Stories) Update(_ context.Context, id string, mutate func(*models.Story)) (*models.Story, error) {
	return r.c.update(id, mutate)
}

func (r *Stories) Delete(_ context.Context, id string) error {
	return r.c.remove(id)
}
