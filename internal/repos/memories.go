package repos

import (
	"context"

	"github.com/keepsakehq/keepsake-go/internal/models"
)

// Memories is the repository for journal memories.
type Memories struct {
	c collection[models.Memory, *models.Memory]
}

// NewMemories constructs the memory repository.
func NewMemories(d Deps) *Memories {
	return &Memories{c: collection[models.Memory, *models.Memory]{
		deps:  d,
		table: models.EntityMemory,
		touch: func(m *models.Memory, now int64) {
			if m.CreatedAt == 0 {
				m.CreatedAt = now
			}
			m.UpdatedAt = now
		},
	}}
}

// GetAll returns the user's memories, offline-first.
func (r *Memories) GetAll(ctx context.Context, userID string) ([]models.Memory, error) {
	return r.c.getAll(ctx, byOwner, userID, "/api/memories")
}

// Get returns a single cached memory.
func (r *Memories) Get(_ context.Context, id string) (*models.Memory, error) {
	return r.c.get(id)
}

// Create saves a memory locally and queues the remote create. The memory's
// ID and sync attributes are filled in before the call returns.
func (r *Memories) Create(_ context.Context, m *models.Memory) error {
	return r.c.create(m)
}

// Update applies mutate to the cached memory. Identical results are a no-op.
func (r *Memories) Update(_ context.Context, id string, mutate func(*models.Memory)) (*models.Memory, error) {
	return r.c.update(id, mutate)
}

// Delete removes the memory locally and queues the remote delete.
func (r *Memories) Delete(_ context.Context, id string) error {
	return r.c.remove(id)
}
