package repos

import (
	"context"

	"github.com/keepsakehq/keepsake-go/internal/models"
)

// Family is the repository for family members.
type Family struct {
	c collection[models.FamilyMember, *models.FamilyMember]
}

func NewFamily(d Deps) *Family {
	return &Family{c: collection[models.FamilyMember, *models.FamilyMember]{
		deps:  d,
		table: models.EntityFamily,
		touch: func(f *models.FamilyMember, now int64) {
			if f.CreatedAt == 0 {
				f.CreatedAt = now
			}
			f.UpdatedAt = now
		},
	}}
}

func (r *Family) GetAll(ctx context.Context, userID string) ([]models.FamilyMember, error) {
	return r.c.getAll(ctx, byOwner, userID, "/api/family")
}

func (r *Family) Create(_ context.Context, f *models.FamilyMember) error {
	return r.c.create(f)
}

func (r *Family) Update(_ context.Context, id string, mutate func(*models.FamilyMember)) (*models.FamilyMember, error) {
	return r.c.update(id, mutate)
}

func (r *Family) Delete(_ context.Context, id string) error {
	return r.c.remove(id)
}
