package form

import (
	"context"

	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/pagination"
)

// Repository defines the persistence interface for forms.
type Repository interface {
	// Create persists a new form.
	Create(ctx context.Context, f *Form) error

	// GetByOrgAndID returns a form scoped to an organization.
	GetByOrgAndID(ctx context.Context, orgID, id shared.ID) (*Form, error)

	// GetBySlug returns a form by its public slug.
	GetBySlug(ctx context.Context, slug string) (*Form, error)

	// List returns forms for an organization, newest first.
	List(ctx context.Context, orgID shared.ID, page pagination.Page) (pagination.Result[*Form], error)

	// Update persists changes to a form.
	Update(ctx context.Context, f *Form) error

	// Delete removes a form.
	Delete(ctx context.Context, orgID, id shared.ID) error
}
