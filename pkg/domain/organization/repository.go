package organization

import (
	"context"

	"github.com/netpad/api/pkg/domain/shared"
)

// Repository defines the persistence interface for organizations.
type Repository interface {
	// Create persists a new organization.
	Create(ctx context.Context, org *Organization) error

	// GetByID returns an organization by its id.
	GetByID(ctx context.Context, id shared.ID) (*Organization, error)

	// GetBySlug returns an organization by its slug.
	GetBySlug(ctx context.Context, slug string) (*Organization, error)

	// Update persists changes to an organization.
	Update(ctx context.Context, org *Organization) error

	// AddMember records a user's membership.
	AddMember(ctx context.Context, m *Member) error

	// GetMember returns a membership, or shared.ErrNotFound.
	GetMember(ctx context.Context, orgID, userID shared.ID) (*Member, error)

	// IsMember reports whether the user belongs to the organization.
	IsMember(ctx context.Context, orgID, userID shared.ID) (bool, error)
}
