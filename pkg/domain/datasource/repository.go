package datasource

import (
	"context"

	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/pagination"
)

// Repository defines the persistence interface for data sources.
type Repository interface {
	// Create persists a new data source.
	Create(ctx context.Context, ds *DataSource) error

	// GetByOrgAndID returns a data source scoped to an organization.
	GetByOrgAndID(ctx context.Context, orgID, id shared.ID) (*DataSource, error)

	// List returns data sources for an organization, newest first.
	List(ctx context.Context, orgID shared.ID, page pagination.Page) (pagination.Result[*DataSource], error)

	// Update persists changes to a data source.
	Update(ctx context.Context, ds *DataSource) error

	// Delete removes a data source.
	Delete(ctx context.Context, orgID, id shared.ID) error
}
