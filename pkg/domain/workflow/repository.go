package workflow

import (
	"context"

	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/pagination"
)

// Filter narrows workflow list queries.
type Filter struct {
	Status Status
	Search string
}

// Repository defines the persistence interface for workflows.
type Repository interface {
	// Create persists a new workflow with its nodes and edges.
	Create(ctx context.Context, w *Workflow) error

	// GetByID returns a workflow with its nodes and edges loaded.
	GetByID(ctx context.Context, id shared.ID) (*Workflow, error)

	// GetByOrgAndID returns a workflow scoped to an organization.
	GetByOrgAndID(ctx context.Context, orgID, id shared.ID) (*Workflow, error)

	// GetBySlug returns a workflow by its public slug.
	GetBySlug(ctx context.Context, slug string) (*Workflow, error)

	// List returns workflows for an organization, newest first.
	List(ctx context.Context, orgID shared.ID, filter Filter, page pagination.Page) (pagination.Result[*Workflow], error)

	// Update persists changes to a workflow, replacing its nodes and edges.
	Update(ctx context.Context, w *Workflow) error

	// UpdateStatus persists a status change without touching the canvas.
	UpdateStatus(ctx context.Context, w *Workflow) error

	// ListActiveWithScheduleTriggers returns active workflows containing at
	// least one schedule trigger node. Used by the schedule scanner.
	ListActiveWithScheduleTriggers(ctx context.Context) ([]*Workflow, error)

	// Delete removes a workflow and its nodes, edges, and executions.
	Delete(ctx context.Context, orgID, id shared.ID) error
}
