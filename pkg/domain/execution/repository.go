package execution

import (
	"context"

	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/pagination"
)

// Filter narrows execution list queries.
type Filter struct {
	Status Status
}

// Repository defines the persistence interface for executions.
type Repository interface {
	// Create persists a new execution record.
	Create(ctx context.Context, e *Execution) error

	// GetByID returns an execution by its id.
	GetByID(ctx context.Context, id shared.ID) (*Execution, error)

	// GetByOrgAndID returns an execution scoped to an organization.
	GetByOrgAndID(ctx context.Context, orgID, id shared.ID) (*Execution, error)

	// ListByWorkflow returns executions for a workflow, newest first.
	ListByWorkflow(ctx context.Context, workflowID shared.ID, filter Filter, page pagination.Page) (pagination.Result[*Execution], error)

	// CountPendingByOrg counts executions currently waiting in the queue
	// for an organization. Backs the queue depth admission gate.
	CountPendingByOrg(ctx context.Context, orgID shared.ID) (int64, error)

	// Update persists execution status, node outcomes, and timestamps.
	Update(ctx context.Context, e *Execution) error
}

// LogRepository defines the persistence interface for execution logs.
type LogRepository interface {
	// Append persists log entries for an execution.
	Append(ctx context.Context, logs ...*Log) error

	// ListByExecution returns log entries for an execution in emission
	// order, optionally filtered by minimum level, capped at limit.
	ListByExecution(ctx context.Context, executionID shared.ID, level LogLevel, limit int) ([]*Log, error)
}
