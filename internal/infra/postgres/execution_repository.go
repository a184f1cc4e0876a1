package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/netpad/api/pkg/domain/execution"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/pagination"
)

// ExecutionRepository implements execution.Repository using PostgreSQL.
type ExecutionRepository struct {
	db *DB
}

// NewExecutionRepository creates a new ExecutionRepository.
func NewExecutionRepository(db *DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// Ensure ExecutionRepository implements execution.Repository
var _ execution.Repository = (*ExecutionRepository)(nil)

const executionColumns = `
	id, workflow_id, organization_id, workflow_version,
	status, trigger, completed_nodes, failed_nodes, skipped_nodes,
	error, max_attempts, requested_by, remote_addr,
	started_at, finished_at, created_at, updated_at`

// Create persists a new execution record.
func (r *ExecutionRepository) Create(ctx context.Context, e *execution.Execution) error {
	trigger, err := toJSONB(e.Trigger)
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}

	query := `
		INSERT INTO executions (
			id, workflow_id, organization_id, workflow_version,
			status, trigger, completed_nodes, failed_nodes, skipped_nodes,
			error, max_attempts, requested_by, remote_addr,
			started_at, finished_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = r.db.ExecContext(ctx, query,
		e.ID.String(),
		e.WorkflowID.String(),
		e.OrganizationID.String(),
		e.WorkflowVersion,
		string(e.Status),
		trigger,
		textArray(e.CompletedNodes),
		textArray(e.FailedNodes),
		textArray(e.SkippedNodes),
		nullString(e.Error),
		e.MaxAttempts,
		nullID(e.RequestedBy),
		nullString(e.RemoteAddr),
		nullTime(e.StartedAt),
		nullTime(e.FinishedAt),
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create execution: %w", err)
	}
	return nil
}

// GetByID retrieves an execution by ID.
func (r *ExecutionRepository) GetByID(ctx context.Context, id shared.ID) (*execution.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`
	return r.scanExecution(r.db.QueryRowContext(ctx, query, id.String()))
}

// GetByOrgAndID retrieves an execution scoped to an organization.
func (r *ExecutionRepository) GetByOrgAndID(ctx context.Context, orgID, id shared.ID) (*execution.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE organization_id = $1 AND id = $2`
	return r.scanExecution(r.db.QueryRowContext(ctx, query, orgID.String(), id.String()))
}

// ListByWorkflow returns executions for a workflow, newest first.
func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID shared.ID, filter execution.Filter, page pagination.Page) (pagination.Result[*execution.Execution], error) {
	var empty pagination.Result[*execution.Execution]

	where := `WHERE workflow_id = $1`
	args := []any{workflowID.String()}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM executions ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return empty, fmt.Errorf("count executions: %w", err)
	}

	args = append(args, page.Limit, page.Offset)
	query := `SELECT ` + executionColumns + ` FROM executions ` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return empty, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var executions []*execution.Execution
	for rows.Next() {
		e, err := r.scanExecution(rows)
		if err != nil {
			return empty, err
		}
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return empty, fmt.Errorf("iterate executions: %w", err)
	}

	return pagination.NewResult(executions, total, page), nil
}

// CountPendingByOrg counts executions waiting in the queue for an organization.
func (r *ExecutionRepository) CountPendingByOrg(ctx context.Context, orgID shared.ID) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM executions WHERE organization_id = $1 AND status = $2`,
		orgID.String(), string(execution.StatusPending),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending executions: %w", err)
	}
	return count, nil
}

// Update persists execution status, node outcomes, and timestamps.
func (r *ExecutionRepository) Update(ctx context.Context, e *execution.Execution) error {
	query := `
		UPDATE executions
		SET status = $1, completed_nodes = $2, failed_nodes = $3, skipped_nodes = $4,
			error = $5, started_at = $6, finished_at = $7, updated_at = $8
		WHERE id = $9
	`
	result, err := r.db.ExecContext(ctx, query,
		string(e.Status),
		textArray(e.CompletedNodes),
		textArray(e.FailedNodes),
		textArray(e.SkippedNodes),
		nullString(e.Error),
		nullTime(e.StartedAt),
		nullTime(e.FinishedAt),
		e.UpdatedAt,
		e.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return shared.NewDomainError("NOT_FOUND", "execution not found", shared.ErrNotFound)
	}
	return nil
}

func (r *ExecutionRepository) scanExecution(row scanner) (*execution.Execution, error) {
	var (
		e                                  execution.Execution
		idStr, wfIDStr, orgIDStr, status   string
		trigger                            []byte
		completed, failed, skipped         pq.StringArray
		errMsg, requestedBy, remoteAddr    sql.NullString
		startedAt, finishedAt              sql.NullTime
	)

	err := row.Scan(
		&idStr, &wfIDStr, &orgIDStr, &e.WorkflowVersion,
		&status, &trigger, &completed, &failed, &skipped,
		&errMsg, &e.MaxAttempts, &requestedBy, &remoteAddr,
		&startedAt, &finishedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NewDomainError("NOT_FOUND", "execution not found", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	if e.ID, err = shared.IDFromString(idStr); err != nil {
		return nil, fmt.Errorf("parse execution id: %w", err)
	}
	if e.WorkflowID, err = shared.IDFromString(wfIDStr); err != nil {
		return nil, fmt.Errorf("parse workflow id: %w", err)
	}
	if e.OrganizationID, err = shared.IDFromString(orgIDStr); err != nil {
		return nil, fmt.Errorf("parse organization id: %w", err)
	}

	e.Status = execution.Status(status)
	e.CompletedNodes = completed
	e.FailedNodes = failed
	e.SkippedNodes = skipped
	e.Error = nullStringValue(errMsg)
	e.RequestedBy = parseNullID(requestedBy)
	e.RemoteAddr = nullStringValue(remoteAddr)
	e.StartedAt = nullTimeValue(startedAt)
	e.FinishedAt = nullTimeValue(finishedAt)

	if err := fromJSONB(trigger, &e.Trigger); err != nil {
		return nil, fmt.Errorf("unmarshal trigger: %w", err)
	}

	if e.CompletedNodes == nil {
		e.CompletedNodes = []string{}
	}
	if e.FailedNodes == nil {
		e.FailedNodes = []string{}
	}
	if e.SkippedNodes == nil {
		e.SkippedNodes = []string{}
	}

	return &e, nil
}
