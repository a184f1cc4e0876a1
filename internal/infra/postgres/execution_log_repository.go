package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/netpad/api/pkg/domain/execution"
	"github.com/netpad/api/pkg/domain/shared"
)

// ExecutionLogRepository implements execution.LogRepository using PostgreSQL.
type ExecutionLogRepository struct {
	db *DB
}

// NewExecutionLogRepository creates a new ExecutionLogRepository.
func NewExecutionLogRepository(db *DB) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db}
}

// Ensure ExecutionLogRepository implements execution.LogRepository
var _ execution.LogRepository = (*ExecutionLogRepository)(nil)

// logLevelRank orders levels for minimum-level filtering.
var logLevelRank = map[execution.LogLevel]int{
	execution.LogLevelDebug: 0,
	execution.LogLevelInfo:  1,
	execution.LogLevelWarn:  2,
	execution.LogLevelError: 3,
}

// Append persists log entries for an execution.
func (r *ExecutionLogRepository) Append(ctx context.Context, logs ...*execution.Log) error {
	if len(logs) == 0 {
		return nil
	}

	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO execution_logs (id, execution_id, level, message, node_key, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		for _, l := range logs {
			if _, err := tx.ExecContext(ctx, query,
				l.ID.String(),
				l.ExecutionID.String(),
				string(l.Level),
				l.Message,
				nullString(l.NodeKey),
				l.CreatedAt,
			); err != nil {
				return fmt.Errorf("append execution log: %w", err)
			}
		}
		return nil
	})
}

// ListByExecution returns log entries in emission order, optionally filtered
// by minimum level, capped at limit.
func (r *ExecutionLogRepository) ListByExecution(ctx context.Context, executionID shared.ID, level execution.LogLevel, limit int) ([]*execution.Log, error) {
	if limit < 1 {
		limit = 100
	}

	query := `
		SELECT id, execution_id, level, message, node_key, created_at
		FROM execution_logs
		WHERE execution_id = $1
	`
	args := []any{executionID.String()}

	if level != "" {
		minRank, ok := logLevelRank[level]
		if !ok {
			return nil, shared.NewDomainError("VALIDATION", "invalid log level: "+string(level), shared.ErrValidation)
		}
		var levels []string
		for l, rank := range logLevelRank {
			if rank >= minRank {
				levels = append(levels, string(l))
			}
		}
		args = append(args, textArray(levels))
		query += fmt.Sprintf(" AND level = ANY($%d)", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at, id LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list execution logs: %w", err)
	}
	defer rows.Close()

	var logs []*execution.Log
	for rows.Next() {
		var (
			l               execution.Log
			idStr, execID   string
			levelStr        string
			nodeKey         sql.NullString
		)
		if err := rows.Scan(&idStr, &execID, &levelStr, &l.Message, &nodeKey, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan execution log: %w", err)
		}
		if l.ID, err = shared.IDFromString(idStr); err != nil {
			return nil, fmt.Errorf("parse log id: %w", err)
		}
		if l.ExecutionID, err = shared.IDFromString(execID); err != nil {
			return nil, fmt.Errorf("parse execution id: %w", err)
		}
		l.Level = execution.LogLevel(levelStr)
		l.NodeKey = nullStringValue(nodeKey)
		log := l
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution logs: %w", err)
	}

	return logs, nil
}
