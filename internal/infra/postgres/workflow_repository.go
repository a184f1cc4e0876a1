package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/domain/workflow"
	"github.com/netpad/api/pkg/pagination"
)

// WorkflowRepository implements workflow.Repository using PostgreSQL.
type WorkflowRepository struct {
	db *DB
}

// NewWorkflowRepository creates a new WorkflowRepository.
func NewWorkflowRepository(db *DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Ensure WorkflowRepository implements workflow.Repository
var _ workflow.Repository = (*WorkflowRepository)(nil)

const workflowColumns = `
	id, organization_id, name, description, slug,
	status, version, settings, embed_settings,
	created_by, status_changed_by, created_at, updated_at`

// Create creates a new workflow with its nodes and edges.
func (r *WorkflowRepository) Create(ctx context.Context, w *workflow.Workflow) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		settings, err := toJSONB(w.Settings)
		if err != nil {
			return fmt.Errorf("marshal settings: %w", err)
		}
		embedSettings, err := toJSONB(w.EmbedSettings)
		if err != nil {
			return fmt.Errorf("marshal embed settings: %w", err)
		}

		query := `
			INSERT INTO workflows (
				id, organization_id, name, description, slug,
				status, version, settings, embed_settings,
				created_by, status_changed_by, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		_, err = tx.ExecContext(ctx, query,
			w.ID.String(),
			w.OrganizationID.String(),
			w.Name,
			nullString(w.Description),
			w.Slug,
			string(w.Status),
			w.Version,
			settings,
			embedSettings,
			nullID(w.CreatedBy),
			nullID(w.StatusChangedBy),
			w.CreatedAt,
			w.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return shared.NewDomainError("ALREADY_EXISTS", "workflow slug already exists", shared.ErrAlreadyExists)
			}
			return fmt.Errorf("create workflow: %w", err)
		}

		return r.insertCanvas(ctx, tx, w)
	})
}

// GetByID retrieves a workflow by ID with its nodes and edges.
func (r *WorkflowRepository) GetByID(ctx context.Context, id shared.ID) (*workflow.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`

	w, err := r.scanWorkflow(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		return nil, err
	}
	if err := r.loadCanvas(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// GetByOrgAndID retrieves a workflow scoped to an organization.
func (r *WorkflowRepository) GetByOrgAndID(ctx context.Context, orgID, id shared.ID) (*workflow.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE organization_id = $1 AND id = $2`

	w, err := r.scanWorkflow(r.db.QueryRowContext(ctx, query, orgID.String(), id.String()))
	if err != nil {
		return nil, err
	}
	if err := r.loadCanvas(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// GetBySlug retrieves a workflow by its public slug.
func (r *WorkflowRepository) GetBySlug(ctx context.Context, slug string) (*workflow.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE slug = $1`

	w, err := r.scanWorkflow(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		return nil, err
	}
	if err := r.loadCanvas(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// List returns workflows for an organization, newest first.
func (r *WorkflowRepository) List(ctx context.Context, orgID shared.ID, filter workflow.Filter, page pagination.Page) (pagination.Result[*workflow.Workflow], error) {
	var empty pagination.Result[*workflow.Workflow]

	where := `WHERE organization_id = $1`
	args := []any{orgID.String()}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(" AND name ILIKE $%d", len(args))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM workflows ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return empty, fmt.Errorf("count workflows: %w", err)
	}

	args = append(args, page.Limit, page.Offset)
	query := `SELECT ` + workflowColumns + ` FROM workflows ` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return empty, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*workflow.Workflow
	for rows.Next() {
		w, err := r.scanWorkflow(rows)
		if err != nil {
			return empty, err
		}
		workflows = append(workflows, w)
	}
	if err := rows.Err(); err != nil {
		return empty, fmt.Errorf("iterate workflows: %w", err)
	}

	return pagination.NewResult(workflows, total, page), nil
}

// Update persists workflow changes, replacing its nodes and edges.
func (r *WorkflowRepository) Update(ctx context.Context, w *workflow.Workflow) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		settings, err := toJSONB(w.Settings)
		if err != nil {
			return fmt.Errorf("marshal settings: %w", err)
		}
		embedSettings, err := toJSONB(w.EmbedSettings)
		if err != nil {
			return fmt.Errorf("marshal embed settings: %w", err)
		}

		query := `
			UPDATE workflows
			SET name = $1, description = $2, status = $3, version = $4,
				settings = $5, embed_settings = $6, status_changed_by = $7, updated_at = $8
			WHERE id = $9
		`
		result, err := tx.ExecContext(ctx, query,
			w.Name,
			nullString(w.Description),
			string(w.Status),
			w.Version,
			settings,
			embedSettings,
			nullID(w.StatusChangedBy),
			w.UpdatedAt,
			w.ID.String(),
		)
		if err != nil {
			return fmt.Errorf("update workflow: %w", err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return shared.NewDomainError("NOT_FOUND", "workflow not found", shared.ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM workflow_edges WHERE workflow_id = $1`, w.ID.String()); err != nil {
			return fmt.Errorf("clear edges: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM workflow_nodes WHERE workflow_id = $1`, w.ID.String()); err != nil {
			return fmt.Errorf("clear nodes: %w", err)
		}

		return r.insertCanvas(ctx, tx, w)
	})
}

// UpdateStatus persists a status change without touching the canvas.
func (r *WorkflowRepository) UpdateStatus(ctx context.Context, w *workflow.Workflow) error {
	query := `
		UPDATE workflows
		SET status = $1, status_changed_by = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := r.db.ExecContext(ctx, query,
		string(w.Status),
		nullID(w.StatusChangedBy),
		w.UpdatedAt,
		w.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update workflow status: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return shared.NewDomainError("NOT_FOUND", "workflow not found", shared.ErrNotFound)
	}
	return nil
}

// ListActiveWithScheduleTriggers returns active workflows that contain at
// least one schedule trigger node.
func (r *WorkflowRepository) ListActiveWithScheduleTriggers(ctx context.Context) ([]*workflow.Workflow, error) {
	query := `
		SELECT DISTINCT ` + prefixColumns("w", workflowColumns) + `
		FROM workflows w
		JOIN workflow_nodes n ON n.workflow_id = w.id
		WHERE w.status = $1 AND n.type = $2
	`
	rows, err := r.db.QueryContext(ctx, query, string(workflow.StatusActive), string(workflow.NodeTypeScheduleTrigger))
	if err != nil {
		return nil, fmt.Errorf("list scheduled workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*workflow.Workflow
	for rows.Next() {
		w, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scheduled workflows: %w", err)
	}

	for _, w := range workflows {
		if err := r.loadCanvas(ctx, w); err != nil {
			return nil, err
		}
	}
	return workflows, nil
}

// Delete removes a workflow and its dependent rows.
func (r *WorkflowRepository) Delete(ctx context.Context, orgID, id shared.ID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM workflows WHERE organization_id = $1 AND id = $2`,
		orgID.String(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return shared.NewDomainError("NOT_FOUND", "workflow not found", shared.ErrNotFound)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (r *WorkflowRepository) scanWorkflow(row scanner) (*workflow.Workflow, error) {
	var (
		w                          workflow.Workflow
		idStr, orgIDStr, status    string
		description                sql.NullString
		settings, embedSettings    []byte
		createdBy, statusChangedBy sql.NullString
	)

	err := row.Scan(
		&idStr, &orgIDStr, &w.Name, &description, &w.Slug,
		&status, &w.Version, &settings, &embedSettings,
		&createdBy, &statusChangedBy, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NewDomainError("NOT_FOUND", "workflow not found", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("scan workflow: %w", err)
	}

	if w.ID, err = shared.IDFromString(idStr); err != nil {
		return nil, fmt.Errorf("parse workflow id: %w", err)
	}
	if w.OrganizationID, err = shared.IDFromString(orgIDStr); err != nil {
		return nil, fmt.Errorf("parse organization id: %w", err)
	}
	w.Description = nullStringValue(description)
	w.Status = workflow.Status(status)
	w.CreatedBy = parseNullID(createdBy)
	w.StatusChangedBy = parseNullID(statusChangedBy)

	if err := fromJSONB(settings, &w.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := fromJSONB(embedSettings, &w.EmbedSettings); err != nil {
		return nil, fmt.Errorf("unmarshal embed settings: %w", err)
	}

	w.Nodes = []*workflow.Node{}
	w.Edges = []*workflow.Edge{}
	return &w, nil
}

func (r *WorkflowRepository) insertCanvas(ctx context.Context, tx *sql.Tx, w *workflow.Workflow) error {
	nodeQuery := `
		INSERT INTO workflow_nodes (id, workflow_id, node_key, type, name, config, ui_position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, n := range w.Nodes {
		config, err := toJSONB(n.Config)
		if err != nil {
			return fmt.Errorf("marshal node config: %w", err)
		}
		position, err := toJSONB(n.UIPosition)
		if err != nil {
			return fmt.Errorf("marshal node position: %w", err)
		}
		if _, err := tx.ExecContext(ctx, nodeQuery,
			n.ID.String(), w.ID.String(), n.NodeKey, string(n.Type), n.Name, config, position, n.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert node %s: %w", n.NodeKey, err)
		}
	}

	edgeQuery := `
		INSERT INTO workflow_edges (id, workflow_id, source_node_key, target_node_key, label, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, e := range w.Edges {
		if _, err := tx.ExecContext(ctx, edgeQuery,
			e.ID.String(), w.ID.String(), e.SourceNodeKey, e.TargetNodeKey, nullString(e.Label), e.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert edge %s->%s: %w", e.SourceNodeKey, e.TargetNodeKey, err)
		}
	}

	return nil
}

func (r *WorkflowRepository) loadCanvas(ctx context.Context, w *workflow.Workflow) error {
	nodeRows, err := r.db.QueryContext(ctx, `
		SELECT id, node_key, type, name, config, ui_position, created_at
		FROM workflow_nodes
		WHERE workflow_id = $1
		ORDER BY created_at
	`, w.ID.String())
	if err != nil {
		return fmt.Errorf("load nodes: %w", err)
	}
	defer nodeRows.Close()

	for nodeRows.Next() {
		var (
			n                workflow.Node
			idStr, typ       string
			config, position []byte
		)
		if err := nodeRows.Scan(&idStr, &n.NodeKey, &typ, &n.Name, &config, &position, &n.CreatedAt); err != nil {
			return fmt.Errorf("scan node: %w", err)
		}
		if n.ID, err = shared.IDFromString(idStr); err != nil {
			return fmt.Errorf("parse node id: %w", err)
		}
		n.WorkflowID = w.ID
		n.Type = workflow.NodeType(typ)
		n.Config = map[string]any{}
		if err := fromJSONB(config, &n.Config); err != nil {
			return fmt.Errorf("unmarshal node config: %w", err)
		}
		if err := fromJSONB(position, &n.UIPosition); err != nil {
			return fmt.Errorf("unmarshal node position: %w", err)
		}
		node := n
		w.Nodes = append(w.Nodes, &node)
	}
	if err := nodeRows.Err(); err != nil {
		return fmt.Errorf("iterate nodes: %w", err)
	}

	edgeRows, err := r.db.QueryContext(ctx, `
		SELECT id, source_node_key, target_node_key, label, created_at
		FROM workflow_edges
		WHERE workflow_id = $1
		ORDER BY created_at
	`, w.ID.String())
	if err != nil {
		return fmt.Errorf("load edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var (
			e     workflow.Edge
			idStr string
			label sql.NullString
		)
		if err := edgeRows.Scan(&idStr, &e.SourceNodeKey, &e.TargetNodeKey, &label, &e.CreatedAt); err != nil {
			return fmt.Errorf("scan edge: %w", err)
		}
		if e.ID, err = shared.IDFromString(idStr); err != nil {
			return fmt.Errorf("parse edge id: %w", err)
		}
		e.WorkflowID = w.ID
		e.Label = nullStringValue(label)
		edge := e
		w.Edges = append(w.Edges, &edge)
	}
	return edgeRows.Err()
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	out := ""
	for i, col := range splitColumns(columns) {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + col
	}
	return out
}

func splitColumns(columns string) []string {
	var cols []string
	current := ""
	for _, r := range columns {
		switch r {
		case ',':
			if current != "" {
				cols = append(cols, current)
				current = ""
			}
		case ' ', '\t', '\n':
		default:
			current += string(r)
		}
	}
	if current != "" {
		cols = append(cols, current)
	}
	return cols
}
