package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/netpad/api/pkg/domain/form"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/pagination"
)

// FormRepository implements form.Repository using PostgreSQL.
type FormRepository struct {
	db *DB
}

// NewFormRepository creates a new FormRepository.
func NewFormRepository(db *DB) *FormRepository {
	return &FormRepository{db: db}
}

// Ensure FormRepository implements form.Repository
var _ form.Repository = (*FormRepository)(nil)

const formColumns = `
	id, organization_id, workflow_id, datasource_id, name, slug,
	status, version, fields, created_by, created_at, updated_at`

// Create persists a new form.
func (r *FormRepository) Create(ctx context.Context, f *form.Form) error {
	fields, err := toJSONB(f.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	query := `
		INSERT INTO forms (
			id, organization_id, workflow_id, datasource_id, name, slug,
			status, version, fields, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.ExecContext(ctx, query,
		f.ID.String(),
		f.OrganizationID.String(),
		nullID(f.WorkflowID),
		nullID(f.DataSourceID),
		f.Name,
		f.Slug,
		string(f.Status),
		f.Version,
		fields,
		nullID(f.CreatedBy),
		f.CreatedAt,
		f.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("ALREADY_EXISTS", "form slug already exists", shared.ErrAlreadyExists)
		}
		return fmt.Errorf("create form: %w", err)
	}
	return nil
}

// GetByOrgAndID retrieves a form scoped to an organization.
func (r *FormRepository) GetByOrgAndID(ctx context.Context, orgID, id shared.ID) (*form.Form, error) {
	query := `SELECT ` + formColumns + ` FROM forms WHERE organization_id = $1 AND id = $2`
	return r.scanForm(r.db.QueryRowContext(ctx, query, orgID.String(), id.String()))
}

// GetBySlug retrieves a form by its public slug.
func (r *FormRepository) GetBySlug(ctx context.Context, slug string) (*form.Form, error) {
	query := `SELECT ` + formColumns + ` FROM forms WHERE slug = $1`
	return r.scanForm(r.db.QueryRowContext(ctx, query, slug))
}

// List returns forms for an organization, newest first.
func (r *FormRepository) List(ctx context.Context, orgID shared.ID, page pagination.Page) (pagination.Result[*form.Form], error) {
	var empty pagination.Result[*form.Form]

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM forms WHERE organization_id = $1`, orgID.String(),
	).Scan(&total); err != nil {
		return empty, fmt.Errorf("count forms: %w", err)
	}

	query := `SELECT ` + formColumns + ` FROM forms WHERE organization_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, orgID.String(), page.Limit, page.Offset)
	if err != nil {
		return empty, fmt.Errorf("list forms: %w", err)
	}
	defer rows.Close()

	var forms []*form.Form
	for rows.Next() {
		f, err := r.scanForm(rows)
		if err != nil {
			return empty, err
		}
		forms = append(forms, f)
	}
	if err := rows.Err(); err != nil {
		return empty, fmt.Errorf("iterate forms: %w", err)
	}

	return pagination.NewResult(forms, total, page), nil
}

// Update persists changes to a form.
func (r *FormRepository) Update(ctx context.Context, f *form.Form) error {
	fields, err := toJSONB(f.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	query := `
		UPDATE forms
		SET workflow_id = $1, datasource_id = $2, name = $3,
			status = $4, version = $5, fields = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := r.db.ExecContext(ctx, query,
		nullID(f.WorkflowID),
		nullID(f.DataSourceID),
		f.Name,
		string(f.Status),
		f.Version,
		fields,
		f.UpdatedAt,
		f.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update form: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return shared.NewDomainError("NOT_FOUND", "form not found", shared.ErrNotFound)
	}
	return nil
}

// Delete removes a form.
func (r *FormRepository) Delete(ctx context.Context, orgID, id shared.ID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM forms WHERE organization_id = $1 AND id = $2`,
		orgID.String(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("delete form: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return shared.NewDomainError("NOT_FOUND", "form not found", shared.ErrNotFound)
	}
	return nil
}

func (r *FormRepository) scanForm(row scanner) (*form.Form, error) {
	var (
		f                     form.Form
		idStr, orgIDStr       string
		workflowID, dsID      sql.NullString
		status                string
		fields                []byte
		createdBy             sql.NullString
	)

	err := row.Scan(
		&idStr, &orgIDStr, &workflowID, &dsID, &f.Name, &f.Slug,
		&status, &f.Version, &fields, &createdBy, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NewDomainError("NOT_FOUND", "form not found", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("scan form: %w", err)
	}

	if f.ID, err = shared.IDFromString(idStr); err != nil {
		return nil, fmt.Errorf("parse form id: %w", err)
	}
	if f.OrganizationID, err = shared.IDFromString(orgIDStr); err != nil {
		return nil, fmt.Errorf("parse organization id: %w", err)
	}
	f.WorkflowID = parseNullID(workflowID)
	f.DataSourceID = parseNullID(dsID)
	f.Status = form.Status(status)
	f.CreatedBy = parseNullID(createdBy)
	f.Fields = []form.Field{}
	if err := fromJSONB(fields, &f.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}

	return &f, nil
}
