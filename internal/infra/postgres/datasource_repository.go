package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/netpad/api/pkg/domain/datasource"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/pagination"
)

// DataSourceRepository implements datasource.Repository using PostgreSQL.
type DataSourceRepository struct {
	db *DB
}

// NewDataSourceRepository creates a new DataSourceRepository.
func NewDataSourceRepository(db *DB) *DataSourceRepository {
	return &DataSourceRepository{db: db}
}

// Ensure DataSourceRepository implements datasource.Repository
var _ datasource.Repository = (*DataSourceRepository)(nil)

const dataSourceColumns = `
	id, organization_id, name, driver, encrypted_dsn,
	created_by, created_at, updated_at`

// Create persists a new data source.
func (r *DataSourceRepository) Create(ctx context.Context, ds *datasource.DataSource) error {
	query := `
		INSERT INTO data_sources (
			id, organization_id, name, driver, encrypted_dsn,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		ds.ID.String(),
		ds.OrganizationID.String(),
		ds.Name,
		string(ds.Driver),
		ds.EncryptedDSN,
		nullID(ds.CreatedBy),
		ds.CreatedAt,
		ds.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("ALREADY_EXISTS", "data source name already exists", shared.ErrAlreadyExists)
		}
		return fmt.Errorf("create data source: %w", err)
	}
	return nil
}

// GetByOrgAndID retrieves a data source scoped to an organization.
func (r *DataSourceRepository) GetByOrgAndID(ctx context.Context, orgID, id shared.ID) (*datasource.DataSource, error) {
	query := `SELECT ` + dataSourceColumns + ` FROM data_sources WHERE organization_id = $1 AND id = $2`
	return r.scanDataSource(r.db.QueryRowContext(ctx, query, orgID.String(), id.String()))
}

// List returns data sources for an organization, newest first.
func (r *DataSourceRepository) List(ctx context.Context, orgID shared.ID, page pagination.Page) (pagination.Result[*datasource.DataSource], error) {
	var empty pagination.Result[*datasource.DataSource]

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM data_sources WHERE organization_id = $1`, orgID.String(),
	).Scan(&total); err != nil {
		return empty, fmt.Errorf("count data sources: %w", err)
	}

	query := `SELECT ` + dataSourceColumns + ` FROM data_sources WHERE organization_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, orgID.String(), page.Limit, page.Offset)
	if err != nil {
		return empty, fmt.Errorf("list data sources: %w", err)
	}
	defer rows.Close()

	var sources []*datasource.DataSource
	for rows.Next() {
		ds, err := r.scanDataSource(rows)
		if err != nil {
			return empty, err
		}
		sources = append(sources, ds)
	}
	if err := rows.Err(); err != nil {
		return empty, fmt.Errorf("iterate data sources: %w", err)
	}

	return pagination.NewResult(sources, total, page), nil
}

// Update persists changes to a data source.
func (r *DataSourceRepository) Update(ctx context.Context, ds *datasource.DataSource) error {
	query := `
		UPDATE data_sources
		SET name = $1, driver = $2, encrypted_dsn = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := r.db.ExecContext(ctx, query,
		ds.Name, string(ds.Driver), ds.EncryptedDSN, ds.UpdatedAt, ds.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update data source: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return shared.NewDomainError("NOT_FOUND", "data source not found", shared.ErrNotFound)
	}
	return nil
}

// Delete removes a data source.
func (r *DataSourceRepository) Delete(ctx context.Context, orgID, id shared.ID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM data_sources WHERE organization_id = $1 AND id = $2`,
		orgID.String(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("delete data source: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return shared.NewDomainError("NOT_FOUND", "data source not found", shared.ErrNotFound)
	}
	return nil
}

func (r *DataSourceRepository) scanDataSource(row scanner) (*datasource.DataSource, error) {
	var (
		ds              datasource.DataSource
		idStr, orgIDStr string
		driver          string
		createdBy       sql.NullString
	)

	err := row.Scan(
		&idStr, &orgIDStr, &ds.Name, &driver, &ds.EncryptedDSN,
		&createdBy, &ds.CreatedAt, &ds.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NewDomainError("NOT_FOUND", "data source not found", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("scan data source: %w", err)
	}

	if ds.ID, err = shared.IDFromString(idStr); err != nil {
		return nil, fmt.Errorf("parse data source id: %w", err)
	}
	if ds.OrganizationID, err = shared.IDFromString(orgIDStr); err != nil {
		return nil, fmt.Errorf("parse organization id: %w", err)
	}
	ds.Driver = datasource.Driver(driver)
	ds.CreatedBy = parseNullID(createdBy)
	return &ds, nil
}
