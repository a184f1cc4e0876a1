package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/netpad/api/pkg/domain/organization"
	"github.com/netpad/api/pkg/domain/shared"
)

// OrganizationRepository implements organization.Repository using PostgreSQL.
type OrganizationRepository struct {
	db *DB
}

// NewOrganizationRepository creates a new OrganizationRepository.
func NewOrganizationRepository(db *DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// Ensure OrganizationRepository implements organization.Repository
var _ organization.Repository = (*OrganizationRepository)(nil)

// Create persists a new organization.
func (r *OrganizationRepository) Create(ctx context.Context, org *organization.Organization) error {
	query := `
		INSERT INTO organizations (id, name, slug, plan, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		org.ID.String(), org.Name, org.Slug, string(org.Plan), org.CreatedAt, org.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("ALREADY_EXISTS", "organization slug already exists", shared.ErrAlreadyExists)
		}
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// GetByID retrieves an organization by ID.
func (r *OrganizationRepository) GetByID(ctx context.Context, id shared.ID) (*organization.Organization, error) {
	query := `SELECT id, name, slug, plan, created_at, updated_at FROM organizations WHERE id = $1`
	return r.scanOrganization(r.db.QueryRowContext(ctx, query, id.String()))
}

// GetBySlug retrieves an organization by slug.
func (r *OrganizationRepository) GetBySlug(ctx context.Context, slug string) (*organization.Organization, error) {
	query := `SELECT id, name, slug, plan, created_at, updated_at FROM organizations WHERE slug = $1`
	return r.scanOrganization(r.db.QueryRowContext(ctx, query, slug))
}

// Update persists changes to an organization.
func (r *OrganizationRepository) Update(ctx context.Context, org *organization.Organization) error {
	query := `
		UPDATE organizations
		SET name = $1, plan = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := r.db.ExecContext(ctx, query,
		org.Name, string(org.Plan), org.UpdatedAt, org.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return shared.NewDomainError("NOT_FOUND", "organization not found", shared.ErrNotFound)
	}
	return nil
}

// AddMember records a user's membership.
func (r *OrganizationRepository) AddMember(ctx context.Context, m *organization.Member) error {
	query := `
		INSERT INTO organization_members (organization_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query,
		m.OrganizationID.String(), m.UserID.String(), string(m.Role), m.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError("ALREADY_EXISTS", "user is already a member", shared.ErrAlreadyExists)
		}
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// GetMember retrieves a membership.
func (r *OrganizationRepository) GetMember(ctx context.Context, orgID, userID shared.ID) (*organization.Member, error) {
	query := `
		SELECT organization_id, user_id, role, created_at
		FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
	`

	var (
		m                  organization.Member
		orgIDStr, userStr  string
		role               string
	)
	err := r.db.QueryRowContext(ctx, query, orgID.String(), userID.String()).
		Scan(&orgIDStr, &userStr, &role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NewDomainError("NOT_FOUND", "membership not found", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("get member: %w", err)
	}

	if m.OrganizationID, err = shared.IDFromString(orgIDStr); err != nil {
		return nil, fmt.Errorf("parse organization id: %w", err)
	}
	if m.UserID, err = shared.IDFromString(userStr); err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	m.Role = organization.Role(role)
	return &m, nil
}

// IsMember reports whether the user belongs to the organization.
func (r *OrganizationRepository) IsMember(ctx context.Context, orgID, userID shared.ID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM organization_members WHERE organization_id = $1 AND user_id = $2)`,
		orgID.String(), userID.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

func (r *OrganizationRepository) scanOrganization(row scanner) (*organization.Organization, error) {
	var (
		org         organization.Organization
		idStr, plan string
	)
	err := row.Scan(&idStr, &org.Name, &org.Slug, &plan, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.NewDomainError("NOT_FOUND", "organization not found", shared.ErrNotFound)
		}
		return nil, fmt.Errorf("scan organization: %w", err)
	}

	if org.ID, err = shared.IDFromString(idStr); err != nil {
		return nil, fmt.Errorf("parse organization id: %w", err)
	}
	org.Plan = organization.Plan(plan)
	return &org, nil
}
