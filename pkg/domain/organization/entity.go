// Package organization defines the tenant entities: organizations, their
// plans, and memberships.
package organization

import (
	"time"

	"github.com/netpad/api/pkg/domain/shared"
)

// Role represents a member's role within an organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// IsValid checks if the role is valid.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// CanExecute reports whether the role may trigger workflow executions.
func (r Role) CanExecute() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

// CanManage reports whether the role may change workflow lifecycle status.
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Organization represents a tenant account.
type Organization struct {
	ID        shared.ID
	Name      string
	Slug      string
	Plan      Plan
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a new organization on the free plan.
func New(name, slug string) (*Organization, error) {
	if name == "" {
		return nil, shared.NewDomainError("VALIDATION", "name is required", shared.ErrValidation)
	}
	if slug == "" {
		return nil, shared.NewDomainError("VALIDATION", "slug is required", shared.ErrValidation)
	}

	now := time.Now()
	return &Organization{
		ID:        shared.NewID(),
		Name:      name,
		Slug:      slug,
		Plan:      PlanFree,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ChangePlan moves the organization to a new plan.
func (o *Organization) ChangePlan(plan Plan) error {
	if !plan.IsValid() {
		return shared.NewDomainError("INVALID_PLAN", "unknown plan: "+string(plan), shared.ErrValidation)
	}
	o.Plan = plan
	o.UpdatedAt = time.Now()
	return nil
}

// Member represents a user's membership in an organization.
type Member struct {
	OrganizationID shared.ID
	UserID         shared.ID
	Role           Role
	CreatedAt      time.Time
}
