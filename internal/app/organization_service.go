package app

import (
	"context"
	"fmt"
	"time"

	"github.com/netpad/api/pkg/domain/organization"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/logger"
)

// OrganizationService handles tenant account operations.
type OrganizationService struct {
	orgRepo organization.Repository
	logger  *logger.Logger
}

// NewOrganizationService creates a new OrganizationService.
func NewOrganizationService(orgRepo organization.Repository, log *logger.Logger) *OrganizationService {
	return &OrganizationService{
		orgRepo: orgRepo,
		logger:  log.With("service", "organization"),
	}
}

// CreateOrganizationInput represents input for creating an organization.
type CreateOrganizationInput struct {
	Name    string
	Slug    string
	Plan    organization.Plan
	OwnerID shared.ID
}

// CreateOrganization creates an organization and records its owner.
func (s *OrganizationService) CreateOrganization(ctx context.Context, input CreateOrganizationInput) (*organization.Organization, error) {
	org, err := organization.New(input.Name, input.Slug)
	if err != nil {
		return nil, err
	}
	if input.Plan != "" {
		if err := org.ChangePlan(input.Plan); err != nil {
			return nil, err
		}
	}

	if err := s.orgRepo.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	if !input.OwnerID.IsZero() {
		member := &organization.Member{
			OrganizationID: org.ID,
			UserID:         input.OwnerID,
			Role:           organization.RoleOwner,
			CreatedAt:      time.Now(),
		}
		if err := s.orgRepo.AddMember(ctx, member); err != nil {
			return nil, fmt.Errorf("failed to add owner: %w", err)
		}
	}

	s.logger.Info("organization created",
		"org_id", org.ID.String(),
		"slug", org.Slug,
		"plan", string(org.Plan),
	)
	return org, nil
}

// GetOrganization returns an organization by id.
func (s *OrganizationService) GetOrganization(ctx context.Context, id shared.ID) (*organization.Organization, error) {
	return s.orgRepo.GetByID(ctx, id)
}

// ChangePlan moves an organization to a new plan.
func (s *OrganizationService) ChangePlan(ctx context.Context, orgID shared.ID, plan organization.Plan) (*organization.Organization, error) {
	org, err := s.orgRepo.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := org.ChangePlan(plan); err != nil {
		return nil, err
	}
	if err := s.orgRepo.Update(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to change plan: %w", err)
	}
	s.logger.Info("organization plan changed", "org_id", org.ID.String(), "plan", string(plan))
	return org, nil
}

// AddMemberInput represents input for adding an organization member.
type AddMemberInput struct {
	OrganizationID shared.ID
	UserID         shared.ID
	Role           organization.Role
}

// AddMember records a user's membership in an organization.
func (s *OrganizationService) AddMember(ctx context.Context, input AddMemberInput) error {
	if !input.Role.IsValid() {
		return shared.NewDomainError("VALIDATION", "invalid role: "+string(input.Role), shared.ErrValidation)
	}
	member := &organization.Member{
		OrganizationID: input.OrganizationID,
		UserID:         input.UserID,
		Role:           input.Role,
		CreatedAt:      time.Now(),
	}
	if err := s.orgRepo.AddMember(ctx, member); err != nil {
		return err
	}
	s.logger.Info("member added",
		"org_id", input.OrganizationID.String(),
		"user_id", input.UserID.String(),
		"role", string(input.Role),
	)
	return nil
}
