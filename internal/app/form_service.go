package app

import (
	"context"
	"fmt"

	"github.com/netpad/api/pkg/domain/form"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/domain/workflow"
	"github.com/netpad/api/pkg/logger"
	"github.com/netpad/api/pkg/pagination"
)

// FormService handles hosted form operations.
type FormService struct {
	formRepo     form.Repository
	workflowRepo workflow.Repository
	logger       *logger.Logger
}

// NewFormService creates a new FormService.
func NewFormService(formRepo form.Repository, workflowRepo workflow.Repository, log *logger.Logger) *FormService {
	return &FormService{
		formRepo:     formRepo,
		workflowRepo: workflowRepo,
		logger:       log.With("service", "form"),
	}
}

// CreateFormInput represents input for creating a form.
type CreateFormInput struct {
	OrganizationID shared.ID
	UserID         shared.ID
	WorkflowID     *shared.ID
	DataSourceID   *shared.ID
	Name           string
	Slug           string
	Fields         []form.Field
}

// CreateForm creates a new draft form.
func (s *FormService) CreateForm(ctx context.Context, input CreateFormInput) (*form.Form, error) {
	if input.WorkflowID != nil {
		// The linked workflow must belong to the same organization.
		if _, err := s.workflowRepo.GetByOrgAndID(ctx, input.OrganizationID, *input.WorkflowID); err != nil {
			return nil, err
		}
	}

	slug := input.Slug
	if slug == "" {
		slug = workflow.Slugify(input.Name)
	}

	f, err := form.New(input.OrganizationID, input.Name, slug)
	if err != nil {
		return nil, err
	}
	f.WorkflowID = input.WorkflowID
	f.DataSourceID = input.DataSourceID
	if !input.UserID.IsZero() {
		userID := input.UserID
		f.CreatedBy = &userID
	}
	if len(input.Fields) > 0 {
		if err := f.SetFields(input.Fields); err != nil {
			return nil, err
		}
		f.Version = 1
	}

	if err := s.formRepo.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}

	s.logger.Info("form created", "form_id", f.ID.String(), "org_id", f.OrganizationID.String())
	return f, nil
}

// GetForm returns a form scoped to an organization.
func (s *FormService) GetForm(ctx context.Context, orgID, id shared.ID) (*form.Form, error) {
	return s.formRepo.GetByOrgAndID(ctx, orgID, id)
}

// GetPublicForm returns a published form by slug. Unpublished forms are
// indistinguishable from missing ones.
func (s *FormService) GetPublicForm(ctx context.Context, slug string) (*form.Form, error) {
	f, err := s.formRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if f.Status != form.StatusPublished {
		return nil, shared.NewDomainError("NOT_FOUND", "form not found", shared.ErrNotFound)
	}
	return f, nil
}

// ListForms returns an organization's forms, newest first.
func (s *FormService) ListForms(ctx context.Context, orgID shared.ID, page pagination.Page) (pagination.Result[*form.Form], error) {
	return s.formRepo.List(ctx, orgID, page)
}

// UpdateFormInput represents input for updating a form.
type UpdateFormInput struct {
	OrganizationID shared.ID
	FormID         shared.ID
	Name           string
	WorkflowID     *shared.ID
	DataSourceID   *shared.ID
	Fields         []form.Field
}

// UpdateForm updates a form's metadata and field schema.
func (s *FormService) UpdateForm(ctx context.Context, input UpdateFormInput) (*form.Form, error) {
	f, err := s.formRepo.GetByOrgAndID(ctx, input.OrganizationID, input.FormID)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		f.Name = input.Name
	}
	if input.WorkflowID != nil {
		if _, err := s.workflowRepo.GetByOrgAndID(ctx, input.OrganizationID, *input.WorkflowID); err != nil {
			return nil, err
		}
		f.WorkflowID = input.WorkflowID
	}
	if input.DataSourceID != nil {
		f.DataSourceID = input.DataSourceID
	}
	if input.Fields != nil {
		if err := f.SetFields(input.Fields); err != nil {
			return nil, err
		}
	}

	if err := s.formRepo.Update(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to update form: %w", err)
	}
	return f, nil
}

// PublishForm makes a form live.
func (s *FormService) PublishForm(ctx context.Context, orgID, id shared.ID) (*form.Form, error) {
	f, err := s.formRepo.GetByOrgAndID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := f.Publish(); err != nil {
		return nil, err
	}
	if err := s.formRepo.Update(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to publish form: %w", err)
	}
	s.logger.Info("form published", "form_id", f.ID.String())
	return f, nil
}

// ArchiveForm retires a form.
func (s *FormService) ArchiveForm(ctx context.Context, orgID, id shared.ID) (*form.Form, error) {
	f, err := s.formRepo.GetByOrgAndID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	f.Archive()
	if err := s.formRepo.Update(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to archive form: %w", err)
	}
	return f, nil
}

// DeleteForm removes a form.
func (s *FormService) DeleteForm(ctx context.Context, orgID, id shared.ID) error {
	return s.formRepo.Delete(ctx, orgID, id)
}
