package app

import (
	"context"
	"fmt"

	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/domain/workflow"
	"github.com/netpad/api/pkg/logger"
	"github.com/netpad/api/pkg/pagination"
)

// ProjectionCache caches public workflow projections by slug. Lookups and
// stores are best effort; implementations must not fail the request path.
type ProjectionCache interface {
	GetWorkflow(ctx context.Context, slug string) (*workflow.Workflow, bool)
	SetWorkflow(ctx context.Context, slug string, w *workflow.Workflow)
}

// WorkflowService handles workflow-related business operations.
type WorkflowService struct {
	workflowRepo    workflow.Repository
	projectionCache ProjectionCache
	logger          *logger.Logger
}

// WorkflowServiceOption is a functional option for WorkflowService.
type WorkflowServiceOption func(*WorkflowService)

// WithProjectionCache enables caching of public workflow projections.
func WithProjectionCache(cache ProjectionCache) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.projectionCache = cache
	}
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(workflowRepo workflow.Repository, log *logger.Logger, opts ...WorkflowServiceOption) *WorkflowService {
	s := &WorkflowService{
		workflowRepo: workflowRepo,
		logger:       log.With("service", "workflow"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateNodeInput represents input for creating a workflow node.
type CreateNodeInput struct {
	NodeKey     string
	Type        workflow.NodeType
	Name        string
	Config      map[string]any
	UIPositionX float64
	UIPositionY float64
}

// CreateEdgeInput represents input for creating a workflow edge.
type CreateEdgeInput struct {
	SourceNodeKey string
	TargetNodeKey string
	Label         string
}

// CreateWorkflowInput represents input for creating a workflow.
type CreateWorkflowInput struct {
	OrganizationID shared.ID
	UserID         shared.ID
	Name           string
	Description    string
	Settings       *workflow.Settings
	EmbedSettings  *workflow.EmbedSettings
	Nodes          []CreateNodeInput
	Edges          []CreateEdgeInput
}

// CreateWorkflow creates a new draft workflow with its nodes and edges.
func (s *WorkflowService) CreateWorkflow(ctx context.Context, input CreateWorkflowInput) (*workflow.Workflow, error) {
	w, err := workflow.NewWorkflow(input.OrganizationID, input.Name, input.Description)
	if err != nil {
		return nil, err
	}

	if !input.UserID.IsZero() {
		w.SetCreatedBy(input.UserID)
	}
	if input.Settings != nil {
		w.Settings = *input.Settings
	}
	if input.EmbedSettings != nil {
		w.EmbedSettings = *input.EmbedSettings
	}

	if err := buildCanvas(w, input.Nodes, input.Edges); err != nil {
		return nil, err
	}

	if err := s.workflowRepo.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	s.logger.Info("workflow created",
		"workflow_id", w.ID.String(),
		"org_id", w.OrganizationID.String(),
		"nodes", len(w.Nodes),
	)
	return w, nil
}

// GetWorkflow returns a workflow scoped to an organization.
func (s *WorkflowService) GetWorkflow(ctx context.Context, orgID, id shared.ID) (*workflow.Workflow, error) {
	return s.workflowRepo.GetByOrgAndID(ctx, orgID, id)
}

// ListWorkflowsInput represents input for listing workflows.
type ListWorkflowsInput struct {
	OrganizationID shared.ID
	Status         workflow.Status
	Search         string
	Page           pagination.Page
}

// ListWorkflows returns an organization's workflows, newest first.
func (s *WorkflowService) ListWorkflows(ctx context.Context, input ListWorkflowsInput) (pagination.Result[*workflow.Workflow], error) {
	return s.workflowRepo.List(ctx, input.OrganizationID, workflow.Filter{
		Status: input.Status,
		Search: input.Search,
	}, input.Page)
}

// UpdateWorkflowInput represents input for updating a workflow's canvas.
type UpdateWorkflowInput struct {
	OrganizationID shared.ID
	WorkflowID     shared.ID
	Name           string
	Description    *string
	Settings       *workflow.Settings
	EmbedSettings  *workflow.EmbedSettings
	Nodes          []CreateNodeInput
	Edges          []CreateEdgeInput
}

// UpdateWorkflow updates a workflow's metadata and replaces its canvas.
// Structural changes bump the workflow version so historical executions
// remain attributable to the canvas they ran against.
func (s *WorkflowService) UpdateWorkflow(ctx context.Context, input UpdateWorkflowInput) (*workflow.Workflow, error) {
	w, err := s.workflowRepo.GetByOrgAndID(ctx, input.OrganizationID, input.WorkflowID)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		w.Name = input.Name
	}
	if input.Description != nil {
		w.Description = *input.Description
	}
	if input.Settings != nil {
		w.Settings = *input.Settings
	}
	if input.EmbedSettings != nil {
		w.EmbedSettings = *input.EmbedSettings
	}

	if input.Nodes != nil {
		w.Nodes = nil
		w.Edges = nil
		if err := buildCanvas(w, input.Nodes, input.Edges); err != nil {
			return nil, err
		}
		w.BumpVersion()
	}

	if err := s.workflowRepo.Update(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	s.logger.Info("workflow updated",
		"workflow_id", w.ID.String(),
		"version", w.Version,
	)
	return w, nil
}

// ChangeStatusInput represents input for a workflow status transition.
type ChangeStatusInput struct {
	OrganizationID shared.ID
	WorkflowID     shared.ID
	UserID         shared.ID
	Status         workflow.Status
}

// ChangeStatus transitions a workflow to a new lifecycle status.
func (s *WorkflowService) ChangeStatus(ctx context.Context, input ChangeStatusInput) (*workflow.Workflow, error) {
	w, err := s.workflowRepo.GetByOrgAndID(ctx, input.OrganizationID, input.WorkflowID)
	if err != nil {
		return nil, err
	}

	from := w.Status
	if err := w.TransitionTo(input.Status, input.UserID); err != nil {
		return nil, err
	}

	if err := s.workflowRepo.UpdateStatus(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to persist status change: %w", err)
	}

	s.logger.Info("workflow status changed",
		"workflow_id", w.ID.String(),
		"from", string(from),
		"to", string(w.Status),
		"user_id", input.UserID.String(),
	)
	return w, nil
}

// GetPublicWorkflow returns the public projection of a workflow by slug.
// Workflows that have not opted into public viewing are indistinguishable
// from missing ones.
func (s *WorkflowService) GetPublicWorkflow(ctx context.Context, slug string) (*workflow.Workflow, error) {
	if s.projectionCache != nil {
		if w, ok := s.projectionCache.GetWorkflow(ctx, slug); ok {
			return w, nil
		}
	}

	w, err := s.workflowRepo.GetBySlug(ctx, slug)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, errPublicWorkflowNotFound()
		}
		return nil, err
	}
	if !w.EmbedSettings.AllowPublicViewing {
		return nil, errPublicWorkflowNotFound()
	}

	// Only opted-in workflows are cached, so a cache hit never bypasses
	// the public-viewing gate.
	if s.projectionCache != nil {
		s.projectionCache.SetWorkflow(ctx, slug, w)
	}
	return w, nil
}

// DeleteWorkflow removes a workflow and its executions.
func (s *WorkflowService) DeleteWorkflow(ctx context.Context, orgID, id shared.ID) error {
	if err := s.workflowRepo.Delete(ctx, orgID, id); err != nil {
		return err
	}
	s.logger.Info("workflow deleted", "workflow_id", id.String(), "org_id", orgID.String())
	return nil
}

// errPublicWorkflowNotFound is returned for both missing and non-public
// slugs so the public endpoint cannot be used to enumerate private
// workflows.
func errPublicWorkflowNotFound() error {
	return shared.NewDomainError("WORKFLOW_NOT_FOUND", "workflow not found", shared.ErrNotFound)
}

// buildCanvas constructs and validates the node/edge graph on a workflow.
func buildCanvas(w *workflow.Workflow, nodes []CreateNodeInput, edges []CreateEdgeInput) error {
	for _, nodeInput := range nodes {
		node, err := workflow.NewNode(nodeInput.NodeKey, nodeInput.Type, nodeInput.Name)
		if err != nil {
			return fmt.Errorf("node %s: %w", nodeInput.NodeKey, err)
		}
		if nodeInput.Config != nil {
			node.Config = nodeInput.Config
		}
		node.UIPosition = workflow.UIPosition{X: nodeInput.UIPositionX, Y: nodeInput.UIPositionY}
		w.AddNode(node)
	}

	for _, edgeInput := range edges {
		edge, err := workflow.NewEdge(edgeInput.SourceNodeKey, edgeInput.TargetNodeKey)
		if err != nil {
			return fmt.Errorf("edge %s->%s: %w", edgeInput.SourceNodeKey, edgeInput.TargetNodeKey, err)
		}
		edge.Label = edgeInput.Label
		w.AddEdge(edge)
	}

	return w.ValidateGraph()
}
