package handler

import (
	"net/http"

	"github.com/netpad/api/internal/app"
	"github.com/netpad/api/internal/infra/http/middleware"
	"github.com/netpad/api/pkg/apierror"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/domain/workflow"
	"github.com/netpad/api/pkg/logger"
	"github.com/netpad/api/pkg/validator"
)

// WorkflowHandler handles workflow CRUD and lifecycle endpoints.
type WorkflowHandler struct {
	workflows *app.WorkflowService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewWorkflowHandler creates a new workflow handler.
func NewWorkflowHandler(workflows *app.WorkflowService, v *validator.Validator, log *logger.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		workflows: workflows,
		validator: v,
		logger:    log.With("handler", "workflow"),
	}
}

// NodeRequest represents a canvas node in a create/update request.
type NodeRequest struct {
	NodeKey   string         `json:"node_key" validate:"required,min=1,max=100"`
	Type      string         `json:"type" validate:"required"`
	Name      string         `json:"name" validate:"max=255"`
	Config    map[string]any `json:"config"`
	PositionX float64        `json:"position_x"`
	PositionY float64        `json:"position_y"`
}

// EdgeRequest represents a canvas edge in a create/update request.
type EdgeRequest struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Label  string `json:"label" validate:"max=50"`
}

// SettingsRequest represents workflow execution settings.
type SettingsRequest struct {
	ExecutionMode string `json:"execution_mode" validate:"omitempty,oneof=sequential parallel"`
	MaxRetries    int    `json:"max_retries" validate:"min=0,max=10"`
}

// EmbedSettingsRequest represents workflow embed settings.
type EmbedSettingsRequest struct {
	AllowPublicViewing bool `json:"allow_public_viewing"`
}

// CreateWorkflowRequest is the payload for POST /workflows.
type CreateWorkflowRequest struct {
	Name          string                `json:"name" validate:"required,min=1,max=255"`
	Description   string                `json:"description" validate:"max=2000"`
	Settings      *SettingsRequest      `json:"settings"`
	EmbedSettings *EmbedSettingsRequest `json:"embed_settings"`
	Nodes         []NodeRequest         `json:"nodes" validate:"dive"`
	Edges         []EdgeRequest         `json:"edges" validate:"dive"`
}

// UpdateWorkflowRequest is the payload for PUT /workflows/{workflowId}.
type UpdateWorkflowRequest struct {
	Name          string                `json:"name" validate:"max=255"`
	Description   *string               `json:"description" validate:"omitempty,max=2000"`
	Settings      *SettingsRequest      `json:"settings"`
	EmbedSettings *EmbedSettingsRequest `json:"embed_settings"`
	Nodes         []NodeRequest         `json:"nodes" validate:"dive"`
	Edges         []EdgeRequest         `json:"edges" validate:"dive"`
}

// ChangeStatusRequest is the payload for PATCH /workflows/{workflowId}/status.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,workflow_status"`
}

// NodeResponse represents a canvas node in API responses.
type NodeResponse struct {
	NodeKey   string         `json:"node_key"`
	Type      string         `json:"type"`
	Name      string         `json:"name"`
	Config    map[string]any `json:"config,omitempty"`
	PositionX float64        `json:"position_x"`
	PositionY float64        `json:"position_y"`
}

// EdgeResponse represents a canvas edge in API responses.
type EdgeResponse struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// WorkflowResponse represents a workflow in API responses.
type WorkflowResponse struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Description   string                `json:"description,omitempty"`
	Slug          string                `json:"slug"`
	Status        string                `json:"status"`
	Version       int                   `json:"version"`
	Settings      SettingsRequest       `json:"settings"`
	EmbedSettings EmbedSettingsRequest  `json:"embed_settings"`
	Nodes         []NodeResponse        `json:"nodes"`
	Edges         []EdgeResponse        `json:"edges"`
	CreatedAt     string                `json:"created_at"`
	UpdatedAt     string                `json:"updated_at"`
}

// PublicWorkflowResponse is the reduced projection served on the public
// slug endpoint. No organization, authorship, or settings details leak.
type PublicWorkflowResponse struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Slug        string         `json:"slug"`
	Nodes       []NodeResponse `json:"nodes"`
	Edges       []EdgeResponse `json:"edges"`
}

// PublicWorkflowMetadataResponse is the canvas-free variant served when
// the caller only needs summary information for an embed card.
type PublicWorkflowMetadataResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Slug        string `json:"slug"`
	NodeCount   int    `json:"node_count"`
	EdgeCount   int    `json:"edge_count"`
}

func toWorkflowResponse(w *workflow.Workflow) WorkflowResponse {
	return WorkflowResponse{
		ID:          w.ID.String(),
		Name:        w.Name,
		Description: w.Description,
		Slug:        w.Slug,
		Status:      string(w.Status),
		Version:     w.Version,
		Settings: SettingsRequest{
			ExecutionMode: string(w.Settings.ExecutionMode),
			MaxRetries:    w.Settings.RetryPolicy.MaxRetries,
		},
		EmbedSettings: EmbedSettingsRequest{
			AllowPublicViewing: w.EmbedSettings.AllowPublicViewing,
		},
		Nodes:     toNodeResponses(w.Nodes),
		Edges:     toEdgeResponses(w.Edges),
		CreatedAt: formatTime(w.CreatedAt),
		UpdatedAt: formatTime(w.UpdatedAt),
	}
}

func toPublicWorkflowResponse(w *workflow.Workflow) PublicWorkflowResponse {
	return PublicWorkflowResponse{
		Name:        w.Name,
		Description: w.Description,
		Slug:        w.Slug,
		Nodes:       toNodeResponses(w.Nodes),
		Edges:       toEdgeResponses(w.Edges),
	}
}

func toNodeResponses(nodes []*workflow.Node) []NodeResponse {
	out := make([]NodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, NodeResponse{
			NodeKey:   n.NodeKey,
			Type:      string(n.Type),
			Name:      n.Name,
			Config:    n.Config,
			PositionX: n.UIPosition.X,
			PositionY: n.UIPosition.Y,
		})
	}
	return out
}

func toEdgeResponses(edges []*workflow.Edge) []EdgeResponse {
	out := make([]EdgeResponse, 0, len(edges))
	for _, e := range edges {
		out = append(out, EdgeResponse{
			Source: e.SourceNodeKey,
			Target: e.TargetNodeKey,
			Label:  e.Label,
		})
	}
	return out
}

func toNodeInputs(nodes []NodeRequest) []app.CreateNodeInput {
	out := make([]app.CreateNodeInput, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, app.CreateNodeInput{
			NodeKey:     n.NodeKey,
			Type:        workflow.NodeType(n.Type),
			Name:        n.Name,
			Config:      n.Config,
			UIPositionX: n.PositionX,
			UIPositionY: n.PositionY,
		})
	}
	return out
}

func toEdgeInputs(edges []EdgeRequest) []app.CreateEdgeInput {
	out := make([]app.CreateEdgeInput, 0, len(edges))
	for _, e := range edges {
		out = append(out, app.CreateEdgeInput{
			SourceNodeKey: e.Source,
			TargetNodeKey: e.Target,
			Label:         e.Label,
		})
	}
	return out
}

func toSettings(req *SettingsRequest) *workflow.Settings {
	if req == nil {
		return nil
	}
	settings := workflow.DefaultSettings()
	if req.ExecutionMode != "" {
		settings.ExecutionMode = workflow.ExecutionMode(req.ExecutionMode)
	}
	settings.RetryPolicy.MaxRetries = req.MaxRetries
	return &settings
}

func toEmbedSettings(req *EmbedSettingsRequest) *workflow.EmbedSettings {
	if req == nil {
		return nil
	}
	return &workflow.EmbedSettings{AllowPublicViewing: req.AllowPublicViewing}
}

// requestScope extracts org and user IDs placed in context by middleware.
func requestScope(r *http.Request) (orgID, userID shared.ID, err error) {
	orgID, err = shared.IDFromString(middleware.GetOrgID(r.Context()))
	if err != nil {
		return shared.ID{}, shared.ID{}, err
	}
	userID, err = shared.IDFromString(middleware.GetUserID(r.Context()))
	if err != nil {
		return shared.ID{}, shared.ID{}, err
	}
	return orgID, userID, nil
}

// Create handles POST /api/v1/workflows.
func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, userID, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}

	var req CreateWorkflowRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WithError(err).WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	created, err := h.workflows.CreateWorkflow(r.Context(), app.CreateWorkflowInput{
		OrganizationID: orgID,
		UserID:         userID,
		Name:           req.Name,
		Description:    req.Description,
		Settings:       toSettings(req.Settings),
		EmbedSettings:  toEmbedSettings(req.EmbedSettings),
		Nodes:          toNodeInputs(req.Nodes),
		Edges:          toEdgeInputs(req.Edges),
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toWorkflowResponse(created))
}

// Get handles GET /api/v1/workflows/{workflowId}.
func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}
	workflowID, err := pathID(r, "workflowId")
	if err != nil {
		apierror.BadRequest("Invalid workflow ID").WriteJSON(w)
		return
	}

	found, err := h.workflows.GetWorkflow(r.Context(), orgID, workflowID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toWorkflowResponse(found))
}

// List handles GET /api/v1/workflows.
func (h *WorkflowHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}

	status := workflow.Status(queryParam(r, "status"))
	if status != "" && !status.IsValid() {
		apierror.BadRequest("Invalid status filter").WriteJSON(w)
		return
	}

	result, err := h.workflows.ListWorkflows(r.Context(), app.ListWorkflowsInput{
		OrganizationID: orgID,
		Status:         status,
		Search:         queryParam(r, "search"),
		Page:           parsePage(r),
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newListResponse(result, toWorkflowResponse))
}

// Update handles PUT /api/v1/workflows/{workflowId}.
func (h *WorkflowHandler) Update(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}
	workflowID, err := pathID(r, "workflowId")
	if err != nil {
		apierror.BadRequest("Invalid workflow ID").WriteJSON(w)
		return
	}

	var req UpdateWorkflowRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WithError(err).WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	input := app.UpdateWorkflowInput{
		OrganizationID: orgID,
		WorkflowID:     workflowID,
		Name:           req.Name,
		Description:    req.Description,
		Settings:       toSettings(req.Settings),
		EmbedSettings:  toEmbedSettings(req.EmbedSettings),
	}
	if req.Nodes != nil {
		input.Nodes = toNodeInputs(req.Nodes)
		input.Edges = toEdgeInputs(req.Edges)
	}

	updated, err := h.workflows.UpdateWorkflow(r.Context(), input)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toWorkflowResponse(updated))
}

// ChangeStatus handles PATCH /api/v1/workflows/{workflowId}/status.
func (h *WorkflowHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	orgID, userID, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}
	workflowID, err := pathID(r, "workflowId")
	if err != nil {
		apierror.BadRequest("Invalid workflow ID").WriteJSON(w)
		return
	}

	var req ChangeStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WithError(err).WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	updated, err := h.workflows.ChangeStatus(r.Context(), app.ChangeStatusInput{
		OrganizationID: orgID,
		WorkflowID:     workflowID,
		UserID:         userID,
		Status:         workflow.Status(req.Status),
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toWorkflowResponse(updated))
}

// Delete handles DELETE /api/v1/workflows/{workflowId}.
func (h *WorkflowHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}
	workflowID, err := pathID(r, "workflowId")
	if err != nil {
		apierror.BadRequest("Invalid workflow ID").WriteJSON(w)
		return
	}

	if err := h.workflows.DeleteWorkflow(r.Context(), orgID, workflowID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetPublic handles GET /api/v1/workflows/public/{slug}. Unauthenticated.
// Workflows without public viewing enabled are indistinguishable from
// missing ones.
func (h *WorkflowHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	slug := pathParam(r, "slug")
	if slug == "" {
		apierror.BadRequest("Missing slug").WriteJSON(w)
		return
	}

	found, err := h.workflows.GetPublicWorkflow(r.Context(), slug)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	if parseQueryBool(queryParam(r, "metadata")) {
		writeJSON(w, http.StatusOK, PublicWorkflowMetadataResponse{
			Name:        found.Name,
			Description: found.Description,
			Slug:        found.Slug,
			NodeCount:   len(found.Nodes),
			EdgeCount:   len(found.Edges),
		})
		return
	}

	writeJSON(w, http.StatusOK, toPublicWorkflowResponse(found))
}
