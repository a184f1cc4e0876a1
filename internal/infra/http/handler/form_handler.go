package handler

import (
	"context"
	"net/http"

	"github.com/netpad/api/internal/app"
	"github.com/netpad/api/pkg/apierror"
	"github.com/netpad/api/pkg/domain/form"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/logger"
	"github.com/netpad/api/pkg/validator"
)

// FormHandler handles hosted form endpoints.
type FormHandler struct {
	forms     *app.FormService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewFormHandler creates a new form handler.
func NewFormHandler(forms *app.FormService, v *validator.Validator, log *logger.Logger) *FormHandler {
	return &FormHandler{
		forms:     forms,
		validator: v,
		logger:    log.With("handler", "form"),
	}
}

// FieldRequest represents a form field definition.
type FieldRequest struct {
	Key      string   `json:"key" validate:"required,min=1,max=100"`
	Type     string   `json:"type" validate:"required,oneof=text textarea number email select checkbox date"`
	Label    string   `json:"label" validate:"required,max=255"`
	Required bool     `json:"required"`
	Options  []string `json:"options"`
}

// CreateFormRequest is the payload for POST /forms.
type CreateFormRequest struct {
	Name         string         `json:"name" validate:"required,min=1,max=255"`
	Slug         string         `json:"slug" validate:"omitempty,slug,max=100"`
	WorkflowID   string         `json:"workflow_id" validate:"omitempty,uuid"`
	DataSourceID string         `json:"data_source_id" validate:"omitempty,uuid"`
	Fields       []FieldRequest `json:"fields" validate:"dive"`
}

// UpdateFormRequest is the payload for PUT /forms/{formId}.
type UpdateFormRequest struct {
	Name         string         `json:"name" validate:"max=255"`
	WorkflowID   string         `json:"workflow_id" validate:"omitempty,uuid"`
	DataSourceID string         `json:"data_source_id" validate:"omitempty,uuid"`
	Fields       []FieldRequest `json:"fields" validate:"dive"`
}

// FieldResponse represents a form field in API responses.
type FieldResponse struct {
	Key      string   `json:"key"`
	Type     string   `json:"type"`
	Label    string   `json:"label"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

// FormResponse represents a form in API responses.
type FormResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	Status       string          `json:"status"`
	Version      int             `json:"version"`
	WorkflowID   string          `json:"workflow_id,omitempty"`
	DataSourceID string          `json:"data_source_id,omitempty"`
	Fields       []FieldResponse `json:"fields"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

// PublicFormResponse is the projection served on the public slug endpoint.
type PublicFormResponse struct {
	Name    string          `json:"name"`
	Slug    string          `json:"slug"`
	Version int             `json:"version"`
	Fields  []FieldResponse `json:"fields"`
}

func toFormResponse(f *form.Form) FormResponse {
	resp := FormResponse{
		ID:        f.ID.String(),
		Name:      f.Name,
		Slug:      f.Slug,
		Status:    string(f.Status),
		Version:   f.Version,
		Fields:    toFieldResponses(f.Fields),
		CreatedAt: formatTime(f.CreatedAt),
		UpdatedAt: formatTime(f.UpdatedAt),
	}
	if f.WorkflowID != nil {
		resp.WorkflowID = f.WorkflowID.String()
	}
	if f.DataSourceID != nil {
		resp.DataSourceID = f.DataSourceID.String()
	}
	return resp
}

func toPublicFormResponse(f *form.Form) PublicFormResponse {
	return PublicFormResponse{
		Name:    f.Name,
		Slug:    f.Slug,
		Version: f.Version,
		Fields:  toFieldResponses(f.Fields),
	}
}

func toFieldResponses(fields []form.Field) []FieldResponse {
	out := make([]FieldResponse, 0, len(fields))
	for _, f := range fields {
		out = append(out, FieldResponse{
			Key:      f.Key,
			Type:     string(f.Type),
			Label:    f.Label,
			Required: f.Required,
			Options:  f.Options,
		})
	}
	return out
}

func toFields(fields []FieldRequest) []form.Field {
	out := make([]form.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, form.Field{
			Key:      f.Key,
			Type:     form.FieldType(f.Type),
			Label:    f.Label,
			Required: f.Required,
			Options:  f.Options,
		})
	}
	return out
}

// optionalID parses an optional UUID string into a *shared.ID.
func optionalID(s string) (*shared.ID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := shared.IDFromString(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Create handles POST /api/v1/forms.
func (h *FormHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, userID, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}

	var req CreateFormRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WithError(err).WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	workflowID, err := optionalID(req.WorkflowID)
	if err != nil {
		apierror.BadRequest("Invalid workflow ID").WriteJSON(w)
		return
	}
	dataSourceID, err := optionalID(req.DataSourceID)
	if err != nil {
		apierror.BadRequest("Invalid data source ID").WriteJSON(w)
		return
	}

	created, err := h.forms.CreateForm(r.Context(), app.CreateFormInput{
		OrganizationID: orgID,
		UserID:         userID,
		WorkflowID:     workflowID,
		DataSourceID:   dataSourceID,
		Name:           req.Name,
		Slug:           req.Slug,
		Fields:         toFields(req.Fields),
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFormResponse(created))
}

// Get handles GET /api/v1/forms/{formId}.
func (h *FormHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}
	formID, err := pathID(r, "formId")
	if err != nil {
		apierror.BadRequest("Invalid form ID").WriteJSON(w)
		return
	}

	found, err := h.forms.GetForm(r.Context(), orgID, formID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toFormResponse(found))
}

// List handles GET /api/v1/forms.
func (h *FormHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}

	result, err := h.forms.ListForms(r.Context(), orgID, parsePage(r))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newListResponse(result, toFormResponse))
}

// Update handles PUT /api/v1/forms/{formId}.
func (h *FormHandler) Update(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}
	formID, err := pathID(r, "formId")
	if err != nil {
		apierror.BadRequest("Invalid form ID").WriteJSON(w)
		return
	}

	var req UpdateFormRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WithError(err).WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	workflowID, err := optionalID(req.WorkflowID)
	if err != nil {
		apierror.BadRequest("Invalid workflow ID").WriteJSON(w)
		return
	}
	dataSourceID, err := optionalID(req.DataSourceID)
	if err != nil {
		apierror.BadRequest("Invalid data source ID").WriteJSON(w)
		return
	}

	input := app.UpdateFormInput{
		OrganizationID: orgID,
		FormID:         formID,
		Name:           req.Name,
		WorkflowID:     workflowID,
		DataSourceID:   dataSourceID,
	}
	if req.Fields != nil {
		input.Fields = toFields(req.Fields)
	}

	updated, err := h.forms.UpdateForm(r.Context(), input)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toFormResponse(updated))
}

// Publish handles POST /api/v1/forms/{formId}/publish.
func (h *FormHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.forms.PublishForm)
}

// Archive handles POST /api/v1/forms/{formId}/archive.
func (h *FormHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.forms.ArchiveForm)
}

func (h *FormHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, orgID, id shared.ID) (*form.Form, error)) {
	orgID, _, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}
	formID, err := pathID(r, "formId")
	if err != nil {
		apierror.BadRequest("Invalid form ID").WriteJSON(w)
		return
	}

	updated, err := fn(r.Context(), orgID, formID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toFormResponse(updated))
}

// Delete handles DELETE /api/v1/forms/{formId}.
func (h *FormHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}
	formID, err := pathID(r, "formId")
	if err != nil {
		apierror.BadRequest("Invalid form ID").WriteJSON(w)
		return
	}

	if err := h.forms.DeleteForm(r.Context(), orgID, formID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetPublic handles GET /api/v1/forms/public/{slug}. Unauthenticated.
// Unpublished forms are indistinguishable from missing ones.
func (h *FormHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	slug := pathParam(r, "slug")
	if slug == "" {
		apierror.BadRequest("Missing slug").WriteJSON(w)
		return
	}

	found, err := h.forms.GetPublicForm(r.Context(), slug)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toPublicFormResponse(found))
}
