package handler

import (
	"net/http"

	"github.com/netpad/api/internal/app"
	"github.com/netpad/api/internal/infra/http/middleware"
	"github.com/netpad/api/pkg/apierror"
	"github.com/netpad/api/pkg/domain/organization"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/logger"
	"github.com/netpad/api/pkg/validator"
)

// OrganizationHandler handles organization account endpoints.
type OrganizationHandler struct {
	orgs      *app.OrganizationService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewOrganizationHandler creates a new organization handler.
func NewOrganizationHandler(orgs *app.OrganizationService, v *validator.Validator, log *logger.Logger) *OrganizationHandler {
	return &OrganizationHandler{
		orgs:      orgs,
		validator: v,
		logger:    log.With("handler", "organization"),
	}
}

// CreateOrganizationRequest is the payload for POST /orgs.
type CreateOrganizationRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
	Slug string `json:"slug" validate:"required,slug,max=100"`
	Plan string `json:"plan" validate:"omitempty,oneof=free pro enterprise"`
}

// ChangePlanRequest is the payload for PATCH /orgs/{orgId}/plan.
type ChangePlanRequest struct {
	Plan string `json:"plan" validate:"required,oneof=free pro enterprise"`
}

// AddMemberRequest is the payload for POST /orgs/{orgId}/members.
type AddMemberRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Role   string `json:"role" validate:"required,oneof=owner admin member viewer"`
}

// OrganizationResponse represents an organization in API responses.
type OrganizationResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Plan      string `json:"plan"`
	CreatedAt string `json:"created_at"`
}

func toOrganizationResponse(org *organization.Organization) OrganizationResponse {
	return OrganizationResponse{
		ID:        org.ID.String(),
		Name:      org.Name,
		Slug:      org.Slug,
		Plan:      string(org.Plan),
		CreatedAt: formatTime(org.CreatedAt),
	}
}

// Create handles POST /api/v1/orgs. The creating user becomes owner.
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := shared.IDFromString(middleware.GetUserID(r.Context()))
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}

	var req CreateOrganizationRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WithError(err).WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	created, err := h.orgs.CreateOrganization(r.Context(), app.CreateOrganizationInput{
		Name:    req.Name,
		Slug:    req.Slug,
		Plan:    organization.Plan(req.Plan),
		OwnerID: userID,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrganizationResponse(created))
}

// Get handles GET /api/v1/orgs/{orgId}.
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathID(r, "orgId")
	if err != nil {
		apierror.BadRequest("Invalid organization ID").WriteJSON(w)
		return
	}

	claims := middleware.GetClaims(r.Context())
	if claims == nil || !claims.MemberOf(orgID.String()) {
		apierror.NotFound("Organization").WriteJSON(w)
		return
	}

	found, err := h.orgs.GetOrganization(r.Context(), orgID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrganizationResponse(found))
}

// ChangePlan handles PATCH /api/v1/orgs/{orgId}/plan.
func (h *OrganizationHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathID(r, "orgId")
	if err != nil {
		apierror.BadRequest("Invalid organization ID").WriteJSON(w)
		return
	}
	if !h.canManage(r, orgID) {
		apierror.Forbidden("").WriteJSON(w)
		return
	}

	var req ChangePlanRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WithError(err).WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	updated, err := h.orgs.ChangePlan(r.Context(), orgID, organization.Plan(req.Plan))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrganizationResponse(updated))
}

// AddMember handles POST /api/v1/orgs/{orgId}/members.
func (h *OrganizationHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathID(r, "orgId")
	if err != nil {
		apierror.BadRequest("Invalid organization ID").WriteJSON(w)
		return
	}
	if !h.canManage(r, orgID) {
		apierror.Forbidden("").WriteJSON(w)
		return
	}

	var req AddMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WithError(err).WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	userID, err := shared.IDFromString(req.UserID)
	if err != nil {
		apierror.BadRequest("Invalid user ID").WriteJSON(w)
		return
	}

	if err := h.orgs.AddMember(r.Context(), app.AddMemberInput{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           organization.Role(req.Role),
	}); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// canManage reports whether the caller holds a managing role in the org.
func (h *OrganizationHandler) canManage(r *http.Request, orgID shared.ID) bool {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		return false
	}
	for _, m := range claims.Orgs {
		if m.OrgID == orgID.String() {
			return organization.Role(m.Role).CanManage()
		}
	}
	return false
}
