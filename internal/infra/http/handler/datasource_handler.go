package handler

import (
	"net/http"

	"github.com/netpad/api/internal/app"
	"github.com/netpad/api/pkg/apierror"
	"github.com/netpad/api/pkg/domain/datasource"
	"github.com/netpad/api/pkg/logger"
	"github.com/netpad/api/pkg/validator"
)

// DataSourceHandler handles data source endpoints. Connection strings are
// write-only: they never appear in responses.
type DataSourceHandler struct {
	datasources *app.DataSourceService
	validator   *validator.Validator
	logger      *logger.Logger
}

// NewDataSourceHandler creates a new data source handler.
func NewDataSourceHandler(datasources *app.DataSourceService, v *validator.Validator, log *logger.Logger) *DataSourceHandler {
	return &DataSourceHandler{
		datasources: datasources,
		validator:   v,
		logger:      log.With("handler", "datasource"),
	}
}

// CreateDataSourceRequest is the payload for POST /datasources.
type CreateDataSourceRequest struct {
	Name   string `json:"name" validate:"required,min=1,max=255"`
	Driver string `json:"driver" validate:"required,oneof=postgres mysql redis http"`
	DSN    string `json:"dsn" validate:"required,min=1"`
}

// RotateDataSourceRequest is the payload for POST /datasources/{dataSourceId}/rotate.
type RotateDataSourceRequest struct {
	DSN string `json:"dsn" validate:"required,min=1"`
}

// DataSourceResponse represents a data source in API responses.
type DataSourceResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Driver    string `json:"driver"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toDataSourceResponse(ds *datasource.DataSource) DataSourceResponse {
	return DataSourceResponse{
		ID:        ds.ID.String(),
		Name:      ds.Name,
		Driver:    string(ds.Driver),
		CreatedAt: formatTime(ds.CreatedAt),
		UpdatedAt: formatTime(ds.UpdatedAt),
	}
}

// Create handles POST /api/v1/datasources.
func (h *DataSourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, userID, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}

	var req CreateDataSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WithError(err).WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	created, err := h.datasources.CreateDataSource(r.Context(), app.CreateDataSourceInput{
		OrganizationID: orgID,
		UserID:         userID,
		Name:           req.Name,
		Driver:         datasource.Driver(req.Driver),
		DSN:            req.DSN,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDataSourceResponse(created))
}

// Get handles GET /api/v1/datasources/{dataSourceId}.
func (h *DataSourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}
	dataSourceID, err := pathID(r, "dataSourceId")
	if err != nil {
		apierror.BadRequest("Invalid data source ID").WriteJSON(w)
		return
	}

	found, err := h.datasources.GetDataSource(r.Context(), orgID, dataSourceID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toDataSourceResponse(found))
}

// List handles GET /api/v1/datasources.
func (h *DataSourceHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}

	result, err := h.datasources.ListDataSources(r.Context(), orgID, parsePage(r))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newListResponse(result, toDataSourceResponse))
}

// Rotate handles POST /api/v1/datasources/{dataSourceId}/rotate.
func (h *DataSourceHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}
	dataSourceID, err := pathID(r, "dataSourceId")
	if err != nil {
		apierror.BadRequest("Invalid data source ID").WriteJSON(w)
		return
	}

	var req RotateDataSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WithError(err).WriteJSON(w)
		return
	}
	if err := h.validator.Validate(req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	updated, err := h.datasources.RotateDSN(r.Context(), orgID, dataSourceID, req.DSN)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toDataSourceResponse(updated))
}

// Delete handles DELETE /api/v1/datasources/{dataSourceId}.
func (h *DataSourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := requestScope(r)
	if err != nil {
		apierror.Unauthorized("").WriteJSON(w)
		return
	}
	dataSourceID, err := pathID(r, "dataSourceId")
	if err != nil {
		apierror.BadRequest("Invalid data source ID").WriteJSON(w)
		return
	}

	if err := h.datasources.DeleteDataSource(r.Context(), orgID, dataSourceID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
