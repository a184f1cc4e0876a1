package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/netpad/api/pkg/apierror"
	"github.com/netpad/api/pkg/domain/execution"
	"github.com/netpad/api/pkg/domain/organization"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/logger"
	"github.com/netpad/api/pkg/pagination"
	"github.com/netpad/api/pkg/validator"
)

const timeFormat = "2006-01-02T15:04:05Z07:00"

// ListResponse represents a paginated list response.
type ListResponse[T any] struct {
	Data    []T   `json:"data"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

// newListResponse maps a pagination result onto the wire shape.
func newListResponse[T, R any](result pagination.Result[T], mapFn func(T) R) ListResponse[R] {
	data := make([]R, 0, len(result.Data))
	for _, item := range result.Data {
		data = append(data, mapFn(item))
	}
	return ListResponse[R]{
		Data:    data,
		Total:   result.Total,
		Limit:   result.Limit,
		Offset:  result.Offset,
		HasMore: result.HasMore,
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// decodeOptionalJSON decodes a request body into dst when one is present.
// A declared-empty body leaves dst untouched. Chunked requests report
// ContentLength -1, so a streamed body that turns out empty is tolerated
// rather than rejected.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return nil
	}
	if err := decodeJSON(r, dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// pathParam extracts a URL path parameter from the request.
func pathParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// pathID extracts and parses a UUID path parameter.
func pathID(r *http.Request, key string) (shared.ID, error) {
	return shared.IDFromString(pathParam(r, key))
}

// queryParam extracts a URL query parameter from the request.
func queryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// parseQueryInt parses a query parameter as an integer.
// Returns defaultVal if the input is empty or invalid.
func parseQueryInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return val
}

// parseQueryBool parses a query parameter as a boolean.
// Accepts "true" and "1" as true; anything else as false.
func parseQueryBool(s string) bool {
	return s == "true" || s == "1"
}

// parsePage builds pagination input from limit/offset query parameters.
func parsePage(r *http.Request) pagination.Page {
	limit := parseQueryInt(queryParam(r, "limit"), pagination.DefaultLimit)
	offset := parseQueryInt(queryParam(r, "offset"), 0)
	return pagination.New(limit, offset)
}

// formatTime renders a timestamp for API responses.
func formatTime(t time.Time) string {
	return t.Format(timeFormat)
}

// formatTimePtr renders an optional timestamp, empty when unset.
func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeFormat)
}

// handleServiceError translates service and domain errors into API errors.
// Admission rejections carry their structured details so clients can back
// off intelligently; everything unexpected collapses into a logged 500.
func handleServiceError(w http.ResponseWriter, log *logger.Logger, err error) {
	var queueFull *execution.QueueFullError
	if errors.As(err, &queueFull) {
		apierror.TooManyRequests(apierror.CodeQueueFull, "Execution queue is full, retry later").
			WithDetails(map[string]int64{
				"pending": queueFull.Pending,
				"limit":   queueFull.Limit,
			}).WriteJSON(w)
		return
	}

	var quota *organization.QuotaError
	if errors.As(err, &quota) {
		apierror.TooManyRequests(apierror.CodeLimitExceeded, "Monthly execution limit exceeded").
			WithDetails(map[string]int64{
				"current":   quota.Current,
				"limit":     quota.Limit,
				"remaining": quota.Remaining(),
			}).WriteJSON(w)
		return
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		apierror.ValidationFailed("Request validation failed", validationErrs).WriteJSON(w)
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			apierror.NotFoundWithCode(apierror.Code(domainErr.Code), domainErr.Message).WriteJSON(w)
		case errors.Is(err, shared.ErrAlreadyExists), errors.Is(err, shared.ErrConflict):
			apierror.Conflict(domainErr.Message).WriteJSON(w)
		case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrInvalidInput):
			apierror.New(http.StatusBadRequest, apierror.Code(domainErr.Code), domainErr.Message).WriteJSON(w)
		case errors.Is(err, shared.ErrForbidden):
			apierror.Forbidden(domainErr.Message).WriteJSON(w)
		case errors.Is(err, shared.ErrUnauthorized):
			apierror.Unauthorized(domainErr.Message).WriteJSON(w)
		default:
			log.Error("unhandled domain error", "error", err)
			apierror.InternalError(err).WriteJSON(w)
		}
		return
	}

	switch {
	case errors.Is(err, shared.ErrNotFound):
		apierror.NotFound("").WriteJSON(w)
	case errors.Is(err, shared.ErrAlreadyExists):
		apierror.Conflict("Resource already exists").WriteJSON(w)
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrInvalidInput):
		apierror.ValidationFailed(err.Error(), nil).WriteJSON(w)
	case errors.Is(err, shared.ErrForbidden):
		apierror.Forbidden("").WriteJSON(w)
	case errors.Is(err, shared.ErrUnauthorized):
		apierror.Unauthorized("").WriteJSON(w)
	default:
		log.Error("request failed", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}
