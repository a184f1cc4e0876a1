package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/netpad/api/pkg/apierror"
	"github.com/netpad/api/pkg/domain/execution"
	"github.com/netpad/api/pkg/domain/organization"
	"github.com/netpad/api/pkg/domain/shared"
	"github.com/netpad/api/pkg/logger"
	"github.com/netpad/api/pkg/pagination"
	"github.com/netpad/api/pkg/validator"
)

func serviceErrorResponse(t *testing.T, err error) (int, apierror.Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	handleServiceError(rec, logger.NewNop(), err)

	var resp apierror.Response
	if decodeErr := json.NewDecoder(rec.Body).Decode(&resp); decodeErr != nil {
		t.Fatalf("failed to decode error response: %v", decodeErr)
	}
	return rec.Code, resp
}

func TestHandleServiceError_QueueFull(t *testing.T) {
	status, resp := serviceErrorResponse(t, &execution.QueueFullError{Pending: 100, Limit: 100})

	if status != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", status)
	}
	if resp.Code != apierror.CodeQueueFull {
		t.Errorf("expected QUEUE_FULL, got %s", resp.Code)
	}

	details, ok := resp.Details.(map[string]any)
	if !ok {
		t.Fatalf("expected details object, got %T", resp.Details)
	}
	if details["pending"] != float64(100) || details["limit"] != float64(100) {
		t.Errorf("unexpected details %v", details)
	}
}

func TestHandleServiceError_QuotaExceeded(t *testing.T) {
	status, resp := serviceErrorResponse(t, &organization.QuotaError{Current: 1001, Limit: 1000})

	if status != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", status)
	}
	if resp.Code != apierror.CodeLimitExceeded {
		t.Errorf("expected LIMIT_EXCEEDED, got %s", resp.Code)
	}

	details, ok := resp.Details.(map[string]any)
	if !ok {
		t.Fatalf("expected details object, got %T", resp.Details)
	}
	if details["current"] != float64(1001) {
		t.Errorf("expected current 1001, got %v", details["current"])
	}
	if details["remaining"] != float64(0) {
		t.Errorf("expected remaining 0, got %v", details["remaining"])
	}
}

func TestHandleServiceError_DomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   apierror.Code
	}{
		{
			"not found",
			shared.NewDomainError("NOT_FOUND", "workflow not found", shared.ErrNotFound),
			http.StatusNotFound,
			apierror.Code("NOT_FOUND"),
		},
		{
			"conflict",
			shared.NewDomainError("ALREADY_EXISTS", "slug taken", shared.ErrAlreadyExists),
			http.StatusConflict,
			apierror.CodeConflict,
		},
		{
			"validation keeps code",
			shared.NewDomainError("EMPTY_CANVAS", "workflow must contain at least one node", shared.ErrValidation),
			http.StatusBadRequest,
			apierror.Code("EMPTY_CANVAS"),
		},
		{
			"invalid transition",
			shared.NewDomainError("INVALID_TRANSITION", "cannot transition", shared.ErrValidation),
			http.StatusBadRequest,
			apierror.Code("INVALID_TRANSITION"),
		},
		{
			"forbidden",
			shared.NewDomainError("FORBIDDEN", "no access", shared.ErrForbidden),
			http.StatusForbidden,
			apierror.CodeForbidden,
		},
	}

	for _, tt := range tests {
		status, resp := serviceErrorResponse(t, tt.err)
		if status != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.name, tt.status, status)
		}
		if resp.Code != tt.code {
			t.Errorf("%s: expected code %s, got %s", tt.name, tt.code, resp.Code)
		}
	}
}

func TestHandleServiceError_RequestValidationIsBadRequest(t *testing.T) {
	status, resp := serviceErrorResponse(t, validator.ValidationErrors{
		{Field: "status", Message: "must be one of: draft, active, paused, archived"},
	})

	if status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}
	if resp.Code != apierror.CodeValidationFailed {
		t.Errorf("expected VALIDATION_FAILED, got %s", resp.Code)
	}
}

func TestHandleServiceError_UnknownErrorIsInternal(t *testing.T) {
	status, resp := serviceErrorResponse(t, errors.New("database exploded"))

	if status != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", status)
	}
	if resp.Code != apierror.CodeInternalError {
		t.Errorf("expected INTERNAL_ERROR, got %s", resp.Code)
	}
	// Internal details never leak to the client.
	if resp.Message == "database exploded" {
		t.Error("internal error message must not be exposed")
	}
}

func TestDecodeOptionalJSON(t *testing.T) {
	type payload struct {
		TriggerSource string `json:"trigger_source"`
	}

	// Declared-empty body leaves the destination untouched.
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	var p payload
	if err := decodeOptionalJSON(r, &p); err != nil {
		t.Errorf("empty body: unexpected error %v", err)
	}

	// Body with a known length decodes normally.
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"trigger_source":"api"}`))
	p = payload{}
	if err := decodeOptionalJSON(r, &p); err != nil {
		t.Fatalf("known length: unexpected error %v", err)
	}
	if p.TriggerSource != "api" {
		t.Errorf("known length: expected trigger_source decoded, got %q", p.TriggerSource)
	}

	// Chunked transfer reports ContentLength -1; the body must still decode.
	r = httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader(`{"trigger_source":"webhook"}`)))
	if r.ContentLength != -1 {
		t.Fatalf("expected unknown content length, got %d", r.ContentLength)
	}
	p = payload{}
	if err := decodeOptionalJSON(r, &p); err != nil {
		t.Fatalf("chunked: unexpected error %v", err)
	}
	if p.TriggerSource != "webhook" {
		t.Errorf("chunked: expected trigger_source decoded, got %q", p.TriggerSource)
	}

	// A streamed body that turns out empty is tolerated.
	r = httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader("")))
	p = payload{}
	if err := decodeOptionalJSON(r, &p); err != nil {
		t.Errorf("empty chunked body: unexpected error %v", err)
	}

	// Malformed JSON is still rejected.
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"trigger_source":`))
	if err := decodeOptionalJSON(r, &payload{}); err == nil {
		t.Error("expected malformed body to be rejected")
	}
}

func TestParsePage(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=50&offset=10", nil)
	p := parsePage(r)
	if p.Limit != 50 || p.Offset != 10 {
		t.Errorf("expected limit 50 offset 10, got %+v", p)
	}

	r = httptest.NewRequest(http.MethodGet, "/?limit=9999&offset=-5", nil)
	p = parsePage(r)
	if p.Limit != pagination.MaxLimit || p.Offset != 0 {
		t.Errorf("expected bounds applied, got %+v", p)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	p = parsePage(r)
	if p.Limit != pagination.DefaultLimit || p.Offset != 0 {
		t.Errorf("expected defaults, got %+v", p)
	}
}

func TestParseQueryBool(t *testing.T) {
	if !parseQueryBool("true") {
		t.Error(`expected "true" to parse as true`)
	}
	if !parseQueryBool("1") {
		t.Error(`expected "1" to parse as true`)
	}
	if parseQueryBool("false") {
		t.Error(`expected "false" to parse as false`)
	}
	if parseQueryBool("") {
		t.Error("expected empty value to parse as false")
	}
}
