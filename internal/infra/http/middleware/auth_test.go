package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/netpad/api/internal/infra/http/middleware"
	"github.com/netpad/api/pkg/apierror"
	"github.com/netpad/api/pkg/domain/organization"
	"github.com/netpad/api/pkg/logger"
	"github.com/netpad/api/pkg/token"
)

const testSigningSecret = "0123456789abcdef0123456789abcdef"

func testGenerator(t *testing.T) *token.Generator {
	t.Helper()
	gen, err := token.NewGenerator(testSigningSecret, "netpad-test", time.Hour)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}
	return gen
}

func bearerToken(t *testing.T, gen *token.Generator, orgs []token.OrgMembership) string {
	t.Helper()
	tok, err := gen.Generate("user-1", "dev@example.com", "Dev", orgs)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return "Bearer " + tok
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) apierror.Code {
	t.Helper()
	var resp apierror.Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Code
}

func TestAuthenticate(t *testing.T) {
	gen := testGenerator(t)
	var gotUserID string
	handler := middleware.Authenticate(gen, logger.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUserID = middleware.GetUserID(r.Context())
			w.WriteHeader(http.StatusOK)
		}),
	)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", bearerToken(t, gen, nil), http.StatusOK},
	}

	for _, tt := range tests {
		gotUserID = ""
		r := httptest.NewRequest(http.MethodGet, "/workflows", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)

		if rec.Code != tt.status {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.status, rec.Code)
		}
		if tt.status == http.StatusOK && gotUserID != "user-1" {
			t.Errorf("%s: expected user ID in context, got %q", tt.name, gotUserID)
		}
	}
}

func TestAuthenticate_WrongSecretRejected(t *testing.T) {
	gen := testGenerator(t)
	other, err := token.NewGenerator("another-secret-that-is-32-bytes!", "netpad-test", time.Hour)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	handler := middleware.Authenticate(gen, logger.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	r := httptest.NewRequest(http.MethodGet, "/workflows", nil)
	r.Header.Set("Authorization", bearerToken(t, other, nil))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for foreign signature, got %d", rec.Code)
	}
}

func orgContextHandler(t *testing.T, gen *token.Generator, orgs []token.OrgMembership, orgHeader string) (*httptest.ResponseRecorder, *string, *organization.Role) {
	t.Helper()
	var gotOrgID string
	var gotRole organization.Role

	handler := middleware.Authenticate(gen, logger.NewNop())(
		middleware.OrgContext()(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotOrgID = middleware.GetOrgID(r.Context())
				gotRole = middleware.GetOrgRole(r.Context())
				w.WriteHeader(http.StatusOK)
			}),
		),
	)

	r := httptest.NewRequest(http.MethodGet, "/workflows", nil)
	r.Header.Set("Authorization", bearerToken(t, gen, orgs))
	if orgHeader != "" {
		r.Header.Set(middleware.OrgHeader, orgHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	return rec, &gotOrgID, &gotRole
}

func TestOrgContext_HeaderSelectsOrg(t *testing.T) {
	gen := testGenerator(t)
	orgs := []token.OrgMembership{
		{OrgID: "org-a", Role: "admin"},
		{OrgID: "org-b", Role: "viewer"},
	}

	rec, orgID, role := orgContextHandler(t, gen, orgs, "org-b")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if *orgID != "org-b" {
		t.Errorf("expected org-b in context, got %q", *orgID)
	}
	if *role != organization.RoleViewer {
		t.Errorf("expected viewer role, got %q", *role)
	}
}

func TestOrgContext_SoleMembershipFallback(t *testing.T) {
	gen := testGenerator(t)
	orgs := []token.OrgMembership{{OrgID: "org-a", Role: "owner"}}

	rec, orgID, _ := orgContextHandler(t, gen, orgs, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if *orgID != "org-a" {
		t.Errorf("expected sole membership fallback, got %q", *orgID)
	}
}

func TestOrgContext_AmbiguousWithoutHeader(t *testing.T) {
	gen := testGenerator(t)
	orgs := []token.OrgMembership{
		{OrgID: "org-a", Role: "owner"},
		{OrgID: "org-b", Role: "member"},
	}

	rec, _, _ := orgContextHandler(t, gen, orgs, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 when header is required, got %d", rec.Code)
	}
}

func TestOrgContext_NonMemberForbidden(t *testing.T) {
	gen := testGenerator(t)
	orgs := []token.OrgMembership{{OrgID: "org-a", Role: "owner"}}

	rec, _, _ := orgContextHandler(t, gen, orgs, "org-z")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-member, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != apierror.CodeForbidden {
		t.Errorf("expected FORBIDDEN code, got %s", code)
	}
}

func requestWithRole(role string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/workflows/abc/execute", nil)
	if role == "" {
		return r
	}
	ctx := context.WithValue(r.Context(), middleware.OrgRoleKey, role)
	return r.WithContext(ctx)
}

func TestRequireExecutePermission(t *testing.T) {
	handler := middleware.RequireExecutePermission()(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}),
	)

	tests := []struct {
		role   string
		status int
	}{
		{"owner", http.StatusAccepted},
		{"admin", http.StatusAccepted},
		{"member", http.StatusAccepted},
		{"viewer", http.StatusForbidden},
		{"", http.StatusForbidden},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithRole(tt.role))
		if rec.Code != tt.status {
			t.Errorf("role %q: expected %d, got %d", tt.role, tt.status, rec.Code)
		}
	}
}

func TestRequireOrgRole(t *testing.T) {
	handler := middleware.RequireOrgRole(organization.RoleOwner, organization.RoleAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	tests := []struct {
		role   string
		status int
	}{
		{"owner", http.StatusOK},
		{"admin", http.StatusOK},
		{"member", http.StatusForbidden},
		{"viewer", http.StatusForbidden},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithRole(tt.role))
		if rec.Code != tt.status {
			t.Errorf("role %q: expected %d, got %d", tt.role, tt.status, rec.Code)
		}
	}
}
