package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/netpad/api/pkg/apierror"
	"github.com/netpad/api/pkg/domain/organization"
	"github.com/netpad/api/pkg/logger"
	"github.com/netpad/api/pkg/token"
)

// Auth-related context keys - use logger.ContextKey for consistency.
const (
	UserIDKey                   = logger.ContextKeyUserID
	OrgIDKey                    = logger.ContextKeyOrgID
	OrgRoleKey logger.ContextKey = "org_role"
	ClaimsKey  logger.ContextKey = "token_claims"
)

// OrgHeader carries the organization a request acts on behalf of. Users
// belonging to a single organization may omit it.
const OrgHeader = "X-Org-ID"

// GetUserID extracts the authenticated user ID from context.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// GetOrgID extracts the organization ID from context.
func GetOrgID(ctx context.Context) string {
	if id, ok := ctx.Value(OrgIDKey).(string); ok {
		return id
	}
	return ""
}

// GetOrgRole extracts the caller's role within the request organization.
func GetOrgRole(ctx context.Context) organization.Role {
	if role, ok := ctx.Value(OrgRoleKey).(string); ok {
		return organization.Role(role)
	}
	return ""
}

// GetClaims extracts the full token claims from context.
func GetClaims(ctx context.Context) *token.Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*token.Claims); ok {
		return claims
	}
	return nil
}

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	Validate(tokenString string) (*token.Claims, error)
}

// Authenticate validates the Authorization header and places the caller's
// identity into the request context.
func Authenticate(validator TokenValidator, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				apierror.Unauthorized("Missing authorization header").WriteJSON(w)
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierror.Unauthorized("Invalid authorization header").WriteJSON(w)
				return
			}

			claims, err := validator.Validate(parts[1])
			if err != nil {
				log.Warn("token validation failed",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				apierror.Unauthorized("Invalid or expired token").WriteJSON(w)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, ClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OrgContext resolves the organization a request is scoped to. The org comes
// from the X-Org-ID header, falling back to the user's sole membership. The
// caller must be a member of the resolved organization.
func OrgContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				apierror.Unauthorized("").WriteJSON(w)
				return
			}

			orgID := r.Header.Get(OrgHeader)
			if orgID == "" {
				if len(claims.Orgs) != 1 {
					apierror.BadRequest("X-Org-ID header is required").WriteJSON(w)
					return
				}
				orgID = claims.Orgs[0].OrgID
			}

			role := ""
			for _, m := range claims.Orgs {
				if m.OrgID == orgID {
					role = m.Role
					break
				}
			}
			if role == "" {
				apierror.Forbidden("Not a member of this organization").WriteJSON(w)
				return
			}

			ctx := context.WithValue(r.Context(), OrgIDKey, orgID)
			ctx = context.WithValue(ctx, OrgRoleKey, role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOrgRole checks that the caller holds one of the given roles within
// the request organization.
func RequireOrgRole(roles ...organization.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetOrgRole(r.Context())
			if role == "" {
				apierror.Forbidden("No organization role assigned").WriteJSON(w)
				return
			}
			for _, required := range roles {
				if role == required {
					next.ServeHTTP(w, r)
					return
				}
			}
			apierror.Forbidden("Insufficient organization permissions").WriteJSON(w)
		})
	}
}

// RequireExecutePermission rejects roles that cannot trigger executions.
func RequireExecutePermission() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetOrgRole(r.Context())
			if !role.CanExecute() {
				apierror.Forbidden("Role cannot trigger executions").WriteJSON(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
