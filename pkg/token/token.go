// Package token provides JWT generation and validation for API authentication.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when the token is invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
	// ErrEmptyUserID is returned when user_id is empty.
	ErrEmptyUserID = errors.New("user_id cannot be empty")
)

// OrgMembership represents a user's membership in an organization.
type OrgMembership struct {
	OrgID string `json:"org_id"`
	Role  string `json:"role"` // owner, admin, member, viewer
}

// Claims represents the JWT claims structure.
type Claims struct {
	UserID string          `json:"id"`
	Email  string          `json:"email"`
	Name   string          `json:"name,omitempty"`
	Orgs   []OrgMembership `json:"orgs,omitempty"`

	jwt.RegisteredClaims
}

// MemberOf reports whether the claims include membership in the given org.
func (c *Claims) MemberOf(orgID string) bool {
	for _, m := range c.Orgs {
		if m.OrgID == orgID {
			return true
		}
	}
	return false
}

// Generator creates and validates JWT tokens.
type Generator struct {
	secret   []byte
	issuer   string
	duration time.Duration
}

// NewGenerator creates a new token Generator.
func NewGenerator(secret, issuer string, duration time.Duration) (*Generator, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("token secret must be at least 32 bytes, got %d", len(secret))
	}
	return &Generator{
		secret:   []byte(secret),
		issuer:   issuer,
		duration: duration,
	}, nil
}

// Generate creates a signed token for the given user.
func (g *Generator) Generate(userID, email, name string, orgs []OrgMembership) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}

	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Name:   name,
		Orgs:   orgs,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    g.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.duration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}

// Validate parses and validates a token string, returning its claims.
func (g *Generator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return g.secret, nil
	}, jwt.WithIssuer(g.issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
