package users

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access from refresh tokens
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// AccessClaims is the payload of tokens issued for a user
type AccessClaims struct {
	jwt.RegisteredClaims
	Email     string    `json:"email,omitempty"`
	UID       string    `json:"uid,omitempty"`
	UserRole  string    `json:"role,omitempty"`
	TokenType TokenType `json:"type,omitempty"`
}

// UserID returns the user ID
func (c *AccessClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

// Role returns the variant the token was issued to
func (c *AccessClaims) Role() string {
	return c.UserRole
}

// IsAtLeast checks the variant hierarchy
func (c *AccessClaims) IsAtLeast(min Variant) bool {
	return Variant(c.UserRole).IsAtLeast(min)
}

// IsRefresh reports whether this is a refresh token
func (c *AccessClaims) IsRefresh() bool {
	return c.TokenType == TokenTypeRefresh
}

// Expires returns the expiration time
func (c *AccessClaims) Expires() time.Time {
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}

// Issued returns the issued at time
func (c *AccessClaims) Issued() time.Time {
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims == nil || claims.ID != "" {
		return
	}
	claims.ID = uuid.NewString()
}
