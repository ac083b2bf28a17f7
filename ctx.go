package users

import (
	"context"
)

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// WithClaimsContext sets verified token claims in the given context
func WithClaimsContext(ctx context.Context, claims *AccessClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// GetClaims extracts the claims stored by WithClaimsContext
func GetClaims(ctx context.Context) (*AccessClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*AccessClaims)
	return raw, ok && raw != nil
}

// IsAtLeast checks the variant of the user, or failing that the claims,
// carried by ctx.
func IsAtLeast(ctx context.Context, min Variant) bool {
	if u, ok := FromContext(ctx); ok {
		return u.Variant().IsAtLeast(min)
	}
	if claims, ok := GetClaims(ctx); ok {
		return claims.IsAtLeast(min)
	}
	return false
}

// WithAuthResult stores the user of a successful authentication, and the
// verified claims when the result came from a token.
func WithAuthResult(ctx context.Context, res AuthResult) context.Context {
	if !res.OK() {
		return ctx
	}
	ctx = WithContext(ctx, res.User)
	if res.Claims != nil {
		ctx = WithClaimsContext(ctx, res.Claims)
	}
	return ctx
}
