package users

import (
	"context"
	"strings"
)

// AuthFailure labels why an authentication attempt did not succeed
type AuthFailure string

const (
	AuthFailureNone AuthFailure = ""
	// AuthFailureNotFound covers unknown and archived accounts alike
	AuthFailureNotFound AuthFailure = "not_found"
	AuthFailureInactive AuthFailure = "inactive"
	AuthFailureMismatch AuthFailure = "mismatch"
	// AuthFailureTokenInvalid wraps any token Verification failure
	AuthFailureTokenInvalid AuthFailure = "token_invalid"
	AuthFailureTokenExpired AuthFailure = "token_expired"
)

// AuthResult is the outcome of an authentication attempt. User is set only
// on success.
type AuthResult struct {
	User *User
	// Claims is set when authentication was token based
	Claims  *AccessClaims
	Failure AuthFailure
	Message string
}

// OK reports success
func (r AuthResult) OK() bool {
	return r.Failure == AuthFailureNone && r.User != nil
}

func authFailed(f AuthFailure, message string) AuthResult {
	return AuthResult{Failure: f, Message: message}
}

// AuthenticateByPassword checks candidate against the live account with
// primary email. A wrong password is a result, not an error.
func (d *Directory) AuthenticateByPassword(ctx context.Context, email, candidate string) (AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return authFailed(AuthFailureNotFound, "user not found"), nil
	}

	u, err := d.LookupByEmail(ctx, email, WithArchived(false))
	if err != nil {
		return AuthResult{}, err
	}

	if u == nil {
		d.loginFailed(ctx, "", AuthFailureNotFound, email)
		return authFailed(AuthFailureNotFound, "user not found"), nil
	}

	if !u.IsActive() {
		d.loginFailed(ctx, u.ID(), AuthFailureInactive, email)
		return authFailed(AuthFailureInactive, "user account is inactive"), nil
	}

	ok, err := u.CheckPassword(ctx, candidate)
	if err != nil {
		if !IsCredentialError(err) {
			return AuthResult{}, err
		}
		d.env.logger.Error("user %s has a malformed password hash: %v", u.ID(), err)
		ok = false
	}

	if !ok {
		d.loginFailed(ctx, u.ID(), AuthFailureMismatch, email)
		return authFailed(AuthFailureMismatch, "password does not match"), nil
	}

	d.env.emit(ctx, ActivityEventLoginSuccess, u.ID(), u.ID(), map[string]any{
		"method": "password",
	})
	return AuthResult{User: u}, nil
}

// AuthenticateByAccessToken finds the live account that was last issued
// token and verifies it.
func (d *Directory) AuthenticateByAccessToken(ctx context.Context, token string) (AuthResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return authFailed(AuthFailureNotFound, "user not found"), nil
	}

	u, err := d.lookup(ctx, Filter{AccessToken: token}, nil)
	if err != nil {
		return AuthResult{}, err
	}

	if u == nil {
		d.tokenFailed(ctx, "", AuthFailureNotFound, "")
		return authFailed(AuthFailureNotFound, "user not found"), nil
	}

	if !u.IsActive() {
		d.tokenFailed(ctx, u.ID(), AuthFailureInactive, "")
		return authFailed(AuthFailureInactive, "user account is inactive"), nil
	}

	v, err := u.VerifyAccessToken(ctx, token, 0)
	if err != nil {
		return AuthResult{}, err
	}

	if !v.OK() {
		failure := AuthFailureTokenInvalid
		if v.Failure == FailureExpired {
			failure = AuthFailureTokenExpired
		}
		d.tokenFailed(ctx, u.ID(), failure, string(v.Failure))
		return authFailed(failure, "access token rejected: "+string(v.Failure)), nil
	}

	if v.Claims.UserID() != u.ID() {
		d.tokenFailed(ctx, u.ID(), AuthFailureTokenInvalid, "subject mismatch")
		return authFailed(AuthFailureTokenInvalid, "access token was issued to another user"), nil
	}

	d.env.emit(ctx, ActivityEventTokenAuthSuccess, u.ID(), u.ID(), map[string]any{
		"jti": v.Claims.ID,
	})
	return AuthResult{User: u, Claims: v.Claims}, nil
}

func (d *Directory) loginFailed(ctx context.Context, userID string, failure AuthFailure, email string) {
	d.env.logger.Debug("password login failed for %s: %s", email, failure)
	d.env.emit(ctx, ActivityEventLoginFailure, userID, userID, map[string]any{
		"method": "password",
		"reason": string(failure),
	})
}

func (d *Directory) tokenFailed(ctx context.Context, userID string, failure AuthFailure, detail string) {
	d.env.logger.Debug("token login failed: %s %s", failure, detail)
	d.env.emit(ctx, ActivityEventTokenAuthFailure, userID, userID, map[string]any{
		"method": "token",
		"reason": string(failure),
		"detail": detail,
	})
}
