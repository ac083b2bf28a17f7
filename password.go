package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// PasswordVault hashes and verifies passwords with bcrypt at a fixed cost
type PasswordVault struct {
	cost int
}

// NewPasswordVault returns a vault using cost, or the build default when
// cost is out of bcrypt's range.
func NewPasswordVault(cost int) *PasswordVault {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}
	return &PasswordVault{cost: cost}
}

// Cost is the work factor used for new hashes
func (v *PasswordVault) Cost() int {
	return v.cost
}

// IsHashed reports whether s is already a bcrypt hash
func IsHashed(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// Hash returns plaintextOrHash unchanged when it is already a bcrypt hash,
// otherwise hashes it.
func (v *PasswordVault) Hash(plaintextOrHash string) (string, error) {
	if plaintextOrHash == "" {
		return "", NewValidationError("password must not be empty", "password")
	}

	if IsHashed(plaintextOrHash) {
		return plaintextOrHash, nil
	}

	h, err := bcrypt.GenerateFromPassword([]byte(plaintextOrHash), v.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", NewValidationError("password exceeds 72 bytes", "password")
		}
		return "", NewCredentialError(err, "failed to hash password")
	}
	return string(h), nil
}

// Verify compares candidate against hash. A mismatch is (false, nil), only
// a malformed hash returns a CredentialError.
func (v *PasswordVault) Verify(ctx context.Context, candidate, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if hash == "" {
		return false, NewCredentialError(nil, "password hash is empty")
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate))
	if err == nil {
		return true, nil
	}

	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}

	return false, NewCredentialError(err, "malformed password hash")
}

// RandomPasswordHash hashes a random uuid, useful for accounts that only
// ever authenticate by token.
func (v *PasswordVault) RandomPasswordHash() string {
	h, err := v.Hash(uuid.NewString())
	if err != nil {
		return v.RandomPasswordHash()
	}
	return h
}

// PasswordUpdateResult is the user facing outcome of UpdatePassword
type PasswordUpdateResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func passwordFailure(message string, errs ...string) PasswordUpdateResult {
	return PasswordUpdateResult{
		Success: false,
		Message: message,
		Errors:  errs,
	}
}
