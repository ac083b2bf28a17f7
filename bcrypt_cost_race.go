//go:build race

package users

import "golang.org/x/crypto/bcrypt"

// DefaultPasswordCost is lowered under the race detector so suites stay
// inside their timeouts.
const DefaultPasswordCost = bcrypt.DefaultCost

func passwordHashCost() int {
	return DefaultPasswordCost
}
