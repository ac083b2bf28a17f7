//go:build !race

package users

// DefaultPasswordCost is the bcrypt work factor for new hashes
const DefaultPasswordCost = 12

func passwordHashCost() int {
	return DefaultPasswordCost
}
