package users

import "strings"

// Variant is the closed set of user kinds
type Variant string

const (
	// VariantAnonymous is an unauthenticated actor with a persisted identity
	VariantAnonymous Variant = "Anonymous"
	// VariantUser is a basic account
	VariantUser Variant = "User"
	// VariantCreator can publish content
	VariantCreator Variant = "Creator"
	// VariantAdmin manages other accounts
	VariantAdmin Variant = "Admin"
)

var variantHierarchy = map[Variant]int{
	VariantAnonymous: 0,
	VariantUser:      1,
	VariantCreator:   2,
	VariantAdmin:     3,
}

var variantDescriptions = map[Variant]string{
	VariantAnonymous: "This is an Anonymous user.",
	VariantUser:      "This is a user.",
	VariantCreator:   "This is a Creator user.",
	VariantAdmin:     "This is an Admin level user.",
}

// IsValid checks if the variant is one of the predefined variants
func (v Variant) IsValid() bool {
	_, ok := variantHierarchy[v]
	return ok
}

// IsAtLeast checks if this variant meets the minimum required level
func (v Variant) IsAtLeast(min Variant) bool {
	current, ok := variantHierarchy[v]
	if !ok {
		return false
	}
	required, ok := variantHierarchy[min]
	if !ok {
		return false
	}
	return current >= required
}

// Description is the default profile description for the variant
func (v Variant) Description() string {
	if d, ok := variantDescriptions[v]; ok {
		return d
	}
	return variantDescriptions[VariantUser]
}

// next returns the variant an upgrade moves to. Creator is the ceiling,
// admins are only created explicitly.
func (v Variant) next() (Variant, bool) {
	switch v {
	case VariantAnonymous:
		return VariantUser, true
	case VariantUser:
		return VariantCreator, true
	default:
		return "", false
	}
}

// AllVariants returns all variants in hierarchical order
func AllVariants() []Variant {
	return []Variant{
		VariantAnonymous,
		VariantUser,
		VariantCreator,
		VariantAdmin,
	}
}

// ParseVariant matches case-insensitively. Unknown values resolve to
// VariantUser and ok is false.
func ParseVariant(s string) (Variant, bool) {
	trimmed := strings.TrimSpace(s)
	for _, v := range AllVariants() {
		if strings.EqualFold(string(v), trimmed) {
			return v, true
		}
	}
	return VariantUser, false
}
