package users

import (
	"strings"

	"github.com/go-ozzo/ozzo-validation/is"
)

// SecondaryEmail is the secondary address, empty when unset
func (u *User) SecondaryEmail() string {
	return u.rec.Emails.SecondaryAddress()
}

// Emails returns a copy of both slots
func (u *User) Emails() Emails {
	out := Emails{}
	if p := u.rec.Emails.Primary; p != nil {
		cp := *p
		out.Primary = &cp
	}
	if s := u.rec.Emails.Secondary; s != nil {
		cp := *s
		out.Secondary = &cp
	}
	return out
}

// SetPrimaryEmail replaces the primary address. It must differ from the
// secondary address.
func (u *User) SetPrimaryEmail(address string) error {
	return u.SetEmails(address, u.rec.Emails.SecondaryAddress())
}

// SetSecondaryEmail replaces the secondary address, empty clears it. A
// primary address must already be set.
func (u *User) SetSecondaryEmail(address string) error {
	if u.rec.Emails.Primary == nil {
		return NewValidationError("a primary email is required before a secondary one", "primaryEmail")
	}
	return u.SetEmails(u.rec.Emails.PrimaryAddress(), address)
}

// SetEmails sets both slots at once. Verified flags are kept for addresses
// that do not change.
func (u *User) SetEmails(primary, secondary string) error {
	primary = strings.TrimSpace(primary)
	secondary = strings.TrimSpace(secondary)

	if primary == "" {
		return NewValidationError("primary email is required", "primaryEmail")
	}
	if err := is.Email.Validate(primary); err != nil {
		return NewValidationError("invalid email address", "primaryEmail")
	}
	if secondary != "" {
		if err := is.Email.Validate(secondary); err != nil {
			return NewValidationError("invalid email address", "secondaryEmail")
		}
		if strings.EqualFold(primary, secondary) {
			return NewValidationError("primary and secondary email must differ", "primaryEmail", "secondaryEmail")
		}
	}

	u.rec.Emails = Emails{
		Primary:   u.keepSlot(primary),
		Secondary: nil,
	}
	if secondary != "" {
		u.rec.Emails.Secondary = u.keepSlot(secondary)
	}
	return nil
}

// VerifyEmail marks address as verified, false when it is not one of the
// user's addresses.
func (u *User) VerifyEmail(address string) bool {
	for _, slot := range []*EmailAddress{u.rec.Emails.Primary, u.rec.Emails.Secondary} {
		if slot != nil && strings.EqualFold(slot.Address, address) {
			slot.Verified = true
			return true
		}
	}
	return false
}

func (u *User) keepSlot(address string) *EmailAddress {
	for _, slot := range []*EmailAddress{u.rec.Emails.Primary, u.rec.Emails.Secondary} {
		if slot != nil && strings.EqualFold(slot.Address, address) {
			return &EmailAddress{Address: address, Verified: slot.Verified}
		}
	}
	return &EmailAddress{Address: address}
}
