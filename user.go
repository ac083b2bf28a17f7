package users

import (
	"context"
	"encoding/json"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// User is the in-memory user entity. Capabilities beyond the shared
// contract are dispatched on its Variant, see Admin.
type User struct {
	env  *env
	rec  Record
	keys *KeyStore
}

var _ Identity = (*User)(nil)

func newUser(e *env, rec Record) *User {
	u := &User{
		env: e,
		rec: rec,
	}
	u.keys = NewKeyStore(e.files, e.crypto).
		WithLogger(e.logger).
		WithClock(e.clock)
	u.keys.Load(rec.Keys)
	u.keys.SetDirectories(rec.PublicDir, rec.PrivateDir)
	return u
}

// ID is empty until the user is saved
func (u *User) ID() string { return u.rec.ID }

func (u *User) Variant() Variant { return u.rec.Type }

// Role implements Identity with the variant name
func (u *User) Role() string { return string(u.rec.Type) }

func (u *User) Username() string { return u.rec.Username }

// Email is the primary address
func (u *User) Email() string { return u.rec.Emails.PrimaryAddress() }

func (u *User) First() string { return u.rec.First }

func (u *User) Last() string { return u.rec.Last }

func (u *User) Status() UserStatus { return u.rec.Status }

func (u *User) IsActive() bool { return u.rec.Status == StatusActive }

func (u *User) IsArchived() bool { return u.rec.Archived }

func (u *User) Avatar() string { return u.rec.Avatar }

func (u *User) Header() string { return u.rec.Header }

func (u *User) Description() string { return u.rec.Description }

func (u *User) SessionID() string { return u.rec.SessionID }

func (u *User) PublicDir() string { return u.rec.PublicDir }

func (u *User) PrivateDir() string { return u.rec.PrivateDir }

func (u *User) SchemaVersion() int { return u.rec.SchemaVersion }

func (u *User) CreatedOn() int64 { return u.rec.CreatedOn }

func (u *User) UpdatedOn() int64 { return u.rec.UpdatedOn }

// Tokens is the last issued access/refresh pair
func (u *User) Tokens() TokenPair { return u.rec.JWTs }

// Keys exposes the user's KeyStore
func (u *User) Keys() *KeyStore { return u.keys }

// URL is the profile path, derived from the username
func (u *User) URL() string { return u.rec.URL }

// Acct is the Mastodon account name. It always mirrors the username.
func (u *User) Acct() string { return u.rec.Username }

// DisplayName falls back to "first last" when unset
func (u *User) DisplayName() string {
	return fallbackName(u.rec.DisplayName, u.rec.First, u.rec.Last)
}

// Name falls back to "first last" when unset
func (u *User) Name() string {
	return fallbackName(u.rec.Name, u.rec.First, u.rec.Last)
}

func fallbackName(value, first, last string) string {
	if value != "" && value != "undefined" {
		return value
	}
	return strings.TrimSpace(first + " " + last)
}

// SetName sets first and last name
func (u *User) SetName(first, last string) {
	u.rec.First = strings.TrimSpace(first)
	u.rec.Last = strings.TrimSpace(last)
}

func (u *User) SetDisplayName(name string) {
	u.rec.DisplayName = strings.TrimSpace(name)
}

// SetUsername updates the username and the derived profile URL
func (u *User) SetUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" || strings.ContainsAny(username, " /@") {
		return NewValidationError("invalid username", "username")
	}
	u.rec.Username = username
	u.rec.URL = "/@" + username
	return nil
}

func (u *User) SetAvatar(url string) { u.rec.Avatar = url }

func (u *User) SetHeader(url string) { u.rec.Header = url }

func (u *User) SetDescription(text string) { u.rec.Description = text }

func (u *User) SetSessionID(id string) { u.rec.SessionID = id }

// SetProfileFields replaces the Mastodon profile metadata rows
func (u *User) SetProfileFields(fields []ProfileField) {
	u.rec.Fields = append([]ProfileField(nil), fields...)
}

// SetStatus changes the activation state
func (u *User) SetStatus(status UserStatus) error {
	if !status.IsValid() {
		return NewValidationError("invalid status", "status")
	}
	u.rec.Status = status
	return nil
}

// SetPassword stores input as-is when already a bcrypt hash, otherwise
// hashes it.
func (u *User) SetPassword(plaintextOrHash string) error {
	h, err := u.env.vault.Hash(plaintextOrHash)
	if err != nil {
		return err
	}
	u.rec.HashedPassword = h
	return nil
}

// CheckPassword verifies candidate against the stored hash
func (u *User) CheckPassword(ctx context.Context, candidate string) (bool, error) {
	return u.env.vault.Verify(ctx, candidate, u.rec.HashedPassword)
}

// UpdatePassword replaces the hash when current matches. Failures are
// reported in the result, only store faults return an error.
func (u *User) UpdatePassword(ctx context.Context, current, next string) (PasswordUpdateResult, error) {
	var missing []string
	if current == "" {
		missing = append(missing, "Missing required current password parameter.")
	}
	if next == "" {
		missing = append(missing, "Missing required new password parameter.")
	}
	if len(missing) > 0 {
		return passwordFailure("password not updated", missing...), nil
	}

	ok, err := u.CheckPassword(ctx, current)
	if err != nil {
		if IsCredentialError(err) {
			return passwordFailure("password not updated", "Stored password hash is invalid."), nil
		}
		return PasswordUpdateResult{}, err
	}
	if !ok {
		return passwordFailure("password not updated", "Current password is incorrect."), nil
	}

	previous := u.rec.HashedPassword
	if err := u.SetPassword(next); err != nil {
		return passwordFailure("password not updated", err.Error()), nil
	}

	if u.rec.ID != "" {
		if err := u.Update(ctx); err != nil {
			u.rec.HashedPassword = previous
			return PasswordUpdateResult{}, err
		}
	}

	u.env.emit(ctx, ActivityEventPasswordUpdated, u.rec.ID, u.rec.ID, nil)

	return PasswordUpdateResult{Success: true, Message: "password updated"}, nil
}

type requiredFields struct {
	First          string     `json:"first"`
	Last           string     `json:"last"`
	PrimaryEmail   string     `json:"primaryEmail"`
	HashedPassword string     `json:"hashedPassword"`
	Type           Variant    `json:"type"`
	Status         UserStatus `json:"status"`
}

func (u *User) validate() error {
	r := requiredFields{
		First:          u.rec.First,
		Last:           u.rec.Last,
		PrimaryEmail:   u.rec.Emails.PrimaryAddress(),
		HashedPassword: u.rec.HashedPassword,
		Type:           u.rec.Type,
		Status:         u.rec.Status,
	}

	err := validation.ValidateStruct(&r,
		validation.Field(&r.First, validation.Required),
		validation.Field(&r.Last, validation.Required),
		validation.Field(&r.PrimaryEmail, validation.Required, is.Email),
		validation.Field(&r.HashedPassword, validation.Required),
		validation.Field(&r.Type, validation.Required, validation.In(
			VariantAnonymous, VariantUser, VariantCreator, VariantAdmin,
		)),
		validation.Field(&r.Status, validation.Required, validation.In(StatusActive, StatusInactive)),
	)
	return asValidationError("missing or invalid required properties", err)
}

// Save validates and inserts a new record, assigning the user's id
func (u *User) Save(ctx context.Context) error {
	if u.env.store == nil {
		return ErrMissingStore
	}
	if u.rec.ID != "" {
		return NewValidationError("user already saved, use Update", "id")
	}
	if err := u.validate(); err != nil {
		return err
	}

	now := u.env.now().UnixMilli()
	rec := u.Snapshot()
	rec.CreatedOn = now
	rec.UpdatedOn = now

	id, err := u.env.store.InsertOne(ctx, &rec)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert user")
	}

	u.rec.ID = id
	u.rec.CreatedOn = now
	u.rec.UpdatedOn = now
	u.env.logger.Debug("saved user %s (%s)", id, u.rec.Type)
	return nil
}

// Update validates and persists the full snapshot. CreatedOn is never
// written.
func (u *User) Update(ctx context.Context) error {
	if u.rec.ID == "" {
		return NewValidationError("user has no id, use Save", "id")
	}
	if err := u.validate(); err != nil {
		return err
	}
	return u.persist(ctx)
}

// persist writes the snapshot without validation
func (u *User) persist(ctx context.Context) error {
	if u.env.store == nil {
		return ErrMissingStore
	}

	rec := u.Snapshot()
	rec.UpdatedOn = u.env.now().UnixMilli()

	updated, err := u.env.store.FindOneAndUpdate(ctx, Filter{ID: u.rec.ID}, &rec)
	if err != nil {
		if IsRecordNotFound(err) {
			return err
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user").
			WithMetadata(map[string]any{"id": u.rec.ID})
	}

	u.rec.UpdatedOn = rec.UpdatedOn
	if updated != nil {
		u.rec.CreatedOn = updated.CreatedOn
	}
	return nil
}

// Snapshot is the persistable form of the user, keys included
func (u *User) Snapshot() Record {
	rec := u.rec
	rec.Keys = u.keys.Snapshot()
	rec.Fields = append([]ProfileField(nil), u.rec.Fields...)
	rec.Emojis = append([]Emoji(nil), u.rec.Emojis...)
	rec.syncDenormalized()
	return rec
}

// PublicProfile is the JSON shape served for a user
type PublicProfile struct {
	ID             string         `json:"id"`
	Type           Variant        `json:"type"`
	Username       string         `json:"username"`
	Acct           string         `json:"acct"`
	DisplayName    string         `json:"display_name"`
	Name           string         `json:"name"`
	URL            string         `json:"url"`
	Avatar         string         `json:"avatar"`
	Header         string         `json:"header"`
	Note           string         `json:"note"`
	Locked         bool           `json:"locked"`
	Bot            bool           `json:"bot"`
	Discoverable   bool           `json:"discoverable"`
	Group          bool           `json:"group"`
	Fields         []ProfileField `json:"fields"`
	Emojis         []Emoji        `json:"emojis"`
	FollowersCount int            `json:"followers_count"`
	FollowingCount int            `json:"following_count"`
	CreatedOn      int64          `json:"created_on"`
}

// Profile returns the public view, no hash, keys or tokens
func (u *User) Profile() PublicProfile {
	fields := u.rec.Fields
	if fields == nil {
		fields = []ProfileField{}
	}
	emojis := u.rec.Emojis
	if emojis == nil {
		emojis = []Emoji{}
	}
	return PublicProfile{
		ID:             u.rec.ID,
		Type:           u.rec.Type,
		Username:       u.rec.Username,
		Acct:           u.Acct(),
		DisplayName:    u.DisplayName(),
		Name:           u.Name(),
		URL:            u.rec.URL,
		Avatar:         u.rec.Avatar,
		Header:         u.rec.Header,
		Note:           u.rec.Description,
		Locked:         u.rec.Locked,
		Bot:            u.rec.Bot,
		Discoverable:   u.rec.Discoverable,
		Group:          u.rec.Group,
		Fields:         fields,
		Emojis:         emojis,
		FollowersCount: u.rec.FollowersCount,
		FollowingCount: u.rec.FollowingCount,
		CreatedOn:      u.rec.CreatedOn,
	}
}

// ToJSON encodes the public profile
func (u *User) ToJSON() ([]byte, error) {
	return json.Marshal(u.Profile())
}
