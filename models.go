package users

import (
	"strings"

	"github.com/uptrace/bun"
)

// UserStatus is the activation state of an account. It is independent of
// the archived flag.
type UserStatus string

const (
	// StatusActive accounts can authenticate
	StatusActive UserStatus = "active"
	// StatusInactive accounts are known but cannot authenticate
	StatusInactive UserStatus = "inactive"
)

// IsValid reports whether s is a known status
func (s UserStatus) IsValid() bool {
	return s == StatusActive || s == StatusInactive
}

// EmailAddress is one email slot
type EmailAddress struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
}

// Emails holds the primary and optional secondary address
type Emails struct {
	Primary   *EmailAddress `json:"primary,omitempty"`
	Secondary *EmailAddress `json:"secondary,omitempty"`
}

// PrimaryAddress returns the primary address or an empty string
func (e Emails) PrimaryAddress() string {
	if e.Primary == nil {
		return ""
	}
	return e.Primary.Address
}

// SecondaryAddress returns the secondary address or an empty string
func (e Emails) SecondaryAddress() string {
	if e.Secondary == nil {
		return ""
	}
	return e.Secondary.Address
}

// TokenPair is the last issued access/refresh pair
type TokenPair struct {
	Token   string `json:"token,omitempty"`
	Refresh string `json:"refresh,omitempty"`
}

// KeyRecords is the persisted form of both key rings, newest-first
type KeyRecords struct {
	Signing    []KeyRecord `json:"signing"`
	Encrypting []KeyRecord `json:"encrypting"`
}

// ProfileField is a Mastodon profile metadata row
type ProfileField struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	VerifiedAt string `json:"verified_at,omitempty"`
}

// Emoji is a Mastodon custom emoji reference
type Emoji struct {
	Shortcode       string `json:"shortcode"`
	URL             string `json:"url"`
	StaticURL       string `json:"static_url,omitempty"`
	VisibleInPicker bool   `json:"visible_in_picker"`
}

// Record is the persisted snapshot of a user
type Record struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID             string         `bun:"id,pk" json:"id"`
	Type           Variant        `bun:"type,notnull" json:"type"`
	Status         UserStatus     `bun:"user_status" json:"userStatus"`
	Archived       bool           `bun:"archived,notnull" json:"archived"`
	First          string         `bun:"first" json:"first"`
	Last           string         `bun:"last" json:"last"`
	Name           string         `bun:"name" json:"name,omitempty"`
	DisplayName    string         `bun:"display_name" json:"displayName,omitempty"`
	Username       string         `bun:"username" json:"username"`
	URL            string         `bun:"url" json:"url,omitempty"`
	Avatar         string         `bun:"avatar" json:"avatar,omitempty"`
	Header         string         `bun:"header" json:"header,omitempty"`
	Description    string         `bun:"description" json:"description,omitempty"`
	Emails         Emails         `bun:"emails" json:"emails"`
	PrimaryEmail   string         `bun:"primary_email" json:"-"`
	HashedPassword string         `bun:"hashed_password" json:"hashedPassword,omitempty"`
	Keys           KeyRecords     `bun:"keys" json:"keys"`
	JWTs           TokenPair      `bun:"jwts" json:"jwts"`
	AccessToken    string         `bun:"access_token" json:"-"`
	SessionID      string         `bun:"session_id" json:"sessionId,omitempty"`
	PublicDir      string         `bun:"public_dir" json:"publicDir,omitempty"`
	PrivateDir     string         `bun:"private_dir" json:"privateDir,omitempty"`
	SchemaVersion  int            `bun:"schema_version" json:"schemaVer"`
	Locked         bool           `bun:"locked,notnull" json:"locked"`
	Bot            bool           `bun:"bot,notnull" json:"bot"`
	Discoverable   bool           `bun:"discoverable,notnull" json:"discoverable"`
	Group          bool           `bun:"is_group,notnull" json:"group"`
	Fields         []ProfileField `bun:"fields" json:"fields"`
	Emojis         []Emoji        `bun:"emojis" json:"emojis"`
	FollowersCount int            `bun:"followers_count" json:"followers_count"`
	FollowingCount int            `bun:"following_count" json:"following_count"`
	CreatedOn      int64          `bun:"created_on" json:"createdOn"`
	UpdatedOn      int64          `bun:"updated_on" json:"updatedOn"`
}

// syncDenormalized copies nested lookup keys into their indexed columns
func (r *Record) syncDenormalized() {
	if r == nil {
		return
	}
	r.PrimaryEmail = strings.ToLower(r.Emails.PrimaryAddress())
	r.AccessToken = r.JWTs.Token
}

// Filter selects records. Zero values do not constrain the query, Archived
// nil matches both archived and live records.
type Filter struct {
	ID           string
	PrimaryEmail string
	Username     string
	SessionID    string
	AccessToken  string
	Type         Variant
	Archived     *bool
}

// IsEmpty reports whether no selector other than Archived is set
func (f Filter) IsEmpty() bool {
	return f.ID == "" && f.PrimaryEmail == "" && f.Username == "" &&
		f.SessionID == "" && f.AccessToken == "" && f.Type == ""
}

// GroupBy names the grouping axis of an Aggregation
type GroupBy string

const (
	// GroupByStatus buckets users by status and type
	GroupByStatus GroupBy = "status"
	// GroupByType buckets users by type only
	GroupByType GroupBy = "type"
)

// Aggregation describes a grouped count over user records
type Aggregation struct {
	GroupBy  GroupBy
	Types    []Variant
	Archived *bool
}

// GroupKey identifies a bucket. Status is empty when grouping by type.
type GroupKey struct {
	Status UserStatus `json:"status,omitempty"`
	Type   Variant    `json:"type"`
}

// UserSummary is the per-user row inside a group
type UserSummary struct {
	ID           string     `json:"id"`
	PrimaryEmail string     `json:"primary_email"`
	Name         string     `json:"name"`
	Status       UserStatus `json:"status,omitempty"`
}

// UserGroup is one bucket of an aggregation
type UserGroup struct {
	Key   GroupKey      `json:"_id"`
	Count int           `json:"count"`
	Users []UserSummary `json:"users"`
}

func boolPtr(v bool) *bool {
	return &v
}
