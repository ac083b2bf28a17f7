package users

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// env is shared by the Directory and every user it builds
type env struct {
	cfg      Config
	store    Store
	files    FileStorage
	crypto   CryptoProvider
	vault    *PasswordVault
	tokens   *TokenService
	logger   Logger
	activity ActivitySink
	now      func() time.Time
}

// Directory is the factory, lookup and authentication facade over the
// user store.
type Directory struct {
	env *env
}

// NewDirectory validates cfg and wires the default collaborators
func NewDirectory(store Store, files FileStorage, cfg Config) (*Directory, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &env{
		cfg:      cfg,
		store:    store,
		files:    files,
		crypto:   NewRSAProvider(),
		vault:    NewPasswordVault(cfg.PasswordCost),
		logger:   defLogger{},
		activity: noopActivitySink{},
		now:      time.Now,
	}
	e.tokens = NewTokenService(cfg.Token, e.logger).WithClock(e.clock)

	return &Directory{env: e}, nil
}

// clock indirects now so WithClock reaches services built earlier
func (e *env) clock() time.Time {
	return e.now()
}

// WithLogger sets the logger shared by users and the TokenService
func (d *Directory) WithLogger(logger Logger) *Directory {
	d.env.logger = normalizeLogger(logger)
	d.env.tokens.logger = d.env.logger
	return d
}

// WithActivitySink sets where activity events go, nil drops them
func (d *Directory) WithActivitySink(sink ActivitySink) *Directory {
	d.env.activity = normalizeActivitySink(sink)
	return d
}

// WithCryptoProvider replaces the RSA provider, nil is ignored
func (d *Directory) WithCryptoProvider(provider CryptoProvider) *Directory {
	if provider != nil {
		d.env.crypto = provider
	}
	return d
}

// WithClock overrides the time source for timestamps and token validity
func (d *Directory) WithClock(now func() time.Time) *Directory {
	if now != nil {
		d.env.now = now
	}
	return d
}

// WithPasswordCost changes the bcrypt cost for new hashes
func (d *Directory) WithPasswordCost(cost int) *Directory {
	d.env.vault = NewPasswordVault(cost)
	return d
}

// Config returns the normalized configuration
func (d *Directory) Config() Config {
	return d.env.cfg
}

// Tokens returns the TokenService users issue through
func (d *Directory) Tokens() *TokenService {
	return d.env.tokens
}

// NewUserInput carries the fields of a fresh user
type NewUserInput struct {
	First          string
	Last           string
	Username       string
	Email          string
	SecondaryEmail string
	Password       string
	DisplayName    string
	Description    string
	SessionID      string
	Status         UserStatus
}

// NewUser builds an unsaved user of variant. Defaults: active status,
// username from the email local part, variant description.
func (d *Directory) NewUser(variant Variant, in NewUserInput) (*User, error) {
	if !variant.IsValid() {
		return nil, NewValidationError("unknown user variant", "type")
	}

	status := in.Status
	if status == "" {
		status = StatusActive
	}

	rec := Record{
		Type:          variant,
		Status:        status,
		Avatar:        d.env.cfg.DefaultAvatar,
		Header:        d.env.cfg.DefaultHeader,
		Description:   in.Description,
		DisplayName:   in.DisplayName,
		SessionID:     in.SessionID,
		SchemaVersion: d.env.cfg.SchemaVersion,
		Locked:        true,
		Fields:        []ProfileField{},
		Emojis:        []Emoji{},
	}
	if rec.Description == "" {
		rec.Description = variant.Description()
	}

	u := newUser(d.env, rec)
	u.SetName(in.First, in.Last)

	if in.Email != "" {
		if err := u.SetEmails(in.Email, in.SecondaryEmail); err != nil {
			return nil, err
		}
	}

	if username := usernameFor(in.Username, in.Email); username != "" {
		if err := u.SetUsername(username); err != nil {
			return nil, err
		}
	}

	if in.Password != "" {
		if err := u.SetPassword(in.Password); err != nil {
			return nil, err
		}
	}

	return u, nil
}

func usernameFor(username, email string) string {
	if username != "" {
		return username
	}
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return ""
}

// Resolve builds a user of the record's variant. Unknown variants become
// plain users and an empty status reads as inactive.
func (d *Directory) Resolve(rec *Record) *User {
	if rec == nil {
		return nil
	}
	cp := *rec
	if !cp.Type.IsValid() {
		if v, ok := ParseVariant(string(cp.Type)); ok {
			cp.Type = v
		} else {
			d.env.logger.Warn("record %s has unknown type %q, resolving as %s", cp.ID, cp.Type, VariantUser)
			cp.Type = VariantUser
		}
	}
	if cp.Status == "" {
		cp.Status = StatusInactive
	}
	return newUser(d.env, cp)
}

// LookupOption adjusts a lookup
type LookupOption func(*lookupOptions)

type lookupOptions struct {
	archived *bool
}

// WithArchived selects archived (true) or live (false) accounts. Lookups
// exclude archived accounts by default.
func WithArchived(archived bool) LookupOption {
	return func(o *lookupOptions) {
		o.archived = boolPtr(archived)
	}
}

// WithAnyArchived matches archived and live accounts
func WithAnyArchived() LookupOption {
	return func(o *lookupOptions) {
		o.archived = nil
	}
}

func (d *Directory) lookup(ctx context.Context, filter Filter, opts []LookupOption) (*User, error) {
	if d.env.store == nil {
		return nil, ErrMissingStore
	}

	o := &lookupOptions{archived: boolPtr(false)}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	filter.Archived = o.archived

	rec, err := d.env.store.FindOne(ctx, filter)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user")
	}
	return d.Resolve(rec), nil
}

// LookupByID returns nil, nil when no user matches
func (d *Directory) LookupByID(ctx context.Context, id string, opts ...LookupOption) (*User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewValidationError("id is required", "id")
	}
	return d.lookup(ctx, Filter{ID: id}, opts)
}

// LookupByEmail matches the primary email, case-insensitively
func (d *Directory) LookupByEmail(ctx context.Context, email string, opts ...LookupOption) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, NewValidationError("email is required", "email")
	}
	return d.lookup(ctx, Filter{PrimaryEmail: email}, opts)
}

func (d *Directory) LookupByUsername(ctx context.Context, username string, opts ...LookupOption) (*User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, NewValidationError("username is required", "username")
	}
	return d.lookup(ctx, Filter{Username: strings.TrimSpace(username)}, opts)
}

func (d *Directory) LookupBySessionID(ctx context.Context, sessionID string, opts ...LookupOption) (*User, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, NewValidationError("session id is required", "sessionId")
	}
	return d.lookup(ctx, Filter{SessionID: sessionID}, opts)
}

// IsUsernameAvailable checks live and archived accounts alike
func (d *Directory) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	u, err := d.LookupByUsername(ctx, username, WithAnyArchived())
	if err != nil {
		return false, err
	}
	return u == nil, nil
}
