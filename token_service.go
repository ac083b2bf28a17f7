package users

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the access token lifetime
const DefaultTokenTTL = 2 * time.Hour

// DefaultRefreshTTL is the refresh token lifetime
const DefaultRefreshTTL = 24 * time.Hour

// TokenConfig holds the issuer side settings of the TokenService
type TokenConfig struct {
	Issuer     string        `mapstructure:"issuer" json:"issuer"`
	Audience   []string      `mapstructure:"audience" json:"audience"`
	TTL        time.Duration `mapstructure:"ttl" json:"ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl" json:"refresh_ttl"`
	// Origin prefixes the jku header, ie https://example.com/@ada/jwks.json
	Origin string `mapstructure:"origin" json:"origin"`
}

// KeySource is the subset of KeyStore the TokenService reads from
type KeySource interface {
	RecordAt(kind KeyKind, index int) (KeyRecord, error)
	FindByKid(kid string) (KeyRecord, KeyKind, int, bool)
	ImportPrivateKey(ctx context.Context, kind KeyKind, index int) (*CryptoKey, error)
	ImportPublicKey(ctx context.Context, kind KeyKind, index int) (*CryptoKey, error)
}

// SignedToken is an issued JWT and the claims it carries
type SignedToken struct {
	Token     string        `json:"token"`
	Kid       string        `json:"kid"`
	ExpiresAt time.Time     `json:"expires_at"`
	Claims    *AccessClaims `json:"-"`
}

// VerificationFailure tags a routine verification outcome
type VerificationFailure string

const (
	FailureNone          VerificationFailure = ""
	FailureExpired       VerificationFailure = "expired"
	FailureBadSignature  VerificationFailure = "bad_signature"
	FailureKeyNotFound   VerificationFailure = "key_not_found"
	FailureMalformed     VerificationFailure = "malformed"
	FailureInvalidClaims VerificationFailure = "invalid_claims"
)

// Verification is the result of verifying a token. Claims is set only when
// Failure is FailureNone.
type Verification struct {
	Claims  *AccessClaims
	Failure VerificationFailure
	Reason  string
}

// OK reports a successful verification
func (v Verification) OK() bool {
	return v.Failure == FailureNone && v.Claims != nil
}

func failed(f VerificationFailure, err error) Verification {
	v := Verification{Failure: f}
	if err != nil {
		v.Reason = err.Error()
	}
	return v
}

// TokenService issues and verifies user JWTs signed with per-user keys
type TokenService struct {
	issuer     string
	audience   jwt.ClaimStrings
	ttl        time.Duration
	refreshTTL time.Duration
	origin     string
	now        func() time.Time
	logger     Logger
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg TokenConfig, logger Logger) *TokenService {
	ts := &TokenService{
		issuer:     cfg.Issuer,
		audience:   append(jwt.ClaimStrings(nil), cfg.Audience...),
		ttl:        cfg.TTL,
		refreshTTL: cfg.RefreshTTL,
		origin:     strings.TrimRight(cfg.Origin, "/"),
		now:        time.Now,
		logger:     normalizeLogger(logger),
	}
	if ts.ttl <= 0 {
		ts.ttl = DefaultTokenTTL
	}
	if ts.refreshTTL <= 0 {
		ts.refreshTTL = DefaultRefreshTTL
	}
	return ts
}

// WithClock overrides the time source for issuance and validation
func (ts *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		ts.now = now
	}
	return ts
}

// KeySetURL is the jku advertised for identity
func (ts *TokenService) KeySetURL(identity Identity) string {
	return ts.origin + "/@" + identity.Username() + "/jwks.json"
}

// Issue signs an access token with the signing key at keyIndex
func (ts *TokenService) Issue(ctx context.Context, identity Identity, keys KeySource, keyIndex int) (*SignedToken, error) {
	return ts.issue(ctx, identity, keys, keyIndex, TokenTypeAccess, ts.ttl)
}

// IssuePair signs an access and a refresh token with the same key
func (ts *TokenService) IssuePair(ctx context.Context, identity Identity, keys KeySource, keyIndex int) (*SignedToken, *SignedToken, error) {
	access, err := ts.issue(ctx, identity, keys, keyIndex, TokenTypeAccess, ts.ttl)
	if err != nil {
		return nil, nil, err
	}

	refresh, err := ts.issue(ctx, identity, keys, keyIndex, TokenTypeRefresh, ts.refreshTTL)
	if err != nil {
		return nil, nil, err
	}

	return access, refresh, nil
}

func (ts *TokenService) issue(ctx context.Context, identity Identity, keys KeySource, keyIndex int, typ TokenType, ttl time.Duration) (*SignedToken, error) {
	if identity == nil {
		return nil, NewValidationError("identity is required", "identity")
	}
	if keys == nil {
		return nil, NewKeyNotFoundError(KeyKindSigning, keyIndex, 0)
	}

	rec, err := keys.RecordAt(KeyKindSigning, keyIndex)
	if err != nil {
		return nil, err
	}

	key, err := keys.ImportPrivateKey(ctx, KeyKindSigning, keyIndex)
	if err != nil {
		return nil, err
	}

	method := jwt.GetSigningMethod(JWTAlgorithm(key.Algorithm, key.Hash))
	if method == nil {
		return nil, NewKeyUsageError(KeyKindSigning, "jwt signing")
	}

	now := ts.now()
	expiresAt := now.Add(ttl)

	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.Username(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:     identity.Email(),
		UID:       identity.ID(),
		UserRole:  identity.Role(),
		TokenType: typ,
	}
	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(method, claims)
	token.Header["kid"] = key.Kid
	token.Header["jku"] = ts.KeySetURL(identity)

	if x5t, err := rec.JWK.Thumbprint(); err != nil {
		ts.logger.Warn("omitting x5t header for key %s: %v", key.Kid, err)
	} else {
		token.Header["x5t"] = x5t
	}

	signed, err := token.SignedString(key.Private)
	if err != nil {
		return nil, NewCredentialError(err, "failed to sign JWT")
	}

	return &SignedToken{
		Token:     signed,
		Kid:       key.Kid,
		ExpiresAt: expiresAt,
		Claims:    claims,
	}, nil
}

// Verify checks token against the key named by its kid header, or the
// signing key at keyIndex when the header has none. The signature is
// checked over the raw header.payload before any claim is decoded. Routine
// failures are reported in the Verification, the error is reserved for I/O
// faults.
func (ts *TokenService) Verify(ctx context.Context, token string, keys KeySource, keyIndex int) (Verification, error) {
	if err := ctx.Err(); err != nil {
		return Verification{}, err
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return failed(FailureMalformed, jwt.ErrTokenMalformed), nil
	}

	header, err := decodeHeader(parts[0])
	if err != nil {
		return failed(FailureMalformed, err), nil
	}

	if keys == nil {
		return failed(FailureKeyNotFound, nil), nil
	}

	index := keyIndex
	if header.Kid != "" {
		_, kind, idx, ok := keys.FindByKid(header.Kid)
		if !ok || kind != KeyKindSigning {
			return Verification{Failure: FailureKeyNotFound, Reason: "unknown kid " + header.Kid}, nil
		}
		index = idx
	}

	key, err := keys.ImportPublicKey(ctx, KeyKindSigning, index)
	if err != nil {
		if IsKeyNotFound(err) {
			return failed(FailureKeyNotFound, err), nil
		}
		return Verification{}, err
	}

	alg := JWTAlgorithm(key.Algorithm, key.Hash)
	if header.Alg != alg {
		return Verification{Failure: FailureBadSignature, Reason: "unexpected alg " + header.Alg}, nil
	}

	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return Verification{Failure: FailureBadSignature, Reason: "unsupported alg " + alg}, nil
	}

	sig, err := jwt.NewParser().DecodeSegment(parts[2])
	if err != nil {
		return failed(FailureBadSignature, err), nil
	}
	if err := method.Verify(parts[0]+"."+parts[1], sig, key.Public); err != nil {
		return failed(FailureBadSignature, err), nil
	}

	claims := &AccessClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key.Public, nil
	}, ts.parserOptions(alg)...)

	if err != nil {
		return failed(classifyJWTError(err), err), nil
	}

	return Verification{Claims: claims}, nil
}

// VerifyAccess is Verify for tokens presented as access tokens, refresh
// tokens are rejected as invalid claims.
func (ts *TokenService) VerifyAccess(ctx context.Context, token string, keys KeySource, keyIndex int) (Verification, error) {
	v, err := ts.Verify(ctx, token, keys, keyIndex)
	if err != nil || !v.OK() {
		return v, err
	}
	if v.Claims.IsRefresh() {
		return Verification{Failure: FailureInvalidClaims, Reason: "refresh token presented as access token"}, nil
	}
	return v, nil
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

func decodeHeader(segment string) (tokenHeader, error) {
	var h tokenHeader
	raw, err := jwt.NewParser().DecodeSegment(segment)
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(raw, &h); err != nil {
		return h, err
	}
	if h.Alg == "" {
		return h, jwt.ErrTokenMalformed
	}
	return h, nil
}

func (ts *TokenService) parserOptions(alg string) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{alg}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		opts = append(opts, jwt.WithAudience(ts.audience...))
	}
	return opts
}

func classifyJWTError(err error) VerificationFailure {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return FailureExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return FailureBadSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return FailureMalformed
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return FailureKeyNotFound
	}
	return FailureInvalidClaims
}
