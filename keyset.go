package users

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// KeySetVerifier verifies tokens against a published JWKS, for services
// that only ever see the public half of a user's keys.
type KeySetVerifier struct {
	jwks     *keyfunc.JWKS
	issuer   string
	audience []string
	now      func() time.Time
}

// NewKeySetVerifier verifies against a static key set
func NewKeySetVerifier(set JWKSet, cfg TokenConfig) (*KeySetVerifier, error) {
	raw, err := json.Marshal(set)
	if err != nil {
		return nil, NewEncodingError(err, "failed to encode key set")
	}

	jwks, err := keyfunc.NewJSON(raw)
	if err != nil {
		return nil, NewEncodingError(err, "failed to load key set")
	}

	return newKeySetVerifier(jwks, cfg), nil
}

// NewRemoteKeySetVerifier fetches the key set from a jku URL and keeps it
// refreshed in the background until Close.
func NewRemoteKeySetVerifier(url string, cfg TokenConfig, logger Logger) (*KeySetVerifier, error) {
	logger = normalizeLogger(logger)

	jwks, err := keyfunc.Get(url, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Error("failed to refresh key set %s: %v", url, err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to fetch key set").
			WithMetadata(map[string]any{"url": url})
	}

	return newKeySetVerifier(jwks, cfg), nil
}

func newKeySetVerifier(jwks *keyfunc.JWKS, cfg TokenConfig) *KeySetVerifier {
	return &KeySetVerifier{
		jwks:     jwks,
		issuer:   cfg.Issuer,
		audience: append([]string(nil), cfg.Audience...),
		now:      time.Now,
	}
}

// WithClock overrides the validation time source
func (v *KeySetVerifier) WithClock(now func() time.Time) *KeySetVerifier {
	if now != nil {
		v.now = now
	}
	return v
}

// KIDs lists the key ids the verifier knows
func (v *KeySetVerifier) KIDs() []string {
	return v.jwks.KIDs()
}

// Verify checks signature and standard claims
func (v *KeySetVerifier) Verify(token string) Verification {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if len(v.audience) > 0 {
		opts = append(opts, jwt.WithAudience(v.audience...))
	}

	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, v.jwks.Keyfunc, opts...)
	if err != nil {
		if errors.Is(err, keyfunc.ErrKIDNotFound) {
			return failed(FailureKeyNotFound, err)
		}
		return failed(classifyJWTError(err), err)
	}

	return Verification{Claims: claims}
}

// Close stops background refreshes of remote key sets
func (v *KeySetVerifier) Close() {
	v.jwks.EndBackground()
}
