package users

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"strings"

	"github.com/goliatone/go-print"
)

// PEMBlock selects the PEM armor of a key
type PEMBlock string

const (
	// PEMPublic wraps SPKI DER
	PEMPublic PEMBlock = "PUBLIC KEY"
	// PEMPrivate wraps PKCS8 DER
	PEMPrivate PEMBlock = "PRIVATE KEY"
)

// ExportToPEM armors der with BEGIN/END markers, base64 wrapped at 64 columns
func ExportToPEM(der []byte, block PEMBlock) string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  string(block),
		Bytes: der,
	}))
}

// ImportFromPEM is the inverse of ExportToPEM
func ImportFromPEM(data string, block PEMBlock) ([]byte, error) {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return nil, NewEncodingError(nil, "empty PEM input")
	}

	b, rest := pem.Decode([]byte(trimmed))
	if b == nil {
		return nil, NewEncodingError(nil, "missing or malformed PEM markers").
			WithMetadata(map[string]any{"expected": string(block)})
	}

	if b.Type != string(block) {
		return nil, NewEncodingError(nil, "unexpected PEM block type").
			WithMetadata(map[string]any{
				"expected": string(block),
				"found":    b.Type,
			})
	}

	if len(strings.TrimSpace(string(rest))) > 0 {
		return nil, NewEncodingError(nil, "trailing data after PEM block")
	}

	return b.Bytes, nil
}

// JWK is an RSA public JSON Web Key
type JWK struct {
	Kty    string   `json:"kty"`
	Use    string   `json:"use,omitempty"`
	Alg    string   `json:"alg,omitempty"`
	Kid    string   `json:"kid,omitempty"`
	KeyOps []string `json:"key_ops,omitempty"`
	N      string   `json:"n"`
	E      string   `json:"e"`
}

// JWKSet is a JSON Web Key Set document
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// ToJWK converts an SPKI encoded RSA public key into a JWK
func ToJWK(spkiDER []byte, use KeyUse, kid, alg string) (*JWK, error) {
	pub, err := parseRSAPublicKey(spkiDER)
	if err != nil {
		return nil, err
	}

	return &JWK{
		Kty:    "RSA",
		Use:    string(use),
		Alg:    alg,
		Kid:    kid,
		KeyOps: use.keyOps(),
		N:      base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:      base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}, nil
}

// ParseJWK decodes a single JWK document
func ParseJWK(data []byte) (*JWK, error) {
	jwk := &JWK{}
	if err := json.Unmarshal(data, jwk); err != nil {
		return nil, NewEncodingError(err, "malformed JWK")
	}
	if jwk.Kty != "RSA" {
		return nil, NewEncodingError(nil, "unsupported JWK key type").
			WithMetadata(map[string]any{"kty": jwk.Kty})
	}
	if jwk.N == "" || jwk.E == "" {
		return nil, NewEncodingError(nil, "JWK is missing modulus or exponent")
	}
	return jwk, nil
}

// PublicKey rebuilds the RSA public key
func (j *JWK) PublicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(j.N)
	if err != nil {
		return nil, NewEncodingError(err, "malformed JWK modulus")
	}
	e, err := base64.RawURLEncoding.DecodeString(j.E)
	if err != nil {
		return nil, NewEncodingError(err, "malformed JWK exponent")
	}

	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() < 3 {
		return nil, NewEncodingError(nil, "invalid JWK exponent")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(exp.Int64()),
	}, nil
}

// Thumbprint is the RFC 7638 SHA-256 thumbprint, base64url without padding
func (j *JWK) Thumbprint() (string, error) {
	if j == nil || j.Kty != "RSA" || j.N == "" || j.E == "" {
		return "", NewEncodingError(nil, "cannot compute thumbprint of incomplete JWK")
	}

	// members in lexicographic order
	canonical, err := json.Marshal(struct {
		E   string `json:"e"`
		Kty string `json:"kty"`
		N   string `json:"n"`
	}{j.E, j.Kty, j.N})
	if err != nil {
		return "", NewEncodingError(err, "failed to encode JWK thumbprint input")
	}

	sum := sha256.Sum256(canonical)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// Bytes is the compact JSON encoding stored as the JWK artifact
func (j *JWK) Bytes() ([]byte, error) {
	b, err := json.Marshal(j)
	if err != nil {
		return nil, NewEncodingError(err, "failed to encode JWK")
	}
	return b, nil
}

// FormatJWK renders a JWK for human display
func FormatJWK(jwk *JWK) string {
	if jwk == nil {
		return ""
	}
	return print.MaybePrettyJSON(jwk)
}

func parseRSAPublicKey(spkiDER []byte) (*rsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(spkiDER)
	if err != nil {
		return nil, NewEncodingError(err, "malformed SPKI public key")
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, NewEncodingError(nil, "public key is not RSA")
	}
	return pub, nil
}

func parseRSAPrivateKey(pkcs8DER []byte) (*rsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(pkcs8DER)
	if err != nil {
		return nil, NewEncodingError(err, "malformed PKCS8 private key")
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, NewEncodingError(nil, "private key is not RSA")
	}
	return priv, nil
}
