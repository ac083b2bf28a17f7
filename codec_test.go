package users_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"strings"
	"sync"
	"testing"

	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func rsaTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

func TestPEM_RoundTrip(t *testing.T) {
	key := rsaTestKey(t)

	spki, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	pemText := users.ExportToPEM(spki, users.PEMPublic)
	assert.True(t, strings.HasPrefix(pemText, "-----BEGIN PUBLIC KEY-----\n"))
	assert.True(t, strings.HasSuffix(pemText, "-----END PUBLIC KEY-----\n"))

	for _, line := range strings.Split(strings.TrimSpace(pemText), "\n") {
		assert.LessOrEqual(t, len(line), 64)
	}

	assert.Equal(t, pemText, users.ExportToPEM(spki, users.PEMPublic), "export is deterministic")

	der, err := users.ImportFromPEM(pemText, users.PEMPublic)
	require.NoError(t, err)
	assert.Equal(t, spki, der)

	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	der, err = users.ImportFromPEM(users.ExportToPEM(pkcs8, users.PEMPrivate), users.PEMPrivate)
	require.NoError(t, err)
	assert.Equal(t, pkcs8, der)
}

func TestImportFromPEM_Errors(t *testing.T) {
	key := rsaTestKey(t)
	spki, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	valid := users.ExportToPEM(spki, users.PEMPublic)

	tests := []struct {
		name  string
		input string
		block users.PEMBlock
	}{
		{name: "empty", input: "", block: users.PEMPublic},
		{name: "no markers", input: "MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEA", block: users.PEMPublic},
		{name: "wrong block", input: valid, block: users.PEMPrivate},
		{name: "bad base64", input: "-----BEGIN PUBLIC KEY-----\n!!!!\n-----END PUBLIC KEY-----\n", block: users.PEMPublic},
		{name: "trailing data", input: valid + "garbage", block: users.PEMPublic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := users.ImportFromPEM(tt.input, tt.block)
			require.Error(t, err)
			assert.True(t, users.IsEncodingError(err))
		})
	}
}

func TestToJWK(t *testing.T) {
	key := rsaTestKey(t)
	spki, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	jwk, err := users.ToJWK(spki, users.KeyUseSig, "kid-1", "RS256")
	require.NoError(t, err)

	assert.Equal(t, "RSA", jwk.Kty)
	assert.Equal(t, "sig", jwk.Use)
	assert.Equal(t, "RS256", jwk.Alg)
	assert.Equal(t, "kid-1", jwk.Kid)
	assert.Equal(t, "AQAB", jwk.E)
	assert.Equal(t, []string{"verify"}, jwk.KeyOps)

	pub, err := jwk.PublicKey()
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(pub))

	raw, err := jwk.Bytes()
	require.NoError(t, err)

	parsed, err := users.ParseJWK(raw)
	require.NoError(t, err)
	assert.Equal(t, jwk, parsed)

	formatted := users.FormatJWK(jwk)
	assert.Contains(t, formatted, "kid-1")
	assert.Contains(t, formatted, "RSA")

	_, err = users.ToJWK([]byte("nope"), users.KeyUseSig, "kid", "RS256")
	assert.True(t, users.IsEncodingError(err))
}

func TestParseJWK_Errors(t *testing.T) {
	_, err := users.ParseJWK([]byte("{"))
	assert.True(t, users.IsEncodingError(err))

	_, err = users.ParseJWK([]byte(`{"kty":"EC","n":"x","e":"y"}`))
	assert.True(t, users.IsEncodingError(err))

	_, err = users.ParseJWK([]byte(`{"kty":"RSA"}`))
	assert.True(t, users.IsEncodingError(err))
}

func TestJWK_Thumbprint(t *testing.T) {
	// RFC 7638 section 3.1
	jwk := &users.JWK{
		Kty: "RSA",
		N: "0vx7agoebGcQSuuPiLJXZptN9nndrQmbXEps2aiAFbWhM78LhWx4cbbfAAtVT86zwu1RK7aPFFxuhDR1L6tSoc_BJECPebWKRXjBZCiFV4n3oknjhMstn64tZ_2W-5JsGY4Hc5n9yBXArwl93lqt7_RN5w6Cf0h4QyQ5v-65YGjQR0_FDW2QvzqY368QQMicAtaSqzs8KJZgnYb9c7d0zgdAZHzu6qMQvRL5hajrn1n91CbOpbISD08qNLyrdkt-bFTWhAI4vMQFh6WeZu0fM4lFd2NcRwr3XPksINHaQ-G_xBniIqbw0Ls1jF44-csFCur-kEgU8awapJzKnqDKgw",
		E:   "AQAB",
		Alg: "RS256",
		Kid: "2011-04-29",
	}

	tp, err := jwk.Thumbprint()
	require.NoError(t, err)
	assert.Equal(t, "NzbLsXh8uDCcd-6MNwXF4W_7noWXFZAfHkxZsRGC9Xs", tp)

	var missing *users.JWK
	_, err = missing.Thumbprint()
	assert.True(t, users.IsEncodingError(err))
}
