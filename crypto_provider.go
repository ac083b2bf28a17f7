package users

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"io"

	_ "crypto/sha256"
	_ "crypto/sha512"

	goerrors "github.com/goliatone/go-errors"
)

// KeyKind selects one of the two per-user key rings
type KeyKind string

const (
	KeyKindSigning    KeyKind = "signing"
	KeyKindEncrypting KeyKind = "encrypting"
)

// IsValid reports whether k is a known kind
func (k KeyKind) IsValid() bool {
	return k == KeyKindSigning || k == KeyKindEncrypting
}

// Use is the JWK "use" value for the kind
func (k KeyKind) Use() KeyUse {
	if k == KeyKindEncrypting {
		return KeyUseEnc
	}
	return KeyUseSig
}

// KeyUse is the JWK "use" member
type KeyUse string

const (
	KeyUseSig KeyUse = "sig"
	KeyUseEnc KeyUse = "enc"
)

func (u KeyUse) keyOps() []string {
	switch u {
	case KeyUseSig:
		return []string{"verify"}
	case KeyUseEnc:
		return []string{"encrypt"}
	}
	return nil
}

// Algorithm is the asymmetric scheme a key is generated for
type Algorithm string

const (
	AlgRSASSAPKCS1v15 Algorithm = "RSASSA-PKCS1-v1_5"
	AlgRSAPSS         Algorithm = "RSA-PSS"
	AlgRSAOAEP        Algorithm = "RSA-OAEP"
)

// HashName is a SHA-2 digest name
type HashName string

const (
	HashSHA256 HashName = "SHA-256"
	HashSHA384 HashName = "SHA-384"
	HashSHA512 HashName = "SHA-512"
)

func (h HashName) cryptoHash() (crypto.Hash, bool) {
	switch h {
	case HashSHA256:
		return crypto.SHA256, true
	case HashSHA384:
		return crypto.SHA384, true
	case HashSHA512:
		return crypto.SHA512, true
	}
	return 0, false
}

func (h HashName) suffix() string {
	switch h {
	case HashSHA384:
		return "384"
	case HashSHA512:
		return "512"
	}
	return "256"
}

// JWTAlgorithm maps an algorithm and hash to its JOSE name, ie RS256,
// PS384 or RSA-OAEP-256.
func JWTAlgorithm(alg Algorithm, hash HashName) string {
	switch alg {
	case AlgRSAPSS:
		return "PS" + hash.suffix()
	case AlgRSAOAEP:
		return "RSA-OAEP-" + hash.suffix()
	}
	return "RS" + hash.suffix()
}

const (
	// MinModulusBits is the smallest RSA key accepted
	MinModulusBits = 2048
	// DefaultPublicExponent is F4, the only exponent crypto/rsa generates
	DefaultPublicExponent = 65537
)

// KeyUsage is a WebCrypto style usage flag
type KeyUsage string

const (
	UsageSign    KeyUsage = "sign"
	UsageVerify  KeyUsage = "verify"
	UsageEncrypt KeyUsage = "encrypt"
	UsageDecrypt KeyUsage = "decrypt"
)

// KeyOptions controls key generation. Zero values take the kind defaults.
type KeyOptions struct {
	Algorithm      Algorithm
	ModulusBits    int
	PublicExponent int
	Hash           HashName
	// Extractable nil means true. Non extractable keys cannot be persisted.
	Extractable *bool
	Uses        []KeyUsage
}

// DefaultKeyOptions returns the options used when none are given
func DefaultKeyOptions(kind KeyKind) KeyOptions {
	opts := KeyOptions{
		Algorithm:      AlgRSASSAPKCS1v15,
		ModulusBits:    MinModulusBits,
		PublicExponent: DefaultPublicExponent,
		Hash:           HashSHA256,
		Uses:           []KeyUsage{UsageSign, UsageVerify},
	}
	if kind == KeyKindEncrypting {
		opts.Algorithm = AlgRSAOAEP
		opts.Uses = []KeyUsage{UsageEncrypt, UsageDecrypt}
	}
	return opts
}

func (o KeyOptions) withDefaults(kind KeyKind) KeyOptions {
	def := DefaultKeyOptions(kind)
	if o.Algorithm == "" {
		o.Algorithm = def.Algorithm
	}
	if o.ModulusBits == 0 {
		o.ModulusBits = def.ModulusBits
	}
	if o.PublicExponent == 0 {
		o.PublicExponent = def.PublicExponent
	}
	if o.Hash == "" {
		o.Hash = def.Hash
	}
	if len(o.Uses) == 0 {
		o.Uses = def.Uses
	}
	return o
}

// IsExtractable reports whether key material may leave the provider
func (o KeyOptions) IsExtractable() bool {
	return o.Extractable == nil || *o.Extractable
}

func (o KeyOptions) validate(kind KeyKind) error {
	var fields []string

	switch kind {
	case KeyKindSigning:
		if o.Algorithm != AlgRSASSAPKCS1v15 && o.Algorithm != AlgRSAPSS {
			fields = append(fields, "algorithm")
		}
	case KeyKindEncrypting:
		if o.Algorithm != AlgRSAOAEP {
			fields = append(fields, "algorithm")
		}
	default:
		fields = append(fields, "kind")
	}

	if o.ModulusBits < MinModulusBits {
		fields = append(fields, "modulusBits")
	}
	if o.PublicExponent != DefaultPublicExponent {
		fields = append(fields, "publicExponent")
	}
	if _, ok := o.Hash.cryptoHash(); !ok {
		fields = append(fields, "hash")
	}

	for _, u := range o.Uses {
		allowed := u == UsageSign || u == UsageVerify
		if kind == KeyKindEncrypting {
			allowed = u == UsageEncrypt || u == UsageDecrypt
		}
		if !allowed {
			fields = append(fields, "uses")
			break
		}
	}

	if len(fields) > 0 {
		return NewValidationError("invalid key options", fields...)
	}
	return nil
}

// KeyMaterial is a freshly generated keypair in its export forms
type KeyMaterial struct {
	PublicDER  []byte // SPKI
	PrivateDER []byte // PKCS8
}

// CryptoKey is an imported key ready for use
type CryptoKey struct {
	Kind      KeyKind
	Kid       string
	Algorithm Algorithm
	Hash      HashName
	Public    *rsa.PublicKey
	Private   *rsa.PrivateKey
}

// IsPrivate reports whether the key holds private material
func (k *CryptoKey) IsPrivate() bool {
	return k != nil && k.Private != nil
}

func (k *CryptoKey) publicKey() *rsa.PublicKey {
	if k.Public != nil {
		return k.Public
	}
	if k.Private != nil {
		return &k.Private.PublicKey
	}
	return nil
}

// CryptoProvider performs the asymmetric primitives
type CryptoProvider interface {
	GenerateKey(ctx context.Context, opts KeyOptions) (*KeyMaterial, error)
	Sign(ctx context.Context, key *CryptoKey, data []byte) ([]byte, error)
	Verify(ctx context.Context, key *CryptoKey, signature, data []byte) (bool, error)
	Encrypt(ctx context.Context, key *CryptoKey, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, key *CryptoKey, ciphertext []byte) ([]byte, error)
}

// RSAProvider is the default CryptoProvider
type RSAProvider struct {
	random io.Reader
}

// NewRSAProvider returns a provider reading entropy from crypto/rand
func NewRSAProvider() *RSAProvider {
	return &RSAProvider{random: rand.Reader}
}

// WithRandom swaps the entropy source
func (p *RSAProvider) WithRandom(r io.Reader) *RSAProvider {
	if r != nil {
		p.random = r
	}
	return p
}

func (p *RSAProvider) GenerateKey(ctx context.Context, opts KeyOptions) (*KeyMaterial, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	priv, err := rsa.GenerateKey(p.random, opts.ModulusBits)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate RSA key")
	}

	if priv.E != opts.PublicExponent {
		return nil, goerrors.New("unsupported public exponent", goerrors.CategoryBadInput)
	}

	pub, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to export public key")
	}

	pkcs8, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to export private key")
	}

	return &KeyMaterial{PublicDER: pub, PrivateDER: pkcs8}, nil
}

func (p *RSAProvider) Sign(ctx context.Context, key *CryptoKey, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == nil || key.Kind != KeyKindSigning || !key.IsPrivate() {
		return nil, NewKeyUsageError(kindOf(key), "sign")
	}

	h, digest, err := digestFor(key.Hash, data)
	if err != nil {
		return nil, err
	}

	if key.Algorithm == AlgRSAPSS {
		return rsa.SignPSS(p.random, key.Private, h, digest, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
		})
	}
	return rsa.SignPKCS1v15(p.random, key.Private, h, digest)
}

func (p *RSAProvider) Verify(ctx context.Context, key *CryptoKey, signature, data []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if key == nil || key.Kind != KeyKindSigning || key.publicKey() == nil {
		return false, NewKeyUsageError(kindOf(key), "verify")
	}

	h, digest, err := digestFor(key.Hash, data)
	if err != nil {
		return false, err
	}

	if key.Algorithm == AlgRSAPSS {
		err = rsa.VerifyPSS(key.publicKey(), h, digest, signature, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
		})
	} else {
		err = rsa.VerifyPKCS1v15(key.publicKey(), h, digest, signature)
	}

	if errors.Is(err, rsa.ErrVerification) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *RSAProvider) Encrypt(ctx context.Context, key *CryptoKey, plaintext []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == nil || key.Kind != KeyKindEncrypting || key.publicKey() == nil {
		return nil, NewKeyUsageError(kindOf(key), "encrypt")
	}

	h, ok := key.Hash.cryptoHash()
	if !ok {
		return nil, NewValidationError("unsupported hash", "hash")
	}

	out, err := rsa.EncryptOAEP(h.New(), p.random, key.publicKey(), plaintext, nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to encrypt payload")
	}
	return out, nil
}

func (p *RSAProvider) Decrypt(ctx context.Context, key *CryptoKey, ciphertext []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == nil || key.Kind != KeyKindEncrypting || !key.IsPrivate() {
		return nil, NewKeyUsageError(kindOf(key), "decrypt")
	}

	h, ok := key.Hash.cryptoHash()
	if !ok {
		return nil, NewValidationError("unsupported hash", "hash")
	}

	out, err := rsa.DecryptOAEP(h.New(), p.random, key.Private, ciphertext, nil)
	if err != nil {
		return nil, NewCredentialError(err, "failed to decrypt payload")
	}
	return out, nil
}

func digestFor(name HashName, data []byte) (crypto.Hash, []byte, error) {
	h, ok := name.cryptoHash()
	if !ok {
		return 0, nil, NewValidationError("unsupported hash", "hash")
	}
	hasher := h.New()
	hasher.Write(data)
	return h, hasher.Sum(nil), nil
}

func kindOf(key *CryptoKey) KeyKind {
	if key == nil {
		return ""
	}
	return key.Kind
}
