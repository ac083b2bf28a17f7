package users

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
)

// GenerateStatus tells whether a generate call produced a key
type GenerateStatus string

const (
	// GenerateStatusNone means nothing was generated, the call was a no-op
	GenerateStatusNone GenerateStatus = "none"
	// GenerateStatusSuccess means a new key is now current
	GenerateStatusSuccess GenerateStatus = "success"
)

// GenerateResult is the outcome of one GenerateKeyPair or RotateKeyPair
type GenerateResult struct {
	Status GenerateStatus `json:"status"`
	Kind   KeyKind        `json:"kind"`
	Record *KeyRecord     `json:"record,omitempty"`
}

// KeyStore generates, persists and loads the keypairs of one user
type KeyStore struct {
	files      FileStorage
	crypto     CryptoProvider
	logger     Logger
	now        func() time.Time
	newKid     func() (string, error)
	publicDir  string
	privateDir string
	signing    *KeyRing
	encrypting *KeyRing
}

// NewKeyStore creates an empty store. Directories must be set before keys
// can be generated or imported.
func NewKeyStore(files FileStorage, provider CryptoProvider) *KeyStore {
	if provider == nil {
		provider = NewRSAProvider()
	}
	return &KeyStore{
		files:      files,
		crypto:     provider,
		logger:     defLogger{},
		now:        time.Now,
		newKid:     newKid,
		signing:    NewKeyRing(nil),
		encrypting: NewKeyRing(nil),
	}
}

// WithLogger sets the logger, nil restores the default
func (ks *KeyStore) WithLogger(logger Logger) *KeyStore {
	ks.logger = normalizeLogger(logger)
	return ks
}

// WithClock overrides the time source used for CreatedOn
func (ks *KeyStore) WithClock(now func() time.Time) *KeyStore {
	if now != nil {
		ks.now = now
	}
	return ks
}

// SetDirectories points the store at the owner's current directories
func (ks *KeyStore) SetDirectories(publicDir, privateDir string) {
	ks.publicDir = publicDir
	ks.privateDir = privateDir
}

// Load replaces both rings with persisted records
func (ks *KeyStore) Load(records KeyRecords) {
	ks.signing = NewKeyRing(records.Signing)
	ks.encrypting = NewKeyRing(records.Encrypting)
}

// Snapshot returns both rings newest-first for persistence
func (ks *KeyStore) Snapshot() KeyRecords {
	return KeyRecords{
		Signing:    ks.signing.Records(),
		Encrypting: ks.encrypting.Records(),
	}
}

// Ring returns the ring for kind, nil for unknown kinds
func (ks *KeyStore) Ring(kind KeyKind) *KeyRing {
	switch kind {
	case KeyKindSigning:
		return ks.signing
	case KeyKindEncrypting:
		return ks.encrypting
	}
	return nil
}

// GenerateKeyPair creates the first key of kind. It is a no-op when a
// current key with a live public artifact exists, or when an artifact
// already occupies the next location.
func (ks *KeyStore) GenerateKeyPair(ctx context.Context, kind KeyKind, opts KeyOptions) (GenerateResult, error) {
	return ks.generate(ctx, kind, opts, false)
}

// RotateKeyPair appends a new current key of kind, older keys stay
// addressable by index and kid.
func (ks *KeyStore) RotateKeyPair(ctx context.Context, kind KeyKind, opts KeyOptions) (GenerateResult, error) {
	return ks.generate(ctx, kind, opts, true)
}

type keyArtifact struct {
	name string
	path string
	data []byte
}

func (ks *KeyStore) generate(ctx context.Context, kind KeyKind, opts KeyOptions, rotate bool) (GenerateResult, error) {
	none := GenerateResult{Status: GenerateStatusNone, Kind: kind}

	ring := ks.Ring(kind)
	if ring == nil {
		return none, NewValidationError("unknown key kind", "kind")
	}

	if ks.files == nil {
		return none, ErrMissingFileStorage
	}

	if ks.publicDir == "" || ks.privateDir == "" {
		return none, NewValidationError("key directories are not set", missingDirs(ks.publicDir, ks.privateDir)...)
	}

	opts = opts.withDefaults(kind)
	if err := opts.validate(kind); err != nil {
		return none, err
	}

	if !opts.IsExtractable() {
		return none, NewKeyGenerationError(nil, "non extractable keys cannot be persisted", map[string]any{
			"kind": string(kind),
		})
	}

	if !rotate {
		if current, ok := ring.Current(); ok {
			exists, err := ks.files.Exists(ctx, ks.publicPath(current.PublicKeyRef))
			if err != nil {
				return none, NewKeyGenerationError(err, "failed to stat current public key", map[string]any{
					"kind": string(kind),
					"path": current.PublicKeyRef,
				})
			}
			if exists {
				ks.logger.Debug("%s key %s already exists, skipping generation", kind, current.Kid)
				return none, nil
			}
		}
	}

	seq := ring.nextSequence()
	refs := artifactRefs(kind, seq)

	exists, err := ks.files.Exists(ctx, ks.publicPath(refs.public))
	if err != nil {
		return none, NewKeyGenerationError(err, "failed to stat public key location", map[string]any{
			"kind": string(kind),
			"path": refs.public,
		})
	}
	if exists {
		ks.logger.Warn("%s key artifact %s already exists, refusing to overwrite", kind, refs.public)
		return none, nil
	}

	material, err := ks.crypto.GenerateKey(ctx, opts)
	if err != nil {
		return none, NewKeyGenerationError(err, "failed to generate keypair", map[string]any{
			"kind": string(kind),
		})
	}

	kid, err := ks.newKid()
	if err != nil {
		return none, NewKeyGenerationError(err, "failed to allocate kid", nil)
	}

	alg := JWTAlgorithm(opts.Algorithm, opts.Hash)
	jwk, err := ToJWK(material.PublicDER, kind.Use(), kid, alg)
	if err != nil {
		return none, NewKeyGenerationError(err, "failed to export JWK", nil)
	}

	jwkBytes, err := jwk.Bytes()
	if err != nil {
		return none, NewKeyGenerationError(err, "failed to encode JWK", nil)
	}

	artifacts := []keyArtifact{
		{name: "public", path: ks.publicPath(refs.public), data: []byte(ExportToPEM(material.PublicDER, PEMPublic))},
		{name: "jwk", path: ks.publicPath(refs.jwk), data: jwkBytes},
		{name: "private", path: ks.privatePath(refs.private), data: []byte(ExportToPEM(material.PrivateDER, PEMPrivate))},
	}

	if err := ks.writeArtifacts(ctx, kind, artifacts); err != nil {
		return none, err
	}

	rec := KeyRecord{
		Algorithm:     opts.Algorithm,
		Hash:          opts.Hash,
		ModulusBits:   opts.ModulusBits,
		Alg:           alg,
		Kid:           kid,
		Sequence:      seq,
		PublicKeyRef:  refs.public,
		PrivateKeyRef: refs.private,
		JWKRef:        refs.jwk,
		JWK:           jwk,
		CreatedOn:     ks.now().UnixMilli(),
	}
	ring.Append(rec)

	ks.logger.Info("generated %s key %s (%s)", kind, kid, alg)

	return GenerateResult{
		Status: GenerateStatusSuccess,
		Kind:   kind,
		Record: &rec,
	}, nil
}

// writeArtifacts writes all artifacts or none. On failure the ones already
// written are removed, best effort.
func (ks *KeyStore) writeArtifacts(ctx context.Context, kind KeyKind, artifacts []keyArtifact) error {
	status := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		status[a.name] = "skipped"
	}

	for i, a := range artifacts {
		err := ks.files.WriteFile(ctx, a.path, a.data)
		if err == nil {
			status[a.name] = "written"
			continue
		}

		status[a.name] = "failed"
		ks.logger.Error("failed to write %s key artifact %s: %v", kind, a.path, err)

		for _, prev := range artifacts[:i] {
			if rmErr := ks.files.Remove(ctx, prev.path); rmErr != nil {
				ks.logger.Warn("failed to remove partial artifact %s: %v", prev.path, rmErr)
				status[prev.name] = "orphaned"
				continue
			}
			status[prev.name] = "removed"
		}

		return NewKeyGenerationError(err, "failed to persist key artifacts", map[string]any{
			"kind":      string(kind),
			"artifacts": status,
		})
	}
	return nil
}

// ImportPrivateKey loads the private key at index, 0 being current
func (ks *KeyStore) ImportPrivateKey(ctx context.Context, kind KeyKind, index int) (*CryptoKey, error) {
	rec, err := ks.RecordAt(kind, index)
	if err != nil {
		return nil, err
	}

	der, err := ks.readPEM(ctx, ks.privatePath(rec.PrivateKeyRef), PEMPrivate)
	if err != nil {
		return nil, err
	}

	priv, err := parseRSAPrivateKey(der)
	if err != nil {
		return nil, err
	}

	return &CryptoKey{
		Kind:      kind,
		Kid:       rec.Kid,
		Algorithm: rec.Algorithm,
		Hash:      rec.Hash,
		Public:    &priv.PublicKey,
		Private:   priv,
	}, nil
}

// ImportPublicKey loads the public key at index, 0 being current
func (ks *KeyStore) ImportPublicKey(ctx context.Context, kind KeyKind, index int) (*CryptoKey, error) {
	rec, err := ks.RecordAt(kind, index)
	if err != nil {
		return nil, err
	}

	der, err := ks.readPEM(ctx, ks.publicPath(rec.PublicKeyRef), PEMPublic)
	if err != nil {
		return nil, err
	}

	pub, err := parseRSAPublicKey(der)
	if err != nil {
		return nil, err
	}

	return &CryptoKey{
		Kind:      kind,
		Kid:       rec.Kid,
		Algorithm: rec.Algorithm,
		Hash:      rec.Hash,
		Public:    pub,
	}, nil
}

// FindByKid scans both rings
func (ks *KeyStore) FindByKid(kid string) (KeyRecord, KeyKind, int, bool) {
	if rec, idx, ok := ks.signing.FindByKid(kid); ok {
		return rec, KeyKindSigning, idx, true
	}
	if rec, idx, ok := ks.encrypting.FindByKid(kid); ok {
		return rec, KeyKindEncrypting, idx, true
	}
	return KeyRecord{}, "", -1, false
}

// Discard drops the record kid from kind's ring and removes its
// artifacts. It undoes a generation that could not be saved, so the
// sequence slot is free again.
func (ks *KeyStore) Discard(ctx context.Context, kind KeyKind, kid string) error {
	ring := ks.Ring(kind)
	if ring == nil {
		return NewValidationError("unknown key kind", "kind")
	}

	rec, ok := ring.remove(kid)
	if !ok {
		return nil
	}

	if ks.files == nil {
		return ErrMissingFileStorage
	}

	var failed []string
	for _, p := range []string{
		ks.publicPath(rec.PublicKeyRef),
		ks.publicPath(rec.JWKRef),
		ks.privatePath(rec.PrivateKeyRef),
	} {
		if err := ks.files.Remove(ctx, p); err != nil {
			ks.logger.Warn("failed to remove discarded artifact %s: %v", p, err)
			failed = append(failed, p)
		}
	}

	if len(failed) > 0 {
		return NewKeyGenerationError(nil, "failed to remove discarded key artifacts", map[string]any{
			"kind":     string(kind),
			"kid":      kid,
			"orphaned": failed,
		})
	}

	ks.logger.Info("discarded %s key %s", kind, kid)
	return nil
}

// JWKS is the public key set of both rings, newest-first
func (ks *KeyStore) JWKS() JWKSet {
	set := JWKSet{Keys: []JWK{}}
	for _, ring := range []*KeyRing{ks.signing, ks.encrypting} {
		for _, rec := range ring.Records() {
			if rec.JWK != nil {
				set.Keys = append(set.Keys, *rec.JWK)
			}
		}
	}
	return set
}

// RecordAt returns the record at index or a KeyNotFoundError
func (ks *KeyStore) RecordAt(kind KeyKind, index int) (KeyRecord, error) {
	ring := ks.Ring(kind)
	if ring == nil {
		return KeyRecord{}, NewValidationError("unknown key kind", "kind")
	}
	rec, ok := ring.At(index)
	if !ok {
		return KeyRecord{}, NewKeyNotFoundError(kind, index, ring.Len())
	}
	return rec, nil
}

func (ks *KeyStore) readPEM(ctx context.Context, p string, block PEMBlock) ([]byte, error) {
	if ks.files == nil {
		return nil, ErrMissingFileStorage
	}
	data, err := ks.files.ReadFile(ctx, p)
	if err != nil {
		return nil, err
	}
	return ImportFromPEM(string(data), block)
}

func (ks *KeyStore) publicPath(ref string) string {
	return path.Join(ks.publicDir, ref)
}

func (ks *KeyStore) privatePath(ref string) string {
	return path.Join(ks.privateDir, ref)
}

type refs struct {
	public  string
	private string
	jwk     string
}

func artifactRefs(kind KeyKind, seq int) refs {
	base := fmt.Sprintf("%s-%04d", kind, seq)
	return refs{
		public:  base + "-pub.pem",
		private: base + "-pri.pem",
		jwk:     base + ".jwk",
	}
}

func missingDirs(public, private string) []string {
	var out []string
	if public == "" {
		out = append(out, "publicDir")
	}
	if private == "" {
		out = append(out, "privateDir")
	}
	return out
}

func newKid() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
