package users

import (
	"context"
)

// KeySelector picks the kinds GenerateKeys and RotateKeys act on
type KeySelector struct {
	Signing           bool
	Encrypting        bool
	SigningOptions    KeyOptions
	EncryptingOptions KeyOptions
}

// AllKeys selects both kinds with default options
func AllKeys() KeySelector {
	return KeySelector{Signing: true, Encrypting: true}
}

// KeySummary aggregates the per kind results. Status is success when at
// least one kind produced a key. A run that fails part way returns the
// summary of the kinds generated and saved before the failure.
type KeySummary struct {
	Status     GenerateStatus  `json:"status"`
	Signing    *GenerateResult `json:"signing,omitempty"`
	Encrypting *GenerateResult `json:"encrypting,omitempty"`
}

// GenerateKeys creates missing keypairs for the selected kinds. Archived
// users are never given keys. New keys are persisted when the user has
// been saved.
func (u *User) GenerateKeys(ctx context.Context, sel KeySelector) (KeySummary, error) {
	return u.runKeys(ctx, sel, u.keys.GenerateKeyPair)
}

// RotateKeys appends a new current keypair for the selected kinds
func (u *User) RotateKeys(ctx context.Context, sel KeySelector) (KeySummary, error) {
	return u.runKeys(ctx, sel, u.keys.RotateKeyPair)
}

type keyOp func(ctx context.Context, kind KeyKind, opts KeyOptions) (GenerateResult, error)

func (u *User) runKeys(ctx context.Context, sel KeySelector, op keyOp) (KeySummary, error) {
	summary := KeySummary{Status: GenerateStatusNone}
	if u.rec.Archived {
		u.env.logger.Info("user %s is archived, not generating keys", u.rec.ID)
		return summary, nil
	}

	// a failed kind stops the run, kinds generated before it are still kept
	var opErr error
	if sel.Signing {
		res, err := op(ctx, KeyKindSigning, sel.SigningOptions)
		if err != nil {
			opErr = err
		} else {
			summary.Signing = &res
		}
	}

	if sel.Encrypting && opErr == nil {
		res, err := op(ctx, KeyKindEncrypting, sel.EncryptingOptions)
		if err != nil {
			opErr = err
		} else {
			summary.Encrypting = &res
		}
	}

	generated := map[string]any{}
	for _, res := range summary.results() {
		if res.Status == GenerateStatusSuccess {
			summary.Status = GenerateStatusSuccess
			generated[string(res.Kind)] = res.Record.Kid
		}
	}

	if summary.Status != GenerateStatusSuccess {
		return summary, opErr
	}

	if u.rec.ID != "" {
		if err := u.persist(ctx); err != nil {
			u.discardKeys(ctx, summary)
			return KeySummary{Status: GenerateStatusNone}, err
		}
	}

	u.env.emit(ctx, ActivityEventKeysGenerated, u.rec.ID, u.rec.ID, generated)
	return summary, opErr
}

func (s KeySummary) results() []*GenerateResult {
	var out []*GenerateResult
	for _, res := range []*GenerateResult{s.Signing, s.Encrypting} {
		if res != nil {
			out = append(out, res)
		}
	}
	return out
}

// discardKeys rolls back keys generated in a run that could not be saved,
// otherwise their artifacts would block the slot on the next attempt.
func (u *User) discardKeys(ctx context.Context, summary KeySummary) {
	for _, res := range summary.results() {
		if res.Status != GenerateStatusSuccess || res.Record == nil {
			continue
		}
		if err := u.keys.Discard(ctx, res.Kind, res.Record.Kid); err != nil {
			u.env.logger.Error("failed to discard %s key %s of user %s: %v", res.Kind, res.Record.Kid, u.rec.ID, err)
		}
	}
}

// Sign signs data with the signing key at keyIndex
func (u *User) Sign(ctx context.Context, data []byte, keyIndex int) ([]byte, error) {
	key, err := u.keys.ImportPrivateKey(ctx, KeyKindSigning, keyIndex)
	if err != nil {
		return nil, err
	}
	return u.env.crypto.Sign(ctx, key, data)
}

// Verify checks signature over data with the signing key at keyIndex
func (u *User) Verify(ctx context.Context, signature, data []byte, keyIndex int) (bool, error) {
	key, err := u.keys.ImportPublicKey(ctx, KeyKindSigning, keyIndex)
	if err != nil {
		return false, err
	}
	return u.env.crypto.Verify(ctx, key, signature, data)
}

// Encrypt encrypts data for the user with the encrypting key at keyIndex
func (u *User) Encrypt(ctx context.Context, data []byte, keyIndex int) ([]byte, error) {
	key, err := u.keys.ImportPublicKey(ctx, KeyKindEncrypting, keyIndex)
	if err != nil {
		return nil, err
	}
	return u.env.crypto.Encrypt(ctx, key, data)
}

// Decrypt reverses Encrypt with the same keyIndex
func (u *User) Decrypt(ctx context.Context, ciphertext []byte, keyIndex int) ([]byte, error) {
	key, err := u.keys.ImportPrivateKey(ctx, KeyKindEncrypting, keyIndex)
	if err != nil {
		return nil, err
	}
	return u.env.crypto.Decrypt(ctx, key, ciphertext)
}

// IssueAccessToken issues an access/refresh pair signed with the key at
// keyIndex and stores it on the user.
func (u *User) IssueAccessToken(ctx context.Context, keyIndex int) (*SignedToken, error) {
	access, refresh, err := u.env.tokens.IssuePair(ctx, u, u.keys, keyIndex)
	if err != nil {
		return nil, err
	}

	u.rec.JWTs = TokenPair{
		Token:   access.Token,
		Refresh: refresh.Token,
	}

	if u.rec.ID != "" {
		if err := u.persist(ctx); err != nil {
			return nil, err
		}
	}

	return access, nil
}

// VerifyAccessToken verifies an access token issued for this user. The
// refresh half of the pair does not verify.
func (u *User) VerifyAccessToken(ctx context.Context, token string, keyIndex int) (Verification, error) {
	return u.env.tokens.VerifyAccess(ctx, token, u.keys, keyIndex)
}

// PublicSigningKey returns the current signing key as PEM
func (u *User) PublicSigningKey(ctx context.Context) (string, error) {
	rec, err := u.keys.RecordAt(KeyKindSigning, 0)
	if err != nil {
		return "", err
	}
	if u.env.files == nil {
		return "", ErrMissingFileStorage
	}
	data, err := u.env.files.ReadFile(ctx, u.keys.publicPath(rec.PublicKeyRef))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// JWKS is the user's public key set, served at the jku URL
func (u *User) JWKS() JWKSet {
	return u.keys.JWKS()
}
