package users

import "encoding/json"

// KeyRecord is the metadata and storage references of one keypair. Refs
// are relative to the owner's public or private directory.
type KeyRecord struct {
	Algorithm     Algorithm `json:"algorithm"`
	Hash          HashName  `json:"hash"`
	ModulusBits   int       `json:"modulusBits"`
	Alg           string    `json:"alg"`
	Kid           string    `json:"kid"`
	Sequence      int       `json:"sequence"`
	PublicKeyRef  string    `json:"publicKeyRef"`
	PrivateKeyRef string    `json:"privateKeyRef"`
	JWKRef        string    `json:"jwkRef"`
	JWK           *JWK      `json:"jwk,omitempty"`
	CreatedOn     int64     `json:"createdOn"`
}

// KeyRing is an append-only log of key records. Index 0 addresses the most
// recently appended record.
type KeyRing struct {
	entries []KeyRecord
}

// NewKeyRing builds a ring from records ordered newest-first
func NewKeyRing(newestFirst []KeyRecord) *KeyRing {
	r := &KeyRing{entries: make([]KeyRecord, 0, len(newestFirst))}
	for i := len(newestFirst) - 1; i >= 0; i-- {
		r.entries = append(r.entries, newestFirst[i])
	}
	return r
}

// Len is the number of records
func (r *KeyRing) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Append makes rec the current record
func (r *KeyRing) Append(rec KeyRecord) {
	r.entries = append(r.entries, rec)
}

// At returns the record index positions from the newest
func (r *KeyRing) At(index int) (KeyRecord, bool) {
	if r == nil || index < 0 || index >= len(r.entries) {
		return KeyRecord{}, false
	}
	return r.entries[len(r.entries)-1-index], true
}

// Current is At(0)
func (r *KeyRing) Current() (KeyRecord, bool) {
	return r.At(0)
}

// FindByKid returns the record and its newest-first index
func (r *KeyRing) FindByKid(kid string) (KeyRecord, int, bool) {
	if r == nil || kid == "" {
		return KeyRecord{}, -1, false
	}
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Kid == kid {
			return r.entries[i], len(r.entries) - 1 - i, true
		}
	}
	return KeyRecord{}, -1, false
}

// remove drops the record with kid
func (r *KeyRing) remove(kid string) (KeyRecord, bool) {
	if r == nil || kid == "" {
		return KeyRecord{}, false
	}
	for i, e := range r.entries {
		if e.Kid == kid {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return e, true
		}
	}
	return KeyRecord{}, false
}

// Records returns a newest-first copy
func (r *KeyRing) Records() []KeyRecord {
	out := make([]KeyRecord, 0, r.Len())
	for i := r.Len() - 1; i >= 0; i-- {
		out = append(out, r.entries[i])
	}
	return out
}

// nextSequence is the position the next appended record will occupy in
// the log. It never reuses a sequence even for rings loaded with gaps.
func (r *KeyRing) nextSequence() int {
	next := r.Len()
	for _, e := range r.entries {
		if e.Sequence >= next {
			next = e.Sequence + 1
		}
	}
	return next
}

func (r *KeyRing) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Records())
}

func (r *KeyRing) UnmarshalJSON(data []byte) error {
	var records []KeyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	*r = *NewKeyRing(records)
	return nil
}
