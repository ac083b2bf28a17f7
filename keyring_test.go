package users

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyRing_NewestFirst(t *testing.T) {
	ring := NewKeyRing(nil)
	assert.Equal(t, 0, ring.Len())

	_, ok := ring.Current()
	assert.False(t, ok)

	for i, kid := range []string{"a", "b", "c"} {
		ring.Append(KeyRecord{Kid: kid, Sequence: i})
	}

	require.Equal(t, 3, ring.Len())

	current, ok := ring.Current()
	require.True(t, ok)
	assert.Equal(t, "c", current.Kid)

	oldest, ok := ring.At(2)
	require.True(t, ok)
	assert.Equal(t, "a", oldest.Kid)

	_, ok = ring.At(3)
	assert.False(t, ok)
	_, ok = ring.At(-1)
	assert.False(t, ok)
}

func TestKeyRing_FindByKid(t *testing.T) {
	ring := NewKeyRing([]KeyRecord{{Kid: "c"}, {Kid: "b"}, {Kid: "a"}})

	rec, idx, ok := ring.FindByKid("b")
	require.True(t, ok)
	assert.Equal(t, "b", rec.Kid)
	assert.Equal(t, 1, idx)

	_, idx, ok = ring.FindByKid("missing")
	assert.False(t, ok)
	assert.Equal(t, -1, idx)

	_, _, ok = ring.FindByKid("")
	assert.False(t, ok)
}

func TestKeyRing_JSONKeepsOrder(t *testing.T) {
	ring := NewKeyRing(nil)
	ring.Append(KeyRecord{Kid: "old", Sequence: 0})
	ring.Append(KeyRecord{Kid: "new", Sequence: 1})

	data, err := json.Marshal(ring)
	require.NoError(t, err)

	var records []KeyRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, "new", records[0].Kid)

	var decoded KeyRing
	require.NoError(t, json.Unmarshal(data, &decoded))
	current, ok := decoded.Current()
	require.True(t, ok)
	assert.Equal(t, "new", current.Kid)
	assert.Equal(t, ring.Records(), decoded.Records())
}

func TestKeyRing_NextSequenceSkipsGaps(t *testing.T) {
	assert.Equal(t, 0, NewKeyRing(nil).nextSequence())

	ring := NewKeyRing([]KeyRecord{{Kid: "b", Sequence: 4}, {Kid: "a", Sequence: 0}})
	assert.Equal(t, 5, ring.nextSequence())

	ring = NewKeyRing([]KeyRecord{{Kid: "b", Sequence: 1}, {Kid: "a", Sequence: 0}})
	assert.Equal(t, 2, ring.nextSequence())
}

func TestArtifactRefs(t *testing.T) {
	r := artifactRefs(KeyKindSigning, 3)
	assert.Equal(t, "signing-0003-pub.pem", r.public)
	assert.Equal(t, "signing-0003-pri.pem", r.private)
	assert.Equal(t, "signing-0003.jwk", r.jwk)
}
