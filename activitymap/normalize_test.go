package activitymap

import (
	"context"
	"testing"
	"time"

	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Defaults(t *testing.T) {
	occurred := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	event := users.ActivityEvent{
		EventType:  users.ActivityEventUserUpgraded,
		ActorID:    " admin-1 ",
		UserID:     "user-2",
		Metadata:   map[string]any{"from": "User", "to": "Creator"},
		OccurredAt: occurred,
	}

	got := Normalize(event)

	assert.Equal(t, "admin-1", got.ActorID)
	assert.Equal(t, "user.upgraded", got.Verb)
	assert.Equal(t, "user", got.ObjectType)
	assert.Equal(t, "user-2", got.ObjectID)
	assert.Equal(t, "users", got.Channel)
	assert.Equal(t, time.UTC, got.OccurredAt.Location())
	assert.True(t, occurred.Equal(got.OccurredAt))

	// metadata is copied
	got.Metadata["from"] = "changed"
	assert.Equal(t, "User", event.Metadata["from"])
}

func TestNormalize_Fallbacks(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	got := Normalize(users.ActivityEvent{EventType: users.ActivityEventLoginFailure},
		WithClock(func() time.Time { return now }),
		WithActorFallback("anonymous"),
	)
	assert.Equal(t, "anonymous", got.ActorID)
	assert.Empty(t, got.ObjectID)
	assert.Nil(t, got.Metadata)
	assert.Equal(t, now, got.OccurredAt)

	got = Normalize(users.ActivityEvent{EventType: users.ActivityEventKeysGenerated, UserID: "user-3"})
	assert.Equal(t, "user-3", got.ActorID)

	got = Normalize(users.ActivityEvent{}, WithActorFallback(" "))
	assert.Equal(t, "system", got.ActorID)
}

func TestNormalize_Options(t *testing.T) {
	got := Normalize(users.ActivityEvent{UserID: "u"},
		WithDefaultChannel(" audit "),
		WithDefaultObjectType("account"),
		nil,
	)
	assert.Equal(t, "audit", got.Channel)
	assert.Equal(t, "account", got.ObjectType)
}

func TestSink(t *testing.T) {
	var records []Normalized
	sink := Sink(func(_ context.Context, record Normalized) error {
		records = append(records, record)
		return nil
	}, WithDefaultChannel("audit"))

	err := sink.Record(context.Background(), users.ActivityEvent{
		EventType: users.ActivityEventUserArchived,
		UserID:    "user-4",
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "user.archived", records[0].Verb)
	assert.Equal(t, "audit", records[0].Channel)
}
