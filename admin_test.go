package users_test

import (
	"context"
	"testing"
	"time"

	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adminFixture struct {
	env     *testEnv
	admin   *users.Admin
	creator *users.User
	member  *users.User
	idle    *users.User
	anon    *users.User
	gone    *users.User
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	ctx := context.Background()
	env := newTestEnv(t)
	clock := newFakeClock()
	env.dir.WithClock(func() time.Time {
		clock.Advance(time.Millisecond)
		return clock.Now()
	})

	f := &adminFixture{env: env}

	root := env.saveUser(t, users.VariantAdmin, "Grace", "Hopper", "grace@example.com", "cobol")
	admin, err := root.Admin()
	require.NoError(t, err)
	f.admin = admin

	f.creator = env.saveUser(t, users.VariantCreator, "Ada", "Lovelace", "ada@example.com", "analytical")
	f.member = env.saveUser(t, users.VariantUser, "Charles", "Babbage", "charles@example.com", "difference")
	f.idle = env.saveUser(t, users.VariantUser, "Alan", "Turing", "alan@example.com", "enigma")
	require.NoError(t, f.idle.SetStatus(users.StatusInactive))
	require.NoError(t, f.idle.Update(ctx))
	f.anon = env.saveUser(t, users.VariantAnonymous, "Anon", "Ymous", "anon@example.com", "anon")
	f.gone = env.saveUser(t, users.VariantUser, "Kurt", "Godel", "kurt@example.com", "incomplete")
	_, err = env.dir.ArchiveUser(ctx, f.gone.ID())
	require.NoError(t, err)

	return f
}

func TestUser_AdminCapability(t *testing.T) {
	f := newAdminFixture(t)

	_, err := f.creator.Admin()
	assert.ErrorIs(t, err, users.ErrNotAdmin)
	assert.True(t, f.admin.IsAdmin())
}

func TestAdmin_ListUsers(t *testing.T) {
	f := newAdminFixture(t)

	groups, err := f.admin.ListUsers(context.Background(), users.ListFilter{})
	require.NoError(t, err)

	keys := make([]users.GroupKey, 0, len(groups))
	for _, g := range groups {
		keys = append(keys, g.Key)
	}
	assert.Equal(t, []users.GroupKey{
		{Status: users.StatusActive, Type: users.VariantAdmin},
		{Status: users.StatusActive, Type: users.VariantCreator},
		{Status: users.StatusActive, Type: users.VariantUser},
		{Status: users.StatusInactive, Type: users.VariantUser},
	}, keys)

	member := groups[2]
	assert.Equal(t, 1, member.Count)
	require.Len(t, member.Users, 1)
	assert.Equal(t, f.member.ID(), member.Users[0].ID)
	assert.Equal(t, "charles@example.com", member.Users[0].PrimaryEmail)
	assert.Equal(t, "Charles Babbage", member.Users[0].Name)
}

func TestAdmin_ListUsersWithArchivedAndAnonymous(t *testing.T) {
	f := newAdminFixture(t)

	groups, err := f.admin.ListUsers(context.Background(), users.ListFilter{
		Types:           []users.Variant{users.VariantUser, users.VariantAnonymous},
		IncludeArchived: true,
	})
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, users.GroupKey{Status: users.StatusActive, Type: users.VariantAnonymous}, groups[0].Key)
	assert.Equal(t, users.GroupKey{Status: users.StatusActive, Type: users.VariantUser}, groups[1].Key)
	assert.Equal(t, 2, groups[1].Count)
	assert.Equal(t, f.member.ID(), groups[1].Users[0].ID)
	assert.Equal(t, f.gone.ID(), groups[1].Users[1].ID)
}

func TestAdmin_GetUsersByType(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t)

	all, err := f.admin.GetUsersByType(ctx, "all")
	require.NoError(t, err)
	require.Len(t, all, 4)

	total := 0
	for _, g := range all {
		assert.Empty(t, g.Key.Status)
		total += g.Count
	}
	assert.Equal(t, 6, total)
	assert.Equal(t, users.VariantAdmin, all[0].Key.Type)
	assert.Equal(t, users.VariantUser, all[3].Key.Type)
	assert.Equal(t, 3, all[3].Count)

	creators, err := f.admin.GetUsersByType(ctx, "creator")
	require.NoError(t, err)
	require.Len(t, creators, 1)
	assert.Equal(t, f.creator.ID(), creators[0].Users[0].ID)

	for _, bad := range []string{"", "undefined", "robot"} {
		_, err := f.admin.GetUsersByType(ctx, bad)
		assert.True(t, users.IsValidationError(err), bad)
	}
}

func TestAdmin_UpgradeUser(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t)

	ok, err := f.admin.UpgradeUser(ctx, f.anon.ID())
	require.NoError(t, err)
	assert.True(t, ok)

	upgraded, err := f.env.dir.LookupByID(ctx, f.anon.ID())
	require.NoError(t, err)
	assert.Equal(t, users.VariantUser, upgraded.Variant())
	assert.Equal(t, users.VariantUser.Description(), upgraded.Description())

	event := f.env.sink.last()
	assert.Equal(t, users.ActivityEventUserUpgraded, event.EventType)
	assert.Equal(t, f.admin.ID(), event.ActorID)
	assert.Equal(t, "Anonymous", event.Metadata["from"])

	ok, err = f.admin.UpgradeUser(ctx, f.member.ID())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.admin.UpgradeUser(ctx, f.creator.ID())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.admin.UpgradeUser(ctx, f.admin.ID())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.admin.UpgradeUser(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.admin.UpgradeUser(ctx, "")
	assert.True(t, users.IsValidationError(err))
}

func TestAdmin_DeleteUser(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t)

	res, err := f.admin.DeleteUser(ctx, "CHARLES@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.DeletedCount)
	assert.Equal(t, users.ActivityEventUserDeleted, f.env.sink.last().EventType)

	res, err = f.admin.DeleteUser(ctx, f.creator.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.DeletedCount)

	gone, err := f.env.dir.LookupByID(ctx, f.creator.ID(), users.WithAnyArchived())
	require.NoError(t, err)
	assert.Nil(t, gone)

	res, err = f.admin.DeleteUser(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.DeletedCount)

	_, err = f.admin.DeleteUser(ctx, " ")
	assert.Equal(t, []string{"email", "id"}, users.ValidationFields(err))
}
