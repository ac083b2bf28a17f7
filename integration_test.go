package users_test

import (
	"context"
	"testing"

	users "github.com/goliatone/go-users"
	"github.com/goliatone/go-users/activitymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUserLifecycle walks one account from registration to archival
func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	var audit []activitymap.Normalized
	env.dir.WithActivitySink(activitymap.Sink(func(_ context.Context, rec activitymap.Normalized) error {
		audit = append(audit, rec)
		return nil
	}))

	var ada *users.User
	err := users.NewRegisterUserHandler(env.dir).Execute(ctx, users.RegisterUserMessage{
		FirstName:      "Ada",
		LastName:       "Lovelace",
		Email:          "ada@example.com",
		SecondaryEmail: "countess@example.com",
		Role:           "User",
		Password:       "analytical",
		Provision:      true,
		OnResponse:     func(u *users.User) { ada = u },
	})
	require.NoError(t, err)
	require.NotNil(t, ada)

	auth, err := env.dir.AuthenticateByPassword(ctx, "ada@example.com", "analytical")
	require.NoError(t, err)
	require.True(t, auth.OK())

	update, err := auth.User.UpdatePassword(ctx, "analytical", "engine")
	require.NoError(t, err)
	require.True(t, update.Success)

	auth, err = env.dir.AuthenticateByPassword(ctx, "ada@example.com", "analytical")
	require.NoError(t, err)
	assert.Equal(t, users.AuthFailureMismatch, auth.Failure)

	auth, err = env.dir.AuthenticateByPassword(ctx, "ada@example.com", "engine")
	require.NoError(t, err)
	require.True(t, auth.OK())

	signed, err := auth.User.IssueAccessToken(ctx, 0)
	require.NoError(t, err)

	tokenAuth, err := env.dir.AuthenticateByAccessToken(ctx, signed.Token)
	require.NoError(t, err)
	require.True(t, tokenAuth.OK())

	reqCtx := users.WithAuthResult(ctx, tokenAuth)
	assert.True(t, users.IsAtLeast(reqCtx, users.VariantUser))
	assert.False(t, users.IsAtLeast(reqCtx, users.VariantCreator))

	// a third party only sees the published key set
	verifier, err := users.NewKeySetVerifier(tokenAuth.User.JWKS(), env.dir.Config().Token)
	require.NoError(t, err)
	defer verifier.Close()
	assert.True(t, verifier.Verify(signed.Token).OK())

	root := env.saveUser(t, users.VariantAdmin, "Grace", "Hopper", "grace@example.com", "cobol")
	admin, err := root.Admin()
	require.NoError(t, err)

	upgraded, err := admin.UpgradeUser(ctx, ada.ID())
	require.NoError(t, err)
	require.True(t, upgraded)

	creator, err := env.dir.LookupByID(ctx, ada.ID())
	require.NoError(t, err)
	assert.True(t, creator.IsCreator())
	assert.Equal(t, "countess@example.com", creator.SecondaryEmail())

	result, err := env.dir.ArchiveUser(ctx, ada.ID())
	require.NoError(t, err)
	assert.True(t, result.Public.Moved)
	assert.True(t, result.Private.Moved)

	auth, err = env.dir.AuthenticateByPassword(ctx, "ada@example.com", "engine")
	require.NoError(t, err)
	assert.Equal(t, users.AuthFailureNotFound, auth.Failure)

	tokenAuth, err = env.dir.AuthenticateByAccessToken(ctx, signed.Token)
	require.NoError(t, err)
	assert.Equal(t, users.AuthFailureNotFound, tokenAuth.Failure)

	available, err := env.dir.IsUsernameAvailable(ctx, "ada")
	require.NoError(t, err)
	assert.False(t, available)

	verbs := make([]string, 0, len(audit))
	for _, rec := range audit {
		verbs = append(verbs, rec.Verb)
	}
	assert.Equal(t, []string{
		"user.keys.generated",
		"user.registered",
		"auth.login.success",
		"user.password.updated",
		"auth.login.failure",
		"auth.login.success",
		"auth.token.success",
		"user.upgraded",
		"user.archived",
		"auth.login.failure",
		"auth.token.failure",
	}, verbs)
}
