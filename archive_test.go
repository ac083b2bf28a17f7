package users_test

import (
	"context"
	"errors"
	"path"
	"testing"

	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUser_SetDirectories(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	u := env.saveUser(t, users.VariantUser, "Ada", "Lovelace", "ada@example.com", "analytical")

	name, err := users.DirectoryName(u.ID())
	require.NoError(t, err)
	again, err := users.DirectoryName(u.ID())
	require.NoError(t, err)
	assert.Equal(t, name, again)

	require.NoError(t, u.SetPublicDirectory(ctx, "public/accounts"))
	assert.Equal(t, path.Join("public/accounts", name), u.PublicDir())

	ok, err := env.files.Exists(ctx, u.PublicDir())
	require.NoError(t, err)
	assert.True(t, ok)

	// same location is a no-op
	require.NoError(t, u.SetPublicDirectory(ctx, "public/accounts"))

	require.NoError(t, env.files.WriteFile(ctx, path.Join(u.PublicDir(), "note.txt"), []byte("hi")))
	require.NoError(t, u.SetPublicDirectory(ctx, "public/moved"))
	assert.Equal(t, path.Join("public/moved", name), u.PublicDir())

	data, err := env.files.ReadFile(ctx, path.Join(u.PublicDir(), "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))

	loaded, err := env.dir.LookupByID(ctx, u.ID())
	require.NoError(t, err)
	assert.Equal(t, u.PublicDir(), loaded.PublicDir())

	assert.True(t, users.IsValidationError(u.SetPrivateDirectory(ctx, " ")))

	_, err = users.DirectoryName("")
	assert.True(t, users.IsValidationError(err))
}

func TestUser_SetDirectoryRequiresID(t *testing.T) {
	env := newTestEnv(t)

	u, err := env.dir.NewUser(users.VariantUser, users.NewUserInput{})
	require.NoError(t, err)

	err = u.SetPublicDirectory(context.Background(), "public/accounts")
	assert.True(t, users.IsValidationError(err))
}

func TestDirectory_ArchiveUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	cfg := env.dir.Config()

	u := env.saveUser(t, users.VariantCreator, "Ada", "Lovelace", "ada@example.com", "analytical")
	env.provision(t, u)
	publicDir, privateDir := u.PublicDir(), u.PrivateDir()

	result, err := env.dir.ArchiveUser(ctx, u.ID())
	require.NoError(t, err)
	assert.True(t, result.Archived)

	wantPublic := path.Join(cfg.ArchiveRoot, "public", u.ID())
	wantPrivate := path.Join(cfg.ArchiveRoot, "private", u.ID())
	assert.Equal(t, users.DirectoryMove{From: publicDir, To: wantPublic, Moved: true}, result.Public)
	assert.Equal(t, users.DirectoryMove{From: privateDir, To: wantPrivate, Moved: true}, result.Private)

	for _, p := range []string{publicDir, privateDir} {
		ok, err := env.files.Exists(ctx, p)
		require.NoError(t, err)
		assert.False(t, ok, p)
	}
	ok, err := env.files.Exists(ctx, path.Join(wantPrivate, "signing-0000-pri.pem"))
	require.NoError(t, err)
	assert.True(t, ok)

	archived, err := env.dir.LookupByID(ctx, u.ID(), users.WithArchived(true))
	require.NoError(t, err)
	require.NotNil(t, archived)
	assert.Equal(t, wantPublic, archived.PublicDir())
	assert.Equal(t, wantPrivate, archived.PrivateDir())

	// keys follow the directories
	_, err = archived.Sign(ctx, []byte("x"), 0)
	require.NoError(t, err)

	// archived users are never given keys
	summary, err := archived.RotateKeys(ctx, users.AllKeys())
	require.NoError(t, err)
	assert.Equal(t, users.GenerateStatusNone, summary.Status)

	assert.Equal(t, users.ActivityEventUserArchived, env.sink.last().EventType)

	again, err := env.dir.ArchiveUser(ctx, u.ID())
	require.NoError(t, err)
	assert.True(t, again.Archived)
	assert.True(t, again.Public.Skipped)
	assert.True(t, again.Private.Skipped)
}

func TestDirectory_ArchiveUserErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.dir.ArchiveUser(ctx, "")
	assert.True(t, users.IsValidationError(err))

	_, err = env.dir.ArchiveUser(ctx, "missing")
	assert.True(t, users.IsRecordNotFound(err))
}

func TestDirectory_ArchiveUserMoveFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	cfg := env.dir.Config()

	id, err := env.store.InsertOne(ctx, &users.Record{
		Type:       users.VariantUser,
		Status:     users.StatusActive,
		First:      "Ada",
		Last:       "Lovelace",
		PublicDir:  "public/accounts/ada",
		PrivateDir: "private/accounts/ada",
	})
	require.NoError(t, err)

	files := new(MockFileStorage)
	files.On("MkdirAll", mock.Anything, path.Join(cfg.ArchiveRoot, "public")).Return(nil)
	files.On("Rename", mock.Anything, "public/accounts/ada", path.Join(cfg.ArchiveRoot, "public", id)).
		Return(errors.New("device busy"))
	files.On("MkdirAll", mock.Anything, path.Join(cfg.ArchiveRoot, "private")).Return(nil)
	files.On("Rename", mock.Anything, "private/accounts/ada", path.Join(cfg.ArchiveRoot, "private", id)).Return(nil)

	logger := new(MockLogger)
	logger.On("Debug", mock.Anything, mock.Anything).Maybe()
	logger.On("Error", mock.Anything, mock.Anything).Once()

	dir, err := users.NewDirectory(env.store, files, cfg)
	require.NoError(t, err)
	dir.WithLogger(logger)

	result, err := dir.ArchiveUser(ctx, id)
	require.NoError(t, err)
	assert.True(t, result.Archived)
	assert.False(t, result.Public.Moved)
	assert.Contains(t, result.Public.Error, "device busy")
	assert.True(t, result.Private.Moved)

	rec, err := env.store.FindOne(ctx, users.Filter{ID: id})
	require.NoError(t, err)
	assert.True(t, rec.Archived)
	assert.Equal(t, "public/accounts/ada", rec.PublicDir)
	assert.Equal(t, path.Join(cfg.ArchiveRoot, "private", id), rec.PrivateDir)

	files.AssertExpectations(t)
	logger.AssertExpectations(t)
}

func TestDirectory_ArchiveUserRestoresDirectoriesWhenNotSaved(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	u := env.saveUser(t, users.VariantCreator, "Ada", "Lovelace", "ada@example.com", "analytical")
	env.provision(t, u)
	publicDir, privateDir := u.PublicDir(), u.PrivateDir()

	dir, err := users.NewDirectory(failingUpdates{Store: env.store}, env.files, testConfig())
	require.NoError(t, err)
	dir.WithLogger(users.NopLogger{})

	result, err := dir.ArchiveUser(ctx, u.ID())
	require.Error(t, err)
	assert.False(t, result.Archived)
	assert.False(t, result.Public.Moved)
	assert.False(t, result.Private.Moved)
	assert.Empty(t, result.Public.Error)
	assert.Empty(t, result.Private.Error)

	ok, err := env.files.Exists(ctx, path.Join(privateDir, "signing-0000-pri.pem"))
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := env.dir.LookupByID(ctx, u.ID())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsArchived())
	assert.Equal(t, publicDir, stored.PublicDir())
	assert.Equal(t, privateDir, stored.PrivateDir())

	_, err = stored.Sign(ctx, []byte("x"), 0)
	require.NoError(t, err)
}
