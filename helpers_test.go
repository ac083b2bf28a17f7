package users_test

import (
	"context"
	"testing"
	"time"

	users "github.com/goliatone/go-users"
	"github.com/goliatone/go-users/storage/afs"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	dir   *users.Directory
	db    *bun.DB
	store *users.BunStore
	files *afs.Storage
	sink  *recordingSink
}

func testConfig() users.Config {
	cfg := users.DefaultConfig()
	cfg.PasswordCost = bcrypt.MinCost
	cfg.Database.DSN = ":memory:"
	return cfg
}

// newTestEnv wires a directory over an in-memory sqlite database and an
// OS backed storage rooted in a temp dir
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := testConfig()
	db, err := users.OpenDB(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, users.Migrate(context.Background(), db, users.DialectSQLite))

	files := afs.NewOS(t.TempDir())
	store := users.NewBunStore(db)

	dir, err := users.NewDirectory(store, files, cfg)
	require.NoError(t, err)

	sink := &recordingSink{}
	dir.WithLogger(users.NopLogger{}).WithActivitySink(sink)

	return &testEnv{dir: dir, db: db, store: store, files: files, sink: sink}
}

// saveUser builds and saves an active user of variant
func (e *testEnv) saveUser(t *testing.T, variant users.Variant, first, last, email, password string) *users.User {
	t.Helper()
	u, err := e.dir.NewUser(variant, users.NewUserInput{
		First:    first,
		Last:     last,
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	require.NoError(t, u.Save(context.Background()))
	return u
}

// provision gives u its directories and both keypairs
func (e *testEnv) provision(t *testing.T, u *users.User) {
	t.Helper()
	ctx := context.Background()
	cfg := e.dir.Config()
	require.NoError(t, u.SetPublicDirectory(ctx, cfg.PublicRoot))
	require.NoError(t, u.SetPrivateDirectory(ctx, cfg.PrivateRoot))
	summary, err := u.GenerateKeys(ctx, users.AllKeys())
	require.NoError(t, err)
	require.Equal(t, users.GenerateStatusSuccess, summary.Status)
}

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
