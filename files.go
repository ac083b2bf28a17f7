package users

import (
	"context"
	"embed"
	"path"

	goerrors "github.com/goliatone/go-errors"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package, one
// directory per dialect under data/sql/migrations.
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// Migrate applies the embedded migrations for dialect. Goose keeps global
// state so concurrent calls are not supported.
func Migrate(ctx context.Context, db *bun.DB, dialect string, logger ...Logger) error {
	if db == nil {
		return NewValidationError("database is required", "db")
	}

	var gooseDialect string
	switch dialect {
	case DialectSQLite:
		gooseDialect = "sqlite3"
	case DialectPostgres:
		gooseDialect = "postgres"
	default:
		return NewValidationError("unsupported database dialect", "dialect")
	}

	var l Logger = NopLogger{}
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{l})

	if err := goose.SetDialect(gooseDialect); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set migration dialect")
	}

	dir := path.Join("data/sql/migrations", dialect)
	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to run migrations").
			WithMetadata(map[string]any{"dialect": dialect})
	}
	return nil
}

type gooseLogger struct {
	l Logger
}

func (g gooseLogger) Printf(format string, args ...any) { g.l.Debug(format, args...) }

func (g gooseLogger) Fatalf(format string, args ...any) { g.l.Error(format, args...) }
