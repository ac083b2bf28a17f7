package users

import (
	"database/sql"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Supported DatabaseConfig dialects
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// OpenDB opens a bun database for cfg. sqlite goes through sqliteshim,
// postgres through the pgx stdlib driver.
func OpenDB(cfg DatabaseConfig) (*bun.DB, error) {
	var db *bun.DB

	switch strings.ToLower(cfg.Dialect) {
	case DialectSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
		}
		// in memory databases are per connection
		if strings.Contains(cfg.DSN, ":memory:") {
			sqldb.SetMaxOpenConns(1)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DialectPostgres:
		sqldb, err := sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open postgres database")
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, NewValidationError("unsupported database dialect", "database.dialect").
			WithMetadata(map[string]any{"dialect": cfg.Dialect})
	}

	return db, nil
}
