package users

import (
	"context"

	"github.com/uptrace/bun"
)

// Open wires a Directory from cfg: it opens and migrates the database,
// builds the file storage and validates the rest. The caller closes the
// returned database.
func Open(ctx context.Context, cfg Config, logger Logger) (*Directory, *bun.DB, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger = normalizeLogger(logger)

	db, err := OpenDB(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	if err := Migrate(ctx, db, cfg.Database.Dialect, logger); err != nil {
		db.Close()
		return nil, nil, err
	}

	files, err := NewFileStorage(ctx, cfg.Storage)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	dir, err := NewDirectory(NewBunStore(db), files, cfg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	logger.Info("users directory ready, %s database, %s storage", cfg.Database.Dialect, cfg.Storage.Backend)
	return dir.WithLogger(logger), db, nil
}
