package users

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BunStore is the Store backed by a bun database. Nested values live in
// JSON columns, primary_email and access_token are kept in sync for
// lookups.
type BunStore struct {
	db *bun.DB
}

var _ Store = (*BunStore)(nil)

func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

// DB exposes the underlying database, ie to run Migrate
func (s *BunStore) DB() *bun.DB {
	return s.db
}

func (s *BunStore) FindOne(ctx context.Context, filter Filter) (*Record, error) {
	return s.findOneTx(ctx, s.db, filter)
}

func (s *BunStore) findOneTx(ctx context.Context, tx bun.IDB, filter Filter) (*Record, error) {
	if filter.IsEmpty() {
		return nil, NewValidationError("filter requires at least one selector", "filter")
	}

	rec := &Record{}
	err := tx.NewSelect().
		Model(rec).
		ApplyQueryBuilder(whereFilter(filter)).
		OrderExpr("?TableAlias.created_on ASC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return rec, nil
}

// InsertOne stores record under a new uuid unless it already carries an id
func (s *BunStore) InsertOne(ctx context.Context, record *Record) (string, error) {
	if record == nil {
		return "", NewValidationError("record is required", "record")
	}

	rec := *record
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.syncDenormalized()

	if _, err := s.db.NewInsert().Model(&rec).Exec(ctx); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// FindOneAndUpdate overwrites the record matching filter. The id and
// created_on columns are kept from the stored row.
func (s *BunStore) FindOneAndUpdate(ctx context.Context, filter Filter, record *Record) (*Record, error) {
	if record == nil {
		return nil, NewValidationError("record is required", "record")
	}

	var out *Record
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := s.findOneTx(ctx, tx, filter)
		if err != nil {
			return err
		}

		rec := *record
		rec.ID = current.ID
		rec.CreatedOn = current.CreatedOn
		rec.syncDenormalized()

		_, err = tx.NewUpdate().
			Model(&rec).
			ExcludeColumn("id", "created_on").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}

		out = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteOne removes at most one record matching filter
func (s *BunStore) DeleteOne(ctx context.Context, filter Filter) (int64, error) {
	var n int64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		rec, err := s.findOneTx(ctx, tx, filter)
		if err != nil {
			if IsRecordNotFound(err) {
				return nil
			}
			return err
		}

		res, err := tx.NewDelete().
			Model((*Record)(nil)).
			Where("?TableAlias.id = ?", rec.ID).
			Exec(ctx)
		if err != nil {
			return err
		}

		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// Aggregate buckets the matching records by GroupKey. Groups are sorted by
// status then type, users by creation time.
func (s *BunStore) Aggregate(ctx context.Context, agg Aggregation) ([]UserGroup, error) {
	var records []Record

	q := s.db.NewSelect().
		Model(&records).
		Column("id", "type", "user_status", "first", "last", "name", "primary_email", "archived", "created_on").
		OrderExpr("?TableAlias.created_on ASC")

	if len(agg.Types) > 0 {
		q = q.Where("?TableAlias.type IN (?)", bun.In(agg.Types))
	}
	if agg.Archived != nil {
		q = q.Where("?TableAlias.archived = ?", *agg.Archived)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to select users for aggregation")
	}

	return groupRecords(records, agg.GroupBy), nil
}

func groupRecords(records []Record, by GroupBy) []UserGroup {
	index := map[GroupKey]int{}
	groups := []UserGroup{}

	for _, rec := range records {
		key := GroupKey{Type: rec.Type}
		if by != GroupByType {
			key.Status = rec.Status
		}

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, UserGroup{Key: key, Users: []UserSummary{}})
		}

		groups[i].Count++
		groups[i].Users = append(groups[i].Users, UserSummary{
			ID:           rec.ID,
			PrimaryEmail: rec.PrimaryEmail,
			Name:         fallbackName(rec.Name, rec.First, rec.Last),
			Status:       rec.Status,
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Key.Status != groups[j].Key.Status {
			return groups[i].Key.Status < groups[j].Key.Status
		}
		return groups[i].Key.Type < groups[j].Key.Type
	})
	return groups
}

func whereFilter(f Filter) func(bun.QueryBuilder) bun.QueryBuilder {
	return func(q bun.QueryBuilder) bun.QueryBuilder {
		if f.ID != "" {
			q = q.Where("?TableAlias.id = ?", f.ID)
		}
		if f.PrimaryEmail != "" {
			q = q.Where("?TableAlias.primary_email = ?", f.PrimaryEmail)
		}
		if f.Username != "" {
			q = q.Where("?TableAlias.username = ?", f.Username)
		}
		if f.SessionID != "" {
			q = q.Where("?TableAlias.session_id = ?", f.SessionID)
		}
		if f.AccessToken != "" {
			q = q.Where("?TableAlias.access_token = ?", f.AccessToken)
		}
		if f.Type != "" {
			q = q.Where("?TableAlias.type = ?", f.Type)
		}
		if f.Archived != nil {
			q = q.Where("?TableAlias.archived = ?", *f.Archived)
		}
		return q
	}
}
