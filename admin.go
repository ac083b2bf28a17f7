package users

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Admin exposes the operations only admin users hold
type Admin struct {
	*User
}

// Admin returns the admin capability or ErrNotAdmin
func (u *User) Admin() (*Admin, error) {
	if u.rec.Type != VariantAdmin {
		return nil, ErrNotAdmin
	}
	return &Admin{User: u}, nil
}

// IsAdmin reports whether the user holds the admin capability
func (u *User) IsAdmin() bool { return u.rec.Type == VariantAdmin }

// IsCreator reports whether the user can publish content
func (u *User) IsCreator() bool { return u.rec.Type.IsAtLeast(VariantCreator) }

// IsAnonymous reports an anonymous actor
func (u *User) IsAnonymous() bool { return u.rec.Type == VariantAnonymous }

// ListFilter narrows ListUsers
type ListFilter struct {
	Types           []Variant
	IncludeArchived bool
}

// DeleteResult reports how many records a delete removed
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// ListUsers counts users grouped by status and type. Anonymous users are
// left out unless asked for.
func (a *Admin) ListUsers(ctx context.Context, filter ListFilter) ([]UserGroup, error) {
	types := filter.Types
	if len(types) == 0 {
		types = []Variant{VariantAdmin, VariantCreator, VariantUser}
	}

	agg := Aggregation{GroupBy: GroupByStatus, Types: types}
	if !filter.IncludeArchived {
		agg.Archived = boolPtr(false)
	}
	return a.aggregate(ctx, agg)
}

// GetUsersByType counts users of one type, "all" matches every type
func (a *Admin) GetUsersByType(ctx context.Context, typ string) ([]UserGroup, error) {
	typ = strings.TrimSpace(typ)
	if typ == "" || typ == "undefined" {
		return nil, NewValidationError("a valid user type was not supplied", "type")
	}

	agg := Aggregation{GroupBy: GroupByType}
	if !strings.EqualFold(typ, "all") {
		v, ok := ParseVariant(typ)
		if !ok {
			return nil, NewValidationError("unknown user type", "type")
		}
		agg.Types = []Variant{v}
	}
	return a.aggregate(ctx, agg)
}

func (a *Admin) aggregate(ctx context.Context, agg Aggregation) ([]UserGroup, error) {
	if a.env.store == nil {
		return nil, ErrMissingStore
	}
	groups, err := a.env.store.Aggregate(ctx, agg)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to aggregate users")
	}
	return groups, nil
}

// DeleteUser hard deletes the record matching an id or primary email
func (a *Admin) DeleteUser(ctx context.Context, idOrEmail string) (DeleteResult, error) {
	idOrEmail = strings.TrimSpace(idOrEmail)
	if idOrEmail == "" {
		return DeleteResult{}, NewValidationError("either an id or email address is required", "id", "email")
	}
	if a.env.store == nil {
		return DeleteResult{}, ErrMissingStore
	}

	filter := Filter{ID: idOrEmail}
	if strings.Contains(idOrEmail, "@") {
		filter = Filter{PrimaryEmail: strings.ToLower(idOrEmail)}
	}

	n, err := a.env.store.DeleteOne(ctx, filter)
	if err != nil {
		return DeleteResult{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete user")
	}

	if n > 0 {
		a.env.emit(ctx, ActivityEventUserDeleted, a.ID(), idOrEmail, nil)
	}
	return DeleteResult{DeletedCount: n}, nil
}

// UpgradeUser moves a user one step up Anonymous, User, Creator. Creators
// and admins are not upgraded and false is returned.
func (a *Admin) UpgradeUser(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, NewValidationError("a valid user id must be provided", "id")
	}
	if a.env.store == nil {
		return false, ErrMissingStore
	}

	rec, err := a.env.store.FindOne(ctx, Filter{ID: id})
	if err != nil {
		if IsRecordNotFound(err) {
			return false, nil
		}
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
	}

	from := rec.Type
	if !from.IsValid() {
		from = VariantUser
	}
	next, ok := from.next()
	if !ok {
		return false, nil
	}

	rec.Type = next
	if rec.Description == "" || rec.Description == from.Description() {
		rec.Description = next.Description()
	}
	rec.UpdatedOn = a.env.now().UnixMilli()

	if _, err := a.env.store.FindOneAndUpdate(ctx, Filter{ID: id}, rec); err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to upgrade user")
	}

	a.env.emit(ctx, ActivityEventUserUpgraded, a.ID(), id, map[string]any{
		"from": string(from),
		"to":   string(next),
	})
	return true, nil
}
