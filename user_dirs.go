package users

import (
	"context"
	"path"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

type dirSlot string

const (
	slotPublic  dirSlot = "public"
	slotPrivate dirSlot = "private"
)

// DirectoryName is the stable per-user directory name derived from id
func DirectoryName(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", NewValidationError("user id is required", "id")
	}
	h, err := hashid.NewUUID(id)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to derive directory name")
	}
	return h.String(), nil
}

// SetPublicDirectory places the user's public directory under location.
// It is created when unset, moved when set elsewhere and left alone when
// already there.
func (u *User) SetPublicDirectory(ctx context.Context, location string) error {
	return u.setDirectory(ctx, slotPublic, location)
}

// SetPrivateDirectory is SetPublicDirectory for the private directory
func (u *User) SetPrivateDirectory(ctx context.Context, location string) error {
	return u.setDirectory(ctx, slotPrivate, location)
}

func (u *User) setDirectory(ctx context.Context, slot dirSlot, location string) error {
	if strings.TrimSpace(location) == "" {
		return NewValidationError("directory location is required", "location")
	}

	name, err := DirectoryName(u.rec.ID)
	if err != nil {
		return err
	}

	changed, err := u.moveDirectory(ctx, slot, path.Join(location, name))
	if err != nil || !changed {
		return err
	}
	return u.persist(ctx)
}

// moveDirectory creates or moves slot to target. changed is false when the
// directory already lives at target.
func (u *User) moveDirectory(ctx context.Context, slot dirSlot, target string) (changed bool, err error) {
	if u.env.files == nil {
		return false, ErrMissingFileStorage
	}

	current := u.dir(slot)
	if current == target {
		return false, nil
	}

	if current == "" {
		if err := u.env.files.MkdirAll(ctx, target); err != nil {
			return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user directory").
				WithMetadata(map[string]any{"slot": string(slot), "path": target})
		}
	} else {
		if err := u.env.files.MkdirAll(ctx, path.Dir(target)); err != nil {
			return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create directory parent").
				WithMetadata(map[string]any{"slot": string(slot), "path": path.Dir(target)})
		}
		if err := u.env.files.Rename(ctx, current, target); err != nil {
			return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to move user directory").
				WithMetadata(map[string]any{"slot": string(slot), "from": current, "to": target})
		}
	}

	u.env.logger.Debug("user %s %s directory is now %s", u.rec.ID, slot, target)
	u.setDir(slot, target)
	return true, nil
}

func (u *User) dir(slot dirSlot) string {
	if slot == slotPublic {
		return u.rec.PublicDir
	}
	return u.rec.PrivateDir
}

func (u *User) setDir(slot dirSlot, value string) {
	if slot == slotPublic {
		u.rec.PublicDir = value
	} else {
		u.rec.PrivateDir = value
	}
	u.keys.SetDirectories(u.rec.PublicDir, u.rec.PrivateDir)
}
