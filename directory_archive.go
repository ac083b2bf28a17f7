package users

import (
	"context"
	"path"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// DirectoryMove reports the relocation of one user directory
type DirectoryMove struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Moved   bool   `json:"moved"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ArchiveResult reports an archival. Archived is authoritative, directory
// moves are best effort.
type ArchiveResult struct {
	ID       string        `json:"id"`
	Archived bool          `json:"archived"`
	Public   DirectoryMove `json:"public"`
	Private  DirectoryMove `json:"private"`
}

// ArchiveUser relocates the user's directories under the archive root and
// flags the record archived. A failed move is logged and reported but does
// not prevent archival. When the archived record cannot be saved the moved
// directories are put back.
func (d *Directory) ArchiveUser(ctx context.Context, id string) (ArchiveResult, error) {
	id = strings.TrimSpace(id)
	result := ArchiveResult{ID: id}

	if id == "" {
		return result, NewValidationError("a valid user id must be provided", "id")
	}

	u, err := d.LookupByID(ctx, id, WithAnyArchived())
	if err != nil {
		return result, err
	}
	if u == nil {
		return result, goerrors.New("user not found", goerrors.CategoryNotFound).
			WithTextCode(TextCodeRecordNotFound).
			WithCode(goerrors.CodeNotFound).
			WithMetadata(map[string]any{"id": id})
	}

	if u.IsArchived() {
		result.Archived = true
		result.Public = DirectoryMove{From: u.PublicDir(), Skipped: true}
		result.Private = DirectoryMove{From: u.PrivateDir(), Skipped: true}
		return result, nil
	}

	result.Public = d.archiveDirectory(ctx, u, slotPublic)
	result.Private = d.archiveDirectory(ctx, u, slotPrivate)

	u.rec.Archived = true
	if err := u.persist(ctx); err != nil {
		u.rec.Archived = false
		d.restoreDirectory(ctx, u, slotPublic, &result.Public)
		d.restoreDirectory(ctx, u, slotPrivate, &result.Private)
		return result, err
	}
	result.Archived = true

	d.env.emit(ctx, ActivityEventUserArchived, id, id, map[string]any{
		"public":  result.Public,
		"private": result.Private,
	})
	return result, nil
}

func (d *Directory) archiveDirectory(ctx context.Context, u *User, slot dirSlot) DirectoryMove {
	from := u.dir(slot)
	move := DirectoryMove{From: from}
	if from == "" {
		move.Skipped = true
		return move
	}

	move.To = path.Join(d.env.cfg.ArchiveRoot, string(slot), u.ID())

	if _, err := u.moveDirectory(ctx, slot, move.To); err != nil {
		d.env.logger.Error("failed to archive %s directory of user %s: %v", slot, u.ID(), err)
		move.Error = err.Error()
		return move
	}

	move.Moved = true
	return move
}

// restoreDirectory moves an archived directory back when the archival
// could not be saved, so the stored paths stay accurate.
func (d *Directory) restoreDirectory(ctx context.Context, u *User, slot dirSlot, move *DirectoryMove) {
	if !move.Moved {
		return
	}
	if _, err := u.moveDirectory(ctx, slot, move.From); err != nil {
		d.env.logger.Error("failed to restore %s directory of user %s to %s: %v", slot, u.ID(), move.From, err)
		move.Error = err.Error()
		return
	}
	move.Moved = false
}
