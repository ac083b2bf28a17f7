package users

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

type ArchiveUserMessage struct {
	ID         string `json:"id"`
	OnResponse func(result ArchiveResult)
}

func (e ArchiveUserMessage) Type() string { return "user.archive" }

type ArchiveUserHandler struct {
	dir *Directory
}

func NewArchiveUserHandler(dir *Directory) *ArchiveUserHandler {
	return &ArchiveUserHandler{dir: dir}
}

func (h *ArchiveUserHandler) Execute(ctx context.Context, event ArchiveUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user archival",
		)
	default:
	}

	result, err := h.dir.ArchiveUser(ctx, event.ID)
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(result)
	}
	return nil
}
