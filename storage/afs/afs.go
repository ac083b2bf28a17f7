// Package afs implements users.FileStorage on spf13/afero, backed by the
// OS filesystem or memory.
package afs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/afero"
)

const (
	dirPerm  = 0o755
	filePerm = 0o600
)

// Storage resolves slash separated paths against an afero filesystem
type Storage struct {
	fs afero.Fs
}

// New wraps fs as is
func New(fs afero.Fs) *Storage {
	return &Storage{fs: fs}
}

// NewOS roots storage at base on the OS filesystem
func NewOS(base string) *Storage {
	return New(afero.NewBasePathFs(afero.NewOsFs(), base))
}

// NewMemory returns an in-memory storage, mostly for tests
func NewMemory() *Storage {
	return New(afero.NewMemMapFs())
}

// Fs exposes the underlying filesystem
func (s *Storage) Fs() afero.Fs {
	return s.fs
}

func (s *Storage) MkdirAll(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := clean(p)
	if err != nil {
		return err
	}
	return s.fs.MkdirAll(name, dirPerm)
}

// Rename moves oldPath to newPath. The destination must not exist.
func (s *Storage) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	from, err := clean(oldPath)
	if err != nil {
		return err
	}
	to, err := clean(newPath)
	if err != nil {
		return err
	}

	exists, err := afero.Exists(s.fs, to)
	if err != nil {
		return err
	}
	if exists {
		return goerrors.New("rename destination already exists", goerrors.CategoryConflict).
			WithMetadata(map[string]any{"from": oldPath, "to": newPath})
	}
	return s.fs.Rename(from, to)
}

func (s *Storage) ReadFile(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := clean(p)
	if err != nil {
		return nil, err
	}
	return afero.ReadFile(s.fs, name)
}

// WriteFile creates parent directories as needed
func (s *Storage) WriteFile(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := clean(p)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(name), dirPerm); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, name, data, filePerm)
}

func (s *Storage) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	name, err := clean(p)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, name)
}

// Remove deletes a file or empty directory. Missing paths are not an error.
func (s *Storage) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := clean(p)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func clean(p string) (string, error) {
	c := path.Clean("/" + strings.TrimSpace(p))
	if c == "/" {
		return "", goerrors.New("path is required", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"path": p})
	}
	return filepath.FromSlash(strings.TrimPrefix(c, "/")), nil
}
