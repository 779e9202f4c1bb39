package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrInvalidKey is returned for keys that would escape the store root.
var ErrInvalidKey = errors.New("invalid blob key")

// BlobStore persists uploaded image data under opaque keys.
// Put is not transactional with the database; Delete of an absent key succeeds.
type BlobStore interface {
	Put(ctx context.Context, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// DiskStore keeps blobs as files below a root directory.
type DiskStore struct {
	fs   afero.Fs
	root string
}

// NewDiskStore returns a store rooted at root on fs, creating the directory if needed.
func NewDiskStore(fs afero.Fs, root string) (*DiskStore, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", root, err)
	}
	return &DiskStore{fs: fs, root: root}, nil
}

// NewOSDiskStore is NewDiskStore on the real filesystem.
func NewOSDiskStore(root string) (*DiskStore, error) {
	return NewDiskStore(afero.NewOsFs(), root)
}

// Root is the directory blobs are written to.
func (s *DiskStore) Root() string {
	return s.root
}

// Put writes r to a new file and returns its key. The original file name only
// contributes its extension; the key itself is a fresh UUID.
func (s *DiskStore) Put(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := uuid.NewString() + strings.ToLower(path.Ext(filepath.Base(filename)))
	f, err := s.fs.Create(filepath.Join(s.root, key))
	if err != nil {
		return "", fmt.Errorf("failed to create blob %s: %w", key, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = s.fs.Remove(filepath.Join(s.root, key))
		return "", fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close blob %s: %w", key, err)
	}
	return key, nil
}

// Delete removes the blob stored under key. A missing blob is not an error.
func (s *DiskStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.pathOf(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}

// Open returns a reader for key.
func (s *DiskStore) Open(key string) (afero.File, error) {
	p, err := s.pathOf(key)
	if err != nil {
		return nil, err
	}
	return s.fs.Open(p)
}

// HTTPFileSystem exposes the stored blobs read-only for static serving.
func (s *DiskStore) HTTPFileSystem() http.FileSystem {
	return afero.NewHttpFs(afero.NewReadOnlyFs(afero.NewBasePathFs(s.fs, s.root)))
}

func (s *DiskStore) pathOf(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || key == "." || key == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.root, key), nil
}
