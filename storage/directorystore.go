package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

/*
DirectoryStore keeps objects as files under a root directory. Object IDs may
contain slashes, which become subdirectories.
*/

////////////////////////////////////////////////////////////////////////////////

// DirectoryStore is a storage provider backed by a local directory.
type DirectoryStore struct {
	root string
}

// NewDirectoryStore creates a new DirectoryStore.
func NewDirectoryStore(root string) *DirectoryStore {
	return &DirectoryStore{root: root}
}

func (d *DirectoryStore) path(id string) string {
	return filepath.Join(d.root, filepath.FromSlash(id))
}

func (d *DirectoryStore) open(id string) (*os.File, error) {
	f, err := os.Open(d.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open %s: %w", id, err)
	}
	return f, nil
}

// Put writes an object, creating parent directories as needed.
func (d *DirectoryStore) Put(_ context.Context, id string, r io.Reader) error {
	path := d.path(id)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", id, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("write failure: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", id, err)
	}
	return nil
}

// Get opens an object for reading.
func (d *DirectoryStore) Get(_ context.Context, id string) (io.ReadCloser, error) {
	return d.open(id)
}

// GetRange returns length bytes starting at offset.
func (d *DirectoryStore) GetRange(_ context.Context, id string, offset int64, length int64) (io.ReadCloser, error) {
	f, err := d.open(id)
	if err != nil {
		return nil, err
	}
	return &sectionCloser{
		Reader: io.NewSectionReader(f, offset, length),
		closer: f,
	}, nil
}

// Size returns the size of an object in bytes.
func (d *DirectoryStore) Size(_ context.Context, id string) (int64, error) {
	info, err := os.Stat(d.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrObjectNotFound
		}
		return 0, fmt.Errorf("failed to stat %s: %w", id, err)
	}
	return info.Size(), nil
}

// Delete removes an object. Removing a missing object is not an error.
func (d *DirectoryStore) Delete(_ context.Context, id string) error {
	err := os.Remove(d.path(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deletion failure: %w", err)
	}
	return nil
}

func (d *DirectoryStore) String() string {
	return fmt.Sprintf("directory(%s)", d.root)
}

type sectionCloser struct {
	io.Reader
	closer io.Closer
}

func (s *sectionCloser) Close() error {
	return s.closer.Close()
}
