package storage

import (
	"context"
	"fmt"
	"io"
)

// ReaderAt adapts one object in a Provider to io.ReaderAt using ranged reads.
// Archive readers use it to read SLPK packages in place.
type ReaderAt struct {
	ctx      context.Context
	provider Provider
	id       string
	size     int64
}

// NewReaderAt stats the object and returns a ReaderAt over it. The context is
// used for every subsequent read.
func NewReaderAt(ctx context.Context, provider Provider, id string) (*ReaderAt, error) {
	size, err := provider.Size(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to size %s: %w", id, err)
	}
	return &ReaderAt{ctx: ctx, provider: provider, id: id, size: size}, nil
}

// Size returns the object size in bytes.
func (r *ReaderAt) Size() int64 {
	return r.size
}

// ReadAt implements io.ReaderAt.
func (r *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.size {
		return 0, io.EOF
	}
	want := int64(len(p))
	short := false
	if off+want > r.size {
		want = r.size - off
		short = true
	}
	if want == 0 {
		return 0, nil
	}
	rc, err := r.provider.GetRange(r.ctx, r.id, off, want)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s at %d: %w", r.id, off, err)
	}
	defer rc.Close()
	n, err := io.ReadFull(rc, p[:want])
	if err != nil {
		return n, fmt.Errorf("short read of %s at %d: %w", r.id, off, err)
	}
	if short {
		return n, io.EOF
	}
	return n, nil
}
