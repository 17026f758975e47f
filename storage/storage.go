package storage

import (
	"context"
	"errors"
	"io"
)

/*
The storage provider interface is the minimal set of object operations needed
to keep scene layer packages somewhere other than the local filesystem. SLPK
archives are read in place with ranged reads, so providers must support those
efficiently.
*/

////////////////////////////////////////////////////////////////////////////////

// ErrObjectNotFound is returned when an object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Provider is the interface for a storage provider.
type Provider interface {
	Put(ctx context.Context, id string, r io.Reader) error
	Get(ctx context.Context, id string) (io.ReadCloser, error)
	GetRange(ctx context.Context, id string, offset int64, length int64) (io.ReadCloser, error)
	Size(ctx context.Context, id string) (int64, error)
	Delete(ctx context.Context, id string) error
}
