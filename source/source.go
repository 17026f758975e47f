package source

import (
	"context"
	"errors"

	"github.com/wkalt/i3s/layer"
)

/*
Package source retrieves I3S documents. A Source yields the layer descriptor
and node pages as typed records; it does not care whether the bytes come from
an SLPK archive or a SceneServer endpoint. Sources never retry. Callers own
retry, backoff, and timeout policy.
*/

////////////////////////////////////////////////////////////////////////////////

// Source is the capability every backend provides.
type Source interface {
	// Descriptor fetches and parses the layer descriptor.
	Descriptor(ctx context.Context) (*layer.Descriptor, error)

	// NodePage fetches and parses one node page.
	NodePage(ctx context.Context, page uint64) (*layer.NodePage, error)
}

// Backend is a Source that can also return undecoded documents, and that may
// hold resources needing release.
type Backend interface {
	Source

	// RawDescriptor returns the decompressed descriptor document.
	RawDescriptor(ctx context.Context) ([]byte, error)

	// RawNodePage returns the decompressed node page document.
	RawNodePage(ctx context.Context, page uint64) ([]byte, error)

	// Close releases the backend.
	Close() error

	// String describes where the backend reads from.
	String() string
}

// decodeFailure names the failing resource on a parse error.
func decodeFailure(resource string, err error) error {
	var decodeErr layer.DecodeError
	if errors.As(err, &decodeErr) {
		err = decodeErr.Err
	}
	return layer.NewDecodeError(resource, err)
}

func parseDescriptor(data []byte, resource string) (*layer.Descriptor, error) {
	descriptor, err := layer.ParseDescriptor(data)
	if err != nil {
		return nil, decodeFailure(resource, err)
	}
	return descriptor, nil
}

func parseNodePage(data []byte, resource string) (*layer.NodePage, error) {
	page, err := layer.ParseNodePage(data)
	if err != nil {
		return nil, decodeFailure(resource, err)
	}
	return page, nil
}
