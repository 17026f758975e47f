package source

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/wkalt/i3s/layer"
	"github.com/wkalt/i3s/util"
	"golang.org/x/sync/singleflight"
)

/*
CachingSource keeps recently fetched node page documents in an LRU cache in
front of another backend. The descriptor is fetched once and kept for the life
of the source. Cached values are the raw documents, so the typed and raw
accessors share one cache.
*/

////////////////////////////////////////////////////////////////////////////////

// CachingSource is a Backend with an LRU cache of node pages.
type CachingSource struct {
	inner Backend
	pages *util.LRU[uint64, []byte]
	group *singleflight.Group

	mtx        *sync.Mutex
	descriptor []byte
}

// NewCachingSource wraps inner with a cache of at most capacity pages.
func NewCachingSource(inner Backend, capacity int) *CachingSource {
	return &CachingSource{
		inner: inner,
		pages: util.NewLRU[uint64, []byte](capacity),
		group: &singleflight.Group{},
		mtx:   &sync.Mutex{},
	}
}

// RawDescriptor returns the memoized descriptor, fetching it on first use. A
// failed fetch is not memoized.
func (c *CachingSource) RawDescriptor(ctx context.Context) ([]byte, error) {
	c.mtx.Lock()
	data := c.descriptor
	c.mtx.Unlock()
	if data != nil {
		return data, nil
	}
	v, err, _ := c.group.Do("descriptor", func() (any, error) {
		return c.inner.RawDescriptor(ctx)
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	data = v.([]byte)
	c.mtx.Lock()
	c.descriptor = data
	c.mtx.Unlock()
	return data, nil
}

// RawNodePage returns a cached page document, fetching it on a miss.
// Concurrent misses for the same page share one fetch.
func (c *CachingSource) RawNodePage(ctx context.Context, page uint64) ([]byte, error) {
	if data, ok := c.pages.Get(page); ok {
		return data, nil
	}
	v, err, _ := c.group.Do(strconv.FormatUint(page, 10), func() (any, error) {
		data, err := c.inner.RawNodePage(ctx, page)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		c.pages.Put(page, data)
		return data, nil
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return v.([]byte), nil
}

// Descriptor returns the parsed memoized descriptor.
func (c *CachingSource) Descriptor(ctx context.Context) (*layer.Descriptor, error) {
	data, err := c.RawDescriptor(ctx)
	if err != nil {
		return nil, err
	}
	return parseDescriptor(data, c.inner.String()+" descriptor")
}

// NodePage returns a parsed node page, from cache when possible.
func (c *CachingSource) NodePage(ctx context.Context, page uint64) (*layer.NodePage, error) {
	data, err := c.RawNodePage(ctx, page)
	if err != nil {
		return nil, err
	}
	return parseNodePage(data, fmt.Sprintf("%s node page %d", c.inner, page))
}

// Stats returns page cache hits and misses.
func (c *CachingSource) Stats() (hits, misses uint64) {
	return c.pages.Stats()
}

// Unwrap returns the wrapped backend.
func (c *CachingSource) Unwrap() Backend {
	return c.inner
}

// Close closes the wrapped backend.
func (c *CachingSource) Close() error {
	return c.inner.Close() //nolint:wrapcheck
}

func (c *CachingSource) String() string {
	return fmt.Sprintf("cached(%s)", c.inner)
}
