package source_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/i3s/source"
	"github.com/wkalt/i3s/util/testutils"
)

type countingBackend struct {
	source.Backend
	descriptors atomic.Int64
	pages       atomic.Int64
}

func (c *countingBackend) RawDescriptor(ctx context.Context) ([]byte, error) {
	c.descriptors.Add(1)
	return c.Backend.RawDescriptor(ctx)
}

func (c *countingBackend) RawNodePage(ctx context.Context, page uint64) ([]byte, error) {
	c.pages.Add(1)
	return c.Backend.RawNodePage(ctx, page)
}

func TestCachingSource(t *testing.T) {
	ctx := context.Background()
	pages, _ := testutils.BalancedTree(2, 3, 4)
	inner := &countingBackend{Backend: openArchive(t, testutils.SLPK{
		Descriptor: testutils.DescriptorJSON(4, 0),
		Pages:      pages,
	})}
	cache := source.NewCachingSource(inner, 2)

	t.Run("descriptor is fetched once", func(t *testing.T) {
		for range 3 {
			descriptor, err := cache.Descriptor(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(4), descriptor.NodePages.NodesPerPage)
		}
		assert.Equal(t, int64(1), inner.descriptors.Load())
	})

	t.Run("pages are cached up to capacity", func(t *testing.T) {
		for _, page := range []uint64{0, 1, 0, 1} {
			_, err := cache.NodePage(ctx, page)
			require.NoError(t, err)
		}
		assert.Equal(t, int64(2), inner.pages.Load())

		_, err := cache.NodePage(ctx, 2)
		require.NoError(t, err)
		_, err = cache.NodePage(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(4), inner.pages.Load())

		hits, misses := cache.Stats()
		assert.Equal(t, uint64(2), hits)
		assert.Equal(t, uint64(4), misses)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		before := inner.pages.Load()
		for range 2 {
			_, err := cache.NodePage(ctx, 99)
			require.ErrorIs(t, err, source.ErrNotFound)
		}
		assert.Equal(t, before+2, inner.pages.Load())
	})

	t.Run("concurrent readers", func(t *testing.T) {
		wg := &sync.WaitGroup{}
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				page, err := cache.NodePage(ctx, 3)
				assert.NoError(t, err)
				assert.NotEmpty(t, page.Nodes)
			}()
		}
		wg.Wait()
	})
}
