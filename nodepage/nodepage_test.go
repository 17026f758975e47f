package nodepage_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/i3s/nodepage"
)

func TestLocate(t *testing.T) {
	cases := []struct {
		assertion    string
		index        uint64
		nodesPerPage uint64
		expected     nodepage.Location
	}{
		{"first node", 0, 64, nodepage.Location{Page: 0, Offset: 0}},
		{"last slot of first page", 63, 64, nodepage.Location{Page: 0, Offset: 63}},
		{"first slot of second page", 64, 64, nodepage.Location{Page: 1, Offset: 0}},
		{"capacity of one", 17, 1, nodepage.Location{Page: 17, Offset: 0}},
		{"odd capacity", 100, 7, nodepage.Location{Page: 14, Offset: 2}},
		{
			"beyond float32 precision",
			1<<24 + 1, 64,
			nodepage.Location{Page: (1<<24 + 1) / 64, Offset: 1},
		},
		{
			"largest index",
			math.MaxUint64, 64,
			nodepage.Location{Page: math.MaxUint64 / 64, Offset: 63},
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			loc := nodepage.Locate(c.index, c.nodesPerPage)
			assert.Equal(t, c.expected, loc)
			assert.Equal(t, c.index, loc.Index(c.nodesPerPage))
		})
	}
}

func TestPageArithmeticRoundTrips(t *testing.T) {
	rng := rand.New(rand.NewSource(1)) // nolint:gosec
	for range 10000 {
		n := uint64(rng.Intn(4096) + 1)
		i := rng.Uint64() >> uint(rng.Intn(64))
		page := nodepage.PageOf(i, n)
		offset := nodepage.OffsetInPage(i, n)
		require.Equal(t, i, page*n+offset, "index %d capacity %d", i, n)
		require.Less(t, offset, n)
	}
}

func TestFirstIndex(t *testing.T) {
	assert.Equal(t, uint64(128), nodepage.FirstIndex(2, 64))
	assert.Equal(t, uint64(0), nodepage.FirstIndex(0, 64))
}

func TestZeroCapacityPanics(t *testing.T) {
	assert.Panics(t, func() { nodepage.PageOf(1, 0) })
	assert.Panics(t, func() { nodepage.OffsetInPage(1, 0) })
	assert.Panics(t, func() { nodepage.FirstIndex(1, 0) })
}
