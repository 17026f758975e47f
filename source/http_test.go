package source_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/i3s/layer"
	"github.com/wkalt/i3s/source"
	"github.com/wkalt/i3s/util/testutils"
)

func sceneServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/SceneServer/layers/0/nodepages/9":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": "disk on fire"}`))
			return
		case "/SceneServer/layers/0/nodepages/10":
			<-r.Context().Done()
			return
		case "/SceneServer/layers/0/nodepages/11":
			if r.Header.Get("Authorization") != "Bearer sesame" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(testutils.PageJSON()))
			return
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": "no such resource"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHTTPSource(t *testing.T) {
	ctx := context.Background()
	root := testutils.PageJSON(
		testutils.NodeJSON(0, -1, 0, 1),
		testutils.NodeJSON(1, 0, 50),
	)
	server := sceneServer(t, map[string]string{
		"/SceneServer/layers/0":             testutils.DescriptorJSON(16, 0),
		"/SceneServer/layers/0/nodepages/0": root,
		"/SceneServer/layers/0/nodepages/1": `{"nodes": [{"index": "sixteen"}]}`,
		"/SceneServer/layers/2":             testutils.DescriptorJSON(32, 0),
	})
	base := server.URL + "/SceneServer"

	src, err := source.NewHTTPSource(base)
	require.NoError(t, err)

	t.Run("descriptor", func(t *testing.T) {
		descriptor, err := src.Descriptor(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(16), descriptor.NodePages.NodesPerPage)
	})
	t.Run("node page", func(t *testing.T) {
		page, err := src.NodePage(ctx, 0)
		require.NoError(t, err)
		require.Len(t, page.Nodes, 2)
		assert.Equal(t, uint64(0), *page.Nodes[1].ParentIndex)
	})
	t.Run("layer id", func(t *testing.T) {
		other, err := source.NewHTTPSource(base, source.WithLayerID(2))
		require.NoError(t, err)
		descriptor, err := other.Descriptor(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(32), descriptor.NodePages.NodesPerPage)
	})
	t.Run("urls", func(t *testing.T) {
		assert.Equal(t, base+"/layers/0", src.DescriptorURL())
		assert.Equal(t, base+"/layers/0/nodepages/5", src.NodePageURL(5))
	})
	t.Run("404 is not found", func(t *testing.T) {
		_, err := src.NodePage(ctx, 4)
		require.ErrorIs(t, err, source.ErrNotFound)
		var statusErr source.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.Code)
		assert.Equal(t, "no such resource", statusErr.Detail)
	})
	t.Run("500 is a status error", func(t *testing.T) {
		_, err := src.NodePage(ctx, 9)
		require.ErrorIs(t, err, source.StatusError{})
		require.NotErrorIs(t, err, source.ErrNotFound)
		assert.Contains(t, err.Error(), "disk on fire")
	})
	t.Run("schema mismatch is a decode error", func(t *testing.T) {
		_, err := src.NodePage(ctx, 1)
		var decodeErr layer.DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, src.NodePageURL(1), decodeErr.Resource)
	})
	t.Run("cancellation surfaces as a transport error", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err := src.NodePage(ctx, 10)
		require.ErrorIs(t, err, source.TransportError{})
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
	t.Run("shared key", func(t *testing.T) {
		_, err := src.NodePage(ctx, 11)
		require.ErrorIs(t, err, source.StatusError{})

		keyed, err := source.NewHTTPSource(base, source.WithSharedKey("sesame"))
		require.NoError(t, err)
		page, err := keyed.NodePage(ctx, 11)
		require.NoError(t, err)
		assert.Empty(t, page.Nodes)
	})
	t.Run("unreachable server", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		dead.Close()
		unreachable, err := source.NewHTTPSource(dead.URL)
		require.NoError(t, err)
		_, err = unreachable.Descriptor(ctx)
		require.ErrorIs(t, err, source.TransportError{})
	})
	t.Run("unsupported scheme", func(t *testing.T) {
		_, err := source.NewHTTPSource("ftp://example.com/SceneServer")
		require.Error(t, err)
	})
}
