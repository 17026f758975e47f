package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/i3s/service"
	"github.com/wkalt/i3s/util/testutils"
)

func writeArchive(t *testing.T, spec testutils.SLPK) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layer.slpk")
	require.NoError(t, os.WriteFile(path, testutils.BuildSLPK(t, spec), 0o600))
	return path
}

func TestParseManifest(t *testing.T) {
	t.Run("full manifest", func(t *testing.T) {
		m, err := service.ParseManifest([]byte(`
serviceName: city
port: 9000
logLevel: debug
allowedOrigins: ["*"]
sharedKey: sesame
cachePages: 16
layers:
  - id: 0
    location: ./city.slpk
  - id: 3
    location: https://example.com/layers/3
`))
		require.NoError(t, err)
		assert.Equal(t, "city", m.ServiceName)
		assert.Equal(t, 9000, m.Port)
		assert.Equal(t, []string{"*"}, m.AllowedOrigins)
		assert.Equal(t, []service.ManifestLayer{
			{ID: 0, Location: "./city.slpk"},
			{ID: 3, Location: "https://example.com/layers/3"},
		}, m.Layers)

		opts, err := m.Options()
		require.NoError(t, err)
		assert.Len(t, opts, 8)
	})

	cases := []struct {
		assertion string
		input     string
		expected  string
	}{
		{"duplicate layer", "layers: [{id: 1, location: a}, {id: 1, location: b}]", "duplicate layer ID: 1"},
		{"missing location", "layers: [{id: 2}]", "layer 2 has no location"},
		{"invalid yaml", "layers: {", "failed to parse manifest"},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			_, err := service.ParseManifest([]byte(c.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.expected)
		})
	}

	t.Run("invalid log level", func(t *testing.T) {
		m, err := service.ParseManifest([]byte("logLevel: loud"))
		require.NoError(t, err)
		_, err = m.Options()
		require.Error(t, err)
	})

	t.Run("s3 section builds a client", func(t *testing.T) {
		m, err := service.ParseManifest([]byte(`
s3:
  endpoint: localhost:9000
  accessKeyID: minioadmin
  secretAccessKey: minioadmin
`))
		require.NoError(t, err)
		opts, err := m.Options()
		require.NoError(t, err)
		assert.Len(t, opts, 1)
	})
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	pages, _ := testutils.BalancedTree(2, 2, 4)
	path := writeArchive(t, testutils.SLPK{Descriptor: testutils.DescriptorJSON(4, 0), Pages: pages})

	t.Run("requires a layer", func(t *testing.T) {
		_, err := service.New(ctx)
		require.ErrorContains(t, err, "at least one layer is required")
	})

	t.Run("missing archive", func(t *testing.T) {
		_, err := service.New(ctx, service.WithLayer(0, filepath.Join(t.TempDir(), "nope.slpk")))
		require.ErrorContains(t, err, "failed to open layer 0")
	})

	t.Run("invalid descriptor", func(t *testing.T) {
		bad := writeArchive(t, testutils.SLPK{Descriptor: testutils.DescriptorJSON(0, 0)})
		_, err := service.New(ctx, service.WithLayer(0, path), service.WithLayer(1, bad))
		require.ErrorContains(t, err, "failed to open layer 1")
	})

	t.Run("serves layers", func(t *testing.T) {
		svc, err := service.New(ctx, service.WithLayer(7, path), service.WithLogLevel(slog.LevelWarn))
		require.NoError(t, err)
		defer svc.Close()
		req, err := http.NewRequest(http.MethodGet, "/layers/7/nodepages/0", nil)
		require.NoError(t, err)
		rec := &recorder{header: http.Header{}}
		svc.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.code)
		assert.Contains(t, string(rec.body), `"nodes"`)
	})
}

func TestStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	path := writeArchive(t, testutils.SLPK{Descriptor: testutils.DescriptorJSON(4, 0)})
	port, err := testutils.GetOpenPort()
	require.NoError(t, err)

	svc, err := service.New(ctx, service.WithLayer(0, path), service.WithPort(port))
	require.NoError(t, err)
	defer svc.Close()

	done := make(chan error, 1)
	go func() {
		done <- svc.Start(ctx)
	}()

	url := fmt.Sprintf("http://localhost:%d/layers/0", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}

type recorder struct {
	header http.Header
	code   int
	body   []byte
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) Write(b []byte) (int, error) {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	r.body = append(r.body, b...)
	return len(b), nil
}

func (r *recorder) WriteHeader(code int) { r.code = code }
