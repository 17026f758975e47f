package routes

import (
	"net/http/httptest"
	"testing"

	"github.com/wkalt/i3s/source"
)

// MakeTestRoutes serves layers from an httptest server and returns its URL.
// The server is closed when the test ends.
func MakeTestRoutes(t *testing.T, layers map[uint64]source.Backend, sharedKey string) string {
	t.Helper()
	handler := MakeRoutes("test", layers, []string{"http://localhost:5173"}, sharedKey)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}
