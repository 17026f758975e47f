package httputil_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/i3s/util/httputil"
)

func TestErrorResponses(t *testing.T) {
	cases := []struct {
		assertion string
		respond   func(context.Context, http.ResponseWriter, string, ...any)
		code      int
		body      string
	}{
		{
			"not found",
			httputil.NotFound,
			http.StatusNotFound,
			`{"error":"page 3 missing"}`,
		},
		{
			"bad request",
			httputil.BadRequest,
			http.StatusBadRequest,
			`{"error":"page 3 missing"}`,
		},
		{
			"unauthorized",
			httputil.Unauthorized,
			http.StatusUnauthorized,
			`{"error":"page 3 missing"}`,
		},
		{
			"bad gateway hides the cause",
			httputil.BadGateway,
			http.StatusBadGateway,
			`{"error":"upstream layer unavailable"}`,
		},
		{
			"internal server error hides the cause",
			httputil.InternalServerError,
			http.StatusInternalServerError,
			`{"error":"internal server error"}`,
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://example.com/layers/0", nil)
			recorder := httptest.NewRecorder()
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				c.respond(r.Context(), w, "page %d missing", 3)
			})
			handler(recorder, req)
			require.Equal(t, c.code, recorder.Code)
			require.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
			require.JSONEq(t, c.body, recorder.Body.String())
		})
	}
}
