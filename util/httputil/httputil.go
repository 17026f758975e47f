package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/wkalt/i3s/util/log"
)

/*
httputil holds the error responses used by the I3S REST handlers. Handlers send
every failure through one of these so that logging and the response body stay
consistent across routes.
*/

////////////////////////////////////////////////////////////////////////////////

// Detailer is implemented by errors that carry a longer explanation for the
// client.
type Detailer interface {
	Detail() string
}

func detail(err error) string {
	var d Detailer
	if errors.As(err, &d) {
		return d.Detail()
	}
	return ""
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeError(ctx context.Context, w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := ErrorResponse{Error: err.Error(), Detail: detail(err)}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Errorw(ctx, "error writing response", "error", err)
	}
}

// NotFound logs at debug level and responds 404.
func NotFound(ctx context.Context, w http.ResponseWriter, msg string, args ...any) {
	err := fmt.Errorf(msg, args...)
	log.Debugw(ctx, "Not found", "msg", err)
	writeError(ctx, w, http.StatusNotFound, err)
}

// BadRequest logs and responds 400.
func BadRequest(ctx context.Context, w http.ResponseWriter, msg string, args ...any) {
	err := fmt.Errorf(msg, args...)
	log.Infow(ctx, "Bad request", "msg", err)
	writeError(ctx, w, http.StatusBadRequest, err)
}

// Unauthorized logs at debug level and responds 401.
func Unauthorized(ctx context.Context, w http.ResponseWriter, msg string, args ...any) {
	err := fmt.Errorf(msg, args...)
	log.Debugw(ctx, "Unauthorized", "msg", err)
	writeError(ctx, w, http.StatusUnauthorized, err)
}

// BadGateway logs and responds 502. Used when an upstream layer cannot be
// read.
func BadGateway(ctx context.Context, w http.ResponseWriter, msg string, args ...any) {
	err := fmt.Errorf(msg, args...)
	log.Errorw(ctx, "Bad gateway", "msg", err)
	writeError(ctx, w, http.StatusBadGateway, errors.New("upstream layer unavailable"))
}

// InternalServerError logs the cause and responds 500 with a generic message.
func InternalServerError(ctx context.Context, w http.ResponseWriter, msg string, args ...any) {
	log.Errorw(ctx, "Internal server error", "msg", fmt.Errorf(msg, args...))
	writeError(ctx, w, http.StatusInternalServerError, errors.New("internal server error"))
}
