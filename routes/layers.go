package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/spaolacci/murmur3"
	"github.com/wkalt/i3s/layer"
	"github.com/wkalt/i3s/source"
	"github.com/wkalt/i3s/util/httputil"
	"github.com/wkalt/i3s/util/log"
	"golang.org/x/exp/maps"
)

// LayerSummary is one entry of the service layer list.
type LayerSummary struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	LayerType string `json:"layerType"`
	Href      string `json:"href"`
}

// ServiceResponse is the body served at the service root.
type ServiceResponse struct {
	ServiceName string         `json:"serviceName"`
	Layers      []LayerSummary `json:"layers"`
}

func etag(data []byte) string {
	return fmt.Sprintf(`"%016x"`, murmur3.Sum64(data))
}

// serveDocument writes a JSON document with an ETag, answering 304 when the
// client already holds it.
func serveDocument(ctx context.Context, w http.ResponseWriter, r *http.Request, data []byte) {
	tag := etag(data)
	w.Header().Set("ETag", tag)
	if r.Header.Get("If-None-Match") == tag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(data); err != nil {
		log.Debugw(ctx, "failed to write response", "error", err)
	}
}

// sourceFailure maps a source error onto a response.
func sourceFailure(ctx context.Context, w http.ResponseWriter, resource string, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		log.Debugw(ctx, "request abandoned", "resource", resource)
	case errors.Is(err, source.ErrNotFound):
		httputil.NotFound(ctx, w, "%s not found", resource)
	case errors.Is(err, layer.DecodeError{}):
		httputil.BadGateway(ctx, w, "%s is corrupt: %s", resource, err)
	default:
		httputil.BadGateway(ctx, w, "failed to read %s: %s", resource, err)
	}
}

func lookupLayer(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
	layers map[uint64]source.Backend,
) (uint64, source.Backend, bool) {
	raw := mux.Vars(r)["layer"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		httputil.BadRequest(ctx, w, "invalid layer ID: %s", raw)
		return 0, nil, false
	}
	backend, ok := layers[id]
	if !ok {
		httputil.NotFound(ctx, w, "layer %d not found", id)
		return 0, nil, false
	}
	return id, backend, true
}

func newServiceHandler(serviceName string, layers map[uint64]source.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ids := maps.Keys(layers)
		slices.Sort(ids)
		response := ServiceResponse{ServiceName: serviceName, Layers: []LayerSummary{}}
		for _, id := range ids {
			descriptor, err := layers[id].Descriptor(ctx)
			if err != nil {
				sourceFailure(ctx, w, fmt.Sprintf("layer %d descriptor", id), err)
				return
			}
			response.Layers = append(response.Layers, LayerSummary{
				ID:        id,
				Name:      descriptor.Name,
				LayerType: descriptor.LayerType,
				Href:      fmt.Sprintf("layers/%d", id),
			})
		}
		data, err := json.Marshal(response)
		if err != nil {
			httputil.InternalServerError(ctx, w, "failed to encode response: %s", err)
			return
		}
		serveDocument(ctx, w, r, data)
	}
}

func newLayerHandler(layers map[uint64]source.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, backend, ok := lookupLayer(ctx, w, r, layers)
		if !ok {
			return
		}
		ctx = log.AddTags(ctx, "layer", id)
		data, err := backend.RawDescriptor(ctx)
		if err != nil {
			sourceFailure(ctx, w, fmt.Sprintf("layer %d descriptor", id), err)
			return
		}
		serveDocument(ctx, w, r, data)
	}
}

func newNodePageHandler(layers map[uint64]source.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, backend, ok := lookupLayer(ctx, w, r, layers)
		if !ok {
			return
		}
		raw := mux.Vars(r)["page"]
		page, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			httputil.BadRequest(ctx, w, "invalid node page: %s", raw)
			return
		}
		ctx = log.AddTags(ctx, "layer", id, "page", page)
		data, err := backend.RawNodePage(ctx, page)
		if err != nil {
			sourceFailure(ctx, w, fmt.Sprintf("layer %d node page %d", id, page), err)
			return
		}
		serveDocument(ctx, w, r, data)
	}
}
