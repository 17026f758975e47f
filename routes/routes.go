package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/wkalt/i3s/source"
	"github.com/wkalt/i3s/util/mw"
)

/*
Package routes serves scene layers over the I3S REST layout, so that any I3S
client (including source.HTTPSource) can read layers held in local or remote
SLPK archives:

	GET /                                   service summary and layer list
	GET /layers/{layer}                     layer descriptor
	GET /layers/{layer}/nodepages/{page}    node page

Documents are served as stored, without re-encoding, so fields this module does
not model reach the client unchanged.
*/

////////////////////////////////////////////////////////////////////////////////

// MakeRoutes builds the router for a set of layers keyed by layer ID.
func MakeRoutes(
	serviceName string,
	layers map[uint64]source.Backend,
	allowedOrigins []string,
	sharedKey string,
) *mux.Router {
	r := mux.NewRouter()
	r.Use(
		mw.WithRequestID,
		mw.WithAccessLog,
		mw.WithCORSAllowedOrigins(allowedOrigins),
		mw.WithSharedKeyAuth(sharedKey),
	)
	methods := []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	r.HandleFunc("/", newServiceHandler(serviceName, layers)).Methods(methods...)
	r.HandleFunc("/layers/{layer}", newLayerHandler(layers)).Methods(methods...)
	r.HandleFunc("/layers/{layer}/nodepages/{page}", newNodePageHandler(layers)).Methods(methods...)
	return r
}
