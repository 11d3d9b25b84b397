package discovery

import (
	"encoding/json"
	"net/http"
	"strings"

	"codeberg.org/mutker/wvasim/internal/logger"
)

// MountPath is where the API lives on the HTTP server.
const MountPath = "/ws"

// RequestObserver is notified of every answered request.
type RequestObserver interface {
	ObserveRequest(family string, found bool)
}

// Handler exposes a Service over HTTP. Every answer has status 200; a
// missing resource is the body null.
type Handler struct {
	svc      *Service
	log      logger.Logger
	observer RequestObserver
}

func NewHandler(svc *Service, log logger.Logger, observer RequestObserver) *Handler {
	return &Handler{
		svc:      svc,
		log:      log,
		observer: observer,
	}
}

// Mount registers the handler for MountPath and everything below it.
func (h *Handler) Mount(mux *http.ServeMux) {
	mux.Handle(MountPath, h)
	mux.Handle(MountPath+"/", h)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := Request{
		Method: parseMethod(r.Method),
		Path:   strings.TrimPrefix(r.URL.Path, MountPath),
		Params: flattenQuery(r),
	}

	resp := h.svc.Query(req)

	if h.observer != nil {
		h.observer.ObserveRequest(resp.Family, resp.Found())
	}

	h.log.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("family", resp.Family).
		Bool("found", resp.Found()).
		Msg("Discovery request")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if err := json.NewEncoder(w).Encode(resp.Body); err != nil {
		h.log.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to write discovery response")
	}
}

func parseMethod(m string) Method {
	switch m {
	case http.MethodGet, http.MethodHead:
		return Get
	case http.MethodPut:
		return Put
	case http.MethodDelete:
		return Delete
	default:
		return 0
	}
}

// flattenQuery keeps the first value of every query parameter.
func flattenQuery(r *http.Request) map[string]string {
	query := r.URL.Query()
	params := make(map[string]string, len(query))
	for k, vs := range query {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
	return params
}
