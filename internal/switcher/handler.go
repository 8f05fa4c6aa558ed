package switcher

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the switcher HTTP endpoints using go-chi.
type Handler struct {
	router *Router
	store  Store
	log    *slog.Logger
}

// NewHandler returns a Handler proxying through router and reporting from store.
func NewHandler(router *Router, store Store, log *slog.Logger) *Handler {
	return &Handler{router: router, store: store, log: log}
}

// Routes mounts /hls/* and /healthz on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/hls/*", h.ProxyHLS)
	r.Get("/healthz", h.Healthz)
}

// ProxyHLS handles GET /hls/{path}. An empty path proxies the origin's base URL.
func (h *Handler) ProxyHLS(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")

	origin, err := h.router.Forward(r.Context(), w, path, r.URL.RawQuery)
	if errors.Is(err, ErrBodyInterrupted) {
		// Status and headers are already on the wire.
		h.log.Debug("proxy body interrupted",
			slog.String("origin", origin.String()),
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	if err != nil {
		status := proxyErrorStatus(err)
		h.log.Debug("proxy failed",
			slog.String("origin", origin.String()),
			slog.String("path", path),
			slog.Int("status", status),
			slog.String("error", err.Error()))
		http.Error(w, http.StatusText(status), status)
	}
}

type healthResponse struct {
	ActiveOrigin string `json:"active_origin"`
}

// Healthz handles GET /healthz with the current active origin.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(healthResponse{ActiveOrigin: h.store.Active().String()})
}
