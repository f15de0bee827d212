package rest

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the HTTP API. gatherer backs GET /metrics. Forwarding
// headers are honoured only when the peer is inside trusted.
func NewRouter(h *Handlers, gatherer prometheus.Gatherer, trusted []netip.Prefix) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(trustedRealIP(trusted))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/csrf-token", h.CSRFToken)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.Register)
		r.Get("/check-email", h.CheckEmail)
		r.Get("/verify-email", h.VerifyEmail)
		r.Post("/refresh-token", h.RefreshToken)
		r.Post("/business-document/upload-url", h.DocumentUploadURL)
	})

	return r
}
