// Package httptransport wires the HTTP surface: authenticated trip routes, the
// public share-link route, health, and metrics.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tripmate/internal/platform/middleware"
)

// NewRouter assembles the full route tree. The share route is deliberately
// outside the auth group: share links work without an account.
func NewRouter(trips *TripHandler, validator middleware.JWTValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	trips.RegisterPublic(r)

	r.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireAuth(validator, logger))
		authed.Use(chiTimeout(30 * time.Second))
		trips.Register(authed)
	})

	return r
}

// chiTimeout bounds handler time; the domain service itself never blocks
// indefinitely, so this guards only the storage collaborators.
func chiTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"error":"timeout"}`)
	}
}
