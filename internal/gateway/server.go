package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public — no auth required.
	r.Get("/health", g.handleHealth())

	// Everything else sits behind the bearer token when one is set.
	r.Group(func(r chi.Router) {
		if g.cfg.AuthToken != "" {
			r.Use(authMiddleware(g.cfg.AuthToken))
		}
		r.Get("/status", g.handleStatus())
		r.Get("/ws/events", g.handleEvents())
		if g.deps.Registry != nil {
			r.Handle("/metrics", promhttp.HandlerFor(g.deps.Registry, promhttp.HandlerOpts{}))
		}
	})

	return r
}
