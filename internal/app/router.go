package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/fairyhunter13/career-readiness/internal/adapter/httpserver"
	"github.com/fairyhunter13/career-readiness/internal/adapter/observability"
	"github.com/fairyhunter13/career-readiness/internal/config"
)

// ParseOrigins splits a comma-separated origin list. Empty input means "*".
func ParseOrigins(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter wires middleware and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.RequestID())
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "If-None-Match", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "ETag", "Location"},
		MaxAge:         300,
	}))

	timeout := cfg.HTTPWriteTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(httpserver.RequireJSON)
		v1.Use(httpserver.TimeoutMiddleware(timeout))

		v1.Get("/assessments/{id}/analysis", srv.StatusHandler())

		// mutating and model-backed routes share the per-IP budget
		v1.Group(func(g chi.Router) {
			if cfg.RateLimitPerMin > 0 {
				g.Use(httprate.Limit(cfg.RateLimitPerMin, time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
					httprate.WithLimitHandler(rateLimited)))
			}
			g.Post("/assessments/{id}/analysis", srv.TriggerHandler())
			g.Post("/analysis/quick", srv.QuickHandler())
			g.Post("/resume/extract", srv.ExtractHandler())
			g.Post("/resume/analyze", srv.ResumeAnalyzeHandler())
		})
	})

	r.Get("/healthz", httpserver.HealthzHandler)
	r.Get("/readyz", srv.ReadyzHandler())
	r.Handle("/metrics", promhttp.Handler())

	return httpserver.SecurityHeaders(r)
}

func rateLimited(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":{"code":"RATE_LIMITED","message":"too many requests","details":null}}`))
}
