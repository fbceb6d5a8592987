package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voxid/internal/platform/config"
	"voxid/internal/platform/health"
	"voxid/pkg/platform/middleware/request"
	"voxid/pkg/platform/middleware/requesttime"
)

// New builds an HTTP server from the server section of the configuration.
func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Mounter registers a group of routes.
type Mounter interface {
	Register(r chi.Router)
}

// RouterConfig collects what NewRouter needs.
type RouterConfig struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration
	Metrics        *request.Metrics
	Gatherer       prometheus.Gatherer
	Health         *health.Handler
}

// NewRouter applies the common middleware stack, exposes the health and
// metrics endpoints, and mounts every group.
func NewRouter(cfg RouterConfig, groups ...Mounter) chi.Router {
	r := chi.NewRouter()

	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(cfg.Logger))
	r.Use(requesttime.Middleware)
	r.Use(request.LatencyMiddleware(cfg.Metrics, routePattern))
	if cfg.RequestTimeout > 0 {
		r.Use(request.Timeout(cfg.RequestTimeout))
	}

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, g := range groups {
		g.Register(r)
	}
	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
