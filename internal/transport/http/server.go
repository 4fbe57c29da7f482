// Package httptransport assembles the HTTP servers of the Steppr API.
package httptransport

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chazstevenson112/Steppr/internal/auth"
	"github.com/chazstevenson112/Steppr/internal/middleware"
)

// ServerConfig contains tunables for the HTTP server.
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer creates *http.Server with provided handler.
func NewServer(cfg ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Routes registers API endpoints on a mux.
type Routes interface {
	RegisterRoutes(mux *http.ServeMux)
}

// RouterConfig describes the middleware stack in front of the API.
type RouterConfig struct {
	Auth           auth.Config
	RequestTimeout time.Duration
	Limiter        *middleware.RateLimiter
	Logger         *zap.Logger
}

// PublicPaths bypass authentication and rate limiting.
var PublicPaths = []string{"/healthz"}

// NewRouter wraps routes with request ids, panic recovery, access logging,
// authentication, rate limiting and a per-request timeout, outermost first.
func NewRouter(cfg RouterConfig, routes Routes) http.Handler {
	mux := http.NewServeMux()
	routes.RegisterRoutes(mux)

	public := auth.SkipPaths(PublicPaths...)
	stack := []middleware.Func{
		middleware.RequestID,
		middleware.Recover(cfg.Logger),
		middleware.AccessLog(cfg.Logger),
		auth.NewMiddleware(cfg.Auth, public, cfg.Logger).Wrap,
	}
	if cfg.Limiter != nil {
		stack = append(stack, cfg.Limiter.Wrap)
	}
	stack = append(stack, middleware.Timeout(cfg.RequestTimeout))
	return middleware.Chain(mux, stack...)
}

// NewMetricsHandler serves Prometheus metrics.
func NewMetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
