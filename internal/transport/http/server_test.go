package httptransport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chazstevenson112/Steppr/internal/auth"
	"github.com/chazstevenson112/Steppr/internal/middleware"
)

type whoami struct{}

func (whoami) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		claims, _ := auth.FromContext(r.Context())
		_, _ = w.Write([]byte(claims.Subject))
	})
}

func TestRouterAuthenticatesAndLimits(t *testing.T) {
	cfg := auth.Config{Secret: "s3cret", Issuer: "steppr.test"}
	router := NewRouter(RouterConfig{
		Auth:           cfg,
		RequestTimeout: time.Second,
		Limiter:        middleware.NewRateLimiter(0.001, 1, nil),
		Logger:         zaptest.NewLogger(t),
	}, whoami{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotEmpty(t, rr.Header().Get(middleware.HeaderRequestID))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/me", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := auth.Issue(cfg, "u1", "", "", auth.AllScopes, time.Minute)
	require.NoError(t, err)

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	rr = call()
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "u1", rr.Body.String())
	require.Equal(t, http.StatusTooManyRequests, call().Code)
}

func TestMetricsHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	NewMetricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}
