// Package api exposes the Steppr HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/chazstevenson112/Steppr/internal/auth"
	"github.com/chazstevenson112/Steppr/internal/domain"
	"github.com/chazstevenson112/Steppr/internal/health"
	"github.com/chazstevenson112/Steppr/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Services bundles the domain services served over HTTP.
type Services struct {
	Activities *domain.ActivityService
	Challenges *domain.ChallengeService
	Profiles   *domain.ProfileService
	Dashboard  *health.DashboardService
}

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	activities *domain.ActivityService
	challenges *domain.ChallengeService
	profiles   *domain.ProfileService
	dashboard  *health.DashboardService
	logger     *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(svc Services, log *zap.Logger) *Handler {
	return &Handler{
		activities: svc.Activities,
		challenges: svc.Challenges,
		profiles:   svc.Profiles,
		dashboard:  svc.Dashboard,
		logger:     logger.Named(log, "api"),
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/activities", h.createActivity)
	mux.HandleFunc("GET /v1/activities", h.listActivities)

	mux.HandleFunc("POST /v1/challenges", h.createChallenge)
	mux.HandleFunc("GET /v1/challenges", h.listChallenges)
	mux.HandleFunc("POST /v1/challenges/join", h.joinChallenge)
	mux.HandleFunc("GET /v1/challenges/{id}", h.getChallenge)

	mux.HandleFunc("GET /v1/profile", h.getProfile)
	mux.HandleFunc("PATCH /v1/profile", h.updateProfile)
	mux.HandleFunc("GET /v1/dashboard", h.getDashboard)

	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// authorize returns the caller's claims when they hold any of scopes.
func authorize(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing bearer token")
		return nil, false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return claims, true
		}
	}
	writeError(w, http.StatusForbidden, "FORBIDDEN", "scope "+scopes[0]+" required")
	return nil, false
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		detail := "unable to parse body"
		if errors.Is(err, io.EOF) {
			detail = "request body is required"
		}
		writeError(w, http.StatusBadRequest, string(domain.ErrCodeValidation), detail)
		return false
	}
	return true
}

// writeDomainError maps a domain failure onto its HTTP status.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.CodeOf(err)
	status := statusFor(code)

	detail := err.Error()
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		detail = dErr.Message
	}
	if status >= http.StatusInternalServerError {
		logger.WithRequestID(r.Context(), h.logger).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		detail = "service temporarily unavailable"
	}
	writeError(w, status, string(code), detail)
}

func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeAlreadyJoined:
		return http.StatusConflict
	case domain.ErrCodeUnsupportedUnit:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
