package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/chazstevenson112/Steppr/internal/auth"
	"github.com/chazstevenson112/Steppr/internal/domain"
	"github.com/chazstevenson112/Steppr/internal/observability"
	"github.com/chazstevenson112/Steppr/pkg/logger"
)

// CreateActivityRequest is the payload for POST /v1/activities.
type CreateActivityRequest struct {
	Type     string     `json:"type"`
	Quantity float64    `json:"quantity"`
	Unit     string     `json:"unit"`
	Date     *time.Time `json:"date,omitempty"`
}

// CreateActivityResponse describes the response body for create.
type CreateActivityResponse struct {
	Activity domain.Activity `json:"activity"`
	Message  string          `json:"message"`
	Replay   bool            `json:"idempotentReplay"`
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req CreateActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	raw := domain.RawActivity{
		UserID:   claims.Subject,
		Type:     req.Type,
		Quantity: req.Quantity,
		Unit:     req.Unit,
	}
	if req.Date != nil {
		raw.Date = *req.Date
	}

	result, err := h.activities.LogActivity(r.Context(), domain.LogActivityInput{
		RawActivity:    raw,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if !result.Replay {
		status = http.StatusCreated
		observability.RecordActivityLogged(string(result.Activity.Type), result.Activity.Steps)
		if h.dashboard != nil {
			if err := h.dashboard.Invalidate(r.Context(), claims.Subject); err != nil {
				logger.WithRequestID(r.Context(), h.logger).Warn("dashboard cache invalidation failed", zap.Error(err))
			}
		}
	}
	writeJSON(w, status, CreateActivityResponse{
		Activity: result.Activity,
		Message:  result.Message,
		Replay:   result.Replay,
	})
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil || (q.Has("limit") && limit == 0) {
		writeError(w, http.StatusBadRequest, string(domain.ErrCodeValidation),
			fmt.Sprintf("limit must be an integer between 1 and %d", domain.MaxActivityLimit))
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, string(domain.ErrCodeValidation), "offset must be an integer")
		return
	}

	page, err := h.activities.ListActivities(r.Context(), domain.ListActivitiesInput{
		UserID: claims.Subject,
		Type:   q.Get("type"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
