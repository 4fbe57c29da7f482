package api

import (
	"net/http"

	"github.com/chazstevenson112/Steppr/internal/auth"
	"github.com/chazstevenson112/Steppr/internal/domain"
)

// UpdateProfileRequest is the payload for PATCH /v1/profile. Omitted fields are unchanged.
type UpdateProfileRequest struct {
	DisplayName   *string `json:"displayName,omitempty"`
	DailyStepGoal *int64  `json:"dailyStepGoal,omitempty"`
	PhotoURL      *string `json:"photoURL,omitempty"`
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeProfileRead, auth.ScopeProfileWrite)
	if !ok {
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), claims.Identity())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeProfileWrite)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	profile, err := h.profiles.UpdateProfile(r.Context(), claims.Identity(), domain.UpdateProfileInput{
		DisplayName:   req.DisplayName,
		DailyStepGoal: req.DailyStepGoal,
		PhotoURL:      req.PhotoURL,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) getDashboard(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeProfileRead, auth.ScopeActivitiesRead)
	if !ok {
		return
	}
	if h.dashboard == nil {
		writeError(w, http.StatusServiceUnavailable, string(domain.ErrCodeUnavailable), "health data is not configured")
		return
	}

	dashboard, err := h.dashboard.Get(r.Context(), claims.Identity())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}
