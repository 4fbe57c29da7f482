package api

import (
	"net/http"

	"github.com/chazstevenson112/Steppr/internal/auth"
	"github.com/chazstevenson112/Steppr/internal/domain"
	"github.com/chazstevenson112/Steppr/internal/observability"
)

// CreateChallengeRequest is the payload for POST /v1/challenges.
type CreateChallengeRequest struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	TargetSteps int64  `json:"targetSteps"`
	Duration    int    `json:"duration"`
}

// CreateChallengeResponse describes the response body for create.
type CreateChallengeResponse struct {
	Challenge domain.ChallengeView `json:"challenge"`
	Message   string               `json:"message"`
	Replay    bool                 `json:"idempotentReplay"`
}

// JoinChallengeRequest is the payload for POST /v1/challenges/join.
type JoinChallengeRequest struct {
	InviteCode string `json:"inviteCode"`
}

// JoinChallengeResponse describes the response body for join.
type JoinChallengeResponse struct {
	ChallengeID string `json:"challengeId"`
	Message     string `json:"message"`
}

// ListChallengesResponse packages list results. Total counts the challenges
// left after the status filter.
type ListChallengesResponse struct {
	Challenges []domain.ChallengeView `json:"challenges"`
	Total      int                    `json:"total"`
}

func (h *Handler) createChallenge(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeChallengesWrite)
	if !ok {
		return
	}

	var req CreateChallengeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.profiles.EnsureUser(r.Context(), claims.Identity())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	result, err := h.challenges.CreateChallenge(r.Context(), domain.CreateChallengeInput{
		Name:           req.Name,
		Type:           req.Type,
		TargetSteps:    req.TargetSteps,
		DurationDays:   req.Duration,
		CreatorID:      user.ID,
		CreatorName:    user.DisplayName,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if !result.Replay {
		status = http.StatusCreated
		observability.RecordChallengeCreated()
	}
	writeJSON(w, status, CreateChallengeResponse{
		Challenge: domain.NewChallengeView(result.Challenge, user.ID, h.challenges.Now()),
		Message:   result.Message,
		Replay:    result.Replay,
	})
}

func (h *Handler) joinChallenge(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeChallengesWrite)
	if !ok {
		return
	}

	var req JoinChallengeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.profiles.EnsureUser(r.Context(), claims.Identity())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	result, err := h.challenges.JoinChallenge(r.Context(), domain.JoinChallengeInput{
		InviteCode: req.InviteCode,
		UserID:     user.ID,
		UserName:   user.DisplayName,
	})
	if err != nil {
		observability.RecordJoin(string(domain.CodeOf(err)))
		h.writeDomainError(w, r, err)
		return
	}
	observability.RecordJoin("joined")
	writeJSON(w, http.StatusOK, JoinChallengeResponse{ChallengeID: result.ChallengeID, Message: result.Message})
}

func (h *Handler) listChallenges(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeChallengesRead, auth.ScopeChallengesWrite)
	if !ok {
		return
	}

	challenges, err := h.challenges.ListChallenges(r.Context(), claims.Subject, r.URL.Query().Get("status"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	now := h.challenges.Now()
	resp := ListChallengesResponse{
		Challenges: make([]domain.ChallengeView, 0, len(challenges)),
		Total:      len(challenges),
	}
	for _, c := range challenges {
		resp.Challenges = append(resp.Challenges, domain.NewChallengeView(c, claims.Subject, now))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getChallenge(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeChallengesRead, auth.ScopeChallengesWrite)
	if !ok {
		return
	}

	challenge, err := h.challenges.GetChallenge(r.Context(), r.PathValue("id"), claims.Subject)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.NewChallengeView(*challenge, claims.Subject, h.challenges.Now()))
}
