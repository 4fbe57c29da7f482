package domain

import "time"

// ChallengeView is a challenge as seen by one participant at a point in time.
type ChallengeView struct {
	Challenge
	Status       ChallengeStatus    `json:"status"`
	Progress     Progress           `json:"progress"`
	Leaderboard  []LeaderboardEntry `json:"leaderboard"`
	YourRank     int                `json:"yourRank,omitempty"`
	YourProgress *GoalProgress      `json:"yourProgress,omitempty"`
}

// NewChallengeView derives status, progress and standings for viewerID at now.
func NewChallengeView(c Challenge, viewerID string, now time.Time) ChallengeView {
	board := Leaderboard(c)
	view := ChallengeView{
		Challenge:   c,
		Status:      c.Status(now),
		Progress:    ComputeProgress(c, now),
		Leaderboard: board,
		YourRank:    RankOf(board, viewerID),
	}
	if p, ok := c.Participant(viewerID); ok {
		goal := ComputeGoalProgress(c, p.Steps, now)
		view.YourProgress = &goal
	}
	return view
}
