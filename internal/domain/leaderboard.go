package domain

import (
	"sort"
	"time"
)

// LeaderboardEntry is a participant with its 1-based rank.
type LeaderboardEntry struct {
	Rank     int       `json:"rank"`
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Steps    int64     `json:"steps"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Leaderboard orders participants by steps descending. Ties go to the earlier
// joiner, then to the lower user id.
func Leaderboard(c Challenge) []LeaderboardEntry {
	ranked := make([]Participant, len(c.Participants))
	copy(ranked, c.Participants)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Steps != b.Steps {
			return a.Steps > b.Steps
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.ID < b.ID
	})

	entries := make([]LeaderboardEntry, len(ranked))
	for i, p := range ranked {
		entries[i] = LeaderboardEntry{
			Rank:     i + 1,
			UserID:   p.ID,
			Name:     p.Name,
			Steps:    p.Steps,
			JoinedAt: p.JoinedAt,
		}
	}
	return entries
}

// RankOf returns userID's rank on the board, or 0 when absent.
func RankOf(entries []LeaderboardEntry, userID string) int {
	for _, e := range entries {
		if e.UserID == userID {
			return e.Rank
		}
	}
	return 0
}
