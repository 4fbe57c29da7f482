package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chazstevenson112/Steppr/internal/domain"
)

func TestSumStepsHalfOpenWindow(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	for i, date := range []time.Time{start.Add(-time.Second), start, start.Add(time.Hour), end} {
		require.NoError(t, store.AppendActivity(ctx, domain.Activity{
			ID: string(rune('a' + i)), UserID: "u1", Steps: 10 * int64(i+1), Date: date, CreatedAt: date,
		}, ""))
	}

	total, err := store.SumSteps(ctx, "u1", start, end)
	require.NoError(t, err)
	require.Equal(t, int64(20+30), total)
}

func TestChallengeCopiesAreIsolated(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	challenge := domain.Challenge{
		ID:           "c1",
		InviteCode:   "ABCDEFGH",
		CreatorID:    "u1",
		Participants: []domain.Participant{{ID: "u1"}},
	}
	require.NoError(t, store.CreateChallenge(ctx, challenge, ""))

	got, err := store.GetChallenge(ctx, "c1")
	require.NoError(t, err)
	got.Participants[0].Steps = 999

	again, err := store.GetChallengeByInviteCode(ctx, "ABCDEFGH")
	require.NoError(t, err)
	require.Zero(t, again.Participants[0].Steps)

	err = store.CreateChallenge(ctx, domain.Challenge{ID: "c2", InviteCode: "ABCDEFGH"}, "")
	require.ErrorIs(t, err, domain.ErrInviteCodeTaken)

	require.ErrorIs(t, store.AddParticipant(ctx, "c1", domain.Participant{ID: "u1"}), domain.ErrAlreadyJoined)
	require.ErrorIs(t, store.AddParticipant(ctx, "nope", domain.Participant{ID: "u2"}), domain.ErrChallengeNotFound)
	_, err = store.RecomputeParticipantSteps(ctx, "c1", "u9", time.Time{}, time.Now())
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	missing, err := store.GetChallenge(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestAppendRejectsReusedIdempotencyKey(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	first := domain.Activity{ID: "a1", UserID: "u1", Steps: 100, Date: now, CreatedAt: now}
	require.NoError(t, store.AppendActivity(ctx, first, "k1"))

	dup := domain.Activity{ID: "a2", UserID: "u1", Steps: 900, Date: now, CreatedAt: now}
	require.ErrorIs(t, store.AppendActivity(ctx, dup, "k1"), domain.ErrIdempotencyConflict)
	require.NoError(t, store.AppendActivity(ctx, domain.Activity{ID: "a3", UserID: "u2", Date: now, CreatedAt: now}, "k1"))

	page, total, err := store.ListActivities(ctx, domain.ActivityQuery{UserID: "u1", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "a1", page[0].ID)
}

func TestRecomputeParticipantStepsUsesWindow(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	require.NoError(t, store.CreateChallenge(ctx, domain.Challenge{
		ID: "c1", InviteCode: "WEEKLY01", Participants: []domain.Participant{{ID: "u1"}},
	}, ""))
	for i, date := range []time.Time{start.Add(-time.Hour), start, end.Add(-time.Minute), end} {
		require.NoError(t, store.AppendActivity(ctx, domain.Activity{
			ID: string(rune('a' + i)), UserID: "u1", Steps: 1000, Date: date, CreatedAt: date,
		}, ""))
	}

	total, err := store.RecomputeParticipantSteps(ctx, "c1", "u1", start, end)
	require.NoError(t, err)
	require.Equal(t, int64(2000), total)

	stored, err := store.GetChallenge(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, int64(2000), stored.Participants[0].Steps)

	_, err = store.RecomputeParticipantSteps(ctx, "missing", "u1", start, end)
	require.ErrorIs(t, err, domain.ErrChallengeNotFound)
}
