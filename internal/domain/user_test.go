package domain_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chazstevenson112/Steppr/internal/domain"
)

func TestGetProfileProvisionsUser(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	profile, err := s.profiles.GetProfile(ctx, domain.Identity{UserID: "u1", Email: "u1@example.com", DisplayName: "Una"})
	require.NoError(t, err)
	require.Equal(t, "Una", profile.DisplayName)
	require.Equal(t, domain.DefaultDailyStepGoal, profile.DailyStepGoal)
	require.Equal(t, domain.ProfileStats{}, profile.Stats)

	again, err := s.profiles.GetProfile(ctx, domain.Identity{UserID: "u1", DisplayName: "Ignored"})
	require.NoError(t, err)
	require.Equal(t, "Una", again.DisplayName)
}

func TestProfileStats(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	id := domain.Identity{UserID: "u1"}

	createChallenge(t, s, "u1", 1)
	createChallenge(t, s, "u1", 10)
	logActivity(t, s.activities, "u1", "walking", 4000, "steps", time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC))
	logActivity(t, s.activities, "u1", "dancing", 10, "minutes", s.clock.Now())

	s.clock.Advance(36 * time.Hour)
	profile, err := s.profiles.GetProfile(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.ProfileStats{TotalSteps: 5200, ActiveChallenges: 1, CompletedChallenges: 1}, profile.Stats)
}

func TestUpdateProfile(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	id := domain.Identity{UserID: "u1"}

	name := "  Runner  "
	goal := int64(12000)
	photo := "https://cdn.example.com/me.png"
	profile, err := s.profiles.UpdateProfile(ctx, id, domain.UpdateProfileInput{DisplayName: &name, DailyStepGoal: &goal, PhotoURL: &photo})
	require.NoError(t, err)
	require.Equal(t, "Runner", profile.DisplayName)
	require.Equal(t, goal, profile.DailyStepGoal)
	require.Equal(t, photo, profile.PhotoURL)

	stored, err := s.profiles.GetProfile(ctx, id)
	require.NoError(t, err)
	require.Equal(t, goal, stored.DailyStepGoal)

	empty := ""
	zero := int64(0)
	badURL := "ftp://example.com/me.png"
	for _, in := range []domain.UpdateProfileInput{
		{DisplayName: &empty},
		{DailyStepGoal: &zero},
		{PhotoURL: &badURL},
	} {
		_, err := s.profiles.UpdateProfile(ctx, id, in)
		require.True(t, domain.IsCode(err, domain.ErrCodeValidation), "%+v", in)
	}
}
