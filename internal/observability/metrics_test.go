package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordActivityLogged(t *testing.T) {
	before := testutil.ToFloat64(activitiesLogged.WithLabelValues("hiking"))
	beforeSteps := testutil.ToFloat64(stepsConverted.WithLabelValues("hiking"))

	RecordActivityLogged("hiking", 1500)
	RecordActivityLogged("hiking", 0)

	require.InDelta(t, before+2, testutil.ToFloat64(activitiesLogged.WithLabelValues("hiking")), 0.0001)
	require.InDelta(t, beforeSteps+1500, testutil.ToFloat64(stepsConverted.WithLabelValues("hiking")), 0.0001)
}

func TestRecordJoinAndCreate(t *testing.T) {
	joined := testutil.ToFloat64(challengeJoins.WithLabelValues("joined"))
	created := testutil.ToFloat64(challengesCreated)

	RecordJoin("joined")
	RecordChallengeCreated()

	require.InDelta(t, joined+1, testutil.ToFloat64(challengeJoins.WithLabelValues("joined")), 0.0001)
	require.InDelta(t, created+1, testutil.ToFloat64(challengesCreated), 0.0001)
}

func TestWatermarks(t *testing.T) {
	ts := time.Unix(1_700_000_000, 0)
	RecordActivityPersisted(ts)
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(activityPersistGauge))

	RecordActivityPersisted(time.Time{})
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(activityPersistGauge))

	RecordStandingsRefresh("test", time.Now())
	require.Greater(t, testutil.ToFloat64(standingsRefreshGauge), float64(ts.Unix()))
}
