// Package observability holds the service-level Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "steppr",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity appended to the ledger.",
	})
	standingsRefreshGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "steppr",
		Subsystem: "standings",
		Name:      "last_refresh_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed standings refresh.",
	})
	activitiesLogged = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steppr",
		Subsystem: "ledger",
		Name:      "activities_logged_total",
		Help:      "Activities appended to the ledger by activity type.",
	}, []string{"type"})
	stepsConverted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steppr",
		Subsystem: "ledger",
		Name:      "steps_converted_total",
		Help:      "Step-equivalents credited by activity type.",
	}, []string{"type"})
	challengeJoins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steppr",
		Subsystem: "challenges",
		Name:      "join_attempts_total",
		Help:      "Join attempts by outcome.",
	}, []string{"outcome"})
	challengesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "steppr",
		Subsystem: "challenges",
		Name:      "created_total",
		Help:      "Challenges created.",
	})
	standingsRefreshDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "steppr",
		Subsystem: "standings",
		Name:      "refresh_duration_seconds",
		Help:      "Duration of standings refresh runs by trigger.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"trigger"})
)

func init() {
	prometheus.MustRegister(
		activityPersistGauge,
		standingsRefreshGauge,
		activitiesLogged,
		stepsConverted,
		challengeJoins,
		challengesCreated,
		standingsRefreshDuration,
	)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordActivityLogged counts a newly logged activity and its steps.
func RecordActivityLogged(activityType string, steps int64) {
	activitiesLogged.WithLabelValues(activityType).Inc()
	if steps > 0 {
		stepsConverted.WithLabelValues(activityType).Add(float64(steps))
	}
}

// RecordChallengeCreated counts a created challenge.
func RecordChallengeCreated() {
	challengesCreated.Inc()
}

// RecordJoin counts a join attempt; outcome is "joined" or an error code.
func RecordJoin(outcome string) {
	challengeJoins.WithLabelValues(outcome).Inc()
}

// RecordStandingsRefresh observes one refresh run and advances the watermark.
func RecordStandingsRefresh(trigger string, started time.Time) {
	standingsRefreshDuration.WithLabelValues(trigger).Observe(time.Since(started).Seconds())
	standingsRefreshGauge.Set(float64(time.Now().Unix()))
}
