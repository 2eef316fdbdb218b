package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityMergedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_service",
		Subsystem: "persistence",
		Name:      "last_activity_merged_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity guild merge persisted to Postgres.",
	})
	guildMergeCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_service",
		Subsystem: "persistence",
		Name:      "guild_merges_total",
		Help:      "Number of guild merge statements applied to activities.",
	})
	gamesCreatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_service",
		Subsystem: "persistence",
		Name:      "games_created_total",
		Help:      "Number of game records created, including placeholder games.",
	})
)

func init() {
	prometheus.MustRegister(activityMergedGauge, guildMergeCounter, gamesCreatedCounter)
}

// RecordActivityMerged updates the merge watermark gauge and counter.
func RecordActivityMerged(ts time.Time) {
	guildMergeCounter.Inc()
	if ts.IsZero() {
		return
	}
	activityMergedGauge.Set(float64(ts.Unix()))
}

// RecordGameCreated increments the created-games counter.
func RecordGameCreated() {
	gamesCreatedCounter.Inc()
}
