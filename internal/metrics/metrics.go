// Package metrics exposes Prometheus collectors for the harvester service,
// grounded on the teacher's promauto + sync.Once Init pattern.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	postsHarvestedTotal      *prometheus.CounterVec
	repliesHarvestedTotal    *prometheus.CounterVec
	credentialRotationsTotal prometheus.Counter
	navigationRetriesTotal   *prometheus.CounterVec
	apiFallbackTotal         *prometheus.CounterVec
	harvestDurationSeconds   *prometheus.HistogramVec
	activeHarvests           prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors. Safe to call multiple
// times.
func Init() {
	once.Do(func() {
		postsHarvestedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_posts_harvested_total",
				Help: "Total number of root posts harvested, labeled by method.",
			},
			[]string{"method"},
		)

		repliesHarvestedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_replies_harvested_total",
				Help: "Total number of replies harvested, labeled by method.",
			},
			[]string{"method"},
		)

		credentialRotationsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_credential_rotations_total",
				Help: "Total number of times the credential rotator advanced.",
			},
		)

		navigationRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_navigation_retries_total",
				Help: "Total number of navigation retry attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		apiFallbackTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_api_fallback_total",
				Help: "Total number of times the orchestrator fell back to the API client, labeled by reason.",
			},
			[]string{"reason"},
		)

		harvestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_run_duration_seconds",
				Help:    "Histogram of end-to-end harvest run durations, labeled by method and outcome.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"method", "outcome"},
		)

		activeHarvests = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_active_runs",
				Help: "Number of harvest runs currently in progress.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePosts increments the posts-harvested counter for method.
func ObservePosts(method string, n int) {
	if n <= 0 {
		return
	}
	postsHarvestedTotal.WithLabelValues(method).Add(float64(n))
}

// ObserveReplies increments the replies-harvested counter for method.
func ObserveReplies(method string, n int) {
	if n <= 0 {
		return
	}
	repliesHarvestedTotal.WithLabelValues(method).Add(float64(n))
}

// ObserveCredentialRotation increments the rotation counter.
func ObserveCredentialRotation() {
	credentialRotationsTotal.Inc()
}

// ObserveNavigationRetry increments the navigation-retry counter for the
// given outcome ("retried", "exhausted", "terminal").
func ObserveNavigationRetry(outcome string) {
	navigationRetriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveAPIFallback increments the fallback counter for reason
// ("launch_failure", "auto_terminal_error").
func ObserveAPIFallback(reason string) {
	apiFallbackTotal.WithLabelValues(reason).Inc()
}

// ObserveHarvestDuration records one run's wall-clock duration.
func ObserveHarvestDuration(method, outcome string, d time.Duration) {
	harvestDurationSeconds.WithLabelValues(method, outcome).Observe(d.Seconds())
}

// IncActiveHarvests increments the in-progress gauge.
func IncActiveHarvests() { activeHarvests.Inc() }

// DecActiveHarvests decrements the in-progress gauge.
func DecActiveHarvests() { activeHarvests.Dec() }
