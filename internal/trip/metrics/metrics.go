package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the trip module. Tracks mutation counts
// and durations, validation and authorization rejections, and how hard the
// share-token allocator has to work.
type Metrics struct {
	TripsCreated       *prometheus.CounterVec
	TripsDeleted       prometheus.Counter
	ValidationFailures *prometheus.CounterVec
	PermissionDenied   *prometheus.CounterVec
	TokenRetries       prometheus.Counter
	TokenExhausted     prometheus.Counter
	MutationDuration   *prometheus.HistogramVec
}

// New creates a Metrics instance with all trip module metrics registered.
func New() *Metrics {
	return &Metrics{
		TripsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tripmate_trips_created_total",
			Help: "Total number of trips created",
		}, []string{"visibility"}),
		TripsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tripmate_trips_deleted_total",
			Help: "Total number of trips deleted",
		}),
		ValidationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tripmate_validation_failures_total",
			Help: "Validation rejections by failure kind",
		}, []string{"kind"}),
		PermissionDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tripmate_permission_denied_total",
			Help: "Authorization denials by role and action",
		}, []string{"role", "action"}),
		TokenRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tripmate_share_token_retries_total",
			Help: "Share token reservation retries after collisions",
		}),
		TokenExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tripmate_share_token_exhausted_total",
			Help: "Share token allocations that gave up after max retries",
		}),
		MutationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tripmate_trip_mutation_duration_seconds",
			Help:    "Duration of trip mutations end to end, transaction included",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

// IncrementTripsCreated records a successful trip creation.
func (m *Metrics) IncrementTripsCreated(public bool) {
	visibility := "private"
	if public {
		visibility = "public"
	}
	m.TripsCreated.WithLabelValues(visibility).Inc()
}

// IncrementTripsDeleted records a successful trip deletion.
func (m *Metrics) IncrementTripsDeleted() {
	m.TripsDeleted.Inc()
}

// IncrementValidationFailure records a validation rejection by kind.
func (m *Metrics) IncrementValidationFailure(kind string) {
	m.ValidationFailures.WithLabelValues(kind).Inc()
}

// IncrementPermissionDenied records an authorization denial.
func (m *Metrics) IncrementPermissionDenied(role, action string) {
	m.PermissionDenied.WithLabelValues(role, action).Inc()
}

// IncrementTokenRetry records one share-token collision retry.
func (m *Metrics) IncrementTokenRetry() {
	m.TokenRetries.Inc()
}

// IncrementTokenExhausted records a share-token allocation giving up.
func (m *Metrics) IncrementTokenExhausted() {
	m.TokenExhausted.Inc()
}

// ObserveMutation records the duration of a trip mutation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveMutation(operation string, start time.Time) {
	m.MutationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
