package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schedulink",
			Name:      "api_requests_total",
			Help:      "Count of REST calls to the scheduling API by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "schedulink",
			Name:      "api_request_duration_seconds",
			Help:      "Latency of REST calls to the scheduling API.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	apiCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "schedulink",
			Name:      "api_cache_hits_total",
			Help:      "Count of GET responses served from the Redis cache.",
		},
	)

	slotTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schedulink",
			Name:      "slot_transitions_total",
			Help:      "Count of book/cancel attempts by result.",
		},
		[]string{"action", "result"},
	)

	rollbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schedulink",
			Name:      "slot_rollbacks_total",
			Help:      "Count of optimistic updates rolled back after a remote failure.",
		},
		[]string{"action"},
	)

	validationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schedulink",
			Name:      "validation_failures_total",
			Help:      "Count of forms rejected by local validation, by form and field.",
		},
		[]string{"form", "field"},
	)

	remindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schedulink",
			Name:      "reminders_sent_total",
			Help:      "Count of booking reminders by final status.",
		},
		[]string{"status"},
	)

	remindersPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "schedulink",
			Name:      "reminders_pending",
			Help:      "Reminders due in the last scan.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(apiRequests, apiLatency, apiCacheHits, slotTransitions, rollbacks, validationFailures, remindersSent, remindersPending)
	})
}

func ObserveAPIRequest(op, outcome string, took time.Duration) {
	apiRequests.WithLabelValues(op, outcome).Inc()
	apiLatency.WithLabelValues(op).Observe(took.Seconds())
}

func IncCacheHit() {
	apiCacheHits.Inc()
}

func IncSlotTransition(action, result string) {
	slotTransitions.WithLabelValues(action, result).Inc()
}

func IncRollback(action string) {
	rollbacks.WithLabelValues(action).Inc()
}

func IncValidationFailure(form string, fields map[string]string) {
	for field := range fields {
		validationFailures.WithLabelValues(form, field).Inc()
	}
}

func IncReminder(status string) {
	remindersSent.WithLabelValues(status).Inc()
}

func SetRemindersPending(n int) {
	remindersPending.Set(float64(n))
}
