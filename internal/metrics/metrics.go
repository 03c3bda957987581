package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HoldsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ticketshow",
		Name:      "holds_created_total",
		Help:      "Seat holds that reached the pending state.",
	})

	HoldsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketshow",
		Name:      "holds_rejected_total",
		Help:      "Seat hold requests that were rejected, by reason.",
	}, []string{"reason"})

	PaymentsConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketshow",
		Name:      "payments_confirmed_total",
		Help:      "Payment confirmations, by outcome.",
	}, []string{"outcome"})

	HoldsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ticketshow",
		Name:      "holds_expired_total",
		Help:      "Unpaid holds released by the release job.",
	})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketshow",
		Name:      "jobs_processed_total",
		Help:      "Delayed jobs handled by the scheduler, by kind and outcome.",
	}, []string{"kind", "outcome"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ticketshow",
		Name:      "job_duration_seconds",
		Help:      "Delayed job handler latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketshow",
		Name:      "notifications_total",
		Help:      "Notification deliveries, by kind and outcome.",
	}, []string{"kind", "outcome"})
)
