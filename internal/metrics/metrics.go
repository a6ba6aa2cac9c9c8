// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rental_app_submissions_total",
			Help: "Application submissions by outcome",
		},
		[]string{"outcome"},
	)

	AdminActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rental_app_admin_actions_total",
			Help: "Admin mutations by action and resulting status",
		},
		[]string{"action", "status"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rental_app_notifications_total",
			Help: "Notification deliveries by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	NotificationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rental_app_notification_queue_depth",
			Help: "Messages waiting in the notification queue",
		},
	)

	AutosaveWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rental_app_autosave_writes_total",
			Help: "Draft snapshot writes by outcome",
		},
		[]string{"outcome"},
	)

	DashboardSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rental_app_dashboard_subscribers",
			Help: "Open live dashboard streams",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rental_app_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeInvalid = "invalid"
	OutcomeDropped = "dropped"
)
