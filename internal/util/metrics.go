package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classifications_total",
		Help: "Total number of variant classifications by result",
	}, []string{"result"})

	VelocityUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "velocity_updates_total",
		Help: "Total number of variant velocity updates by result",
	}, []string{"result"})

	VelocityCategoryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "velocity_category_total",
		Help: "Variants assigned to each velocity category",
	}, []string{"category"})

	SalesFeedPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_feed_pages_total",
		Help: "Sales feed pages fetched by result",
	}, []string{"result"})

	ClearanceRecommendationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clearance_recommendations_total",
		Help: "Total number of clearance recommendations generated",
	}, []string{"mode"})

	CashAlertsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cash_alerts_generated_total",
		Help: "Total number of cash alerts generated",
	}, []string{"type", "priority"})

	AlertsPersistFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alerts_persist_failed_total",
		Help: "Total number of alerts that could not be persisted",
	})

	EngineRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engine_run_duration_seconds",
		Help:    "Duration of engine runs",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"engine"})

	EngineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_runs_total",
		Help: "Total number of engine runs by result",
	}, []string{"engine", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
