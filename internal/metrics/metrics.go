package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	RulesCreated   prometheus.Counter
	RulesDeleted   prometheus.Counter
	RulesAssigned  prometheus.Counter
	ProviderErrors prometheus.Counter
	UnusedRules    prometheus.Gauge
	UsedRules      prometheus.Gauge
	SetupRuns      *prometheus.CounterVec
	SetupDuration  prometheus.Histogram
	Reconciles     prometheus.Counter
}

// NewMetrics creates the metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RulesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "hide_mail_rules_created_total",
			Help: "Total number of pool rules created at the provider",
		}),
		RulesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "hide_mail_rules_deleted_total",
			Help: "Total number of pool rules deleted at the provider",
		}),
		RulesAssigned: factory.NewCounter(prometheus.CounterOpts{
			Name: "hide_mail_rules_assigned_total",
			Help: "Total number of pool rules handed out under a label",
		}),
		ProviderErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "hide_mail_provider_errors_total",
			Help: "Total number of failed provider calls in pool operations",
		}),
		UnusedRules: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hide_mail_pool_unused_rules",
			Help: "Unused rules seen by the last pool listing",
		}),
		UsedRules: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hide_mail_pool_used_rules",
			Help: "Used rules seen by the last pool listing",
		}),
		SetupRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hide_mail_setup_runs_total",
			Help: "Setup runs by result",
		}, []string{"result"}),
		SetupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hide_mail_setup_duration_seconds",
			Help:    "Time spent in the setup flow",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		Reconciles: factory.NewCounter(prometheus.CounterOpts{
			Name: "hide_mail_pool_reconciles_total",
			Help: "Total number of pool reconciliation passes",
		}),
	}
}
