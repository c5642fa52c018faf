package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "blackfong"

// Metrics holds the Prometheus collectors of the control plane
type Metrics struct {
	// CommandRunsTotal counts finished runs. Labels: command, status
	CommandRunsTotal *prometheus.CounterVec

	// CommandDurationSeconds measures process wall time. Labels: command
	CommandDurationSeconds *prometheus.HistogramVec

	// UnitActionsTotal counts systemctl invocations. Labels: action, result
	UnitActionsTotal *prometheus.CounterVec

	NodeRegistrationsTotal prometheus.Counter
	NodeHeartbeatsTotal    prometheus.Counter

	// BackupRunsTotal counts EnsureDaily outcomes. Labels: result (created, skipped, missing, error)
	BackupRunsTotal *prometheus.CounterVec

	// BackupPruneErrorsTotal counts artifacts that could not be deleted
	BackupPruneErrorsTotal prometheus.Counter

	// HealthSeverity is the last verdict: 0 stable, 1 degraded, 2 critical
	HealthSeverity prometheus.Gauge

	// AuditSinkFailuresTotal counts secondary audit failures. Labels: sink (file, publish)
	AuditSinkFailuresTotal *prometheus.CounterVec
}

// NewMetrics registers all collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CommandRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "command",
			Name:      "runs_total",
			Help:      "Command runs by final status",
		}, []string{"command", "status"}),

		CommandDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Wall time of executed commands",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"command"}),

		UnitActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "unit",
			Name:      "actions_total",
			Help:      "systemctl actions by result",
		}, []string{"action", "result"}),

		NodeRegistrationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "node",
			Name:      "registrations_total",
			Help:      "Node registrations",
		}),

		NodeHeartbeatsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "node",
			Name:      "heartbeats_total",
			Help:      "Accepted node heartbeats",
		}),

		BackupRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "backup",
			Name:      "runs_total",
			Help:      "Backup attempts by result",
		}, []string{"result"}),

		BackupPruneErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "backup",
			Name:      "prune_errors_total",
			Help:      "Old backup artifacts that could not be deleted",
		}),

		HealthSeverity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "health_severity",
			Help:      "Last health verdict (0 stable, 1 degraded, 2 critical)",
		}),

		AuditSinkFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "audit",
			Name:      "sink_failures_total",
			Help:      "Audit entries persisted but not written to a secondary sink",
		}, []string{"sink"}),
	}
}

// NewTestMetrics returns metrics on a private registry
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
