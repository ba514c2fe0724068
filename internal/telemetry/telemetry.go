// Package telemetry exposes the core's Prometheus instrumentation.
// Grounded on control_plane/observability/metrics.go from the teacher: one
// promauto-registered collector per concern, kept as package-level vars so
// every component can record against them without threading a registry
// through constructors.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PoolOccupancy tracks how many of the fixed task-pool slots are in use.
	PoolOccupancy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tableboard_pool_occupancy",
		Help: "Number of occupied slots in the task pool",
	})

	// TaskAdmissions counts pool admissions by kind.
	TaskAdmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tableboard_task_admissions_total",
		Help: "Total task admissions (upserts) by kind",
	}, []string{"kind"})

	// TaskIgnores counts ignore actions applied, by kind and outcome.
	TaskIgnores = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tableboard_task_ignores_total",
		Help: "Total ignore actions applied to tasks",
	}, []string{"kind", "outcome"}) // outcome: suppressed, killed

	// SchedulerDecisions counts scheduler tick outcomes.
	SchedulerDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tableboard_scheduler_decisions_total",
		Help: "Total scheduler tick decisions",
	}, []string{"decision"}) // decision: adopt, hold, switch, clear

	// ActiveTaskScore tracks the score of the currently active task.
	ActiveTaskScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tableboard_active_task_score",
		Help: "Utility score of the currently active task",
	})

	// TableState tracks which lifecycle state each table is in.
	// Set to 1 for the current state, 0 for every other state of that table.
	TableState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tableboard_table_state",
		Help: "Current FSM state per table (1 = current, 0 = not current)",
	}, []string{"table", "state"})

	// IngressRejections counts events dropped by the ingress limiter.
	IngressRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tableboard_ingress_rejections_total",
		Help: "Events rejected by the ingress rate limiter",
	}, []string{"entry_point"})

	// EventExportFailures counts failed best-effort Redis publishes.
	EventExportFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tableboard_event_export_failures_total",
		Help: "Failed best-effort decision-event publishes to the export sink",
	})

	// AuditWriteFailures counts failed best-effort Postgres audit writes.
	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tableboard_audit_write_failures_total",
		Help: "Failed best-effort audit sink writes",
	})
)
