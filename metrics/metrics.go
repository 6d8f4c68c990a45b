package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ClaimCounter tracks the number of claim attempts.
	ClaimCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seatlock_claim_total",
		Help: "Total number of claim attempts",
	})
	// ClaimConflictCounter tracks claim attempts that found the lease held.
	ClaimConflictCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seatlock_claim_conflict_total",
		Help: "Total number of claim attempts rejected because the lease was held",
	})
	// ReleaseCounter tracks release outcomes by result.
	ReleaseCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seatlock_release_total",
		Help: "Total number of release operations by result",
	}, []string{"result"})
	// ExtendCounter tracks extend outcomes by result.
	ExtendCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seatlock_extend_total",
		Help: "Total number of extend operations by result",
	}, []string{"result"})
	// CompensatorDeletedCounter tracks keys reclaimed by the compensator.
	CompensatorDeletedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seatlock_compensator_deleted_total",
		Help: "Total number of expired lease keys deleted by the compensator",
	})
	// CompensatorErrorCounter tracks aborted compensator passes.
	CompensatorErrorCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seatlock_compensator_errors_total",
		Help: "Total number of compensator passes aborted by an error",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCoreMetrics registers seatlock core metrics on the provided registry.
func RegisterCoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		ClaimCounter,
		ClaimConflictCounter,
		ReleaseCounter,
		ExtendCounter,
		CompensatorDeletedCounter,
		CompensatorErrorCounter,
	)
}
