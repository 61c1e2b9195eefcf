package metrics

import "github.com/prometheus/client_golang/prometheus"

// Lock settlement outcome labels.
const (
	LockOutcomeSettled       = "settled"
	LockOutcomeAlreadyLocked = "already_locked"
	LockOutcomeBelowMinimum  = "below_minimum"
	LockOutcomeTimeout       = "lock_timeout"
	LockOutcomeError         = "error"
)

// LockMetrics counts lock/settlement protocol outcomes per attempt.
type LockMetrics struct {
	outcomes *prometheus.CounterVec
}

// NewLockMetrics registers the lock protocol counters on the provided registerer.
func NewLockMetrics(reg prometheus.Registerer) *LockMetrics {
	if reg == nil {
		return &LockMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "group_lock_attempts_total",
		Help: "Group lock attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(outcomes)
	return &LockMetrics{outcomes: outcomes}
}

// IncOutcome counts one lock attempt with the given outcome label.
func (l *LockMetrics) IncOutcome(outcome string) {
	if l == nil || l.outcomes == nil {
		return
	}
	l.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}
