// Package metrics provides observability for the review ledger.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks review ledger activity: submissions, decisions, staleness
// detections, lock behavior, and chain verification health.
type Metrics struct {
	Submissions        prometheus.Counter
	Decisions          *prometheus.CounterVec
	StaleDetections    prometheus.Counter
	LockAcquisitions   prometheus.Counter
	LockContention     prometheus.Counter
	ActiveLocks        prometheus.Gauge
	ChainVerifications *prometheus.CounterVec
	VerifyDuration     prometheus.Histogram
	SLABreaches        prometheus.Counter
}

// New creates a Metrics instance with all review ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_review_submissions_total",
			Help: "Total number of review requests submitted",
		}),
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_review_decisions_total",
			Help: "Total number of review decisions recorded, by outcome",
		}, []string{"outcome"}),
		StaleDetections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_review_stale_detections_total",
			Help: "Total number of reviews voided because the target changed mid-review",
		}),
		LockAcquisitions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_review_lock_acquisitions_total",
			Help: "Total number of successful review lock acquisitions and renewals",
		}),
		LockContention: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_review_lock_contention_total",
			Help: "Total number of lock acquisitions rejected because another reviewer holds the lease",
		}),
		ActiveLocks: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "attest_review_active_locks",
			Help: "Number of currently active review locks",
		}),
		ChainVerifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_chain_verifications_total",
			Help: "Total number of audit chain verification runs, by result",
		}, []string{"result"}),
		VerifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attest_chain_verify_duration_seconds",
			Help:    "Duration of full audit chain verification walks",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		SLABreaches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attest_review_sla_breaches_total",
			Help: "Total number of SLA breaches detected by the sweep",
		}),
	}
}

// IncrementSubmissions records a review submission.
func (m *Metrics) IncrementSubmissions() {
	if m == nil {
		return
	}
	m.Submissions.Inc()
}

// IncrementDecision records a decision by outcome.
func (m *Metrics) IncrementDecision(outcome string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(outcome).Inc()
}

// IncrementStaleDetections records a mid-review staleness detection.
func (m *Metrics) IncrementStaleDetections() {
	if m == nil {
		return
	}
	m.StaleDetections.Inc()
}

// IncrementLockAcquisitions records a successful lock acquisition or renewal.
func (m *Metrics) IncrementLockAcquisitions() {
	if m == nil {
		return
	}
	m.LockAcquisitions.Inc()
}

// IncrementLockContention records a rejected lock acquisition.
func (m *Metrics) IncrementLockContention() {
	if m == nil {
		return
	}
	m.LockContention.Inc()
}

// SetActiveLocks records the current active lock count.
func (m *Metrics) SetActiveLocks(n int) {
	if m == nil {
		return
	}
	m.ActiveLocks.Set(float64(n))
}

// ObserveVerification records a chain verification run and its duration.
func (m *Metrics) ObserveVerification(start time.Time, valid bool) {
	if m == nil {
		return
	}
	result := "valid"
	if !valid {
		result = "broken"
	}
	m.ChainVerifications.WithLabelValues(result).Inc()
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}

// IncrementSLABreaches records an SLA breach detection.
func (m *Metrics) IncrementSLABreaches() {
	if m == nil {
		return
	}
	m.SLABreaches.Inc()
}
