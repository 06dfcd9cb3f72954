package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hydrate outcomes.
const (
	HydrateFresh    = "fresh"
	HydrateRestored = "restored"
	HydrateCorrupt  = "corrupt"
	HydrateFailed   = "failed"
)

// Metrics provides observability for the session container and its persister.
type Metrics struct {
	Mutations        *prometheus.CounterVec
	PersistFailures  prometheus.Counter
	PersistDuration  prometheus.Histogram
	HydrateOutcomes  *prometheus.CounterVec
	CoalescedWrites  prometheus.Counter
	LegacyMigrations prometheus.Counter
}

// New registers the session metrics on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "appshell_session_mutations_total",
			Help: "Total number of applied session mutations by operation",
		}, []string{"op"}),
		PersistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "appshell_session_persist_failures_total",
			Help: "Total number of failed write-behind persistence attempts",
		}),
		PersistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "appshell_session_persist_duration_seconds",
			Help:    "Duration of write-behind persistence attempts",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		HydrateOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "appshell_session_hydrate_total",
			Help: "Hydration attempts by outcome (fresh, restored, corrupt, failed)",
		}, []string{"outcome"}),
		CoalescedWrites: f.NewCounter(prometheus.CounterOpts{
			Name: "appshell_session_persist_coalesced_total",
			Help: "Snapshots superseded by a newer one before they were written",
		}),
		LegacyMigrations: f.NewCounter(prometheus.CounterOpts{
			Name: "appshell_session_legacy_migrations_total",
			Help: "Unversioned records upgraded during hydration",
		}),
	}
}

// IncrementMutation records an applied mutation.
func (m *Metrics) IncrementMutation(op string) {
	if m != nil {
		m.Mutations.WithLabelValues(op).Inc()
	}
}

// ObservePersist records one persistence attempt.
// Call with the time the attempt started.
func (m *Metrics) ObservePersist(start time.Time, err error) {
	if m == nil {
		return
	}
	m.PersistDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.PersistFailures.Inc()
	}
}

// IncrementHydrate records the hydrate outcome.
func (m *Metrics) IncrementHydrate(outcome string) {
	if m != nil {
		m.HydrateOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementCoalesced() {
	if m != nil {
		m.CoalescedWrites.Inc()
	}
}

func (m *Metrics) IncrementLegacyMigration() {
	if m != nil {
		m.LegacyMigrations.Inc()
	}
}
