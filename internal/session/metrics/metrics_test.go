package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementMutation("log_in")
	m.IncrementMutation("log_in")
	m.IncrementMutation("log_out")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Mutations.WithLabelValues("log_in")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("log_out")))

	m.ObservePersist(time.Now(), nil)
	m.ObservePersist(time.Now(), errors.New("disk full"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailures))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PersistDuration))

	m.IncrementHydrate(HydrateCorrupt)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HydrateOutcomes.WithLabelValues(HydrateCorrupt)))

	m.IncrementCoalesced()
	m.IncrementLegacyMigration()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CoalescedWrites))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LegacyMigrations))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementMutation("log_in")
		m.ObservePersist(time.Now(), errors.New("x"))
		m.IncrementHydrate(HydrateFresh)
		m.IncrementCoalesced()
		m.IncrementLegacyMigration()
	})
}
