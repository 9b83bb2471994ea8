package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Sessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics("test", reg)
	require.NoError(t, err)

	m.SessionOpened()
	m.SessionOpened()
	m.SessionReleased()
	m.SessionAcquireFailed()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.sessionsOpened))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sessionsActive))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sessionAcquireErrors))
}

func TestMetrics_Operations(t *testing.T) {
	m, err := NewMetrics("test", nil)
	require.NoError(t, err)

	start := time.Now()
	m.ObserveOperation(StorePostgres, "addresses", "insert", start, nil)
	m.ObserveOperation(StorePostgres, "addresses", "insert", start, errors.New("boom"))
	m.ObserveOperation(StoreMongo, "TraderUpdate", "replace", start, nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.operations.WithLabelValues(StorePostgres, "addresses", "insert", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.operations.WithLabelValues(StorePostgres, "addresses", "insert", "error")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.operations))
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics("dup", reg)
	require.NoError(t, err)

	_, err = NewMetrics("dup", reg)
	assert.Error(t, err)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SessionOpened()
		m.SessionReleased()
		m.SessionAcquireFailed()
		m.ObserveOperation(StoreMongo, "TraderUpdate", "find", time.Now(), nil)
		m.SchemaReset()
		m.ShapeRegistered("TraderUpdate", "created")
	})
}
