package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncOpCountsByVerb(t *testing.T) {
	m := New()
	m.IncOp("GET")
	m.IncOp("GET")
	m.IncOp("SET")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ops.WithLabelValues("GET")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ops.WithLabelValues("SET")))
}

func TestHitsAndMisses(t *testing.T) {
	m := New()
	m.IncHit()
	m.IncHit()
	m.IncMiss()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.hits))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.misses))
}

func TestConnOpenedAndClosed(t *testing.T) {
	m := New()
	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.connActive))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.connTotal))
}

func TestSnapshotResult(t *testing.T) {
	m := New()
	m.SnapshotResult(nil)
	m.SnapshotResult(assertErr{})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.snapshotOK))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.snapshotFail))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestNilMetricsIsNoOp(t *testing.T) {
	var m *Metrics
	m.IncOp("GET")
	m.IncHit()
	m.IncMiss()
	m.IncUnknownAction()
	m.IncActionError()
	m.ConnOpened()
	m.ConnClosed()
	m.SnapshotResult(nil)
}
