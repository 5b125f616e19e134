package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordGatewayCallIncrementsCounterAndObservesDuration(t *testing.T) {
	rm := New()
	rm.RecordGatewayCall("openai", "gpt-4o", "success", 1.5)

	count := testutil.ToFloat64(rm.GatewayCallsTotal.WithLabelValues("openai", "gpt-4o", "success"))
	assert.Equal(t, 1.0, count)
}

func TestRecordGatewayErrorIncrementsCounter(t *testing.T) {
	rm := New()
	rm.RecordGatewayError("anthropic", "context_limit_exceeded")
	rm.RecordGatewayError("anthropic", "context_limit_exceeded")

	count := testutil.ToFloat64(rm.GatewayErrorsTotal.WithLabelValues("anthropic", "context_limit_exceeded"))
	assert.Equal(t, 2.0, count)
}

func TestRecordCacheHitAndMiss(t *testing.T) {
	rm := New()
	rm.RecordCacheHit()
	rm.RecordCacheHit()
	rm.RecordCacheMiss()

	assert.Equal(t, 2.0, testutil.ToFloat64(rm.CacheHitsTotal.WithLabelValues()))
	assert.Equal(t, 1.0, testutil.ToFloat64(rm.CacheMissesTotal.WithLabelValues()))
}

func TestRecordMultiTurnRun(t *testing.T) {
	rm := New()
	rm.RecordMultiTurnRun("sequential", "success", 3)

	count := testutil.ToFloat64(rm.MultiTurnRunsTotal.WithLabelValues("sequential", "success"))
	assert.Equal(t, 1.0, count)
}

func TestRecordSynthesisCall(t *testing.T) {
	rm := New()
	rm.RecordSynthesisCall("summary", "success")
	rm.RecordSynthesisCall("recommendations", "failure")

	assert.Equal(t, 1.0, testutil.ToFloat64(rm.SynthesisCallsTotal.WithLabelValues("summary", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rm.SynthesisCallsTotal.WithLabelValues("recommendations", "failure")))
}

func TestNewRegistersAllCollectorsWithoutPanicking(t *testing.T) {
	require.NotPanics(t, func() {
		rm := New()
		require.NotNil(t, rm.Registry())
	})
}

func TestDefaultReturnsSameInstance(t *testing.T) {
	a := Default()
	b := Default()
	assert.Same(t, a, b)
}
