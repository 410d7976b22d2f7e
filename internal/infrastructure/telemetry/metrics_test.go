package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newManualMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

// =============================================================================
// Instrument Helpers
// =============================================================================

func TestCounterHistogramGauge(t *testing.T) {
	reader, provider := newManualMeter(t)
	meter := provider.Meter("test")
	ctx := context.Background()

	counter, err := NewCounter(meter, "test_total", "test counter", "{op}")
	require.NoError(t, err)
	counter.Inc(ctx, AttrCommand.String("send"))
	counter.Add(ctx, 4, AttrCommand.String("send"))

	histogram, err := NewDurationHistogram(meter, "test_duration_seconds", "test histogram", []float64{0.1, 1})
	require.NoError(t, err)
	histogram.RecordDuration(ctx, 500*time.Millisecond)
	histogram.RecordDuration(ctx, 2*time.Second)

	gauge, err := NewGauge(meter, "test_gauge", "test gauge", "1")
	require.NoError(t, err)
	gauge.Record(ctx, 10)
	gauge.Record(ctx, -3)

	metrics := collect(t, reader)
	assert.Equal(t, int64(5), sumFor(t, metrics["test_total"], AttrCommand.String("send")))

	hist, ok := metrics["test_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.Equal(t, []float64{0.1, 1}, hist.DataPoints[0].Bounds)
	assert.Equal(t, []uint64{0, 1, 1}, hist.DataPoints[0].BucketCounts)

	g, ok := metrics["test_gauge"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, g.DataPoints, 1)
	assert.Equal(t, int64(-3), g.DataPoints[0].Value)
}

// =============================================================================
// Regularization Metrics
// =============================================================================

func TestNewRegularizationMetrics_NilMeter(t *testing.T) {
	m, err := NewRegularizationMetrics(nil)
	assert.ErrorIs(t, err, ErrMeterNil)
	assert.Nil(t, m)
}

func TestRegularizationMetrics_RecordCommand(t *testing.T) {
	reader, provider := newManualMeter(t)
	m, err := NewRegularizationMetrics(provider.Meter("test"))
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordCommand(ctx, "calculate", true, 40*time.Millisecond)
	m.RecordCommand(ctx, "calculate", false, 5*time.Millisecond)
	m.RecordCommand(ctx, "apply", true, 10*time.Millisecond)
	m.RecordConcurrencyRetry(ctx, "apply")

	metrics := collect(t, reader)
	total := metrics["regularization_commands_total"]
	assert.Equal(t, int64(1), sumFor(t, total, AttrCommand.String("calculate"), AttrChanged.Bool(true)))
	assert.Equal(t, int64(1), sumFor(t, total, AttrCommand.String("calculate"), AttrChanged.Bool(false)))
	assert.Equal(t, int64(1), sumFor(t, total, AttrCommand.String("apply"), AttrChanged.Bool(true)))
	assert.Equal(t, int64(1), sumFor(t, metrics["regularization_concurrency_retries_total"], AttrCommand.String("apply")))

	hist, ok := metrics["regularization_command_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2)
}

func TestRegularizationMetrics_RecordSendBatch(t *testing.T) {
	reader, provider := newManualMeter(t)
	m, err := NewRegularizationMetrics(provider.Meter("test"))
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordSendBatch(ctx, 3, 0)
	m.RecordSendBatch(ctx, 1, 2)

	metrics := collect(t, reader)
	assert.Equal(t, int64(4), sumFor(t, metrics["regularization_documents_sent_total"]))
	assert.Equal(t, int64(2), sumFor(t, metrics["regularization_documents_failed_total"]))
}

func TestRegularizationMetrics_RecordTotalBalance(t *testing.T) {
	reader, provider := newManualMeter(t)
	m, err := NewRegularizationMetrics(provider.Meter("test"))
	require.NoError(t, err)

	m.RecordTotalBalance(context.Background(), "ent-1", 2024, -12550)

	g, ok := collect(t, reader)["regularization_total_balance_cents"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, g.DataPoints, 1)
	assert.Equal(t, int64(-12550), g.DataPoints[0].Value)

	entity, _ := g.DataPoints[0].Attributes.Value(AttrEntityID)
	year, _ := g.DataPoints[0].Attributes.Value(AttrFiscalYear)
	assert.Equal(t, "ent-1", entity.AsString())
	assert.Equal(t, "2024", year.AsString())
}
