package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"ticketbot/internal/domain"
	"ticketbot/internal/session"
)

func newTestRecorder(t *testing.T) (*Recorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	rec, err := NewRecorder(provider.Meter("test"))
	require.NoError(t, err)
	return rec, reader
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

func counterValue(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestRecorderCountsOutcomes(t *testing.T) {
	rec, reader := newTestRecorder(t)
	ctx := context.Background()

	rec.PredictionCompleted(ctx, session.PredictionEvent{Label: "Access", Latency: 40 * time.Millisecond})
	rec.PredictionCompleted(ctx, session.PredictionEvent{Label: "Access", Latency: 25 * time.Millisecond})
	rec.PredictionCompleted(ctx, session.PredictionEvent{Err: errors.New("refused")})
	rec.FeedbackCompleted(ctx, session.FeedbackEvent{Kind: domain.FeedbackCorrection, Latency: time.Millisecond})
	rec.ResultDiscarded(ctx, session.KindPredict)

	metrics := collect(t, reader)

	predictions := metrics["ticketbot_predictions_total"]
	require.EqualValues(t, 2, counterValue(t, predictions, attribute.String("outcome", "success")))
	require.EqualValues(t, 1, counterValue(t, predictions, attribute.String("outcome", "error")))

	feedback := metrics["ticketbot_feedback_total"]
	require.EqualValues(t, 1, counterValue(t, feedback,
		attribute.String("kind", "corrected"),
		attribute.String("outcome", "success"),
	))

	stale := metrics["ticketbot_stale_results_total"]
	require.EqualValues(t, 1, counterValue(t, stale, attribute.String("kind", "predict")))

	hist, ok := metrics["ticketbot_request_latency_ms"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	require.EqualValues(t, 4, total)
}

func TestNoopRecorderAcceptsEvents(t *testing.T) {
	rec := NewNoop()
	require.NotNil(t, rec)
	rec.PredictionCompleted(context.Background(), session.PredictionEvent{Label: "Hardware"})
	rec.ResultDiscarded(context.Background(), session.KindFeedback)
}

func TestNewExporterDisabled(t *testing.T) {
	_, err := NewExporter(context.Background(), Config{Enabled: false, Endpoint: "localhost:4317"})
	require.Error(t, err)
}
