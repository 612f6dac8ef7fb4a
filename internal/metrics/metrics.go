// Package metrics records interaction-cycle outcomes as OpenTelemetry
// metrics and exports them over OTLP/gRPC.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"ticketbot/internal/classifier"
	"ticketbot/internal/session"
)

const (
	serviceName    = "ticketbot"
	serviceVersion = "1.0.0"
)

type Config struct {
	Endpoint string
	Enabled  bool
	Insecure bool
}

// Recorder turns controller events into counters and a latency histogram.
// It implements session.Observer.
type Recorder struct {
	predictions metric.Int64Counter
	feedback    metric.Int64Counter
	stale       metric.Int64Counter
	latency     metric.Float64Histogram
}

var _ session.Observer = (*Recorder)(nil)

func NewRecorder(meter metric.Meter) (*Recorder, error) {
	predictions, err := meter.Int64Counter(
		"ticketbot_predictions_total",
		metric.WithDescription("Prediction requests by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating predictions counter: %w", err)
	}

	feedback, err := meter.Int64Counter(
		"ticketbot_feedback_total",
		metric.WithDescription("Feedback submissions by kind and outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating feedback counter: %w", err)
	}

	stale, err := meter.Int64Counter(
		"ticketbot_stale_results_total",
		metric.WithDescription("Responses dropped because their cycle was replaced"),
		metric.WithUnit("{result}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stale results counter: %w", err)
	}

	latency, err := meter.Float64Histogram(
		"ticketbot_request_latency_ms",
		metric.WithDescription("Classifier round-trip latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating latency histogram: %w", err)
	}

	return &Recorder{
		predictions: predictions,
		feedback:    feedback,
		stale:       stale,
		latency:     latency,
	}, nil
}

// NewNoop returns a recorder that drops everything.
func NewNoop() *Recorder {
	r, _ := NewRecorder(noop.NewMeterProvider().Meter(serviceName))
	return r
}

func (r *Recorder) PredictionCompleted(ctx context.Context, ev session.PredictionEvent) {
	r.predictions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(ev.Err))))
	r.recordLatency(ctx, classifier.EndpointPredict, ev.Latency.Seconds()*1000)
}

func (r *Recorder) FeedbackCompleted(ctx context.Context, ev session.FeedbackEvent) {
	r.feedback.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(ev.Kind)),
		attribute.String("outcome", outcome(ev.Err)),
	))
	r.recordLatency(ctx, classifier.EndpointFeedback, ev.Latency.Seconds()*1000)
}

func (r *Recorder) ResultDiscarded(ctx context.Context, kind session.RequestKind) {
	r.stale.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}

func (r *Recorder) recordLatency(ctx context.Context, endpoint string, ms float64) {
	r.latency.Record(ctx, ms, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Exporter owns the meter provider pushing to an OTEL Collector.
type Exporter struct {
	provider *sdkmetric.MeterProvider
	Recorder *Recorder
}

func NewExporter(ctx context.Context, cfg Config) (*Exporter, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, fmt.Errorf("OTEL exporter is disabled or endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	rec, err := NewRecorder(provider.Meter(serviceName))
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}
	return &Exporter{provider: provider, Recorder: rec}, nil
}

// Close shuts down the exporter and flushes any pending metrics.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
