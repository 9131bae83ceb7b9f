package images

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments for the image build subsystem.
type Metrics struct {
	buildDuration metric.Float64Histogram
	buildsTotal   metric.Int64Counter
	queueLength   metric.Int64ObservableGauge
}

// NewMetrics creates the build metrics. The queue gauge observes the live
// queue on every collection.
func NewMetrics(meter metric.Meter, q *buildQueue) (*Metrics, error) {
	buildDuration, err := meter.Float64Histogram(
		"batchjob_image_build_duration_seconds",
		metric.WithDescription("Duration of image builds in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	buildsTotal, err := meter.Int64Counter(
		"batchjob_image_builds_total",
		metric.WithDescription("Total number of image builds"),
	)
	if err != nil {
		return nil, err
	}

	queueLength, err := meter.Int64ObservableGauge(
		"batchjob_image_build_queue_length",
		metric.WithDescription("Current number of builds waiting in the queue"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(q.pendingCount()))
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		buildDuration: buildDuration,
		buildsTotal:   buildsTotal,
		queueLength:   queueLength,
	}, nil
}

// RecordBuild records a completed build.
func (m *Metrics) RecordBuild(ctx context.Context, status, runtime string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("status", status),
		attribute.String("runtime", runtime),
	}

	m.buildDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.buildsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}
