package runs

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments for the run subsystem.
type Metrics struct {
	runDuration metric.Float64Histogram
	runsTotal   metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	runDuration, err := meter.Float64Histogram(
		"batchjob_run_duration_seconds",
		metric.WithDescription("Wall-clock duration of runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	runsTotal, err := meter.Int64Counter(
		"batchjob_runs_total",
		metric.WithDescription("Total number of completed runs"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		runDuration: runDuration,
		runsTotal:   runsTotal,
	}, nil
}

// RecordRun records a completed run with its exit code.
func (m *Metrics) RecordRun(ctx context.Context, status string, exitCode int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("status", status),
		attribute.String("exit_code", strconv.Itoa(exitCode)),
	}

	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.runsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}
