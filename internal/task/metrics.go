package task

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/phrazzld/scry-studio/internal/task"

// metrics records the task lifecycle.
type metrics struct {
	started   metric.Int64Counter
	finished  metric.Int64Counter
	running   metric.Int64UpDownCounter
	queueWait metric.Float64Histogram
	duration  metric.Float64Histogram
}

func newMetrics(provider metric.MeterProvider) (*metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(instrumentationName)

	m := &metrics{}
	var err error

	if m.started, err = meter.Int64Counter("scry.tasks.started",
		metric.WithDescription("Number of generation tasks started"),
		metric.WithUnit("{task}")); err != nil {
		return nil, fmt.Errorf("failed to create tasks started counter: %w", err)
	}
	if m.finished, err = meter.Int64Counter("scry.tasks.finished",
		metric.WithDescription("Number of generation tasks finished, by outcome"),
		metric.WithUnit("{task}")); err != nil {
		return nil, fmt.Errorf("failed to create tasks finished counter: %w", err)
	}
	if m.running, err = meter.Int64UpDownCounter("scry.tasks.running",
		metric.WithDescription("Number of generation tasks holding a concurrency slot"),
		metric.WithUnit("{task}")); err != nil {
		return nil, fmt.Errorf("failed to create running tasks counter: %w", err)
	}
	if m.queueWait, err = meter.Float64Histogram("scry.tasks.queue_wait",
		metric.WithDescription("Time a task waited for a concurrency slot"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create queue wait histogram: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("scry.tasks.duration",
		metric.WithDescription("Time from task start to its terminal state"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create task duration histogram: %w", err)
	}

	return m, nil
}

func taskAttributes(t *GenerationTask) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("task_type", string(t.Type)),
		attribute.String("output_kind", string(t.OutputKind)),
	}
}

func (m *metrics) taskStarted(ctx context.Context, t *GenerationTask) {
	m.started.Add(ctx, 1, metric.WithAttributes(taskAttributes(t)...))
}

func (m *metrics) slotAcquired(ctx context.Context, t *GenerationTask, waited time.Duration) {
	attrs := metric.WithAttributes(taskAttributes(t)...)
	m.queueWait.Record(ctx, waited.Seconds(), attrs)
	m.running.Add(ctx, 1, attrs)
}

func (m *metrics) slotReleased(ctx context.Context, t *GenerationTask) {
	m.running.Add(ctx, -1, metric.WithAttributes(taskAttributes(t)...))
}

func (m *metrics) taskFinished(ctx context.Context, t *GenerationTask, kind OutcomeKind) {
	attrs := metric.WithAttributes(append(taskAttributes(t),
		attribute.String("outcome", kind.String()))...)
	m.finished.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(t.CreatedAt).Seconds(), attrs)
}
