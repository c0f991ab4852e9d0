package pylint

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"pylintview/internal/model"
)

var (
	tracer = otel.Tracer("pylintview.pylint")
	meter  = otel.Meter("pylintview.pylint")
)

var (
	runLatency    metric.Float64Histogram
	runTotal      metric.Int64Counter
	messagesFound metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments once.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"pylint_run_duration_seconds",
			metric.WithDescription("Duration of pylint runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"pylint_runs_total",
			metric.WithDescription("Total number of pylint runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		messagesFound, err = meter.Int64Counter(
			"pylint_messages_total",
			metric.WithDescription("Messages reported by pylint, by category"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startRunSpan(ctx context.Context, filePath string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Driver.Run",
		trace.WithAttributes(attribute.String("pylint.file_path", filePath)),
	)
}

func setRunSpanResult(span trace.Span, r model.AnalysisResult) {
	span.SetAttributes(
		attribute.String("pylint.exit_status", r.ExitStatus.String()),
		attribute.Int("pylint.message_count", r.Total()),
		attribute.Bool("pylint.process_error", r.Failed()),
	)
}

// recordRunMetrics records one run. r is nil when the process never started.
func recordRunMetrics(ctx context.Context, d time.Duration, r *model.AnalysisResult, started bool) {
	if err := initMetrics(); err != nil {
		return
	}

	outcome := "start_failed"
	if started && r != nil {
		switch {
		case r.Failed():
			outcome = "no_output"
		case r.ExitStatus == model.ExitCrash:
			outcome = "crash"
		default:
			outcome = "ok"
		}
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	runLatency.Record(ctx, d.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)

	if r == nil {
		return
	}
	for _, c := range model.Categories {
		messagesFound.Add(ctx, int64(r.Count(c)), metric.WithAttributes(
			attribute.String("category", c.Name()),
		))
	}
}
