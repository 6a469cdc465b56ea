package evaluator

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/daviddao/pairsum/pkg/model"
)

var meter = otel.Meter("pairsum.evaluator")

var (
	evaluationsTotal     metric.Int64Counter
	fallbacksTotal       metric.Int64Counter
	inconsistenciesTotal metric.Int64Counter
	updateDuration       metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments on first use.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		evaluationsTotal, err = meter.Int64Counter(
			"pairsum_evaluations_total",
			metric.WithDescription("Completed UpdateValue calls by requested and used kind"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fallbacksTotal, err = meter.Int64Counter(
			"pairsum_fallbacks_total",
			metric.WithDescription("Optimized updates that fell back to a full recompute"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		inconsistenciesTotal, err = meter.Int64Counter(
			"pairsum_inconsistencies_total",
			metric.WithDescription("Divergences detected by the check evaluator"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		updateDuration, err = meter.Float64Histogram(
			"pairsum_update_duration_seconds",
			metric.WithDescription("Duration of UpdateValue calls"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordEvaluation(ctx context.Context, requested, used model.Kind, d time.Duration, failed bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("requested", requested.String()),
		attribute.String("used", used.String()),
		attribute.Bool("failed", failed),
	)
	evaluationsTotal.Add(ctx, 1, attrs)
	updateDuration.Record(ctx, d.Seconds(), attrs)
}

func recordFallback(ctx context.Context, reason string) {
	if err := initMetrics(); err != nil {
		return
	}
	fallbacksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func recordInconsistency(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	inconsistenciesTotal.Add(ctx, 1)
}
