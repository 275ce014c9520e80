package observer

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsObserver exports generation events as Prometheus metrics
type MetricsObserver struct {
	started   prometheus.Counter
	completed prometheus.Counter
	failed    *prometheus.CounterVec
	inlined   *prometheus.CounterVec
	duration  prometheus.Histogram
}

// NewMetricsObserver registers the generation metrics with reg
func NewMetricsObserver(reg prometheus.Registerer) *MetricsObserver {
	factory := promauto.With(reg)

	return &MetricsObserver{
		started: factory.NewCounter(prometheus.CounterOpts{
			Name: "flying_image_generations_started_total",
			Help: "Total number of generations sent to the transformer.",
		}),
		completed: factory.NewCounter(prometheus.CounterOpts{
			Name: "flying_image_generations_completed_total",
			Help: "Total number of generations that produced a result.",
		}),
		failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flying_image_generations_failed_total",
			Help: "Total number of failed generations, partitioned by error type.",
		}, []string{"error_type"}),
		inlined: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flying_image_result_inline_total",
			Help: "Remote results converted to data URLs, partitioned by outcome.",
		}, []string{"outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "flying_image_generation_duration_seconds",
			Help:    "Duration of generation attempts.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
	}
}

// OnEvent handles generation events by updating metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event GenerationEvent) {
	switch event.EventType {
	case GenerationStarted:
		o.started.Inc()
	case GenerationCompleted:
		o.completed.Inc()
		o.duration.Observe(event.Duration.Seconds())
	case GenerationFailed:
		errorType := event.ErrorType
		if errorType == "" {
			errorType = "unknown"
		}
		o.failed.WithLabelValues(errorType).Inc()
		o.duration.Observe(event.Duration.Seconds())
	case ResultInlined:
		o.inlined.WithLabelValues("ok").Inc()
	case ResultInlineFailed:
		o.inlined.WithLabelValues("failed").Inc()
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}
