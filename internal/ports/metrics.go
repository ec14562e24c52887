package ports

import (
	"context"

	"github.com/DataDog/datadog-go/statsd"

	"github.com/vshulcz/pgstatsd/internal/domain"
)

// StatsdClient is the subset of the DogStatsD client used for submissions.
type StatsdClient interface {
	Gauge(name string, value float64, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
	Histogram(name string, value float64, tags []string, rate float64) error
	Distribution(name string, value float64, tags []string, rate float64) error
	TimeInMilliseconds(name string, value float64, tags []string, rate float64) error
	Set(name string, value string, tags []string, rate float64) error
	Event(e *statsd.Event) error
	ServiceCheck(sc *statsd.ServiceCheck) error
}

// SampleDispatcher submits query results and pre-classified samples.
type SampleDispatcher interface {
	Submit(key string, value any) (bool, error)
	Emit(s domain.MetricSample) error
}

// SelfSampler reports the daemon's own resource usage.
type SelfSampler interface {
	Sample(ctx context.Context) ([]domain.MetricSample, error)
}
