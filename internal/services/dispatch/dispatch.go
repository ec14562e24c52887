// Package dispatch turns a query result into one DogStatsD submission.
package dispatch

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/DataDog/datadog-go/statsd"

	"github.com/vshulcz/pgstatsd/internal/domain"
	"github.com/vshulcz/pgstatsd/internal/ports"
)

var (
	errNotNumeric  = errors.New("value is not numeric")
	errNotFinite   = errors.New("value is not finite")
	errCheckStatus = errors.New("service check status must be 0, 1, 2 or 3")
)

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithTags attaches tags to every sample on top of the client's global tags.
func WithTags(tags ...string) Option {
	return func(d *Dispatcher) {
		d.tags = append(d.tags, tags...)
	}
}

// WithRate sets the sample rate passed to the client.
func WithRate(rate float64) Option {
	return func(d *Dispatcher) {
		if rate > 0 && rate <= 1 {
			d.rate = rate
		}
	}
}

// Dispatcher routes samples to the client call matching their kind.
// Problems come back as *domain.DispatchWarning, never as a panic.
type Dispatcher struct {
	sink ports.StatsdClient
	tags []string
	rate float64
}

func New(sink ports.StatsdClient, opts ...Option) *Dispatcher {
	d := &Dispatcher{sink: sink, rate: 1}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Submit sends value under the metric named by key. A nil value is skipped
// and reports false; zero is a value like any other.
func (d *Dispatcher) Submit(key string, value any) (bool, error) {
	if value == nil {
		return false, nil
	}
	name, suffix := domain.SplitKey(key)
	kind := domain.ParseKind(suffix)
	if kind == domain.KindUnsupported {
		return false, &domain.DispatchWarning{
			Key:    key,
			Reason: fmt.Sprintf("unsupported metric kind %q", suffix),
		}
	}
	if err := d.send(key, domain.MetricSample{Name: name, Kind: kind, Value: value}); err != nil {
		return false, err
	}
	return true, nil
}

// Emit sends an already classified sample.
func (d *Dispatcher) Emit(s domain.MetricSample) error {
	if s.Value == nil {
		return nil
	}
	return d.send(s.Name, s)
}

func (d *Dispatcher) send(key string, s domain.MetricSample) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.DispatchWarning{Key: key, Reason: "client panicked", Err: fmt.Errorf("%v", r)}
		}
	}()

	reason, err := d.call(s)
	if err != nil {
		return &domain.DispatchWarning{Key: key, Reason: reason, Err: err}
	}
	return nil
}

func (d *Dispatcher) call(s domain.MetricSample) (string, error) {
	switch s.Kind {
	case domain.KindSet:
		return backend(d.sink.Set(s.Name, text(s.Value), d.tags, d.rate))
	case domain.KindEvent:
		ev := statsd.NewEvent(s.Name, text(s.Value))
		ev.Tags = d.tags
		return backend(d.sink.Event(ev))
	case domain.KindServiceCheck:
		st, err := checkStatus(s.Value)
		if err != nil {
			return "invalid service check status", err
		}
		sc := statsd.NewServiceCheck(s.Name, st)
		sc.Tags = d.tags
		return backend(d.sink.ServiceCheck(sc))
	case domain.KindUnsupported:
		return "unsupported metric kind", fmt.Errorf("kind %d", s.Kind)
	}

	f, err := toFloat(s.Value)
	if err != nil {
		return fmt.Sprintf("cannot submit %T as %s", s.Value, s.Kind), err
	}
	switch s.Kind {
	case domain.KindGauge:
		return backend(d.sink.Gauge(s.Name, f, d.tags, d.rate))
	case domain.KindCount:
		return backend(d.sink.Count(s.Name, int64(math.Round(f)), d.tags, d.rate))
	case domain.KindDecrement:
		return backend(d.sink.Count(s.Name, -int64(math.Round(f)), d.tags, d.rate))
	case domain.KindHistogram:
		return backend(d.sink.Histogram(s.Name, f, d.tags, d.rate))
	case domain.KindDistribution:
		return backend(d.sink.Distribution(s.Name, f, d.tags, d.rate))
	case domain.KindTiming:
		return backend(d.sink.TimeInMilliseconds(s.Name, f, d.tags, d.rate))
	default:
		return "unsupported metric kind", fmt.Errorf("kind %d", s.Kind)
	}
}

func backend(err error) (string, error) {
	if err != nil {
		return "backend rejected sample", err
	}
	return "", nil
}

func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	case time.Duration:
		f = float64(x) / float64(time.Millisecond)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, errNotNumeric
		}
		f = p
	default:
		return 0, errNotNumeric
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}

func checkStatus(v any) (statsd.ServiceCheckStatus, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f < 0 || f > 3 {
		return 0, errCheckStatus
	}
	return statsd.ServiceCheckStatus(f), nil
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
