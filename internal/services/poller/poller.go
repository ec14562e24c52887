// Package poller runs the query cycle: run every query, dispatch every result,
// wait out the interval, and pick up query file changes along the way.
package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vshulcz/pgstatsd/internal/domain"
	"github.com/vshulcz/pgstatsd/internal/misc"
	"github.com/vshulcz/pgstatsd/internal/ports"
	"github.com/vshulcz/pgstatsd/internal/services/queries"
	"github.com/vshulcz/pgstatsd/pkg/observer"
)

const (
	DefaultInterval   = 60 * time.Second
	DefaultCheckEvery = 10
	// DefaultOverhead is shaved off every pause to absorb scheduling delay.
	DefaultOverhead = 10 * time.Millisecond
)

// State is the loop's position in its cycle.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateAwaitingReload
	StateTerminated
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StatePolling:        "polling",
	StateAwaitingReload: "awaiting_reload",
	StateTerminated:     "terminated",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Option customizes a Loop.
type Option func(*Loop)

func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithCheckEvery sets how many iterations pass between query reload checks.
func WithCheckEvery(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.checkEvery = uint64(n)
		}
	}
}

func WithOverhead(d time.Duration) Option {
	return func(l *Loop) {
		if d >= 0 {
			l.overhead = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

func WithSleep(fn misc.SleepFunc) Option {
	return func(l *Loop) {
		if fn != nil {
			l.sleep = fn
		}
	}
}

func WithTelemetry(t *Telemetry) Option {
	return func(l *Loop) { l.tel = t }
}

// WithSelfSampler emits the daemon's own resource usage after each cycle.
func WithSelfSampler(s ports.SelfSampler) Option {
	return func(l *Loop) { l.self = s }
}

// ReloadEvent describes a query set swap picked up by a reload check.
type ReloadEvent struct {
	Previous  domain.QuerySet
	Current   domain.QuerySet
	Iteration uint64
}

// WithReloadPublisher announces every applied query set change.
func WithReloadPublisher(p observer.Publisher[ReloadEvent]) Option {
	return func(l *Loop) { l.reloads = p }
}

// Loop is the single-goroutine polling loop. Its accessors are safe to call
// from other goroutines while Run is active.
type Loop struct {
	conns   ports.ConnectionManager
	loader  ports.QueryLoader
	disp    ports.SampleDispatcher
	self    ports.SelfSampler
	reloads observer.Publisher[ReloadEvent]
	log     *zap.Logger
	tel     *Telemetry
	now     func() time.Time
	sleep   misc.SleepFunc

	queries   atomic.Pointer[domain.QuerySet]
	iteration atomic.Uint64
	lastCycle atomic.Int64
	state     atomic.Int32

	interval   time.Duration
	overhead   time.Duration
	checkEvery uint64
}

// New builds a Loop that starts with the given query set.
func New(
	initial domain.QuerySet,
	conns ports.ConnectionManager,
	loader ports.QueryLoader,
	disp ports.SampleDispatcher,
	log *zap.Logger,
	opts ...Option,
) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Loop{
		conns:      conns,
		loader:     loader,
		disp:       disp,
		log:        log,
		now:        time.Now,
		sleep:      misc.Sleep,
		interval:   DefaultInterval,
		overhead:   DefaultOverhead,
		checkEvery: DefaultCheckEvery,
	}
	for _, o := range opts {
		o(l)
	}
	l.queries.Store(&initial)
	l.tel.setSize(initial.Len())
	return l
}

// Run polls until ctx is canceled, which is a clean stop and returns nil,
// or until a connection or transport failure, which is returned.
func (l *Loop) Run(ctx context.Context) error {
	defer l.state.Store(int32(StateTerminated))
	l.announce(l.Queries())

	for {
		if ctx.Err() != nil {
			l.log.Info("polling loop stopped")
			return nil
		}
		start := l.now()
		if err := l.RunOnce(ctx); err != nil {
			if ctx.Err() != nil && isContextErr(err) {
				l.log.Info("polling loop stopped")
				return nil
			}
			l.log.Error("polling loop terminated", zap.Error(err))
			return err
		}
		if err := l.pause(ctx, l.now().Sub(start)); err != nil {
			l.log.Info("polling loop stopped")
			return nil
		}
	}
}

// RunOnce performs a single iteration without the trailing pause.
func (l *Loop) RunOnce(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer l.state.Store(int32(StateIdle))

	n := l.iteration.Add(1)
	set := l.Queries()
	if n%l.checkEvery == 0 {
		l.reload(ctx, set)
	}

	l.state.Store(int32(StatePolling))
	l.log.Info("polling cycle started", zap.Uint64("iteration", n), zap.Int("queries", set.Len()))
	start := l.now()
	conn, err := l.conns.Acquire(ctx)
	if err != nil {
		return err
	}
	for _, q := range set.Queries() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.poll(ctx, conn, q); err != nil {
			return err
		}
	}

	end := l.now()
	l.tel.cycle(end.Sub(start))
	l.lastCycle.Store(end.UnixNano())
	l.emitSelf(ctx)
	return nil
}

// State reports what the loop is doing right now.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Queries returns the query set the next iteration will run.
func (l *Loop) Queries() domain.QuerySet {
	return *l.queries.Load()
}

// Iterations counts started iterations.
func (l *Loop) Iterations() uint64 {
	return l.iteration.Load()
}

// LastCycle is the completion time of the last full cycle, zero before the first.
func (l *Loop) LastCycle() time.Time {
	ns := l.lastCycle.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (l *Loop) poll(ctx context.Context, conn ports.Conn, q domain.Query) error {
	v, err := conn.QueryScalar(ctx, q.SQL)
	if err != nil {
		if ctx.Err() != nil && isContextErr(err) {
			return err
		}
		if domain.IsFatal(err) {
			l.log.Error("query failed, connection lost",
				zap.String("key", q.Key),
				zap.Error(err))
			return err
		}
		l.tel.query(OutcomeStatementError)
		l.log.Warn("query failed",
			zap.String("key", q.Key),
			zap.String("sql", q.SQL),
			zap.Error(err))
		return nil
	}

	ok, werr := l.disp.Submit(q.Key, v)
	switch {
	case werr != nil:
		l.tel.query(OutcomeDispatchWarn)
		l.log.Warn("sample not submitted", zap.String("key", q.Key), zap.Error(werr))
	case !ok:
		l.tel.query(OutcomeSkipped)
		l.log.Debug("query returned no value", zap.String("key", q.Key))
	default:
		l.tel.query(OutcomeSubmitted)
		l.log.Debug("sample submitted", zap.String("key", q.Key), zap.Any("value", v))
	}
	return nil
}

func (l *Loop) reload(ctx context.Context, cur domain.QuerySet) {
	l.state.Store(int32(StateAwaitingReload))
	next, err := l.loader.Load(ctx)
	if err != nil {
		l.tel.reload(ReloadFailed)
		l.log.Warn("query reload failed, keeping current set", zap.Error(err))
		return
	}
	if !queries.HasChanged(cur, next) {
		l.tel.reload(ReloadUnchanged)
		return
	}
	if next.Len() == 0 {
		l.log.Warn("reloaded query set is empty")
	}
	l.queries.Store(&next)
	l.tel.reload(ReloadChanged)
	l.tel.setSize(next.Len())
	l.log.Info("query set changed, applying from next iteration")
	l.announce(next)
	if l.reloads != nil {
		l.reloads.Publish(ctx, ReloadEvent{Previous: cur, Current: next, Iteration: l.iteration.Load()})
	}
}

func (l *Loop) announce(set domain.QuerySet) {
	l.log.Info("active queries", zap.Int("count", set.Len()))
	for _, q := range set.Queries() {
		l.log.Info("query", zap.String("key", q.Key), zap.String("sql", q.SQL))
	}
}

func (l *Loop) pause(ctx context.Context, elapsed time.Duration) error {
	if elapsed >= l.interval {
		l.log.Warn("cycle took longer than the interval",
			zap.Duration("elapsed", elapsed),
			zap.Duration("interval", l.interval))
		return nil
	}
	d := l.interval - elapsed - l.overhead
	if d <= 0 {
		return nil
	}
	l.log.Info("waiting for next cycle", zap.Duration("wait", d))
	return l.sleep(ctx, d)
}

func (l *Loop) emitSelf(ctx context.Context) {
	if l.self == nil {
		return
	}
	samples, err := l.self.Sample(ctx)
	if err != nil {
		l.log.Debug("self metrics incomplete", zap.Error(err))
	}
	for _, s := range samples {
		if err := l.disp.Emit(s); err != nil {
			l.log.Warn("self metric not submitted", zap.String("name", s.Name), zap.Error(err))
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
