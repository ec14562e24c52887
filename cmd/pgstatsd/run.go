package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/vshulcz/pgstatsd/internal/adapters/collector/runtime"
	"github.com/vshulcz/pgstatsd/internal/adapters/database/postgres"
	"github.com/vshulcz/pgstatsd/internal/adapters/http/ginserver"
	"github.com/vshulcz/pgstatsd/internal/adapters/http/ginserver/middlewares"
	"github.com/vshulcz/pgstatsd/internal/adapters/publisher/dogstatsd"
	"github.com/vshulcz/pgstatsd/internal/adapters/source/yamlfile"
	"github.com/vshulcz/pgstatsd/internal/config"
	"github.com/vshulcz/pgstatsd/internal/domain"
	"github.com/vshulcz/pgstatsd/internal/ports"
	"github.com/vshulcz/pgstatsd/internal/services/dispatch"
	"github.com/vshulcz/pgstatsd/internal/services/poller"
	"github.com/vshulcz/pgstatsd/internal/services/queries"
	"github.com/vshulcz/pgstatsd/pkg/observer"
)

const (
	selfMetricsPrefix = "pgstatsd.self"
	reloadEventName   = "pgstatsd.queries.reloaded"
)

type statsdSink interface {
	ports.StatsdClient
	Flush() error
	Close() error
}

// wiring holds the constructors run swaps out in tests.
type wiring struct {
	dial        func(dsn string) postgres.Dialer
	statsd      func(cfg config.DaemonConfig) (statsdSink, error)
	managerOpts []postgres.Option
	loopOpts    []poller.Option
}

func defaultWiring() wiring {
	return wiring{
		dial: postgres.Dial,
		statsd: func(cfg config.DaemonConfig) (statsdSink, error) {
			return dogstatsd.New(cfg.BackendHost, cfg.BackendPort, cfg.Namespace, cfg.Tags)
		},
	}
}

func run(ctx context.Context, cfg config.DaemonConfig, log *zap.Logger, w wiring) error {
	log.Info("pgstatsd starting",
		zap.String("database", cfg.RedactedDSN()),
		zap.String("statsd", fmt.Sprintf("%s:%d", cfg.BackendHost, cfg.BackendPort)),
		zap.Duration("interval", cfg.PollInterval),
		zap.Int("check_every", cfg.CheckEvery),
		zap.String("queries_dir", cfg.QueriesDir))

	loader := queries.NewLoader(yamlfile.NewDir(cfg.QueriesDir), log.Named("queries"))
	set, err := loader.Load(ctx)
	if err != nil {
		return err
	}
	if set.Len() == 0 {
		return fmt.Errorf("%w in %s", domain.ErrEmptyQuerySet, cfg.QueriesDir)
	}

	sink, err := w.statsd(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Flush(); err != nil {
			log.Debug("statsd flush", zap.Error(err))
		}
		if err := sink.Close(); err != nil {
			log.Debug("statsd close", zap.Error(err))
		}
	}()

	conns := postgres.NewManager(w.dial(cfg.DSN()), log.Named("db"), w.managerOpts...)
	defer func() {
		if err := conns.Close(); err != nil {
			log.Debug("database close", zap.Error(err))
		}
	}()
	if _, err := conns.Acquire(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	opts := []poller.Option{
		poller.WithInterval(cfg.PollInterval),
		poller.WithCheckEvery(cfg.CheckEvery),
		poller.WithTelemetry(poller.NewTelemetry(reg)),
	}
	if cfg.SelfMetrics {
		opts = append(opts, poller.WithSelfSampler(runtime.New(selfMetricsPrefix)))
	}
	disp := dispatch.New(sink)
	reloads := observer.NewSubject[poller.ReloadEvent](announceReload(disp))
	reloads.OnError(func(err error) { log.Warn("reload event not sent", zap.Error(err)) })
	opts = append(opts, poller.WithReloadPublisher(reloads))
	opts = append(opts, w.loopOpts...)
	loop := poller.New(set, conns, loader, disp, log.Named("poller"), opts...)

	if cfg.StatusAddr != "" {
		stop, err := serveStatus(ctx, cfg.StatusAddr, loop, reg, log.Named("http"))
		if err != nil {
			return err
		}
		defer stop()
	}

	return loop.Run(ctx)
}

// announceReload turns an applied query set change into a DogStatsD event.
func announceReload(disp *dispatch.Dispatcher) observer.Func[poller.ReloadEvent] {
	return func(_ context.Context, ev poller.ReloadEvent) error {
		return disp.Emit(domain.MetricSample{
			Name:  reloadEventName,
			Kind:  domain.KindEvent,
			Value: fmt.Sprintf("%d queries active: %s", ev.Current.Len(), queries.Diff(ev.Previous, ev.Current)),
		})
	}
}

func serveStatus(ctx context.Context, addr string, loop *poller.Loop, reg *prometheus.Registry, log *zap.Logger) (func(), error) {
	gin.SetMode(gin.ReleaseMode)
	router := ginserver.NewRouter(ginserver.NewHandler(loop), reg, middlewares.ZapLogger(log))

	sctx, cancel := context.WithCancel(ctx)
	done, err := ginserver.NewServer(addr, router, log).Start(sctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("status server: %w", err)
	}
	return func() {
		cancel()
		for err := range done {
			log.Warn("status server failed", zap.Error(err))
		}
	}, nil
}
