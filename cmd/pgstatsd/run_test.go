package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/DataDog/datadog-go/statsd"
	"go.uber.org/zap"

	"github.com/vshulcz/pgstatsd/internal/adapters/database/postgres"
	"github.com/vshulcz/pgstatsd/internal/config"
	"github.com/vshulcz/pgstatsd/internal/domain"
	"github.com/vshulcz/pgstatsd/internal/services/dispatch"
	"github.com/vshulcz/pgstatsd/internal/services/poller"
)

type fakeSink struct {
	gauges map[string]float64
	events []*statsd.Event
	closed bool
}

func newFakeSink() *fakeSink { return &fakeSink{gauges: map[string]float64{}} }

func (f *fakeSink) Gauge(name string, v float64, _ []string, _ float64) error {
	f.gauges[name] = v
	return nil
}
func (f *fakeSink) Count(string, int64, []string, float64) error                { return nil }
func (f *fakeSink) Histogram(string, float64, []string, float64) error          { return nil }
func (f *fakeSink) Distribution(string, float64, []string, float64) error       { return nil }
func (f *fakeSink) TimeInMilliseconds(string, float64, []string, float64) error { return nil }
func (f *fakeSink) Set(string, string, []string, float64) error                 { return nil }
func (f *fakeSink) Event(e *statsd.Event) error {
	f.events = append(f.events, e)
	return nil
}
func (f *fakeSink) ServiceCheck(*statsd.ServiceCheck) error { return nil }
func (f *fakeSink) Flush() error                            { return nil }
func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func writeQueries(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "queries.yaml"), []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return dir
}

func testConfig(dir string) config.DaemonConfig {
	return config.DaemonConfig{
		DBHost:       "db",
		DBPort:       5432,
		DBName:       "app",
		BackendHost:  "127.0.0.1",
		BackendPort:  8125,
		PollInterval: time.Minute,
		CheckEvery:   10,
		QueriesDir:   dir,
	}
}

func wiringWith(db *sql.DB, sink *fakeSink, stopAfterCycle context.CancelFunc) wiring {
	return wiring{
		dial: func(string) postgres.Dialer {
			return func(context.Context) (*sql.DB, error) { return db, nil }
		},
		statsd: func(config.DaemonConfig) (statsdSink, error) { return sink, nil },
		managerOpts: []postgres.Option{
			postgres.WithSleep(func(context.Context, time.Duration) error { return nil }),
		},
		loopOpts: []poller.Option{
			poller.WithSleep(func(ctx context.Context, _ time.Duration) error {
				stopAfterCycle()
				return ctx.Err()
			}),
		},
	}
}

func TestRun_OneCycleThenCleanShutdown(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM jobs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectRollback()
	mock.ExpectClose()

	dir := writeQueries(t, "db.jobs.pending.gauge: SELECT count(*) FROM jobs\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := newFakeSink()

	if err := run(ctx, testConfig(dir), zap.NewNop(), wiringWith(db, sink, cancel)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if v, ok := sink.gauges["db.jobs.pending"]; !ok || v != 0 {
		t.Fatalf("zero gauge not submitted: %v", sink.gauges)
	}
	if !sink.closed {
		t.Fatal("statsd client not closed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRun_EmptyQueryDirIsFatal(t *testing.T) {
	dir := t.TempDir()
	err := run(context.Background(), testConfig(dir), zap.NewNop(), wiringWith(nil, newFakeSink(), func() {}))
	if !errors.Is(err, domain.ErrEmptyQuerySet) {
		t.Fatalf("err=%v want ErrEmptyQuerySet", err)
	}
}

func TestRun_InvalidQueryFileIsFatal(t *testing.T) {
	dir := writeQueries(t, "nokind: SELECT 1\n")
	err := run(context.Background(), testConfig(dir), zap.NewNop(), wiringWith(nil, newFakeSink(), func() {}))
	var le *domain.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("err=%v want *domain.LoadError", err)
	}
}

func TestRun_UnreachableDatabaseIsFatal(t *testing.T) {
	dir := writeQueries(t, "db.up.gauge: SELECT 1\n")
	w := wiringWith(nil, newFakeSink(), func() {})
	w.dial = func(string) postgres.Dialer {
		return func(context.Context) (*sql.DB, error) { return nil, errors.New("connection refused") }
	}
	w.managerOpts = append(w.managerOpts, postgres.WithAttempts(2))

	err := run(context.Background(), testConfig(dir), zap.NewNop(), w)
	var ce *domain.ConnectionError
	if !errors.As(err, &ce) || ce.Attempts != 2 {
		t.Fatalf("err=%v want *domain.ConnectionError after 2 attempts", err)
	}
}

func TestRun_StatusServerBadAddress(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	dir := writeQueries(t, "db.up.gauge: SELECT 1\n")
	cfg := testConfig(dir)
	cfg.StatusAddr = "256.0.0.1:not-a-port"

	err = run(context.Background(), cfg, zap.NewNop(), wiringWith(db, newFakeSink(), func() {}))
	if err == nil {
		t.Fatal("expected status server error")
	}
}

func TestAnnounceReload(t *testing.T) {
	sink := newFakeSink()
	ev := poller.ReloadEvent{
		Previous: domain.NewQuerySet(map[string]string{"db.a.gauge": "SELECT 1"}),
		Current:  domain.NewQuerySet(map[string]string{"db.a.gauge": "SELECT 2", "db.b.count": "SELECT 3"}),
	}

	if err := announceReload(dispatch.New(sink)).Notify(context.Background(), ev); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("events=%d want 1", len(sink.events))
	}
	got := sink.events[0]
	if got.Title != reloadEventName {
		t.Fatalf("title=%q", got.Title)
	}
	if want := "2 queries active: 1 added, 0 removed, 1 modified"; got.Text != want {
		t.Fatalf("text=%q want %q", got.Text, want)
	}
}
