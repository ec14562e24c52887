// Package postgres owns the single PostgreSQL session the poller runs its queries on.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/vshulcz/pgstatsd/internal/domain"
	"github.com/vshulcz/pgstatsd/internal/misc"
	"github.com/vshulcz/pgstatsd/internal/ports"
)

// DefaultAttempts is the reconnect budget of one Acquire call.
const DefaultAttempts = 6

// Dialer opens a database handle backed by at most one session.
type Dialer func(ctx context.Context) (*sql.DB, error)

// Dial returns a Dialer that opens lib/pq sessions for dsn.
func Dial(dsn string) Dialer {
	return func(_ context.Context) (*sql.DB, error) {
		connector, err := pq.NewConnector(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse dsn: %w", err)
		}
		db := sql.OpenDB(connector)
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return db, nil
	}
}

// Option customizes a Manager.
type Option func(*Manager)

// WithAttempts overrides the reconnect budget.
func WithAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.attempts = n
		}
	}
}

// WithSleep replaces the backoff sleeper.
func WithSleep(fn misc.SleepFunc) Option {
	return func(m *Manager) {
		if fn != nil {
			m.sleep = fn
		}
	}
}

// WithMaxBackoff caps a single backoff delay.
func WithMaxBackoff(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.maxDelay = d
		}
	}
}

// Manager hands out a liveness-checked connection and reconnects with
// exponential backoff. It is not safe for concurrent use.
type Manager struct {
	dial     Dialer
	log      *zap.Logger
	sleep    misc.SleepFunc
	cur      *Conn
	attempts int
	maxDelay time.Duration
}

var _ ports.ConnectionManager = (*Manager)(nil)

// NewManager creates a Manager; no connection is opened until Acquire.
func NewManager(dial Dialer, log *zap.Logger, opts ...Option) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		dial:     dial,
		log:      log,
		sleep:    misc.Sleep,
		attempts: DefaultAttempts,
		maxDelay: misc.MaxBackoff,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Acquire returns the cached connection if it answers a ping, otherwise
// replaces it. After the attempt budget is spent it fails with *domain.ConnectionError.
func (m *Manager) Acquire(ctx context.Context) (ports.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.cur != nil {
		if m.reusable(ctx) {
			return m.cur, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m.discard()
	}

	var fresh *Conn
	op := func(attempt int) error {
		m.log.Info("connecting to database",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", m.attempts))
		c, err := m.connect(ctx)
		if err != nil {
			m.log.Warn("database connection attempt failed",
				zap.Int("attempt", attempt+1),
				zap.Duration("retry_in", m.delay(attempt)),
				zap.Error(err))
			return err
		}
		fresh = c
		return nil
	}
	if err := misc.Retry(ctx, m.attempts, m.delay, m.sleep, op); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.ConnectionError{Attempts: m.attempts, Err: err}
	}
	m.cur = fresh
	m.log.Info("database connected")
	return fresh, nil
}

// Close tears down the current session, if any.
func (m *Manager) Close() error {
	if m.cur == nil {
		return nil
	}
	err := m.cur.close()
	m.cur = nil
	return err
}

func (m *Manager) reusable(ctx context.Context) bool {
	if m.cur.broken {
		m.log.Warn("database connection marked broken, reconnecting")
		return false
	}
	if err := m.cur.probe(ctx); err != nil {
		m.log.Warn("database connection failed liveness probe, reconnecting", zap.Error(err))
		return false
	}
	return true
}

func (m *Manager) delay(attempt int) time.Duration {
	return misc.ExpBackoff(attempt, m.maxDelay)
}

func (m *Manager) connect(ctx context.Context) (*Conn, error) {
	db, err := m.dial(ctx)
	if err != nil {
		return nil, err
	}
	sc, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Conn{db: db, conn: sc}, nil
}

func (m *Manager) discard() {
	if err := m.cur.close(); err != nil {
		m.log.Debug("close discarded connection", zap.Error(err))
	}
	m.cur = nil
}
