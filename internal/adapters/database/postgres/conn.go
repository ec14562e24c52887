package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vshulcz/pgstatsd/internal/domain"
	"github.com/vshulcz/pgstatsd/internal/ports"
)

var errTooManyColumns = errors.New("query must return a single column")

// Conn is one database session. Every statement runs in its own transaction
// that is rolled back afterwards, so a failed statement cannot poison the next.
type Conn struct {
	db     *sql.DB
	conn   *sql.Conn
	broken bool
}

var _ ports.Conn = (*Conn)(nil)

// QueryScalar runs query and returns the first column of the first row.
// NULL and an empty result both yield nil. Errors are *domain.StatementError
// or *domain.TransportError; context errors are returned as is.
func (c *Conn) QueryScalar(ctx context.Context, query string) (v any, err error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, c.classify(query, err)
	}
	defer func() {
		rbErr := tx.Rollback()
		if rbErr == nil || errors.Is(rbErr, sql.ErrTxDone) || err != nil {
			return
		}
		v, err = nil, c.classify(query, fmt.Errorf("rollback: %w", rbErr))
	}()

	v, err = scanScalar(ctx, tx, query)
	if err != nil {
		return nil, c.classify(query, err)
	}
	return v, nil
}

func scanScalar(ctx context.Context, tx *sql.Tx, query string) (any, error) {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) > 1 {
		return nil, fmt.Errorf("%w, got %d", errTooManyColumns, len(cols))
	}
	if !rows.Next() || len(cols) == 0 {
		return nil, rows.Err()
	}
	var v any
	if err := rows.Scan(&v); err != nil {
		return nil, err
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	return v, rows.Err()
}

func (c *Conn) classify(query string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if IsTransportError(err) {
		c.broken = true
		return &domain.TransportError{SQL: query, Err: err}
	}
	return &domain.StatementError{SQL: query, Err: err}
}

func (c *Conn) probe(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

func (c *Conn) close() error {
	return errors.Join(c.conn.Close(), c.db.Close())
}
