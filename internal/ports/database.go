package ports

import "context"

// Conn is a borrowed database session able to run one scalar statement at a time.
type Conn interface {
	// QueryScalar returns the first column of the first row, or nil for NULL or no rows.
	QueryScalar(ctx context.Context, query string) (any, error)
}

// ConnectionManager owns the single database session and hands out live references to it.
type ConnectionManager interface {
	Acquire(ctx context.Context) (Conn, error)
	Close() error
}
