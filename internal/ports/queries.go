package ports

import (
	"context"

	"github.com/vshulcz/pgstatsd/internal/domain"
)

// QuerySource is one document mapping metric keys to SQL statements.
type QuerySource interface {
	Name() string
	Load(ctx context.Context) (map[string]string, error)
}

// SourceDiscoverer enumerates the query sources in merge order.
type SourceDiscoverer interface {
	Discover(ctx context.Context) ([]QuerySource, error)
}

// QueryLoader produces a fresh QuerySet from the configured sources.
type QueryLoader interface {
	Load(ctx context.Context) (domain.QuerySet, error)
}
