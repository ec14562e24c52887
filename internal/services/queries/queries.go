// Package queries builds the active QuerySet out of the discovered sources.
package queries

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vshulcz/pgstatsd/internal/domain"
	"github.com/vshulcz/pgstatsd/internal/ports"
)

// Merge loads sources in order; a later source overrides an earlier one on
// the same key. Any unreadable source or invalid entry fails the whole merge
// with *domain.LoadError.
func Merge(ctx context.Context, sources []ports.QuerySource) (domain.QuerySet, error) {
	merged := make(map[string]string)
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return domain.QuerySet{}, err
		}
		m, err := src.Load(ctx)
		if err != nil {
			return domain.QuerySet{}, &domain.LoadError{Source: src.Name(), Err: err}
		}
		for key, sql := range m {
			q := domain.Query{Key: key, SQL: sql}
			if err := q.Validate(); err != nil {
				return domain.QuerySet{}, &domain.LoadError{
					Source: src.Name(),
					Err:    fmt.Errorf("key %q: %w", key, err),
				}
			}
			merged[key] = sql
		}
	}
	return domain.NewQuerySet(merged), nil
}

// HasChanged reports whether any (key, sql) pair differs between the sets.
func HasChanged(old, cur domain.QuerySet) bool {
	return !old.Equal(cur)
}

// Delta lists the keys that differ between two query sets, each sorted.
type Delta struct {
	Added    []string
	Removed  []string
	Modified []string
}

// Diff compares old against cur.
func Diff(old, cur domain.QuerySet) Delta {
	var d Delta
	for _, q := range cur.Queries() {
		prev, ok := old.Get(q.Key)
		switch {
		case !ok:
			d.Added = append(d.Added, q.Key)
		case prev != q.SQL:
			d.Modified = append(d.Modified, q.Key)
		}
	}
	for _, k := range old.Keys() {
		if _, ok := cur.Get(k); !ok {
			d.Removed = append(d.Removed, k)
		}
	}
	return d
}

// String renders the delta as a one-line summary.
func (d Delta) String() string {
	return fmt.Sprintf("%d added, %d removed, %d modified", len(d.Added), len(d.Removed), len(d.Modified))
}

// Loader re-reads the query definitions on demand.
type Loader struct {
	disc ports.SourceDiscoverer
	log  *zap.Logger
}

func NewLoader(disc ports.SourceDiscoverer, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{disc: disc, log: log}
}

// Load discovers the sources and merges them into a fresh QuerySet.
func (l *Loader) Load(ctx context.Context) (domain.QuerySet, error) {
	sources, err := l.disc.Discover(ctx)
	if err != nil {
		return domain.QuerySet{}, &domain.LoadError{Source: "discovery", Err: err}
	}
	set, err := Merge(ctx, sources)
	if err != nil {
		return domain.QuerySet{}, err
	}
	l.log.Debug("queries loaded",
		zap.Int("sources", len(sources)),
		zap.Int("queries", set.Len()))
	return set, nil
}
