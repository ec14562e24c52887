package queries

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/vshulcz/pgstatsd/internal/domain"
	"github.com/vshulcz/pgstatsd/internal/ports"
)

type fakeSource struct {
	name string
	m    map[string]string
	err  error
}

func (f fakeSource) Name() string { return f.name }

func (f fakeSource) Load(context.Context) (map[string]string, error) {
	return f.m, f.err
}

type fakeDiscoverer struct {
	sources []ports.QuerySource
	err     error
}

func (f fakeDiscoverer) Discover(context.Context) ([]ports.QuerySource, error) {
	return f.sources, f.err
}

func TestMerge_LastWriterWins(t *testing.T) {
	srcs := []ports.QuerySource{
		fakeSource{name: "a.yaml", m: map[string]string{
			"db.jobs.gauge":  "SELECT 1",
			"db.users.count": "SELECT 2",
		}},
		fakeSource{name: "b.yaml", m: map[string]string{
			"db.jobs.gauge": "SELECT 10",
		}},
	}
	set, err := Merge(context.Background(), srcs)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("len=%d want 2", set.Len())
	}
	if sql, _ := set.Get("db.jobs.gauge"); sql != "SELECT 10" {
		t.Fatalf("override lost: %q", sql)
	}
	if sql, _ := set.Get("db.users.count"); sql != "SELECT 2" {
		t.Fatalf("earlier entry lost: %q", sql)
	}
}

func TestMerge_Errors(t *testing.T) {
	boom := errors.New("permission denied")
	tests := []struct {
		name   string
		srcs   []ports.QuerySource
		source string
	}{
		{
			name:   "unreadable source",
			srcs:   []ports.QuerySource{fakeSource{name: "a.yaml", err: boom}},
			source: "a.yaml",
		},
		{
			name: "key without kind",
			srcs: []ports.QuerySource{
				fakeSource{name: "ok.yaml", m: map[string]string{"x.gauge": "SELECT 1"}},
				fakeSource{name: "bad.yaml", m: map[string]string{"nokind": "SELECT 1"}},
			},
			source: "bad.yaml",
		},
		{
			name:   "blank sql",
			srcs:   []ports.QuerySource{fakeSource{name: "c.yaml", m: map[string]string{"x.gauge": "  "}}},
			source: "c.yaml",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Merge(context.Background(), tc.srcs)
			var le *domain.LoadError
			if !errors.As(err, &le) {
				t.Fatalf("err=%v want *domain.LoadError", err)
			}
			if le.Source != tc.source {
				t.Fatalf("source=%q want %q", le.Source, tc.source)
			}
		})
	}
}

func TestMerge_NoSources(t *testing.T) {
	set, err := Merge(context.Background(), nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if set.Len() != 0 {
		t.Fatalf("len=%d want 0", set.Len())
	}
}

func TestMerge_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Merge(ctx, []ports.QuerySource{fakeSource{name: "a"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

func TestHasChanged(t *testing.T) {
	base := domain.NewQuerySet(map[string]string{"a.gauge": "SELECT 1", "b.count": "SELECT 2"})
	tests := []struct {
		name string
		next domain.QuerySet
		want bool
	}{
		{"identical", domain.NewQuerySet(base.Map()), false},
		{"sql edited", domain.NewQuerySet(map[string]string{"a.gauge": "SELECT 3", "b.count": "SELECT 2"}), true},
		{"key added", domain.NewQuerySet(map[string]string{"a.gauge": "SELECT 1", "b.count": "SELECT 2", "c.set": "SELECT 4"}), true},
		{"key removed", domain.NewQuerySet(map[string]string{"a.gauge": "SELECT 1"}), true},
		{"emptied", domain.QuerySet{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasChanged(base, tc.next); got != tc.want {
				t.Fatalf("HasChanged=%v want %v", got, tc.want)
			}
		})
	}
}

func TestDiff(t *testing.T) {
	old := domain.NewQuerySet(map[string]string{
		"db.a.gauge": "SELECT 1",
		"db.b.count": "SELECT 2",
		"db.c.set":   "SELECT 3",
	})
	cur := domain.NewQuerySet(map[string]string{
		"db.a.gauge":     "SELECT 1",
		"db.b.count":     "SELECT 20",
		"db.d.histogram": "SELECT 4",
		"db.e.gauge":     "SELECT 5",
	})

	d := Diff(old, cur)
	if !slices.Equal(d.Added, []string{"db.d.histogram", "db.e.gauge"}) {
		t.Fatalf("added=%v", d.Added)
	}
	if !slices.Equal(d.Removed, []string{"db.c.set"}) {
		t.Fatalf("removed=%v", d.Removed)
	}
	if !slices.Equal(d.Modified, []string{"db.b.count"}) {
		t.Fatalf("modified=%v", d.Modified)
	}
	if got := d.String(); got != "2 added, 1 removed, 1 modified" {
		t.Fatalf("String()=%q", got)
	}
	if got := Diff(old, old); got.String() != "0 added, 0 removed, 0 modified" {
		t.Fatalf("self diff=%v", got)
	}
}

func TestLoader_Load(t *testing.T) {
	disc := fakeDiscoverer{sources: []ports.QuerySource{
		fakeSource{name: "a.yaml", m: map[string]string{"db.size.gauge": "SELECT 1"}},
	}}
	set, err := NewLoader(disc, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if set.Len() != 1 {
		t.Fatalf("len=%d want 1", set.Len())
	}
}

func TestLoader_DiscoveryFailure(t *testing.T) {
	disc := fakeDiscoverer{err: errors.New("no such directory")}
	_, err := NewLoader(disc, nil).Load(context.Background())
	var le *domain.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("err=%v want *domain.LoadError", err)
	}
}
