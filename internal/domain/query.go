package domain

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

// KeyDelimiter separates namespace segments of a metric key.
const KeyDelimiter = "."

// Query is a single named SQL statement whose scalar result becomes one sample.
type Query struct {
	Key string
	SQL string
}

// Validate checks the key shape and that the statement is not blank.
func (q Query) Validate() error {
	key := strings.TrimSpace(q.Key)
	if key == "" {
		return errors.New("empty metric key")
	}
	i := strings.LastIndex(key, KeyDelimiter)
	if i <= 0 || i == len(key)-1 {
		return errors.New("metric key must look like <name>.<kind>")
	}
	if strings.TrimSpace(q.SQL) == "" {
		return errors.New("empty sql")
	}
	return nil
}

// QuerySet is an immutable key -> sql mapping. The zero value is an empty set.
type QuerySet struct {
	byKey map[string]string
	keys  []string
}

// NewQuerySet copies m so later changes to it are not observed.
func NewQuerySet(m map[string]string) QuerySet {
	cp := make(map[string]string, len(m))
	maps.Copy(cp, m)
	keys := slices.Sorted(maps.Keys(cp))
	return QuerySet{byKey: cp, keys: keys}
}

// Len reports the number of queries.
func (s QuerySet) Len() int { return len(s.keys) }

// Get returns the sql registered under key.
func (s QuerySet) Get(key string) (string, bool) {
	v, ok := s.byKey[key]
	return v, ok
}

// Keys returns the keys in sorted order.
func (s QuerySet) Keys() []string {
	return slices.Clone(s.keys)
}

// Queries returns every query in key order.
func (s QuerySet) Queries() []Query {
	out := make([]Query, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, Query{Key: k, SQL: s.byKey[k]})
	}
	return out
}

// Map returns a copy of the underlying mapping.
func (s QuerySet) Map() map[string]string {
	cp := make(map[string]string, len(s.byKey))
	maps.Copy(cp, s.byKey)
	return cp
}

// Equal reports whether both sets hold exactly the same (key, sql) pairs.
func (s QuerySet) Equal(o QuerySet) bool {
	return maps.Equal(s.byKey, o.byKey)
}
