package links

import "slices"

type filterMode uint8

const (
	matchAll filterMode = iota
	matchExact
	matchAnyOf
)

// Filter restricts a single attribute. The zero value matches everything.
type Filter[T comparable] struct {
	mode   filterMode
	values []T
}

// Any returns a filter that matches every value.
func Any[T comparable]() Filter[T] {
	return Filter[T]{}
}

// Exact matches v only.
func Exact[T comparable](v T) Filter[T] {
	return Filter[T]{mode: matchExact, values: []T{v}}
}

// AnyOf matches membership in vs. An empty set matches nothing.
func AnyOf[T comparable](vs ...T) Filter[T] {
	return Filter[T]{mode: matchAnyOf, values: slices.Clone(vs)}
}

// IsAny reports whether the filter matches everything.
func (f Filter[T]) IsAny() bool {
	return f.mode == matchAll
}

func (f Filter[T]) Match(v T) bool {
	switch f.mode {
	case matchExact:
		return f.values[0] == v
	case matchAnyOf:
		return slices.Contains(f.values, v)
	default:
		return true
	}
}

// Query combines filters conjunctively.
type Query struct {
	ID       Filter[string]
	Location Filter[string]
	Active   Filter[bool]
}

func (q Query) Match(e Entry) bool {
	return q.ID.Match(e.ID) &&
		q.Location.Match(e.Record.Location) &&
		q.Active.Match(e.Record.Active)
}
