package core

import (
	"reflect"

	"github.com/ekartashov/knowsync/internal/util"
)

// PredicateKind discriminates the closed set of content predicate variants.
// Rules and filters are expressed through these typed variants rather than
// through runtime-evaluated expressions, so no unrestricted code execution
// can reach the engine.
type PredicateKind string

const (
	// PredicateFieldEquals matches when the dotted path resolves to a value
	// deep-equal to the expected one.
	PredicateFieldEquals PredicateKind = "field_equals"
	// PredicateFieldExists matches when the dotted path resolves at all.
	PredicateFieldExists PredicateKind = "field_exists"
	// PredicateCustom delegates to a caller-registered function.
	PredicateCustom PredicateKind = "custom"
)

// Predicate is one content-level check. Construct values through the
// FieldEquals, FieldExists and CustomFn helpers.
type Predicate struct {
	Kind  PredicateKind
	Path  string
	Value any
	Fn    func(content map[string]any) bool
}

// FieldEquals builds a predicate matching artifacts whose content field at
// the dotted path equals value.
func FieldEquals(path string, value any) Predicate {
	return Predicate{Kind: PredicateFieldEquals, Path: path, Value: value}
}

// FieldExists builds a predicate matching artifacts whose content has any
// value at the dotted path.
func FieldExists(path string) Predicate {
	return Predicate{Kind: PredicateFieldExists, Path: path}
}

// CustomFn builds a predicate delegating to fn. The function must be
// registered ahead of time by the caller; it receives the artifact content
// and must not mutate it.
func CustomFn(fn func(content map[string]any) bool) Predicate {
	return Predicate{Kind: PredicateCustom, Fn: fn}
}

// Matches evaluates the predicate against an artifact content payload.
// Unknown kinds and nil custom functions match nothing.
func (p Predicate) Matches(content map[string]any) bool {
	switch p.Kind {
	case PredicateFieldEquals:
		v, ok := util.Lookup(content, p.Path)
		return ok && reflect.DeepEqual(v, p.Value)
	case PredicateFieldExists:
		_, ok := util.Lookup(content, p.Path)
		return ok
	case PredicateCustom:
		return p.Fn != nil && p.Fn(content)
	}
	return false
}
