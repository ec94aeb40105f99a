// Package derived recomputes entity fields from the fields they depend on.
//
// A Graph is declared once per entity type. Each entity instance carries a
// Dirty set: setters Touch the fields they write, getters Resolve the derived
// fields they return. Resolution runs the affected compute functions in
// topological order, so a derived field always reflects the current inputs of
// its entity, including inputs that are themselves derived.
package derived

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrCycle is returned when the declared rules depend on each other in a loop
	ErrCycle = errors.New("derived field rules form a cycle")

	// ErrDuplicateTarget is returned when two rules write the same field
	ErrDuplicateTarget = errors.New("derived field declared twice")
)

// Field names an input or derived field of an entity
type Field string

// Rule declares that Target is refreshed by Compute whenever any of DependsOn changes.
// Compute must be total: it writes a deterministic default instead of failing.
type Rule[T any] struct {
	Target    Field
	DependsOn []Field
	Compute   func(*T)
}

// Graph is the dependency graph of one entity type
type Graph[T any] struct {
	rules      map[Field]Rule[T]
	dependents map[Field][]Field
	order      []Field
	rank       map[Field]int
}

// NewGraph validates the rules and orders them topologically
func NewGraph[T any](rules ...Rule[T]) (*Graph[T], error) {
	g := &Graph[T]{
		rules:      make(map[Field]Rule[T], len(rules)),
		dependents: make(map[Field][]Field),
		rank:       make(map[Field]int, len(rules)),
	}
	for _, r := range rules {
		if r.Compute == nil {
			return nil, fmt.Errorf("rule for %q has no compute function", r.Target)
		}
		if _, ok := g.rules[r.Target]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTarget, r.Target)
		}
		g.rules[r.Target] = r
	}
	for _, r := range rules {
		for _, dep := range r.DependsOn {
			g.dependents[dep] = append(g.dependents[dep], r.Target)
		}
	}

	// Kahn's algorithm over rule targets; plain inputs have no rule and no indegree.
	indegree := make(map[Field]int, len(rules))
	for _, r := range rules {
		for _, dep := range r.DependsOn {
			if _, derived := g.rules[dep]; derived {
				indegree[r.Target]++
			}
		}
	}
	var ready []Field
	for _, r := range rules {
		if indegree[r.Target] == 0 {
			ready = append(ready, r.Target)
		}
	}
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		next := ready[0]
		ready = ready[1:]
		g.rank[next] = len(g.order)
		g.order = append(g.order, next)
		for _, dependent := range g.dependents[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}
	if len(g.order) != len(rules) {
		return nil, ErrCycle
	}
	return g, nil
}

// MustGraph is NewGraph for package-level declarations
func MustGraph[T any](rules ...Rule[T]) *Graph[T] {
	g, err := NewGraph(rules...)
	if err != nil {
		panic(err)
	}
	return g
}

// Targets returns the derived fields in evaluation order
func (g *Graph[T]) Targets() []Field {
	out := make([]Field, len(g.order))
	copy(out, g.order)
	return out
}

// Affected returns every derived field that must be recomputed when the given fields change
func (g *Graph[T]) Affected(changed ...Field) []Field {
	seen := make(map[Field]bool)
	stack := append([]Field(nil), changed...)
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dependent := range g.dependents[f] {
			if !seen[dependent] {
				seen[dependent] = true
				stack = append(stack, dependent)
			}
		}
	}
	out := make([]Field, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return g.rank[out[i]] < g.rank[out[j]] })
	return out
}

// Touch records that the given fields were written
func (g *Graph[T]) Touch(d *Dirty, changed ...Field) {
	for _, f := range g.Affected(changed...) {
		d.mark(f)
	}
}

// TouchAll marks every derived field dirty, used after loading an entity
func (g *Graph[T]) TouchAll(d *Dirty) {
	for _, f := range g.order {
		d.mark(f)
	}
}

// Resolve recomputes the dirty fields needed by targets. With no targets every dirty field is recomputed.
func (g *Graph[T]) Resolve(d *Dirty, entity *T, targets ...Field) {
	if d.empty() {
		return
	}
	needed := g.upstream(targets)
	for _, f := range g.order {
		if needed != nil && !needed[f] {
			continue
		}
		if !d.has(f) {
			continue
		}
		g.rules[f].Compute(entity)
		d.clear(f)
	}
}

// upstream returns targets plus every derived field they transitively read, nil meaning all
func (g *Graph[T]) upstream(targets []Field) map[Field]bool {
	if len(targets) == 0 {
		return nil
	}
	needed := make(map[Field]bool)
	stack := append([]Field(nil), targets...)
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		r, ok := g.rules[f]
		if !ok || needed[f] {
			continue
		}
		needed[f] = true
		stack = append(stack, r.DependsOn...)
	}
	return needed
}

// Dirty is the per-instance set of derived fields awaiting recomputation.
// The zero value is ready to use; it must not be shared between instances.
type Dirty struct {
	fields map[Field]struct{}
}

func (d *Dirty) mark(f Field) {
	if d.fields == nil {
		d.fields = make(map[Field]struct{})
	}
	d.fields[f] = struct{}{}
}

func (d *Dirty) has(f Field) bool {
	_, ok := d.fields[f]
	return ok
}

func (d *Dirty) clear(f Field) {
	delete(d.fields, f)
}

func (d *Dirty) empty() bool {
	return len(d.fields) == 0
}

// Pending reports whether f awaits recomputation
func (d *Dirty) Pending(f Field) bool {
	return d.has(f)
}
