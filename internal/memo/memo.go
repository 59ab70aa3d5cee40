// Package memo is a small demand-driven memoization engine with fixed-point
// cycle recovery.
//
// Queries share one Runtime, which tracks the stack of computations in
// flight. A query that re-enters a key already on the stack marks that
// key's frame as a cycle head and receives the head's provisional value
// (initially the query's initial value). The head recomputes until two
// consecutive values are equal. Results computed while reading a
// provisional value of an outer head are not cached: they depend on a value
// that may still change.
//
// A Runtime is not safe for concurrent use. After a computation panics the
// Runtime must be discarded.
package memo

import "fmt"

// DefaultMaxIterations bounds the fixed-point iteration of one cycle head.
const DefaultMaxIterations = 200

type frame struct {
	// dependsOn is the lowest stack depth whose provisional value this
	// computation read; equal to the frame's own depth when none.
	dependsOn int
	head      bool
}

// Stats counts engine activity.
type Stats struct {
	Hits       int
	Misses     int
	Cycles     int
	Iterations int
}

// Runtime holds the computation stack shared by a set of queries.
type Runtime struct {
	stack         []*frame
	maxIterations int
	stats         Stats
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithMaxIterations overrides DefaultMaxIterations.
func WithMaxIterations(n int) Option {
	return func(r *Runtime) {
		if n > 0 {
			r.maxIterations = n
		}
	}
}

// NewRuntime creates an empty runtime. Queries registered on the same
// runtime share one cycle stack.
func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{maxIterations: DefaultMaxIterations}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stats returns a snapshot of the engine counters.
func (r *Runtime) Stats() Stats { return r.stats }

// Depth is the number of computations in flight.
func (r *Runtime) Depth() int { return len(r.stack) }

// cycle records that the computation on top of the stack read the
// provisional value of the frame at depth.
func (r *Runtime) cycle(depth int) {
	r.stats.Cycles++
	r.stack[depth].head = true
	for _, f := range r.stack[depth+1:] {
		if depth < f.dependsOn {
			f.dependsOn = depth
		}
	}
}

// ConvergenceError is the panic value raised when a cycle head does not
// reach a fixed point within the iteration ceiling.
type ConvergenceError struct {
	Query      string
	Key        any
	Iterations int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("memo: %s(%v) did not converge after %d iterations", e.Query, e.Key, e.Iterations)
}

// Query memoizes one function over a shared Runtime.
type Query[K comparable, V any] struct {
	rt      *Runtime
	name    string
	compute func(K) V
	initial func(K) V
	equal   func(a, b V) bool

	done        map[K]V
	provisional map[K]V
	active      map[K]int
}

// NewQuery registers a query. initial seeds cycles; equal decides
// convergence.
func NewQuery[K comparable, V any](rt *Runtime, name string, compute, initial func(K) V, equal func(a, b V) bool) *Query[K, V] {
	return &Query[K, V]{
		rt:          rt,
		name:        name,
		compute:     compute,
		initial:     initial,
		equal:       equal,
		done:        make(map[K]V),
		provisional: make(map[K]V),
		active:      make(map[K]int),
	}
}

// Get returns the memoized value of key, computing it if needed.
func (q *Query[K, V]) Get(key K) V {
	rt := q.rt
	if v, ok := q.done[key]; ok {
		rt.stats.Hits++
		return v
	}
	if depth, ok := q.active[key]; ok {
		rt.cycle(depth)
		if v, ok := q.provisional[key]; ok {
			return v
		}
		return q.initial(key)
	}
	rt.stats.Misses++

	depth := len(rt.stack)
	f := &frame{dependsOn: depth}
	rt.stack = append(rt.stack, f)
	q.active[key] = depth

	var v V
	for iteration := 1; ; iteration++ {
		f.head = false
		f.dependsOn = depth
		v = q.compute(key)
		if !f.head {
			break
		}
		rt.stats.Iterations++
		prev, ok := q.provisional[key]
		if !ok {
			prev = q.initial(key)
		}
		if q.equal(prev, v) {
			break
		}
		if iteration >= rt.maxIterations {
			panic(&ConvergenceError{Query: q.name, Key: key, Iterations: iteration})
		}
		q.provisional[key] = v
	}

	delete(q.active, key)
	rt.stack = rt.stack[:depth]
	if f.dependsOn < depth {
		parent := rt.stack[depth-1]
		if f.dependsOn < parent.dependsOn {
			parent.dependsOn = f.dependsOn
		}
		q.provisional[key] = v
		return v
	}
	delete(q.provisional, key)
	q.done[key] = v
	return v
}

// Cached returns a finalized value without computing.
func (q *Query[K, V]) Cached(key K) (V, bool) {
	v, ok := q.done[key]
	return v, ok
}

// Len is the number of finalized entries.
func (q *Query[K, V]) Len() int { return len(q.done) }
