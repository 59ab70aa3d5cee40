package memo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intEqual(a, b int) bool { return a == b }

func zero(string) int { return 0 }

func TestQuery_Memoizes(t *testing.T) {
	rt := NewRuntime()
	calls := 0
	q := NewQuery(rt, "double", func(k int) int {
		calls++
		return k * 2
	}, func(int) int { return 0 }, intEqual)

	assert.Equal(t, 4, q.Get(2))
	assert.Equal(t, 4, q.Get(2))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, rt.Stats().Hits)
	assert.Equal(t, 1, rt.Stats().Misses)

	v, ok := q.Cached(2)
	require.True(t, ok)
	assert.Equal(t, 4, v)
	assert.Equal(t, 0, rt.Depth())
}

func TestQuery_CycleConverges(t *testing.T) {
	rt := NewRuntime()
	var q *Query[string, int]
	q = NewQuery(rt, "chain", func(k string) int {
		switch k {
		case "a":
			return min(q.Get("b")+1, 5)
		case "b":
			return q.Get("a")
		}
		return 0
	}, zero, intEqual)

	assert.Equal(t, 5, q.Get("a"))
	_, ok := q.Cached("b")
	assert.False(t, ok, "values read from a provisional head are not final")
	assert.Equal(t, 5, q.Get("b"))
	_, ok = q.Cached("b")
	assert.True(t, ok)
	assert.Greater(t, rt.Stats().Iterations, 1)
}

func TestQuery_CycleAcrossQueries(t *testing.T) {
	rt := NewRuntime()
	var even *Query[int, bool]
	var odd *Query[int, bool]
	even = NewQuery(rt, "even", func(n int) bool {
		if n == 0 {
			return true
		}
		return odd.Get(n - 1)
	}, func(int) bool { return false }, func(a, b bool) bool { return a == b })
	odd = NewQuery(rt, "odd", func(n int) bool {
		if n == 0 {
			return false
		}
		return even.Get(n - 1)
	}, func(int) bool { return false }, func(a, b bool) bool { return a == b })

	assert.True(t, even.Get(10))
	assert.True(t, odd.Get(7))
	assert.Equal(t, 0, rt.Stats().Cycles)
}

func TestQuery_SelfCycleInitial(t *testing.T) {
	rt := NewRuntime()
	var q *Query[string, int]
	q = NewQuery(rt, "self", func(k string) int {
		return q.Get(k)
	}, func(string) int { return 7 }, intEqual)

	assert.Equal(t, 7, q.Get("x"), "a pure self reference converges to the initial value")
	assert.Equal(t, 1, q.Len())
}

func TestQuery_DivergencePanics(t *testing.T) {
	rt := NewRuntime(WithMaxIterations(10))
	var q *Query[string, int]
	q = NewQuery(rt, "grow", func(k string) int {
		return q.Get(k) + 1
	}, zero, intEqual)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(*ConvergenceError)
		require.True(t, ok, "unexpected panic value %v", r)
		assert.Equal(t, "grow", err.Query)
		assert.Equal(t, 10, err.Iterations)
		assert.Contains(t, err.Error(), "did not converge")
	}()
	q.Get("x")
	t.Fatal("expected a panic")
}

func TestQuery_NestedHeads(t *testing.T) {
	rt := NewRuntime()
	var q *Query[string, int]
	// a <-> b form an outer cycle; b <-> c an inner one.
	q = NewQuery(rt, "nested", func(k string) int {
		switch k {
		case "a":
			return min(q.Get("b"), 3) + 0
		case "b":
			return max(q.Get("c"), q.Get("a"))
		case "c":
			return min(q.Get("b")+1, 3)
		}
		return 0
	}, zero, intEqual)

	assert.Equal(t, 3, q.Get("a"))
	assert.Equal(t, 3, q.Get("b"))
	assert.Equal(t, 3, q.Get("c"))
	assert.Equal(t, 0, rt.Depth())
}

func TestNewRuntime_Defaults(t *testing.T) {
	rt := NewRuntime()
	assert.Equal(t, DefaultMaxIterations, rt.maxIterations)
	assert.Zero(t, rt.Depth())
	assert.Equal(t, Stats{}, rt.Stats())

	assert.Equal(t, 5, NewRuntime(WithMaxIterations(5)).maxIterations)
	assert.Equal(t, DefaultMaxIterations, NewRuntime(WithMaxIterations(0)).maxIterations, "non-positive limits are ignored")
}
