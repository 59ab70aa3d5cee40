package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternKnownInstance(t *testing.T) {
	d := newFakeDb(t)
	in := d.Interner()
	origin := new(int)
	intT := d.instance(KnownInt)
	strT := d.instance(KnownStr)

	unbounded := in.InternKnownInstance(KnownTypeVarInstance, "T", origin, nil, nil)
	assert.Same(t, unbounded, in.InternKnownInstance(KnownTypeVarInstance, "T", origin, nil, nil))
	assert.Nil(t, unbounded.Bound)

	bounded := in.InternKnownInstance(KnownTypeVarInstance, "T", origin, &intT, nil)
	assert.NotSame(t, unbounded, bounded)
	require.NotNil(t, bounded.Bound)
	assert.Equal(t, intT, *bounded.Bound)
	assert.NotEqual(t, KnownInstanceOf(unbounded), KnownInstanceOf(bounded))

	// A Never bound is distinct from no bound at all.
	never := Never
	assert.NotSame(t, unbounded, in.InternKnownInstance(KnownTypeVarInstance, "T", origin, &never, nil))

	constraints := []Type{intT, strT}
	constrained := in.InternKnownInstance(KnownTypeVarInstance, "T", origin, nil, constraints)
	constraints[0] = strT
	assert.Equal(t, []Type{intT, strT}, constrained.Constraints, "constraints are copied")
	assert.NotSame(t, constrained, in.InternKnownInstance(KnownTypeVarInstance, "T", origin, nil, []Type{strT, intT}))

	assert.NotSame(t, unbounded, in.InternKnownInstance(KnownTypeVarInstance, "T", new(int), nil, nil))
	assert.NotSame(t, unbounded, in.InternKnownInstance(KnownParamSpecInstance, "T", origin, nil, nil))
}
