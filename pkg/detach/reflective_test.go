package detach

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/mesh-intelligence/unhitch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetach_Guards(t *testing.T) {
	t.Run("nil context returns ErrInvalidArgument", func(t *testing.T) {
		err := Detach(nil, &order{ID: 1})
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
	})

	t.Run("typed nil context returns ErrInvalidArgument", func(t *testing.T) {
		var tc *fakeContext
		err := Detach(tc, &order{ID: 1})
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
	})

	t.Run("nil root is a no-op", func(t *testing.T) {
		tc, _, _ := orderGraph(t)
		require.NoError(t, Detach(tc, nil))
		var o *order
		require.NoError(t, Detach(tc, o))
		assert.Empty(t, tc.lookups)
	})

	t.Run("unknown root type returns ErrUnknownType naming type and context", func(t *testing.T) {
		tc := newFakeContext(&order{})
		it := &item{ID: 10}
		tc.track(it)

		err := Detach(tc, it)
		require.ErrorIs(t, err, types.ErrUnknownType)
		assert.Contains(t, err.Error(), "'item'")
		assert.Contains(t, err.Error(), "'fakeContext'")
		assert.Equal(t, types.StateUnchanged, tc.entries[it].state)
		assert.Zero(t, tc.entries[it].setCalls)
		assert.Empty(t, tc.lookups)
	})

	t.Run("type match is exact", func(t *testing.T) {
		tc := newFakeContext(&order{})
		tc.track(&order{ID: 2})
		err := Detach(tc, order{ID: 2})
		assert.ErrorIs(t, err, types.ErrUnknownType)
	})

	t.Run("empty context is a no-op", func(t *testing.T) {
		tc := newFakeContext(&order{}, &item{})
		o := &order{ID: 1, Items: []*item{{ID: 10}}}
		require.NoError(t, Detach(tc, o))
		assert.Empty(t, tc.lookups)
	})
}

func TestDetach_OrderWithBackReferences(t *testing.T) {
	tc, o, items := orderGraph(t)

	require.NoError(t, Detach(tc, o))

	for _, entity := range []any{o, items[0], items[1]} {
		e := tc.entries[entity]
		assert.Equal(t, types.StateDetached, e.state)
		assert.Equal(t, 1, e.setCalls)
	}
	assert.Len(t, tc.lookups, 3, "each entity is looked up exactly once")
}

func TestDetach_AcyclicGraphVisitsEachEntityOnce(t *testing.T) {
	shared := &product{ID: 100}
	c := &customer{ID: 7}
	o := &order{
		ID:       1,
		Note:     "rush",
		Tags:     []string{"a", "b"},
		Customer: c,
		Items: []*item{
			{ID: 10, Product: shared},
			{ID: 11, Product: shared},
			{ID: 12},
		},
	}

	tc := newFakeContext(&order{}, &item{}, &customer{}, &product{})
	all := []any{o, c, shared, o.Items[0], o.Items[1], o.Items[2]}
	for _, e := range all {
		tc.track(e)
	}

	require.NoError(t, Detach(tc, o))

	for _, entity := range all {
		e := tc.entries[entity]
		assert.Equal(t, types.StateDetached, e.state, "%T should be detached", entity)
		assert.Equal(t, 1, e.setCalls, "%T should be detached once", entity)
	}

	counts := map[any]int{}
	for _, l := range tc.lookups {
		counts[l]++
	}
	assert.Len(t, counts, len(all))
	for entity, n := range counts {
		assert.Equal(t, 1, n, "%T visited more than once", entity)
	}
}

func TestDetach_CycleTerminates(t *testing.T) {
	a := &order{ID: 1}
	b := &customer{ID: 2, Orders: []*order{a}}
	a.Customer = b

	tc := newFakeContext(&order{}, &customer{})
	tc.track(a)
	tc.track(b)

	require.NoError(t, Detach(tc, a))

	assert.Equal(t, types.StateDetached, tc.entries[a].state)
	assert.Equal(t, types.StateDetached, tc.entries[b].state)
	assert.Equal(t, 1, tc.entries[a].setCalls)
	assert.Equal(t, 1, tc.entries[b].setCalls)
}

func TestDetach_ChildrenBeforeParent(t *testing.T) {
	tc, o, items := orderGraph(t)

	var seq []any
	for entity, e := range tc.entries {
		e.onDetach = func() { seq = append(seq, entity) }
	}

	require.NoError(t, Detach(tc, o))
	require.Len(t, seq, 3)
	assert.ElementsMatch(t, []any{items[0], items[1]}, seq[:2])
	assert.Same(t, o, seq[2])
}

func TestDetach_NilNestedObjectIsNotVisited(t *testing.T) {
	tc := newFakeContext(&order{}, &customer{})
	o := &order{ID: 1}
	tc.track(o)

	require.NoError(t, Detach(tc, o))

	assert.Equal(t, []any{o}, tc.lookups)
	assert.Equal(t, types.StateDetached, tc.entries[o].state)
}

func TestDetach_EqualValuesAreDistinctNodes(t *testing.T) {
	first := &item{ID: 10, SKU: "x"}
	second := &item{ID: 10, SKU: "x"}
	o := &order{ID: 1, Items: []*item{first, second}}

	tc := newFakeContext(&order{}, &item{})
	tc.track(o)
	tc.track(first)
	tc.track(second)

	require.NoError(t, Detach(tc, o))
	assert.Equal(t, types.StateDetached, tc.entries[first].state)
	assert.Equal(t, types.StateDetached, tc.entries[second].state)
}

func TestDetach_WithIdentity(t *testing.T) {
	first := &item{ID: 10}
	second := &item{ID: 10}
	o := &order{ID: 1, Items: []*item{first, second}}

	tc := newFakeContext(&order{}, &item{})
	tc.track(o)
	tc.track(first)
	tc.track(second)

	byID := func(v any) (any, bool) {
		switch e := v.(type) {
		case *order:
			if e != nil {
				return [2]int{1, e.ID}, true
			}
		case *item:
			if e != nil {
				return [2]int{2, e.ID}, true
			}
		}
		return PointerIdentity(v)
	}

	require.NoError(t, New(WithIdentity(byID)).Detach(tc, o))
	assert.Equal(t, types.StateDetached, tc.entries[first].state)
	assert.Equal(t, types.StateUnchanged, tc.entries[second].state, "same ID is the same node")
}

func TestDetach_CollectionIsSnapshotted(t *testing.T) {
	tc, o, items := orderGraph(t)
	late := &item{ID: 99}
	tc.track(late)

	// Detaching the first item grows the collection being walked.
	tc.entries[items[0]].onDetach = func() {
		o.Items = append(o.Items, late)
	}

	require.NoError(t, Detach(tc, o))
	assert.Len(t, o.Items, 3)
	assert.Equal(t, types.StateUnchanged, tc.entries[late].state)
	assert.Equal(t, types.StateDetached, tc.entries[items[1]].state)
}

func TestDetach_UntrackedIntermediateIsTraversed(t *testing.T) {
	// The customer is not tracked, but its orders are reachable through it.
	other := &order{ID: 2}
	c := &customer{ID: 7, Orders: []*order{other}}
	o := &order{ID: 1, Customer: c}

	tc := newFakeContext(&order{}, &customer{})
	tc.track(o)
	tc.track(other)

	require.NoError(t, Detach(tc, o))
	assert.Equal(t, types.StateDetached, tc.entries[other].state)
	assert.Equal(t, types.StateDetached, tc.entries[o].state)
}

func TestDetach_LookupErrorIsReturnedUnmodified(t *testing.T) {
	tc, o, _ := orderGraph(t)
	boom := errors.New("lookup failed")
	tc.lookupErr = boom

	err := Detach(tc, o)
	assert.True(t, err == boom, "error must not be wrapped, got %v", err)
}

func TestDetach_SetStateErrorStopsTraversal(t *testing.T) {
	tc, o, items := orderGraph(t)
	boom := errors.New("state write failed")
	tc.entries[items[0]].setErr = boom

	err := Detach(tc, o)
	assert.True(t, err == boom)
	assert.Equal(t, types.StateUnchanged, tc.entries[o].state)
}

func TestDetach_AlreadyDetachedIsLeftAlone(t *testing.T) {
	tc, o, items := orderGraph(t)
	tc.entries[items[0]].state = types.StateDetached

	require.NoError(t, Detach(tc, o))
	assert.Zero(t, tc.entries[items[0]].setCalls)
	assert.Equal(t, 1, tc.entries[items[1]].setCalls)
}

func TestDetach_ValueRootIsDetached(t *testing.T) {
	tc := newFakeContext(product{})
	e := tc.track(product{ID: 1})

	require.NoError(t, Detach(tc, product{ID: 1}))
	assert.Equal(t, types.StateDetached, e.state)
	assert.Equal(t, 1, e.setCalls)
}

func TestDetach_NoPerNodeLogsAboveDebug(t *testing.T) {
	tc, o, _ := orderGraph(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	require.NoError(t, New(WithLogger(logger)).Detach(tc, o))
	assert.Empty(t, buf.String())
	assert.Equal(t, types.StateDetached, tc.entries[o].state)
}

func TestDetach_LogsSummary(t *testing.T) {
	tc, o, _ := orderGraph(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	require.NoError(t, New(WithLogger(logger)).Detach(tc, o))
	assert.Contains(t, buf.String(), "detach complete")
	assert.Contains(t, buf.String(), "detached=3")
	assert.Contains(t, buf.String(), "strategy=reflect")
}

// Field shapes that the reflective walk must follow or ignore.
type (
	audit struct {
		Reviewer *customer
	}

	Embedded struct {
		Owner *customer
	}

	shaped struct {
		Embedded
		Audit     audit
		Any       any
		ByKey     map[string]*product
		Fixed     [2]*product
		Values    []product
		Ints      []int
		Name      string
		NamePtr   *string
		Counter   *int
		hidden    *product
		Anything  []any
		Callbacks []func()
	}
)

func TestReflectiveSource_Edges(t *testing.T) {
	owner := &customer{ID: 1}
	reviewer := &customer{ID: 2}
	p1, p2, p3, p4, p5 := &product{ID: 1}, &product{ID: 2}, &product{ID: 3}, &product{ID: 4}, &product{ID: 5}
	name := "n"
	count := 3

	s := &shaped{
		Embedded:  Embedded{Owner: owner},
		Audit:     audit{Reviewer: reviewer},
		Any:       p1,
		ByKey:     map[string]*product{"k": p2},
		Fixed:     [2]*product{p3, nil},
		Values:    []product{{ID: 9}},
		Ints:      []int{1, 2},
		Name:      "ignored",
		NamePtr:   &name,
		Counter:   &count,
		hidden:    p5,
		Anything:  []any{p4, "text", 42},
		Callbacks: []func(){func() {}},
	}

	edges, err := reflectiveSource{identity: PointerIdentity}.Edges(s)
	require.NoError(t, err)

	assert.Contains(t, edges, any(owner))
	assert.Contains(t, edges, any(reviewer))
	assert.Contains(t, edges, any(p1))
	assert.Contains(t, edges, any(p2))
	assert.Contains(t, edges, any(p3))
	assert.Contains(t, edges, any(p4))
	assert.NotContains(t, edges, any(p5), "unexported fields are not followed")
	assert.NotContains(t, edges, any(&name))
	assert.NotContains(t, edges, any(&count))
	assert.NotContains(t, edges, any("ignored"), "string fields are never edges")
}

func TestReflectiveSource_NestedCollectionsNotFollowed(t *testing.T) {
	p := &product{ID: 1}
	list := []*product{p}
	node := &struct {
		Grid [][]*product
		Ref  *[]*product
	}{
		Grid: [][]*product{{p}},
		Ref:  &list,
	}

	edges, err := reflectiveSource{identity: PointerIdentity}.Edges(node)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestReflectiveSource_NonStruct(t *testing.T) {
	n := 5
	edges, err := reflectiveSource{identity: PointerIdentity}.Edges(&n)
	require.NoError(t, err)
	assert.Empty(t, edges)
}
