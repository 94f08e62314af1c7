package detach

import (
	"reflect"
	"testing"

	"github.com/mesh-intelligence/unhitch/pkg/types"
)

// Test entities. Navigation fields reference other entities; scalar and
// string fields must never be followed.
type order struct {
	ID       int
	Note     string
	Tags     []string
	Customer *customer
	Items    []*item
}

type item struct {
	ID      int
	SKU     string
	Order   *order
	Product *product
}

type customer struct {
	ID     int
	Orders []*order
}

type product struct {
	ID int
}

// fakeContext is an instrumented TrackingContext. Entries stay registered
// after detaching so tests can inspect their final state and call counts.
type fakeContext struct {
	types     []reflect.Type
	entries   map[any]*fakeEntry
	lookups   []any
	lookupErr error
}

func newFakeContext(entityTypes ...any) *fakeContext {
	tc := &fakeContext{entries: map[any]*fakeEntry{}}
	for _, e := range entityTypes {
		tc.types = append(tc.types, reflect.TypeOf(e))
	}
	return tc
}

func (c *fakeContext) EntityTypes() []reflect.Type { return c.types }

func (c *fakeContext) Len() int { return len(c.entries) }

func (c *fakeContext) Lookup(entity any) (types.Entry, bool, error) {
	c.lookups = append(c.lookups, entity)
	if c.lookupErr != nil {
		return nil, false, c.lookupErr
	}
	e, ok := c.entries[entity]
	if !ok {
		return nil, false, nil
	}
	return e, true, nil
}

// track registers entity with the Unchanged state.
func (c *fakeContext) track(entity any) *fakeEntry {
	e := &fakeEntry{ctx: c, entity: entity, state: types.StateUnchanged}
	c.entries[entity] = e
	return e
}

type fakeEntry struct {
	ctx        *fakeContext
	entity     any
	state      types.State
	navs       []types.Navigation
	setCalls   int
	onDetach   func()
	setErr     error
	stateAtNav []types.State
}

func (e *fakeEntry) Entity() any { return e.entity }

func (e *fakeEntry) State() types.State { return e.state }

func (e *fakeEntry) SetState(s types.State) error {
	if e.setErr != nil {
		return e.setErr
	}
	e.setCalls++
	e.state = s
	if s == types.StateDetached && e.onDetach != nil {
		e.onDetach()
	}
	return nil
}

func (e *fakeEntry) Navigations() []types.Navigation { return e.navs }

func (e *fakeEntry) Context() types.TrackingContext { return e.ctx }

// navigate declares a navigation on e whose value is read through get.
// Every read records e's state at that moment.
func (e *fakeEntry) navigate(name string, collection bool, get func() (any, error)) *fakeNav {
	n := &fakeNav{name: name, collection: collection}
	n.get = func() (any, error) {
		n.reads++
		e.stateAtNav = append(e.stateAtNav, e.state)
		return get()
	}
	e.navs = append(e.navs, n)
	return n
}

type fakeNav struct {
	name       string
	collection bool
	get        func() (any, error)
	reads      int
}

func (n *fakeNav) Name() string { return n.name }

func (n *fakeNav) IsCollection() bool { return n.collection }

func (n *fakeNav) CurrentValue() (any, error) { return n.get() }

// orderGraph builds Order 1 with Items 10 and 11, both pointing back to the
// order, and tracks all three.
func orderGraph(t *testing.T) (*fakeContext, *order, []*item) {
	t.Helper()
	o := &order{ID: 1}
	items := []*item{{ID: 10, Order: o}, {ID: 11, Order: o}}
	o.Items = items

	tc := newFakeContext(&order{}, &item{}, &customer{}, &product{})
	tc.track(o)
	for _, it := range items {
		tc.track(it)
	}
	return tc, o, items
}

// declareOrderNavigations wires navigations matching the struct fields for
// every tracked order and item in tc.
func declareOrderNavigations(tc *fakeContext) {
	for entity, e := range tc.entries {
		switch v := entity.(type) {
		case *order:
			e.navigate("Customer", false, func() (any, error) { return v.Customer, nil })
			e.navigate("Items", true, func() (any, error) { return v.Items, nil })
		case *item:
			e.navigate("Order", false, func() (any, error) { return v.Order, nil })
			e.navigate("Product", false, func() (any, error) { return v.Product, nil })
		case *customer:
			e.navigate("Orders", true, func() (any, error) { return v.Orders, nil })
		}
	}
}
