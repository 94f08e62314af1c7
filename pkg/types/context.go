package types

import "reflect"

// TrackingContext is a unit-of-work boundary that records which entities
// are known and their persistence state. Implementations are not required
// to be safe for concurrent use.
type TrackingContext interface {
	// EntityTypes returns the runtime types the context manages, for
	// example reflect.TypeOf(&Order{}).
	EntityTypes() []reflect.Type

	// Len returns the number of entries currently tracked.
	Len() int

	// Lookup resolves the tracking entry for an entity instance. The
	// boolean is false when the instance is not tracked; that is not an
	// error.
	Lookup(entity any) (Entry, bool, error)
}

// Entry binds one entity instance to its tracking state within a context.
type Entry interface {
	// Entity returns the tracked entity instance.
	Entity() any

	// State returns the current tracking state.
	State() State

	// SetState transitions the entry. Setting StateDetached removes the
	// entity from its context.
	SetState(state State) error

	// Navigations returns the relationship descriptors declared for the
	// entity's type.
	Navigations() []Navigation

	// Context returns the context the entry belongs to.
	Context() TrackingContext
}

// Navigation describes one relationship field declared in context metadata.
type Navigation interface {
	// Name returns the relationship field name.
	Name() string

	// IsCollection reports whether the navigation targets many entities.
	IsCollection() bool

	// CurrentValue returns the related entity, the collection of related
	// entities, or nil when the relationship is empty. Implementations
	// may materialize the value on demand.
	CurrentValue() (any, error)
}
