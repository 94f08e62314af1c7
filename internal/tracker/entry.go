package tracker

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mesh-intelligence/unhitch/pkg/types"
)

// entityValidate checks `validate` struct tags on entities before they are
// written.
var entityValidate = validator.New()

// Entry binds one entity instance to its state in a Context. It implements
// types.Entry.
type Entry struct {
	ctx    *Context
	entity any
	et     *entityType
	state  types.State
}

// Entity returns the tracked entity.
func (e *Entry) Entity() any { return e.entity }

// State returns the current tracking state.
func (e *Entry) State() types.State { return e.state }

// Kind returns the store kind of the entity's type.
func (e *Entry) Kind() string { return e.et.kind }

// Key returns the entity key.
func (e *Entry) Key() string { return e.et.key(e.entity) }

// Context returns the owning context.
func (e *Entry) Context() types.TrackingContext { return e.ctx }

// SetState transitions the entry. Setting StateDetached stops tracking the
// entity; a detached entry cannot be moved to any other state.
// Returns ErrInvalidState for unrecognized states and ErrInvalidTransition
// when leaving Detached.
func (e *Entry) SetState(state types.State) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %q", types.ErrInvalidState, state)
	}
	if e.state == types.StateDetached {
		if state == types.StateDetached {
			return nil
		}
		return fmt.Errorf("%w: %s %s is detached", types.ErrInvalidTransition, e.et.kind, e.Key())
	}
	if state == types.StateDetached {
		e.ctx.untrack(e)
		e.ctx.logger.Debug("entity detached", "kind", e.et.kind, "key", e.Key(), "was", e.state)
	}
	from := e.state
	e.state = state
	if from != state && e.ctx.observer != nil {
		e.ctx.observer(StateChange{Entry: e, From: from, To: state})
	}
	return nil
}

// Navigations returns one navigation per relation declared for the
// entity's type, in declaration order.
func (e *Entry) Navigations() []types.Navigation {
	navs := make([]types.Navigation, 0, len(e.et.relations))
	for _, r := range e.et.relations {
		navs = append(navs, &navigation{entry: e, rel: r})
	}
	return navs
}

// record encodes the entity for the store after validating it.
func (e *Entry) record(stamp time.Time) (types.Record, error) {
	if err := entityValidate.Struct(e.entity); err != nil {
		return types.Record{}, fmt.Errorf("%w: %s %s: %v", types.ErrValidation, e.et.kind, e.Key(), err)
	}
	data, err := json.Marshal(e.entity)
	if err != nil {
		return types.Record{}, fmt.Errorf("encode %s %s: %w", e.et.kind, e.Key(), err)
	}
	return types.Record{Kind: e.et.kind, Key: e.Key(), Data: data, UpdatedAt: stamp}, nil
}

// navigation exposes one relation of a tracked entity.
type navigation struct {
	entry *Entry
	rel   *Relation
}

func (n *navigation) Name() string { return n.rel.Name }

func (n *navigation) IsCollection() bool { return n.rel.Collection }

// CurrentValue returns the field value. A nil field is loaded through the
// relation's LoadFunc first, but only while the owner is still tracked;
// detached entities never trigger loads. An empty non-nil slice counts as
// loaded.
func (n *navigation) CurrentValue() (any, error) {
	field := reflect.ValueOf(n.entry.entity).Elem().FieldByIndex(n.rel.index)

	if field.IsNil() && n.rel.Load != nil && n.entry.state != types.StateDetached {
		loaded, err := n.rel.Load(n.entry.entity)
		if err != nil {
			return nil, err
		}
		if loaded != nil {
			lv := reflect.ValueOf(loaded)
			if !lv.Type().AssignableTo(field.Type()) {
				return nil, fmt.Errorf("%w: loader for %s returned %s, want %s",
					types.ErrInvalidModel, n.rel.Name, lv.Type(), field.Type())
			}
			field.Set(lv)
		}
	}

	if field.IsNil() {
		return nil, nil
	}
	return field.Interface(), nil
}
