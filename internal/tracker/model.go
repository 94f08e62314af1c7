// Package tracker implements an in-memory unit of work: a tracking context
// that binds entity instances to lifecycle states, exposes relationship
// metadata as navigations, and writes pending changes to a Store.
//
// A Context is not safe for concurrent use.
package tracker

import (
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/unhitch/pkg/types"
)

// LoadFunc materializes an empty navigation for owner. It returns the
// related entity (HasOne) or a slice of related entities (HasMany); the
// result is stored in the owner's field.
type LoadFunc func(owner any) (any, error)

// Relation describes one navigation field of an entity type.
type Relation struct {
	Name       string
	Collection bool
	Load       LoadFunc

	index []int
}

// entityType is the registered metadata for one entity type.
type entityType struct {
	typ       reflect.Type // pointer-to-struct type
	kind      string
	keyIndex  []int
	relations []*Relation
}

// Model declares the entity types a Context manages and the relationships
// between them.
type Model struct {
	types map[reflect.Type]*entityType
	order []reflect.Type
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{types: make(map[reflect.Type]*entityType)}
}

// Register declares an entity type. sample must be a pointer to a struct,
// kind names the type in the store, and keyField names the string field
// holding the entity key.
// Returns ErrInvalidModel if the sample, kind, or key field is unusable.
func (m *Model) Register(sample any, kind, keyField string) error {
	t := reflect.TypeOf(sample)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: %T is not a pointer to a struct", types.ErrInvalidModel, sample)
	}
	if kind == "" {
		return fmt.Errorf("%w: kind must not be empty", types.ErrInvalidModel)
	}
	if _, ok := m.types[t]; ok {
		return fmt.Errorf("%w: %s registered twice", types.ErrInvalidModel, t)
	}
	for _, et := range m.types {
		if et.kind == kind {
			return fmt.Errorf("%w: kind %q already used by %s", types.ErrInvalidModel, kind, et.typ)
		}
	}

	key, ok := t.Elem().FieldByName(keyField)
	if !ok || !key.IsExported() || key.Type.Kind() != reflect.String {
		return fmt.Errorf("%w: %s has no exported string field %q", types.ErrInvalidModel, t, keyField)
	}

	m.types[t] = &entityType{typ: t, kind: kind, keyIndex: key.Index}
	m.order = append(m.order, t)
	return nil
}

// HasOne declares a navigation from sample's type to a single related
// entity held in the pointer field named field. load may be nil.
func (m *Model) HasOne(sample any, field string, load LoadFunc) error {
	return m.relate(sample, field, false, load)
}

// HasMany declares a navigation from sample's type to a slice of related
// entities held in the field named field. load may be nil.
func (m *Model) HasMany(sample any, field string, load LoadFunc) error {
	return m.relate(sample, field, true, load)
}

func (m *Model) relate(sample any, field string, collection bool, load LoadFunc) error {
	et, ok := m.types[reflect.TypeOf(sample)]
	if !ok {
		return fmt.Errorf("%w: %T is not registered", types.ErrInvalidModel, sample)
	}
	f, ok := et.typ.Elem().FieldByName(field)
	if !ok || !f.IsExported() {
		return fmt.Errorf("%w: %s has no exported field %q", types.ErrInvalidModel, et.typ, field)
	}

	want := reflect.Pointer
	if collection {
		want = reflect.Slice
	}
	if f.Type.Kind() != want {
		return fmt.Errorf("%w: field %s.%s must be a %s", types.ErrInvalidModel, et.typ.Elem().Name(), field, want)
	}
	for _, r := range et.relations {
		if r.Name == field {
			return fmt.Errorf("%w: relation %s.%s declared twice", types.ErrInvalidModel, et.typ.Elem().Name(), field)
		}
	}

	et.relations = append(et.relations, &Relation{
		Name:       field,
		Collection: collection,
		Load:       load,
		index:      f.Index,
	})
	return nil
}

func (m *Model) lookup(entity any) (*entityType, bool) {
	et, ok := m.types[reflect.TypeOf(entity)]
	return et, ok
}

// key reads the entity key field.
func (et *entityType) key(entity any) string {
	return reflect.ValueOf(entity).Elem().FieldByIndex(et.keyIndex).String()
}

// setKey writes the entity key field.
func (et *entityType) setKey(entity any, key string) {
	reflect.ValueOf(entity).Elem().FieldByIndex(et.keyIndex).SetString(key)
}
