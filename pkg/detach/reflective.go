package detach

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"github.com/mesh-intelligence/unhitch/pkg/types"
)

// Detach detaches root, and every object reachable from it through
// exported fields, from tc.
//
// Returns ErrInvalidArgument when tc is nil and ErrUnknownType when the
// runtime type of root is not one of tc.EntityTypes(). A nil root or a
// context that tracks nothing is a no-op. Errors from the context are
// returned unmodified.
func (d *Detacher) Detach(tc types.TrackingContext, root any) error {
	if isNil(tc) {
		return fmt.Errorf("%w: tracking context is nil", types.ErrInvalidArgument)
	}
	if isNil(root) {
		return nil
	}
	rootType := reflect.TypeOf(root)
	if !slices.Contains(tc.EntityTypes(), rootType) {
		return fmt.Errorf("%w: the type '%s' doesn't exist in current context '%s'",
			types.ErrUnknownType, typeName(rootType), typeName(reflect.TypeOf(tc)))
	}
	if tc.Len() == 0 {
		return nil
	}

	logger := d.log()
	debug := logger.Enabled(context.Background(), slog.LevelDebug)
	detached := 0
	visited, err := traverse[any](reflectiveSource{identity: d.identity}, root, func(node any) error {
		entry, ok, err := tc.Lookup(node)
		if err != nil {
			return err
		}
		if !ok || entry.State() == types.StateDetached {
			return nil
		}
		if err := entry.SetState(types.StateDetached); err != nil {
			return err
		}
		detached++
		if debug {
			logger.Debug("entity detached", "type", typeName(reflect.TypeOf(node)))
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Debug("detach complete",
		"strategy", types.StrategyReflect,
		"root", typeName(rootType),
		"visited", visited,
		"detached", detached)
	return nil
}

// reflectiveSource finds edges by inspecting exported struct fields.
type reflectiveSource struct {
	identity IdentityFunc
}

func (s reflectiveSource) Identity(node any) (any, bool) {
	return s.identity(node)
}

// Edges returns the current values of node's object-valued fields and the
// elements of its object collections, in field declaration order.
func (s reflectiveSource) Edges(node any) ([]any, error) {
	v := reflect.ValueOf(node)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, nil
	}

	var edges []any
	for _, plan := range fieldPlans(v.Type()) {
		fv := v.FieldByIndex(plan.index)
		if plan.collection {
			elems, _ := snapshot(fv)
			edges = append(edges, elems...)
			continue
		}
		if fv.IsNil() {
			continue
		}
		edges = append(edges, fv.Interface())
	}
	return edges, nil
}

// fieldPlan locates one traversable field within a struct type.
type fieldPlan struct {
	index      []int
	collection bool
}

// plans caches field plans per struct type.
var plans sync.Map // map[reflect.Type][]fieldPlan

func fieldPlans(t reflect.Type) []fieldPlan {
	if cached, ok := plans.Load(t); ok {
		return cached.([]fieldPlan)
	}
	actual, _ := plans.LoadOrStore(t, appendFieldPlans(nil, t, nil))
	return actual.([]fieldPlan)
}

// appendFieldPlans collects the exported fields of t that can hold objects:
// pointers to structs, interfaces, and slices, arrays, or maps of those.
// Strings and other scalars never qualify. By-value struct fields are
// flattened into the parent since they carry no identity of their own.
// Only one level of collection is followed: [][]*T and *[]*T fields are
// not traversed.
func appendFieldPlans(out []fieldPlan, t reflect.Type, prefix []int) []fieldPlan {
	for i := range t.NumField() {
		f := t.Field(i)
		index := append(slices.Clone(prefix), i)

		if f.Type.Kind() == reflect.Struct {
			if f.IsExported() || f.Anonymous {
				out = appendFieldPlans(out, f.Type, index)
			}
			continue
		}
		if !f.IsExported() {
			continue
		}

		switch f.Type.Kind() {
		case reflect.Pointer, reflect.Interface:
			if holdsObject(f.Type) {
				out = append(out, fieldPlan{index: index})
			}
		case reflect.Slice, reflect.Array, reflect.Map:
			if holdsObject(f.Type.Elem()) {
				out = append(out, fieldPlan{index: index, collection: true})
			}
		}
	}
	return out
}

// holdsObject reports whether values of t can reference an object: an
// interface, or a pointer to a struct.
func holdsObject(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface:
		return true
	case reflect.Pointer:
		return t.Elem().Kind() == reflect.Struct
	default:
		return false
	}
}
