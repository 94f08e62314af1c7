package detach

import "reflect"

// IdentityFunc returns an opaque comparable token identifying v. It reports
// false when v is absent or has no identity (non-reference values).
type IdentityFunc func(v any) (any, bool)

// mapIdentity identifies map and channel values, which are not valid map
// keys themselves.
type mapIdentity struct {
	typ reflect.Type
	ptr uintptr
}

// PointerIdentity is the default IdentityFunc. Pointers identify
// themselves, so two distinct instances with equal field values remain
// distinct nodes.
func PointerIdentity(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.UnsafePointer:
		if rv.IsNil() {
			return nil, false
		}
		return v, true
	case reflect.Map, reflect.Chan:
		if rv.IsNil() {
			return nil, false
		}
		return mapIdentity{typ: rv.Type(), ptr: rv.Pointer()}, true
	default:
		return nil, false
	}
}

// identitySet records the identity tokens visited during one call.
type identitySet map[any]struct{}

// add inserts id and reports whether it was not already present.
func (s identitySet) add(id any) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// isNil reports whether v is a nil interface or an interface holding a nil
// pointer, map, slice, channel, or func.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}

// typeName returns a short name for t, dereferencing pointers.
func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
