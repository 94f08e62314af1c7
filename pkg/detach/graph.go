package detach

import "reflect"

// GraphSource discovers the edges of an object graph whose nodes have
// type N.
type GraphSource[N any] interface {
	// Identity returns the identity token of node, or false when node is
	// absent and must not be visited.
	Identity(node N) (any, bool)

	// Edges returns the nodes directly related to node. The returned slice
	// is a snapshot owned by the caller.
	Edges(node N) ([]N, error)
}

// traverse visits every node reachable from root exactly once, calling
// visit on a node after all of its edges have been walked. It returns the
// number of distinct nodes reached. The first error stops the walk and is
// returned as is.
//
// Nodes without an identity are skipped, except root: callers reject an
// absent root before traversing, so a root without identity is a value
// that is visited once but cannot be recognized again.
func traverse[N any](src GraphSource[N], root N, visit func(N) error) (int, error) {
	visited := identitySet{}
	reached := 0

	var walk func(node N, isRoot bool) error
	walk = func(node N, isRoot bool) error {
		id, ok := src.Identity(node)
		switch {
		case ok && !visited.add(id):
			return nil
		case !ok && !isRoot:
			return nil
		}
		reached++
		edges, err := src.Edges(node)
		if err != nil {
			return err
		}
		for _, next := range edges {
			if err := walk(next, false); err != nil {
				return err
			}
		}
		return visit(node)
	}

	err := walk(root, true)
	return reached, err
}

// snapshot copies the elements of a slice, array, or map (its values) into
// a new slice so that walking them cannot observe later mutation of the
// collection. It reports false for any other kind.
func snapshot(v reflect.Value) ([]any, bool) {
	for v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		elems := make([]any, 0, v.Len())
		for i := range v.Len() {
			elems = append(elems, v.Index(i).Interface())
		}
		return elems, true
	case reflect.Map:
		elems := make([]any, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			elems = append(elems, iter.Value().Interface())
		}
		return elems, true
	default:
		return nil, false
	}
}
