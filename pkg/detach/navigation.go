package detach

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/mesh-intelligence/unhitch/pkg/types"
)

// DetachWithNavigations detaches entry and every entry reachable through
// the navigations declared in its context's metadata. Related values that
// the context does not track, and entries that are already detached, are
// not entered.
//
// Returns ErrInvalidArgument when entry is nil or has no context. Errors
// from the context or from reading navigations are returned unmodified.
func (d *Detacher) DetachWithNavigations(entry types.Entry) error {
	if isNil(entry) {
		return fmt.Errorf("%w: entry is nil", types.ErrInvalidArgument)
	}
	if isNil(entry.Context()) {
		return fmt.Errorf("%w: entry has no tracking context", types.ErrInvalidArgument)
	}

	logger := d.log()
	debug := logger.Enabled(context.Background(), slog.LevelDebug)
	detached := 0
	visited, err := traverse[types.Entry](navigationSource{identity: d.identity}, entry, func(e types.Entry) error {
		if e.State() == types.StateDetached {
			return nil
		}
		if err := e.SetState(types.StateDetached); err != nil {
			return err
		}
		detached++
		if debug {
			logger.Debug("entry detached", "type", typeName(reflect.TypeOf(e.Entity())))
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Debug("detach complete",
		"strategy", types.StrategyNavigation,
		"root", typeName(reflect.TypeOf(entry.Entity())),
		"visited", visited,
		"detached", detached)
	return nil
}

// navigationSource finds edges through an entry's declared navigations.
// Entries are keyed by the identity of their entity, since contexts may
// hand out a fresh entry wrapper on every lookup. Entities without an
// identity (struct values) are keyed by the entry itself.
type navigationSource struct {
	identity IdentityFunc
}

func (s navigationSource) Identity(e types.Entry) (any, bool) {
	if isNil(e) {
		return nil, false
	}
	if id, ok := s.identity(e.Entity()); ok {
		return id, true
	}
	return PointerIdentity(e)
}

func (s navigationSource) Edges(e types.Entry) ([]types.Entry, error) {
	tc := e.Context()
	if isNil(tc) {
		return nil, nil
	}

	var edges []types.Entry
	for _, nav := range e.Navigations() {
		value, err := nav.CurrentValue()
		if err != nil {
			return nil, err
		}
		if isNil(value) {
			continue
		}

		related, ok := snapshot(reflect.ValueOf(value))
		if !ok {
			related = []any{value}
		}
		for _, r := range related {
			if isNil(r) {
				continue
			}
			re, tracked, err := tc.Lookup(r)
			if err != nil {
				return nil, err
			}
			if !tracked || re.State() == types.StateDetached {
				continue
			}
			edges = append(edges, re)
		}
	}
	return edges, nil
}
