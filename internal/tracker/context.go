package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/unhitch/pkg/detach"
	"github.com/mesh-intelligence/unhitch/pkg/types"
)

// ErrNoStore is returned by SaveChanges when the context has no Store.
var ErrNoStore = errors.New("no store configured")

// Store persists the changes of a unit of work. Apply must write the whole
// changeset or nothing.
type Store interface {
	Apply(ctx context.Context, changes types.Changeset) error
}

// Context tracks entity instances and their states. It implements
// types.TrackingContext.
type Context struct {
	model    *Model
	store    Store
	logger   *slog.Logger
	now      func() time.Time
	entries  map[any]*Entry
	order    []*Entry
	observer func(StateChange)
}

// StateChange describes one SetState transition.
type StateChange struct {
	Entry    *Entry
	From, To types.State
}

// Option configures a Context.
type Option func(*Context)

// WithStore sets the Store used by SaveChanges.
func WithStore(s Store) Option {
	return func(c *Context) {
		c.store = s
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used to stamp saved records.
func WithClock(now func() time.Time) Option {
	return func(c *Context) {
		if now != nil {
			c.now = now
		}
	}
}

// WithObserver registers fn to be called after every state transition
// made through Entry.SetState.
func WithObserver(fn func(StateChange)) Option {
	return func(c *Context) {
		c.observer = fn
	}
}

// New creates a Context that manages the entity types declared in model.
func New(model *Model, opts ...Option) *Context {
	c := &Context{
		model:   model,
		logger:  slog.Default(),
		now:     time.Now,
		entries: make(map[any]*Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EntityTypes returns the registered entity types in registration order.
func (c *Context) EntityTypes() []reflect.Type {
	return slices.Clone(c.model.order)
}

// Len returns the number of tracked entries.
func (c *Context) Len() int {
	return len(c.entries)
}

// Lookup returns the entry tracking entity. Values of unregistered types
// are reported as not tracked.
func (c *Context) Lookup(entity any) (types.Entry, bool, error) {
	e, ok := c.find(entity)
	if !ok {
		return nil, false, nil
	}
	return e, true, nil
}

// Entry returns the entry tracking entity.
// Returns ErrNotTracked if entity is not tracked.
func (c *Context) Entry(entity any) (*Entry, error) {
	e, ok := c.find(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %T", types.ErrNotTracked, entity)
	}
	return e, nil
}

// EntryByKey returns the entry tracking the entity of kind with key.
func (c *Context) EntryByKey(kind, key string) (*Entry, bool) {
	for _, e := range c.order {
		if e.et.kind == kind && e.Key() == key {
			return e, true
		}
	}
	return nil, false
}

// Entries returns the tracked entries in the order they were first tracked.
func (c *Context) Entries() []*Entry {
	return slices.Clone(c.order)
}

// Attach starts tracking entity as Unchanged. Attaching an entity that is
// already tracked returns its existing entry.
func (c *Context) Attach(entity any) (*Entry, error) {
	et, err := c.entityType(entity)
	if err != nil {
		return nil, err
	}
	if e, ok := c.entries[entity]; ok {
		return e, nil
	}
	return c.track(entity, et, types.StateUnchanged), nil
}

// Add starts tracking entity as Added. An empty key is replaced with a new
// UUID v7.
// Returns ErrInvalidTransition if entity is already tracked in another
// state.
func (c *Context) Add(entity any) (*Entry, error) {
	et, err := c.entityType(entity)
	if err != nil {
		return nil, err
	}
	if e, ok := c.entries[entity]; ok {
		if e.state == types.StateAdded {
			return e, nil
		}
		return nil, fmt.Errorf("%w: %s %s is %s", types.ErrInvalidTransition, et.kind, e.Key(), e.state)
	}
	if et.key(entity) == "" {
		et.setKey(entity, newKey())
	}
	return c.track(entity, et, types.StateAdded), nil
}

// MarkModified flags a tracked Unchanged entity as Modified. Added and
// Modified entities are left as they are.
func (c *Context) MarkModified(entity any) error {
	e, err := c.Entry(entity)
	if err != nil {
		return err
	}
	switch e.state {
	case types.StateUnchanged:
		return e.SetState(types.StateModified)
	case types.StateAdded, types.StateModified:
		return nil
	default:
		return fmt.Errorf("%w: cannot modify %s entity", types.ErrInvalidTransition, e.state)
	}
}

// Remove flags a tracked entity for deletion. An Added entity was never
// saved, so it is simply forgotten.
func (c *Context) Remove(entity any) error {
	e, err := c.Entry(entity)
	if err != nil {
		return err
	}
	if e.state == types.StateAdded {
		return e.SetState(types.StateDetached)
	}
	return e.SetState(types.StateDeleted)
}

// DetachGraph detaches root and everything reachable from it, discovering
// the graph with the given strategy (types.StrategyReflect or
// types.StrategyNavigation).
func (c *Context) DetachGraph(root any, strategy string) error {
	d := detach.New(detach.WithLogger(c.logger))
	switch strategy {
	case "", types.StrategyReflect:
		return d.Detach(c, root)
	case types.StrategyNavigation:
		e, err := c.Entry(root)
		if err != nil {
			return err
		}
		return d.DetachWithNavigations(e)
	default:
		return fmt.Errorf("%w: %q", types.ErrStrategyUnknown, strategy)
	}
}

// SaveChanges writes Added and Modified entities and deletes Deleted ones
// through the Store in one changeset, after validating every entity to be
// written. On success Added and Modified entries become Unchanged and
// Deleted entries stop being tracked. Detached entities are never written.
// Returns the number of records written or deleted.
func (c *Context) SaveChanges(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, ErrNoStore
	}

	var (
		changes types.Changeset
		saved   []*Entry
	)
	stamp := c.now().UTC()
	for _, e := range c.order {
		switch e.state {
		case types.StateAdded, types.StateModified:
			rec, err := e.record(stamp)
			if err != nil {
				return 0, err
			}
			changes.Puts = append(changes.Puts, rec)
		case types.StateDeleted:
			changes.Deletes = append(changes.Deletes, types.RecordRef{Kind: e.Kind(), Key: e.Key()})
		default:
			continue
		}
		saved = append(saved, e)
	}

	if changes.Len() == 0 {
		c.logger.Debug("no changes to save")
		return 0, nil
	}
	if err := c.store.Apply(ctx, changes); err != nil {
		return 0, fmt.Errorf("apply changes: %w", err)
	}

	for _, e := range saved {
		if e.state == types.StateDeleted {
			c.untrack(e)
			e.state = types.StateDetached
			continue
		}
		e.state = types.StateUnchanged
	}

	c.logger.Info("changes saved",
		"puts", len(changes.Puts),
		"deletes", len(changes.Deletes))
	return changes.Len(), nil
}

// find returns the entry for entity without panicking on values that
// cannot be map keys.
func (c *Context) find(entity any) (*Entry, bool) {
	if _, ok := c.model.lookup(entity); !ok {
		return nil, false
	}
	e, ok := c.entries[entity]
	return e, ok
}

func (c *Context) entityType(entity any) (*entityType, error) {
	if entity == nil {
		return nil, fmt.Errorf("%w: entity is nil", types.ErrInvalidArgument)
	}
	et, ok := c.model.lookup(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %T", types.ErrUnknownType, entity)
	}
	if reflect.ValueOf(entity).IsNil() {
		return nil, fmt.Errorf("%w: entity is a nil %T", types.ErrInvalidArgument, entity)
	}
	return et, nil
}

func (c *Context) track(entity any, et *entityType, state types.State) *Entry {
	e := &Entry{ctx: c, entity: entity, et: et, state: state}
	c.entries[entity] = e
	c.order = append(c.order, e)
	c.logger.Debug("entity tracked", "kind", et.kind, "key", e.Key(), "state", state)
	return e
}

func (c *Context) untrack(e *Entry) {
	delete(c.entries, e.entity)
	c.order = slices.DeleteFunc(c.order, func(o *Entry) bool { return o == e })
}

// newKey generates a UUID v7 entity key.
func newKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}
