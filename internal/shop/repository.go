package shop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/unhitch/internal/tracker"
	"github.com/mesh-intelligence/unhitch/pkg/types"
)

// Records is the record store a Repository reads from and saves to.
// *sqlite.Backend satisfies it.
type Records interface {
	tracker.Store
	Get(ctx context.Context, kind, key string) (types.Record, error)
	Find(ctx context.Context, kind, field string, value any) ([]types.Record, error)
}

// Repository opens units of work over the shop records.
type Repository struct {
	records Records
	logger  *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger passed to every Session. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRepository creates a Repository over records.
func NewRepository(records Records, opts ...Option) *Repository {
	r := &Repository{records: records, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Session is one unit of work. Entities read through a session are
// tracked by its Context, and navigations load on first access. ctx bounds
// every store read the session makes, including lazy loads.
type Session struct {
	ctx     context.Context
	records Records
	tc      *tracker.Context
}

// NewSession starts a unit of work. opts are applied to the session's
// tracking context after the repository's own store and logger.
func (r *Repository) NewSession(ctx context.Context, opts ...tracker.Option) (*Session, error) {
	s := &Session{ctx: ctx, records: r.records}
	model, err := s.model()
	if err != nil {
		return nil, err
	}
	base := []tracker.Option{
		tracker.WithStore(r.records),
		tracker.WithLogger(r.logger),
	}
	s.tc = tracker.New(model, append(base, opts...)...)
	return s, nil
}

// Tracker returns the session's tracking context.
func (s *Session) Tracker() *tracker.Context {
	return s.tc
}

// SaveChanges writes the session's pending changes.
func (s *Session) SaveChanges() (int, error) {
	return s.tc.SaveChanges(s.ctx)
}

// Customer loads the customer with key.
// Returns ErrNotFound if there is none.
func (s *Session) Customer(key string) (*Customer, error) {
	rec, err := s.records.Get(s.ctx, KindCustomer, key)
	if err != nil {
		return nil, err
	}
	return materialize[Customer](s, rec)
}

// Order loads the order with key.
// Returns ErrNotFound if there is none.
func (s *Session) Order(key string) (*Order, error) {
	rec, err := s.records.Get(s.ctx, KindOrder, key)
	if err != nil {
		return nil, err
	}
	return materialize[Order](s, rec)
}

// OrderGraph loads the order with key together with its customer and
// items, by reading the order's navigations.
func (s *Session) OrderGraph(key string) (*Order, error) {
	o, err := s.Order(key)
	if err != nil {
		return nil, err
	}
	e, err := s.tc.Entry(o)
	if err != nil {
		return nil, err
	}
	for _, nav := range e.Navigations() {
		if _, err := nav.CurrentValue(); err != nil {
			return nil, fmt.Errorf("load %s of order %s: %w", nav.Name(), key, err)
		}
	}
	return o, nil
}

// model declares the shop entities and their lazy relations for this
// session.
func (s *Session) model() (*tracker.Model, error) {
	m := tracker.NewModel()
	steps := []func() error{
		func() error { return m.Register(&Customer{}, KindCustomer, "CustomerID") },
		func() error { return m.Register(&Order{}, KindOrder, "OrderID") },
		func() error { return m.Register(&Item{}, KindItem, "ItemID") },
		func() error { return m.HasMany(&Customer{}, "Orders", s.loadCustomerOrders) },
		func() error { return m.HasOne(&Order{}, "Customer", s.loadOrderCustomer) },
		func() error { return m.HasMany(&Order{}, "Items", s.loadOrderItems) },
		func() error { return m.HasOne(&Item{}, "Order", s.loadItemOrder) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (s *Session) loadCustomerOrders(owner any) (any, error) {
	c := owner.(*Customer)
	orders, err := materializeAll[Order](s, KindOrder, "customer_id", c.CustomerID)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if o.Customer == nil {
			o.Customer = c
		}
	}
	return orders, nil
}

func (s *Session) loadOrderCustomer(owner any) (any, error) {
	o := owner.(*Order)
	if o.CustomerID == "" {
		return nil, nil
	}
	return s.Customer(o.CustomerID)
}

func (s *Session) loadOrderItems(owner any) (any, error) {
	o := owner.(*Order)
	items, err := materializeAll[Item](s, KindItem, "order_id", o.OrderID)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.Order == nil {
			it.Order = o
		}
	}
	return items, nil
}

func (s *Session) loadItemOrder(owner any) (any, error) {
	it := owner.(*Item)
	if it.OrderID == "" {
		return nil, nil
	}
	return s.Order(it.OrderID)
}

// materialize returns the tracked instance for rec, decoding and attaching
// a new one if the session has not seen it yet.
func materialize[T any](s *Session, rec types.Record) (*T, error) {
	if e, ok := s.tc.EntryByKey(rec.Kind, rec.Key); ok {
		v, ok := e.Entity().(*T)
		if !ok {
			return nil, fmt.Errorf("%w: %s %s is tracked as %T", types.ErrInvalidModel, rec.Kind, rec.Key, e.Entity())
		}
		return v, nil
	}
	v := new(T)
	if err := json.Unmarshal(rec.Data, v); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", rec.Kind, rec.Key, err)
	}
	if _, err := s.tc.Attach(v); err != nil {
		return nil, err
	}
	return v, nil
}

func materializeAll[T any](s *Session, kind, field string, value any) ([]*T, error) {
	recs, err := s.records.Find(s.ctx, kind, field, value)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(recs))
	for _, rec := range recs {
		v, err := materialize[T](s, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
