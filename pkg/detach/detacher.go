package detach

import (
	"log/slog"

	"github.com/mesh-intelligence/unhitch/pkg/types"
)

// Detacher detaches object graphs from tracking contexts. The zero value
// is not usable; construct one with New. A Detacher retains nothing between
// calls, so one instance may serve any number of contexts.
type Detacher struct {
	logger   *slog.Logger
	identity IdentityFunc
}

// Option configures a Detacher.
type Option func(*Detacher)

// WithLogger sets the logger used for traversal records. By default
// slog.Default() is used at call time.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detacher) {
		d.logger = logger
	}
}

// WithIdentity replaces PointerIdentity as the function keying the visited
// set.
func WithIdentity(fn IdentityFunc) Option {
	return func(d *Detacher) {
		if fn != nil {
			d.identity = fn
		}
	}
}

// New creates a Detacher.
func New(opts ...Option) *Detacher {
	d := &Detacher{identity: PointerIdentity}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Detacher) log() *slog.Logger {
	if d.logger != nil {
		return d.logger
	}
	return slog.Default()
}

// Detach detaches root and every entity reachable from its exported fields
// from tc using a default Detacher. See Detacher.Detach.
func Detach(tc types.TrackingContext, root any) error {
	return New().Detach(tc, root)
}

// DetachWithNavigations detaches entry and every entry reachable through
// its navigations using a default Detacher. See
// Detacher.DetachWithNavigations.
func DetachWithNavigations(entry types.Entry) error {
	return New().DetachWithNavigations(entry)
}
