package snapshot

import (
	"github.com/rs/zerolog"

	"pkg.world.dev/world-engine/ecstore/component"
	"pkg.world.dev/world-engine/ecstore/gamestate"
)

const defaultMaxLoggedWarnings = 20

type options struct {
	logger    zerolog.Logger
	cache     *ValueCache
	filter    func(component.Desc) bool
	maxLogged int
	worldOpts []gamestate.Option
}

type Option func(*options)

// WithLogger sets the logger that receives deserialization warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithValueCache reuses encoded component values across Serialize calls while their column is unchanged.
func WithValueCache(cache *ValueCache) Option {
	return func(o *options) {
		o.cache = cache
	}
}

// WithFilter selects the components that are written and accepted. Defaults to components carrying the
// Serializable attribute.
func WithFilter(filter func(component.Desc) bool) Option {
	return func(o *options) {
		o.filter = filter
	}
}

// WithMaxLoggedWarnings caps how many warnings are logged individually. A negative value logs all of them.
func WithMaxLoggedWarnings(limit int) Option {
	return func(o *options) {
		o.maxLogged = limit
	}
}

// WithWorldOptions is passed to gamestate.NewWorld when deserializing into a new world.
func WithWorldOptions(opts ...gamestate.Option) Option {
	return func(o *options) {
		o.worldOpts = append(o.worldOpts, opts...)
	}
}

func serializable(d component.Desc) bool {
	return d.Has(component.Serializable)
}

func newOptions(opts []Option) options {
	o := options{
		logger:    zerolog.Nop(),
		filter:    serializable,
		maxLogged: defaultMaxLoggedWarnings,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
