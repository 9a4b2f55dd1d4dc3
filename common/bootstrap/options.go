package bootstrap

import (
	"github.com/clipstream/streamgate/common/config"
	"github.com/clipstream/streamgate/common/db"
	"github.com/clipstream/streamgate/common/logger"
)

// Option configures the bootstrap process
type Option func(*options)

type options struct {
	customConfig  *config.Config
	customLogger  *logger.Logger
	skipDB        bool
	skipQueue     bool
	skipCache     bool
	skipTelemetry bool
	dbInitHook    func(*db.DB) error
}

func defaultOptions() *options {
	return &options{}
}

// WithConfig supplies a pre-built configuration instead of loading from env
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.customConfig = cfg
	}
}

// WithLogger supplies a pre-built logger
func WithLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.customLogger = log
	}
}

// WithoutDB skips database initialization
func WithoutDB() Option {
	return func(o *options) {
		o.skipDB = true
	}
}

// WithoutQueue skips queue initialization
func WithoutQueue() Option {
	return func(o *options) {
		o.skipQueue = true
	}
}

// WithoutCache skips cache initialization
func WithoutCache() Option {
	return func(o *options) {
		o.skipCache = true
	}
}

// WithoutTelemetry skips telemetry initialization
func WithoutTelemetry() Option {
	return func(o *options) {
		o.skipTelemetry = true
	}
}

// WithDBInitHook runs after the database connects, before Setup returns.
// Useful for schema migrations.
func WithDBInitHook(hook func(*db.DB) error) Option {
	return func(o *options) {
		o.dbInitHook = hook
	}
}
