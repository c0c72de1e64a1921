package extension

import (
	"time"

	"github.com/xraph/grove"

	billing "github.com/civicledger/billing"
	"github.com/civicledger/billing/document"
	"github.com/civicledger/billing/household"
	"github.com/civicledger/billing/mirror"
	"github.com/civicledger/billing/plugin"
	"github.com/civicledger/billing/store"
	mongostore "github.com/civicledger/billing/store/mongo"
	pgstore "github.com/civicledger/billing/store/postgres"
)

// Option configures the billing Forge extension.
type Option func(*Extension)

// WithStore sets the store for the billing engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithMongoStore backs the engine with MongoDB via the given grove database.
func WithMongoStore(db *grove.DB) Option {
	return func(e *Extension) {
		e.store = mongostore.New(db)
	}
}

// WithPostgresStore backs the engine with PostgreSQL via the given grove
// database.
func WithPostgresStore(db *grove.DB) Option {
	return func(e *Extension) {
		e.store = pgstore.New(db)
	}
}

// WithDirectory sets the household directory collaborator.
func WithDirectory(d household.Directory) Option {
	return func(e *Extension) {
		e.households = d
	}
}

// WithEngineOption passes a billing.Option through to the underlying engine.
func WithEngineOption(opt billing.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a billing plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, billing.WithPlugin(p))
	}
}

// WithChain sets the external ledger client.
func WithChain(c mirror.Chain) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, billing.WithChain(c))
	}
}

// WithDocumentFeed sets the completed-document-order feed.
func WithDocumentFeed(f document.Feed) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, billing.WithDocumentFeed(f))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithMirrorBuffer sets the depth of the mirror dispatch queue.
func WithMirrorBuffer(n int) Option {
	return func(e *Extension) { e.config.MirrorBuffer = n }
}

// WithMirrorTimeout bounds each external-ledger replication attempt.
func WithMirrorTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.MirrorTimeout = d }
}
