package billing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/civicledger/billing/document"
	"github.com/civicledger/billing/household"
	"github.com/civicledger/billing/mirror"
	"github.com/civicledger/billing/plugin"
	"github.com/civicledger/billing/store"
)

// Engine is the municipal utility billing engine: fee schedule resolution,
// the utility payment ledger, revenue aggregation, and external-ledger
// mirroring behind one facade.
type Engine struct {
	store      store.Store
	households household.Directory
	documents  document.Feed
	chain      mirror.Chain
	plugins    *plugin.Registry
	logger     *slog.Logger

	// Per-key write serialization for payment records.
	locks keyedLocks

	// Background mirror dispatch
	mirrorQueue chan mirrorJob
	stopChan    chan struct{}
	wg          sync.WaitGroup

	// Configuration
	mirrorTimeout time.Duration
	mirrorBuffer  int
}

// New creates a new Engine. The store holds fee schedules, payment records,
// and transactions; the directory resolves households and residents.
func New(s store.Store, households household.Directory, opts ...Option) *Engine {
	e := &Engine{
		store:         s,
		households:    households,
		documents:     document.NewStaticFeed(),
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		stopChan:      make(chan struct{}),
		mirrorTimeout: 5 * time.Second,
		mirrorBuffer:  1024,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.mirrorQueue = make(chan mirrorJob, e.mirrorBuffer)
	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithChain sets the external ledger client. Without one, mirror requests
// stay pending until a chain is configured and the outbox sweep retries them.
func WithChain(c mirror.Chain) Option {
	return func(e *Engine) {
		e.chain = c
	}
}

// WithDocumentFeed sets the completed-document-order feed consumed by the
// revenue aggregator.
func WithDocumentFeed(f document.Feed) Option {
	return func(e *Engine) {
		e.documents = f
	}
}

// WithMirrorConfig configures the mirror dispatch queue depth and the
// per-attempt timeout on external ledger calls.
func WithMirrorConfig(buffer int, timeout time.Duration) Option {
	return func(e *Engine) {
		if buffer > 0 {
			e.mirrorBuffer = buffer
		}
		if timeout > 0 {
			e.mirrorTimeout = timeout
		}
	}
}

// Start migrates the store and begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.wg.Add(1)
	go e.mirrorWorker()

	e.logger.Info("billing engine started",
		"mirror_buffer", e.mirrorBuffer,
		"mirror_timeout", e.mirrorTimeout,
		"chain_configured", e.chain != nil,
	)

	return nil
}

// Stop drains the mirror queue, shuts down plugins, and closes the store.
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close(ctx)
}

// Plugins exposes the plugin registry, for plugins that resolve peers
// during OnInit.
func (e *Engine) Plugins() *plugin.Registry {
	return e.plugins
}

// keyedLocks serializes writers per payment record key. Cross-key
// operations proceed in parallel.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// acquire locks the mutex for key and returns a release func. Lock entries
// are reference counted and removed once the last holder releases.
func (k *keyedLocks) acquire(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
