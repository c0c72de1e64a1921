package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onFeeScheduled        []OnFeeScheduled
	onPaymentRecorded     []OnPaymentRecorded
	onPaymentEntryRemoved []OnPaymentEntryRemoved
	onRecordPurged        []OnRecordPurged
	onTransactionCreated  []OnTransactionCreated
	onMirrorApplied       []OnMirrorApplied
	onMirrorSkipped       []OnMirrorSkipped
	onMirrorFailed        []OnMirrorFailed
	onIntegrityChecked    []OnIntegrityChecked
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnFeeScheduled); ok {
		r.onFeeScheduled = append(r.onFeeScheduled, v)
	}
	if v, ok := p.(OnPaymentRecorded); ok {
		r.onPaymentRecorded = append(r.onPaymentRecorded, v)
	}
	if v, ok := p.(OnPaymentEntryRemoved); ok {
		r.onPaymentEntryRemoved = append(r.onPaymentEntryRemoved, v)
	}
	if v, ok := p.(OnRecordPurged); ok {
		r.onRecordPurged = append(r.onRecordPurged, v)
	}
	if v, ok := p.(OnTransactionCreated); ok {
		r.onTransactionCreated = append(r.onTransactionCreated, v)
	}
	if v, ok := p.(OnMirrorApplied); ok {
		r.onMirrorApplied = append(r.onMirrorApplied, v)
	}
	if v, ok := p.(OnMirrorSkipped); ok {
		r.onMirrorSkipped = append(r.onMirrorSkipped, v)
	}
	if v, ok := p.(OnMirrorFailed); ok {
		r.onMirrorFailed = append(r.onMirrorFailed, v)
	}
	if v, ok := p.(OnIntegrityChecked); ok {
		r.onIntegrityChecked = append(r.onIntegrityChecked, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnFeeScheduled)(nil)).Elem(), "OnFeeScheduled")
	checkInterface(reflect.TypeOf((*OnPaymentRecorded)(nil)).Elem(), "OnPaymentRecorded")
	checkInterface(reflect.TypeOf((*OnPaymentEntryRemoved)(nil)).Elem(), "OnPaymentEntryRemoved")
	checkInterface(reflect.TypeOf((*OnRecordPurged)(nil)).Elem(), "OnRecordPurged")
	checkInterface(reflect.TypeOf((*OnTransactionCreated)(nil)).Elem(), "OnTransactionCreated")
	checkInterface(reflect.TypeOf((*OnMirrorApplied)(nil)).Elem(), "OnMirrorApplied")
	checkInterface(reflect.TypeOf((*OnMirrorSkipped)(nil)).Elem(), "OnMirrorSkipped")
	checkInterface(reflect.TypeOf((*OnMirrorFailed)(nil)).Elem(), "OnMirrorFailed")
	checkInterface(reflect.TypeOf((*OnIntegrityChecked)(nil)).Elem(), "OnIntegrityChecked")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitFeeScheduled emits a fee schedule append event.
func (r *Registry) EmitFeeScheduled(ctx context.Context, entry interface{}) {
	r.mu.RLock()
	plugins := r.onFeeScheduled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnFeeScheduled(ctx, entry)
		}); err != nil {
			r.logger.Warn("plugin OnFeeScheduled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaymentRecorded emits a payment recorded event.
func (r *Registry) EmitPaymentRecorded(ctx context.Context, record, entry interface{}) {
	r.mu.RLock()
	plugins := r.onPaymentRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentRecorded(ctx, record, entry)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentRecorded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaymentEntryRemoved emits a payment entry removal event.
func (r *Registry) EmitPaymentEntryRemoved(ctx context.Context, record, entry interface{}) {
	r.mu.RLock()
	plugins := r.onPaymentEntryRemoved
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentEntryRemoved(ctx, record, entry)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentEntryRemoved failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRecordPurged emits a record purge event.
func (r *Registry) EmitRecordPurged(ctx context.Context, record interface{}) {
	r.mu.RLock()
	plugins := r.onRecordPurged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRecordPurged(ctx, record)
		}); err != nil {
			r.logger.Warn("plugin OnRecordPurged failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTransactionCreated emits a transaction created event.
func (r *Registry) EmitTransactionCreated(ctx context.Context, txn interface{}) {
	r.mu.RLock()
	plugins := r.onTransactionCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTransactionCreated(ctx, txn)
		}); err != nil {
			r.logger.Warn("plugin OnTransactionCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitMirrorApplied emits a mirror applied event.
func (r *Registry) EmitMirrorApplied(ctx context.Context, kind, originID, txID string) {
	r.mu.RLock()
	plugins := r.onMirrorApplied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnMirrorApplied(ctx, kind, originID, txID)
		}); err != nil {
			r.logger.Warn("plugin OnMirrorApplied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitMirrorSkipped emits a mirror skipped event.
func (r *Registry) EmitMirrorSkipped(ctx context.Context, kind, originID string) {
	r.mu.RLock()
	plugins := r.onMirrorSkipped
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnMirrorSkipped(ctx, kind, originID)
		}); err != nil {
			r.logger.Warn("plugin OnMirrorSkipped failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitMirrorFailed emits a mirror failed event.
func (r *Registry) EmitMirrorFailed(ctx context.Context, kind, originID string, cause error) {
	r.mu.RLock()
	plugins := r.onMirrorFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnMirrorFailed(ctx, kind, originID, cause)
		}); err != nil {
			r.logger.Warn("plugin OnMirrorFailed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitIntegrityChecked emits an integrity check event.
func (r *Registry) EmitIntegrityChecked(ctx context.Context, originID, status string) {
	r.mu.RLock()
	plugins := r.onIntegrityChecked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnIntegrityChecked(ctx, originID, status)
		}); err != nil {
			r.logger.Warn("plugin OnIntegrityChecked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the billing pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
