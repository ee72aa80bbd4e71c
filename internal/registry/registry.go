// Package registry maintains the origin connection allowlist. A connected
// origin may transact without a fresh connection prompt, but connection
// status never authorizes data operations on its own.
package registry

import (
	"log/slog"

	"github.com/Lisboaa111/Nillion-Keychain/internal/metrics"
	"github.com/Lisboaa111/Nillion-Keychain/internal/store"
)

// Notifier delivers disconnect broadcasts to open tabs matching an origin,
// so page-side state invalidates without a reload.
type Notifier interface {
	NotifyDisconnected(origin string)
}

// NopNotifier discards notifications. Useful when no tabs are attached.
type NopNotifier struct{}

// NotifyDisconnected implements Notifier.
func (NopNotifier) NotifyDisconnected(string) {}

// Registry wraps the durable connection map and fans out disconnect events.
type Registry struct {
	store    store.Store
	notifier Notifier
	logger   *slog.Logger
}

// New builds a Registry. A nil notifier is replaced with NopNotifier.
func New(s store.Store, n Notifier, logger *slog.Logger) *Registry {
	if n == nil {
		n = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: s, notifier: n, logger: logger}
}

// IsConnected reports whether origin is on the allowlist.
func (r *Registry) IsConnected(origin string) (bool, error) {
	return r.store.IsConnected(origin)
}

// MarkConnected adds origin to the allowlist.
func (r *Registry) MarkConnected(origin string) error {
	if err := r.store.MarkConnected(origin); err != nil {
		return err
	}
	r.logger.Info("site connected", "origin", origin)
	r.updateGauge()
	return nil
}

// Remove drops origin from the allowlist and notifies matching tabs so
// their cached isConnected/DID state is invalidated.
func (r *Registry) Remove(origin string) error {
	if err := r.store.RemoveConnection(origin); err != nil {
		return err
	}
	r.logger.Info("site disconnected", "origin", origin)
	r.notifier.NotifyDisconnected(origin)
	r.updateGauge()
	return nil
}

// List returns all connected origins, sorted.
func (r *Registry) List() ([]string, error) {
	return r.store.ListConnections()
}

func (r *Registry) updateGauge() {
	origins, err := r.store.ListConnections()
	if err != nil {
		return
	}
	metrics.ConnectedSites.Set(float64(len(origins)))
}
