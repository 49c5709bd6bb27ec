package persistence

import (
	"context"
	"sync/atomic"
)

// ProxyObserver is invoked whenever PROXY_URL is written through an
// ObservedStore's SetConfig.
type ProxyObserver func(ctx context.Context, proxyURL string)

// ObservedStore wraps a Store, bumping a generation counter and notifying
// onProxyChange every time KeyProxyURL is set, per spec.md §4.1/§4.4:
// "Changing PROXY_URL must invalidate any cached browser instance on next
// acquire." The Browser Pool observes changes through the notification
// rather than polling the store directly.
type ObservedStore struct {
	Store
	onProxyChange   ProxyObserver
	proxyGeneration atomic.Int64
}

// NewObservedStore wraps store. onProxyChange may be nil.
func NewObservedStore(store Store, onProxyChange ProxyObserver) *ObservedStore {
	return &ObservedStore{Store: store, onProxyChange: onProxyChange}
}

// SetConfig implements ConfigStore. It delegates to the wrapped store first,
// then bumps the proxy generation counter and fires onProxyChange when key
// is KeyProxyURL.
func (s *ObservedStore) SetConfig(ctx context.Context, key, value, description string) error {
	if err := s.Store.SetConfig(ctx, key, value, description); err != nil {
		return err
	}
	if key == KeyProxyURL {
		s.proxyGeneration.Add(1)
		if s.onProxyChange != nil {
			s.onProxyChange(ctx, value)
		}
	}
	return nil
}

// ProxyGeneration returns how many times PROXY_URL has been written through
// this store since it was wrapped.
func (s *ObservedStore) ProxyGeneration() int64 { return s.proxyGeneration.Load() }

// Close releases the wrapped store's resources, if it holds any. Safe to
// call when the wrapped store has no Close method (e.g. MemoryStore).
func (s *ObservedStore) Close() error {
	if closer, ok := s.Store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
