package booking

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps provider types to booking handlers. It is an explicit object
// constructed at process start and passed to the executor, so tests can build
// isolated fixtures instead of sharing package state.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register installs a handler for a provider type. Lookup is case-insensitive.
func (r *Registry) Register(providerType string, handler HandlerFunc) error {
	key := strings.ToLower(strings.TrimSpace(providerType))
	if key == "" {
		return fmt.Errorf("provider type must be non-empty")
	}
	if handler == nil {
		return fmt.Errorf("handler must be non-nil")
	}
	r.mu.Lock()
	r.handlers[key] = handler
	r.mu.Unlock()
	return nil
}

func (r *Registry) Unregister(providerType string) {
	r.mu.Lock()
	delete(r.handlers, strings.ToLower(strings.TrimSpace(providerType)))
	r.mu.Unlock()
}

func (r *Registry) Lookup(providerType string) (HandlerFunc, error) {
	r.mu.RLock()
	h, ok := r.handlers[strings.ToLower(strings.TrimSpace(providerType))]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotRegisteredError{ProviderType: providerType}
	}
	return h, nil
}

// Types lists registered provider types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}
