package core

import (
	"fmt"
	"strings"
	"sync"
)

// Registry maps capability names to invocable units. It is filled at startup
// and sealed before the first execution; the listing order is registration order.
type Registry struct {
	mu     sync.RWMutex
	items  map[string]Capability
	order  []string
	sealed bool
}

// NewRegistry returns an empty registry ready for registration.
func NewRegistry() *Registry {
	return &Registry{items: map[string]Capability{}}
}

// Register adds a capability. It must be invoked before Seal.
func (r *Registry) Register(name, description string, fn InvokeFunc) error {
	if fn == nil {
		return fmt.Errorf("agents.Registry: %q: %w", name, ErrNilInvoke)
	}

	key := normalizeKey(name)
	if key == "" {
		return fmt.Errorf("agents.Registry: capability missing name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("agents.Registry: sealed, cannot register %q", name)
	}
	if _, exists := r.items[key]; exists {
		return fmt.Errorf("agents.Registry: capability %q already registered", name)
	}

	r.items[key] = Capability{
		Name:        strings.TrimSpace(name),
		Description: description,
		Invoke:      fn,
	}
	r.order = append(r.order, key)
	return nil
}

// Seal freezes the registry. Further Register calls fail.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Resolve fetches a capability by name. Unknown names yield a
// *CapabilityNotFoundError, which matches ErrCapabilityNotFound.
func (r *Registry) Resolve(name string) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	capability, ok := r.items[normalizeKey(name)]
	if !ok {
		return Capability{}, &CapabilityNotFoundError{Name: name}
	}
	return capability, nil
}

// List returns capability names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.items[key].Name)
	}
	return out
}

// Describe returns metadata for all registered capabilities in registration order.
func (r *Registry) Describe() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, key := range r.order {
		c := r.items[key]
		out = append(out, Descriptor{Name: c.Name, Description: c.Description})
	}
	return out
}

// Len reports the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func normalizeKey(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}
