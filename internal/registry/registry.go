// Package registry holds the process-wide set of jurisdiction adapters,
// keyed by lowercase country code.
package registry

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"rechtskern/internal/adapter"
	"rechtskern/internal/logging"
)

var (
	// ErrUnknownCountry reports a lookup for an unregistered jurisdiction.
	ErrUnknownCountry = errors.New("unknown country")

	// ErrDuplicateCountry reports a second registration for a code.
	ErrDuplicateCountry = errors.New("country already registered")
)

// Registry is a thread-safe adapter table. Country codes are
// case-insensitive; the zero value is not usable, call New.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]adapter.Adapter
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{adapters: make(map[string]adapter.Adapter)}
}

// Register adds an adapter under its descriptor's jurisdiction code.
func (r *Registry) Register(a adapter.Adapter) error {
	code := strings.ToLower(strings.TrimSpace(a.Descriptor().JurisdictionCode))
	if code == "" {
		return errors.New("adapter has empty jurisdiction code")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[code]; exists {
		return ErrDuplicateCountry
	}
	r.adapters[code] = a
	logging.Get(logging.CategoryRegistry).Infof("registered adapter: %s", code)
	return nil
}

// Get returns the adapter for a country code.
func (r *Registry) Get(country string) (adapter.Adapter, error) {
	code := strings.ToLower(strings.TrimSpace(country))
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[code]
	if !ok {
		return nil, ErrUnknownCountry
	}
	return a, nil
}

// Codes returns the registered country codes in lowercase sorted order.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.adapters))
	for code := range r.adapters {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// All returns the registered adapters ordered by country code.
func (r *Registry) All() []adapter.Adapter {
	codes := r.Codes()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]adapter.Adapter, 0, len(codes))
	for _, code := range codes {
		out = append(out, r.adapters[code])
	}
	return out
}
