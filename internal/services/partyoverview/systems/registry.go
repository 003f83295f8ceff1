// Package systems registers the ruleset adapters the overview can project
// actors with.
package systems

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/party-overview/internal/platform/errors"
	"github.com/louisbranch/party-overview/internal/services/partyoverview/domain"
)

// Registry holds ruleset adapters keyed by ID.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]domain.SystemAdapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]domain.SystemAdapter)}
}

// Register adds adapter. Empty and duplicate IDs are rejected.
func (r *Registry) Register(adapter domain.SystemAdapter) error {
	if adapter == nil {
		return fmt.Errorf("system adapter is required")
	}
	id := strings.TrimSpace(adapter.ID())
	if id == "" {
		return fmt.Errorf("system adapter must define an id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[id]; exists {
		return fmt.Errorf("system %s already registered", id)
	}
	r.adapters[id] = adapter
	return nil
}

// Get returns the adapter registered under id.
func (r *Registry) Get(id string) (domain.SystemAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id = strings.TrimSpace(id)
	adapter, ok := r.adapters[id]
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeUnknownSystem,
			fmt.Sprintf("system %q is not registered", id),
			map[string]string{"System": id},
		)
	}
	return adapter, nil
}

// IDs returns the registered IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
