package engine

import (
	"sync"

	"github.com/rasad8686/BotBuilder-Platform-sub005/types"
)

type registryEntry struct {
	capability types.Capability
	definition *types.AgentDefinition
}

// Registry caches runnable agent capabilities by agent id. It is owned by
// one Engine instance, not process-global, so concurrent engines (tests,
// multi-tenant deployments) never share entries. Clear must run only when
// no execution is in flight.
type Registry struct {
	mu      sync.RWMutex
	entries map[int64]registryEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int64]registryEntry)}
}

// Register stores a capability with the definition it was built from.
// Registering an id twice replaces the earlier entry.
func (r *Registry) Register(id int64, capability types.Capability, def *types.AgentDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = registryEntry{capability: capability, definition: def}
}

// Get returns the capability and definition registered under id.
func (r *Registry) Get(id int64) (types.Capability, *types.AgentDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	return entry.capability, entry.definition, ok
}

// Clear drops every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[int64]registryEntry)
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
