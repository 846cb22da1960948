package httpapi

import (
	"sync"

	"github.com/r3e-network/flowengine/internal/flow"
)

// FlowRegistry holds tenant-scoped flow definitions by id, the lookup a
// cron-fired trigger needs (a trigger only carries a flow id, not the
// definition) and that the execute-by-id route resolves against. A direct
// execute(flow, inputs) call bypasses it entirely by shipping the
// definition inline as part of the request.
// Grounded on internal/config.InMemoryConfigStore's tenant-map-of-map
// shape.
type FlowRegistry struct {
	mu    sync.RWMutex
	flows map[string]map[string]*flow.Flow
}

// NewFlowRegistry builds an empty registry.
func NewFlowRegistry() *FlowRegistry {
	return &FlowRegistry{flows: map[string]map[string]*flow.Flow{}}
}

// Save registers or replaces a tenant's flow definition under id.
func (r *FlowRegistry) Save(tenantID, id string, f *flow.Flow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.flows[tenantID] == nil {
		r.flows[tenantID] = map[string]*flow.Flow{}
	}
	r.flows[tenantID][id] = f
}

// Get returns a tenant's flow definition, or nil if absent.
func (r *FlowRegistry) Get(tenantID, id string) *flow.Flow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.flows[tenantID][id]
}

// Delete removes a tenant's flow definition.
func (r *FlowRegistry) Delete(tenantID, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flows[tenantID], id)
}

// List returns every flow id registered for tenantID.
func (r *FlowRegistry) List(tenantID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.flows[tenantID]))
	for id := range r.flows[tenantID] {
		ids = append(ids, id)
	}
	return ids
}
