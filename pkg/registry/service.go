package registry

import (
	"strings"
	"sync"

	"github.com/cuemby/relaybroker/pkg/breaker"
	"github.com/cuemby/relaybroker/pkg/brokererr"
	"github.com/cuemby/relaybroker/pkg/strategy"
	"github.com/cuemby/relaybroker/pkg/types"
)

// internalPrefix marks reserved, broker-owned actions such as $node.list.
const internalPrefix = "$node."

func isInternal(name string) bool {
	return strings.HasPrefix(name, internalPrefix)
}

type serviceKey struct {
	name, version, nodeID string
}

// ListFilter narrows ServiceCatalog.List's projection (spec §4.2).
type ListFilter struct {
	OnlyLocal    bool
	SkipInternal bool
}

// ServiceCatalog indexes services by (name, version, nodeId) and keeps
// the secondary per-action-name index (ActionEntry) that selection reads
// from (spec §4.2, §4.3).
type ServiceCatalog struct {
	mu          sync.RWMutex
	services    map[serviceKey]*types.Service
	actions     map[string]*ActionEntry
	localNodeID string

	strategyFactory strategy.Factory
	breakerCfg      breaker.Config
	isAvailable     func(nodeID string) bool
}

// NewServiceCatalog constructs an empty catalog. isAvailable is consulted
// by endpoint selection to filter out endpoints on unavailable nodes.
func NewServiceCatalog(localNodeID string, strategyFactory strategy.Factory, breakerCfg breaker.Config, isAvailable func(nodeID string) bool) *ServiceCatalog {
	return &ServiceCatalog{
		services:        make(map[serviceKey]*types.Service),
		actions:         make(map[string]*ActionEntry),
		localNodeID:     localNodeID,
		strategyFactory: strategyFactory,
		breakerCfg:      breakerCfg,
		isAvailable:     isAvailable,
	}
}

// Reconcile is the idempotent reconcile of spec §4.2: incoming always
// carries the node's full service list. Services/actions absent from it
// are removed; present ones are created or updated in place.
func (c *ServiceCatalog) Reconcile(nodeID string, incoming []*types.Service) {
	c.mu.Lock()
	defer c.mu.Unlock()

	local := nodeID == c.localNodeID
	seen := make(map[serviceKey]bool, len(incoming))

	for _, svc := range incoming {
		svc.NodeID = nodeID
		key := serviceKey{svc.Name, svc.Version, nodeID}
		seen[key] = true

		existing, ok := c.services[key]
		if !ok {
			c.services[key] = svc
			existing = nil
		} else {
			existing.Settings = svc.Settings
		}

		for actName, act := range svc.Actions {
			c.upsertAction(actName, &types.Endpoint{
				NodeID:  nodeID,
				Local:   local,
				Service: svc,
				Action:  act,
			})
		}

		if existing != nil {
			for actName := range existing.Actions {
				if _, ok := svc.Actions[actName]; !ok {
					c.removeAction(actName, nodeID)
				}
			}
			existing.Actions = svc.Actions
			existing.Events = svc.Events
		}
	}

	for key, svc := range c.services {
		if key.nodeID != nodeID || seen[key] {
			continue
		}
		for actName := range svc.Actions {
			c.removeAction(actName, nodeID)
		}
		delete(c.services, key)
	}
}

func (c *ServiceCatalog) upsertAction(name string, ep *types.Endpoint) {
	entry, ok := c.actions[name]
	if !ok {
		entry = newActionEntry(name, c.strategyFactory, c.breakerCfg)
		c.actions[name] = entry
	}
	entry.upsert(ep)
}

func (c *ServiceCatalog) removeAction(name, nodeID string) {
	entry, ok := c.actions[name]
	if !ok {
		return
	}
	entry.remove(nodeID)
	if entry.isEmpty() {
		delete(c.actions, name)
	}
}

// DisconnectNode cascades the removal of every service and action nodeID
// hosts (spec §4.1 "cascading unregistration").
func (c *ServiceCatalog) DisconnectNode(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, svc := range c.services {
		if key.nodeID != nodeID {
			continue
		}
		for actName := range svc.Actions {
			c.removeAction(actName, nodeID)
		}
		delete(c.services, key)
	}
}

// GetActionEntry returns the action entry for name, if any action by that
// name is known.
func (c *ServiceCatalog) GetActionEntry(name string) (*ActionEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.actions[name]
	return e, ok
}

// GetEndpoint returns the specific (actionName, nodeID) endpoint, if any.
func (c *ServiceCatalog) GetEndpoint(actionName, nodeID string) (*types.Endpoint, bool) {
	c.mu.RLock()
	entry, ok := c.actions[actionName]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	e, ok := entry.endpoints[nodeID]
	if !ok {
		return nil, false
	}
	return e.ep, true
}

// Select resolves one endpoint for actionName per spec §4.3, returning
// SERVICE_NOT_FOUND if no action by that name is known at all, or
// whatever ActionEntry.Select reports (typically SERVICE_NOT_AVAILABLE)
// once an entry exists but no candidate survives filtering.
func (c *ServiceCatalog) Select(actionName string, opts SelectOptions) (*types.Endpoint, error) {
	c.mu.RLock()
	entry, ok := c.actions[actionName]
	c.mu.RUnlock()
	if !ok {
		return nil, brokererr.ServiceNotFound(actionName)
	}
	return entry.Select(c.isAvailable, opts)
}

// Breaker returns the circuit breaker tracking (actionName, nodeID), used
// by the call path to record the outcome of an invocation.
func (c *ServiceCatalog) Breaker(actionName, nodeID string) (*breaker.Breaker, bool) {
	c.mu.RLock()
	entry, ok := c.actions[actionName]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return entry.breakerFor(nodeID)
}

// List returns a projection of registered services per spec §4.2.
func (c *ServiceCatalog) List(filter ListFilter) []*types.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*types.Service, 0, len(c.services))
	for key, svc := range c.services {
		if filter.OnlyLocal && key.nodeID != c.localNodeID {
			continue
		}
		cp := *svc
		if filter.SkipInternal {
			cp.Actions = withoutInternal(svc.Actions)
		}
		out = append(out, &cp)
	}
	return out
}

func withoutInternal(in map[string]*types.ActionDescriptor) map[string]*types.ActionDescriptor {
	out := make(map[string]*types.ActionDescriptor, len(in))
	for name, a := range in {
		if isInternal(name) {
			continue
		}
		out[name] = a
	}
	return out
}
