package registry

import (
	"sync"

	"github.com/cuemby/relaybroker/pkg/brokererr"
	"github.com/cuemby/relaybroker/pkg/breaker"
	"github.com/cuemby/relaybroker/pkg/strategy"
	"github.com/cuemby/relaybroker/pkg/types"
)

// SelectOptions tunes a single endpoint-selection call (spec §4.3).
type SelectOptions struct {
	// NodeID pins selection to a specific endpoint, bypassing the strategy.
	NodeID string
	// PreferLocal returns a local endpoint over a remote one when both
	// are candidates. Defaults to true at the broker layer.
	PreferLocal bool
	// Exclude removes the given node ids from consideration, used by the
	// retry path to avoid reselecting the endpoint that just failed.
	Exclude map[string]bool
}

type endpointEntry struct {
	ep      *types.Endpoint
	breaker *breaker.Breaker
}

// ActionEntry is the "for each globally known action name, an ordered
// list of endpoints plus a strategy instance" of spec §3. One ActionEntry
// exists per action name, shared by every node that hosts it.
type ActionEntry struct {
	mu         sync.RWMutex
	name       string
	endpoints  map[string]*endpointEntry // nodeID -> entry
	order      []string                  // nodeID insertion order
	strategy   strategy.Strategy
	breakerCfg breaker.Config
}

func newActionEntry(name string, strategyFactory strategy.Factory, breakerCfg breaker.Config) *ActionEntry {
	return &ActionEntry{
		name:       name,
		endpoints:  make(map[string]*endpointEntry),
		strategy:   strategyFactory(),
		breakerCfg: breakerCfg,
	}
}

// upsert adds or replaces the endpoint for ep.NodeID. At most one
// endpoint per nodeId per action name (spec §8 catalog uniqueness).
func (a *ActionEntry) upsert(ep *types.Endpoint) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if e, ok := a.endpoints[ep.NodeID]; ok {
		e.ep = ep
		return
	}
	a.endpoints[ep.NodeID] = &endpointEntry{ep: ep, breaker: breaker.New(a.breakerCfg)}
	a.order = append(a.order, ep.NodeID)
}

// remove drops nodeID's endpoint, if any.
func (a *ActionEntry) remove(nodeID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.endpoints[nodeID]; !ok {
		return
	}
	delete(a.endpoints, nodeID)
	for i, id := range a.order {
		if id == nodeID {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

func (a *ActionEntry) isEmpty() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.endpoints) == 0
}

// breakerFor returns the breaker tracking nodeID's endpoint, used by the
// call path to record success/failure after invocation.
func (a *ActionEntry) breakerFor(nodeID string) (*breaker.Breaker, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.endpoints[nodeID]
	if !ok {
		return nil, false
	}
	return e.breaker, true
}

// Select implements the four-step algorithm of spec §4.3.
func (a *ActionEntry) Select(isAvailable func(nodeID string) bool, opts SelectOptions) (*types.Endpoint, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if opts.NodeID != "" {
		e, ok := a.endpoints[opts.NodeID]
		if !ok || !isAvailable(opts.NodeID) {
			return nil, brokererr.ServiceNotAvailable(a.name)
		}
		if !e.breaker.Allow() {
			return nil, brokererr.RequestRejected(a.name, opts.NodeID)
		}
		return e.ep, nil
	}

	var candidates []*types.Endpoint
	var local *types.Endpoint
	byNode := make(map[string]*endpointEntry, len(a.order))
	for _, id := range a.order {
		if opts.Exclude[id] {
			continue
		}
		e := a.endpoints[id]
		if !isAvailable(id) || e.breaker.State() == types.CircuitOpen {
			continue
		}
		candidates = append(candidates, e.ep)
		byNode[id] = e
		if e.ep.Local && local == nil {
			local = e.ep
		}
	}

	if len(candidates) == 0 {
		return nil, brokererr.ServiceNotAvailable(a.name)
	}

	chosen := local
	if !opts.PreferLocal || chosen == nil {
		chosen = a.strategy.Select(candidates)
	}
	if !byNode[chosen.NodeID].breaker.Allow() {
		return nil, brokererr.RequestRejected(a.name, chosen.NodeID)
	}
	return chosen, nil
}

// Endpoints returns a snapshot of every registered endpoint, available or
// not, for introspection ($node.actions / list()).
func (a *ActionEntry) Endpoints() []*types.Endpoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*types.Endpoint, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.endpoints[id].ep)
	}
	return out
}
