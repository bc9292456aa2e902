package registry

import (
	"sync"

	"github.com/cuemby/relaybroker/pkg/strategy"
	"github.com/cuemby/relaybroker/pkg/types"
)

// EventCatalog groups subscriber endpoints per event name, tagged by
// service-level group for load-balanced delivery (spec §4.5, §3 "Event
// entry").
type EventCatalog struct {
	mu              sync.Mutex
	byEvent         map[string]map[string][]*types.Endpoint // event -> group -> endpoints
	strategyFactory strategy.Factory
	strategies      map[string]strategy.Strategy // "event|group" -> per-group cursor
}

// NewEventCatalog constructs an empty catalog. strategyFactory supplies
// the per-group strategy instance used for Balanced delivery.
func NewEventCatalog(strategyFactory strategy.Factory) *EventCatalog {
	return &EventCatalog{
		byEvent:         make(map[string]map[string][]*types.Endpoint),
		strategyFactory: strategyFactory,
		strategies:      make(map[string]strategy.Strategy),
	}
}

// Register subscribes ep to eventName under group (defaulting to the
// endpoint's owning service name, per spec §3). Re-registering the same
// (eventName, group, nodeID) replaces the stored endpoint rather than
// duplicating it, keeping Register idempotent under reconcile.
func (c *EventCatalog) Register(eventName, group string, ep *types.Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if group == "" && ep.Service != nil {
		group = ep.Service.Name
	}

	groups, ok := c.byEvent[eventName]
	if !ok {
		groups = make(map[string][]*types.Endpoint)
		c.byEvent[eventName] = groups
	}

	list := groups[group]
	for i, e := range list {
		if e.NodeID == ep.NodeID {
			list[i] = ep
			return
		}
	}
	groups[group] = append(list, ep)
}

// UnregisterNode removes every subscription nodeID holds, across all
// events and groups. Called on reconcile (before re-registering from a
// fresh INFO) and on node disconnect.
func (c *EventCatalog) UnregisterNode(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for eventName, groups := range c.byEvent {
		for group, list := range groups {
			filtered := list[:0:0]
			for _, e := range list {
				if e.NodeID != nodeID {
					filtered = append(filtered, e)
				}
			}
			if len(filtered) == 0 {
				delete(groups, group)
			} else {
				groups[group] = filtered
			}
		}
		if len(groups) == 0 {
			delete(c.byEvent, eventName)
		}
	}
}

// Broadcast returns every subscriber endpoint for eventName: one delivery
// per (service, nodeID) pair that subscribes (spec §4.5 broadcast mode).
func (c *EventCatalog) Broadcast(eventName string) []*types.Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	groups, ok := c.byEvent[eventName]
	if !ok {
		return nil
	}
	var out []*types.Endpoint
	for _, list := range groups {
		out = append(out, list...)
	}
	return out
}

// Balanced returns one subscriber endpoint per group, chosen by that
// group's strategy instance — the default emit() delivery mode (spec
// §4.5: "within each service name, choose exactly one subscriber
// endpoint via the strategy; across distinct services, each gets one").
//
// The candidate list handed to the strategy is snapshotted under the
// catalog lock, resolving the open question of whether a subscriber
// momentarily absent mid-reconcile is eligible: it is, iff it was still
// registered at the instant Balanced was called.
func (c *EventCatalog) Balanced(eventName string) []*types.Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	groups, ok := c.byEvent[eventName]
	if !ok {
		return nil
	}

	out := make([]*types.Endpoint, 0, len(groups))
	for group, list := range groups {
		if len(list) == 0 {
			continue
		}
		key := eventName + "|" + group
		s, ok := c.strategies[key]
		if !ok {
			s = c.strategyFactory()
			c.strategies[key] = s
		}
		snapshot := append([]*types.Endpoint(nil), list...)
		out = append(out, s.Select(snapshot))
	}
	return out
}

// LocalSubscribers returns only the local endpoints subscribed to
// eventName, for emitLocal (spec §4.5).
func (c *EventCatalog) LocalSubscribers(eventName string) []*types.Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	groups, ok := c.byEvent[eventName]
	if !ok {
		return nil
	}
	var out []*types.Endpoint
	for _, list := range groups {
		for _, e := range list {
			if e.Local {
				out = append(out, e)
			}
		}
	}
	return out
}
