package registry

import (
	"sync"
	"time"

	"github.com/cuemby/relaybroker/pkg/types"
)

// NodeCatalog maps nodeId -> Node (spec §4.1). Nodes are never deleted on
// disconnect — Available=false is the tombstone that keeps a late,
// reordered packet from a dead node resurrecting stale state.
type NodeCatalog struct {
	mu    sync.RWMutex
	nodes map[string]*types.Node
}

// NewNodeCatalog returns an empty catalog.
func NewNodeCatalog() *NodeCatalog {
	return &NodeCatalog{nodes: make(map[string]*types.Node)}
}

// Upsert records an INFO announcement for nodeID, creating the node on
// first sight. It reports whether the node was just created and whether
// it just transitioned unavailable -> available (the trigger for
// $node.connected per spec §4.1).
func (c *NodeCatalog) Upsert(nodeID string, payload *types.InfoPayload, local bool) (node *types.Node, isNew, reconnected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.nodes[nodeID]
	if !ok {
		n = &types.Node{ID: nodeID, Local: local}
		c.nodes[nodeID] = n
		isNew = true
	}
	reconnected = !n.Available

	n.Available = true
	n.IPList = payload.IPList
	n.Client = payload.Client
	n.Config = payload.Config
	n.Uptime = payload.Uptime
	n.LastHeartbeatAt = time.Now()

	return n, isNew, reconnected
}

// Heartbeat updates liveness/load for an already-known node. It reports
// false if the node is unknown, the signal the caller uses to request a
// DISCOVER reply instead (spec §4.1).
func (c *NodeCatalog) Heartbeat(nodeID string, payload *types.HeartbeatPayload) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.nodes[nodeID]
	if !ok {
		return false
	}
	n.CPUUsage = payload.CPU
	n.LastHeartbeatAt = time.Now()
	n.Available = true
	return true
}

// Disconnect marks a node unavailable. It reports false if the node was
// never known (nothing to mark).
func (c *NodeCatalog) Disconnect(nodeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.nodes[nodeID]
	if !ok {
		return false
	}
	n.Available = false
	return true
}

// Get returns the node by id, if known.
func (c *NodeCatalog) Get(nodeID string) (*types.Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nodes[nodeID]
	return n, ok
}

// IsAvailable reports whether nodeID is known and currently available.
// It is the callback ActionEntry.Select uses to filter candidates.
func (c *NodeCatalog) IsAvailable(nodeID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nodes[nodeID]
	return ok && n.Available
}

// List returns a snapshot of every known node (including unavailable
// ones), in no particular order.
func (c *NodeCatalog) List() []*types.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*types.Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		cp := *n
		out = append(out, &cp)
	}
	return out
}

// TimedOut returns the ids of remote, available nodes whose last
// heartbeat is older than timeout — candidates for check() to mark
// disconnected with unexpected=true (spec §4.1).
func (c *NodeCatalog) TimedOut(timeout time.Duration) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	var out []string
	for id, n := range c.nodes {
		if n.Local || !n.Available {
			continue
		}
		if now.Sub(n.LastHeartbeatAt) > timeout {
			out = append(out, id)
		}
	}
	return out
}
