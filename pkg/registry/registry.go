package registry

import (
	"time"

	"github.com/cuemby/relaybroker/pkg/breaker"
	"github.com/cuemby/relaybroker/pkg/strategy"
	"github.com/cuemby/relaybroker/pkg/types"
)

// Registry composes the node, service/action and event catalogs and
// performs the cross-catalog bookkeeping spec §4.1 assigns to
// processInfo/disconnected: service reconciliation, event
// re-registration, and $node.connected/$node.disconnected callbacks.
type Registry struct {
	Nodes    *NodeCatalog
	Services *ServiceCatalog
	Events   *EventCatalog

	localNodeID string

	onNodeConnected    func(nodeID string)
	onNodeDisconnected func(nodeID string, unexpected bool)
}

// New constructs a Registry for localNodeID. strategyFactory supplies a
// fresh Strategy per action/event-group; breakerCfg tunes every endpoint's
// circuit breaker.
func New(localNodeID string, strategyFactory strategy.Factory, breakerCfg breaker.Config) *Registry {
	nodes := NewNodeCatalog()
	svc := NewServiceCatalog(localNodeID, strategyFactory, breakerCfg, nodes.IsAvailable)
	events := NewEventCatalog(strategyFactory)
	return &Registry{
		Nodes:       nodes,
		Services:    svc,
		Events:      events,
		localNodeID: localNodeID,
	}
}

// OnNodeConnected registers the callback fired when a node transitions
// unavailable -> available (spec §4.1: emit $node.connected).
func (r *Registry) OnNodeConnected(fn func(nodeID string)) {
	r.onNodeConnected = fn
}

// OnNodeDisconnected registers the callback fired on disconnect (spec
// §4.1: emit $node.disconnected with {unexpected}).
func (r *Registry) OnNodeDisconnected(fn func(nodeID string, unexpected bool)) {
	r.onNodeDisconnected = fn
}

// ProcessInfo upserts a node from an INFO packet and reconciles its
// service list (spec §4.1 processInfo). It returns whether the node was
// previously unknown.
func (r *Registry) ProcessInfo(sender string, payload *types.InfoPayload, local bool) bool {
	_, isNew, reconnected := r.Nodes.Upsert(sender, payload, local)
	r.reconcileServices(sender, payload.Services)

	if reconnected && r.onNodeConnected != nil {
		r.onNodeConnected(sender)
	}
	return isNew
}

func (r *Registry) reconcileServices(nodeID string, snaps []types.ServiceSnapshot) {
	services := make([]*types.Service, 0, len(snaps))
	for _, s := range snaps {
		services = append(services, FromSnapshot(s))
	}

	// Event subscriptions are re-derived wholesale from the fresh INFO,
	// same philosophy as Reconcile: diff against stored state rather
	// than trust deltas.
	r.Events.UnregisterNode(nodeID)
	r.Services.Reconcile(nodeID, services)

	local := nodeID == r.localNodeID
	for _, svc := range services {
		for _, ev := range svc.Events {
			r.Events.Register(ev.Name, ev.Group, &types.Endpoint{
				NodeID:  nodeID,
				Local:   local,
				Service: svc,
			})
		}
	}
}

// Heartbeat processes a HEARTBEAT packet (spec §4.1). It reports false if
// the sender is unknown, the signal to request a DISCOVER instead.
func (r *Registry) Heartbeat(sender string, payload *types.HeartbeatPayload) bool {
	return r.Nodes.Heartbeat(sender, payload)
}

// Disconnected processes a node disconnect (spec §4.1): marks the node
// unavailable, cascades removal of its services/actions/events, and
// fires the $node.disconnected callback. A call for an unknown node is a
// no-op.
func (r *Registry) Disconnected(nodeID string, unexpected bool) {
	if !r.Nodes.Disconnect(nodeID) {
		return
	}
	r.Services.DisconnectNode(nodeID)
	r.Events.UnregisterNode(nodeID)

	if r.onNodeDisconnected != nil {
		r.onNodeDisconnected(nodeID, unexpected)
	}
}

// Check runs the periodic liveness sweep of spec §4.1: any remote node
// whose last heartbeat is older than heartbeatTimeout is disconnected
// with unexpected=true. It returns the ids marked disconnected.
func (r *Registry) Check(heartbeatTimeout time.Duration) []string {
	timedOut := r.Nodes.TimedOut(heartbeatTimeout)
	for _, id := range timedOut {
		r.Disconnected(id, true)
	}
	return timedOut
}
