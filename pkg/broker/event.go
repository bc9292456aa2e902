package broker

import (
	"context"

	"github.com/cuemby/relaybroker/pkg/callctx"
	"github.com/cuemby/relaybroker/pkg/log"
	"github.com/cuemby/relaybroker/pkg/metrics"
	"github.com/cuemby/relaybroker/pkg/types"
)

// Emit delivers eventName to exactly one subscriber per group, the
// default balanced mode of spec §4.5. Local subscribers in the chosen
// set run in-process; remote ones receive an EVENT packet addressed to
// the specific node(s) selection chose, carrying the groups to fire
// there.
func (b *Broker) Emit(ctx context.Context, eventName string, data interface{}) error {
	targets := b.registry.Events.Balanced(eventName)
	return b.deliver(ctx, eventName, data, targets, groupsOf(targets, eventName))
}

// Broadcast delivers eventName to every subscriber, local and remote
// (spec §4.5 broadcast mode).
func (b *Broker) Broadcast(ctx context.Context, eventName string, data interface{}) error {
	targets := b.registry.Events.Broadcast(eventName)
	// An empty Groups list is this package's broadcast marker (see
	// onEvent): every local subscriber on every receiving node fires.
	return b.deliver(ctx, eventName, data, targets, nil)
}

// EmitLocal fires eventName's local subscribers only, without touching
// the network (spec §4.5 emitLocal).
func (b *Broker) EmitLocal(eventName string, data interface{}) {
	for _, ep := range b.registry.Events.LocalSubscribers(eventName) {
		b.runLocalEvent(ep, eventName, data)
	}
}

func groupsOf(targets []*types.Endpoint, eventName string) []string {
	seen := make(map[string]bool, len(targets))
	var out []string
	for _, ep := range targets {
		g := groupOf(ep, eventName)
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

// groupOf resolves ep's subscriber group for eventName, defaulting to the
// owning service's name per spec §3 when the EventDescriptor didn't pin
// one explicitly.
func groupOf(ep *types.Endpoint, eventName string) string {
	if ep.Service == nil {
		return ""
	}
	if ev, ok := ep.Service.Events[eventName]; ok && ev.Group != "" {
		return ev.Group
	}
	return ep.Service.Name
}

// deliver runs every local endpoint in targets in-process and addresses
// one EVENT packet per distinct remote node among them — never a single
// broadcast. broadcastMode (groups == nil, i.e. Broadcast's caller) marks
// every remote node's payload with a nil Groups so the receiver fires
// every local subscriber for eventName; balanced mode (Emit's caller)
// records exactly which group(s) Balanced() chose to land on each node,
// so a node hosting a group that selection did NOT choose never even
// receives the packet, let alone fires for it.
func (b *Broker) deliver(ctx context.Context, eventName string, data interface{}, targets []*types.Endpoint, groups []string) error {
	broadcastMode := groups == nil
	perNode := make(map[string][]string) // nodeID -> groups to fire there (nil value = broadcast)

	for _, ep := range targets {
		if ep.Local {
			b.runLocalEvent(ep, eventName, data)
			continue
		}
		if broadcastMode {
			if _, ok := perNode[ep.NodeID]; !ok {
				perNode[ep.NodeID] = nil
			}
			continue
		}
		g := groupOf(ep, eventName)
		if !contains(perNode[ep.NodeID], g) {
			perNode[ep.NodeID] = append(perNode[ep.NodeID], g)
		}
	}

	mode := "broadcast"
	if !broadcastMode {
		mode = "balanced"
	}
	metrics.EventsEmittedTotal.WithLabelValues(eventName, mode).Inc()

	var firstErr error
	for nodeID, gs := range perNode {
		payload := &types.EventPayload{Event: eventName, Data: data, Groups: gs}
		if err := b.transit.PublishEventTo(ctx, nodeID, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (b *Broker) runLocalEvent(ep *types.Endpoint, eventName string, data interface{}) {
	if ep.Service == nil {
		return
	}
	ev, ok := ep.Service.Events[eventName]
	if !ok || ev.Handler == nil {
		return
	}
	cctx := callctx.NewRoot(context.Background(), b.cfg.NodeID, eventName, data, nil, 0)
	defer cctx.Release()
	defer func() {
		if r := recover(); r != nil {
			log.WithAction(eventName).Error().Interface("panic", r).Msg("event handler panicked")
		}
	}()
	ev.Handler(cctx)
}

// onEvent is the transit.Callbacks.OnEvent implementation: it receives an
// EVENT packet addressed to this node specifically (deliver already chose
// this node) and decides which of this node's local subscribers fire. A
// nil payload.Groups means broadcast — every local subscriber fires. A
// non-empty list means balanced — a local subscriber only fires if its
// own (group-defaulted) group appears in it, which on this node-scoped
// delivery path is only ever the group(s) selection actually chose to
// land here.
func (b *Broker) onEvent(sender string, payload *types.EventPayload) {
	for _, ep := range b.registry.Events.LocalSubscribers(payload.Event) {
		if len(payload.Groups) > 0 {
			g := groupOf(ep, payload.Event)
			if !contains(payload.Groups, g) {
				continue
			}
		}
		b.runLocalEvent(ep, payload.Event, payload.Data)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
