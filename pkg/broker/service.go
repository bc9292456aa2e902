package broker

import (
	"context"
	"fmt"

	"github.com/cuemby/relaybroker/pkg/registry"
	"github.com/cuemby/relaybroker/pkg/types"
)

// CreateService registers svc's actions and events in the local catalog
// and schedules stop for Stop's reverse-order shutdown, grounded on the
// teacher's manager.CreateService(service *types.Service) error.
//
// If the broker has already started, the new service is also announced
// immediately via a fresh INFO so peers pick it up without waiting for
// the next heartbeat-triggered reconcile.
func (b *Broker) CreateService(svc *types.Service, stop func() error) error {
	if svc.Name == "" {
		return fmt.Errorf("broker: service name is required")
	}
	svc.NodeID = b.cfg.NodeID

	if svc.Actions == nil {
		svc.Actions = make(map[string]*types.ActionDescriptor)
	}
	for name, a := range svc.Actions {
		if a.Handler == nil {
			return fmt.Errorf("broker: action %q has no handler", name)
		}
		// Schemas compile once here, at registration, per spec §6 — never
		// per call.
		if len(a.Schema) > 0 {
			check, err := b.validator.Compile(a.Schema)
			if err != nil {
				return fmt.Errorf("broker: compile schema for %q: %w", name, err)
			}
			b.mu.Lock()
			b.checkers[name] = check
			b.mu.Unlock()
		}
	}

	b.mu.Lock()
	b.local = append(b.local, localService{svc: svc, stop: stop})
	started := b.started
	b.mu.Unlock()

	b.registry.Services.Reconcile(b.cfg.NodeID, b.localServices())

	for name, ev := range svc.Events {
		b.registry.Events.Register(name, ev.Group, &types.Endpoint{
			NodeID:  b.cfg.NodeID,
			Local:   true,
			Service: svc,
		})
	}

	if started {
		return b.publishInfo(context.Background())
	}
	return nil
}

func (b *Broker) localServices() []*types.Service {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*types.Service, 0, len(b.local))
	for _, ls := range b.local {
		out = append(out, ls.svc)
	}
	return out
}

// registerNodeService installs the built-in "$node" service: introspection
// actions over the registry (spec §9/SPEC_FULL §11 supplemented
// features), scoped as internal so List(SkipInternal) hides them from
// user-facing $node.services output.
func (b *Broker) registerNodeService() error {
	svc := &types.Service{
		Name:    "$node",
		Version: "",
		Actions: map[string]*types.ActionDescriptor{
			"$node.health": {Name: "$node.health", Handler: b.nodeHealthAction},
			"$node.list":   {Name: "$node.list", Handler: b.nodeListAction},
			"$node.services": {Name: "$node.services", Handler: b.nodeServicesAction},
			"$node.actions":  {Name: "$node.actions", Handler: b.nodeActionsAction},
			"$node.events":   {Name: "$node.events", Handler: b.nodeEventsAction},
		},
	}
	return b.CreateService(svc, nil)
}

func (b *Broker) nodeHealthAction(ctx types.CallContext) (interface{}, error) {
	nodes := b.registry.Nodes.List()
	out := make([]map[string]interface{}, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, map[string]interface{}{
			"nodeID":    n.ID,
			"available": n.Available,
			"local":     n.Local,
			"cpu":       n.CPUUsage,
			"uptime":    n.Uptime.String(),
		})
	}
	return out, nil
}

func (b *Broker) nodeListAction(ctx types.CallContext) (interface{}, error) {
	return b.registry.Nodes.List(), nil
}

func (b *Broker) nodeServicesAction(ctx types.CallContext) (interface{}, error) {
	return b.registry.Services.List(registry.ListFilter{SkipInternal: true}), nil
}

func (b *Broker) nodeActionsAction(ctx types.CallContext) (interface{}, error) {
	services := b.registry.Services.List(registry.ListFilter{SkipInternal: true})
	out := make([]map[string]interface{}, 0)
	for _, svc := range services {
		for name := range svc.Actions {
			entry, ok := b.registry.Services.GetActionEntry(name)
			if !ok {
				continue
			}
			var nodeIDs []string
			for _, ep := range entry.Endpoints() {
				nodeIDs = append(nodeIDs, ep.NodeID)
			}
			out = append(out, map[string]interface{}{
				"name":  name,
				"nodes": nodeIDs,
			})
		}
	}
	return out, nil
}

func (b *Broker) nodeEventsAction(ctx types.CallContext) (interface{}, error) {
	services := b.registry.Services.List(registry.ListFilter{SkipInternal: true})
	out := make([]map[string]interface{}, 0)
	for _, svc := range services {
		for name, ev := range svc.Events {
			out = append(out, map[string]interface{}{
				"name":  name,
				"group": ev.Group,
			})
		}
	}
	return out, nil
}
