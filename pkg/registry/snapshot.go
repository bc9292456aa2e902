package registry

import "github.com/cuemby/relaybroker/pkg/types"

// ToSnapshot converts a catalog Service into its wire form for an INFO
// packet, dropping the Handler fields, which have no meaning
// off-process.
func ToSnapshot(svc *types.Service) types.ServiceSnapshot {
	actions := make([]types.ActionSnapshot, 0, len(svc.Actions))
	for _, a := range svc.Actions {
		actions = append(actions, types.ActionSnapshot{
			Name:    a.Name,
			Version: a.Version,
			Cache:   a.Cache,
			Schema:  a.Schema,
		})
	}
	events := make([]types.EventSnapshot, 0, len(svc.Events))
	for _, e := range svc.Events {
		events = append(events, types.EventSnapshot{Name: e.Name, Group: e.Group})
	}
	return types.ServiceSnapshot{
		Name:     svc.Name,
		Version:  svc.Version,
		Settings: svc.Settings,
		Actions:  actions,
		Events:   events,
	}
}

// FromSnapshot rehydrates a remote Service descriptor from its wire form.
// The resulting descriptors carry no Handler — remote endpoints are only
// ever invoked via transit, never called in-process.
func FromSnapshot(s types.ServiceSnapshot) *types.Service {
	actions := make(map[string]*types.ActionDescriptor, len(s.Actions))
	for _, a := range s.Actions {
		actions[a.Name] = &types.ActionDescriptor{
			Name:    a.Name,
			Version: a.Version,
			Cache:   a.Cache,
			Schema:  a.Schema,
		}
	}
	events := make(map[string]*types.EventDescriptor, len(s.Events))
	for _, e := range s.Events {
		events[e.Name] = &types.EventDescriptor{Name: e.Name, Group: e.Group}
	}
	return &types.Service{
		Name:     s.Name,
		Version:  s.Version,
		Settings: s.Settings,
		Actions:  actions,
		Events:   events,
	}
}
