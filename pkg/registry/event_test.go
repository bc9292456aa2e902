package registry

import (
	"testing"

	"github.com/cuemby/relaybroker/pkg/strategy"
	"github.com/cuemby/relaybroker/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func svcEndpoint(nodeID, serviceName string, local bool) *types.Endpoint {
	return &types.Endpoint{NodeID: nodeID, Local: local, Service: &types.Service{Name: serviceName}}
}

func TestEventBroadcastDeliversToEverySubscriber(t *testing.T) {
	c := NewEventCatalog(strategy.NewRoundRobin)
	c.Register("user.created", "", svcEndpoint("A", "consumer", false))
	c.Register("user.created", "", svcEndpoint("B", "consumer", false))
	c.Register("user.created", "", svcEndpoint("C", "audit", false))

	out := c.Broadcast("user.created")
	assert.Len(t, out, 3)
}

func TestEventBalancedOnePerGroup(t *testing.T) {
	c := NewEventCatalog(strategy.NewRoundRobin)
	c.Register("user.created", "", svcEndpoint("A", "consumer", false))
	c.Register("user.created", "", svcEndpoint("B", "consumer", false))
	c.Register("user.created", "", svcEndpoint("C", "audit", false))

	out := c.Balanced("user.created")
	require.Len(t, out, 2, "one delivery per distinct service group")

	services := map[string]bool{}
	for _, e := range out {
		services[e.Service.Name] = true
	}
	assert.True(t, services["consumer"])
	assert.True(t, services["audit"])
}

func TestEventBalancedRoundRobinsWithinGroup(t *testing.T) {
	c := NewEventCatalog(strategy.NewRoundRobin)
	c.Register("user.created", "", svcEndpoint("A", "consumer", false))
	c.Register("user.created", "", svcEndpoint("B", "consumer", false))

	first := c.Balanced("user.created")
	second := c.Balanced("user.created")

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].NodeID, second[0].NodeID, "successive balanced emits should rotate")
}

func TestEventRegisterReplacesSameNode(t *testing.T) {
	c := NewEventCatalog(strategy.NewRoundRobin)
	c.Register("user.created", "", svcEndpoint("A", "consumer", false))
	c.Register("user.created", "", svcEndpoint("A", "consumer", true)) // re-announced as local

	out := c.Broadcast("user.created")
	require.Len(t, out, 1)
	assert.True(t, out[0].Local)
}

func TestEventUnregisterNode(t *testing.T) {
	c := NewEventCatalog(strategy.NewRoundRobin)
	c.Register("user.created", "", svcEndpoint("A", "consumer", false))
	c.Register("user.created", "", svcEndpoint("B", "consumer", false))

	c.UnregisterNode("A")

	out := c.Broadcast("user.created")
	require.Len(t, out, 1)
	assert.Equal(t, "B", out[0].NodeID)
}

func TestEventLocalSubscribers(t *testing.T) {
	c := NewEventCatalog(strategy.NewRoundRobin)
	c.Register("user.created", "", svcEndpoint("A", "consumer", true))
	c.Register("user.created", "", svcEndpoint("B", "consumer", false))

	out := c.LocalSubscribers("user.created")
	require.Len(t, out, 1)
	assert.Equal(t, "A", out[0].NodeID)
}

func TestEventUnknownEventReturnsNil(t *testing.T) {
	c := NewEventCatalog(strategy.NewRoundRobin)
	assert.Nil(t, c.Broadcast("nope"))
	assert.Nil(t, c.Balanced("nope"))
	assert.Nil(t, c.LocalSubscribers("nope"))
}
