package registry

import (
	"testing"
	"time"

	"github.com/cuemby/relaybroker/pkg/breaker"
	"github.com/cuemby/relaybroker/pkg/strategy"
	"github.com/cuemby/relaybroker/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func infoWith(services ...types.ServiceSnapshot) *types.InfoPayload {
	return &types.InfoPayload{Services: services}
}

func mathSnapshot(actions ...string) types.ServiceSnapshot {
	snaps := make([]types.ActionSnapshot, len(actions))
	for i, a := range actions {
		snaps[i] = types.ActionSnapshot{Name: a}
	}
	return types.ServiceSnapshot{Name: "math", Version: "1", Actions: snaps}
}

func TestProcessInfoFiresConnectedOnce(t *testing.T) {
	r := New("local", strategy.NewRoundRobin, breaker.DefaultConfig())

	var connected []string
	r.OnNodeConnected(func(nodeID string) { connected = append(connected, nodeID) })

	isNew := r.ProcessInfo("A", infoWith(mathSnapshot("add")), false)
	assert.True(t, isNew)
	assert.Equal(t, []string{"A"}, connected)

	// re-announcing while still available must not refire connected.
	r.ProcessInfo("A", infoWith(mathSnapshot("add")), false)
	assert.Equal(t, []string{"A"}, connected)
}

func TestProcessInfoReconcilesActionsAndEvents(t *testing.T) {
	r := New("local", strategy.NewRoundRobin, breaker.DefaultConfig())

	snap := types.ServiceSnapshot{
		Name:    "notifier",
		Version: "1",
		Actions: []types.ActionSnapshot{{Name: "notify"}},
		Events:  []types.EventSnapshot{{Name: "user.created"}},
	}
	r.ProcessInfo("A", infoWith(snap), false)

	_, ok := r.Services.GetActionEntry("notify")
	assert.True(t, ok)

	subs := r.Events.Broadcast("user.created")
	require.Len(t, subs, 1)
	assert.Equal(t, "A", subs[0].NodeID)
}

func TestDisconnectedFiresCallbackWithUnexpected(t *testing.T) {
	r := New("local", strategy.NewRoundRobin, breaker.DefaultConfig())
	r.ProcessInfo("A", infoWith(mathSnapshot("add")), false)

	var gotUnexpected bool
	var gotNode string
	r.OnNodeDisconnected(func(nodeID string, unexpected bool) {
		gotNode, gotUnexpected = nodeID, unexpected
	})

	r.Disconnected("A", true)
	assert.Equal(t, "A", gotNode)
	assert.True(t, gotUnexpected)

	_, ok := r.Services.GetEndpoint("add", "A")
	assert.False(t, ok, "disconnect must cascade to the action catalog")
}

func TestDisconnectedUnknownNodeIsNoop(t *testing.T) {
	r := New("local", strategy.NewRoundRobin, breaker.DefaultConfig())
	var fired bool
	r.OnNodeDisconnected(func(string, bool) { fired = true })

	r.Disconnected("ghost", true)
	assert.False(t, fired)
}

func TestCheckDisconnectsTimedOutNodes(t *testing.T) {
	r := New("local", strategy.NewRoundRobin, breaker.DefaultConfig())
	r.ProcessInfo("A", infoWith(mathSnapshot("add")), false)

	n, _ := r.Nodes.Get("A")
	n.LastHeartbeatAt = time.Now().Add(-time.Hour)

	var unexpected bool
	r.OnNodeDisconnected(func(_ string, u bool) { unexpected = u })

	ids := r.Check(time.Minute)
	assert.Equal(t, []string{"A"}, ids)
	assert.True(t, unexpected)
	assert.False(t, r.Nodes.IsAvailable("A"))
}

func TestHeartbeatUnknownNodeSignalsDiscover(t *testing.T) {
	r := New("local", strategy.NewRoundRobin, breaker.DefaultConfig())
	assert.False(t, r.Heartbeat("ghost", &types.HeartbeatPayload{}))
}
