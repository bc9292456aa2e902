package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/relaybroker/pkg/breaker"
	"github.com/cuemby/relaybroker/pkg/brokererr"
	"github.com/cuemby/relaybroker/pkg/config"
	"github.com/cuemby/relaybroker/pkg/transport/local"
	"github.com/cuemby/relaybroker/pkg/types"
)

func testConfig(nodeID string) config.Config {
	cfg := config.Default(nodeID)
	cfg.RequestTimeout = 200 * time.Millisecond
	cfg.RequestRetry = 1
	cfg.HeartbeatInterval = time.Hour
	cfg.HeartbeatTimeout = time.Hour
	return cfg
}

func mathService() *types.Service {
	return &types.Service{
		Name: "math",
		Actions: map[string]*types.ActionDescriptor{
			"math.add": {
				Name: "math.add",
				Handler: func(ctx types.CallContext) (interface{}, error) {
					p := ctx.Params().(map[string]interface{})
					return p["a"].(int) + p["b"].(int), nil
				},
			},
		},
	}
}

func TestLocalCallResolvesWithoutTransport(t *testing.T) {
	bus := local.NewBus()
	b, err := New(testConfig("A"), bus)
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	defer b.Stop(context.Background())

	require.NoError(t, b.CreateService(mathService(), nil))

	result, err := b.Call(context.Background(), "math.add", map[string]interface{}{"a": 2, "b": 3}, CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, result)
}

func TestRemoteCallRoundTripsOverSharedBus(t *testing.T) {
	bus := local.NewBus()

	a, err := New(testConfig("A"), bus)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop(context.Background())
	require.NoError(t, a.CreateService(mathService(), nil))

	bCfg := testConfig("B")
	brk, err := New(bCfg, bus)
	require.NoError(t, err)
	require.NoError(t, brk.Start(context.Background()))
	defer brk.Stop(context.Background())

	// B has no local math service; give the bus a moment to propagate A's
	// INFO broadcast before calling.
	require.Eventually(t, func() bool {
		_, ok := brk.Registry().Services.GetActionEntry("math.add")
		return ok
	}, time.Second, 5*time.Millisecond)

	result, err := brk.Call(context.Background(), "math.add", map[string]interface{}{"a": 4, "b": 9}, CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, 13, result)
}

const addSchema = `{
	"type": "object",
	"required": ["a", "b"],
	"properties": {
		"a": {"type": "number"},
		"b": {"type": "number"}
	}
}`

func validatedMathService() *types.Service {
	return &types.Service{
		Name: "math",
		Actions: map[string]*types.ActionDescriptor{
			"math.add": {
				Name:   "math.add",
				Schema: []byte(addSchema),
				Handler: func(ctx types.CallContext) (interface{}, error) {
					p := ctx.Params().(map[string]interface{})
					return p["a"].(float64) + p["b"].(float64), nil
				},
			},
		},
	}
}

func TestCallValidatesParamsAgainstCompiledSchema(t *testing.T) {
	bus := local.NewBus()
	b, err := New(testConfig("A"), bus)
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	defer b.Stop(context.Background())

	require.NoError(t, b.CreateService(validatedMathService(), nil))

	result, err := b.Call(context.Background(), "math.add", map[string]interface{}{"a": 2.0, "b": 3.0}, CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)

	_, err = b.Call(context.Background(), "math.add", map[string]interface{}{"a": 2.0}, CallOptions{})
	require.Error(t, err)
	assert.True(t, brokererr.Is(err, brokererr.KindValidationError))
	assert.False(t, brokererr.Retry(err))
}

func TestCreateServiceRejectsUncompilableSchema(t *testing.T) {
	bus := local.NewBus()
	b, err := New(testConfig("A"), bus)
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	defer b.Stop(context.Background())

	svc := mathService()
	svc.Actions["math.add"].Schema = []byte("not json")
	err = b.CreateService(svc, nil)
	require.Error(t, err)
}

func TestServiceNotFound(t *testing.T) {
	bus := local.NewBus()
	b, err := New(testConfig("A"), bus)
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	defer b.Stop(context.Background())

	_, err = b.Call(context.Background(), "ghost.action", nil, CallOptions{})
	require.Error(t, err)
}

// registerGhostEndpoint injects a remote, always-available endpoint for
// actionName on a node nothing is actually listening for, so every
// REQUEST to it goes unanswered until the call's own timeout fires —
// simulating scenario 3/4 of the end-to-end test suite without needing a
// second live broker.
func registerGhostEndpoint(b *Broker, actionName string) {
	b.Registry().ProcessInfo("ghost", &types.InfoPayload{
		Services: []types.ServiceSnapshot{
			{
				Name:    "ghostsvc",
				Actions: []types.ActionSnapshot{{Name: actionName}},
			},
		},
	}, false)
}

func TestTimeoutThenRetryExhaustsAgainstSoleEndpoint(t *testing.T) {
	bus := local.NewBus()
	cfg := testConfig("A")
	cfg.RequestTimeout = 50 * time.Millisecond
	cfg.RequestRetry = 1
	b, err := New(cfg, bus)
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	defer b.Stop(context.Background())

	registerGhostEndpoint(b, "ghostsvc.slow")

	start := time.Now()
	_, err = b.Call(context.Background(), "ghostsvc.slow", nil, CallOptions{})
	require.Error(t, err)
	// two attempts at ~50ms each, plus backoff.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestCircuitOpensAfterMaxFailures(t *testing.T) {
	bus := local.NewBus()
	cfg := testConfig("A")
	cfg.RequestTimeout = 20 * time.Millisecond
	cfg.RequestRetry = 0
	cfg.Breaker = breaker.Config{MaxFailures: 3, Window: time.Minute, HalfOpenTimeout: time.Minute}
	b, err := New(cfg, bus)
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	defer b.Stop(context.Background())

	registerGhostEndpoint(b, "ghostsvc.slow")

	for i := 0; i < 3; i++ {
		_, err := b.Call(context.Background(), "ghostsvc.slow", nil, CallOptions{})
		require.Error(t, err)
	}

	_, err = b.Call(context.Background(), "ghostsvc.slow", nil, CallOptions{})
	require.Error(t, err)
	assert.True(t, brokererr.Is(err, brokererr.KindServiceNotAvailable))
}

// TestGroupBalancedEmitFiresOncePerGroup is spec §8 scenario 6: the
// "consumer" group has a subscriber on both node A and node B. Emit must
// land on exactly one of them, never both — the defect this guards
// against was deliver() broadcasting the EVENT packet to every node and
// letting each self-filter by group name, which made both A's and B's
// "consumer" subscriber fire for a single emission.
func TestGroupBalancedEmitFiresOncePerGroup(t *testing.T) {
	bus := local.NewBus()

	a, err := New(testConfig("A"), bus)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop(context.Background())

	b, err := New(testConfig("B"), bus)
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	defer b.Stop(context.Background())

	var mu sync.Mutex
	consumerHits := map[string]int{}
	auditHits := 0

	consumerService := func(label string) *types.Service {
		return &types.Service{
			Name: "consumer",
			Events: map[string]*types.EventDescriptor{
				"user.created": {Name: "user.created", Handler: func(types.CallContext) {
					mu.Lock()
					consumerHits[label]++
					mu.Unlock()
				}},
			},
		}
	}
	require.NoError(t, a.CreateService(consumerService("A"), nil))
	require.NoError(t, b.CreateService(consumerService("B"), nil))

	auditSvc := &types.Service{
		Name: "audit",
		Events: map[string]*types.EventDescriptor{
			"user.created": {Name: "user.created", Handler: func(types.CallContext) {
				mu.Lock()
				auditHits++
				mu.Unlock()
			}},
		},
	}
	require.NoError(t, a.CreateService(auditSvc, nil))

	// Wait for both nodes to learn the full subscriber set (consumer@A,
	// consumer@B, audit@A) via INFO propagation before emitting.
	require.Eventually(t, func() bool {
		return len(a.Registry().Events.Broadcast("user.created")) == 3 &&
			len(b.Registry().Events.Broadcast("user.created")) == 3
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, a.Emit(context.Background(), "user.created", map[string]interface{}{"id": 1}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return consumerHits["A"]+consumerHits["B"] == 1 && auditHits == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, consumerHits["A"]+consumerHits["B"], "exactly one consumer node must fire, not both")
	assert.Equal(t, 1, auditHits)
}

func TestEmitLocalNeverTouchesTransport(t *testing.T) {
	bus := local.NewBus()
	b, err := New(testConfig("A"), bus)
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	defer b.Stop(context.Background())

	fired := false
	svc := &types.Service{
		Name: "consumer",
		Events: map[string]*types.EventDescriptor{
			"user.created": {Name: "user.created", Handler: func(types.CallContext) { fired = true }},
		},
	}
	require.NoError(t, b.CreateService(svc, nil))

	b.EmitLocal("user.created", nil)
	assert.True(t, fired)
}
