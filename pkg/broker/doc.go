/*
Package broker is the runtime a host process embeds: one Broker per node,
composing pkg/registry (what's known) and pkg/transit (how it's reached)
into Call, Emit/Broadcast/EmitLocal, and CreateService.

# Lifecycle

	cfg := config.Default("node-a")
	b, err := broker.New(cfg, bus)
	b.Use(loggingMiddleware)
	b.CreateService(mathService, nil)
	b.Start(ctx)
	defer b.Stop(ctx)

Start connects the transport, announces local services via INFO, asks
already-running peers to announce theirs via DISCOVER, and begins the
heartbeat loop. Stop announces a DISCONNECT, tears down the
transport, and calls every local service's stop hook in reverse
registration order.

# Calling

	result, err := b.Call(ctx, "math.add", map[string]interface{}{"a": 2, "b": 3}, broker.CallOptions{})

Call resolves an endpoint, checks the cache, runs the middleware chain
around a local-or-remote dispatch, and retries a retryable failure
against a different endpoint (falling back to the same one if none other
survives exclusion) up to cfg.RequestRetry times.

# Events

Emit performs group-balanced delivery: one subscriber per group. Broadcast
reaches every subscriber. EmitLocal fires only this node's subscribers
without touching the network.
*/
package broker
