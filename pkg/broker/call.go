package broker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cuemby/relaybroker/pkg/brokererr"
	"github.com/cuemby/relaybroker/pkg/callctx"
	"github.com/cuemby/relaybroker/pkg/log"
	"github.com/cuemby/relaybroker/pkg/metrics"
	"github.com/cuemby/relaybroker/pkg/registry"
	"github.com/cuemby/relaybroker/pkg/transit"
	"github.com/cuemby/relaybroker/pkg/types"
)

// CallOptions tunes a single Call.
type CallOptions struct {
	// ParentCtx, when set, makes the new call a child of an in-flight
	// one (spec §4.7 step 1: "create child Context from opts.parentCtx
	// or a fresh root").
	ParentCtx *callctx.Context
	// Timeout overrides cfg.RequestTimeout for this call; zero means use
	// the broker default.
	Timeout time.Duration
	// Meta seeds the root context's Meta map; ignored when ParentCtx is
	// set (a child always shares its parent's Meta by reference).
	Meta map[string]interface{}
}

// Call invokes action with params and returns its result (spec §4.7
// call, the six-step algorithm).
func (b *Broker) Call(ctx context.Context, action string, params interface{}, opts CallOptions) (interface{}, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = b.cfg.RequestTimeout
	}

	// Step 1: child or root Context.
	var cctx *callctx.Context
	if opts.ParentCtx != nil {
		cctx = opts.ParentCtx.Child(action, params, timeout)
	} else {
		cctx = callctx.NewRoot(ctx, b.cfg.NodeID, action, params, opts.Meta, timeout)
	}
	defer cctx.Release()

	start := time.Now()
	result, err := b.callOnce(cctx, action, params, timeout)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.CallsTotal.WithLabelValues(action, outcome).Inc()
	metrics.CallDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())

	return result, err
}

func (b *Broker) callOnce(cctx *callctx.Context, action string, params interface{}, timeout time.Duration) (interface{}, error) {
	exclude := map[string]bool{}
	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = 20 * time.Millisecond
	boff.MaxInterval = 500 * time.Millisecond

	var fingerprint string
	cacheable := false
	var lastEp *types.Endpoint

	for {
		// Step 2: endpoint lookup.
		ep, err := b.registry.Services.Select(action, registry.SelectOptions{
			PreferLocal: b.cfg.PreferLocal,
			Exclude:     exclude,
		})
		if err != nil {
			// No endpoint survives exclusion after a prior attempt: retry
			// the same endpoint rather than give up, matching the "sole
			// endpoint, no alternative" scenario — the caller still sees
			// the original failure kind (e.g. REQUEST_TIMEOUT) rather
			// than SERVICE_NOT_AVAILABLE from this lookup.
			if lastEp != nil {
				ep = lastEp
			} else {
				return nil, err
			}
		}
		lastEp = ep
		cctx.SetNodeID(ep.NodeID)

		// Step 3: cache lookup.
		if ep.Action != nil && ep.Action.Cache && b.cacher != nil {
			cacheable = true
			fingerprint = cacheKey(action, params)
			if v, ok := b.cacher.Get(fingerprint); ok {
				metrics.CacheHitsTotal.WithLabelValues(action).Inc()
				cctx.SetCachedResult(true)
				return v, nil
			}
			metrics.CacheMissesTotal.WithLabelValues(action).Inc()
		}

		// Step 4: middleware chain around local-or-remote dispatch.
		handler := b.dispatcher(ep, action, timeout)
		for i := len(b.middleware) - 1; i >= 0; i-- {
			handler = b.middleware[i](handler)
		}

		result, err := handler(cctx)

		brk, hasBrk := b.registry.Services.Breaker(action, ep.NodeID)
		if err != nil {
			if hasBrk {
				brk.OnFailure()
			}
			if brokererr.Retry(err) && cctx.RetryCount() < b.cfg.RequestRetry {
				metrics.CallRetriesTotal.WithLabelValues(action).Inc()
				exclude[ep.NodeID] = true
				cctx.IncrRetry()
				time.Sleep(boff.NextBackOff())
				continue
			}
			return nil, err
		}
		if hasBrk {
			brk.OnSuccess()
		}

		// Step 6: cache store on success.
		if cacheable {
			b.cacher.Set(fingerprint, result, 0)
		}
		return result, nil
	}
}

// dispatcher returns the innermost handler: local direct invocation, or a
// remote call via transit.SendRequest.
func (b *Broker) dispatcher(ep *types.Endpoint, action string, timeout time.Duration) types.Handler {
	if ep.Local {
		return func(ctx types.CallContext) (interface{}, error) {
			if ep.Action == nil || ep.Action.Handler == nil {
				return nil, brokererr.ServiceNotAvailable(action)
			}
			if err := b.validateParams(action, ctx.Params()); err != nil {
				return nil, err
			}
			return ep.Action.Handler(ctx)
		}
	}
	return func(ctx types.CallContext) (interface{}, error) {
		// Every types.CallContext this package hands to a Handler is a
		// *callctx.Context; the narrower interface only exists to avoid
		// an import cycle between pkg/types and pkg/callctx.
		cctx := ctx.(*callctx.Context)
		return b.transit.SendRequest(cctx.Std(), ep.NodeID, transit.RequestSpec{
			ID:        cctx.ID(),
			RequestID: cctx.RequestID(),
			ParentID:  cctx.ParentID(),
			Action:    ep.Action.Name,
			Params:    cctx.Params(),
			Meta:      cctx.Meta(),
			Timeout:   timeout,
			Level:     cctx.Level(),
			Metrics:   cctx.Metrics(),
		})
	}
}

// onRequest is transit.Callbacks.OnRequest: it serves a REQUEST packet by
// reconstructing a Context from its wire fields and invoking the local
// action directly (the remote caller already resolved the endpoint; this
// node only needs to run its own handler).
func (b *Broker) onRequest(ctx context.Context, sender string, req *types.RequestPayload) (interface{}, error) {
	ep, ok := b.registry.Services.GetEndpoint(req.Action, b.cfg.NodeID)
	if !ok || ep.Action == nil || ep.Action.Handler == nil {
		return nil, brokererr.ServiceNotAvailable(req.Action)
	}
	if err := b.validateParams(req.Action, req.Params); err != nil {
		return nil, err
	}

	cctx := callctx.FromWire(ctx, b.cfg.NodeID, req.ID, req.RequestID, req.ParentID, req.Action, req.Params, req.Meta, req.Level, req.Timeout)
	defer cctx.Release()
	cctx.SetMetrics(req.Metrics)

	handler := ep.Action.Handler
	for i := len(b.middleware) - 1; i >= 0; i-- {
		handler = b.middleware[i](handler)
	}

	result, err := handler(cctx)
	if err != nil {
		log.WithAction(req.Action).Warn().Err(err).Str("sender", sender).Msg("remote call failed")
		return nil, err
	}
	return result, nil
}

func cacheKey(action string, params interface{}) string {
	data, _ := json.Marshal(params)
	sum := sha256.Sum256(data)
	return action + ":" + hex.EncodeToString(sum[:8])
}

// validateParams runs action's compiled schema checker against params, if
// CreateService compiled one for it (spec §6: actions with no Schema
// carry no checker and always pass). It is consulted on the node that
// actually owns the handler, whether dispatched locally (callOnce) or
// serving a remote caller's REQUEST (onRequest).
func (b *Broker) validateParams(action string, params interface{}) error {
	b.mu.Lock()
	check, ok := b.checkers[action]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	if errs := check(params); len(errs) > 0 {
		return brokererr.ValidationError(action, errors.Join(errs...))
	}
	return nil
}
