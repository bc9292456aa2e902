// Package callctx implements the per-call Context of spec §4.8: the
// record that is created per call (local or remote) and propagated along
// the call graph until the call resolves.
//
// A Context's identity fields (ids, level, action, params) are fixed at
// construction. Meta is a shared mutable map propagated to child contexts
// by reference — mutating Meta on a child is visible to its ancestors and
// siblings, by design (spec §4.8). The retry count, executing node id,
// metrics flag and cached-result flag change through IncrRetry, SetNodeID,
// SetMetrics and SetCachedResult as the call proceeds.
package callctx

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Context is the broker-domain call record. It is distinct from, and
// carried alongside, the stdlib context.Context that threads
// cancellation/deadline through the same call (Go convention; see
// Context.Std).
type Context struct {
	id        string
	std       context.Context
	cancel    context.CancelFunc
	broker    string
	action    string
	params    interface{}
	meta      map[string]interface{}
	requestID string
	parentID  string
	level     int
	timeout   time.Duration
	retries   int
	nodeID    string
	metrics   bool
	cached    bool
}

// NewRoot constructs a root context (level 1, no parent) for a fresh
// top-level call.
func NewRoot(std context.Context, brokerNodeID, action string, params interface{}, meta map[string]interface{}, timeout time.Duration) *Context {
	if meta == nil {
		meta = make(map[string]interface{})
	}
	var cancel context.CancelFunc
	if timeout > 0 {
		std, cancel = context.WithTimeout(std, timeout)
	}
	id := uuid.NewString()
	return &Context{
		id:        id,
		std:       std,
		cancel:    cancel,
		broker:    brokerNodeID,
		action:    action,
		params:    params,
		meta:      meta,
		requestID: id,
		level:     1,
		timeout:   timeout,
	}
}

// Child creates a child context for action/params, inheriting requestID,
// Meta (by reference) and level+1 from parent, per spec §4.8. Its id and
// parentID are its own.
func (c *Context) Child(action string, params interface{}, timeout time.Duration) *Context {
	std := c.std
	var cancel context.CancelFunc
	if timeout > 0 {
		std, cancel = context.WithTimeout(c.std, timeout)
	}
	return &Context{
		id:        uuid.NewString(),
		std:       std,
		cancel:    cancel,
		broker:    c.broker,
		action:    action,
		params:    params,
		meta:      c.meta,
		requestID: c.requestID,
		parentID:  c.id,
		level:     c.level + 1,
		timeout:   timeout,
	}
}

// FromWire reconstructs a Context on the serving side of a remote call,
// from the fields carried by a REQUEST packet (types.RequestPayload). It
// has no local parent object to inherit from, so every propagated field
// (requestID, parentID, level, meta) is taken from the wire directly
// rather than derived via Child.
func FromWire(std context.Context, brokerNodeID, id, requestID, parentID, action string, params interface{}, meta map[string]interface{}, level int, timeout time.Duration) *Context {
	if meta == nil {
		meta = make(map[string]interface{})
	}
	var cancel context.CancelFunc
	if timeout > 0 {
		std, cancel = context.WithTimeout(std, timeout)
	}
	return &Context{
		id:        id,
		std:       std,
		cancel:    cancel,
		broker:    brokerNodeID,
		action:    action,
		params:    params,
		meta:      meta,
		requestID: requestID,
		parentID:  parentID,
		level:     level,
		timeout:   timeout,
	}
}

// Release cancels the context's stdlib deadline timer, if any. Callers
// must invoke this once the call resolves (success, failure, or timeout)
// to avoid leaking the timer.
func (c *Context) Release() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Context) ID() string        { return c.id }
func (c *Context) Std() context.Context { return c.std }
func (c *Context) Action() string    { return c.action }
func (c *Context) RequestID() string { return c.requestID }
func (c *Context) ParentID() string  { return c.parentID }
func (c *Context) Level() int        { return c.level }
func (c *Context) Timeout() time.Duration { return c.timeout }
func (c *Context) RetryCount() int   { return c.retries }
func (c *Context) NodeID() string    { return c.nodeID }
func (c *Context) Metrics() bool     { return c.metrics }
func (c *Context) CachedResult() bool { return c.cached }

// Params implements types.CallContext.
func (c *Context) Params() interface{} { return c.params }

// Meta implements types.CallContext. The returned map is shared with
// every context in this call's family; mutations are visible to them all.
func (c *Context) Meta() map[string]interface{} { return c.meta }

// SetNodeID records which node actually executed the call, for error
// attribution and $node.* introspection.
func (c *Context) SetNodeID(nodeID string) { c.nodeID = nodeID }

// SetMetrics toggles whether this call should be timed/reported.
func (c *Context) SetMetrics(on bool) { c.metrics = on }

// SetCachedResult marks that this call's result was served from cache.
func (c *Context) SetCachedResult(cached bool) { c.cached = cached }

// IncrRetry bumps the retry counter and returns the new value, used by
// the broker's retry loop (spec §4.7 step 5).
func (c *Context) IncrRetry() int {
	c.retries++
	return c.retries
}
