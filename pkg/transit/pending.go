package transit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/relaybroker/pkg/brokererr"
)

type result struct {
	data interface{}
	err  error
}

type slot struct {
	resultCh chan result
	timer    *time.Timer
	nodeID   string
	settled  bool
}

// Pending is the request/response correlation table of spec §4.6: at
// most one live slot per requestId, exactly one of
// {resolve, reject, timeout} ever fires for it.
type Pending struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// NewPending returns an empty table.
func NewPending() *Pending {
	return &Pending{slots: make(map[string]*slot)}
}

// Register opens a pending slot for requestID. If timeout > 0, a timer
// arms that rejects the slot with REQUEST_TIMEOUT once it fires, unless
// Resolve/Reject beats it to settling the slot first.
func (p *Pending) Register(requestID, action, nodeID string, timeout time.Duration) {
	s := &slot{resultCh: make(chan result, 1), nodeID: nodeID}

	p.mu.Lock()
	p.slots[requestID] = s
	p.mu.Unlock()

	if timeout > 0 {
		s.timer = time.AfterFunc(timeout, func() {
			p.settle(requestID, nil, brokererr.RequestTimeout(action, nodeID, "request %s timed out after %s", requestID, timeout))
		})
	}
}

// Resolve settles requestID successfully. A no-op if the slot already
// settled or was never registered.
func (p *Pending) Resolve(requestID string, data interface{}) {
	p.settle(requestID, data, nil)
}

// Reject settles requestID with err.
func (p *Pending) Reject(requestID string, err error) {
	p.settle(requestID, nil, err)
}

// settle performs the single-shot resolution: marking the slot settled
// under the table lock is the compare-and-set — a second settle attempt
// for the same requestID finds it already settled (or already removed by
// Wait) and does nothing.
func (p *Pending) settle(requestID string, data interface{}, err error) {
	p.mu.Lock()
	s, ok := p.slots[requestID]
	if !ok || s.settled {
		p.mu.Unlock()
		return
	}
	s.settled = true
	p.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.resultCh <- result{data: data, err: err}
}

// Wait blocks until requestID resolves, rejects, times out, or ctx ends,
// then removes the slot. A slot settled before Wait is called still
// delivers its result.
func (p *Pending) Wait(ctx context.Context, requestID string) (interface{}, error) {
	p.mu.Lock()
	s, ok := p.slots[requestID]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("transit: no pending slot for request %s", requestID)
	}
	defer func() {
		p.mu.Lock()
		if p.slots[requestID] == s {
			delete(p.slots, requestID)
		}
		p.mu.Unlock()
	}()

	select {
	case r := <-s.resultCh:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RejectNode rejects every pending slot targeting nodeID with
// NODE_DISCONNECTED, per spec §4.6's disconnect invariant.
func (p *Pending) RejectNode(nodeID string) {
	p.mu.Lock()
	var ids []string
	for id, s := range p.slots {
		if s.nodeID == nodeID {
			ids = append(ids, id)
		}
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.Reject(id, brokererr.NodeDisconnected(nodeID))
	}
}

// RejectAll rejects every outstanding slot with BROKER_STOPPING, per
// spec §5's cancellation policy for broker.stop.
func (p *Pending) RejectAll() {
	p.mu.Lock()
	ids := make([]string, 0, len(p.slots))
	for id := range p.slots {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.Reject(id, brokererr.BrokerStopping())
	}
}
