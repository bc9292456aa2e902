// Package local implements an in-process Transport binding: packets are
// delivered by direct handler invocation rather than serialized over a
// wire, for single-process demos and tests.
//
// Its subscriber/broadcast shape is adapted from the teacher's
// pkg/events.Broker: one buffered channel shared by every topic feeds the
// dispatch goroutine, so Publish does not wait for handlers to run (it
// blocks only while the queue is full).
package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/relaybroker/pkg/transport"
	"github.com/cuemby/relaybroker/pkg/types"
)

type envelope struct {
	kind   transport.TopicKind
	nodeID string
	pkt    *types.Packet
}

// Bus is a process-wide in-memory Transport. Every broker sharing a Bus
// instance can reach every other — the intended use is multiple brokers
// in one test process, or a single-node demo.
//
// Scoped topics (nodeID != "", e.g. REQ/RES/EVENT addressed to one node)
// keep single-handler replace semantics, since at most one local broker
// ever owns a given nodeID. Unscoped topics (nodeID == "", e.g. INFO/
// HEARTBEAT broadcasts) fan out to every subscriber instead of replacing,
// so that several brokers sharing one Bus each observe the same feed.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]transport.Handler // "kind|nodeID" -> handlers

	queue  chan envelope
	stopCh chan struct{}
}

// NewBus constructs a Bus with a bounded dispatch queue, mirroring the
// teacher's 100-event buffer.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]transport.Handler),
		queue:    make(chan envelope, 100),
		stopCh:   make(chan struct{}),
	}
}

func key(kind transport.TopicKind, nodeID string) string {
	return fmt.Sprintf("%s|%s", kind, nodeID)
}

// Connect starts the dispatch loop.
func (b *Bus) Connect(ctx context.Context) error {
	go b.run()
	return nil
}

// Disconnect stops the dispatch loop. Safe to call once.
func (b *Bus) Disconnect(ctx context.Context) error {
	close(b.stopCh)
	return nil
}

// Subscribe registers handler for (kind, nodeID). For a scoped topic
// (nodeID != "") it replaces any prior handler; for an unscoped topic
// (nodeID == "") it adds handler alongside any already registered.
func (b *Bus) Subscribe(kind transport.TopicKind, nodeID string, handler transport.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key(kind, nodeID)
	if nodeID == "" {
		b.handlers[k] = append(b.handlers[k], handler)
	} else {
		b.handlers[k] = []transport.Handler{handler}
	}
	return nil
}

// Publish enqueues pkt for dispatch to (kind, nodeID)'s handler, if any.
// Matches the teacher's fire-and-forget semantics: a full queue drops
// the packet under ctx cancellation or on Disconnect, never blocks past
// that.
func (b *Bus) Publish(ctx context.Context, kind transport.TopicKind, nodeID string, pkt *types.Packet) error {
	env := envelope{kind: kind, nodeID: nodeID, pkt: pkt}
	select {
	case b.queue <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.stopCh:
		return nil
	}
}

func (b *Bus) run() {
	for {
		select {
		case env := <-b.queue:
			b.dispatch(env)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bus) dispatch(env envelope) {
	b.mu.RLock()
	hs := b.handlers[key(env.kind, env.nodeID)]
	b.mu.RUnlock()
	for _, h := range hs {
		h(env.pkt)
	}
}
