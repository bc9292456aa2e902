// Package transit turns broker operations into packets and back (spec
// §4.6): it owns transport subscription lifecycle, the pending-response
// table, and dispatch of inbound packets by kind.
package transit

import (
	"context"
	"time"

	"github.com/cuemby/relaybroker/pkg/brokererr"
	"github.com/cuemby/relaybroker/pkg/transport"
	"github.com/cuemby/relaybroker/pkg/types"
)

// Callbacks are the broker-supplied handlers Transit dispatches inbound
// packets to. Transit never imports pkg/broker — wiring happens this way
// to avoid the cyclic reference spec §9's design notes call out.
type Callbacks struct {
	OnInfo       func(sender string, payload *types.InfoPayload)
	OnHeartbeat  func(sender string, payload *types.HeartbeatPayload) (known bool)
	OnDisconnect func(sender string)
	OnDiscover   func(sender string)
	OnEvent      func(sender string, payload *types.EventPayload)
	// OnRequest invokes the local action chain and returns its result;
	// an error is converted to a RESPONSE error envelope.
	OnRequest func(ctx context.Context, sender string, req *types.RequestPayload) (interface{}, error)
}

// RequestSpec is the REQUEST packet content for SendRequest, mirroring
// spec §4.6's sendRequest field list.
type RequestSpec struct {
	ID        string
	RequestID string
	ParentID  string
	Action    string
	Params    interface{}
	Meta      map[string]interface{}
	Timeout   time.Duration
	Level     int
	Metrics   bool
}

// Transit drives one Transport binding for one local node.
type Transit struct {
	nodeID    string
	transport transport.Transport
	pending   *Pending
	cb        Callbacks
	stopCh    chan struct{}
}

// New constructs a Transit bound to tr, dispatching inbound packets to cb.
func New(nodeID string, tr transport.Transport, cb Callbacks) *Transit {
	return &Transit{
		nodeID:    nodeID,
		transport: tr,
		pending:   NewPending(),
		cb:        cb,
		stopCh:    make(chan struct{}),
	}
}

// Connect subscribes to every topic this node must observe and connects
// the underlying transport (spec §4.6: "subscribe to per-node
// request/response/event topics on connect"). INFO/HEARTBEAT/DISCONNECT/
// DISCOVER are broadcast topics (every node observes the same feed);
// REQUEST/RESPONSE/EVENT/PING/PONG are addressed to this node specifically
// — EVENT is node-scoped so a sender can target exactly the node(s) its
// endpoint selection actually chose, instead of every node self-filtering
// a broadcast by group name.
func (t *Transit) Connect(ctx context.Context) error {
	if err := t.transport.Connect(ctx); err != nil {
		return brokererr.TransportError(err)
	}
	subs := []struct {
		kind transport.TopicKind
		node string
		h    transport.Handler
	}{
		{transport.TopicRequest, t.nodeID, t.handleRequest},
		{transport.TopicResponse, t.nodeID, t.handleResponse},
		{transport.TopicEvent, t.nodeID, t.handleEvent},
		{transport.TopicInfo, "", t.handleInfo},
		{transport.TopicHeartbeat, "", t.handleHeartbeat},
		{transport.TopicDisconnect, "", t.handleDisconnect},
		{transport.TopicDiscover, "", t.handleDiscover},
		{transport.TopicPing, t.nodeID, t.handlePing},
		{transport.TopicPong, t.nodeID, t.handlePong},
	}
	for _, s := range subs {
		if err := t.transport.Subscribe(s.kind, s.node, s.h); err != nil {
			return brokererr.TransportError(err)
		}
	}
	return nil
}

// Stop rejects every outstanding pending slot with BROKER_STOPPING,
// announces a DISCONNECT, and tears down the transport. Call at most once.
func (t *Transit) Stop(ctx context.Context) error {
	close(t.stopCh)
	t.pending.RejectAll()
	_ = t.PublishDisconnect(ctx)
	return t.transport.Disconnect(ctx)
}

// SendRequest serializes and publishes a REQUEST to nodeID, registers a
// pending slot, and blocks until it settles (spec §4.6 sendRequest).
func (t *Transit) SendRequest(ctx context.Context, nodeID string, spec RequestSpec) (interface{}, error) {
	payload := &types.RequestPayload{
		ID:        spec.ID,
		RequestID: spec.RequestID,
		ParentID:  spec.ParentID,
		Action:    spec.Action,
		Params:    spec.Params,
		Meta:      spec.Meta,
		Timeout:   spec.Timeout,
		Level:     spec.Level,
		Metrics:   spec.Metrics,
	}
	pkt := &types.Packet{Ver: types.ProtocolVersion, Kind: types.PacketRequest, Sender: t.nodeID, Request: payload}

	t.pending.Register(spec.ID, spec.Action, nodeID, spec.Timeout)
	if err := t.transport.Publish(ctx, transport.TopicRequest, nodeID, pkt); err != nil {
		t.pending.Reject(spec.ID, brokererr.TransportError(err))
	}
	return t.pending.Wait(ctx, spec.ID)
}

// PublishEventTo sends an EVENT packet to nodeID specifically, addressed
// the same way SendRequest addresses a REQUEST. The payload's Groups
// field tells the receiver which subscriber groups this emission
// targets; a nil Groups means "every local subscriber for this event"
// (broadcast mode).
func (t *Transit) PublishEventTo(ctx context.Context, nodeID string, payload *types.EventPayload) error {
	pkt := &types.Packet{Ver: types.ProtocolVersion, Kind: types.PacketEvent, Sender: t.nodeID, Event: payload}
	return t.transport.Publish(ctx, transport.TopicEvent, nodeID, pkt)
}

// PublishInfo broadcasts this node's INFO announcement.
func (t *Transit) PublishInfo(ctx context.Context, payload *types.InfoPayload) error {
	pkt := &types.Packet{Ver: types.ProtocolVersion, Kind: types.PacketInfo, Sender: t.nodeID, Info: payload}
	return t.transport.Publish(ctx, transport.TopicInfo, "", pkt)
}

// PublishHeartbeat broadcasts this node's HEARTBEAT.
func (t *Transit) PublishHeartbeat(ctx context.Context, payload *types.HeartbeatPayload) error {
	pkt := &types.Packet{Ver: types.ProtocolVersion, Kind: types.PacketHeartbeat, Sender: t.nodeID, Heartbeat: payload}
	return t.transport.Publish(ctx, transport.TopicHeartbeat, "", pkt)
}

// PublishDisconnect announces a clean shutdown.
func (t *Transit) PublishDisconnect(ctx context.Context) error {
	pkt := &types.Packet{Ver: types.ProtocolVersion, Kind: types.PacketDisconnect, Sender: t.nodeID, Disconnect: &types.DisconnectPayload{}}
	return t.transport.Publish(ctx, transport.TopicDisconnect, "", pkt)
}

// PublishDiscover asks every peer to re-announce its INFO.
func (t *Transit) PublishDiscover(ctx context.Context) error {
	pkt := &types.Packet{Ver: types.ProtocolVersion, Kind: types.PacketDiscover, Sender: t.nodeID, Discover: &types.DiscoverPayload{}}
	return t.transport.Publish(ctx, transport.TopicDiscover, "", pkt)
}

// Ping round-trips a PING to nodeID and returns the measured latency.
// Only one in-flight ping per target node is tracked at a time — the
// PING/PONG payloads carry no correlation id beyond their timestamp
// (spec §6), so a second concurrent Ping to the same node would settle
// the first call's slot instead of its own.
func (t *Transit) Ping(ctx context.Context, nodeID string) (time.Duration, error) {
	sent := time.Now()
	reqID := "ping:" + nodeID
	t.pending.Register(reqID, "$node.ping", nodeID, 0)

	pkt := &types.Packet{Ver: types.ProtocolVersion, Kind: types.PacketPing, Sender: t.nodeID, Ping: &types.PingPayload{Time: sent}}
	if err := t.transport.Publish(ctx, transport.TopicPing, nodeID, pkt); err != nil {
		t.pending.Reject(reqID, brokererr.TransportError(err))
	}
	if _, err := t.pending.Wait(ctx, reqID); err != nil {
		return 0, err
	}
	return time.Since(sent), nil
}

// StartHeartbeatLoop publishes a HEARTBEAT on every tick until ctx ends
// or Stop is called (spec §4.6 broadcastHeartbeat).
func (t *Transit) StartHeartbeatLoop(ctx context.Context, interval time.Duration, cpu func() float64) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = t.PublishHeartbeat(ctx, &types.HeartbeatPayload{CPU: cpu()})
			case <-ctx.Done():
				return
			case <-t.stopCh:
				return
			}
		}
	}()
}

func (t *Transit) handleRequest(pkt *types.Packet) {
	if pkt.Request == nil || t.cb.OnRequest == nil {
		return
	}
	req := pkt.Request

	ctx := context.Background()
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	data, err := t.cb.OnRequest(ctx, pkt.Sender, req)
	resp := &types.ResponsePayload{ID: req.ID, Success: err == nil}
	if err != nil {
		resp.Error = brokererr.ToDetail(err, t.nodeID)
	} else {
		resp.Data = data
	}
	respPkt := &types.Packet{Ver: types.ProtocolVersion, Kind: types.PacketResponse, Sender: t.nodeID, Response: resp}
	_ = t.transport.Publish(context.Background(), transport.TopicResponse, pkt.Sender, respPkt)
}

func (t *Transit) handleResponse(pkt *types.Packet) {
	if pkt.Response == nil {
		return
	}
	r := pkt.Response
	if r.Success {
		t.pending.Resolve(r.ID, r.Data)
		return
	}
	t.pending.Reject(r.ID, brokererr.FromDetail(r.Error))
}

func (t *Transit) handleEvent(pkt *types.Packet) {
	if pkt.Event == nil || t.cb.OnEvent == nil {
		return
	}
	t.cb.OnEvent(pkt.Sender, pkt.Event)
}

func (t *Transit) handleInfo(pkt *types.Packet) {
	if pkt.Info == nil || t.cb.OnInfo == nil || pkt.Sender == t.nodeID {
		return
	}
	t.cb.OnInfo(pkt.Sender, pkt.Info)
}

func (t *Transit) handleHeartbeat(pkt *types.Packet) {
	if pkt.Heartbeat == nil || pkt.Sender == t.nodeID {
		return
	}
	known := true
	if t.cb.OnHeartbeat != nil {
		known = t.cb.OnHeartbeat(pkt.Sender, pkt.Heartbeat)
	}
	if !known {
		_ = t.PublishDiscover(context.Background())
	}
}

func (t *Transit) handleDisconnect(pkt *types.Packet) {
	if pkt.Sender == t.nodeID {
		return
	}
	if t.cb.OnDisconnect != nil {
		t.cb.OnDisconnect(pkt.Sender)
	}
	t.pending.RejectNode(pkt.Sender)
}

func (t *Transit) handleDiscover(pkt *types.Packet) {
	if pkt.Sender == t.nodeID || t.cb.OnDiscover == nil {
		return
	}
	t.cb.OnDiscover(pkt.Sender)
}

func (t *Transit) handlePing(pkt *types.Packet) {
	if pkt.Ping == nil {
		return
	}
	pong := &types.Packet{Ver: types.ProtocolVersion, Kind: types.PacketPong, Sender: t.nodeID, Pong: &types.PongPayload{Time: pkt.Ping.Time}}
	_ = t.transport.Publish(context.Background(), transport.TopicPong, pkt.Sender, pong)
}

func (t *Transit) handlePong(pkt *types.Packet) {
	if pkt.Pong == nil {
		return
	}
	t.pending.Resolve("ping:"+pkt.Sender, pkt.Pong.Time)
}
