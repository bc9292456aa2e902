// Package transport defines the narrow, transport-agnostic contract
// pkg/transit drives (spec §6 "Transport contract"). Concrete bindings —
// pkg/transport/local (in-process) and pkg/transport/grpcbus (networked)
// — implement it; pkg/transit never imports either directly.
package transport

import (
	"context"

	"github.com/cuemby/relaybroker/pkg/types"
)

// TopicKind identifies one of the fixed subscription topics of spec §6.
type TopicKind string

const (
	TopicRequest    TopicKind = "REQ"
	TopicResponse   TopicKind = "RES"
	TopicEvent      TopicKind = "EVENT"
	TopicInfo       TopicKind = "INFO"
	TopicHeartbeat  TopicKind = "HEARTBEAT"
	TopicDisconnect TopicKind = "DISCONNECT"
	TopicDiscover   TopicKind = "DISCOVER"
	TopicPing       TopicKind = "PING"
	TopicPong       TopicKind = "PONG"
)

// Handler processes one inbound packet received on a subscribed topic.
type Handler func(pkt *types.Packet)

// PeerRegistrar is an optional capability: transport bindings that have
// a notion of a peer dial address (pkg/transport/grpcbus) implement it so
// the broker can learn a newly-seen node's address from its INFO
// announcement instead of requiring it pre-configured both ways.
// Bindings with no such notion (pkg/transport/local) simply don't
// implement it.
type PeerRegistrar interface {
	AddPeer(nodeID, addr string)
}

// SelfAddresser is an optional capability: transport bindings that can
// report their own dial address so the broker can advertise it in its
// own INFO announcement's IPList.
type SelfAddresser interface {
	Addr() string
}

// Transport is the pluggable messaging substrate contract of spec §6.
// NodeID-scoped topics (REQ, RES, EVENT, PING, PONG) take the target node
// id as the optional Subscribe/Publish argument; unscoped topics (INFO,
// HEARTBEAT, DISCONNECT, DISCOVER) pass an empty nodeID.
type Transport interface {
	// Connect establishes the underlying substrate connection.
	Connect(ctx context.Context) error
	// Disconnect tears it down.
	Disconnect(ctx context.Context) error
	// Subscribe registers handler for every packet published on
	// (kind, nodeID). Subscribing again to a node-scoped (kind, nodeID)
	// replaces the previous handler; subscribing again to an unscoped
	// topic (empty nodeID) adds a handler beside the earlier ones.
	Subscribe(kind TopicKind, nodeID string, handler Handler) error
	// Publish sends pkt to (kind, nodeID).
	Publish(ctx context.Context, kind TopicKind, nodeID string, pkt *types.Packet) error
}
