// Package types holds the broker's data model: nodes, services, actions,
// events and the wire packets exchanged between peer brokers.
package types

import "time"

// NodeStatus represents the liveness of a cluster node.
type NodeStatus string

const (
	NodeStatusUnknown NodeStatus = "unknown"
	NodeStatusOnline  NodeStatus = "online"
	NodeStatusOffline NodeStatus = "offline"
)

// Node is a broker process participating in the cluster.
//
// A Node is created on the first INFO packet received from a peer (or at
// startup for the local node); it is mutated only by INFO/HEARTBEAT/
// DISCONNECT processing and is never removed from the catalog on its own —
// `Available=false` is the tombstone left behind by a disconnect so that a
// late, reordered packet from a dead node can't resurrect stale state.
type Node struct {
	ID              string
	Available       bool
	Local           bool
	LastHeartbeatAt time.Time
	CPUUsage        float64
	IPList          []string
	Client          ClientInfo
	Uptime          time.Duration
	Config          map[string]interface{}
}

// ClientInfo identifies the broker runtime that owns a Node.
type ClientInfo struct {
	Type        string
	Version     string
	LangVersion string
}

// ServiceMode distinguishes the load-balanced default delivery of events
// from explicit broadcast to every subscriber.
type ServiceMode string

// Service is a named, versioned collection of actions and event
// subscribers hosted on a single node.
//
// Two services are considered equal iff Name and Version match; identity
// for catalog purposes is the triple (Name, Version, NodeID).
type Service struct {
	Name     string
	Version  string
	NodeID   string
	Settings map[string]interface{}
	Actions  map[string]*ActionDescriptor
	Events   map[string]*EventDescriptor
}

// Key returns the (name, version) identity used for service equality.
func (s *Service) Key() string {
	if s.Version == "" {
		return s.Name
	}
	return s.Name + "@" + s.Version
}

// ActionDescriptor is the service-author-facing description of a remote
// procedure: its name, optional version, cache policy, opaque parameter
// schema and (for local endpoints only) its handler.
type ActionDescriptor struct {
	Name    string
	Version string
	Cache   bool
	Schema  []byte // opaque to the core; handed to the Validator pluggable
	Handler Handler
}

// Handler is the user-supplied implementation of a local action.
type Handler func(ctx CallContext) (interface{}, error)

// CallContext is the minimal surface pkg/callctx.Context exposes to a
// Handler, kept here to avoid an import cycle between pkg/types and
// pkg/callctx.
type CallContext interface {
	Params() interface{}
	Meta() map[string]interface{}
}

// EventDescriptor describes a subscription to a named event, optionally
// scoped to a load-balanced group (defaults to the owning service name).
type EventDescriptor struct {
	Name    string
	Group   string
	Handler EventHandler
}

// EventHandler is the user-supplied implementation of an event subscriber.
type EventHandler func(ctx CallContext)

// Endpoint is the (node, service, action) triple spec §3 calls an "action
// endpoint": one node's ability to serve one action. Circuit-breaker state
// and call counters are runtime concerns owned by pkg/registry, not part
// of this immutable descriptor.
type Endpoint struct {
	NodeID  string
	Local   bool
	Service *Service
	Action  *ActionDescriptor
}

// CircuitState is the circuit-breaker state of a single endpoint.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// PacketKind tags the payload carried by a Packet.
type PacketKind string

const (
	PacketInfo       PacketKind = "INFO"
	PacketHeartbeat  PacketKind = "HEARTBEAT"
	PacketDiscover   PacketKind = "DISCOVER"
	PacketRequest    PacketKind = "REQUEST"
	PacketResponse   PacketKind = "RESPONSE"
	PacketEvent      PacketKind = "EVENT"
	PacketDisconnect PacketKind = "DISCONNECT"
	PacketPing       PacketKind = "PING"
	PacketPong       PacketKind = "PONG"
)

// ProtocolVersion is the wire protocol version stamped on every packet.
const ProtocolVersion = "1"

// Packet is the tagged-union envelope exchanged between brokers. Exactly
// one of the typed payload fields is populated, selected by Kind.
type Packet struct {
	Ver    string     `json:"ver"`
	Kind   PacketKind `json:"kind"`
	Sender string     `json:"sender"`

	Info       *InfoPayload       `json:"info,omitempty"`
	Heartbeat  *HeartbeatPayload  `json:"heartbeat,omitempty"`
	Discover   *DiscoverPayload   `json:"discover,omitempty"`
	Request    *RequestPayload    `json:"request,omitempty"`
	Response   *ResponsePayload   `json:"response,omitempty"`
	Event      *EventPayload      `json:"event,omitempty"`
	Disconnect *DisconnectPayload `json:"disconnect,omitempty"`
	Ping       *PingPayload       `json:"ping,omitempty"`
	Pong       *PongPayload       `json:"pong,omitempty"`
}

// ServiceSnapshot is the wire form of a Service carried in an INFO packet:
// actions/events are flattened to their descriptors minus the Handler
// field (handlers are never meaningful across the wire).
type ServiceSnapshot struct {
	Name     string                     `json:"name"`
	Version  string                     `json:"version"`
	Settings map[string]interface{}     `json:"settings,omitempty"`
	Actions  []ActionSnapshot           `json:"actions"`
	Events   []EventSnapshot            `json:"events"`
}

// ActionSnapshot is the wire form of an ActionDescriptor.
type ActionSnapshot struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Cache   bool   `json:"cache"`
	Schema  []byte `json:"schema,omitempty"`
}

// EventSnapshot is the wire form of an EventDescriptor.
type EventSnapshot struct {
	Name  string `json:"name"`
	Group string `json:"group,omitempty"`
}

// InfoPayload announces (or re-announces) a node's full set of hosted
// services. It always carries the complete picture — the registry diffs
// against previously stored state rather than trusting deltas.
type InfoPayload struct {
	Services []ServiceSnapshot `json:"services"`
	IPList   []string          `json:"ipList,omitempty"`
	Client   ClientInfo        `json:"client"`
	Config   map[string]interface{} `json:"config,omitempty"`
	Uptime   time.Duration     `json:"uptime"`
}

// HeartbeatPayload carries only liveness/load data.
type HeartbeatPayload struct {
	CPU float64 `json:"cpu"`
}

// DiscoverPayload requests that the receiver reply with its own INFO.
type DiscoverPayload struct{}

// RequestPayload is a REQUEST packet: an action invocation sent to the
// node hosting the chosen endpoint.
type RequestPayload struct {
	ID        string                 `json:"id"`
	RequestID string                 `json:"requestId"`
	ParentID  string                 `json:"parentId,omitempty"`
	Action    string                 `json:"action"`
	Params    interface{}            `json:"params,omitempty"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	Timeout   time.Duration          `json:"timeout"`
	Level     int                    `json:"level"`
	Metrics   bool                   `json:"metrics"`
}

// ResponsePayload is a RESPONSE packet correlated back to a REQUEST by ID.
type ResponsePayload struct {
	ID      string       `json:"id"`
	Success bool         `json:"success"`
	Data    interface{}  `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail is the wire form of a broker error (see pkg/brokererr).
type ErrorDetail struct {
	Name      string                 `json:"name"`
	Message   string                 `json:"message"`
	Code      int                    `json:"code"`
	Kind      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Stack     string                 `json:"stack,omitempty"`
	NodeID    string                 `json:"nodeID,omitempty"`
	Retryable bool                   `json:"retryable"`
}

// EventPayload is an EVENT packet, delivered to one or more nodes.
type EventPayload struct {
	Event  string      `json:"event"`
	Data   interface{} `json:"data,omitempty"`
	Groups []string    `json:"groups,omitempty"`
}

// DisconnectPayload announces a clean shutdown.
type DisconnectPayload struct{}

// PingPayload/PongPayload support the latency probe (SPEC_FULL §11).
type PingPayload struct {
	Time time.Time `json:"time"`
}

type PongPayload struct {
	Time time.Time `json:"time"`
}
