package grpcbus

import (
	"context"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/relaybroker/pkg/log"
	"github.com/cuemby/relaybroker/pkg/transport"
	"github.com/cuemby/relaybroker/pkg/types"
)

// scopedKinds are addressed to one specific node; every other TopicKind
// is broadcast to every known peer (spec §6, same split pkg/transit.Connect
// already subscribes by).
var scopedKinds = map[transport.TopicKind]bool{
	transport.TopicRequest:  true,
	transport.TopicResponse: true,
	transport.TopicEvent:    true,
	transport.TopicPing:     true,
	transport.TopicPong:     true,
}

func key(kind transport.TopicKind, nodeID string) string {
	return string(kind) + "|" + nodeID
}

// peerConn is one outbound Mesh.Stream to a peer. gRPC client streams
// aren't safe for concurrent SendMsg, so every send through the same
// peer is serialized by mu.
type peerConn struct {
	mu     sync.Mutex
	conn   *grpc.ClientConn
	stream grpc.ClientStream
}

func (p *peerConn) send(pkt *types.Packet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream.SendMsg(pkt)
}

func (p *peerConn) close() {
	_ = p.conn.Close()
}

// Transport is a networked transport.Transport binding: a gRPC server
// accepting the hand-rolled Mesh.Stream RPC (see service.go) plus one
// lazily-dialed outbound stream per peer this node addresses.
//
// Peer addresses are not discovered by this package — AddPeer is called
// by whoever boots the node (cmd/relaybrokerd, or a test) once it knows
// the cluster's membership, the same way the teacher's pkg/client dials
// an address handed to it rather than discovering one itself.
type Transport struct {
	nodeID     string
	listenAddr string
	dialOpts   []grpc.DialOption

	grpcServer *grpc.Server
	listener   net.Listener

	mu       sync.Mutex
	peers    map[string]string // nodeID -> dial address
	conns    map[string]*peerConn
	handlers map[string][]transport.Handler
}

// New constructs a Transport for nodeID that will listen on listenAddr
// once Connect is called. An empty listenAddr disables the server side
// (useful for a node that only ever dials out, e.g. in tests).
func New(nodeID, listenAddr string) *Transport {
	return &Transport{
		nodeID:     nodeID,
		listenAddr: listenAddr,
		dialOpts:   []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		peers:      make(map[string]string),
		conns:      make(map[string]*peerConn),
		handlers:   make(map[string][]transport.Handler),
	}
}

// AddPeer records addr as the dial target for nodeID. Safe to call before
// or after Connect.
func (t *Transport) AddPeer(nodeID, addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[nodeID] = addr
}

// Addr returns the server's bound address once Connect has started
// listening (useful when listenAddr was ":0" and the OS picked a port).
// It returns "" before Connect or when this node never listens.
func (t *Transport) Addr() string {
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

// Connect starts the gRPC server, if a listen address was configured.
func (t *Transport) Connect(ctx context.Context) error {
	if t.listenAddr == "" {
		return nil
	}
	lis, err := net.Listen("tcp", t.listenAddr)
	if err != nil {
		return fmt.Errorf("grpcbus: listen %s: %w", t.listenAddr, err)
	}
	t.listener = lis
	t.grpcServer = grpc.NewServer()
	registerMeshServer(t.grpcServer, t)

	go func() {
		if err := t.grpcServer.Serve(lis); err != nil {
			log.WithComponent("grpcbus").Debug().Err(err).Msg("mesh server stopped")
		}
	}()
	return nil
}

// Disconnect closes every outbound peer stream and stops the server.
func (t *Transport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	conns := t.conns
	t.conns = make(map[string]*peerConn)
	t.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	if t.grpcServer != nil {
		t.grpcServer.GracefulStop()
	}
	return nil
}

// Subscribe registers handler for packets this node receives on
// (kind, nodeID), matching pkg/transport/local's replace-vs-fan-out
// semantics: per-node topics replace, broadcast topics fan out.
func (t *Transport) Subscribe(kind transport.TopicKind, nodeID string, handler transport.Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key(kind, nodeID)
	if nodeID == "" {
		t.handlers[k] = append(t.handlers[k], handler)
	} else {
		t.handlers[k] = []transport.Handler{handler}
	}
	return nil
}

// Publish sends pkt to (kind, nodeID): a single dialed peer for a scoped
// kind, or every known peer for a broadcast kind.
func (t *Transport) Publish(ctx context.Context, kind transport.TopicKind, nodeID string, pkt *types.Packet) error {
	if scopedKinds[kind] {
		conn, err := t.dial(nodeID)
		if err != nil {
			return err
		}
		return conn.send(pkt)
	}

	t.mu.Lock()
	targets := make([]string, 0, len(t.peers))
	for peerID := range t.peers {
		targets = append(targets, peerID)
	}
	t.mu.Unlock()

	var firstErr error
	for _, peerID := range targets {
		conn, err := t.dial(peerID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := conn.send(pkt); err != nil {
			log.WithComponent("grpcbus").Warn().Err(err).Str("peer", peerID).Msg("broadcast send failed")
		}
	}
	return firstErr
}

func (t *Transport) dial(nodeID string) (*peerConn, error) {
	t.mu.Lock()
	if c, ok := t.conns[nodeID]; ok {
		t.mu.Unlock()
		return c, nil
	}
	addr, ok := t.peers[nodeID]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("grpcbus: no known address for node %q", nodeID)
	}

	conn, err := grpc.NewClient(addr, t.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpcbus: dial %q: %w", addr, err)
	}
	stream, err := newMeshStream(context.Background(), conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("grpcbus: open stream to %q: %w", addr, err)
	}

	pc := &peerConn{conn: conn, stream: stream}
	t.mu.Lock()
	t.conns[nodeID] = pc
	t.mu.Unlock()
	return pc, nil
}

// handleStream is the server side of Mesh.Stream: it receives packets
// from one connected peer for as long as the stream is open and
// dispatches each to this node's matching local handlers.
func (t *Transport) handleStream(stream grpc.ServerStream) error {
	for {
		pkt := &types.Packet{}
		if err := stream.RecvMsg(pkt); err != nil {
			return err
		}
		t.dispatch(pkt)
	}
}

func (t *Transport) dispatch(pkt *types.Packet) {
	kind := transport.TopicKind(pkt.Kind)
	k := key(kind, "")
	if scopedKinds[kind] {
		k = key(kind, t.nodeID)
	}

	t.mu.Lock()
	hs := t.handlers[k]
	t.mu.Unlock()
	for _, h := range hs {
		h(pkt)
	}
}
