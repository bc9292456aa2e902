/*
Package grpcbus is the networked transport.Transport binding: every node
runs a gRPC server and dials its peers directly, exchanging packets over
one hand-authored bidi-streaming RPC, relaybroker.Mesh/Stream.

The teacher's pkg/api and pkg/client show the connection/service shape
this package follows (NewServer wraps a *grpc.Server, NewClient wraps a
*grpc.ClientConn), but their generated api/proto stubs were not part of
the retrieved pack. Rather than depend on protoc output this package
never had, service.go defines the grpc.ServiceDesc and dials the stream
by hand with grpc.ClientConn.NewStream, and codec.go registers a small
JSON grpc/encoding.Codec so *types.Packet crosses the wire the same way
pkg/transit/jsoncodec already encodes it for every other purpose.

	tr := grpcbus.New("node-b", ":7946")
	tr.AddPeer("node-a", "node-a.internal:7946")
	tr.Connect(ctx)
	defer tr.Disconnect(ctx)

Peer membership is not discovered here — the host process is expected to
learn peer addresses some other way (static config, DNS, a join token)
and call AddPeer, mirroring the teacher's client taking an address rather
than a discovery mechanism.

mTLS peer authentication, which the teacher's pkg/api/pkg/client layer
carries, is deliberately not reproduced: built-in peer authentication is
an explicit Non-goal of this broker.
*/
package grpcbus
