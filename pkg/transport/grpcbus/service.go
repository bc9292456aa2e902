package grpcbus

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName/streamName name the single bidi-streaming RPC this binding
// exposes. There is no api/proto package in the retrieved pack to adapt
// generated stubs from (see doc.go), so the grpc.ServiceDesc below is
// authored by hand instead of by protoc: one stream, "Mesh.Stream",
// carries every packet kind in both directions, tagged by
// types.Packet.Kind rather than by distinct RPC methods.
const (
	serviceName = "relaybroker.Mesh"
	streamName  = "Stream"
	methodPath  = "/" + serviceName + "/" + streamName
)

// meshServer is implemented by *Transport; registerMeshServer wires it
// into a *grpc.Server via the hand-rolled ServiceDesc.
type meshServer interface {
	handleStream(stream grpc.ServerStream) error
}

// meshServiceDesc is the server-side registration descriptor. Unlike a
// protoc-generated one, HandlerType carries no compiler-checked server
// interface beyond the meshServer contract above.
var meshServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*meshServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    streamName,
			Handler:       streamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "pkg/transport/grpcbus/service.go",
}

func streamHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(meshServer).handleStream(stream)
}

// registerMeshServer attaches t's stream handler to an existing
// *grpc.Server, the hand-rolled equivalent of a generated RegisterXServer
// call.
func registerMeshServer(s *grpc.Server, t *Transport) {
	s.RegisterService(&meshServiceDesc, t)
}

// newMeshStream opens the client side of the Mesh.Stream RPC against an
// already-dialed connection, using the package's JSON codec via content
// subtype negotiation instead of the protobuf default.
func newMeshStream(ctx context.Context, cc *grpc.ClientConn) (grpc.ClientStream, error) {
	desc := &grpc.StreamDesc{StreamName: streamName, ServerStreams: true, ClientStreams: true}
	return cc.NewStream(ctx, desc, methodPath, grpc.CallContentSubtype(codecName))
}
