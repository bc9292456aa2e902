package transit

import "github.com/cuemby/relaybroker/pkg/types"

// Serializer is the pluggable packet codec of spec §6: "serialize(object,
// packetKind) -> bytes; deserialize(bytes, packetKind) -> object",
// symmetric and total over well-formed packets. Transit's core dispatch
// passes typed *types.Packet values directly to pkg/transport (see
// DESIGN.md for why); Serializer is consumed by transport bindings that
// actually cross a wire, such as pkg/transport/grpcbus.
type Serializer interface {
	Serialize(pkt *types.Packet) ([]byte, error)
	Deserialize(data []byte) (*types.Packet, error)
}
