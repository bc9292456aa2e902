package grpcbus

import (
	"fmt"

	"google.golang.org/grpc/encoding"

	"github.com/cuemby/relaybroker/pkg/transit/jsoncodec"
	"github.com/cuemby/relaybroker/pkg/types"
)

// codecName is negotiated as the gRPC content-subtype for every call this
// package makes, so the server decodes with the same codec regardless of
// which peer dialed it.
const codecName = "relaybroker-json"

// packetCodec is a grpc/encoding.Codec for *types.Packet. There is no
// protoc-generated message type in this binding (see package doc); it
// delegates to jsoncodec.Codec (the default transit.Serializer) so the
// bytes on the socket are exactly what that serializer produces, instead
// of re-implementing JSON framing here.
type packetCodec struct {
	ser jsoncodec.Codec
}

func (c packetCodec) Marshal(v interface{}) ([]byte, error) {
	pkt, ok := v.(*types.Packet)
	if !ok {
		return nil, fmt.Errorf("grpcbus: codec only marshals *types.Packet, got %T", v)
	}
	return c.ser.Serialize(pkt)
}

func (c packetCodec) Unmarshal(data []byte, v interface{}) error {
	pkt, ok := v.(*types.Packet)
	if !ok {
		return fmt.Errorf("grpcbus: codec only unmarshals into *types.Packet, got %T", v)
	}
	decoded, err := c.ser.Deserialize(data)
	if err != nil {
		return err
	}
	*pkt = *decoded
	return nil
}

func (packetCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(packetCodec{})
}
