// Package jsoncodec is the default transit.Serializer: encoding/json over
// the Packet tagged union. JSON is the idiomatic choice for a pluggable
// whose whole job is "both sides agree on bytes" — no schema compiler or
// wire format is implied by the contract itself.
package jsoncodec

import (
	"encoding/json"

	"github.com/cuemby/relaybroker/pkg/types"
)

// Codec implements transit.Serializer.
type Codec struct{}

// New returns a ready-to-use Codec; it carries no state.
func New() *Codec {
	return &Codec{}
}

func (Codec) Serialize(pkt *types.Packet) ([]byte, error) {
	return json.Marshal(pkt)
}

func (Codec) Deserialize(data []byte) (*types.Packet, error) {
	var pkt types.Packet
	if err := json.Unmarshal(data, &pkt); err != nil {
		return nil, err
	}
	return &pkt, nil
}
