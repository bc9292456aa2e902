package jsoncodec

import (
	"testing"

	"github.com/cuemby/relaybroker/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	c := New()
	pkt := &types.Packet{
		Ver:    types.ProtocolVersion,
		Kind:   types.PacketRequest,
		Sender: "A",
		Request: &types.RequestPayload{
			ID:     "r1",
			Action: "math.add",
			Params: map[string]interface{}{"a": 2.0},
		},
	}

	data, err := c.Serialize(pkt)
	require.NoError(t, err)

	got, err := c.Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, pkt.Sender, got.Sender)
	assert.Equal(t, pkt.Kind, got.Kind)
	assert.Equal(t, pkt.Request.Action, got.Request.Action)
}

func TestDeserializeInvalidBytes(t *testing.T) {
	c := New()
	_, err := c.Deserialize([]byte("not json"))
	assert.Error(t, err)
}
