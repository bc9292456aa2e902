package local

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/relaybroker/pkg/transport"
	"github.com/cuemby/relaybroker/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToMatchingSubscriber(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Connect(context.Background()))
	defer bus.Disconnect(context.Background())

	received := make(chan *types.Packet, 1)
	require.NoError(t, bus.Subscribe(transport.TopicRequest, "A", func(pkt *types.Packet) {
		received <- pkt
	}))

	pkt := &types.Packet{Kind: types.PacketRequest, Sender: "B"}
	require.NoError(t, bus.Publish(context.Background(), transport.TopicRequest, "A", pkt))

	select {
	case got := <-received:
		assert.Equal(t, "B", got.Sender)
	case <-time.After(time.Second):
		t.Fatal("expected the packet to be dispatched")
	}
}

func TestPublishToUnsubscribedTopicIsNoop(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Connect(context.Background()))
	defer bus.Disconnect(context.Background())

	err := bus.Publish(context.Background(), transport.TopicRequest, "nobody", &types.Packet{})
	assert.NoError(t, err)
}

func TestSubscribeReplacesPriorHandlerForScopedTopic(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Connect(context.Background()))
	defer bus.Disconnect(context.Background())

	first := make(chan struct{}, 1)
	second := make(chan struct{}, 1)
	bus.Subscribe(transport.TopicRequest, "A", func(*types.Packet) { first <- struct{}{} })
	bus.Subscribe(transport.TopicRequest, "A", func(*types.Packet) { second <- struct{}{} })

	require.NoError(t, bus.Publish(context.Background(), transport.TopicRequest, "A", &types.Packet{}))

	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("expected the replacement handler to fire")
	}
	select {
	case <-first:
		t.Fatal("the replaced handler must not fire")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeFansOutForUnscopedTopic(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Connect(context.Background()))
	defer bus.Disconnect(context.Background())

	first := make(chan struct{}, 1)
	second := make(chan struct{}, 1)
	bus.Subscribe(transport.TopicEvent, "", func(*types.Packet) { first <- struct{}{} })
	bus.Subscribe(transport.TopicEvent, "", func(*types.Packet) { second <- struct{}{} })

	require.NoError(t, bus.Publish(context.Background(), transport.TopicEvent, "", &types.Packet{}))

	for _, ch := range []chan struct{}{first, second} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("expected every subscriber to receive the broadcast")
		}
	}
}
