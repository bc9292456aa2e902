package brokererr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryableKinds(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
	}{
		{"service not found", ServiceNotFound("math.add"), false},
		{"service not available", ServiceNotAvailable("math.add"), false},
		{"request timeout", RequestTimeout("math.add", "node-1", "no response"), true},
		{"request rejected", RequestRejected("math.add", "node-1"), true},
		{"validation error", ValidationError("math.add", assertErr{}), false},
		{"transport error", TransportError(assertErr{}), true},
		{"node disconnected", NodeDisconnected("node-1"), true},
		{"broker stopping", BrokerStopping(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.Equal(t, tt.retryable, Retry(tt.err))
		})
	}
}

func TestCustomPreservesExistingKind(t *testing.T) {
	inner := ServiceNotFound("math.add")
	wrapped := Custom(inner)
	assert.Same(t, inner, wrapped)
}

func TestCustomWrapsPlainError(t *testing.T) {
	err := Custom(assertErr{})
	assert.Equal(t, KindCustom, err.Kind)
	assert.False(t, err.Retryable)
}

func TestWireRoundTrip(t *testing.T) {
	original := RequestTimeout("math.add", "node-7", "deadline exceeded")
	detail := ToDetail(original, "node-1")
	require.Equal(t, "node-7", detail.NodeID)
	require.True(t, detail.Retryable)

	rehydrated := FromDetail(detail)
	assert.Equal(t, KindRequestTimeout, rehydrated.Kind)
	assert.Equal(t, "node-7", rehydrated.NodeID)
	assert.True(t, Retry(rehydrated))
}

func TestIs(t *testing.T) {
	err := ServiceNotAvailable("math.add")
	assert.True(t, Is(err, KindServiceNotAvailable))
	assert.False(t, Is(err, KindServiceNotFound))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
