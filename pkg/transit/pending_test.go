package transit

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/relaybroker/pkg/brokererr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSettlesWait(t *testing.T) {
	p := NewPending()
	p.Register("r1", "math.add", "A", 0)

	go p.Resolve("r1", 42)

	data, err := p.Wait(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 42, data)
}

func TestRejectSettlesWaitWithError(t *testing.T) {
	p := NewPending()
	p.Register("r1", "math.add", "A", 0)

	boom := brokererr.Custom(assert.AnError)
	go p.Reject("r1", boom)

	_, err := p.Wait(context.Background(), "r1")
	require.Error(t, err)
}

func TestTimeoutSettlesAutomatically(t *testing.T) {
	p := NewPending()
	p.Register("r1", "math.add", "A", 10*time.Millisecond)

	_, err := p.Wait(context.Background(), "r1")
	require.Error(t, err)
	assert.True(t, brokererr.Is(err, brokererr.KindRequestTimeout))
}

func TestOnlyFirstSettleWins(t *testing.T) {
	p := NewPending()
	p.Register("r1", "math.add", "A", 0)

	p.Resolve("r1", "first")
	p.Resolve("r1", "second") // must be a no-op: slot already settled

	data, err := p.Wait(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "first", data)
}

func TestRejectNodeOnlyAffectsThatNode(t *testing.T) {
	p := NewPending()
	p.Register("toA", "math.add", "A", 0)
	p.Register("toB", "math.add", "B", 0)

	p.RejectNode("A")

	_, errA := p.Wait(context.Background(), "toA")
	require.Error(t, errA)
	assert.True(t, brokererr.Is(errA, brokererr.KindNodeDisconnected))

	go p.Resolve("toB", "ok")
	data, errB := p.Wait(context.Background(), "toB")
	require.NoError(t, errB)
	assert.Equal(t, "ok", data)
}

func TestRejectAllSettlesEverything(t *testing.T) {
	p := NewPending()
	p.Register("r1", "a", "A", 0)
	p.Register("r2", "b", "B", 0)

	p.RejectAll()

	_, err1 := p.Wait(context.Background(), "r1")
	_, err2 := p.Wait(context.Background(), "r2")
	assert.True(t, brokererr.Is(err1, brokererr.KindBrokerStopping))
	assert.True(t, brokererr.Is(err2, brokererr.KindBrokerStopping))
}

func TestWaitUnknownSlot(t *testing.T) {
	p := NewPending()
	_, err := p.Wait(context.Background(), "ghost")
	assert.Error(t, err)
}
