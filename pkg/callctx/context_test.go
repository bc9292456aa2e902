package callctx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootIsLevelOneWithNoParent(t *testing.T) {
	ctx := NewRoot(context.Background(), "local", "math.add", map[string]int{"a": 1}, nil, 0)
	defer ctx.Release()

	assert.Equal(t, 1, ctx.Level())
	assert.Empty(t, ctx.ParentID())
	assert.Equal(t, ctx.ID(), ctx.RequestID())
	assert.NotNil(t, ctx.Meta())
}

func TestChildInheritsRequestIDAndIncrementsLevel(t *testing.T) {
	root := NewRoot(context.Background(), "local", "math.add", nil, nil, 0)
	defer root.Release()

	child := root.Child("math.mul", nil, 0)
	defer child.Release()

	assert.Equal(t, root.RequestID(), child.RequestID())
	assert.Equal(t, root.Level()+1, child.Level())
	assert.Equal(t, root.ID(), child.ParentID())
	assert.NotEqual(t, root.ID(), child.ID())
}

func TestChildSharesMetaByReference(t *testing.T) {
	root := NewRoot(context.Background(), "local", "math.add", nil, nil, 0)
	defer root.Release()
	child := root.Child("math.mul", nil, 0)
	defer child.Release()

	child.Meta()["traceID"] = "abc"
	assert.Equal(t, "abc", root.Meta()["traceID"], "meta mutations must be visible across the call family")
}

func TestGrandchildInheritsRequestIDTransitively(t *testing.T) {
	root := NewRoot(context.Background(), "local", "a", nil, nil, 0)
	defer root.Release()
	child := root.Child("b", nil, 0)
	defer child.Release()
	grandchild := child.Child("c", nil, 0)
	defer grandchild.Release()

	assert.Equal(t, root.RequestID(), grandchild.RequestID())
	assert.Equal(t, 3, grandchild.Level())
}

func TestTimeoutArmsDeadline(t *testing.T) {
	ctx := NewRoot(context.Background(), "local", "math.add", nil, nil, 5*time.Millisecond)
	defer ctx.Release()

	select {
	case <-ctx.Std().Done():
	case <-time.After(50 * time.Millisecond):
		t.Fatal("expected the stdlib context to time out")
	}
	require.Error(t, ctx.Std().Err())
}

func TestFromWireTakesEveryFieldFromTheWireNotAParent(t *testing.T) {
	ctx := FromWire(context.Background(), "node-b", "req-id-1", "request-id-1", "parent-id-1",
		"math.add", map[string]int{"a": 1}, map[string]interface{}{"traceID": "abc"}, 3, 0)
	defer ctx.Release()

	assert.Equal(t, "req-id-1", ctx.ID())
	assert.Equal(t, "request-id-1", ctx.RequestID())
	assert.Equal(t, "parent-id-1", ctx.ParentID())
	assert.Equal(t, 3, ctx.Level())
	assert.Equal(t, "abc", ctx.Meta()["traceID"])
}

func TestFromWireArmsDeadlineFromTimeout(t *testing.T) {
	ctx := FromWire(context.Background(), "node-b", "req-id-2", "request-id-2", "",
		"math.add", nil, nil, 1, 5*time.Millisecond)
	defer ctx.Release()

	select {
	case <-ctx.Std().Done():
	case <-time.After(50 * time.Millisecond):
		t.Fatal("expected the stdlib context to time out")
	}
	require.Error(t, ctx.Std().Err())
}

func TestRetryCountIncrements(t *testing.T) {
	ctx := NewRoot(context.Background(), "local", "math.add", nil, nil, 0)
	defer ctx.Release()

	assert.Equal(t, 0, ctx.RetryCount())
	assert.Equal(t, 1, ctx.IncrRetry())
	assert.Equal(t, 2, ctx.IncrRetry())
}
