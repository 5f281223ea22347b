package corpc_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreward/cartrpc/cmn"
	"github.com/coreward/cartrpc/corpc"
	"github.com/coreward/cartrpc/group"
	"github.com/coreward/cartrpc/rpc"
	"github.com/coreward/cartrpc/transport"
)

const bookkeepingOpcode = rpc.Opcode(5002)

func init() {
	_ = rpc.Register(bookkeepingOpcode, rpc.Format{InputSize: 32, OutputSize: 32},
		func(*rpc.Call) cmn.Status { return cmn.StatusOK }, nil)
}

func waitComplete(t *testing.T, tr *transport.Mock, done <-chan cmn.Status) cmn.Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		select {
		case status := <-done:
			return status
		default:
		}
		_ = tr.Progress(context.Background(), time.Millisecond)
		if time.Now().After(deadline) {
			t.Fatal("corpc parent never completed")
		}
	}
}

// TestExcludedCredit checks that for a group of size N with k excluded
// ranks, hg_req_send fires exactly N-k times and child_ack reaches N.
func TestExcludedCredit(t *testing.T) {
	const n, k = 6, 2
	tr := transport.NewMock()
	ranks := make([]group.Rank, n)
	for i := range ranks {
		ranks[i] = group.Rank(i)
	}
	grp := group.NewStatic("g6", ranks)
	ctx := rpc.NewContext(tr, grp, n)

	excluded := []group.Rank{0, 5}
	require.Len(t, excluded, k)

	done := make(chan cmn.Status, 1)
	parent, err := corpc.Create(ctx, grp, excluded, bookkeepingOpcode, nil, corpc.Options{
		OnComplete: func(info corpc.CompletionInfo) { done <- info.Status },
	})
	require.NoError(t, err)
	require.NoError(t, parent.Send())

	status := waitComplete(t, tr, done)

	assert.Equal(t, n-k, tr.SendCount())
	assert.Equal(t, n, parent.ChildAck())
	assert.Equal(t, cmn.StatusOK, status)
	assert.Zero(t, parent.Pending())
}

// TestFailurePreCreditOnChildCreate covers the failure sub-case where the
// failure happens at rpc.Create time (e.g. the child's endpoint fails
// validation) rather than at transport Send time, exercised here by giving
// the RPC context a smaller group than the CoRPC fan-out group so the
// highest-ranked child fails endpoint validation.
func TestFailurePreCreditOnChildCreate(t *testing.T) {
	tr := transport.NewMock()
	fanoutGroup := group.NewStatic("fanout", []group.Rank{0, 1, 2, 3})
	// ctx.Group only knows about ranks 0-2, so rpc.Create for rank 3 fails INVAL.
	validationGroup := group.NewStatic("validation", []group.Rank{0, 1, 2})
	ctx := rpc.NewContext(tr, validationGroup, 8)

	done := make(chan cmn.Status, 1)
	parent, err := corpc.Create(ctx, fanoutGroup, nil, bookkeepingOpcode, nil, corpc.Options{
		OnComplete: func(info corpc.CompletionInfo) { done <- info.Status },
	})
	require.NoError(t, err)
	require.NoError(t, parent.Send())

	status := waitComplete(t, tr, done)

	assert.Equal(t, 3, tr.SendCount(), "ranks 0-2 should have sent before rank 3 failed validation")
	assert.Equal(t, 4, parent.ChildAck())
	assert.NotEqual(t, cmn.StatusOK, status)
	assert.Equal(t, cmn.StatusInval, parent.Status())
	assert.Zero(t, parent.Pending())
}
