package rpc_test

import (
	"sync"
	"testing"

	"github.com/coreward/cartrpc/cmn"
	"github.com/coreward/cartrpc/group"
	"github.com/coreward/cartrpc/rpc"
	"github.com/coreward/cartrpc/transport"
)

// destroyCounter wraps transport.Mock to count RequestDestroy invocations,
// used to verify refcount conservation.
type destroyCounter struct {
	*transport.Mock
	mu       sync.Mutex
	destroys int
}

func newDestroyCounter() *destroyCounter {
	return &destroyCounter{Mock: transport.NewMock()}
}

func (d *destroyCounter) RequestDestroy(req transport.Request) error {
	d.mu.Lock()
	d.destroys++
	d.mu.Unlock()
	return d.Mock.RequestDestroy(req)
}

func (d *destroyCounter) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroys
}

// TestCreateRankOutOfRangeIsInval checks that creating an RPC whose target
// rank equals the group size fails INVAL and leaves no live record (the
// Call returned is nil, so there is nothing to leak).
func TestCreateRankOutOfRangeIsInval(t *testing.T) {
	tr := transport.NewMock()
	grp := group.NewStatic("g", []group.Rank{0, 1, 2, 3})
	ctx := rpc.NewContext(tr, grp, 4)

	call, err := rpc.Create(ctx, transport.Endpoint{Rank: 4}, rpc.OpUriLookup)
	if err == nil {
		t.Fatal("expected an error creating an RPC at rank == group size")
	}
	if cmn.AsStatus(err) != cmn.StatusInval {
		t.Fatalf("status = %v, want StatusInval", cmn.AsStatus(err))
	}
	if call != nil {
		t.Fatal("expected a nil Call on INVAL")
	}
}

// TestRefcountConservation checks that for any sequence of AddRef/DecRef
// ending at refcount 0, the transport destroy hook fires exactly once.
func TestRefcountConservation(t *testing.T) {
	d := newDestroyCounter()
	grp := group.NewStatic("g", []group.Rank{0, 1, 2, 3})
	ctx := rpc.NewContext(d, grp, 4)

	call, err := rpc.Create(ctx, transport.Endpoint{Rank: 0}, rpc.OpUriLookup)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	call.AddRef()
	call.AddRef()
	if err := call.DecRef(); err != nil {
		t.Fatalf("DecRef 1: %v", err)
	}
	if err := call.DecRef(); err != nil {
		t.Fatalf("DecRef 2: %v", err)
	}
	if got := d.count(); got != 0 {
		t.Fatalf("destroy count after 2 of 3 DecRefs = %d, want 0", got)
	}
	if err := call.DecRef(); err != nil {
		t.Fatalf("DecRef 3: %v", err)
	}
	if got := d.count(); got != 1 {
		t.Fatalf("destroy count after final DecRef = %d, want 1", got)
	}

	// A further DecRef past zero must not trigger a second destroy.
	_ = call.DecRef()
	if got := d.count(); got != 1 {
		t.Fatalf("destroy count after a DecRef past zero = %d, want 1 (destroy must fire exactly once)", got)
	}
}
