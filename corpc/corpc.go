// Package corpc implements Collective RPC (CoRPC): fanning a parent RPC out
// to a group's members minus an excluded set, aggregating per-child
// completions, and completing the parent exactly once.
//
// Grounded on aistore's xact/xs completion-counting xactions (tcb.go,
// tcobjs.go), which track an atomic "refc" of outstanding per-target work
// and fire a single terminal callback when it reaches zero — the same shape
// as CoRPC's child_ack/child_count, generalized here to fan-out over an RPC
// group instead of a bucket's mountpaths.
package corpc

import (
	"sync"

	"github.com/coreward/cartrpc/cmn"
	"github.com/coreward/cartrpc/cmn/nlog"
	"github.com/coreward/cartrpc/group"
	"github.com/coreward/cartrpc/metrics"
	"github.com/coreward/cartrpc/rpc"
	"github.com/coreward/cartrpc/transport"
)

// Aggregate folds one child's result into the parent's private aggregation
// state; failures are logged but never change the parent's outcome.
type Aggregate func(child, parent *rpc.Call, priv any) cmn.Status

// Topology is a pluggable fan-out descriptor, named but left unused by the
// flat, membership-order fan-out this package implements. A tree-forwarding
// strategy could implement Send differently per Topology without changing
// Parent's child-bookkeeping.
type Topology interface {
	// Name identifies the topology for logging; the flat strategy has none.
	Name() string
}

// Options configures a CoRPC fan-out beyond the base child-bookkeeping.
type Options struct {
	// DestroyGroupOnSuccess, when true, invokes OnGroupDestroy exactly once
	// if the parent completes with StatusOK (mirrors the original's
	// CRT_CORPC_FLAG_GRP_DESTROY).
	DestroyGroupOnSuccess bool
	OnGroupDestroy        func(group.Group)
	// OnComplete is invoked exactly once when the parent completes, whatever
	// the outcome.
	OnComplete func(CompletionInfo)
	// Topo is accepted but unused by Send, which always fans out flat in
	// membership-list order; see Topology.
	Topo Topology
}

// CompletionInfo is delivered to Options.OnComplete when a parent finishes.
type CompletionInfo struct {
	Parent *Parent
	Status cmn.Status
}

// Parent is a CoRPC parent: the underlying RPC object plus the
// collective-info from the original's crt_corpc_info struct (child_count,
// child_ack, co_rc, the child list, the excluded set, and the completion
// flag guarding at-most-once completion).
type Parent struct {
	mu sync.Mutex

	call *rpc.Call
	ctx  *rpc.Context
	opc  rpc.Opcode
	grp  group.Group

	excluded []group.Rank // sorted
	aggregate Aggregate
	priv      any

	childCount int
	childAck   *cmn.Int64
	coRC       cmn.Status
	children   map[string]*rpc.Call
	completed  bool

	opts Options
}

// Create allocates the parent RPC and attaches collective-info with
// child_count = the full group size, including excluded ranks, which are
// pre-acked at Send time.
func Create(ctx *rpc.Context, grp group.Group, excluded []group.Rank, opc rpc.Opcode, priv any, opts Options) (*Parent, error) {
	sortedExcluded := append([]group.Rank(nil), excluded...)
	group.Sort(sortedExcluded)

	ep := transport.Endpoint{Group: grp.ID(), Rank: 0}
	call, err := rpc.Create(ctx, ep, opc)
	if err != nil {
		return nil, err
	}

	info, _ := rpc.Lookup(opc)
	var agg Aggregate
	if info != nil && info.CoOps != nil && info.CoOps.Aggregate != nil {
		agg = info.CoOps.Aggregate
	}

	p := &Parent{
		call:       call,
		ctx:        ctx,
		opc:        opc,
		grp:        grp,
		excluded:   sortedExcluded,
		aggregate:  agg,
		priv:       priv,
		childCount: grp.Size(),
		childAck:   cmn.NewInt64(0),
		children:   make(map[string]*rpc.Call),
		opts:       opts,
	}
	call.SetCollective(p)
	return p, nil
}

// Call returns the parent's underlying RPC object.
func (p *Parent) Call() *rpc.Call { return p.call }

// ChildAck, ChildCount, Status, and Pending expose collective-info fields
// for tests and operators.
func (p *Parent) ChildAck() int {
	return int(p.childAck.Load())
}

func (p *Parent) ChildCount() int { return p.childCount }

func (p *Parent) Status() cmn.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.coRC
}

func (p *Parent) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.children)
}

// Send fans the parent out to the group's members in membership-list order,
// mirroring corpc_send: excluded ranks are pre-acked, each remaining rank
// gets a child RPC carrying a verbatim copy of the parent's input, and a
// create/send failure at index i pre-credits the remaining child_count-i
// acks so the parent still completes exactly once.
func (p *Parent) Send() error {
	members := p.grp.Members()
	for i, r := range members {
		if group.InList(p.excluded, r) {
			p.creditAndMaybeComplete(1, cmn.StatusOK)
			continue
		}

		childEp := transport.Endpoint{Group: p.grp.ID(), Rank: r}
		child, err := rpc.Create(p.ctx, childEp, p.opc)
		if err != nil {
			p.preCreditRemaining(members, i, err)
			return nil
		}
		copy(child.Input(), p.call.Input())
		p.addChild(child)

		if err := child.Send(p.childCallback, nil); err != nil {
			p.removeChildAndDecref(child.ID())
			p.preCreditRemaining(members, i, err)
			return nil
		}
		metrics.CorpcChildrenSent.Inc()
	}
	return nil
}

// preCreditRemaining implements the failure-isolation rule: a failure at
// index i does not roll back children already sent, so the remaining
// child_count-i positions (this one plus everything after it, including any
// as-yet-unvisited excluded ranks) are synthetically acked immediately.
func (p *Parent) preCreditRemaining(members []group.Rank, i int, cause error) {
	remaining := len(members) - i
	p.creditAndMaybeComplete(remaining, cmn.AsStatus(cause))
}

func (p *Parent) addChild(c *rpc.Call) {
	c.AddRef()
	p.mu.Lock()
	p.children[c.ID()] = c
	p.mu.Unlock()
}

func (p *Parent) removeChildAndDecref(id string) {
	p.mu.Lock()
	c, ok := p.children[id]
	if ok {
		delete(p.children, id)
	}
	p.mu.Unlock()
	if ok {
		_ = c.DecRef()
	}
}

// childCallback is corpc_child_cb: under the parent lock it folds in the
// child's status and runs aggregation; after releasing the lock it
// atomically increments child_ack to decide whether the parent is done,
// drops the child's list reference and, if done, completes the parent.
func (p *Parent) childCallback(info rpc.CallbackInfo) {
	child := info.Call
	status := info.Status

	p.mu.Lock()
	if status != cmn.StatusOK {
		p.coRC = status
	}
	if p.aggregate != nil {
		if aggStatus := p.aggregate(child, p.call, p.priv); aggStatus != cmn.StatusOK {
			nlog.Warnf("corpc: aggregation failed for child %s: %s", child.ID(), aggStatus)
		}
	}
	p.mu.Unlock()

	done := p.childAck.Inc() >= int64(p.childCount)

	p.removeChildAndDecref(child.ID())

	if done {
		p.complete()
	}
}

// creditAndMaybeComplete increments child_ack by n (used for excluded ranks
// and synthetic pre-credits, neither of which runs aggregation), folding
// status into co_rc under the last-writer rule, and completes the parent if
// that reaches child_count.
func (p *Parent) creditAndMaybeComplete(n int, status cmn.Status) {
	p.mu.Lock()
	if status != cmn.StatusOK {
		p.coRC = status
	}
	p.mu.Unlock()

	done := p.childAck.Add(int64(n)) >= int64(p.childCount)
	if done {
		p.complete()
	}
}

// complete runs exactly once per parent, holding a reference on the parent
// call across the completion handler the way the original's failure path
// does explicitly, generalized here to every completion path.
func (p *Parent) complete() {
	p.mu.Lock()
	if p.completed {
		p.mu.Unlock()
		return
	}
	p.completed = true
	cmn.Assert(p.childAck.Load() >= int64(p.childCount), "corpc: parent completed before child_ack reached child_count")
	status := p.coRC
	p.mu.Unlock()

	p.call.AddRef()
	defer func() { _ = p.call.DecRef() }()

	metrics.CorpcParentsCompleted.WithLabelValues(status.String()).Inc()

	if p.opts.DestroyGroupOnSuccess && status == cmn.StatusOK && p.opts.OnGroupDestroy != nil {
		p.opts.OnGroupDestroy(p.grp)
	}
	if p.opts.OnComplete != nil {
		p.opts.OnComplete(CompletionInfo{Parent: p, Status: status})
	}
}
