package rpc

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/coreward/cartrpc/cmn"
	"github.com/coreward/cartrpc/cmn/nlog"
	"github.com/coreward/cartrpc/group"
	"github.com/coreward/cartrpc/metrics"
	"github.com/coreward/cartrpc/transport"
)

// State is the RPC object's lifecycle state. Once Completed is reached no
// further transition is permitted.
type State int

const (
	StateInited State = iota
	StateReqSent
	StateCompleted
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateInited:
		return "INITED"
	case StateReqSent:
		return "REQ_SENT"
	case StateCompleted:
		return "COMPLETED"
	case StateCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// CallbackInfo is delivered to a Callback exactly once, on completion.
type CallbackInfo struct {
	Call   *Call
	Status cmn.Status
}

// Callback is a user completion callback, invoked from inside a
// transport.Adapter.Progress call, the cooperative yield point where
// completions are delivered.
type Callback func(CallbackInfo)

// Context is the RPC context an endpoint's calls are created and tracked
// against: the transport adapter driving them, the group used to validate
// endpoint ranks, and the per-context in-flight tracker.
type Context struct {
	Transport transport.Adapter
	Group     group.Group
	// GoCtx is threaded into transport calls for cancellation; defaults to
	// context.Background() via NewContext.
	GoCtx context.Context

	tracker *tracker
}

// NewContext builds a Context whose tracker admits up to maxInflight
// concurrent requests per endpoint before queuing.
func NewContext(t transport.Adapter, g group.Group, maxInflight int) *Context {
	if maxInflight <= 0 {
		maxInflight = 1
	}
	return &Context{
		Transport: t,
		Group:     g,
		GoCtx:     context.Background(),
		tracker:   newTracker(maxInflight),
	}
}

// Call is the RPC object: the original's public handle and private record
// merged into one Go struct, since Go has no separate-allocation reason to
// split them.
type Call struct {
	mu sync.Mutex

	id   string
	opc  Opcode
	info *OpcodeInfo
	ep   transport.Endpoint
	ctx  *Context

	input  []byte
	output []byte

	refcount  int
	state     State
	destroyed bool

	userCB  Callback
	userArg any

	collective any // set by package corpc via SetCollective; opaque here to avoid an import cycle.
}

// Create validates and allocates a new RPC object bound to opc, mirroring
// crt_req_create's validation order: ctx must be non-nil, ep.Rank must be
// within the context's group, and opc must be registered.
func Create(ctx *Context, ep transport.Endpoint, opc Opcode) (*Call, error) {
	if ctx == nil {
		return nil, cmn.NewErr("rpc.Create", cmn.StatusInval, nil)
	}
	if ctx.Group != nil && uint32(ep.Rank) >= uint32(ctx.Group.Size()) {
		return nil, cmn.NewErr("rpc.Create", cmn.StatusInval, nil)
	}
	info, ok := Lookup(opc)
	if !ok {
		return nil, cmn.NewErr("rpc.Create", cmn.StatusUnreg, nil)
	}

	c := &Call{
		id:       uuid.NewString(),
		opc:      opc,
		info:     info,
		ep:       ep,
		ctx:      ctx,
		refcount: 1,
		state:    StateInited,
	}
	if info.Format.InputSize > 0 {
		c.input = make([]byte, info.Format.InputSize)
	}
	if info.Format.OutputSize > 0 {
		c.output = make([]byte, info.Format.OutputSize)
	}

	if err := ctx.Transport.RequestCreate(ctx.GoCtx, ep, c); err != nil {
		c.refcount = 0
		return nil, cmn.NewErr("rpc.Create", cmn.StatusTransport, err)
	}
	metrics.CallsCreated.Inc()
	return c, nil
}

// ID, Opcode, Endpoint, Input, Output satisfy transport.Request.
func (c *Call) ID() string                     { return c.id }
func (c *Call) Opcode() uint32                 { return uint32(c.opc) }
func (c *Call) Endpoint() transport.Endpoint   { return c.ep }
func (c *Call) Input() []byte                  { return c.input }
func (c *Call) Output() []byte                 { return c.output }
func (c *Call) Context() *Context              { return c.ctx }
func (c *Call) Handler() Handler               { return c.info.Handler }
func (c *Call) CollectiveOps() *CollectiveOps  { return c.info.CoOps }

func (c *Call) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetCollective/Collective let package corpc attach its per-parent
// bookkeeping to a Call without rpc importing corpc.
func (c *Call) SetCollective(v any) {
	c.mu.Lock()
	c.collective = v
	c.mu.Unlock()
}

func (c *Call) Collective() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collective
}

// AddRef increments the reference count under the per-call lock.
func (c *Call) AddRef() {
	c.mu.Lock()
	cmn.Assert(!c.destroyed, "rpc: AddRef on an already-destroyed Call")
	c.refcount++
	c.mu.Unlock()
}

// DecRef decrements the reference count; at zero it destroys the RPC through
// the transport adapter and frees the buffers. The destroy hook fires
// exactly once even if a caller bug drives DecRef past zero.
func (c *Call) DecRef() error {
	c.mu.Lock()
	c.refcount--
	crossedZero := c.refcount == 0 && !c.destroyed
	if crossedZero {
		c.destroyed = true
	}
	c.mu.Unlock()
	if !crossedZero {
		return nil
	}
	err := c.ctx.Transport.RequestDestroy(c)
	c.mu.Lock()
	c.input = nil
	c.output = nil
	c.collective = nil
	c.mu.Unlock()
	if err != nil {
		return cmn.NewErr("rpc.Call.DecRef", cmn.StatusTransport, err)
	}
	return nil
}

// Send issues the request asynchronously: it tracks the call, transitions to
// REQ_SENT, and invokes the transport adapter. On failure the state reverts
// to INITED, the call is untracked, and the caller's reference is dropped.
func (c *Call) Send(cb Callback, arg any) error {
	c.mu.Lock()
	if c.state != StateInited {
		c.mu.Unlock()
		return cmn.NewErr("rpc.Call.Send", cmn.StatusInval, nil)
	}
	c.userCB = cb
	c.userArg = arg
	c.mu.Unlock()

	metrics.CallsInflight.Inc()

	doSend := func() error {
		return c.ctx.Transport.RequestSend(c, c.onComplete, arg)
	}
	if err := c.ctx.tracker.track(c, doSend); err != nil {
		metrics.CallsInflight.Dec()
		_ = c.DecRef()
		return err
	}
	return nil
}

// ReplySend sends a reply for an inbound request, mirroring hg_reply_send.
func (c *Call) ReplySend() error {
	return c.ctx.Transport.ReplySend(c)
}

// Abort requests cancellation; the completion callback still fires, carrying
// StatusCanceled.
func (c *Call) Abort() error {
	return c.ctx.Transport.RequestCancel(c)
}

// onComplete is installed as the transport-level callback for every Send; it
// untracks the call, advances the terminal state, records metrics, and
// forwards to the caller's Callback exactly once.
func (c *Call) onComplete(info transport.CallbackInfo) {
	c.ctx.tracker.untrack(c)
	metrics.CallsInflight.Dec()

	c.mu.Lock()
	if c.state != StateCanceled {
		if info.Status == cmn.StatusCanceled {
			c.state = StateCanceled
		} else {
			c.state = StateCompleted
		}
	}
	cb := c.userCB
	c.mu.Unlock()

	metrics.CallsCompleted.WithLabelValues(info.Status.String()).Inc()
	if cb != nil {
		cb(CallbackInfo{Call: c, Status: info.Status})
	}
}

// failAsync synthesizes a completion for a call that was queued in the
// tracker's wait queue and then failed to send once promoted, applying
// Send's revert-to-INITED rule on the promotion path too, since the
// original caller's Send has already returned by the time promotion runs.
func (c *Call) failAsync(err error) {
	metrics.CallsInflight.Dec()
	c.mu.Lock()
	c.state = StateInited
	cb := c.userCB
	c.mu.Unlock()

	status := cmn.AsStatus(err)
	metrics.CallsCompleted.WithLabelValues(status.String()).Inc()
	nlog.Warnf("rpc: promoted send failed for %s: %v", c.id, err)
	if cb != nil {
		cb(CallbackInfo{Call: c, Status: status})
	}
	_ = c.DecRef()
}
