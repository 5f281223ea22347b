package transport

import (
	"context"
	"time"

	"github.com/coreward/cartrpc/cmn"
)

// Dispatch runs the locally-registered opcode handler for req and returns
// the resulting status; it is supplied by package rpc, which knows how to
// turn a Request back into a *rpc.Call and look up its opcode handler.
type Dispatch func(req Request) cmn.Status

type loopbackDone struct {
	req    Request
	cb     Callback
	arg    any
	status cmn.Status
}

// Loopback is a transport.Adapter that dispatches sends to a
// locally-registered handler instead of a real network, used by the demo
// CLI (crtctl) so point-to-point and CoRPC calls have somewhere to go
// without requiring an actual cluster.
type Loopback struct {
	dispatch Dispatch
	done     chan loopbackDone
}

func NewLoopback(dispatch Dispatch) *Loopback {
	return &Loopback{dispatch: dispatch, done: make(chan loopbackDone, 256)}
}

func (l *Loopback) RequestCreate(context.Context, Endpoint, Request) error { return nil }

func (l *Loopback) RequestSend(req Request, cb Callback, arg any) error {
	go func() {
		status := l.dispatch(req)
		l.done <- loopbackDone{req: req, cb: cb, arg: arg, status: status}
	}()
	return nil
}

func (l *Loopback) RequestDestroy(Request) error { return nil }
func (l *Loopback) RequestCancel(Request) error  { return nil }
func (l *Loopback) ReplySend(Request) error      { return nil }

func (l *Loopback) Progress(ctx context.Context, interval time.Duration) error {
	select {
	case p := <-l.done:
		p.cb(CallbackInfo{Req: p.req, Status: p.status})
		return nil
	case <-time.After(interval):
		return cmn.NewErr("transport.Loopback.Progress", cmn.StatusTimedOut, nil)
	case <-ctx.Done():
		return ctx.Err()
	}
}
