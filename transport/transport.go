// Package transport specifies the external transport-adapter collaborator
// the original calls "the HG layer": origin/target endpoint resolution,
// request create/send/destroy/cancel/reply, and the progress loop. Wire
// serialization itself is out of scope; this package only defines the
// interface rpc/corpc drive and two concrete implementations used for tests
// and the demo CLI (Mock and Loopback).
//
// Grounded on aistore's transport package (send-queue / completion-queue
// streaming API, Extra-style per-call options) adapted from a streaming
// object transport to a request/reply RPC transport.
package transport

import (
	"context"
	"time"

	"github.com/coreward/cartrpc/cmn"
	"github.com/coreward/cartrpc/group"
)

// Endpoint identifies a destination within the RPC namespace: a group, a
// rank within that group, and an opaque per-call tag.
type Endpoint struct {
	Group string
	Rank  group.Rank
	Tag   uint32
}

// Request is the minimal view of an RPC object the transport adapter needs:
// enough to move bytes and report completion, without transport importing
// package rpc (rpc imports transport, not the reverse).
type Request interface {
	ID() string
	Opcode() uint32
	Endpoint() Endpoint
	Input() []byte
	Output() []byte
}

// CallbackInfo is delivered to a Callback when a Request completes; it
// mirrors the C layer's crt_cb_info.
type CallbackInfo struct {
	Req    Request
	Status cmn.Status
}

// Callback is invoked exactly once per Send, from inside a Progress call.
type Callback func(CallbackInfo)

// Adapter is the HG-layer contract: hg_req_create, hg_req_send,
// hg_req_destroy, hg_req_cancel, hg_reply_send, and progress.
type Adapter interface {
	RequestCreate(ctx context.Context, ep Endpoint, req Request) error
	RequestSend(req Request, cb Callback, arg any) error
	RequestDestroy(req Request) error
	RequestCancel(req Request) error
	ReplySend(req Request) error
	// Progress drives completions forward; it blocks up to interval and
	// returns a cmn.StatusTimedOut error if nothing completed in that
	// window.
	Progress(ctx context.Context, interval time.Duration) error
}
