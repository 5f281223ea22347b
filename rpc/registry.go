// Package rpc implements the RPC Core: the opcode registry, the RPC object
// lifecycle, the per-context tracker, and the synchronous send bridge.
// Grounded on aistore's xreg package (a write-once-at-init, read-lock-free
// registry published behind an atomic pointer) and on aistore's transport
// send/complete-callback plumbing, adapted from streaming objects to
// request/reply RPCs.
package rpc

import (
	"sync"
	"sync/atomic"

	"github.com/coreward/cartrpc/cmn"
)

// Opcode identifies an RPC type and its input/output formats.
type Opcode uint32

// Format describes the fixed input/output buffer sizes for an opcode.
type Format struct {
	InputSize  int
	OutputSize int
}

// Handler processes an inbound RPC and returns its terminal status; it runs
// server-side, mirroring the original's request-handler callback.
type Handler func(c *Call) cmn.Status

// CollectiveOps is the optional per-opcode vtable a CoRPC-capable opcode
// supplies; Aggregate folds one child's result into the parent's private
// aggregation state.
type CollectiveOps struct {
	Aggregate func(child, parent *Call, priv any) cmn.Status
}

// OpcodeInfo is the immutable descriptor stored per registered opcode.
type OpcodeInfo struct {
	Opcode  Opcode
	Version uint32
	Flags   uint32
	Format  Format
	Handler Handler
	CoOps   *CollectiveOps
}

const (
	// MaxInputSize and MaxOutputSize bound what Register will accept,
	// mirroring the original's MAX_INPUT_SIZE / MAX_OUTPUT_SIZE tunables.
	MaxInputSize  = 1 << 20
	MaxOutputSize = 1 << 20
)

var (
	registryMu sync.Mutex
	registry   atomic.Pointer[map[Opcode]*OpcodeInfo]
)

func init() {
	empty := make(map[Opcode]*OpcodeInfo)
	registry.Store(&empty)
	registerBuiltins()
}

// Register adds opc to the registry. Handler must be non-nil: every
// registered opcode must have a handler. Registering an already-registered
// opcode returns a StatusInval error; registration after init is permitted
// for extensions.
func Register(opc Opcode, format Format, handler Handler, coOps *CollectiveOps) error {
	if handler == nil {
		return cmn.NewErr("rpc.Register", cmn.StatusInval, nil)
	}
	if format.InputSize < 0 || format.InputSize > MaxInputSize ||
		format.OutputSize < 0 || format.OutputSize > MaxOutputSize {
		return cmn.NewErr("rpc.Register", cmn.StatusInval, nil)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	cur := *registry.Load()
	if _, exists := cur[opc]; exists {
		return cmn.NewErr("rpc.Register", cmn.StatusInval, nil)
	}
	next := make(map[Opcode]*OpcodeInfo, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[opc] = &OpcodeInfo{
		Opcode: opc, Version: 1, Format: format, Handler: handler, CoOps: coOps,
	}
	registry.Store(&next)
	return nil
}

// Lookup returns the descriptor for opc, and whether it was found. Reads are
// lock-free, synchronized only by the atomic pointer swap in Register.
func Lookup(opc Opcode) (*OpcodeInfo, bool) {
	m := *registry.Load()
	info, ok := m[opc]
	return info, ok
}
