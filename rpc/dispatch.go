package rpc

import (
	"github.com/coreward/cartrpc/cmn"
	"github.com/coreward/cartrpc/transport"
)

// Dispatch adapts the opcode registry to transport.Dispatch: it recovers the
// concrete *Call from a transport.Request (only rpc ever hands out Calls,
// so the assertion is safe) and runs the registered handler. Used to wire
// transport.Loopback without transport importing rpc.
func Dispatch(req transport.Request) cmn.Status {
	c, ok := req.(*Call)
	if !ok {
		return cmn.StatusInval
	}
	info, ok := Lookup(Opcode(c.Opcode()))
	if !ok {
		return cmn.StatusUnreg
	}
	return info.Handler(c)
}
