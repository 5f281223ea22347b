package main

import (
	"github.com/vbauerster/mpb/v4"

	"github.com/coreward/cartrpc/cmn"
	"github.com/coreward/cartrpc/group"
	"github.com/coreward/cartrpc/rpc"
)

// progressState is the private aggregation payload threaded through a CoRPC
// call when it's launched from the `corpc` subcommand, letting the
// registered Aggregate callback drive the live mpb progress bar.
type progressState struct {
	bar *mpb.Bar
}

// OpEcho is a demo opcode registered only by crtctl, so the CLI has
// something to call end-to-end over the loopback transport without needing
// a real cluster.
const OpEcho rpc.Opcode = 1000

type echoPayload struct {
	Message string `json:"message"`
	FromCLI bool   `json:"from_cli"`
}

func registerDemoOpcode() {
	format := rpc.Format{InputSize: 256, OutputSize: 256}
	coOps := &rpc.CollectiveOps{Aggregate: echoAggregate}
	if err := rpc.Register(OpEcho, format, echoHandler, coOps); err != nil {
		// crtctl may run its command twice in one process only in tests;
		// a real invocation registers exactly once.
		return
	}
}

func echoHandler(c *rpc.Call) cmn.Status {
	copy(c.Output(), c.Input())
	return cmn.StatusOK
}

// echoAggregate advances the corpc subcommand's progress bar once per
// completed child (cmdCorpc credits excluded ranks on the bar itself); it is
// a no-op for callers (like `call`) that pass no progressState.
func echoAggregate(_, _ *rpc.Call, priv any) cmn.Status {
	if ps, ok := priv.(*progressState); ok && ps.bar != nil {
		ps.bar.IncrBy(1)
	}
	return cmn.StatusOK
}

// demoGroup is the static 5-rank group the `corpc` subcommand fans out
// against and the `call` subcommand validates its target rank against.
func demoGroup() group.Group {
	return group.NewStatic("crtctl-demo", []group.Rank{0, 1, 2, 3, 4})
}
