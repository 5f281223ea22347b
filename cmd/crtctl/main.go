// Command crtctl is a demo CLI exercising the RPC Core and CoRPC Engine end
// to end over the in-process loopback transport: registry listing, a
// synchronous point-to-point call, a CoRPC fan-out with a live progress
// bar, and stack-pool stats.
//
// Grounded on cmd/cli's urfave/cli-based command structure, trimmed to the
// handful of subcommands this library needs to demonstrate itself.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v4"
	"github.com/vbauerster/mpb/v4/decor"

	"github.com/coreward/cartrpc/cmn"
	"github.com/coreward/cartrpc/cmn/nlog"
	"github.com/coreward/cartrpc/corpc"
	"github.com/coreward/cartrpc/group"
	"github.com/coreward/cartrpc/rpc"
	"github.com/coreward/cartrpc/stackpool"
	"github.com/coreward/cartrpc/transport"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var pool = stackpool.NewPool()

func newDemoContext() *rpc.Context {
	lb := transport.NewLoopback(rpc.Dispatch)
	return rpc.NewContext(lb, demoGroup(), 8)
}

func main() {
	registerDemoOpcode()

	app := cli.NewApp()
	app.Name = "crtctl"
	app.Usage = "inspect and exercise the cartrpc RPC core"
	app.Commands = []cli.Command{
		{
			Name:  "opcodes",
			Usage: "dump the opcode registry as JSON",
			Action: func(*cli.Context) error {
				return cmdOpcodes()
			},
		},
		{
			Name:      "call",
			Usage:     "synchronous point-to-point call over the loopback transport",
			ArgsUsage: "<rank>",
			Action: func(c *cli.Context) error {
				return cmdCall(c)
			},
		},
		{
			Name:      "corpc",
			Usage:     "CoRPC fan-out over the demo group",
			ArgsUsage: "",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "excluded", Usage: "comma-separated excluded ranks"},
			},
			Action: func(c *cli.Context) error {
				return cmdCorpc(c)
			},
		},
		{
			Name:  "stackpool",
			Usage: "print stack pool counters after a warm-up run",
			Action: func(*cli.Context) error {
				return cmdStackpool()
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		nlog.Errorf("crtctl: %v", err)
		os.Exit(1)
	}
}

func cmdOpcodes() error {
	opcodes := []rpc.Opcode{rpc.OpGrpCreate, rpc.OpGrpDestroy, rpc.OpUriLookup, OpEcho}
	type row struct {
		Opcode     rpc.Opcode `json:"opcode"`
		InputSize  int        `json:"input_size"`
		OutputSize int        `json:"output_size"`
		Collective bool       `json:"collective"`
	}
	var rows []row
	for _, opc := range opcodes {
		info, ok := rpc.Lookup(opc)
		if !ok {
			continue
		}
		rows = append(rows, row{
			Opcode: opc, InputSize: info.Format.InputSize,
			OutputSize: info.Format.OutputSize, Collective: info.CoOps != nil,
		})
	}
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func cmdCall(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: crtctl call <rank>")
	}
	rank, err := strconv.Atoi(c.Args().Get(0))
	if err != nil {
		return err
	}

	ctx := newDemoContext()
	call, err := rpc.Create(ctx, transport.Endpoint{Rank: group.Rank(rank)}, OpEcho)
	if err != nil {
		return err
	}
	payload, _ := json.Marshal(echoPayload{Message: "hello from crtctl", FromCLI: true})
	copy(call.Input(), payload)

	if err := rpc.SendSync(call, 2*time.Second); err != nil {
		return err
	}
	fmt.Printf("status OK, echo payload: %s\n", strings.TrimRight(string(call.Output()), "\x00"))
	return nil
}

func cmdCorpc(c *cli.Context) error {
	excluded := parseRanks(c.String("excluded"))

	ctx := newDemoContext()
	grp := demoGroup()

	p := mpb.New(mpb.WithWidth(40))
	bar := p.AddBar(int64(grp.Size()),
		mpb.PrependDecorators(decor.Name("corpc")),
		mpb.AppendDecorators(decor.Percentage()))
	// Excluded ranks are acked without a child send, so Aggregate never sees
	// them; credit them up front so the bar reaches child_count.
	sortedExcluded := append([]group.Rank(nil), excluded...)
	group.Sort(sortedExcluded)
	for _, r := range grp.Members() {
		if group.InList(sortedExcluded, r) {
			bar.IncrBy(1)
		}
	}

	done := make(chan cmn.Status, 1)
	parent, err := corpc.Create(ctx, grp, excluded, OpEcho, &progressState{bar: bar}, corpc.Options{
		OnComplete: func(info corpc.CompletionInfo) { done <- info.Status },
	})
	if err != nil {
		return err
	}
	payload, _ := json.Marshal(echoPayload{Message: "corpc fan-out", FromCLI: true})
	copy(parent.Call().Input(), payload)

	if err := parent.Send(); err != nil {
		return err
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		select {
		case status := <-done:
			p.Wait()
			fmt.Printf("\ncorpc complete: status=%s child_ack=%d/%d\n", status, parent.ChildAck(), parent.ChildCount())
			return nil
		default:
		}
		if err := ctx.Transport.Progress(ctx.GoCtx, time.Millisecond); err != nil && cmn.AsStatus(err) != cmn.StatusTimedOut {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("corpc fan-out did not complete within 5s")
		}
	}
}

func cmdStackpool() error {
	const warmup = 256
	handles := make([]*stackpool.Handle, 0, warmup)
	for i := 0; i < warmup; i++ {
		h, err := stackpool.Spawn(pool, 16*1024, func(*stackpool.Stack) {})
		if err != nil {
			return err
		}
		handles = append(handles, h)
	}
	for _, h := range handles {
		h.Wait()
	}
	alloced, free := pool.Stats()
	fmt.Printf("alloced_stacks=%d free_stacks=%d\n", alloced, free)
	return nil
}

func parseRanks(s string) []group.Rank {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ranks := make([]group.Rank, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		ranks = append(ranks, group.Rank(n))
	}
	return ranks
}
