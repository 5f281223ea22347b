package corpc_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/coreward/cartrpc/cmn"
	"github.com/coreward/cartrpc/corpc"
	"github.com/coreward/cartrpc/group"
	"github.com/coreward/cartrpc/rpc"
	"github.com/coreward/cartrpc/transport"
)

const suiteOpcode = rpc.Opcode(5001)

func init() {
	_ = rpc.Register(suiteOpcode, rpc.Format{InputSize: 64, OutputSize: 64},
		func(*rpc.Call) cmn.Status { return cmn.StatusOK },
		&rpc.CollectiveOps{Aggregate: func(*rpc.Call, *rpc.Call, any) cmn.Status { return cmn.StatusOK }},
	)
}

func drainUntil(tr *transport.Mock, done <-chan cmn.Status) cmn.Status {
	for {
		select {
		case status := <-done:
			return status
		default:
			_ = tr.Progress(context.Background(), time.Millisecond)
		}
	}
}

var _ = Describe("CoRPC fan-out", func() {
	// A 5-rank group with excluded={1,3} where every remaining child
	// succeeds must issue exactly 3 sends, reach child_ack=5, and complete
	// with StatusOK exactly once.
	It("excludes pre-credit and successful children complete the parent", func() {
		tr := transport.NewMock()
		grp := group.NewStatic("g5", []group.Rank{0, 1, 2, 3, 4})
		ctx := rpc.NewContext(tr, grp, 8)

		done := make(chan cmn.Status, 1)
		parent, err := corpc.Create(ctx, grp, []group.Rank{1, 3}, suiteOpcode, nil, corpc.Options{
			OnComplete: func(info corpc.CompletionInfo) { done <- info.Status },
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(parent.Send()).To(Succeed())

		var status cmn.Status
		Eventually(func() bool {
			select {
			case status = <-done:
				return true
			default:
				_ = tr.Progress(context.Background(), time.Millisecond)
				return false
			}
		}, time.Second, time.Millisecond).Should(BeTrue())

		Expect(tr.SendCount()).To(Equal(3))
		Expect(parent.ChildAck()).To(Equal(5))
		Expect(status).To(Equal(cmn.StatusOK))
		Expect(parent.Pending()).To(Equal(0))
	})

	// A 4-rank group where the send to rank 2 fails synchronously must
	// issue exactly 2 sends (ranks 0 and 1), complete with the failure
	// status, and leave the child list empty.
	It("a synchronous send failure pre-credits the remainder and completes once", func() {
		tr := transport.NewMock()
		tr.SetRule(2, transport.Rule{SendErr: errors.New("synthetic send failure")})
		grp := group.NewStatic("g4", []group.Rank{0, 1, 2, 3})
		ctx := rpc.NewContext(tr, grp, 8)

		done := make(chan cmn.Status, 1)
		parent, err := corpc.Create(ctx, grp, nil, suiteOpcode, nil, corpc.Options{
			OnComplete: func(info corpc.CompletionInfo) { done <- info.Status },
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(parent.Send()).To(Succeed())

		status := drainUntil(tr, done)

		Expect(tr.SendCount()).To(Equal(2))
		Expect(parent.ChildAck()).To(Equal(4))
		Expect(status).NotTo(Equal(cmn.StatusOK))
		Expect(parent.Status()).To(Equal(status))
		Expect(parent.Pending()).To(Equal(0))
	})
})
