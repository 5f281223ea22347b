package rpc

import (
	"sync"
	"time"

	"github.com/coreward/cartrpc/cmn"
)

// DefaultTimeout is the fallback used by SendSync when the caller passes a
// non-positive timeout, mirroring the original's
// DEFAULT_TIMEOUT = 20,000,000 microseconds.
const DefaultTimeout = 20 * time.Second

// progressInterval is the poll granularity SendSync drives the context's
// Progress loop at, mirroring the original's progress(ctx, 1000us) call.
const progressInterval = time.Millisecond

// SendSync turns an async Send into a blocking call: it installs an internal
// callback, sends, and polls Progress until the callback fires or timeout
// elapses. A non-positive timeout uses DefaultTimeout.
func SendSync(c *Call, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	var (
		mu     sync.Mutex
		done   bool
		status cmn.Status
	)
	onDone := func(info CallbackInfo) {
		mu.Lock()
		done = true
		status = info.Status
		mu.Unlock()
	}

	if err := c.Send(onDone, nil); err != nil {
		return err
	}

	checkDone := func() (bool, cmn.Status) {
		mu.Lock()
		defer mu.Unlock()
		return done, status
	}

	for {
		if d, s := checkDone(); d {
			if s != cmn.StatusOK {
				return cmn.NewErr("rpc.SendSync", s, nil)
			}
			return nil
		}

		err := c.ctx.Transport.Progress(c.ctx.GoCtx, progressInterval)
		if err != nil && cmn.AsStatus(err) != cmn.StatusTimedOut {
			return cmn.NewErr("rpc.SendSync", cmn.StatusTransport, err)
		}

		if d, s := checkDone(); d {
			if s != cmn.StatusOK {
				return cmn.NewErr("rpc.SendSync", s, nil)
			}
			return nil
		}
		if !time.Now().Before(deadline) {
			return cmn.NewErr("rpc.SendSync", cmn.StatusTimedOut, nil)
		}
	}
}
