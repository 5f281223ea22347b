package rpc

import (
	"sync"

	"github.com/coreward/cartrpc/transport"
)

// trackResult reports whether a tracked call was admitted to an endpoint's
// in-flight slot immediately or queued.
type trackResult int

const (
	ResultInflight trackResult = iota
	ResultWait
)

type waitItem struct {
	call *Call
	send func() error
}

// tracker sorts outgoing requests into per-endpoint in-flight queues up to a
// bound, with excess promoted from a context-wide wait queue as slots free.
type tracker struct {
	mu          sync.Mutex
	maxInflight int
	inflight    map[transport.Endpoint][]*Call
	waitQueue   []waitItem
}

func newTracker(maxInflight int) *tracker {
	return &tracker{
		maxInflight: maxInflight,
		inflight:    make(map[transport.Endpoint][]*Call),
	}
}

// track admits c to c.ep's in-flight slot and runs send immediately, or
// queues (call, send) for later promotion if the endpoint is at its bound.
// The state transition to REQ_SENT happens here regardless of which path is
// taken, mirroring the original's track -> state=REQ_SENT -> hg_req_send
// sequencing. If send fails on the immediate path, the state reverts to
// INITED and the call is untracked before the error is returned to the
// caller.
func (t *tracker) track(c *Call, send func() error) (result trackResult, err error) {
	c.mu.Lock()
	c.state = StateReqSent
	c.mu.Unlock()

	t.mu.Lock()
	list := t.inflight[c.ep]
	if len(list) < t.maxInflight {
		t.inflight[c.ep] = append(list, c)
		t.mu.Unlock()
		if sendErr := send(); sendErr != nil {
			c.mu.Lock()
			c.state = StateInited
			c.mu.Unlock()
			t.untrack(c)
			return ResultInflight, sendErr
		}
		return ResultInflight, nil
	}
	t.waitQueue = append(t.waitQueue, waitItem{call: c, send: send})
	t.mu.Unlock()
	return ResultWait, nil
}

// untrack removes c from wherever it's tracked (in-flight list or wait
// queue) and promotes the oldest waiting call for the freed endpoint, if any.
func (t *tracker) untrack(c *Call) {
	t.mu.Lock()
	removedFromInflight := removeCall(t.inflight, c)
	if !removedFromInflight {
		for i, w := range t.waitQueue {
			if w.call == c {
				t.waitQueue = append(t.waitQueue[:i], t.waitQueue[i+1:]...)
				break
			}
		}
		t.mu.Unlock()
		return
	}

	var promoted *waitItem
	for i, w := range t.waitQueue {
		if w.call.ep == c.ep {
			item := w
			promoted = &item
			t.waitQueue = append(t.waitQueue[:i], t.waitQueue[i+1:]...)
			t.inflight[c.ep] = append(t.inflight[c.ep], item.call)
			break
		}
	}
	t.mu.Unlock()

	if promoted != nil {
		if err := promoted.send(); err != nil {
			t.untrack(promoted.call)
			promoted.call.failAsync(err)
		}
	}
}

func removeCall(inflight map[transport.Endpoint][]*Call, c *Call) bool {
	list, ok := inflight[c.ep]
	if !ok {
		return false
	}
	for i, x := range list {
		if x == c {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(inflight, c.ep)
			} else {
				inflight[c.ep] = list
			}
			return true
		}
	}
	return false
}
