package transport

import (
	"context"
	"sync"
	"time"

	"github.com/coreward/cartrpc/cmn"
	"github.com/coreward/cartrpc/group"
)

// Rule configures how Mock handles sends addressed to a given rank: either
// a synchronous send failure (SendErr), or a completion scheduled After a
// delay carrying Status and an optional Payload copied into the request's
// output buffer.
type Rule struct {
	SendErr error
	After   time.Duration
	Status  cmn.Status
	Payload []byte
}

type pendingCompletion struct {
	req     Request
	cb      Callback
	arg     any
	fireAt  time.Time
	status  cmn.Status
	payload []byte
}

// Mock is a deterministic, in-process transport.Adapter used by rpc/corpc
// tests. Completions only fire from inside Progress, the cooperative yield
// point where the original's HG layer would drive callbacks forward too.
type Mock struct {
	mu      sync.Mutex
	rules   map[group.Rank]Rule
	dflt    Rule
	pending   []*pendingCompletion
	created   []Request
	sendCount int
}

// NewMock returns a Mock whose default rule completes immediately with
// StatusOK and no payload.
func NewMock() *Mock {
	return &Mock{
		rules: make(map[group.Rank]Rule),
		dflt:  Rule{Status: cmn.StatusOK},
	}
}

// SetRule overrides how sends to rank are handled.
func (m *Mock) SetRule(rank group.Rank, r Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rank] = r
}

// SetDefaultRule overrides the rule used for ranks with no explicit Rule.
func (m *Mock) SetDefaultRule(r Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dflt = r
}

func (m *Mock) ruleFor(rank group.Rank) Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rules[rank]; ok {
		return r
	}
	return m.dflt
}

func (m *Mock) RequestCreate(_ context.Context, _ Endpoint, req Request) error {
	m.mu.Lock()
	m.created = append(m.created, req)
	m.mu.Unlock()
	return nil
}

// SendCount returns how many RequestSend calls actually went out (i.e. were
// not rejected synchronously), used by corpc tests to assert the "N-k"
// excluded-credit and failure pre-credit invariants.
func (m *Mock) SendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendCount
}

func (m *Mock) RequestSend(req Request, cb Callback, arg any) error {
	rule := m.ruleFor(req.Endpoint().Rank)
	if rule.SendErr != nil {
		return rule.SendErr
	}
	m.mu.Lock()
	m.sendCount++
	m.pending = append(m.pending, &pendingCompletion{
		req: req, cb: cb, arg: arg,
		fireAt:  time.Now().Add(rule.After),
		status:  rule.Status,
		payload: rule.Payload,
	})
	m.mu.Unlock()
	return nil
}

func (m *Mock) RequestDestroy(Request) error { return nil }
func (m *Mock) RequestCancel(req Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pending {
		if p.req.ID() == req.ID() {
			p.status = cmn.StatusCanceled
			p.fireAt = time.Now()
		}
	}
	return nil
}
func (m *Mock) ReplySend(Request) error { return nil }

// Progress fires every completion whose delay has elapsed, waiting up to
// interval for at least one to become ready.
func (m *Mock) Progress(ctx context.Context, interval time.Duration) error {
	deadline := time.Now().Add(interval)
	for {
		fired := m.drainReady()
		if len(fired) > 0 {
			for _, p := range fired {
				if len(p.payload) > 0 {
					n := copy(p.req.Output(), p.payload)
					_ = n
				}
				p.cb(CallbackInfo{Req: p.req, Status: p.status})
			}
			return nil
		}
		now := time.Now()
		if !now.Before(deadline) {
			return cmn.NewErr("transport.Mock.Progress", cmn.StatusTimedOut, nil)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(minDur(time.Millisecond, deadline.Sub(now))):
		}
	}
}

func (m *Mock) drainReady() []*pendingCompletion {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var ready, kept []*pendingCompletion
	for _, p := range m.pending {
		if !p.fireAt.After(now) {
			ready = append(ready, p)
		} else {
			kept = append(kept, p)
		}
	}
	m.pending = kept
	return ready
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
