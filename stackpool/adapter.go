package stackpool

import (
	"runtime"
	"sync"
)

// Handle tracks one Spawn'd worker: the stack it was given (if any) and
// whether this adapter still owns releasing it back to the pool.
type Handle struct {
	done  chan struct{}
	once  sync.Once
	pool  *Pool
	stack *Stack
	owned bool
}

// Wait blocks until the spawned function has returned (normally or via
// panic) and its stack has been released.
func (h *Handle) Wait() { <-h.done }

// Spawn is the ULT Entry Adapter: it acquires a stack from pool, runs fn on
// a new goroutine, and guarantees the stack is released back to the pool
// exactly once when fn returns, panics, or is abandoned — the per-thread-key
// destructor role is played here by a deferred release plus a
// runtime.SetFinalizer backstop for the case where the Handle itself is
// dropped without ever being waited on, an explicit unwind guard for
// runtimes that give no destructor-execution guarantee.
func Spawn(pool *Pool, minSize int, fn func(*Stack)) (*Handle, error) {
	s, err := pool.Acquire(minSize)
	if err != nil {
		return nil, err
	}
	h := &Handle{done: make(chan struct{}), pool: pool, stack: s, owned: true}
	runtime.SetFinalizer(h, (*Handle).release)

	go func() {
		defer h.release()
		fn(s)
	}()
	return h, nil
}

// SpawnExternal bypasses the pool entirely, for the case where the caller
// supplies its own stack memory rather than one from a Pool: mem is used
// as-is and is never handed to Pool.Release, so the adapter can never
// confuse externally-owned memory with pool-owned memory — the Go-idiomatic
// fix for a bug class seen in C implementations that alias a caller-owned
// and an internally-allocated attribute and free the wrong one.
func SpawnExternal(mem []byte, fn func([]byte)) *Handle {
	h := &Handle{done: make(chan struct{})}
	go func() {
		defer h.release()
		fn(mem)
	}()
	return h
}

func (h *Handle) release() {
	h.once.Do(func() {
		if h.owned {
			h.pool.Release(h.stack)
			runtime.SetFinalizer(h, nil)
		}
		close(h.done)
	})
}
