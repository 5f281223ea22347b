// Package stackpool implements the ULT Stack Pool: memory-mapped,
// guard-paged stacks handed to goroutine-based workers, with overflow
// detection through the guard page and bounded caching. Each stack keeps
// the size it was mapped with; stacks do not grow automatically.
//
// Go has no user-level-thread runtime of its own (goroutines are scheduled
// by the Go runtime, not handed raw stack memory by the caller), so the
// "stack" this pool recycles is reframed as a scratch mmap region a worker
// goroutine is free to use for off-heap buffers, cgo callouts, or anything
// else that wants a guard-paged memory region with the pool's size-class and
// caching behavior — the pooling and guard-page semantics from the original
// are kept; the "thing scheduled onto the stack" changes from a ULT to a
// goroutine (see stackpool.Spawn).
//
// Grounded on ehrlich-b-go-ublk's raw mmap/munmap usage for guard-paged I/O
// regions, reworked to use golang.org/x/sys/unix's typed Mmap/Munmap/
// Mprotect instead of bare syscall.Syscall6.
package stackpool

import (
	"sync"

	"github.com/coreward/cartrpc/cmn"
	"github.com/coreward/cartrpc/cmn/nlog"
	"github.com/coreward/cartrpc/metrics"
)

const (
	// DefaultStackSize is used when Acquire's minSize is smaller than it,
	// mirroring the original's DEFAULT_STACK_SIZE (typically tens of KiB).
	DefaultStackSize = 64 * 1024

	// MaxPercentFreeStacks and MaxNumberFreeStacks are the two tunables the
	// release-time cap policy ORs together.
	MaxPercentFreeStacks = 20
	MaxNumberFreeStacks  = 2000
)

// Stack is the descriptor for one mapped region: the usable byte range
// [Base, Base+Len), sitting above a guard page that is never accessible.
// The descriptor lives in the pool's own bookkeeping rather than at the top
// of the mapped region itself, avoiding the self-referential layout where a
// stack's own header sits inside the memory it describes.
type Stack struct {
	Base uintptr
	Len  int

	mem      []byte // full mapping, guard page included; needed to munmap
	guardLen int
}

// Bytes returns the usable region as a Go byte slice, for callers that want
// to use the stack as a scratch buffer directly.
func (s *Stack) Bytes() []byte { return s.mem[s.guardLen:] }

// Pool is the process-wide stack pool state: a mutex, a free list, and the
// alloced_stacks/free_stacks counters.
type Pool struct {
	mu        sync.Mutex
	freeList  []*Stack
	alloced   int
	freeCount int
}

// NewPool returns an empty pool.
func NewPool() *Pool { return &Pool{} }

// Acquire returns a stack whose usable size is at least minSize, preferring
// a free-list entry over a fresh mapping: if a free one is large enough, no
// mmap syscall is performed.
func (p *Pool) Acquire(minSize int) (*Stack, error) {
	p.mu.Lock()
	for i, s := range p.freeList {
		if s.Len >= minSize {
			p.freeList = append(p.freeList[:i], p.freeList[i+1:]...)
			p.freeCount--
			p.mu.Unlock()
			metrics.StackPoolAcquires.WithLabelValues("freelist").Inc()
			metrics.StackPoolFreeStacks.Set(float64(p.freeCount))
			return s, nil
		}
	}
	p.alloced++
	alloced := p.alloced
	p.mu.Unlock()
	metrics.StackPoolAllocedStacks.Set(float64(alloced))

	size := minSize
	if size < DefaultStackSize {
		size = DefaultStackSize
	}
	s, err := mapStack(size)
	if err != nil {
		p.mu.Lock()
		p.alloced--
		alloced = p.alloced
		p.mu.Unlock()
		metrics.StackPoolAllocedStacks.Set(float64(alloced))
		return nil, cmn.NewErr("stackpool.Acquire", cmn.StatusNoMem, err)
	}
	metrics.StackPoolAcquires.WithLabelValues("mmap").Inc()
	return s, nil
}

// Release returns s to the free list unless the pool is already over its cap:
// the free-stacks test compares against the counter rather than a stray
// function pointer, and the percentage test is guarded against
// alloced_stacks == 0 to avoid a divide-by-zero on an empty pool.
func (p *Pool) Release(s *Stack) {
	p.mu.Lock()
	unmap := false
	if p.freeCount > MaxNumberFreeStacks {
		if p.alloced > 0 && (p.freeCount*100)/p.alloced > MaxPercentFreeStacks {
			unmap = true
		}
	}
	var alloced, freeCount int
	if unmap {
		p.alloced--
	} else {
		p.freeList = append(p.freeList, s)
		p.freeCount++
	}
	alloced, freeCount = p.alloced, p.freeCount
	p.mu.Unlock()

	metrics.StackPoolAllocedStacks.Set(float64(alloced))
	metrics.StackPoolFreeStacks.Set(float64(freeCount))

	if unmap {
		if err := unmapStack(s); err != nil {
			nlog.Errorf("stackpool: munmap failed, leaking stack at %#x: %v", s.Base, err)
		}
	}
}

// Stats reports the current counters, for crtctl's `stackpool` subcommand
// and for tests asserting that the pool stays within its configured bounds.
func (p *Pool) Stats() (alloced, free int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alloced, p.freeCount
}
