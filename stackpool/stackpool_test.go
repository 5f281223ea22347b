package stackpool_test

import (
	"testing"

	"github.com/coreward/cartrpc/stackpool"
)

// TestAcquireSizeClass checks that Acquire(min) always returns a stack with
// usable size >= min, and that a fitting free-list entry is reused instead
// of performing a fresh mapping.
func TestAcquireSizeClass(t *testing.T) {
	pool := stackpool.NewPool()

	s1, err := pool.Acquire(16 * 1024)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if s1.Len < 16*1024 {
		t.Fatalf("Len = %d, want >= 16Ki", s1.Len)
	}
	allocedAfterFirst, _ := pool.Stats()
	if allocedAfterFirst != 1 {
		t.Fatalf("alloced_stacks = %d, want 1", allocedAfterFirst)
	}

	pool.Release(s1)
	allocedAfterRelease, freeAfterRelease := pool.Stats()
	if allocedAfterRelease != 1 || freeAfterRelease != 1 {
		t.Fatalf("after release: alloced=%d free=%d, want 1/1", allocedAfterRelease, freeAfterRelease)
	}

	s2, err := pool.Acquire(8 * 1024)
	if err != nil {
		t.Fatalf("Acquire 2: %v", err)
	}
	if s2.Len < 8*1024 {
		t.Fatalf("Len = %d, want >= 8Ki", s2.Len)
	}
	allocedAfterReuse, freeAfterReuse := pool.Stats()
	if allocedAfterReuse != 1 {
		t.Fatalf("alloced_stacks after reuse = %d, want 1 (no fresh mapping)", allocedAfterReuse)
	}
	if freeAfterReuse != 0 {
		t.Fatalf("free_stacks after reuse = %d, want 0", freeAfterReuse)
	}
}

// TestAcquireReleaseCycleConvergesAndStaysBounded checks that repeated
// acquire/release at a fixed size converges to a small warm set and never
// exceeds the MaxNumberFreeStacks/MaxPercentFreeStacks bound.
func TestAcquireReleaseCycleConvergesAndStaysBounded(t *testing.T) {
	pool := stackpool.NewPool()
	const iterations = 10_000
	const size = 16 * 1024

	for i := 0; i < iterations; i++ {
		s, err := pool.Acquire(size)
		if err != nil {
			t.Fatalf("Acquire iteration %d: %v", i, err)
		}
		pool.Release(s)

		alloced, free := pool.Stats()
		if free > stackpool.MaxNumberFreeStacks {
			if alloced == 0 {
				t.Fatalf("iteration %d: free=%d > cap with alloced=0 (would divide by zero)", i, free)
			}
			if (free*100)/alloced > stackpool.MaxPercentFreeStacks {
				t.Fatalf("iteration %d: free=%d alloced=%d exceeds both bound checks", i, free, alloced)
			}
		}
	}

	alloced, free := pool.Stats()
	if alloced != 1 {
		t.Fatalf("a single-size-class acquire/release loop should converge to 1 alloced stack, got %d", alloced)
	}
	if free != 1 {
		t.Fatalf("warm set should converge to 1 free stack, got %d", free)
	}
}

// TestSpawnReleasesStackOnReturn exercises the ULT Entry Adapter: after the
// spawned function returns, the stack must be back on the pool's free list.
func TestSpawnReleasesStackOnReturn(t *testing.T) {
	pool := stackpool.NewPool()
	ran := make(chan struct{})

	h, err := stackpool.Spawn(pool, 16*1024, func(s *stackpool.Stack) {
		close(ran)
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	<-ran
	h.Wait()

	alloced, free := pool.Stats()
	if alloced != 1 || free != 1 {
		t.Fatalf("after Spawn returns: alloced=%d free=%d, want 1/1", alloced, free)
	}
}

// TestSpawnReleasesStackOnPanic checks that a worker which panics and
// recovers inside fn still returns its stack to the pool once fn returns.
// The panic is recovered inside fn, so Spawn's own deferred release runs on
// an ordinary return here.
func TestSpawnReleasesStackOnPanic(t *testing.T) {
	pool := stackpool.NewPool()

	h, err := stackpool.Spawn(pool, 16*1024, func(s *stackpool.Stack) {
		defer func() { recover() }()
		panic("worker failure")
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	h.Wait()

	alloced, free := pool.Stats()
	if alloced != 1 || free != 1 {
		t.Fatalf("after panicking worker returns: alloced=%d free=%d, want 1/1", alloced, free)
	}
}

// TestSpawnExternalBypassesPool covers the "caller supplies a stack
// pointer" branch of the ULT Entry Adapter: the pool's counters must be
// untouched.
func TestSpawnExternalBypassesPool(t *testing.T) {
	pool := stackpool.NewPool()
	mem := make([]byte, 16*1024)
	ran := make(chan struct{})

	h := stackpool.SpawnExternal(mem, func(got []byte) {
		if len(got) != len(mem) {
			t.Errorf("external stack length = %d, want %d", len(got), len(mem))
		}
		close(ran)
	})
	<-ran
	h.Wait()

	alloced, free := pool.Stats()
	if alloced != 0 || free != 0 {
		t.Fatalf("SpawnExternal must not touch the pool: alloced=%d free=%d", alloced, free)
	}
}
