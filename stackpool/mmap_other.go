//go:build !linux

package stackpool

import (
	"fmt"
	"unsafe"
)

// mapStack on non-Linux platforms falls back to a plain heap allocation: no
// guard page, no real unmap (left to the garbage collector). A cmn.StatusOverflow
// report is unavailable on this path; the pool's size-class and free-list
// caching behavior is unaffected.
func mapStack(size int) (*Stack, error) {
	mem := make([]byte, size)
	return &Stack{
		Base:     uintptr(unsafe.Pointer(&mem[0])),
		Len:      len(mem),
		mem:      mem,
		guardLen: 0,
	}, nil
}

func unmapStack(*Stack) error {
	return fmt.Errorf("stackpool: no native unmap on this platform, relying on GC")
}
