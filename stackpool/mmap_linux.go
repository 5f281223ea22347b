//go:build linux

package stackpool

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mapStack allocates a fresh guard-paged, fixed-size region: a PROT_NONE
// guard page followed by a READ|WRITE usable region of exactly size bytes,
// mapped PRIVATE|ANONYMOUS|STACK so the kernel treats it like a thread stack
// mapping. MAP_GROWSDOWN is not passed, so the region does not grow; an
// access below the usable region faults on the explicit leading guard page.
func mapStack(size int) (*Stack, error) {
	guardLen := os.Getpagesize()
	total := guardLen + size

	mem, err := unix.Mmap(-1, 0, total, unix.PROT_NONE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_STACK)
	if err != nil {
		return nil, err
	}
	if err := unix.Mprotect(mem[guardLen:], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		_ = unix.Munmap(mem)
		return nil, err
	}

	usable := mem[guardLen:]
	return &Stack{
		Base:     uintptr(unsafe.Pointer(&usable[0])),
		Len:      len(usable),
		mem:      mem,
		guardLen: guardLen,
	}, nil
}

func unmapStack(s *Stack) error {
	return unix.Munmap(s.mem)
}
