//go:build linux || darwin || freebsd || netbsd || openbsd

package palloc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MmapAllocator reserves anonymous, zero-filled pages directly via
// mmap(2)/munmap(2), bypassing malloc entirely, the same raw-syscall
// idiom pboyd-redefine uses for its executable JIT pages (mprotect_linux.go,
// mmap_flags_*.go), applied here to a read/write, non-executable region.
type MmapAllocator struct{}

func (MmapAllocator) Alloc(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	b, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("palloc: mmap %d bytes: %w", n, err)
	}
	return b, nil
}

func (MmapAllocator) Free(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if err := unix.Munmap(b); err != nil {
		return fmt.Errorf("palloc: munmap: %w", err)
	}
	return nil
}
