//go:build windows

package palloc

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// MmapAllocator is VirtualAlloc/VirtualFree on Windows, the platform's
// page allocator, not the CRT heap, matching the mmap/munmap behavior on
// Unix.
type MmapAllocator struct{}

func (MmapAllocator) Alloc(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	addr, err := windows.VirtualAlloc(0, uintptr(n), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("palloc: VirtualAlloc %d bytes: %w", n, err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n), nil
}

func (MmapAllocator) Free(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&b[0]))
	if err := windows.VirtualFree(addr, 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("palloc: VirtualFree: %w", err)
	}
	return nil
}
