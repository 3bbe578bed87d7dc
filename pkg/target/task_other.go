//go:build !linux

package target

import "fmt"

// ProcessTask is unimplemented on this platform. The crash-time caller on
// Darwin uses mach_vm_read through the host's own crash reporter
// integration (out of scope here per spec §1); this stub keeps the package
// buildable everywhere while only Linux gets a real live-process Task.
type ProcessTask struct{}

func NewProcessTask(pid int) (*ProcessTask, error) {
	return nil, fmt.Errorf("%w: live process memory access is not implemented on this platform", ErrUnknown)
}

func (t *ProcessTask) Close() error { return nil }

func (t *ProcessTask) ReadAt(addr uint64, buf []byte) error {
	return fmt.Errorf("%w: live process memory access is not implemented on this platform", ErrUnknown)
}
