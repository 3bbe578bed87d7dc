//go:build linux

package target

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ProcessTask reads another process's memory through /proc/<pid>/mem. Each
// ReadAt is a single pread(2), one reentrant syscall, no locking, no
// allocation beyond the caller-supplied buffer, which is what spec §3/§6
// call the "process-memory copy primitive".
type ProcessTask struct {
	pid int
	mem *os.File
}

// NewProcessTask opens the memory pseudo-file for pid. The caller is
// responsible for having already stopped the target (e.g. from within a
// signal handler in that same process, or via PTRACE_ATTACH from a
// collector process) before issuing reads.
func NewProcessTask(pid int) (*ProcessTask, error) {
	f, err := os.OpenFile(fmt.Sprintf("/proc/%d/mem", pid), os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open /proc/%d/mem: %v", ErrAccess, pid, err)
	}
	return &ProcessTask{pid: pid, mem: f}, nil
}

func (t *ProcessTask) Close() error {
	return t.mem.Close()
}

// ReadAt implements Task.
func (t *ProcessTask) ReadAt(addr uint64, buf []byte) error {
	n, err := unix.Pread(int(t.mem.Fd()), buf, int64(addr))
	if err != nil {
		return fmt.Errorf("%w: pread at %#x: %v", ErrAccess, addr, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: short read at %#x: got %d of %d bytes", ErrAccess, addr, n, len(buf))
	}
	return nil
}
