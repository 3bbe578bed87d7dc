// Package targettest builds synthetic target-process memory images for
// tests across the parser's sub-packages, the way the teacher keeps
// hand-built binary fixtures alongside file_test.go. It is not a _test.go
// file because fixtures need to be importable from internal/objc1,
// internal/objc2, and the root objcscan package's own tests.
package targettest

import (
	"encoding/binary"
	"fmt"

	"github.com/crashlens/objcscan/pkg/target"
)

// FakeTask is an in-memory byte arena simulating a target process's
// address space. Writes lay out fixture structures at chosen addresses;
// reads behave like a real Task, failing for any byte range that was
// never written.
type FakeTask struct {
	mem map[uint64]byte
}

// NewFakeTask returns an empty arena.
func NewFakeTask() *FakeTask {
	return &FakeTask{mem: make(map[uint64]byte)}
}

// Write places data at addr.
func (t *FakeTask) Write(addr uint64, data []byte) {
	for i, b := range data {
		t.mem[addr+uint64(i)] = b
	}
}

// WriteString writes s followed by a NUL terminator at addr and returns
// the address immediately following the terminator, so callers can chain
// layout calls.
func (t *FakeTask) WriteString(addr uint64, s string) uint64 {
	t.Write(addr, append([]byte(s), 0))
	return addr + uint64(len(s)) + 1
}

// ReadAt implements target.Task. Any byte that was never written causes
// the read to fail with target.ErrAccess, modeling an unmapped page.
func (t *FakeTask) ReadAt(addr uint64, buf []byte) error {
	for i := range buf {
		b, ok := t.mem[addr+uint64(i)]
		if !ok {
			return fmt.Errorf("%w: unmapped address %#x", target.ErrAccess, addr+uint64(i))
		}
		buf[i] = b
	}
	return nil
}

// Builder accumulates fixture data and a bump-pointer allocator so test
// cases can lay out interconnected structures (classes, method lists,
// strings) without manually tracking addresses.
type Builder struct {
	Task      *FakeTask
	ByteOrder binary.ByteOrder
	next      uint64
}

// NewBuilder returns a Builder whose bump allocator starts at base.
func NewBuilder(base uint64) *Builder {
	return &Builder{Task: NewFakeTask(), ByteOrder: binary.LittleEndian, next: base}
}

// Alloc reserves n bytes and returns their starting address, advancing the
// bump pointer with 8-byte alignment so pointer-width fields never
// straddle the allocation boundary.
func (b *Builder) Alloc(n uint64) uint64 {
	addr := b.next
	b.next += n
	if rem := b.next % 8; rem != 0 {
		b.next += 8 - rem
	}
	return addr
}

// PutString writes s as a NUL-terminated C string and returns its address.
func (b *Builder) PutString(s string) uint64 {
	addr := b.Alloc(uint64(len(s)) + 1)
	b.Task.Write(addr, append([]byte(s), 0))
	return addr
}

// PutU32/PutU64 write a single word at a freshly allocated address and
// return that address.
func (b *Builder) PutU32(v uint32) uint64 {
	addr := b.Alloc(4)
	buf := make([]byte, 4)
	b.ByteOrder.PutUint32(buf, v)
	b.Task.Write(addr, buf)
	return addr
}

func (b *Builder) PutU64(v uint64) uint64 {
	addr := b.Alloc(8)
	buf := make([]byte, 8)
	b.ByteOrder.PutUint64(buf, v)
	b.Task.Write(addr, buf)
	return addr
}

// PutBytes writes raw bytes at a freshly allocated address and returns it.
func (b *Builder) PutBytes(data []byte) uint64 {
	addr := b.Alloc(uint64(len(data)))
	b.Task.Write(addr, data)
	return addr
}

// NewImage returns an *target.Image backed by this builder's task and the
// given section table.
func (b *Builder) NewImage(name string, is64 bool, sections []target.SectionDescriptor) *target.Image {
	return &target.Image{
		Name:      name,
		Task:      b.Task,
		ByteOrder: b.ByteOrder,
		Is64:      is64,
		Sections:  sections,
	}
}
