// Package mstring implements the "macho string" abstraction the spec
// treats as external (§1, §6): a lazily-resolved, bounded C string living
// in a target process's address space, borrowed for the duration of a
// single callback invocation.
package mstring

import (
	"fmt"

	"github.com/crashlens/objcscan/pkg/target"
)

// MaxLength bounds how many bytes a String will ever read looking for the
// terminating NUL, so a corrupt or adversarial target image can't turn a
// string resolution into an unbounded read.
const MaxLength = 4096

// String is a borrow on a NUL-terminated C string in the target's address
// space. It resolves lazily: construction never touches target memory, and
// the actual read happens once, on the first String or Err call, exactly the
// way the spec's macho-string abstraction is described ("lazily resolves a
// target-address-space C string").
type String struct {
	image   *target.Image
	addr    uint64
	section *target.SectionMap // optional: set when the address is known to live in a cached section
	resolved bool
	value    string
	err      error
}

// New returns a String borrow for the C string at addr in image. sec, if
// non-nil, is tried first via SectionMap.Remap before falling back to a
// direct target-memory copy, mirroring the class-RO decoder's
// "try the cheap remap, then fall back to a copy" policy (spec §4.E) for
// the common case of a name pointer living in __objc_const.
func New(image *target.Image, addr uint64, sec *target.SectionMap) *String {
	return &String{image: image, addr: addr, section: sec}
}

// Close is a no-op placeholder kept for parity with the spec's
// init/free-scoped resource discipline (§6, §9's TargetPtr discussion): in
// the original, every macho_string borrow is freed on every exit path
// because its backing memory is heap-allocated ahead of time. In this
// port, String never allocates target-side resources; its value is
// materialized lazily into a Go string, which the garbage collector
// reclaims normally, so there is nothing to release. Call sites still
// call Close() so the borrow's scope reads the same as the original's.
func (s *String) Close() {}

// String resolves (if needed) and returns the string's value. Once
// resolved, the value is cached; repeated calls never re-touch target
// memory.
func (s *String) String() string {
	s.resolve()
	return s.value
}

// Err returns any error encountered while resolving the string.
func (s *String) Err() error {
	s.resolve()
	return s.err
}

func (s *String) resolve() {
	if s.resolved {
		return
	}
	s.resolved = true

	if s.section != nil {
		if b, err := s.section.Remap(s.addr, MaxLength); err == nil {
			s.value = cstr(b)
			return
		}
	}

	buf := make([]byte, 0, 64)
	chunk := make([]byte, 64)
	for len(buf) < MaxLength {
		addr := s.addr + uint64(len(buf))
		n := len(chunk)
		if err := s.image.Copy(addr, chunk); err != nil {
			// A full chunk can run past readable memory even when the NUL
			// lies before that point, so retry this position one byte at a time.
			if err := s.image.Copy(addr, chunk[:1]); err != nil {
				s.err = fmt.Errorf("%w: read string at %#x: %v", target.ErrAccess, s.addr, err)
				return
			}
			n = 1
		}
		if i := indexZero(chunk[:n]); i >= 0 {
			buf = append(buf, chunk[:i]...)
			s.value = string(buf)
			return
		}
		buf = append(buf, chunk[:n]...)
	}
	s.err = fmt.Errorf("%w: string at %#x exceeds %d bytes without a NUL terminator", target.ErrInvalid, s.addr, MaxLength)
}

func cstr(b []byte) string {
	if i := indexZero(b); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func indexZero(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}
