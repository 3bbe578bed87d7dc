package target

import "fmt"

// SectionMap is a local view of a [BaseAddr, BaseAddr+Length) window in the
// target's address space (spec §3). The bytes are copied once, at
// construction, so that every subsequent Remap is a pure bounds check plus
// a slice, no further syscalls, no further chance of failure, which
// matters because class and method-list decoding call Remap in a tight
// loop.
type SectionMap struct {
	image    *Image
	BaseAddr uint64
	Length   uint64
	local    []byte
}

func newSectionMap(img *Image, addr, length uint64) (*SectionMap, error) {
	buf := make([]byte, length)
	if length > 0 {
		if err := img.Copy(addr, buf); err != nil {
			return nil, fmt.Errorf("%w: copy section at %#x len %d: %v", ErrAccess, addr, length, err)
		}
	}
	return &SectionMap{image: img, BaseAddr: addr, Length: length, local: buf}, nil
}

// Remap returns a local, read-only slice over [addr, addr+length) if that
// range lies entirely within the section. It never touches the target
// process again (the bytes were copied once at acquisition time), so this
// never fails for any other reason than the range being out of bounds.
func (s *SectionMap) Remap(addr, length uint64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	if addr < s.BaseAddr {
		return nil, ErrNotFound
	}
	off := addr - s.BaseAddr
	end := off + length
	if end < off || end > s.Length {
		return nil, ErrNotFound
	}
	return s.local[off:end], nil
}

// Contains reports whether addr falls within the mapped window, without
// requiring a length (used by callers that only need to know whether to
// attempt a Remap at all before deciding on a fallback path).
func (s *SectionMap) Contains(addr uint64) bool {
	return addr >= s.BaseAddr && addr < s.BaseAddr+s.Length
}
