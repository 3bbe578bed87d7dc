// Package target models the Mach-O image abstraction the spec treats as
// external (§3, §6): section lookup by (segment, section) name, a
// byte-order/pointer-width descriptor, and a process-memory copy
// primitive. The core parser (package objcscan and its internal
// sub-packages) only ever touches target memory through this package.
package target

import "encoding/binary"

// SectionDescriptor is one entry of an Image's section table: the
// (segment, section) name pair the rest of the parser looks sections up
// by, and the target-address window it occupies.
type SectionDescriptor struct {
	Segment string
	Section string
	Addr    uint64
	Size    uint64
}

// Arch identifies the target CPU architecture, used only to decide
// whether ARM64's tagged-isa convention applies (spec §4.F, §9).
type Arch int

const (
	ArchUnknown Arch = iota
	ArchARM64
	ArchX86_64
	ArchARM
	Arch386
)

// Image is a handle on one loaded Mach-O image in the target process.
type Image struct {
	// Name identifies the image for diagnostics (path or load-command name).
	Name string
	// Task is the memory-copy primitive for this image's process.
	Task Task
	// ByteOrder is the image's byte order. Crash-time images are always
	// native-endian in practice, but the field exists so the walker never
	// assumes it.
	ByteOrder binary.ByteOrder
	// Is64 selects the 32- or 64-bit ABI variant throughout the parser.
	Is64 bool
	// Arch gates the ARM64 tagged-isa mask (only ever applied on ArchARM64).
	Arch Arch
	// Sections is this image's section table.
	Sections []SectionDescriptor
}

// Identity distinguishes one Image from another for the purposes of the
// ParserCache's "last image" tracking (spec §3's invariant on last_image).
// Two *Image values with the same Identity are treated as the same image.
type Identity = *Image

// MapSection finds the named section and returns a SectionMap covering it,
// eagerly copying its bytes out of the target via Task.ReadAt. Returns
// ErrNotFound if no such section exists in the image, or ErrAccess if the
// section exists but its bytes could not be copied.
func (img *Image) MapSection(segment, section string) (*SectionMap, error) {
	for _, sd := range img.Sections {
		if sd.Segment == segment && sd.Section == section {
			return newSectionMap(img, sd.Addr, sd.Size)
		}
	}
	return nil, ErrNotFound
}

// Copy performs a single bounded read from the target's address space,
// the second of the two pointer-validation paths spec §3/§9 require (the
// first being SectionMap.Remap).
func (img *Image) Copy(addr uint64, buf []byte) error {
	return img.Task.ReadAt(addr, buf)
}

// PointerSize is 4 or 8 depending on Is64.
func (img *Image) PointerSize() uint64 {
	if img.Is64 {
		return 8
	}
	return 4
}
