// Package machofile loads a single, thin (non-fat) Mach-O binary from disk
// into a pkg/target.Image, for objcdump's offline, non-signal-path use.
// It reads load commands the same way the rest of this module reads
// process memory: fixed-size structs, one cursor, no reflection, the same
// load-command walk idiom used elsewhere in this module, just pointed at a
// file instead of a live address space.
package machofile

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/crashlens/objcscan/pkg/target"
)

const (
	magic32 = 0xfeedface
	magic64 = 0xfeedfacf

	lcSegment   = 0x1
	lcSegment64 = 0x19

	cpuTypeX86    = 0x00000007
	cpuTypeX86_64 = 0x01000007
	cpuTypeARM    = 0x0000000c
	cpuTypeARM64  = 0x0100000c
)

// segRange is one loaded segment's file-offset mapping: [vmaddr,
// vmaddr+vmsize) in the target's address space corresponds to
// [fileoff, fileoff+filesize) in the backing file.
type segRange struct {
	vmaddr, vmsize     uint64
	fileoff, filesize  uint64
}

// fileTask implements target.Task by translating addresses through a
// file's segment table instead of reading a live process.
type fileTask struct {
	f    *os.File
	segs []segRange
}

func (t *fileTask) ReadAt(addr uint64, buf []byte) error {
	need := uint64(len(buf))
	for _, s := range t.segs {
		if addr < s.vmaddr || addr+need > s.vmaddr+s.vmsize {
			continue
		}
		off := int64(s.fileoff + (addr - s.vmaddr))
		n, err := t.f.ReadAt(buf, off)
		if err != nil {
			return fmt.Errorf("%w: read file offset %#x: %v", target.ErrAccess, off, err)
		}
		if n != len(buf) {
			return fmt.Errorf("%w: short file read at offset %#x", target.ErrAccess, off)
		}
		return nil
	}
	return fmt.Errorf("%w: address %#x not covered by any loaded segment", target.ErrAccess, addr)
}

// Load opens path and builds a target.Image plus an io.Closer for the
// backing file descriptor. Only thin, little-endian Mach-O binaries are
// supported, enough for objcdump's diagnostic purpose; a fat/universal
// binary should be thinned with a real Mach-O toolchain first.
func Load(path string) (*target.Image, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open %s: %v", target.ErrAccess, path, err)
	}

	hdr := make([]byte, 32)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%w: read header: %v", target.ErrAccess, err)
	}

	m := binary.LittleEndian.Uint32(hdr[0:4])
	var is64 bool
	switch m {
	case magic32:
		is64 = false
	case magic64:
		is64 = true
	default:
		f.Close()
		return nil, nil, fmt.Errorf("%w: unsupported or non-little-endian Mach-O magic %#x", target.ErrUnknown, m)
	}

	cpuType := binary.LittleEndian.Uint32(hdr[4:8])
	ncmds := binary.LittleEndian.Uint32(hdr[16:20])

	headerSize := uint64(28)
	if is64 {
		headerSize = 32
	}

	img := &target.Image{
		Name:      path,
		ByteOrder: binary.LittleEndian,
		Is64:      is64,
		Arch:      archFor(cpuType),
	}
	task := &fileTask{f: f}

	cursor := headerSize
	lc := make([]byte, 8)
	for i := uint32(0); i < ncmds; i++ {
		if _, err := f.ReadAt(lc, int64(cursor)); err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("%w: read load command %d: %v", target.ErrAccess, i, err)
		}
		cmd := binary.LittleEndian.Uint32(lc[0:4])
		cmdsize := binary.LittleEndian.Uint32(lc[4:8])

		switch cmd {
		case lcSegment64:
			if err := readSegment64(f, cursor, &img.Sections, &task.segs); err != nil {
				f.Close()
				return nil, nil, err
			}
		case lcSegment:
			if err := readSegment32(f, cursor, &img.Sections, &task.segs); err != nil {
				f.Close()
				return nil, nil, err
			}
		}

		cursor += uint64(cmdsize)
	}

	img.Task = task
	return img, f, nil
}

func archFor(cpuType uint32) target.Arch {
	switch cpuType {
	case cpuTypeARM64:
		return target.ArchARM64
	case cpuTypeX86_64:
		return target.ArchX86_64
	case cpuTypeARM:
		return target.ArchARM
	case cpuTypeX86:
		return target.Arch386
	default:
		return target.ArchUnknown
	}
}

func readSegment64(f *os.File, lcOff uint64, sections *[]target.SectionDescriptor, segs *[]segRange) error {
	buf := make([]byte, 64)
	if _, err := f.ReadAt(buf, int64(lcOff+8)); err != nil {
		return fmt.Errorf("%w: read segment_command_64: %v", target.ErrAccess, err)
	}
	segname := cstr16(buf[0:16])
	vmaddr := binary.LittleEndian.Uint64(buf[16:24])
	vmsize := binary.LittleEndian.Uint64(buf[24:32])
	fileoff := binary.LittleEndian.Uint64(buf[32:40])
	filesize := binary.LittleEndian.Uint64(buf[40:48])
	nsects := binary.LittleEndian.Uint32(buf[56:60])

	*segs = append(*segs, segRange{vmaddr: vmaddr, vmsize: vmsize, fileoff: fileoff, filesize: filesize})

	const secSize = 80
	secBase := lcOff + 8 + 64
	sec := make([]byte, secSize)
	for i := uint32(0); i < nsects; i++ {
		if _, err := f.ReadAt(sec, int64(secBase+uint64(i)*secSize)); err != nil {
			return fmt.Errorf("%w: read section_64 %d: %v", target.ErrAccess, i, err)
		}
		*sections = append(*sections, target.SectionDescriptor{
			Segment: segname,
			Section: cstr16(sec[0:16]),
			Addr:    binary.LittleEndian.Uint64(sec[32:40]),
			Size:    binary.LittleEndian.Uint64(sec[40:48]),
		})
	}
	return nil
}

func readSegment32(f *os.File, lcOff uint64, sections *[]target.SectionDescriptor, segs *[]segRange) error {
	buf := make([]byte, 48)
	if _, err := f.ReadAt(buf, int64(lcOff+8)); err != nil {
		return fmt.Errorf("%w: read segment_command: %v", target.ErrAccess, err)
	}
	segname := cstr16(buf[0:16])
	vmaddr := uint64(binary.LittleEndian.Uint32(buf[16:20]))
	vmsize := uint64(binary.LittleEndian.Uint32(buf[20:24]))
	fileoff := uint64(binary.LittleEndian.Uint32(buf[24:28]))
	filesize := uint64(binary.LittleEndian.Uint32(buf[28:32]))
	nsects := binary.LittleEndian.Uint32(buf[40:44])

	*segs = append(*segs, segRange{vmaddr: vmaddr, vmsize: vmsize, fileoff: fileoff, filesize: filesize})

	const secSize = 68
	secBase := lcOff + 8 + 48
	sec := make([]byte, secSize)
	for i := uint32(0); i < nsects; i++ {
		if _, err := f.ReadAt(sec, int64(secBase+uint64(i)*secSize)); err != nil {
			return fmt.Errorf("%w: read section %d: %v", target.ErrAccess, i, err)
		}
		*sections = append(*sections, target.SectionDescriptor{
			Segment: segname,
			Section: cstr16(sec[0:16]),
			Addr:    uint64(binary.LittleEndian.Uint32(sec[32:36])),
			Size:    uint64(binary.LittleEndian.Uint32(sec[36:40])),
		})
	}
	return nil
}

func cstr16(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
