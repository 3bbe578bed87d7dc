// Package objc1 walks the classic Objective-C 1 "module_info" ABI: the
// `__OBJC,__module_info` section's chain of module → symtab → class →
// method-list(s) → methods (spec §4.C). It only ever runs against 32-bit
// images; ObjC1 predates the 64-bit runtime entirely.
package objc1

import (
	"fmt"

	"github.com/crashlens/objcscan/abi"
	"github.com/crashlens/objcscan/internal/walkcb"
	"github.com/crashlens/objcscan/pkg/mstring"
	"github.com/crashlens/objcscan/pkg/target"
)

const (
	segObjC1      = "__OBJC"
	secModuleInfo = "__module_info"
)

// Walk maps `__OBJC,__module_info` and enumerates every method reachable
// from it, invoking cb once per method. Returns target.ErrNotFound if the
// section doesn't exist, the expected signal for the dispatcher to fall
// back to the ObjC2 walker, or any other error a sub-parse produced,
// which aborts the walk immediately (spec §7's "any other error aborts").
func Walk(image *target.Image, cb walkcb.Callback) error {
	mod, err := image.MapSection(segObjC1, secModuleInfo)
	if err != nil {
		return err
	}

	const recSize = abi.ObjC1ModuleSize
	for off := uint64(0); off+recSize <= mod.Length; off += recSize {
		rec, err := mod.Remap(mod.BaseAddr+off, recSize)
		if err != nil {
			return err
		}
		symtabAddr := uint64(image.ByteOrder.Uint32(rec[12:16]))
		if symtabAddr == 0 {
			continue
		}
		if err := walkSymtab(image, symtabAddr, cb); err != nil {
			return err
		}
	}
	return nil
}

func walkSymtab(image *target.Image, addr uint64, cb walkcb.Callback) error {
	buf := make([]byte, abi.ObjC1SymtabSize)
	if err := image.Copy(addr, buf); err != nil {
		return fmt.Errorf("%w: copy symtab at %#x: %v", target.ErrAccess, addr, err)
	}
	clsDefCount := image.ByteOrder.Uint16(buf[8:10])

	clsPtrsBase := addr + abi.ObjC1SymtabSize
	for i := uint16(0); i < clsDefCount; i++ {
		ptrAddr := clsPtrsBase + uint64(i)*4
		ptrBuf := make([]byte, 4)
		if err := image.Copy(ptrAddr, ptrBuf); err != nil {
			return fmt.Errorf("%w: copy class ptr at %#x: %v", target.ErrAccess, ptrAddr, err)
		}
		clsAddr := uint64(image.ByteOrder.Uint32(ptrBuf))
		if clsAddr == 0 {
			continue
		}
		if err := walkClassAndMeta(image, clsAddr, cb); err != nil {
			return err
		}
	}
	return nil
}

// walkClassAndMeta parses cls as a regular class, then follows its isa to
// parse the metaclass. There is no traversal loop here: class and
// metaclass are two independent parses of the same shape (spec §9's note
// that "class then metaclass" shares only a name-string borrow, not a
// graph edge).
func walkClassAndMeta(image *target.Image, addr uint64, cb walkcb.Callback) error {
	cls, err := readClass(image, addr)
	if err != nil {
		return err
	}
	if err := parseClass(image, cls, false, cb); err != nil {
		return err
	}
	if cls.Isa == 0 {
		return nil
	}
	meta, err := readClass(image, uint64(cls.Isa))
	if err != nil {
		return err
	}
	return parseClass(image, meta, true, cb)
}

func readClass(image *target.Image, addr uint64) (abi.ObjC1Class, error) {
	buf := make([]byte, abi.ObjC1ClassSize)
	if err := image.Copy(addr, buf); err != nil {
		return abi.ObjC1Class{}, fmt.Errorf("%w: copy class at %#x: %v", target.ErrAccess, addr, err)
	}
	bo := image.ByteOrder
	return abi.ObjC1Class{
		Isa:          bo.Uint32(buf[0:4]),
		Super:        bo.Uint32(buf[4:8]),
		Name:         bo.Uint32(buf[8:12]),
		Version:      bo.Uint32(buf[12:16]),
		Info:         bo.Uint32(buf[16:20]),
		InstanceSize: bo.Uint32(buf[20:24]),
		Ivars:        bo.Uint32(buf[24:28]),
		Methods:      bo.Uint32(buf[28:32]),
		Cache:        bo.Uint32(buf[32:36]),
		Protocols:    bo.Uint32(buf[36:40]),
	}, nil
}

func parseClass(image *target.Image, cls abi.ObjC1Class, isMeta bool, cb walkcb.Callback) error {
	name := mstring.New(image, uint64(cls.Name), nil)
	defer name.Close()
	className := name.String()
	if err := name.Err(); err != nil {
		return err
	}

	if cls.Methods == 0 {
		return nil
	}

	if cls.Info&abi.CLSNoMethodArray != 0 {
		return walkMethodList(image, uint64(cls.Methods), className, isMeta, cb)
	}
	return walkMethodListArray(image, uint64(cls.Methods), className, isMeta, cb)
}

// walkMethodListArray reads a null/sentinel-terminated array of 32-bit
// method_list pointers, advancing the cursor by 4 bytes after each entry.
func walkMethodListArray(image *target.Image, cursor uint64, className string, isMeta bool, cb walkcb.Callback) error {
	for {
		ptrBuf := make([]byte, 4)
		if err := image.Copy(cursor, ptrBuf); err != nil {
			return fmt.Errorf("%w: copy method-list ptr at %#x: %v", target.ErrAccess, cursor, err)
		}
		listAddr := uint64(image.ByteOrder.Uint32(ptrBuf))
		cursor += 4
		if listAddr == 0 || listAddr == uint64(abi.EndOfMethodsList) {
			return nil
		}
		if err := walkMethodList(image, listAddr, className, isMeta, cb); err != nil {
			return err
		}
	}
}

func walkMethodList(image *target.Image, addr uint64, className string, isMeta bool, cb walkcb.Callback) error {
	hdr := make([]byte, abi.ObjC1MethodListHeaderSize)
	if err := image.Copy(addr, hdr); err != nil {
		return fmt.Errorf("%w: copy method-list header at %#x: %v", target.ErrAccess, addr, err)
	}
	count := image.ByteOrder.Uint32(hdr[4:8])

	base := addr + abi.ObjC1MethodListHeaderSize
	for i := uint32(0); i < count; i++ {
		entryAddr := base + uint64(i)*abi.ObjC1MethodSize
		buf := make([]byte, abi.ObjC1MethodSize)
		if err := image.Copy(entryAddr, buf); err != nil {
			return fmt.Errorf("%w: copy method at %#x: %v", target.ErrAccess, entryAddr, err)
		}
		bo := image.ByteOrder
		nameAddr := uint64(bo.Uint32(buf[0:4]))
		impAddr := uint64(bo.Uint32(buf[8:12]))

		nameStr := mstring.New(image, nameAddr, nil)
		methodName := nameStr.String()
		err := nameStr.Err()
		nameStr.Close()
		if err != nil {
			return err
		}

		cb(isMeta, className, methodName, impAddr)
	}
	return nil
}
