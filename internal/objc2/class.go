package objc2

import (
	"fmt"

	"github.com/crashlens/objcscan/abi"
	"github.com/crashlens/objcscan/internal/rotable"
	"github.com/crashlens/objcscan/internal/walkcb"
	"github.com/crashlens/objcscan/pkg/mstring"
	"github.com/crashlens/objcscan/pkg/target"
)

// DecodeClass resolves the class (or metaclass, when isMeta) at classAddr,
// already dereferenced from the classlist/isa pointer by the caller,
// through its class_rw_t to class_ro_t, consulting cache for a known
// data_rw → data_ro mapping, and invokes DecodeMethodList for its base
// methods.
//
// Returns target.ErrNotFound if the class is unrealized (no usable RO
// yet): the walker must treat that as "skip this entry", not an abort
// (spec §4.F's "skip-on-skip discipline").
func DecodeClass(image *target.Image, objcConst, objcData *target.SectionMap, cache *rotable.Table, classAddr uint64, isMeta bool, cb walkcb.Callback) error {
	dataRW, err := readDataRW(image, objcData, classAddr)
	if err != nil {
		return err
	}

	roAddr, hit := cache.Lookup(dataRW)
	var roBytes []byte
	if hit {
		// Always try the cheap remap first; only a prior heap-copied RO
		// (or an image where some ROs are in-section and others aren't)
		// falls back to a direct copy (spec §4.E step 4).
		roBytes, err = resolveRO(image, objcConst, roAddr, false)
		if err != nil {
			return err
		}
	} else {
		rw, err := readClassDataRW(image, dataRW)
		if err != nil {
			return err
		}
		if rw.Flags&abi.RWRealized == 0 {
			return target.ErrNotFound
		}
		roAddr = rw.DataRO
		roBytes, err = resolveRO(image, objcConst, roAddr, rw.Flags&abi.RWCopiedRO != 0)
		if err != nil {
			return err
		}
		cache.Set(dataRW, roAddr)
	}

	nameAddr, baseMethods := parseRO(image, roBytes)

	name := mstring.New(image, nameAddr, objcConst)
	className := name.String()
	nameErr := name.Err()
	name.Close()
	if nameErr != nil {
		return nameErr
	}

	if baseMethods == 0 {
		return nil
	}
	return DecodeMethodList(image, objcConst, baseMethods, className, isMeta, cb)
}

// fetchClassBytes resolves the struct objc_class record at addr. These
// records are compiler-emitted statics living in __objc_data, so the
// cheap remap is tried first, falling back to a raw target copy for
// images where the section couldn't be mapped or the address lies
// outside it (spec §3's two-path pointer-validation invariant).
func fetchClassBytes(image *target.Image, objcData *target.SectionMap, addr uint64) ([]byte, error) {
	size := uint64(abi.SizeObjC2Class32)
	if image.Is64 {
		size = abi.SizeObjC2Class64
	}
	if objcData != nil {
		if b, err := objcData.Remap(addr, size); err == nil {
			return b, nil
		}
	}
	buf := make([]byte, size)
	if err := image.Copy(addr, buf); err != nil {
		return nil, fmt.Errorf("%w: copy class at %#x: %v", target.ErrAccess, addr, err)
	}
	return buf, nil
}

// readDataRW extracts a class's data_rw pointer, masking off the two
// scratch flag bits the runtime stores in its low bits.
func readDataRW(image *target.Image, objcData *target.SectionMap, classAddr uint64) (uint64, error) {
	buf, err := fetchClassBytes(image, objcData, classAddr)
	if err != nil {
		return 0, err
	}
	if image.Is64 {
		return image.ByteOrder.Uint64(buf[32:40]) & abi.DataRWPointerMask, nil
	}
	return uint64(image.ByteOrder.Uint32(buf[16:20])) & abi.DataRWPointerMask, nil
}

// readIsa reads just a class's isa field, used by the walker to locate its
// metaclass.
func readIsa(image *target.Image, objcData *target.SectionMap, classAddr uint64) (uint64, error) {
	buf, err := fetchClassBytes(image, objcData, classAddr)
	if err != nil {
		return 0, err
	}
	if image.Is64 {
		return image.ByteOrder.Uint64(buf[0:8]), nil
	}
	return uint64(image.ByteOrder.Uint32(buf[0:4])), nil
}

type classDataRW struct {
	Flags  uint32
	DataRO uint64
}

func readClassDataRW(image *target.Image, addr uint64) (classDataRW, error) {
	if image.Is64 {
		buf := make([]byte, abi.SizeObjC2ClassDataRW64)
		if err := image.Copy(addr, buf); err != nil {
			return classDataRW{}, fmt.Errorf("%w: copy class_rw at %#x: %v", target.ErrAccess, addr, err)
		}
		bo := image.ByteOrder
		return classDataRW{Flags: bo.Uint32(buf[0:4]), DataRO: bo.Uint64(buf[8:16])}, nil
	}
	buf := make([]byte, abi.SizeObjC2ClassDataRW32)
	if err := image.Copy(addr, buf); err != nil {
		return classDataRW{}, fmt.Errorf("%w: copy class_rw at %#x: %v", target.ErrAccess, addr, err)
	}
	bo := image.ByteOrder
	return classDataRW{Flags: bo.Uint32(buf[0:4]), DataRO: uint64(bo.Uint32(buf[8:12]))}, nil
}

// resolveRO returns the class_ro_t bytes at roAddr. When copyFirst is
// true (a known heap-copied RO), it copies directly; otherwise it tries
// the cheap objc_const remap first and only falls back to a copy on
// failure, matching the two distinct policies spec §4.E describes for the
// miss path (known flag) and the hit path (unknown provenance).
func resolveRO(image *target.Image, objcConst *target.SectionMap, roAddr uint64, copyFirst bool) ([]byte, error) {
	size := uint64(abi.SizeObjC2ClassDataRO32)
	if image.Is64 {
		size = abi.SizeObjC2ClassDataRO64
	}

	if !copyFirst && objcConst != nil {
		if b, err := objcConst.Remap(roAddr, size); err == nil {
			return b, nil
		}
	}

	buf := make([]byte, size)
	if err := image.Copy(roAddr, buf); err != nil {
		return nil, fmt.Errorf("%w: copy class_ro at %#x: %v", target.ErrAccess, roAddr, err)
	}
	return buf, nil
}

// parseRO extracts the two fields DecodeClass consumes from a class_ro_t's
// raw bytes: the name pointer and the base-methods pointer.
func parseRO(image *target.Image, b []byte) (nameAddr, baseMethods uint64) {
	bo := image.ByteOrder
	if image.Is64 {
		return bo.Uint64(b[24:32]), bo.Uint64(b[32:40])
	}
	return uint64(bo.Uint32(b[16:20])), uint64(bo.Uint32(b[20:24]))
}
