// Package objc2 walks the modern Objective-C 2 "classlist" ABI: classlist
// and catlist section iteration, class_rw_t/class_ro_t resolution (with
// the per-image class-RO cache), and method_list_t decoding, in both
// 32- and 64-bit form (spec §4.D-F).
package objc2

import (
	"fmt"

	"github.com/crashlens/objcscan/abi"
	"github.com/crashlens/objcscan/internal/walkcb"
	"github.com/crashlens/objcscan/pkg/mstring"
	"github.com/crashlens/objcscan/pkg/target"
)

// DecodeMethodList decodes the method_list_t at addr, which must be
// remappable through objcConst, since method lists live in __objc_const
// and this step, unlike class-RO resolution, never falls back to a raw
// target copy (spec §4.D), and invokes cb once per method.
func DecodeMethodList(image *target.Image, objcConst *target.SectionMap, addr uint64, className string, isMeta bool, cb walkcb.Callback) error {
	if objcConst == nil {
		return fmt.Errorf("%w: method list at %#x: no __objc_const section mapped", target.ErrInvalid, addr)
	}

	hdr, err := objcConst.Remap(addr, abi.SizeObjC2MethodListHeader)
	if err != nil {
		return fmt.Errorf("%w: method-list header at %#x: %v", target.ErrInvalid, addr, err)
	}
	bo := image.ByteOrder
	entSize := bo.Uint32(hdr[0:4]) &^ 0x3
	count := bo.Uint32(hdr[4:8])
	if count == 0 {
		return nil
	}

	base := addr + abi.SizeObjC2MethodListHeader
	entries, err := objcConst.Remap(base, uint64(entSize)*uint64(count))
	if err != nil {
		return fmt.Errorf("%w: method-list entries at %#x: %v", target.ErrInvalid, base, err)
	}

	for i := uint32(0); i < count; i++ {
		entry := entries[uint64(i)*uint64(entSize):]
		var nameAddr, impAddr uint64
		if image.Is64 {
			nameAddr = bo.Uint64(entry[0:8])
			impAddr = bo.Uint64(entry[16:24])
		} else {
			nameAddr = uint64(bo.Uint32(entry[0:4]))
			impAddr = uint64(bo.Uint32(entry[8:12]))
		}

		name := mstring.New(image, nameAddr, objcConst)
		methodName := name.String()
		nameErr := name.Err()
		name.Close()
		if nameErr != nil {
			return nameErr
		}

		cb(isMeta, className, methodName, impAddr)
	}
	return nil
}
