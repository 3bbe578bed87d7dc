// Package abi describes the on-disk layouts of the Objective-C runtime
// metadata structures this module walks: the ObjC1 "module_info" ABI and
// the ObjC2 "classlist" ABI, in both their 32- and 64-bit forms.
//
// Every struct here is a direct, packed mirror of the C layout it
// represents; the parser reads raw bytes from the target process into
// these and must never assume compiler padding matches, which is why each
// field is called out explicitly rather than relying on an embedded struct.
package abi

// ObjC1 module_info ABI. See plcrash's pl_objc1_* structures; the class and
// method layouts predate the modern runtime and only ever exist in 32-bit
// form.
const (
	ObjC1ModuleSize = 16
	ObjC1SymtabSize = 12
	ObjC1ClassSize  = 40
	ObjC1MethodListHeaderSize = 8
	ObjC1MethodSize           = 12

	// CLSNoMethodArray, set in a class's info field, means Methods points
	// directly at a single method_list rather than a NULL/sentinel
	// terminated array of method_list pointers.
	CLSNoMethodArray uint32 = 0x4000

	// EndOfMethodsList terminates an array of method_list pointers,
	// alongside a plain NULL entry (the runtime checks both).
	EndOfMethodsList uint32 = 0xFFFFFFFF
)

// ObjC1Module is a single `__OBJC,__module_info` record.
type ObjC1Module struct {
	Version uint32
	Size    uint32
	Name    uint32
	Symtab  uint32
}

// ObjC1Symtab precedes a run of `ClsDefCount` 32-bit class pointers.
type ObjC1Symtab struct {
	SelRefCount  uint32
	Refs         uint32
	ClsDefCount  uint16
	CatDefCount  uint16
}

// ObjC1Class is the classic (pre-ObjC2) class record. Every field is
// named, including the ones the parser never reads, so each keeps its
// byte range.
type ObjC1Class struct {
	Isa          uint32
	Super        uint32
	Name         uint32
	Version      uint32
	Info         uint32
	InstanceSize uint32
	Ivars        uint32
	Methods      uint32
	Cache        uint32
	Protocols    uint32
}

// ObjC1MethodListHeader precedes Count ObjC1Method entries.
type ObjC1MethodListHeader struct {
	Obsolete uint32
	Count    uint32
}

// ObjC1Method is a single method_list entry in the ObjC1 ABI.
type ObjC1Method struct {
	Name  uint32
	Types uint32
	Imp   uint32
}

// ---- ObjC2 ----

// RW flags, stored in class_rw_t.flags. Only the bits the parser inspects
// are named.
const (
	// RWRealized is set once the runtime has initialized a class's rw
	// data. Classes without it must be skipped: their data_ro pointer is
	// not yet meaningful.
	RWRealized uint32 = 1 << 31
	// RWCopiedRO indicates data_ro points at a heap copy of class_ro_t
	// rather than the original compiled-in struct inside __objc_const.
	RWCopiedRO uint32 = 1 << 27
)

// DataRWPointerMask strips the low two bits of a class's data_rw field,
// which the runtime uses as scratch flag bits (fast-realize, etc.)
// unrelated to the pointer itself.
const DataRWPointerMask uint64 = ^uint64(0x3)

// ARM64TaggedISAMask masks the refcount/side-table bits libobjc packs into
// otherwise-unused high bits of a class's isa pointer on arm64. Tied to a
// specific runtime era: a future libobjc revision could widen the usable
// pointer range and invalidate this constant. See spec §9.
const ARM64TaggedISAMask uint64 = 0x1FFFFFFF8

// ObjC2Class32/64 is the `struct objc_class` header common to every class
// and metaclass object. Only Isa and DataRW are consumed by the parser;
// Superclass/Cache/Vtable are read as padding to keep the struct size
// correct for sequential field reads.
type ObjC2Class32 struct {
	Isa        uint32
	Superclass uint32
	Cache      uint32
	Vtable     uint32
	DataRW     uint32
}

type ObjC2Class64 struct {
	Isa        uint64
	Superclass uint64
	Cache      uint64
	Vtable     uint64
	DataRW     uint64
}

// ObjC2ClassDataRW32/64 is `class_rw_t`'s header, the mutable half the
// runtime fills in when a class is realized.
type ObjC2ClassDataRW32 struct {
	Flags   uint32
	Version uint32
	DataRO  uint32
}

type ObjC2ClassDataRW64 struct {
	Flags   uint32
	Version uint32
	DataRO  uint64
}

// ObjC2ClassDataRO32/64 is `class_ro_t`, the compiler-emitted, read-only
// half. Only Name and BaseMethods are consumed.
type ObjC2ClassDataRO32 struct {
	Flags          uint32
	InstanceStart  uint32
	InstanceSize   uint32
	IvarLayout     uint32
	Name           uint32
	BaseMethods    uint32
	BaseProtocols  uint32
	Ivars          uint32
	WeakIvarLayout uint32
	BaseProperties uint32
}

type ObjC2ClassDataRO64 struct {
	Flags          uint32
	InstanceStart  uint32
	InstanceSize   uint32
	Reserved       uint32 // padding to 8-byte align the pointer fields that follow
	IvarLayout     uint64
	Name           uint64
	BaseMethods    uint64
	BaseProtocols  uint64
	Ivars          uint64
	WeakIvarLayout uint64
	BaseProperties uint64
}

// ObjC2MethodListHeader precedes Count entries of EntSize bytes each.
// EntSize's low two bits are reserved flag bits (uniqued/sorted) and must
// be masked off before using it as a stride; it is never assumed to
// equal sizeof(method entry); the on-disk stride can be larger.
type ObjC2MethodListHeader struct {
	EntSize uint32
	Count   uint32
}

// Stride returns the validated per-entry byte stride, with the two
// reserved flag bits cleared.
func (h ObjC2MethodListHeader) Stride() uint32 {
	return h.EntSize &^ 0x3
}

// ObjC2Method32/64 is one `method_t` entry. Types is read but never
// delivered to callers (spec §4.D).
type ObjC2Method32 struct {
	Name  uint32
	Types uint32
	Imp   uint32
}

type ObjC2Method64 struct {
	Name  uint64
	Types uint64
	Imp   uint64
}

// ObjC2Category32/64 is `category_t`. Only present so the (presently
// no-op) category walker has somewhere to read its pointers from; see
// internal/objc2's category stub.
type ObjC2Category32 struct {
	Name                     uint32
	Cls                      uint32
	InstanceMethods          uint32
	ClassMethods             uint32
	Protocols                uint32
	InstanceProperties       uint32
}

type ObjC2Category64 struct {
	Name               uint64
	Cls                uint64
	InstanceMethods    uint64
	ClassMethods       uint64
	Protocols          uint64
	InstanceProperties uint64
}

// Sizes, in bytes, of the fixed-width records above, used to size copy
// buffers without relying on unsafe.Sizeof against a struct whose Go
// memory layout may not match the wire layout bit-for-bit on every
// platform.
const (
	SizeObjC1ModuleRecord = 16
	SizeObjC1SymtabRecord = 12
	SizeObjC1ClassRecord  = 40
	SizeObjC1MethodListHeader = 8
	SizeObjC1MethodRecord     = 12

	SizeObjC2Class32 = 20
	SizeObjC2Class64 = 40

	SizeObjC2ClassDataRW32 = 12
	SizeObjC2ClassDataRW64 = 16

	SizeObjC2ClassDataRO32 = 40
	SizeObjC2ClassDataRO64 = 72

	SizeObjC2MethodListHeader = 8

	SizeObjC2Method32 = 12
	SizeObjC2Method64 = 24

	SizeObjC2Category32 = 24
	SizeObjC2Category64 = 48
)
