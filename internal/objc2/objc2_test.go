package objc2_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crashlens/objcscan/abi"
	"github.com/crashlens/objcscan/internal/objc2"
	"github.com/crashlens/objcscan/internal/palloc"
	"github.com/crashlens/objcscan/internal/rotable"
	"github.com/crashlens/objcscan/internal/seccache"
	"github.com/crashlens/objcscan/pkg/target"
	"github.com/crashlens/objcscan/pkg/target/targettest"
)

type observed struct {
	isMeta     bool
	className  string
	methodName string
	imp        uint64
}

// writeClass64 lays out an ObjC2Class64 record at addr.
func writeClass64(b *targettest.Builder, addr, isa, dataRW uint64) {
	buf := make([]byte, abi.SizeObjC2Class64)
	bo := b.ByteOrder
	bo.PutUint64(buf[0:8], isa)
	bo.PutUint64(buf[32:40], dataRW)
	b.Task.Write(addr, buf)
}

func writeClassRW64(b *targettest.Builder, addr uint64, flags uint32, dataRO uint64) {
	buf := make([]byte, abi.SizeObjC2ClassDataRW64)
	bo := b.ByteOrder
	bo.PutUint32(buf[0:4], flags)
	bo.PutUint64(buf[8:16], dataRO)
	b.Task.Write(addr, buf)
}

func writeClassRO64(b *targettest.Builder, addr uint64, name, baseMethods uint64) {
	buf := make([]byte, abi.SizeObjC2ClassDataRO64)
	bo := b.ByteOrder
	bo.PutUint64(buf[24:32], name)
	bo.PutUint64(buf[32:40], baseMethods)
	b.Task.Write(addr, buf)
}

// writeMethodList64 builds a method_list_t (entsize fixed at 24, the
// exact size of a 64-bit method_t, no flag bits set) and returns its
// address and total byte length, so callers can map it as its own
// __objc_const window.
func writeMethodList64(b *targettest.Builder, names []uint64, imps []uint64) (addr, length uint64) {
	count := len(imps)
	length = 8 + uint64(count)*24
	addr = b.Alloc(length)
	hdr := make([]byte, 8)
	b.ByteOrder.PutUint32(hdr[0:4], 24)
	b.ByteOrder.PutUint32(hdr[4:8], uint32(count))
	b.Task.Write(addr, hdr)
	for i := 0; i < count; i++ {
		entry := make([]byte, 24)
		b.ByteOrder.PutUint64(entry[0:8], names[i])
		b.ByteOrder.PutUint64(entry[16:24], imps[i])
		b.Task.Write(addr+8+uint64(i)*24, entry)
	}
	return addr, length
}

// constSection maps [addr, addr+length) as a standalone __objc_const
// SectionMap, the way DecodeMethodList requires: entries must be
// remappable, with no raw-copy fallback (spec §4.D).
func constSection(t *testing.T, b *targettest.Builder, addr, length uint64) *target.SectionMap {
	t.Helper()
	img := b.NewImage("const", true, []target.SectionDescriptor{
		{Segment: "__DATA", Section: "__objc_const", Addr: addr, Size: length},
	})
	m, err := img.MapSection("__DATA", "__objc_const")
	require.NoError(t, err)
	return m
}

func classlistImage(b *targettest.Builder, classPtrs []uint64) *target.Image {
	classlistAddr := b.Alloc(uint64(len(classPtrs)) * 8)
	for i, p := range classPtrs {
		buf := make([]byte, 8)
		b.ByteOrder.PutUint64(buf, p)
		b.Task.Write(classlistAddr+uint64(i)*8, buf)
	}
	return b.NewImage("objc2", true, []target.SectionDescriptor{
		{Segment: "__DATA", Section: "__objc_classlist", Addr: classlistAddr, Size: uint64(len(classPtrs)) * 8},
	})
}

func TestRealizedClass64(t *testing.T) {
	b := targettest.NewBuilder(0x10000)

	nameAddr := b.PutString("Foo")
	m0, m1, m2 := b.PutString("a"), b.PutString("b"), b.PutString("c")
	mlAddr, mlLen := writeMethodList64(b, []uint64{m0, m1, m2}, []uint64{0x10000, 0x10100, 0x10200})
	objcConst := constSection(t, b, mlAddr, mlLen)

	roAddr := b.Alloc(abi.SizeObjC2ClassDataRO64)
	writeClassRO64(b, roAddr, nameAddr, mlAddr)

	rwAddr := b.Alloc(abi.SizeObjC2ClassDataRW64)
	writeClassRW64(b, rwAddr, abi.RWRealized, roAddr)

	classAddr := b.Alloc(abi.SizeObjC2Class64)
	writeClass64(b, classAddr, 0, rwAddr)

	img := b.NewImage("objc2", true, nil)
	cache := rotable.New(palloc.MmapAllocator{}, 8)

	var got []observed
	err := objc2.DecodeClass(img, objcConst, nil, cache, classAddr, false, func(isMeta bool, cn, mn string, imp uint64) {
		got = append(got, observed{isMeta, cn, mn, imp})
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Foo", got[1].className)
	assert.Equal(t, "b", got[1].methodName)
	assert.Equal(t, uint64(0x10100), got[1].imp)
}

func TestUnrealizedClassSkipped(t *testing.T) {
	b := targettest.NewBuilder(0x20000)

	// Unrealized class: flags=0, nonsense data_ro that must never be touched.
	badRWAddr := b.Alloc(abi.SizeObjC2ClassDataRW64)
	writeClassRW64(b, badRWAddr, 0, 0xBADBADBADBAD)
	badClassAddr := b.Alloc(abi.SizeObjC2Class64)
	writeClass64(b, badClassAddr, 0, badRWAddr)

	cache := rotable.New(palloc.MmapAllocator{}, 8)
	err := objc2.DecodeClass(b.NewImage("u", true, nil), nil, nil, cache, badClassAddr, false, func(bool, string, string, uint64) {
		t.Fatal("callback must not fire for an unrealized class")
	})
	assert.ErrorIs(t, err, target.ErrNotFound)
}

func TestHeapCopiedROCacheHitSurvivesFailedRemap(t *testing.T) {
	b := targettest.NewBuilder(0x40000)

	nameAddr := b.PutString("Bar")
	methodNameAddr := b.PutString("go")
	mlAddr, mlLen := writeMethodList64(b, []uint64{methodNameAddr}, []uint64{0x99000})
	objcConst := constSection(t, b, mlAddr, mlLen)

	// RO lives far outside the mapped __objc_const window, simulating a
	// heap-copied class_ro_t (spec §8 scenario 4): the first, cache-miss
	// call copies it directly because of RWCopiedRO.
	roAddr := uint64(0x9000_0000)
	writeClassRO64(b, roAddr, nameAddr, mlAddr)

	rwAddr := b.Alloc(abi.SizeObjC2ClassDataRW64)
	writeClassRW64(b, rwAddr, abi.RWRealized|abi.RWCopiedRO, roAddr)

	classAddr := b.Alloc(abi.SizeObjC2Class64)
	writeClass64(b, classAddr, 0, rwAddr)

	cache := rotable.New(palloc.MmapAllocator{}, 8)
	img := b.NewImage("heapro", true, nil)

	var calls int
	cb := func(bool, string, string, uint64) { calls++ }

	require.NoError(t, objc2.DecodeClass(img, objcConst, nil, cache, classAddr, false, cb))
	assert.Equal(t, 1, calls)

	// Second call hits the cache, so it tries the objcConst remap first;
	// that remap fails and the call must still succeed via the copy fallback.
	require.NoError(t, objc2.DecodeClass(img, objcConst, nil, cache, classAddr, false, cb))
	assert.Equal(t, 2, calls)
}

// writeClass32 lays out an ObjC2Class32 record at addr.
func writeClass32(b *targettest.Builder, addr uint64, isa, dataRW uint32) {
	buf := make([]byte, abi.SizeObjC2Class32)
	bo := b.ByteOrder
	bo.PutUint32(buf[0:4], isa)
	bo.PutUint32(buf[16:20], dataRW)
	b.Task.Write(addr, buf)
}

func writeClassRW32(b *targettest.Builder, addr uint64, flags uint32, dataRO uint32) {
	buf := make([]byte, abi.SizeObjC2ClassDataRW32)
	bo := b.ByteOrder
	bo.PutUint32(buf[0:4], flags)
	bo.PutUint32(buf[8:12], dataRO)
	b.Task.Write(addr, buf)
}

func writeClassRO32(b *targettest.Builder, addr uint64, name, baseMethods uint32) {
	buf := make([]byte, abi.SizeObjC2ClassDataRO32)
	bo := b.ByteOrder
	bo.PutUint32(buf[16:20], name)
	bo.PutUint32(buf[20:24], baseMethods)
	b.Task.Write(addr, buf)
}

// writeMethodList32 builds a method_list_t with entsize fixed at 12, the
// exact size of a 32-bit method_t.
func writeMethodList32(b *targettest.Builder, names []uint32, imps []uint32) (addr, length uint64) {
	count := len(imps)
	length = 8 + uint64(count)*12
	addr = b.Alloc(length)
	hdr := make([]byte, 8)
	b.ByteOrder.PutUint32(hdr[0:4], 12)
	b.ByteOrder.PutUint32(hdr[4:8], uint32(count))
	b.Task.Write(addr, hdr)
	for i := 0; i < count; i++ {
		entry := make([]byte, 12)
		b.ByteOrder.PutUint32(entry[0:4], names[i])
		b.ByteOrder.PutUint32(entry[8:12], imps[i])
		b.Task.Write(addr+8+uint64(i)*12, entry)
	}
	return addr, length
}

// TestRealizedClass32 is scenario 3's 32-bit analog (SPEC_FULL.md §4): the
// same realized-class/base-methods resolution, but through the 32-bit
// class_t/class_ro_t/method_t layouts instead of their 64-bit twins.
func TestRealizedClass32(t *testing.T) {
	b := targettest.NewBuilder(0x10000)

	nameAddr := uint32(b.PutString("Foo32"))
	m0, m1 := uint32(b.PutString("x")), uint32(b.PutString("y"))
	mlAddr, mlLen := writeMethodList32(b, []uint32{m0, m1}, []uint32{0x20000, 0x20100})
	objcConst := constSection(t, b, mlAddr, mlLen)

	roAddr := uint32(b.Alloc(abi.SizeObjC2ClassDataRO32))
	writeClassRO32(b, uint64(roAddr), nameAddr, uint32(mlAddr))

	rwAddr := uint32(b.Alloc(abi.SizeObjC2ClassDataRW32))
	writeClassRW32(b, uint64(rwAddr), abi.RWRealized, roAddr)

	classAddr := b.Alloc(abi.SizeObjC2Class32)
	writeClass32(b, classAddr, 0, rwAddr)

	img := b.NewImage("objc2-32", false, nil)
	cache := rotable.New(palloc.MmapAllocator{}, 8)

	var got []observed
	err := objc2.DecodeClass(img, objcConst, nil, cache, classAddr, false, func(isMeta bool, cn, mn string, imp uint64) {
		got = append(got, observed{isMeta, cn, mn, imp})
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Foo32", got[1].className)
	assert.Equal(t, "y", got[1].methodName)
	assert.Equal(t, uint64(0x20100), got[1].imp)
}

func TestARM64TaggedISAMetaclass(t *testing.T) {
	b := targettest.NewBuilder(0x100000)

	nameAddr := b.PutString("Baz")
	methodNameAddr := b.PutString("foo")
	mlAddr, mlLen := writeMethodList64(b, []uint64{methodNameAddr}, []uint64{0x50000})
	objcConst := constSection(t, b, mlAddr, mlLen)

	metaRoAddr := b.Alloc(abi.SizeObjC2ClassDataRO64)
	writeClassRO64(b, metaRoAddr, nameAddr, mlAddr)
	metaRwAddr := b.Alloc(abi.SizeObjC2ClassDataRW64)
	writeClassRW64(b, metaRwAddr, abi.RWRealized, metaRoAddr)

	metaclassAddr := b.Alloc(abi.SizeObjC2Class64)
	writeClass64(b, metaclassAddr, 0, metaRwAddr)

	taggedIsa := metaclassAddr | 0xAA00000000000000

	// The instance class itself contributes no methods; only its (tagged)
	// metaclass does.
	classRoAddr := b.Alloc(abi.SizeObjC2ClassDataRO64)
	writeClassRO64(b, classRoAddr, nameAddr, 0)
	classRwAddr := b.Alloc(abi.SizeObjC2ClassDataRW64)
	writeClassRW64(b, classRwAddr, abi.RWRealized, classRoAddr)
	classAddr := b.Alloc(abi.SizeObjC2Class64)
	writeClass64(b, classAddr, taggedIsa, classRwAddr)

	img := classlistImage(b, []uint64{classAddr})
	img.Arch = target.ArchARM64
	cache := rotable.New(palloc.MmapAllocator{}, 8)

	classlistMap, err := img.MapSection("__DATA", "__objc_classlist")
	require.NoError(t, err)

	var got []observed
	err = objc2.WalkImage(img, seccache.Sections{
		ObjCConst:     objcConst,
		ObjCClassList: classlistMap,
	}, cache, func(isMeta bool, cn, mn string, imp uint64) {
		got = append(got, observed{isMeta, cn, mn, imp})
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].isMeta)
	assert.Equal(t, "foo", got[0].methodName)
	assert.Equal(t, uint64(0x50000), got[0].imp)
}
