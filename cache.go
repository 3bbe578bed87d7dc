package objcscan

import (
	"github.com/crashlens/objcscan/internal/palloc"
	"github.com/crashlens/objcscan/internal/rotable"
	"github.com/crashlens/objcscan/internal/seccache"
)

// roTableWordSize is fixed at 8 regardless of the target image's pointer
// width: every address, 32- or 64-bit, fits in a uint64 key/value slot, so
// one table serves both ABI widths without the original's parallel
// 32/64-bit cache layouts. See DESIGN.md.
const roTableWordSize = 8

// Cache is the per-image ParserCache (spec §3): it holds the currently
// acquired section maps and the class-RO cache, both described in
// internal/seccache and internal/rotable, plus the sticky ObjC2-dispatch
// flag from component G.
//
// A Cache is owned by a single caller and must not be used from multiple
// goroutines concurrently (spec §5's "shared resources" note), exactly
// like the original, which assumes a single signal-handling thread.
type Cache struct {
	sections   *seccache.Cache
	roTable    *rotable.Table
	triedObjC2 bool
}

// NewCache zero-initializes a Cache (spec §6's cache_init). It is
// infallible: if the platform page allocator can't reserve the class-RO
// cache's backing pages, the cache degrades to running without that
// cache rather than failing construction.
func NewCache() *Cache {
	return newCacheWithAllocator(palloc.MmapAllocator{})
}

func newCacheWithAllocator(alloc palloc.Allocator) *Cache {
	return &Cache{
		sections: seccache.New(),
		roTable:  rotable.New(alloc, roTableWordSize),
	}
}

// Close releases the cache's section maps and class-RO table pages (spec
// §6's cache_free). Infallible in the sense that callers never need to
// retry; any underlying munmap failure is returned for diagnostics only.
func (c *Cache) Close() error {
	c.sections.Invalidate()
	return c.roTable.Close()
}
