// Package rotable is the class-RO cache (spec §3's class_ro_table, §4.B):
// a fixed-size, open-addressed table mapping a class_rw_t address to its
// resolved class_ro_t address, so a realized class's class_rw_t need not
// be copied again on later walks even though find_method may walk every
// class in an image on every call. The class_ro_t itself is still read on
// every walk, and a key that loses a slot collision is never cached.
//
// The table is backed by the injectable page allocator in
// internal/palloc, never the Go heap, per the allocator discipline spec §9
// treats as a hard requirement rather than an optimization. If that
// allocation fails, the table goes permanently into a size-0 passthrough
// state: lookups always miss and sets are silently dropped, which is
// exactly the "cache disabled" fallback the original tolerates rather than
// failing parsing outright.
package rotable

import "github.com/crashlens/objcscan/internal/palloc"

// entries is the fixed slot count, matching the original's cache_size.
// Not configurable: the original hardcodes it and the spec calls out 1024
// as the fixed size, not a tunable.
const entries = 1024

// Table is an open-addressed key/value cache over target-address-sized
// words. It has no chaining and no eviction: a collision at a slot is
// resolved by keeping whichever entry got there first (spec §4.B,
// "first-writer-wins").
type Table struct {
	alloc palloc.Allocator
	keys  []byte // entries * wordSize bytes, native-endian target words
	vals  []byte
	back  []byte // single backing allocation keys/vals are sliced from
	word  int    // 4 or 8, the target's pointer width
	size  int    // entries, or 0 in the permanent disabled state
}

// New allocates a Table sized for a target with the given pointer width
// (4 or 8 bytes), using alloc for the backing pages. If the allocation
// fails, New still returns a usable *Table, one permanently in the
// disabled (size 0) state, rather than an error, since a missing cache is
// a performance degradation the parser must tolerate, not a fatal
// condition (spec §4.B).
func New(alloc palloc.Allocator, wordSize int) *Table {
	t := &Table{alloc: alloc, word: wordSize}
	need := entries * wordSize * 2
	back, err := alloc.Alloc(need)
	if err != nil || len(back) < need {
		// Disabled: size stays 0, keys/vals stay nil.
		return t
	}
	t.back = back
	t.keys = back[:entries*wordSize]
	t.vals = back[entries*wordSize : need]
	t.size = entries
	return t
}

// Close releases the backing allocation. Safe to call on a disabled table.
func (t *Table) Close() error {
	if t.back == nil {
		return nil
	}
	err := t.alloc.Free(t.back)
	t.back, t.keys, t.vals, t.size = nil, nil, nil, 0
	return err
}

// index is the original's cache_index: (key >> 2) mod size. The >>2
// discards the low two bits of a word-aligned address, which carry no
// entropy, before reducing into the table.
func (t *Table) index(key uint64) int {
	return int((key >> 2) % uint64(t.size))
}

func (t *Table) getWord(buf []byte, slot int) uint64 {
	off := slot * t.word
	if t.word == 4 {
		return uint64(le32(buf[off:]))
	}
	return le64(buf[off:])
}

func (t *Table) putWord(buf []byte, slot int, v uint64) {
	off := slot * t.word
	if t.word == 4 {
		putLE32(buf[off:], uint32(v))
		return
	}
	putLE64(buf[off:], v)
}

// Lookup returns (value, true) if key is present at its canonical slot.
// A miss, including the case where a different key occupies that slot,
// or the table is disabled, reports found=false; it never scans or
// chains, matching the original cache_lookup.
func (t *Table) Lookup(key uint64) (value uint64, found bool) {
	if t.size == 0 || key == 0 {
		return 0, false
	}
	slot := t.index(key)
	if t.getWord(t.keys, slot) != key {
		return 0, false
	}
	return t.getWord(t.vals, slot), true
}

// Set records value for key at its canonical slot, unless that slot is
// already occupied by a different key, in which case the set is silently
// dropped: first writer wins, matching the original cache_set, which never
// evicts or probes an alternate slot.
func (t *Table) Set(key, value uint64) {
	if t.size == 0 || key == 0 {
		return
	}
	slot := t.index(key)
	existing := t.getWord(t.keys, slot)
	if existing != 0 && existing != key {
		return
	}
	t.putWord(t.keys, slot, key)
	t.putWord(t.vals, slot, value)
}

// Enabled reports whether the table is backed by a real allocation.
func (t *Table) Enabled() bool {
	return t.size != 0
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le64(b []byte) uint64 {
	return uint64(le32(b)) | uint64(le32(b[4:]))<<32
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putLE64(b []byte, v uint64) {
	putLE32(b, uint32(v))
	putLE32(b[4:], uint32(v>>32))
}
