package target

import "errors"

// Error kinds shared across every layer of the parser (spec §7). Components
// compare against these with errors.Is rather than inspecting strings,
// mirroring the C original's switch over a small plcrash_error_t enum.
var (
	// ErrNotFound means a requested section or symbol does not exist, or
	// (at the find_method layer) no candidate IMP was <= the target
	// address. Never logged: it's a valid outcome, not a failure.
	ErrNotFound = errors.New("objcscan: not found")

	// ErrInvalid means a mapping succeeded in principle but an interior
	// pointer could not be resolved, e.g. a method list that does not lie
	// within __objc_const, or a missing __objc_data section in an image
	// that has the other ObjC2 sections. Indicates a corrupted or
	// unexpected image layout. A class_ro_t outside __objc_const does not
	// produce it: that record is copied from the target instead, whether
	// or not it is marked copied-on-heap.
	ErrInvalid = errors.New("objcscan: invalid layout")

	// ErrAccess is returned when the underlying target-memory copy
	// primitive fails, typically because the requested range isn't
	// mapped or isn't readable in the target.
	ErrAccess = errors.New("objcscan: access error")

	// ErrUnknown covers any other propagated failure from the memory-copy
	// primitive that doesn't fit the above.
	ErrUnknown = errors.New("objcscan: unknown error")
)
