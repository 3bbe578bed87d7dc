// Package objcscan is an async-signal-safe Objective-C metadata parser:
// given a loaded Mach-O image and an instruction-pointer address captured
// from a crashed thread, it resolves the `-[Class selector]` /
// `+[Class selector]` whose implementation contains that address.
//
// The entry points are NewCache (zero-initialize a per-image parser
// cache), (*Cache).Close (release its resources), and FindMethod (the
// lookup itself). Everything FindMethod reaches is synchronous, never
// calls malloc, never takes a lock of its own, and treats every address
// it reads from the target as untrusted. Only the class-RO table avoids
// the Go heap: copy buffers, section copies, resolved name strings and
// wrapped errors along the FindMethod path are ordinary Go heap
// allocations.
package objcscan
