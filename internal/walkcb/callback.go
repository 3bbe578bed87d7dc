// Package walkcb defines the callback signature shared by every ABI
// walker (internal/objc1, internal/objc2) and the root dispatcher (spec
// §6): a single, narrow interface every component invokes once per
// discovered method, so the best-match finder can drive either walker
// identically.
package walkcb

// Callback is invoked once per enumerated method. isMeta is true for a
// class method (defined on the metaclass), false for an instance method.
// className and methodName are fully resolved by the time the callback
// fires, spec §6 describes them as borrowed macho-strings valid only for
// the call's duration, but since nothing here crosses a signal-handler
// boundary after resolution, plain Go strings serve the same borrow
// discipline without an explicit free step.
type Callback func(isMeta bool, className, methodName string, imp uint64)
