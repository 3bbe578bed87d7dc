package objcscan

import (
	"github.com/crashlens/objcscan/pkg/target"
)

// FindMethod is the public lookup (spec §4.H, §6): it resolves targetAddr
// to the method whose implementation address is the greatest one not
// exceeding it, and invokes cb exactly once with that method's details.
//
// Returns target.ErrNotFound if no method's IMP is <= targetAddr anywhere
// in image (including images with no Objective-C metadata at all; cb is
// never invoked in that case), or propagates any other error from the
// underlying walk. A nil cache is reported as target.ErrAccess, matching
// the dispatcher's documented translation of a missing cache (spec §7).
//
// Two full enumeration passes are performed: the first finds the winning
// IMP without retaining any name strings past its own scope, the second
// re-enumerates to fire cb exactly once on the method with that IMP. This
// is deliberate, see spec §9's rationale, not an accidental
// inefficiency: by the time pass 1 knows the winning IMP, the strings
// belonging to that method have already gone out of scope.
func FindMethod(image *target.Image, cache *Cache, targetAddr uint64, cb Callback) error {
	if cache == nil {
		return target.ErrAccess
	}

	var bestIMP uint64
	err := cache.parse(image, func(isMeta bool, className, methodName string, imp uint64) {
		if imp <= targetAddr && imp > bestIMP {
			bestIMP = imp
		}
	})
	if err != nil {
		return err
	}
	if bestIMP == 0 {
		return target.ErrNotFound
	}

	fired := false
	err = cache.parse(image, func(isMeta bool, className, methodName string, imp uint64) {
		if fired || imp != bestIMP {
			return
		}
		fired = true
		cb(isMeta, className, methodName, imp)
	})
	if err != nil {
		return err
	}
	return nil
}
