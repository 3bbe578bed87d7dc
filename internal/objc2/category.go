package objc2

import (
	"github.com/crashlens/objcscan/internal/walkcb"
	"github.com/crashlens/objcscan/pkg/target"
)

// decodeCategory is intentionally a no-op: whether categories should
// contribute methods to the enumeration, and how to attribute them to
// their target class, is an open product question (spec §9). It exists,
// and WalkImage calls it for every catlist entry, purely so the catlist
// iteration itself runs even though no method ever gets reported for a
// category. It is not given the class-RO cache.
func decodeCategory(_ *target.Image, _ uint64, _ walkcb.Callback) error {
	return nil
}
