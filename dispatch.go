package objcscan

import (
	"github.com/crashlens/objcscan/internal/objc1"
	"github.com/crashlens/objcscan/internal/objc2"
	"github.com/crashlens/objcscan/internal/walkcb"
	"github.com/crashlens/objcscan/pkg/target"
)

// Callback is invoked once per method FindMethod's underlying walk
// discovers. See walkcb.Callback for the field meanings.
type Callback = walkcb.Callback

// parse is the component-G dispatcher: it tries the ObjC1 walker first,
// unless this cache has already determined the image uses ObjC2, and
// falls back to the ObjC2 walker when ObjC1 finds no `__module_info`
// section. Once ObjC2 succeeds, the sticky flag skips the ObjC1 attempt
// on every later call for this cache (spec §4.G); modern images have no
// ObjC1 section at all, so this avoids a wasted section lookup on every
// find_method call.
func (c *Cache) parse(image *target.Image, cb Callback) error {
	if !c.triedObjC2 {
		err := objc1.Walk(image, cb)
		if err == nil {
			return nil
		}
		if err != target.ErrNotFound {
			return err
		}
	}

	sections, err := c.sections.EnsureFor(image)
	if err != nil {
		return err
	}
	if err := objc2.WalkImage(image, sections, c.roTable, cb); err != nil {
		return err
	}
	c.triedObjC2 = true
	return nil
}
