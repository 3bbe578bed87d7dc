// Package seccache is the section-map half of the per-image ParserCache
// (spec §3, §4.A): it holds the four section acquisitions an image walk
// needs and swaps them atomically, all-or-nothing, whenever the target
// image changes, so there is never a window with some sections stale and
// others fresh.
package seccache

import (
	"errors"
	"fmt"

	"github.com/crashlens/objcscan/pkg/target"
)

// Segment/section name pairs the cache acquires, in the order the original
// acquires them: the first three are optional (their absence is reported
// as NotFound, but is not itself an error), the fourth is mandatory once
// all of the first three were found.
const (
	segData = "__DATA"

	secObjCConst     = "__objc_const"
	secObjCClassList = "__objc_classlist"
	secObjCCatList   = "__objc_catlist"
	secObjCData      = "__objc_data"
)

// Sections is the all-or-nothing bundle EnsureFor acquires for one image.
// A field is nil exactly when that section doesn't exist in the image.
type Sections struct {
	ObjCConst     *target.SectionMap
	ObjCClassList *target.SectionMap
	ObjCCatList   *target.SectionMap
	ObjCData      *target.SectionMap
}

// Cache holds the currently-acquired Sections for exactly one image at a
// time (spec §3's "last_image" invariant: all four sections are either all
// valid and belong to last_image, or last_image is nil).
type Cache struct {
	lastImage target.Identity
	current   Sections
}

// New returns an empty Cache with no image acquired.
func New() *Cache {
	return &Cache{}
}

// EnsureFor acquires this image's sections if it isn't already the
// currently-held image, releasing and replacing any prior acquisition
// wholesale. The four sections are acquired strictly in order
// (objc_const, classlist, catlist, objc_data); the first failure of any
// kind, including NotFound, aborts the acquisition and is returned
// as-is, leaving no partial bundle behind. A NotFound here is the
// expected, non-error outcome for an image with no ObjC2 metadata at
// all; the dispatcher, which has already tried the ObjC1 walker, passes
// it on to FindMethod unchanged. Only once all three list/const sections
// are found does a missing __objc_data section indicate a malformed image
// rather than "no ObjC2 here"; that case is reported as ErrInvalid.
func (c *Cache) EnsureFor(image *target.Image) (Sections, error) {
	if c.lastImage == image {
		return c.current, nil
	}

	c.lastImage = nil
	c.current = Sections{}

	var s Sections

	m, err := image.MapSection(segData, secObjCConst)
	if err != nil {
		return Sections{}, err
	}
	s.ObjCConst = m

	m, err = image.MapSection(segData, secObjCClassList)
	if err != nil {
		return Sections{}, err
	}
	s.ObjCClassList = m

	m, err = image.MapSection(segData, secObjCCatList)
	if err != nil {
		return Sections{}, err
	}
	s.ObjCCatList = m

	m, err = image.MapSection(segData, secObjCData)
	if err != nil {
		if errors.Is(err, target.ErrNotFound) {
			return Sections{}, fmt.Errorf("%w: %s,%s missing while the other ObjC2 sections are present", target.ErrInvalid, segData, secObjCData)
		}
		return Sections{}, err
	}
	s.ObjCData = m

	c.lastImage = image
	c.current = s
	return s, nil
}

// Invalidate drops the currently-held sections, forcing the next
// EnsureFor to re-acquire regardless of image identity. Used by Close.
func (c *Cache) Invalidate() {
	c.lastImage = nil
	c.current = Sections{}
}
