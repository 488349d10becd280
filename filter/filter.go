// Package filter provides admission predicates for filtered search.
//
// A predicate decides which node ids may appear in a result. It never
// influences graph traversal, so a restrictive predicate can yield fewer
// than k results.
package filter

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Func reports whether id may be returned. Implementations must be safe for
// concurrent use and must not mutate shared state.
type Func func(id uint32) bool

// All admits every id.
func All(uint32) bool { return true }

// None admits nothing.
func None(uint32) bool { return false }

// Allow admits exactly the ids in bm. The bitmap must not be modified while
// the predicate is in use.
func Allow(bm *roaring.Bitmap) Func {
	if bm == nil {
		return None
	}
	return bm.Contains
}

// Deny admits every id not in bm.
func Deny(bm *roaring.Bitmap) Func {
	if bm == nil {
		return All
	}
	return func(id uint32) bool {
		return !bm.Contains(id)
	}
}

// AllowIDs is a convenience wrapper building an allow list from ids.
func AllowIDs(ids ...uint32) Func {
	return Allow(roaring.BitmapOf(ids...))
}

// Range admits ids in [lo, hi).
func Range(lo, hi uint32) Func {
	return func(id uint32) bool {
		return id >= lo && id < hi
	}
}

// And admits an id when every predicate does. A nil predicate admits all.
func And(fns ...Func) Func {
	return func(id uint32) bool {
		for _, fn := range fns {
			if fn != nil && !fn(id) {
				return false
			}
		}
		return true
	}
}

// Or admits an id when any predicate does.
func Or(fns ...Func) Func {
	return func(id uint32) bool {
		for _, fn := range fns {
			if fn == nil || fn(id) {
				return true
			}
		}
		return false
	}
}

// Not inverts fn.
func Not(fn Func) Func {
	if fn == nil {
		return None
	}
	return func(id uint32) bool {
		return !fn(id)
	}
}

// Matches applies fn, treating nil as All.
func (fn Func) Matches(id uint32) bool {
	return fn == nil || fn(id)
}
