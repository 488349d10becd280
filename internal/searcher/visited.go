package searcher

import "math"

// VisitedSet marks node ids with the current epoch. Reset bumps the epoch
// instead of clearing, so it costs O(1) except once every 2^32 resets.
type VisitedSet struct {
	marks []uint32
	epoch uint32
}

func NewVisitedSet(capacity int) *VisitedSet {
	return &VisitedSet{marks: make([]uint32, capacity), epoch: 1}
}

// Visit marks id and reports whether it was unmarked before.
func (v *VisitedSet) Visit(id uint32) bool {
	if int(id) >= len(v.marks) {
		v.EnsureCapacity(max(2*len(v.marks), int(id)+1))
	}
	if v.marks[id] == v.epoch {
		return false
	}
	v.marks[id] = v.epoch
	return true
}

func (v *VisitedSet) Visited(id uint32) bool {
	return int(id) < len(v.marks) && v.marks[id] == v.epoch
}

func (v *VisitedSet) Reset() {
	if v.epoch == math.MaxUint32 {
		clear(v.marks)
		v.epoch = 0
	}
	v.epoch++
}

// EnsureCapacity makes ids below capacity addressable without growing.
func (v *VisitedSet) EnsureCapacity(capacity int) {
	if capacity <= len(v.marks) {
		return
	}
	grown := make([]uint32, capacity)
	copy(grown, v.marks)
	v.marks = grown
}
