package resolve

import (
	"sort"

	"livemap.ai/internal/sim/world/feature/livemap/blocks"
	"livemap.ai/internal/sim/world/feature/livemap/fov"
)

// Delta is the change between two visible block sets.
type Delta struct {
	Added   []blocks.ID
	Removed []blocks.ID
}

func (d Delta) Empty() bool { return len(d.Added) == 0 && len(d.Removed) == 0 }

// RectDelta computes the symmetric difference of window w placed around from
// and around to. A from block of blocks.None (or one the mapper cannot place)
// adds the whole new window. Both lists come out row-major.
func RectDelta(m blocks.Mapper, from, to blocks.ID, w fov.Window) Delta {
	prev := WindowBlocks(m, from, w)
	next := WindowBlocks(m, to, w)
	return Delta{Added: minus(next, prev), Removed: minus(prev, next)}
}

func minus(a, b []blocks.ID) []blocks.ID {
	drop := make(map[blocks.ID]struct{}, len(b))
	for _, id := range b {
		drop[id] = struct{}{}
	}
	var out []blocks.ID
	for _, id := range a {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// View is the set of blocks a client currently holds.
type View struct {
	set map[blocks.ID]struct{}
}

func NewView() *View {
	return &View{set: map[blocks.ID]struct{}{}}
}

func (v *View) Apply(d Delta) {
	for _, id := range d.Removed {
		delete(v.set, id)
	}
	for _, id := range d.Added {
		v.set[id] = struct{}{}
	}
}

// Replace makes ids the visible set and returns what changed. Added keeps the
// order of ids; Removed is sorted.
func (v *View) Replace(ids []blocks.ID) Delta {
	next := make(map[blocks.ID]struct{}, len(ids))
	var d Delta
	for _, id := range ids {
		if _, dup := next[id]; dup {
			continue
		}
		next[id] = struct{}{}
		if _, ok := v.set[id]; !ok {
			d.Added = append(d.Added, id)
		}
	}
	for id := range v.set {
		if _, ok := next[id]; !ok {
			d.Removed = append(d.Removed, id)
		}
	}
	sort.Slice(d.Removed, func(i, j int) bool { return d.Removed[i] < d.Removed[j] })
	v.set = next
	return d
}

func (v *View) Contains(id blocks.ID) bool {
	_, ok := v.set[id]
	return ok
}

func (v *View) Len() int { return len(v.set) }

func (v *View) Clear() { v.set = map[blocks.ID]struct{}{} }

// IDs returns the visible blocks in ascending order.
func (v *View) IDs() []blocks.ID {
	out := make([]blocks.ID, 0, len(v.set))
	for id := range v.set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
