package resolve

import (
	"livemap.ai/internal/sim/world/feature/livemap/blocks"
	"livemap.ai/internal/sim/world/feature/livemap/fov"
)

type Kind int

const (
	// NoStreaming: the client does not speak the live map protocol.
	NoStreaming Kind = iota
	// Unchanged: the player is still in its previous block.
	Unchanged
	// Crossed: the player entered a new block; Blocks must be (re-)sent.
	Crossed
)

func (k Kind) String() string {
	switch k {
	case NoStreaming:
		return "NO_STREAMING"
	case Unchanged:
		return "UNCHANGED"
	case Crossed:
		return "CROSSED"
	default:
		return "UNKNOWN"
	}
}

type Decision struct {
	Kind Kind

	// Set only for Crossed.
	From    blocks.ID
	Center  blocks.ID
	Version fov.Version
	Blocks  []blocks.ID
}

// Resolver decides block crossings against one map's block grid. It holds no
// per-player state, so one Resolver may serve any number of players as long
// as each fov.State is only touched by its owner.
type Resolver struct {
	grid blocks.Mapper
}

func New(grid blocks.Mapper) *Resolver {
	return &Resolver{grid: grid}
}

func (r *Resolver) Resolve(current blocks.ID, st *fov.State) Decision {
	if !st.Version().Streaming() {
		return Decision{Kind: NoStreaming}
	}
	prev := st.PreviousBlock()
	if prev != blocks.None && current == prev {
		return Decision{Kind: Unchanged}
	}
	st.Enter(current)
	return Decision{
		Kind:    Crossed,
		From:    prev,
		Center:  current,
		Version: st.Version(),
		Blocks:  WindowBlocks(r.grid, current, st.Window()),
	}
}

// WindowBlocks lists the blocks of window w around center in row-major order
// (y outer, x inner). Offsets the mapper reports absent are skipped, and a
// block reached twice through a wrapping edge is listed once. An unmappable
// center yields an empty list.
func WindowBlocks(m blocks.Mapper, center blocks.ID, w fov.Window) []blocks.ID {
	c, ok := m.ToGrid(center)
	if !ok {
		return []blocks.ID{}
	}
	out := make([]blocks.ID, 0, w.Width()*w.Height())
	seen := make(map[blocks.ID]struct{}, w.Width()*w.Height())
	for dy := w.MinY; dy <= w.MaxY; dy++ {
		for dx := w.MinX; dx <= w.MaxX; dx++ {
			id, ok := m.Offset(c, dx, dy)
			if !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
