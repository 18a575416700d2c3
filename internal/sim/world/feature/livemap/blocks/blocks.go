package blocks

import (
	"fmt"
	"math"
	"sort"
)

// TilesPerBlock is the edge length of a map block in tiles.
const TilesPerBlock = 8

// ID identifies a block within one map's block grid.
type ID int32

// None marks a block that was never resolved.
const None ID = -1

type Coord struct {
	X int
	Y int
}

// Mapper converts between block ids and block-grid coordinates. ToID reports
// false for coordinates outside the map; ToGrid reports false for ids that do
// not belong to the map. The two must be inverse over the valid grid.
//
// Offset returns the block dx, dy away from center, following the map's
// wrap rules; false means no block is there.
type Mapper interface {
	ToGrid(id ID) (Coord, bool)
	ToID(x, y int) (ID, bool)
	Offset(center Coord, dx, dy int) (ID, bool)
}

type MapDefinition struct {
	Number          uint8 `yaml:"number" json:"number"`
	WidthTiles      int   `yaml:"width_tiles" json:"width_tiles"`
	HeightTiles     int   `yaml:"height_tiles" json:"height_tiles"`
	WrapWidthTiles  int   `yaml:"wrap_width_tiles" json:"wrap_width_tiles"`
	WrapHeightTiles int   `yaml:"wrap_height_tiles" json:"wrap_height_tiles"`
}

func (d MapDefinition) Validate() error {
	if d.WidthTiles < TilesPerBlock || d.HeightTiles < TilesPerBlock {
		return fmt.Errorf("map %d: dimensions %dx%d smaller than one block", d.Number, d.WidthTiles, d.HeightTiles)
	}
	if d.WidthTiles%TilesPerBlock != 0 || d.HeightTiles%TilesPerBlock != 0 {
		return fmt.Errorf("map %d: dimensions %dx%d not a multiple of %d", d.Number, d.WidthTiles, d.HeightTiles, TilesPerBlock)
	}
	if d.WrapWidthTiles < 0 || d.WrapWidthTiles > d.WidthTiles || d.WrapHeightTiles < 0 || d.WrapHeightTiles > d.HeightTiles {
		return fmt.Errorf("map %d: wrap %dx%d outside map bounds", d.Number, d.WrapWidthTiles, d.WrapHeightTiles)
	}
	if d.WrapWidthTiles%TilesPerBlock != 0 || d.WrapHeightTiles%TilesPerBlock != 0 {
		return fmt.Errorf("map %d: wrap %dx%d not a multiple of %d", d.Number, d.WrapWidthTiles, d.WrapHeightTiles, TilesPerBlock)
	}
	if n := int64(d.WidthTiles/TilesPerBlock) * int64(d.HeightTiles/TilesPerBlock); n > math.MaxInt32 {
		return fmt.Errorf("map %d: %d blocks exceed the block id range", d.Number, n)
	}
	return nil
}

// Grid is the column-major block grid of one map: id = x*height + y.
//
// Blocks left of WrapWidthTiles (and above WrapHeightTiles) form the wrap
// region. Offsets taken from a center inside that region wrap around its
// edges; everywhere else the map edge is hard. A wrap size of 0 disables
// wrapping on that axis.
type Grid struct {
	def    MapDefinition
	width  int
	height int
	wrapW  int
	wrapH  int
}

func NewGrid(def MapDefinition) (*Grid, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &Grid{
		def:    def,
		width:  def.WidthTiles / TilesPerBlock,
		height: def.HeightTiles / TilesPerBlock,
		wrapW:  def.WrapWidthTiles / TilesPerBlock,
		wrapH:  def.WrapHeightTiles / TilesPerBlock,
	}, nil
}

func (g *Grid) Definition() MapDefinition { return g.def }
func (g *Grid) WidthBlocks() int          { return g.width }
func (g *Grid) HeightBlocks() int         { return g.height }
func (g *Grid) Count() int                { return g.width * g.height }

func (g *Grid) ToGrid(id ID) (Coord, bool) {
	if id < 0 || int(id) >= g.Count() {
		return Coord{}, false
	}
	return Coord{X: int(id) / g.height, Y: int(id) % g.height}, true
}

func (g *Grid) ToID(x, y int) (ID, bool) {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return None, false
	}
	return ID(x*g.height + y), true
}

func (g *Grid) Offset(center Coord, dx, dy int) (ID, bool) {
	if center.X < 0 || center.X >= g.width || center.Y < 0 || center.Y >= g.height {
		return None, false
	}
	return g.ToID(wrapAxis(center.X, dx, g.wrapW), wrapAxis(center.Y, dy, g.wrapH))
}

func wrapAxis(c, d, wrap int) int {
	if wrap <= 0 || c >= wrap {
		return c + d
	}
	v := (c + d) % wrap
	if v < 0 {
		v += wrap
	}
	return v
}

// BlockAt returns the block containing the tile (tileX, tileY).
func (g *Grid) BlockAt(tileX, tileY int) (ID, bool) {
	return g.ToID(floorDiv(tileX, TilesPerBlock), floorDiv(tileY, TilesPerBlock))
}

// Atlas holds the grids of every map the server knows, keyed by map number.
type Atlas struct {
	grids map[uint8]*Grid
}

func NewAtlas(defs []MapDefinition) (*Atlas, error) {
	a := &Atlas{grids: make(map[uint8]*Grid, len(defs))}
	for _, d := range defs {
		if _, dup := a.grids[d.Number]; dup {
			return nil, fmt.Errorf("map %d defined twice", d.Number)
		}
		g, err := NewGrid(d)
		if err != nil {
			return nil, err
		}
		a.grids[d.Number] = g
	}
	return a, nil
}

func (a *Atlas) Grid(mapNum uint8) (*Grid, bool) {
	g, ok := a.grids[mapNum]
	return g, ok
}

// Definitions lists the known maps ordered by number.
func (a *Atlas) Definitions() []MapDefinition {
	out := make([]MapDefinition, 0, len(a.grids))
	for _, g := range a.grids {
		out = append(out, g.def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func floorDiv(a, b int) int {
	q := a / b
	if r := a % b; r != 0 && (r < 0) != (b < 0) {
		q--
	}
	return q
}
