package blocks

import "testing"

func testDef() MapDefinition {
	return MapDefinition{Number: 0, WidthTiles: 7168, HeightTiles: 4096, WrapWidthTiles: 5120, WrapHeightTiles: 4096}
}

func TestGridRoundTrip(t *testing.T) {
	g, err := NewGrid(testDef())
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	if g.WidthBlocks() != 896 || g.HeightBlocks() != 512 {
		t.Fatalf("unexpected block dims %dx%d", g.WidthBlocks(), g.HeightBlocks())
	}
	for _, c := range []Coord{{0, 0}, {10, 10}, {895, 511}, {3, 500}} {
		id, ok := g.ToID(c.X, c.Y)
		if !ok {
			t.Fatalf("ToID(%+v) reported absent", c)
		}
		back, ok := g.ToGrid(id)
		if !ok || back != c {
			t.Fatalf("ToGrid(%d)=%+v,%v want %+v", id, back, ok, c)
		}
	}
	id, _ := g.ToID(10, 10)
	if id != ID(10*512+10) {
		t.Fatalf("column-major id mismatch: %d", id)
	}
}

func TestGridOutOfBounds(t *testing.T) {
	g, _ := NewGrid(testDef())
	for _, c := range []Coord{{-1, 0}, {0, -1}, {896, 0}, {0, 512}} {
		if id, ok := g.ToID(c.X, c.Y); ok || id != None {
			t.Fatalf("ToID(%+v) = %d,%v want absent", c, id, ok)
		}
	}
	if _, ok := g.ToGrid(None); ok {
		t.Fatalf("ToGrid(None) should be absent")
	}
	if _, ok := g.ToGrid(ID(g.Count())); ok {
		t.Fatalf("ToGrid past end should be absent")
	}
}

func TestBlockAt(t *testing.T) {
	g, _ := NewGrid(testDef())
	id, ok := g.BlockAt(87, 81)
	want, _ := g.ToID(10, 10)
	if !ok || id != want {
		t.Fatalf("BlockAt(87,81)=%d,%v want %d", id, ok, want)
	}
	if _, ok := g.BlockAt(-1, 5); ok {
		t.Fatalf("negative tile should map to no block")
	}
}

func TestMapDefinitionValidate(t *testing.T) {
	bad := []MapDefinition{
		{WidthTiles: 4, HeightTiles: 64},
		{WidthTiles: 65, HeightTiles: 64},
		{WidthTiles: 64, HeightTiles: 64, WrapWidthTiles: 128},
	}
	for _, d := range bad {
		if err := d.Validate(); err == nil {
			t.Fatalf("expected error for %+v", d)
		}
	}
}

func TestAtlas(t *testing.T) {
	a, err := NewAtlas([]MapDefinition{
		{Number: 2, WidthTiles: 2304, HeightTiles: 1600},
		testDef(),
	})
	if err != nil {
		t.Fatalf("NewAtlas: %v", err)
	}
	defs := a.Definitions()
	if len(defs) != 2 || defs[0].Number != 0 || defs[1].Number != 2 {
		t.Fatalf("definitions not ordered: %+v", defs)
	}
	if _, ok := a.Grid(1); ok {
		t.Fatalf("map 1 should be unknown")
	}
	if _, err := NewAtlas([]MapDefinition{testDef(), testDef()}); err == nil {
		t.Fatalf("expected duplicate map error")
	}
}

func TestOffsetWrapsInsideWrapRegion(t *testing.T) {
	g, _ := NewGrid(testDef()) // wrap region is x < 640, all of y
	cases := []struct {
		center Coord
		dx, dy int
		want   Coord
		ok     bool
	}{
		{Coord{0, 10}, -1, 0, Coord{639, 10}, true},
		{Coord{0, 10}, -2, 0, Coord{638, 10}, true},
		{Coord{639, 10}, 2, 0, Coord{1, 10}, true},
		{Coord{5, 0}, 0, -1, Coord{5, 511}, true},
		{Coord{700, 10}, -1, 0, Coord{699, 10}, true},
		// East of the wrap region the map edge is hard.
		{Coord{895, 10}, 1, 0, Coord{}, false},
		{Coord{-1, 0}, 1, 0, Coord{}, false},
	}
	for _, tc := range cases {
		id, ok := g.Offset(tc.center, tc.dx, tc.dy)
		if ok != tc.ok {
			t.Fatalf("Offset(%+v,%d,%d) ok=%v want %v", tc.center, tc.dx, tc.dy, ok, tc.ok)
		}
		if !ok {
			continue
		}
		if got, _ := g.ToGrid(id); got != tc.want {
			t.Fatalf("Offset(%+v,%d,%d)=%+v want %+v", tc.center, tc.dx, tc.dy, got, tc.want)
		}
	}
}

func TestOffsetWithoutWrap(t *testing.T) {
	g, _ := NewGrid(MapDefinition{WidthTiles: 512, HeightTiles: 512})
	if _, ok := g.Offset(Coord{0, 0}, -1, 0); ok {
		t.Fatalf("non-wrapping map should have no block west of x=0")
	}
	if _, ok := g.Offset(Coord{0, 0}, 0, -1); ok {
		t.Fatalf("non-wrapping map should have no block north of y=0")
	}
	id, ok := g.Offset(Coord{3, 4}, 1, -1)
	want, _ := g.ToID(4, 3)
	if !ok || id != want {
		t.Fatalf("Offset inside map = %d,%v want %d", id, ok, want)
	}
}

func TestMapDefinitionRejectsOversizedGrid(t *testing.T) {
	// 131072/8 * 131072/8 = 2^28 blocks still fits; 2^19 tiles per side does not.
	ok := MapDefinition{WidthTiles: 131072, HeightTiles: 131072}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate(%+v): %v", ok, err)
	}
	big := MapDefinition{WidthTiles: 1 << 19, HeightTiles: 1 << 19}
	if err := big.Validate(); err == nil {
		t.Fatalf("expected block id range error for %+v", big)
	}
	if err := (MapDefinition{WidthTiles: 64, HeightTiles: 64, WrapWidthTiles: 12}).Validate(); err == nil {
		t.Fatalf("expected error for wrap width not a multiple of a block")
	}
}
