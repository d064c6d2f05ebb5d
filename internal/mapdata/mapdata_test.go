package mapdata

import (
	"testing"

	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/params"
)

func testParams(seed int64) *params.Params {
	p := params.ForChain(params.ChainRegtest)
	p.MapSeed = seed
	return p
}

func TestOpenMapWithZeroSeed(t *testing.T) {
	m := New(testParams(0))

	for _, c := range []hex.Coord{{X: 0, Y: 0}, {X: 50, Y: -50}, {X: -99, Y: 0}} {
		if !m.IsPassable(c) {
			t.Errorf("tile %v impassable on an open map", c)
		}
	}
	if m.IsPassable(hex.Coord{X: 1000, Y: 0}) {
		t.Errorf("tile outside the map reported passable")
	}
}

func TestMapBounds(t *testing.T) {
	m := New(testParams(0))

	if !m.IsOnMap(hex.Coord{X: 100, Y: 0}) {
		t.Errorf("radius tile off-map")
	}
	if m.IsOnMap(hex.Coord{X: 101, Y: 0}) {
		t.Errorf("tile beyond radius on-map")
	}
	// The cube constraint also bounds x+y.
	if m.IsOnMap(hex.Coord{X: 60, Y: 60}) {
		t.Errorf("tile with |z| > radius on-map")
	}
}

func TestSpawnDisksAreClearedOfObstacles(t *testing.T) {
	p := testParams(42)
	m := New(p)

	for _, area := range p.SpawnAreas {
		for r := 0; r <= area.Radius; r++ {
			hex.NewRing(area.Centre, r).ForEach(func(c hex.Coord) bool {
				if m.IsOnMap(c) && !m.IsPassable(c) {
					t.Errorf("obstacle inside spawn disk at %v", c)
				}
				return true
			})
		}
	}
}

func TestRegionForHex(t *testing.T) {
	m := New(testParams(0))

	if m.RegionForHex(hex.Coord{X: 1000, Y: 0}) != OutOfMap {
		t.Errorf("out-of-map coordinate got a region")
	}

	// Tiles in the same coarse cell share a region; crossing a cell
	// boundary changes it.
	a := m.RegionForHex(hex.Coord{X: 0, Y: 0})
	b := m.RegionForHex(hex.Coord{X: 7, Y: 7})
	if a == 0 || a != b {
		t.Errorf("same-cell tiles in different regions: %d vs %d", a, b)
	}

	c := m.RegionForHex(hex.Coord{X: 8, Y: 0})
	if c == a || c == 0 {
		t.Errorf("cell boundary did not change the region")
	}

	d := m.RegionForHex(hex.Coord{X: -1, Y: 0})
	if d == a || d == 0 {
		t.Errorf("negative cells collide with cell zero")
	}
}

func TestRegionStability(t *testing.T) {
	m1 := New(testParams(0))
	m2 := New(testParams(0))

	for x := -20; x <= 20; x += 5 {
		for y := -20; y <= 20; y += 5 {
			c := hex.Coord{X: x, Y: y}
			if m1.RegionForHex(c) != m2.RegionForHex(c) {
				t.Fatalf("region id for %v not stable", c)
			}
		}
	}
}
