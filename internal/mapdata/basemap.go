// Package mapdata provides the static base map: which tiles exist, which
// are passable, and how the map partitions into prospecting regions. The
// map is derived once at startup from the per-chain seed with layered
// simplex noise and is identical on every node running the same chain.
package mapdata

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/params"
)

// obstacleMillis is the noise threshold at or above which a tile is
// impassable rock. Noise samples are quantised to integer thousandths before the
// comparison, so the cutoff is exact.
const obstacleMillis = 780

// BaseMap is the immutable static map of one chain.
type BaseMap struct {
	radius     int
	regionSize int

	// Impassable tiles, keyed by coordinate.
	obstacles map[hex.Coord]struct{}
}

// New derives the base map of the configured chain. A zero map seed
// produces a fully open map; test worlds use it to keep placement
// independent of the noise layer.
func New(p *params.Params) *BaseMap {
	m := &BaseMap{
		radius:     p.MapRadius,
		regionSize: p.RegionSize,
		obstacles:  make(map[hex.Coord]struct{}),
	}
	if p.MapSeed == 0 {
		return m
	}

	noise := opensimplex.NewNormalized(p.MapSeed)

	for x := -m.radius; x <= m.radius; x++ {
		for y := -m.radius; y <= m.radius; y++ {
			c := hex.Coord{X: x, Y: y}
			if !m.IsOnMap(c) {
				continue
			}
			if sampleMillis(noise, c) >= obstacleMillis {
				m.obstacles[c] = struct{}{}
			}
		}
	}

	// Spawn disks must never be fully walled in; clear them.
	for _, area := range p.SpawnAreas {
		for r := 0; r <= area.Radius; r++ {
			hex.NewRing(area.Centre, r).ForEach(func(c hex.Coord) bool {
				delete(m.obstacles, c)
				return true
			})
		}
	}

	return m
}

// sampleMillis samples the noise field at a hex coordinate, quantised to
// integer thousandths.
func sampleMillis(noise opensimplex.Noise, c hex.Coord) int {
	// Hex axial to cartesian: x + y/2, y * sqrt(3)/2.
	fx := float64(c.X) + float64(c.Y)*0.5
	fy := float64(c.Y) * math.Sqrt(3.0) / 2.0
	return int(noise.Eval2(fx*0.08, fy*0.08) * 1000)
}

// IsOnMap reports whether the coordinate is within the map bounds.
func (m *BaseMap) IsOnMap(c hex.Coord) bool {
	ax, ay, az := iabs(c.X), iabs(c.Y), iabs(c.Z())
	max := ax
	if ay > max {
		max = ay
	}
	if az > max {
		max = az
	}
	return max <= m.radius
}

// IsPassable reports whether the tile is on the map and free of static
// obstacles. Buildings are dynamic state and not part of the base map.
func (m *BaseMap) IsPassable(c hex.Coord) bool {
	if !m.IsOnMap(c) {
		return false
	}
	_, blocked := m.obstacles[c]
	return !blocked
}

// Radius returns the map radius.
func (m *BaseMap) Radius() int {
	return m.radius
}

func iabs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
