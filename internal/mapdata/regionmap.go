package mapdata

import (
	"github.com/talgya/outpost/internal/hex"
)

// OutOfMap is the region id returned for coordinates outside the map.
const OutOfMap uint64 = 0

// RegionForHex maps a coordinate to its prospecting region id. The map
// is tiled into cells of regionSize by regionSize axial coordinates
// (parallelograms on the hex grid); the id encodes the cell indices and is stable across restarts.
func (m *BaseMap) RegionForHex(c hex.Coord) uint64 {
	if !m.IsOnMap(c) {
		return OutOfMap
	}

	rx := floorDiv(c.X, m.regionSize)
	ry := floorDiv(c.Y, m.regionSize)

	// Shift into non-negative space. Region ids start at 1; zero is
	// reserved for out-of-map.
	span := 2*m.radius/m.regionSize + 2
	return uint64((rx+span)*2*span+(ry+span)) + 1
}

// SameRegion reports whether two coordinates share a region.
func (m *BaseMap) SameRegion(a, b hex.Coord) bool {
	return m.RegionForHex(a) == m.RegionForHex(b)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
