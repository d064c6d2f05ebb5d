// Package dynobstacles maintains the per-block view of which tiles are
// occupied by vehicles or building tiles. It is rebuilt from the entity
// tables at block start and updated in place as movement, founding and
// spawning change positions within the block.
package dynobstacles

import (
	"fmt"

	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/faction"
	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/params"
)

// DynObstacles is the in-memory obstacle view of one block.
type DynObstacles struct {
	// vehicles maps an occupied tile to the faction of the vehicle
	// standing on it.
	vehicles map[hex.Coord]faction.Faction

	// buildings holds every tile covered by a building or foundation,
	// including ones founded during the current block.
	buildings map[hex.Coord]struct{}
}

// Build constructs the obstacle view from the current table state.
func Build(chars *db.CharactersTable, bldgs *db.BuildingsTable,
	p *params.Params) *DynObstacles {
	d := &DynObstacles{
		vehicles:  make(map[hex.Coord]faction.Faction),
		buildings: make(map[hex.Coord]struct{}),
	}

	for _, row := range chars.QueryPositions() {
		d.AddVehicle(hex.Coord{X: row.X, Y: row.Y},
			faction.Faction(row.Faction))
	}

	for _, row := range bldgs.QueryPlacements() {
		data := p.Building(row.Type)
		if data == nil {
			panic(fmt.Sprintf("dynobstacles: unknown building type %q",
				row.Type))
		}
		centre := hex.Coord{X: row.X, Y: row.Y}
		for _, tile := range db.OccupiedTiles(data, centre, row.Rotation) {
			d.buildings[tile] = struct{}{}
		}
	}

	return d
}

// IsFree reports whether the tile has neither a vehicle nor a building
// tile on it.
func (d *DynObstacles) IsFree(pos hex.Coord) bool {
	if _, busy := d.vehicles[pos]; busy {
		return false
	}
	_, built := d.buildings[pos]
	return !built
}

// IsBuildingTile reports whether the tile is covered by a building.
func (d *DynObstacles) IsBuildingTile(pos hex.Coord) bool {
	_, built := d.buildings[pos]
	return built
}

// AddVehicle marks a tile as occupied by a vehicle of the faction.
func (d *DynObstacles) AddVehicle(pos hex.Coord, f faction.Faction) {
	if prev, busy := d.vehicles[pos]; busy {
		panic(fmt.Sprintf(
			"dynobstacles: tile %v already holds a faction-%v vehicle",
			pos, prev))
	}
	d.vehicles[pos] = f
}

// RemoveVehicle clears a vehicle from its tile.
func (d *DynObstacles) RemoveVehicle(pos hex.Coord, f faction.Faction) {
	prev, busy := d.vehicles[pos]
	if !busy || prev != f {
		panic(fmt.Sprintf(
			"dynobstacles: no faction-%v vehicle on tile %v to remove",
			f, pos))
	}
	delete(d.vehicles, pos)
}

// AddBuildingTiles blocks the tiles of a newly founded building for
// the rest of the block.
func (d *DynObstacles) AddBuildingTiles(tiles []hex.Coord) {
	for _, t := range tiles {
		d.buildings[t] = struct{}{}
	}
}
