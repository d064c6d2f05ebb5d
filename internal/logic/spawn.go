// Package logic ties the phase functions together into the per-block
// state-transition pipeline and hosts the phases that do not belong to
// a deeper subsystem: spawning, ongoing-operation completion, mining
// ticks and the offline state validator.
package logic

import (
	"fmt"
	"log/slog"

	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/dynobstacles"
	"github.com/talgya/outpost/internal/faction"
	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/mapdata"
	"github.com/talgya/outpost/internal/params"
	"github.com/talgya/outpost/internal/rnd"
)

// randomSpawnLocation picks a random coordinate within the L1 disk
// around centre. Points are drawn from the bounding square and
// redrawn when they fall outside the disk, which keeps the
// distribution uniform.
func randomSpawnLocation(centre hex.Coord, radius int, r *rnd.Rnd) hex.Coord {
	for {
		xOffs := r.NextInt(2*radius+1) - radius
		yOffs := r.NextInt(2*radius+1) - radius
		res := centre.Add(hex.Coord{X: xOffs, Y: yOffs})
		if hex.DistanceL1(res, centre) <= radius {
			return res
		}
	}
}

// chooseSpawnLocation finds the actual placement tile: a random point
// in the faction's spawn disk, then expanding L1 rings around it until
// a passable, unoccupied tile turns up.
func chooseSpawnLocation(f faction.Faction, r *rnd.Rnd,
	base *mapdata.BaseMap, dyn *dynobstacles.DynObstacles,
	p *params.Params) hex.Coord {
	area := p.SpawnAreaFor(f)
	ringCentre := randomSpawnLocation(area.Centre, area.Radius, r)

	for ringRad := 0; ; ringRad++ {
		foundOnMap := false
		var chosen *hex.Coord
		hex.NewRing(ringCentre, ringRad).ForEach(func(pos hex.Coord) bool {
			if !base.IsOnMap(pos) {
				return true
			}
			foundOnMap = true
			if base.IsPassable(pos) && dyn.IsFree(pos) {
				chosen = &pos
				return false
			}
			return true
		})
		if chosen != nil {
			return *chosen
		}
		// A ring fully off the map means the search can never
		// succeed; bail out instead of spinning forever.
		if !foundOnMap {
			panic(fmt.Sprintf(
				"logic: no spawn tile for faction %v around %v", f,
				ringCentre))
		}
	}
}

// SpawnCharacter creates and places one new character.
func SpawnCharacter(owner string, f faction.Faction,
	chars *db.CharactersTable, dyn *dynobstacles.DynObstacles,
	r *rnd.Rnd, base *mapdata.BaseMap, p *params.Params) uint64 {
	pos := chooseSpawnLocation(f, r, base, dyn, p)

	c := chars.CreateNew(owner, f)
	c.SetPosition(pos)
	dyn.AddVehicle(pos, f)

	db.InitCharacterStats(p, c.MutableProto())

	id := c.GetId()
	c.Release()

	slog.Debug("spawned character", "id", id, "owner", owner,
		"faction", f.String(), "pos", pos)
	return id
}
