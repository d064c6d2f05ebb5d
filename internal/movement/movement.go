// Package movement advances characters along their waypoint queues and
// resolves enter-building intents at the end of each block's movement
// phase.
package movement

import (
	"fmt"
	"log/slog"

	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/dynobstacles"
	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/mapdata"
	"github.com/talgya/outpost/internal/params"
)

// stepCostMillis is the partial-step budget one tile of movement
// consumes at path cost one.
const stepCostMillis = 1000

// pathRangeMargin widens the BFS bound beyond the straight-line
// distance so paths can route around obstacle fields.
const pathRangeMargin = 10

// ProcessAllMovement credits each moving character's speed and steps it
// along its waypoints. Characters are processed in id order.
func ProcessAllMovement(chars *db.CharactersTable, base *mapdata.BaseMap,
	dyn *dynobstacles.DynObstacles, p *params.Params) {
	for _, id := range chars.QueryMoving() {
		c := chars.GetById(id)
		if c == nil {
			panic(fmt.Sprintf("movement: moving character %d does not exist",
				id))
		}
		if c.IsBusy() || c.IsInBuilding() {
			// Busy characters have their movement cleared when the
			// operation starts; a moving busy character is a bug.
			panic(fmt.Sprintf("movement: character %d moves while busy", id))
		}

		stepCharacter(c, base, dyn, p)
		c.Release()
	}
}

// stepCharacter moves one character as far as its speed budget allows
// this block.
func stepCharacter(c *db.Character, base *mapdata.BaseMap,
	dyn *dynobstacles.DynObstacles, p *params.Params) {
	proto := c.GetProto()
	budget := uint64(proto.PartialStep) + uint64(proto.EffectiveSpeed())

	// The distance field ignores vehicles; they move around
	// block-by-block, so only static terrain and buildings shape the
	// path. Vehicle occupancy is checked per step below.
	edges := func(from, to hex.Coord) bool {
		return base.IsPassable(to) && !dyn.IsBuildingTile(to)
	}

	var finder *hex.PathFinder
	var stepper *hex.Stepper

	for budget >= stepCostMillis {
		mv := c.GetProto().Movement
		if mv == nil || len(mv.Waypoints) == 0 {
			break
		}
		wp := mv.Waypoints[0]

		if c.GetPosition() == wp {
			popWaypoint(c)
			finder, stepper = nil, nil
			continue
		}

		if finder == nil {
			finder = hex.NewPathFinder(edges, wp)
			bound := hex.DistanceL1(c.GetPosition(), wp) + pathRangeMargin
			if finder.ComputeDistances(c.GetPosition(), bound) == hex.NoConnection {
				slog.Debug("no path towards waypoint",
					"character", c.GetId(), "waypoint", wp)
				blockedStep(c, p)
				return
			}
			stepper = finder.StepPath(c.GetPosition())
		}

		probe := *stepper
		cost := probe.Next()
		next := probe.Position()

		consumed := uint64(cost) * stepCostMillis
		if consumed > budget {
			// Not enough budget for this step; save the rest for
			// next block.
			break
		}
		if !dyn.IsFree(next) {
			blockedStep(c, p)
			return
		}

		*stepper = probe
		budget -= consumed

		dyn.RemoveVehicle(c.GetPosition(), c.GetFaction())
		c.SetPosition(next)
		dyn.AddVehicle(next, c.GetFaction())
		c.MutableProto().BlockedTurns = 0

		if next == wp {
			popWaypoint(c)
			finder, stepper = nil, nil
		}
	}

	mp := c.MutableProto()
	if mp.Movement == nil || len(mp.Movement.Waypoints) == 0 {
		// Queue emptied: movement state is cleared entirely.
		mp.Movement = nil
		mp.PartialStep = 0
		mp.BlockedTurns = 0
		return
	}
	mp.PartialStep = uint32(budget)
}

// blockedStep records a blocked movement attempt. Exhausting the
// configured patience drops the current waypoint. The remaining budget
// of a blocked block is forfeited.
func blockedStep(c *db.Character, p *params.Params) {
	mp := c.MutableProto()
	mp.PartialStep = 0
	mp.BlockedTurns++
	if mp.BlockedTurns > p.BlockedStepPatience {
		slog.Debug("dropping blocked waypoint",
			"character", c.GetId(), "waypoint", mp.Movement.Waypoints[0])
		popWaypoint(c)
		mp.BlockedTurns = 0
	}
}

// popWaypoint removes the head of the waypoint queue, clearing the
// movement state when the queue empties.
func popWaypoint(c *db.Character) {
	mp := c.MutableProto()
	mp.Movement.Waypoints = mp.Movement.Waypoints[1:]
	if len(mp.Movement.Waypoints) == 0 {
		mp.Movement = nil
	}
}

// SetWaypoints replaces the waypoint queue of a character. The partial
// step and blocked counters reset; a new order starts from scratch. An
// empty list clears movement.
func SetWaypoints(c *db.Character, wp []hex.Coord) {
	mp := c.MutableProto()
	mp.PartialStep = 0
	mp.BlockedTurns = 0
	if len(wp) == 0 {
		mp.Movement = nil
		return
	}
	mp.Movement = &db.MovementData{Waypoints: wp}
}

// StopCharacter clears all movement state, e.g. when an operation
// makes the character busy.
func StopCharacter(c *db.Character) {
	mp := c.MutableProto()
	mp.Movement = nil
	mp.PartialStep = 0
	mp.BlockedTurns = 0
}

// ResolveBuildingEntries teleports characters with a pending
// enter-building intent that ended the movement phase within range of
// their target building.
func ResolveBuildingEntries(chars *db.CharactersTable,
	buildings *db.BuildingsTable, dyn *dynobstacles.DynObstacles,
	p *params.Params) {
	for _, id := range chars.QueryWithEnterBuilding() {
		c := chars.GetById(id)
		if c == nil {
			panic(fmt.Sprintf("movement: entering character %d does not exist",
				id))
		}
		if c.IsInBuilding() {
			// Stale intent; entering from inside makes no sense.
			c.SetEnterBuilding(0)
			c.Release()
			continue
		}

		b := buildings.GetById(c.GetEnterBuilding())
		if b == nil {
			// The building is gone; the intent dies with it.
			c.SetEnterBuilding(0)
			c.Release()
			continue
		}

		if hex.DistanceL1(c.GetPosition(), b.GetCentre()) <= p.EnterBuildingRange {
			dyn.RemoveVehicle(c.GetPosition(), c.GetFaction())
			StopCharacter(c)
			c.SetInBuilding(b.GetId())
			c.SetEnterBuilding(0)
		}

		b.Release()
		c.Release()
	}
}

// ExitBuilding places a character onto a free tile adjacent to its
// building, searching outward in expanding rings from the centre.
// Returns false if no tile within the building range is free.
func ExitBuilding(c *db.Character, b *db.Building, base *mapdata.BaseMap,
	dyn *dynobstacles.DynObstacles, p *params.Params) bool {
	for radius := 1; radius <= p.EnterBuildingRange; radius++ {
		var found *hex.Coord
		hex.NewRing(b.GetCentre(), radius).ForEach(func(pos hex.Coord) bool {
			if base.IsPassable(pos) && dyn.IsFree(pos) {
				found = &pos
				return false
			}
			return true
		})
		if found != nil {
			c.SetPosition(*found)
			c.SetEnterBuilding(0)
			dyn.AddVehicle(*found, c.GetFaction())
			return true
		}
	}
	return false
}
