package combat

import (
	"fmt"
	"sort"

	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/dynobstacles"
	"github.com/talgya/outpost/internal/params"
)

// KillContext bundles the tables kill processing touches.
type KillContext struct {
	Characters  *db.CharactersTable
	Buildings   *db.BuildingsTable
	Accounts    *db.AccountsTable
	Regions     *db.RegionsTable
	Ongoings    *db.OngoingsTable
	GroundLoot  *db.GroundLootTable
	Inventories *db.BuildingInventoriesTable
	DexOrders   *db.DexOrdersTable
	DamageLists *db.DamageLists
	Dyn         *dynobstacles.DynObstacles
	Params      *params.Params
}

// ProcessKills removes the fighters killed this block. Building deaths
// cascade to the characters inside them; the full set of deaths is
// expanded first, then fame, loot and row removal run over it in
// (kind, id) order.
func ProcessKills(ctx *KillContext, killed []db.TargetId) {
	deadChars := make(map[uint64]bool)
	deadBuildings := make(map[uint64]bool)

	queue := append([]db.TargetId(nil), killed...)
	for len(queue) > 0 {
		victim := queue[0]
		queue = queue[1:]

		switch victim.Kind {
		case db.KindCharacter:
			deadChars[victim.Id] = true
		case db.KindBuilding:
			if deadBuildings[victim.Id] {
				continue
			}
			deadBuildings[victim.Id] = true
			for _, id := range ctx.Characters.QueryInBuilding(victim.Id) {
				queue = append(queue,
					db.TargetId{Kind: db.KindCharacter, Id: id})
			}
		default:
			panic(fmt.Sprintf("combat: kill with invalid kind %d",
				victim.Kind))
		}
	}

	charIds := sortedIds(deadChars)
	buildingIds := sortedIds(deadBuildings)

	// Fame and kill counters first; they need the victim rows alive.
	fame := NewFameUpdater(ctx.Characters, ctx.Accounts)
	for _, id := range charIds {
		fame.UpdateForKill(id, ctx.DamageLists.GetAttackers(id))
	}

	for _, id := range charIds {
		processCharacterKill(ctx, id, deadBuildings)
	}
	for _, id := range buildingIds {
		processBuildingKill(ctx, id)
	}

	// Orders of destroyed buildings are cancelled once all cascading
	// deaths are handled; resting bids refund their reserved coins.
	for _, buildingId := range buildingIds {
		for _, row := range ctx.DexOrders.QueryForBuildingOrders(buildingId) {
			if db.DexOrderType(row.Type) == db.DexBid {
				a := ctx.Accounts.GetByName(row.Account)
				if a == nil {
					panic(fmt.Sprintf(
						"combat: order %d refers to non-existing account",
						row.Id))
				}
				a.AddBalance(params.Amount(row.Quantity) * row.Price)
				a.Release()
			}
			order := ctx.DexOrders.GetById(row.Id)
			order.Delete()
			order.Release()
		}
	}

	fame.Apply()
}

func sortedIds(set map[uint64]bool) []uint64 {
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func processCharacterKill(ctx *KillContext, id uint64,
	deadBuildings map[uint64]bool) {
	c := ctx.Characters.GetById(id)
	if c == nil {
		panic(fmt.Sprintf("combat: killed character %d does not exist", id))
	}

	// Drop the inventory: as ground loot at the last position, or into
	// the building store of the owner when dying inside one. Goods in
	// a building that is itself going down are simply lost.
	inv := &c.MutableProto().Inventory
	if !inv.IsEmpty() {
		switch {
		case !c.IsInBuilding():
			loot := ctx.GroundLoot.GetByPosition(c.GetPosition())
			inv.MoveAll(loot.MutableInventory())
			loot.Release()
		case !deadBuildings[c.GetBuildingId()]:
			bi := ctx.Inventories.Get(c.GetBuildingId(), c.GetOwner())
			inv.MoveAll(bi.MutableInventory())
			bi.Release()
		}
	}

	// A carried ongoing operation dies with its carrier. Prospection
	// additionally releases the region attribution.
	if opId := c.GetOngoingId(); opId != 0 {
		op := ctx.Ongoings.GetById(opId)
		if op == nil {
			panic(fmt.Sprintf(
				"combat: character %d refers to non-existing ongoing", id))
		}
		if prospection := op.GetProto().Prospection; prospection != nil {
			region := ctx.Regions.GetById(prospection.RegionId)
			if region.GetProto().ProspectingCharacter != id {
				panic(fmt.Sprintf(
					"combat: region %d does not attribute prospection to %d",
					prospection.RegionId, id))
			}
			region.MutableProto().ProspectingCharacter = 0
			region.Release()
		}
		op.Delete()
		op.Release()
	}

	if !c.IsInBuilding() {
		ctx.Dyn.RemoveVehicle(c.GetPosition(), c.GetFaction())
	}

	ctx.DamageLists.RemoveCharacter(id)

	c.Delete()
	c.Release()
}

func processBuildingKill(ctx *KillContext, id uint64) {
	b := ctx.Buildings.GetById(id)
	if b == nil {
		panic(fmt.Sprintf("combat: killed building %d does not exist", id))
	}

	if opId := b.GetOngoingId(); opId != 0 {
		op := ctx.Ongoings.GetById(opId)
		if op == nil {
			panic(fmt.Sprintf(
				"combat: building %d refers to non-existing ongoing", id))
		}
		op.Delete()
		op.Release()
	}

	// Stored goods go down with the building.
	ctx.Inventories.DeleteForBuilding(id)

	b.Delete()
	b.Release()
}
