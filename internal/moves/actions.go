package moves

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/movement"
)

// tryStartProspecting starts a prospection of the region the character
// stands in.
func (p *Processor) tryStartProspecting(ch *db.Character) {
	if ch.IsInBuilding() || ch.IsBusy() {
		return
	}

	regionId := p.t.Map.RegionForHex(ch.GetPosition())
	if regionId == 0 {
		panic(fmt.Sprintf("moves: character %d stands outside the map",
			ch.GetId()))
	}

	region := p.t.Regions.GetById(regionId)
	defer region.Release()
	if !CanProspectRegion(ch, region, p.t.Height, p.t.Params) {
		slog.Debug("prospecting not possible",
			"character", ch.GetId(), "region", regionId)
		return
	}

	// Starting the operation pins the character down.
	movement.StopCharacter(ch)
	if mining := ch.GetProto().Mining; mining != nil && mining.Active {
		ch.MutableProto().Mining.Active = false
	}
	ch.SetBusy(true)

	op := p.t.Ongoings.CreateNew(p.t.Height,
		p.t.Height+p.t.Params.ProspectionBlocks)
	op.MutableProto().Prospection = &db.OngoingProspection{RegionId: regionId}
	op.SetCharacterId(ch.GetId())
	ch.SetOngoingId(op.GetId())
	op.Release()

	region.MutableProto().ProspectingCharacter = ch.GetId()
}

// tryStartMining turns on resource extraction in the character's
// region.
func (p *Processor) tryStartMining(ch *db.Character) {
	if ch.IsInBuilding() || ch.IsBusy() {
		return
	}
	proto := ch.GetProto()
	if proto.Movement != nil {
		// Mining needs a standing vehicle.
		return
	}

	regionId := p.t.Map.RegionForHex(ch.GetPosition())
	region := p.t.Regions.GetById(regionId)
	defer region.Release()

	if !CanMineRegion(ch, region) {
		slog.Debug("mining not possible",
			"character", ch.GetId(), "region", regionId)
		return
	}

	ch.MutableProto().Mining.Active = true
}

// tryFoundBuilding places a new foundation centred on the character's
// tile. The builder moves into the foundation; its cargo becomes the
// initial construction material.
func (p *Processor) tryFoundBuilding(ch *db.Character, raw json.RawMessage) {
	fb, valid := parseFoundBuilding(raw, p.t.Params)
	if !valid {
		return
	}
	if ch.IsInBuilding() || ch.IsBusy() {
		return
	}

	data := p.t.Params.Building(fb.Type)
	centre := ch.GetPosition()
	tiles := db.OccupiedTiles(data, centre, fb.Rotation)
	for _, tile := range tiles {
		if !p.t.Map.IsPassable(tile) {
			return
		}
		// The builder's own vehicle does not block its build site.
		if tile != centre && !p.t.Dyn.IsFree(tile) {
			return
		}
		if p.t.Dyn.IsBuildingTile(tile) {
			return
		}
	}

	b := p.t.Buildings.CreateNew(fb.Type, ch.GetOwner(), ch.GetFaction(),
		centre, fb.Rotation)
	b.MutableProto().Age.FoundedHeight = p.t.Height

	// The new tiles block movement for the rest of this block.
	p.t.Dyn.RemoveVehicle(centre, ch.GetFaction())
	p.t.Dyn.AddBuildingTiles(tiles)

	movement.StopCharacter(ch)
	ch.SetEnterBuilding(0)
	ch.SetInBuilding(b.GetId())

	inv := &ch.MutableProto().Inventory
	if !inv.IsEmpty() {
		inv.MoveAll(&b.MutableProto().ConstructionInventory)
	}

	p.maybeStartConstruction(b)
	b.Release()

	slog.Info("founded building", "type", fb.Type, "id", b.GetId(),
		"owner", ch.GetOwner())
}

// maybeStartConstruction begins the building-construction operation
// once the foundation holds the required materials.
func (p *Processor) maybeStartConstruction(b *db.Building) {
	if !b.IsFoundation() || b.GetOngoingId() != 0 {
		return
	}

	data := p.t.Params.Building(b.GetType())
	inv := &b.GetProto().ConstructionInventory
	for item, needed := range data.Materials {
		if inv.Count(item) < needed {
			return
		}
	}

	op := p.t.Ongoings.CreateNew(p.t.Height,
		p.t.Height+data.ConstructionBlocks)
	op.MutableProto().BuildingConstruction = &db.OngoingBuildingConstruction{}
	op.SetBuildingId(b.GetId())
	b.SetOngoingId(op.GetId())
	op.Release()
}

// tryDropItems moves items out of the character's cargo: onto the
// ground when on the map, into the construction inventory of a
// foundation, or into the owner's store of a finished building.
func (p *Processor) tryDropItems(ch *db.Character, raw json.RawMessage) {
	items, valid := ParseFungible(raw)
	if !valid {
		return
	}

	inv := &ch.MutableProto().Inventory

	if ch.IsInBuilding() {
		b := p.t.Buildings.GetById(ch.GetBuildingId())
		if b == nil {
			panic("moves: character inside non-existing building")
		}
		if b.IsFoundation() {
			transferFungible(items, inv, &b.MutableProto().ConstructionInventory)
			p.maybeStartConstruction(b)
		} else {
			bi := p.t.Inventories.Get(b.GetId(), ch.GetOwner())
			transferFungible(items, inv, bi.MutableInventory())
			bi.Release()
		}
		b.Release()
		return
	}

	loot := p.t.GroundLoot.GetByPosition(ch.GetPosition())
	transferFungible(items, inv, loot.MutableInventory())
	loot.Release()
}

// tryPickupItems moves items into the character's cargo, bounded by
// the free cargo space. Picking up inside a foundation is not allowed;
// construction material stays committed.
func (p *Processor) tryPickupItems(ch *db.Character, raw json.RawMessage) {
	items, valid := ParseFungible(raw)
	if !valid {
		return
	}

	proto := ch.GetProto()
	free := proto.CargoSpace - proto.Inventory.UsedSpace(p.t.Params)

	if ch.IsInBuilding() {
		b := p.t.Buildings.GetById(ch.GetBuildingId())
		if b == nil {
			panic("moves: character inside non-existing building")
		}
		foundation := b.IsFoundation()
		b.Release()
		if foundation {
			return
		}

		bi := p.t.Inventories.Get(ch.GetBuildingId(), ch.GetOwner())
		p.pickupBounded(ch, bi.MutableInventory(), items, free)
		bi.Release()
		return
	}

	loot := p.t.GroundLoot.GetByPosition(ch.GetPosition())
	p.pickupBounded(ch, loot.MutableInventory(), items, free)
	loot.Release()
}

// pickupBounded transfers as much of the requested items as source
// holdings and cargo space allow, items in sorted order.
func (p *Processor) pickupBounded(ch *db.Character, src *db.Inventory,
	items map[string]int64, free int64) {
	names := make([]string, 0, len(items))
	for item := range items {
		names = append(names, item)
	}
	sort.Strings(names)

	dst := &ch.MutableProto().Inventory
	for _, item := range names {
		want := items[item]
		if have := src.Count(item); have < want {
			want = have
		}
		if want == 0 {
			continue
		}

		data := p.t.Params.Item(item)
		if data == nil {
			continue
		}
		if data.Space > 0 {
			maxBySpace := free / data.Space
			if want > maxBySpace {
				want = maxBySpace
			}
		}
		if want <= 0 {
			continue
		}

		src.AddCount(item, -want)
		dst.AddCount(item, want)
		free -= data.Space * want
	}
}

// transferFungible moves up to the requested counts from src to dst,
// items in sorted order.
func transferFungible(items map[string]int64, src, dst *db.Inventory) {
	names := make([]string, 0, len(items))
	for item := range items {
		names = append(names, item)
	}
	sort.Strings(names)

	for _, item := range names {
		count := items[item]
		if have := src.Count(item); have < count {
			count = have
		}
		if count == 0 {
			continue
		}
		src.AddCount(item, -count)
		dst.AddCount(item, count)
	}
}
