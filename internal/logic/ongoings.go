package logic

import (
	"fmt"

	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/moves"
	"github.com/talgya/outpost/internal/rnd"
)

// ProcessAllOngoings completes every operation scheduled for the
// current height, in id order. Completion removes the operation row
// and clears the carrier's back-reference.
func ProcessAllOngoings(t *moves.Tables, r *rnd.Rnd) {
	for _, id := range t.Ongoings.QueryForHeight(t.Height) {
		op := t.Ongoings.GetById(id)
		if op == nil {
			panic(fmt.Sprintf("logic: scheduled ongoing %d does not exist",
				id))
		}

		proto := op.GetProto()
		switch {
		case proto.Prospection != nil:
			completeProspection(t, op, r)
		case proto.ArmourRepair != nil:
			completeArmourRepair(t, op)
		case proto.BlueprintCopy != nil:
			completeBlueprintCopy(t, op)
		case proto.ItemConstruction != nil:
			completeItemConstruction(t, op)
		case proto.BuildingConstruction != nil:
			completeBuildingConstruction(t, op)
		case proto.BuildingUpdate != nil:
			completeBuildingUpdate(t, op)
		default:
			panic(fmt.Sprintf("logic: ongoing %d has no operation tag", id))
		}

		op.Delete()
		op.Release()
	}
}

// carrierCharacter loads the character carrying an operation and
// verifies the back-reference.
func carrierCharacter(t *moves.Tables, op *db.Ongoing) *db.Character {
	c := t.Characters.GetById(op.GetCharacterId())
	if c == nil {
		panic(fmt.Sprintf(
			"logic: ongoing %d refers to non-existing character",
			op.GetId()))
	}
	if c.GetOngoingId() != op.GetId() {
		panic(fmt.Sprintf(
			"logic: character %d does not back-reference ongoing %d",
			c.GetId(), op.GetId()))
	}
	return c
}

// carrierBuilding loads the building carrying an operation and
// verifies the back-reference.
func carrierBuilding(t *moves.Tables, op *db.Ongoing) *db.Building {
	b := t.Buildings.GetById(op.GetBuildingId())
	if b == nil {
		panic(fmt.Sprintf(
			"logic: ongoing %d refers to non-existing building",
			op.GetId()))
	}
	if b.GetOngoingId() != op.GetId() {
		panic(fmt.Sprintf(
			"logic: building %d does not back-reference ongoing %d",
			b.GetId(), op.GetId()))
	}
	return b
}

// completeProspection rolls the region's resource, records the result
// and hands out any prizes won.
func completeProspection(t *moves.Tables, op *db.Ongoing, r *rnd.Rnd) {
	c := carrierCharacter(t, op)

	regionId := op.GetProto().Prospection.RegionId
	region := t.Regions.GetById(regionId)
	if region.GetProto().ProspectingCharacter != c.GetId() {
		panic(fmt.Sprintf(
			"logic: region %d does not attribute prospection to %d",
			regionId, c.GetId()))
	}

	// The resource roll: pick the type, then the yield within its
	// configured range. Draw order is consensus-relevant.
	resource := t.Params.Resources[r.NextInt(len(t.Params.Resources))]
	yieldRange := int(resource.YieldMax - resource.YieldMin + 1)
	amount := resource.YieldMin + int64(r.NextInt(yieldRange))

	rp := region.MutableProto()
	rp.Prospection = &db.Prospection{
		Name:     c.GetOwner(),
		Height:   t.Height,
		Resource: resource.Name,
	}
	rp.ProspectingCharacter = 0
	region.SetResourceLeft(amount)
	region.Release()

	// Prize rolls happen after the resource roll, table order.
	for _, prize := range t.Params.PrizeTable {
		if t.Money.PrizesLeft(prize.Name) == 0 {
			continue
		}
		if !r.ProbabilityRoll(prize.OneInodds) {
			continue
		}
		t.Money.DecrementPrize(prize.Name)
		c.MutableProto().Inventory.AddCount(prize.Name, 1)
	}

	c.SetBusy(false)
	c.SetOngoingId(0)
	c.Release()
}

// completeArmourRepair restores the carrier's armour to maximum.
func completeArmourRepair(t *moves.Tables, op *db.Ongoing) {
	c := carrierCharacter(t, op)

	proto := c.MutableProto()
	proto.HP.Armour = proto.RegenData.MaxArmour

	c.SetBusy(false)
	c.SetOngoingId(0)
	c.Release()
}

// completeBlueprintCopy returns the original blueprint together with
// the finished copies.
func completeBlueprintCopy(t *moves.Tables, op *db.Ongoing) {
	b := carrierBuilding(t, op)
	data := op.GetProto().BlueprintCopy

	bi := t.Inventories.Get(b.GetId(), data.Account)
	inv := bi.MutableInventory()
	inv.AddCount(data.OriginalType, 1)
	inv.AddCount(data.CopyType, data.NumCopies)
	bi.Release()

	b.SetOngoingId(0)
	b.Release()
}

// completeItemConstruction delivers the produced items, returning the
// blueprint original if one was used.
func completeItemConstruction(t *moves.Tables, op *db.Ongoing) {
	b := carrierBuilding(t, op)
	data := op.GetProto().ItemConstruction

	bi := t.Inventories.Get(b.GetId(), data.Account)
	inv := bi.MutableInventory()
	inv.AddCount(data.OutputType, data.NumItems)
	if data.OriginalType != "" {
		inv.AddCount(data.OriginalType, 1)
	}
	bi.Release()

	b.SetOngoingId(0)
	b.Release()
}

// completeBuildingConstruction upgrades the foundation into the
// finished building.
func completeBuildingConstruction(t *moves.Tables, op *db.Ongoing) {
	b := carrierBuilding(t, op)
	b.SetFinished(t.Height)
	b.SetOngoingId(0)
	b.Release()
}

// completeBuildingUpdate writes the delayed config onto the building.
func completeBuildingUpdate(t *moves.Tables, op *db.Ongoing) {
	b := carrierBuilding(t, op)
	b.MutableProto().Config = op.GetProto().BuildingUpdate.NewConfig
	b.SetOngoingId(0)
	b.Release()
}
