package logic

import (
	"fmt"

	"github.com/talgya/outpost/internal/moves"
)

// ProcessAllMining runs the per-block extraction tick for every
// actively mining character, in id order. Extraction is bounded by the
// character's mining rate, its free cargo space, and the region's
// remaining resource; running out of either stops the operation.
func ProcessAllMining(t *moves.Tables) {
	for _, id := range t.Characters.QueryMining() {
		c := t.Characters.GetById(id)
		if c == nil {
			panic(fmt.Sprintf("logic: mining character %d does not exist",
				id))
		}

		proto := c.GetProto()
		if proto.Mining == nil || !proto.Mining.Active {
			panic(fmt.Sprintf(
				"logic: character %d indexed as mining without mining state",
				id))
		}

		regionId := t.Map.RegionForHex(c.GetPosition())
		region := t.Regions.GetById(regionId)

		prospection := region.GetProto().Prospection
		if prospection == nil {
			panic(fmt.Sprintf(
				"logic: character %d mines unprospected region %d",
				id, regionId))
		}
		resource := prospection.Resource

		amount := proto.Mining.Rate
		if left := region.GetResourceLeft(); left < amount {
			amount = left
		}

		itemData := t.Params.Item(resource)
		if itemData == nil {
			panic(fmt.Sprintf("logic: region %d yields unknown item %q",
				regionId, resource))
		}
		if itemData.Space > 0 {
			free := proto.CargoSpace - proto.Inventory.UsedSpace(t.Params)
			if maxByCargo := free / itemData.Space; amount > maxByCargo {
				amount = maxByCargo
			}
		}

		if amount <= 0 {
			// Cargo full or region exhausted; mining switches off
			// until the player restarts it.
			c.MutableProto().Mining.Active = false
			region.Release()
			c.Release()
			continue
		}

		region.SetResourceLeft(region.GetResourceLeft() - amount)
		c.MutableProto().Inventory.AddCount(resource, amount)

		region.Release()
		c.Release()
	}
}
