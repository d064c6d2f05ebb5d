package moves

import (
	"encoding/json"
	"log/slog"

	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/params"
)

// serviceRequest is one element of the "s" array.
type serviceRequest struct {
	B json.RawMessage `json:"b"`
	T string          `json:"t"`

	// rep
	C json.RawMessage `json:"c,omitempty"`

	// cp / bld
	I string          `json:"i,omitempty"`
	N json.RawMessage `json:"n,omitempty"`
}

// processServices handles the "s" array: armour repair, blueprint
// copying and item construction inside finished buildings.
func (p *Processor) processServices(name string, s []json.RawMessage) {
	for _, raw := range s {
		var req serviceRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			continue
		}

		buildingId, valid := parseInt(req.B)
		if !valid || buildingId <= 0 {
			continue
		}
		b := p.t.Buildings.GetById(uint64(buildingId))
		if b == nil {
			slog.Debug("service in non-existing building", "id", buildingId)
			continue
		}
		if b.IsFoundation() || b.GetOngoingId() != 0 {
			b.Release()
			continue
		}

		switch req.T {
		case "rep":
			p.tryArmourRepair(name, b, &req)
		case "cp":
			p.tryBlueprintCopy(name, b, &req)
		case "bld":
			p.tryItemConstruction(name, b, &req)
		default:
			slog.Debug("unknown service type", "type", req.T)
		}
		b.Release()
	}
}

// chargeService deducts the base cost plus the building's service fee.
// The base cost is burnt; the fee goes to the building owner. Owners
// pay no fee in their own buildings. Returns false without charging
// when the account cannot cover the total.
func (p *Processor) chargeService(name string, b *db.Building,
	baseCost params.Amount) bool {
	fee := baseCost * b.GetProto().Config.ServiceFeePercent / 100
	if b.GetOwner() == name {
		fee = 0
	}

	a := p.t.Accounts.GetByName(name)
	if a == nil {
		panic("moves: service for non-existing account")
	}
	if a.GetBalance() < baseCost+fee {
		a.Release()
		return false
	}
	a.AddBalance(-(baseCost + fee))
	a.Release()

	p.t.Money.AddBurnt(baseCost)

	if fee > 0 {
		owner := p.t.Accounts.GetByName(b.GetOwner())
		if owner == nil {
			panic("moves: building owner account does not exist")
		}
		owner.AddBalance(fee)
		owner.Release()
	}

	return true
}

// tryArmourRepair starts repairing a character docked in the building.
func (p *Processor) tryArmourRepair(name string, b *db.Building,
	req *serviceRequest) {
	charId, valid := parseInt(req.C)
	if !valid || charId <= 0 {
		return
	}

	ch := p.t.Characters.GetById(uint64(charId))
	if ch == nil {
		return
	}
	defer ch.Release()

	if ch.GetOwner() != name || ch.IsBusy() {
		return
	}
	if ch.GetBuildingId() != b.GetId() {
		return
	}

	proto := ch.GetProto()
	missing := int64(proto.RegenData.MaxArmour) - int64(proto.HP.Armour)
	if missing <= 0 {
		return
	}

	blocks := (uint64(missing) + uint64(p.t.Params.ArmourRepairHpPerBlock) - 1) /
		uint64(p.t.Params.ArmourRepairHpPerBlock)
	cost := missing * p.t.Params.ArmourRepairCostPerHp

	if !p.chargeService(name, b, cost) {
		return
	}

	op := p.t.Ongoings.CreateNew(p.t.Height, p.t.Height+blocks)
	op.MutableProto().ArmourRepair = &db.OngoingArmourRepair{}
	op.SetCharacterId(ch.GetId())
	ch.SetOngoingId(op.GetId())
	ch.SetBusy(true)
	op.Release()

	a := p.t.Accounts.GetByName(name)
	a.AddSkillXp("repair", missing)
	a.Release()
}

// blueprintOutput maps a blueprint item to the item it produces, or ""
// when the item is not a blueprint.
func blueprintOutput(item string, p *params.Params) string {
	data := p.Item(item)
	if data == nil || !data.IsBlueprint {
		return ""
	}
	if len(item) <= 4 {
		return ""
	}
	return item[:len(item)-4]
}

// tryBlueprintCopy starts copying a blueprint original held in the
// requesting account's store of the building.
func (p *Processor) tryBlueprintCopy(name string, b *db.Building,
	req *serviceRequest) {
	n, valid := parseInt(req.N)
	if !valid || n <= 0 {
		return
	}

	data := p.t.Params.Item(req.I)
	if data == nil || !data.IsBlueprint || blueprintOutput(req.I, p.t.Params) == "" {
		return
	}
	// Only originals can be copied.
	if len(req.I) < 4 || req.I[len(req.I)-3:] != "bpo" {
		return
	}

	bi := p.t.Inventories.Get(b.GetId(), name)
	if bi.GetInventory().Count(req.I) < 1 {
		bi.Release()
		return
	}

	cost := n * p.t.Params.BpCopyCost * int64(data.Complexity)
	if !p.chargeService(name, b, cost) {
		bi.Release()
		return
	}

	// The original is locked up in the operation until it finishes.
	bi.MutableInventory().AddCount(req.I, -1)
	bi.Release()

	blocks := uint64(n) * p.t.Params.BpCopyBlocks * uint64(data.Complexity)
	copyType := req.I[:len(req.I)-3] + "bpc"

	op := p.t.Ongoings.CreateNew(p.t.Height, p.t.Height+blocks)
	op.MutableProto().BlueprintCopy = &db.OngoingBlueprintCopy{
		Account:      name,
		OriginalType: req.I,
		CopyType:     copyType,
		NumCopies:    n,
	}
	op.SetBuildingId(b.GetId())
	b.SetOngoingId(op.GetId())
	op.Release()

	a := p.t.Accounts.GetByName(name)
	a.AddSkillXp("copying", n)
	a.Release()
}

// tryItemConstruction starts manufacturing items from a blueprint in
// the requesting account's store. Blueprint copies are consumed,
// originals come back with the produced items.
func (p *Processor) tryItemConstruction(name string, b *db.Building,
	req *serviceRequest) {
	n, valid := parseInt(req.N)
	if !valid || n <= 0 {
		return
	}

	output := blueprintOutput(req.I, p.t.Params)
	if output == "" || p.t.Params.Item(output) == nil {
		return
	}
	outputData := p.t.Params.Item(output)

	bi := p.t.Inventories.Get(b.GetId(), name)
	if bi.GetInventory().Count(req.I) < 1 {
		bi.Release()
		return
	}

	cost := n * p.t.Params.ConstructionCost * int64(outputData.Complexity)
	if !p.chargeService(name, b, cost) {
		bi.Release()
		return
	}

	bi.MutableInventory().AddCount(req.I, -1)
	bi.Release()

	original := ""
	if req.I[len(req.I)-3:] == "bpo" {
		original = req.I
	}

	blocks := uint64(n) * p.t.Params.ConstructionBlocks *
		uint64(outputData.Complexity)

	op := p.t.Ongoings.CreateNew(p.t.Height, p.t.Height+blocks)
	op.MutableProto().ItemConstruction = &db.OngoingItemConstruction{
		Account:      name,
		OutputType:   output,
		NumItems:     n,
		OriginalType: original,
	}
	op.SetBuildingId(b.GetId())
	b.SetOngoingId(op.GetId())
	op.Release()

	a := p.t.Accounts.GetByName(name)
	a.AddSkillXp("construction", n)
	a.Release()
}
