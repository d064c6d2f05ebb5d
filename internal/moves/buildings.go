package moves

import (
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/talgya/outpost/internal/db"
)

// buildingUpdate is the parsed per-building sub-intent object.
type buildingUpdate struct {
	Send json.RawMessage `json:"send,omitempty"`
	Sf   json.RawMessage `json:"sf,omitempty"`
	Xf   json.RawMessage `json:"xf,omitempty"`
}

// processBuildingUpdates handles the "b" object: ownership transfers
// take effect immediately, config changes go through a delayed
// BuildingUpdate operation so that fees cannot be changed under moves
// already in flight.
func (p *Processor) processBuildingUpdates(name string,
	b map[string]json.RawMessage) {
	if len(b) == 0 {
		return
	}

	type update struct {
		id  uint64
		raw json.RawMessage
	}
	var updates []update
	for key, raw := range b {
		id, valid := ParseIdString(key)
		if !valid {
			continue
		}
		updates = append(updates, update{id: id, raw: raw})
	}
	sort.Slice(updates, func(i, j int) bool {
		return updates[i].id < updates[j].id
	})

	for _, u := range updates {
		var upd buildingUpdate
		if err := json.Unmarshal(u.raw, &upd); err != nil {
			continue
		}

		bld := p.t.Buildings.GetById(u.id)
		if bld == nil {
			slog.Debug("update for non-existing building", "id", u.id)
			continue
		}
		if bld.GetOwner() != name {
			slog.Debug("update for foreign building",
				"id", u.id, "name", name)
			bld.Release()
			continue
		}

		if len(upd.Sf) > 0 || len(upd.Xf) > 0 {
			p.tryScheduleConfigUpdate(bld, &upd)
		}
		if len(upd.Send) > 0 {
			p.tryTransferBuilding(bld, upd.Send)
		}
		bld.Release()
	}
}

// tryScheduleConfigUpdate creates the delayed config-change operation.
func (p *Processor) tryScheduleConfigUpdate(b *db.Building,
	upd *buildingUpdate) {
	if b.IsFoundation() || b.GetOngoingId() != 0 {
		return
	}

	newConfig := b.GetProto().Config

	if len(upd.Sf) > 0 {
		sf, valid := parseInt(upd.Sf)
		if !valid || sf < 0 || sf > 100 {
			return
		}
		newConfig.ServiceFeePercent = sf
	}
	if len(upd.Xf) > 0 {
		xf, valid := parseInt(upd.Xf)
		if !valid || xf < 0 || xf > 10000 {
			return
		}
		newConfig.DexFeeBps = xf
	}

	op := p.t.Ongoings.CreateNew(p.t.Height,
		p.t.Height+p.t.Params.BuildingUpdateDelay)
	op.MutableProto().BuildingUpdate = &db.OngoingBuildingUpdate{
		NewConfig: newConfig,
	}
	op.SetBuildingId(b.GetId())
	b.SetOngoingId(op.GetId())
	op.Release()
}

// tryTransferBuilding hands the building to another initialised
// account of the same faction.
func (p *Processor) tryTransferBuilding(b *db.Building, raw json.RawMessage) {
	var recipient string
	if err := json.Unmarshal(raw, &recipient); err != nil {
		return
	}
	if recipient == "" || recipient == b.GetOwner() {
		return
	}

	a := p.t.Accounts.GetByName(recipient)
	if a == nil {
		return
	}
	valid := a.IsInitialised() && a.GetFaction() == b.GetFaction()
	a.Release()
	if !valid {
		return
	}

	b.SetOwner(recipient)
}
