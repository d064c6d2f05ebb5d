package moves

import (
	"encoding/json"
	"log/slog"

	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/dynobstacles"
	"github.com/talgya/outpost/internal/faction"
	"github.com/talgya/outpost/internal/mapdata"
	"github.com/talgya/outpost/internal/movement"
	"github.com/talgya/outpost/internal/params"
)

// Tables bundles everything move application touches.
type Tables struct {
	Params *params.Params
	Map    *mapdata.BaseMap

	Height    uint64
	Timestamp int64

	Accounts    *db.AccountsTable
	Characters  *db.CharactersTable
	Buildings   *db.BuildingsTable
	Regions     *db.RegionsTable
	Ongoings    *db.OngoingsTable
	GroundLoot  *db.GroundLootTable
	Inventories *db.BuildingInventoriesTable
	DexOrders   *db.DexOrdersTable
	DexHistory  *db.DexHistoryTable
	Money       *db.MoneySupply

	Dyn *dynobstacles.DynObstacles
}

// SpawnEntry is one queued character creation, placed on the map after
// all moves of the block are processed.
type SpawnEntry struct {
	Name    string
	Faction faction.Faction
}

// Processor applies a block's moves to the game state.
type Processor struct {
	t *Tables

	// spawns collects paid character creations for the spawn phase.
	spawns []SpawnEntry
}

// NewProcessor creates a move processor over the block's tables.
func NewProcessor(t *Tables) *Processor {
	return &Processor{t: t}
}

// Spawns returns the queued character creations in move order.
func (p *Processor) Spawns() []SpawnEntry {
	return p.spawns
}

// ProcessAll applies every move entry in order.
func (p *Processor) ProcessAll(entries []MoveEntry) {
	for i := range entries {
		p.ProcessOne(&entries[i])
	}
}

// ProcessOne applies a single move entry. Bad sub-intents are dropped
// without affecting their siblings.
func (p *Processor) ProcessOne(entry *MoveEntry) {
	mv, paidToDev, burnt, ok := ExtractMoveBasics(entry, p.t.Params.DeveloperAddress)
	if !ok {
		return
	}

	// The first move from a name creates its account.
	a := p.t.Accounts.GetByName(entry.Name)
	if a == nil {
		a = p.t.Accounts.CreateNew(entry.Name)
		slog.Debug("created account", "name", entry.Name)
	}

	if len(mv.Vc) > 0 {
		p.processCoinOps(a, mv.Vc, burnt)
	}

	initialised := a.IsInitialised()
	a.Release()

	p.processDexOps(entry.Name, mv.X)

	// Everything below needs an initialised account, except that the
	// very first character creation is what initialises it.
	if initialised {
		p.processCharacterUpdates(entry.Name, mv.C)
	}
	p.processCharacterCreations(entry.Name, mv.Nc, paidToDev)

	if initialised {
		p.processBuildingUpdates(entry.Name, mv.B)
		p.processServices(entry.Name, mv.S)
	}
}

// processCharacterCreations handles the "nc" array: each element
// creates one character if the developer payment covers it and the
// account has capacity.
func (p *Processor) processCharacterCreations(name string,
	nc []json.RawMessage, paidToDev params.Amount) {
	if len(nc) == 0 {
		return
	}

	a := p.t.Accounts.GetByName(name)
	defer a.Release()

	queued := 0
	for _, s := range p.spawns {
		if s.Name == name {
			queued++
		}
	}
	existing := p.t.Characters.CountForOwner(name)

	remaining := paidToDev
	for _, el := range nc {
		if remaining < p.t.Params.CharacterCost {
			slog.Debug("character creation not paid for", "name", name)
			break
		}

		var body struct {
			Faction *string `json:"faction"`
		}
		if err := json.Unmarshal(el, &body); err != nil {
			continue
		}

		f := a.GetFaction()
		if body.Faction != nil {
			parsed, valid := faction.FromString(*body.Faction)
			if !valid {
				continue
			}
			if a.IsInitialised() && parsed != f {
				continue
			}
			f = parsed
		}
		if f == faction.Invalid {
			// Neither the account nor the element pins a faction.
			continue
		}

		if existing+queued >= p.t.Params.CharacterLimit {
			slog.Debug("character limit reached", "name", name)
			continue
		}

		if !a.IsInitialised() {
			a.SetFaction(f)
		}

		remaining -= p.t.Params.CharacterCost
		queued++
		p.spawns = append(p.spawns, SpawnEntry{Name: name, Faction: f})
	}
}

// processCharacterUpdates handles the "c" object. Keys are canonical
// id strings; ids are processed in ascending order.
func (p *Processor) processCharacterUpdates(name string,
	c map[string]json.RawMessage) {
	if len(c) == 0 {
		return
	}

	for _, u := range SortedCharacterUpdates(MoveBody{C: c}) {
		ch := p.t.Characters.GetById(u.Id)
		if ch == nil {
			slog.Debug("update for non-existing character", "id", u.Id)
			continue
		}
		if ch.GetOwner() != name {
			slog.Debug("update for foreign character",
				"id", u.Id, "name", name)
			ch.Release()
			continue
		}

		p.applyCharacterUpdate(ch, &u.CharacterUpdate)
		ch.Release()
	}
}

// applyCharacterUpdate applies the sub-intents of one character update
// in their fixed order.
func (p *Processor) applyCharacterUpdate(ch *db.Character,
	upd *CharacterUpdate) {
	if len(upd.Prospect) > 0 && isEmptyObject(upd.Prospect) {
		p.tryStartProspecting(ch)
	}
	if len(upd.Mine) > 0 && isEmptyObject(upd.Mine) {
		p.tryStartMining(ch)
	}
	if len(upd.Wp) > 0 {
		p.trySetWaypoints(ch, upd.Wp)
	}
	if len(upd.Eb) > 0 {
		p.tryEnterBuilding(ch, upd.Eb)
	}
	if len(upd.Xb) > 0 && isEmptyObject(upd.Xb) {
		p.tryExitBuilding(ch)
	}
	if len(upd.Fb) > 0 {
		p.tryFoundBuilding(ch, upd.Fb)
	}
	if len(upd.Drop) > 0 {
		p.tryDropItems(ch, upd.Drop)
	}
	if len(upd.Pu) > 0 {
		p.tryPickupItems(ch, upd.Pu)
	}
	if len(upd.Send) > 0 {
		p.trySendCharacter(ch, upd.Send)
	}
}

// trySetWaypoints replaces the waypoint queue. Mining stops; moving
// and mining are mutually exclusive.
func (p *Processor) trySetWaypoints(ch *db.Character, raw json.RawMessage) {
	wp, valid := ParseWaypoints(raw)
	if !valid {
		slog.Debug("invalid waypoints", "character", ch.GetId())
		return
	}
	if !CanSetWaypoints(ch) {
		return
	}

	if mining := ch.GetProto().Mining; mining != nil && mining.Active {
		ch.MutableProto().Mining.Active = false
	}
	movement.SetWaypoints(ch, wp)
}

// tryEnterBuilding records the intent to enter a finished building.
func (p *Processor) tryEnterBuilding(ch *db.Character, raw json.RawMessage) {
	id, valid := parseInt(raw)
	if !valid || id <= 0 {
		return
	}
	if ch.IsInBuilding() {
		return
	}

	b := p.t.Buildings.GetById(uint64(id))
	if b == nil {
		return
	}
	enterable := !b.IsFoundation()
	b.Release()
	if !enterable {
		return
	}

	ch.SetEnterBuilding(uint64(id))
}

// tryExitBuilding places the character on a free tile next to its
// building. Invalid while the character is not actually inside.
func (p *Processor) tryExitBuilding(ch *db.Character) {
	if !ch.IsInBuilding() || ch.IsBusy() {
		return
	}

	b := p.t.Buildings.GetById(ch.GetBuildingId())
	if b == nil {
		panic("moves: character inside non-existing building")
	}
	if !movement.ExitBuilding(ch, b, p.t.Map, p.t.Dyn, p.t.Params) {
		slog.Debug("no free tile to exit building",
			"character", ch.GetId(), "building", b.GetId())
	}
	b.Release()
}

// trySendCharacter transfers ownership to another initialised account
// of the same faction.
func (p *Processor) trySendCharacter(ch *db.Character, raw json.RawMessage) {
	var recipient string
	if err := json.Unmarshal(raw, &recipient); err != nil {
		return
	}
	if recipient == "" || recipient == ch.GetOwner() {
		return
	}

	a := p.t.Accounts.GetByName(recipient)
	if a == nil {
		return
	}
	valid := a.IsInitialised() && a.GetFaction() == ch.GetFaction() &&
		p.t.Characters.CountForOwner(recipient) < p.t.Params.CharacterLimit
	a.Release()
	if !valid {
		return
	}

	ch.SetOwner(recipient)
}
