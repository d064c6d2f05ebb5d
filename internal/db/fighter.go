package db

import (
	"fmt"

	"github.com/talgya/outpost/internal/faction"
	"github.com/talgya/outpost/internal/hex"
)

// Fighter is the uniform combat view over characters and buildings.
// Combat code dispatches on the wrapped kind and never cares which one
// it is dealing with.
type Fighter struct {
	char *Character
	bldg *Building
}

// WrapCharacterFighter views a character handle as a fighter.
func WrapCharacterFighter(c *Character) Fighter {
	return Fighter{char: c}
}

// WrapBuildingFighter views a building handle as a fighter.
func WrapBuildingFighter(b *Building) Fighter {
	return Fighter{bldg: b}
}

// GetId returns the fighter's target id.
func (f Fighter) GetId() TargetId {
	if f.char != nil {
		return TargetId{Kind: KindCharacter, Id: f.char.GetId()}
	}
	return TargetId{Kind: KindBuilding, Id: f.bldg.GetId()}
}

// GetFaction returns the fighter's faction.
func (f Fighter) GetFaction() faction.Faction {
	if f.char != nil {
		return f.char.GetFaction()
	}
	return f.bldg.GetFaction()
}

// GetPosition returns the fighter's tile; buildings use their centre.
func (f Fighter) GetPosition() hex.Coord {
	if f.char != nil {
		return f.char.GetPosition()
	}
	return f.bldg.GetCentre()
}

// GetCombatData returns the fighter's attacks.
func (f Fighter) GetCombatData() *CombatData {
	if f.char != nil {
		return &f.char.GetProto().Combat
	}
	return &f.bldg.GetProto().Combat
}

// GetHP returns the current hit points.
func (f Fighter) GetHP() HP {
	if f.char != nil {
		return f.char.GetProto().HP
	}
	return f.bldg.GetProto().HP
}

// MutableHP gives write access to the hit points.
func (f Fighter) MutableHP() *HP {
	if f.char != nil {
		return &f.char.MutableProto().HP
	}
	return &f.bldg.MutableProto().HP
}

// GetRegenData returns the static HP configuration.
func (f Fighter) GetRegenData() RegenData {
	if f.char != nil {
		return f.char.GetProto().RegenData
	}
	return f.bldg.GetProto().RegenData
}

// GetTarget returns the acquired target, or nil.
func (f Fighter) GetTarget() *TargetId {
	if f.char != nil {
		return f.char.GetProto().Target
	}
	return f.bldg.GetProto().Target
}

// SetTarget writes the acquired target.
func (f Fighter) SetTarget(t TargetId) {
	if f.char != nil {
		f.char.MutableProto().Target = &t
		return
	}
	f.bldg.MutableProto().Target = &t
}

// ClearTarget removes the acquired target if any.
func (f Fighter) ClearTarget() {
	if f.char != nil {
		if f.char.GetProto().Target != nil {
			f.char.MutableProto().Target = nil
		}
		return
	}
	if f.bldg.GetProto().Target != nil {
		f.bldg.MutableProto().Target = nil
	}
}

// GetEffects returns the effects active for the current block.
func (f Fighter) GetEffects() Effects {
	if f.char != nil {
		return f.char.GetProto().Effects
	}
	return f.bldg.GetProto().Effects
}

// IsInsideBuilding reports whether the fighter is a character sitting
// inside a building (and hence off the map).
func (f Fighter) IsInsideBuilding() bool {
	return f.char != nil && f.char.IsInBuilding()
}

// RotateEffects promotes the staged effects to active and clears the
// staging area. Effects not refreshed last block expire here.
func (f Fighter) RotateEffects() {
	if f.char != nil {
		p := f.char.MutableProto()
		p.Effects = p.StagedEffects
		p.StagedEffects = Effects{}
		return
	}
	p := f.bldg.MutableProto()
	p.Effects = p.StagedEffects
	p.StagedEffects = Effects{}
}

// StageEffects accumulates an effect application that becomes active
// next block.
func (f Fighter) StageEffects(a AttackEffects) {
	if f.char != nil {
		f.char.MutableProto().StagedEffects.Merge(a)
		return
	}
	f.bldg.MutableProto().StagedEffects.Merge(a)
}

// Release releases the underlying row handle.
func (f Fighter) Release() {
	if f.char != nil {
		f.char.Release()
		return
	}
	f.bldg.Release()
}

// FightersTable iterates fighters of both kinds in the canonical
// (kind, id) order.
type FightersTable struct {
	Characters *CharactersTable
	Buildings  *BuildingsTable
}

// NewFightersTable combines the two entity tables.
func NewFightersTable(chars *CharactersTable, bldgs *BuildingsTable) *FightersTable {
	return &FightersTable{Characters: chars, Buildings: bldgs}
}

// GetById returns the fighter handle for a target id. Returns a zero
// Fighter (Exists() == false) if the row is gone.
func (t *FightersTable) GetById(id TargetId) Fighter {
	switch id.Kind {
	case KindCharacter:
		if c := t.Characters.GetById(id.Id); c != nil {
			return Fighter{char: c}
		}
	case KindBuilding:
		if b := t.Buildings.GetById(id.Id); b != nil {
			return Fighter{bldg: b}
		}
	default:
		panic(fmt.Sprintf("db: invalid target kind %d", id.Kind))
	}
	return Fighter{}
}

// Exists reports whether the fighter wraps a live handle.
func (f Fighter) Exists() bool {
	return f.char != nil || f.bldg != nil
}

func combine(chars, bldgs []uint64) []TargetId {
	res := make([]TargetId, 0, len(chars)+len(bldgs))
	for _, id := range chars {
		res = append(res, TargetId{Kind: KindCharacter, Id: id})
	}
	for _, id := range bldgs {
		res = append(res, TargetId{Kind: KindBuilding, Id: id})
	}
	return res
}

// QueryWithAttacks returns all armed fighters in (kind, id) order.
func (t *FightersTable) QueryWithAttacks() []TargetId {
	return combine(t.Characters.QueryWithAttacks(),
		t.Buildings.QueryWithAttacks())
}

// QueryWithTarget returns all fighters with an acquired target in
// (kind, id) order.
func (t *FightersTable) QueryWithTarget() []TargetId {
	return combine(t.Characters.QueryWithTarget(),
		t.Buildings.QueryWithTarget())
}

// QueryForRegen returns all fighters eligible for regeneration in
// (kind, id) order.
func (t *FightersTable) QueryForRegen() []TargetId {
	return combine(t.Characters.QueryForRegen(),
		t.Buildings.QueryForRegen())
}

// QueryWithEffects returns all fighters with active or staged effects
// in (kind, id) order.
func (t *FightersTable) QueryWithEffects() []TargetId {
	return combine(t.Characters.QueryWithEffects(),
		t.Buildings.QueryWithEffects())
}

// TargetCandidate is a lightweight row used during target acquisition.
type TargetCandidate struct {
	Id      TargetId
	Faction faction.Faction
	Pos     hex.Coord
}

// QueryCandidatesInRange returns all potential targets within the L1
// range of centre, in (kind, id) order. Characters inside buildings
// are not targetable.
func (t *FightersTable) QueryCandidatesInRange(centre hex.Coord,
	l1Range int) []TargetCandidate {
	var res []TargetCandidate

	type posRow struct {
		Id      uint64 `db:"id"`
		Faction int    `db:"faction"`
		X       int    `db:"x"`
		Y       int    `db:"y"`
	}

	// The bounding box is a superset of the L1 disk; exact distance is
	// checked below.
	var chars []posRow
	t.Characters.tx.Select(&chars, `SELECT id, faction, x, y FROM characters
		WHERE inbuilding = 0 AND x BETWEEN ? AND ? AND y BETWEEN ? AND ?
		ORDER BY id`,
		centre.X-l1Range, centre.X+l1Range,
		centre.Y-l1Range, centre.Y+l1Range)
	for _, r := range chars {
		pos := hex.Coord{X: r.X, Y: r.Y}
		if hex.DistanceL1(centre, pos) > l1Range {
			continue
		}
		res = append(res, TargetCandidate{
			Id:      TargetId{Kind: KindCharacter, Id: r.Id},
			Faction: faction.Faction(r.Faction),
			Pos:     pos,
		})
	}

	var bldgs []posRow
	t.Buildings.tx.Select(&bldgs, `SELECT id, faction, x, y FROM buildings
		WHERE x BETWEEN ? AND ? AND y BETWEEN ? AND ? ORDER BY id`,
		centre.X-l1Range, centre.X+l1Range,
		centre.Y-l1Range, centre.Y+l1Range)
	for _, r := range bldgs {
		pos := hex.Coord{X: r.X, Y: r.Y}
		if hex.DistanceL1(centre, pos) > l1Range {
			continue
		}
		res = append(res, TargetCandidate{
			Id:      TargetId{Kind: KindBuilding, Id: r.Id},
			Faction: faction.Faction(r.Faction),
			Pos:     pos,
		})
	}

	return res
}
