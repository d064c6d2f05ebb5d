package db

import (
	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/params"
)

// TargetKind orders fighters for deterministic iteration: characters
// before buildings, ids ascending within each kind.
type TargetKind int

const (
	KindCharacter TargetKind = 1
	KindBuilding  TargetKind = 2
)

// TargetId identifies a fighter of either kind.
type TargetId struct {
	Kind TargetKind `json:"kind"`
	Id   uint64     `json:"id"`
}

// Less orders target ids by (kind, id) ascending.
func (t TargetId) Less(o TargetId) bool {
	if t.Kind != o.Kind {
		return t.Kind < o.Kind
	}
	return t.Id < o.Id
}

// HP is the current hit-point state of a fighter. Shield carries a
// milli-HP fraction so sub-unit regeneration accumulates without
// floating point.
type HP struct {
	Armour    uint32 `json:"armour"`
	Shield    uint32 `json:"shield"`
	ShieldMhp uint32 `json:"shield_mhp,omitempty"`
}

// RegenData is the static HP configuration of a fighter.
type RegenData struct {
	MaxArmour      uint32 `json:"max_armour"`
	MaxShield      uint32 `json:"max_shield"`
	ShieldRegenMhp uint32 `json:"shield_regen_mhp,omitempty"`
}

// AttackEffects are the status effects an attack applies to entities it
// hits. They become active on the victim the block after the hit.
type AttackEffects struct {
	SpeedPct int32 `json:"speed_pct,omitempty"`
	RangePct int32 `json:"range_pct,omitempty"`
	Mentecon bool  `json:"mentecon,omitempty"`
}

// Attack is one weapon of a fighter. With Area set, the attack hits
// every eligible entity within the area around the attacker instead
// of a single target. Friendlies switches the eligible side.
type Attack struct {
	Range      int            `json:"range,omitempty"`
	Area       int            `json:"area,omitempty"`
	MinDamage  uint32         `json:"min_damage,omitempty"`
	MaxDamage  uint32         `json:"max_damage,omitempty"`
	Friendlies bool           `json:"friendlies,omitempty"`
	Effects    *AttackEffects `json:"effects,omitempty"`
}

// CombatData holds all attacks of a fighter.
type CombatData struct {
	Attacks []Attack `json:"attacks,omitempty"`
}

// MaxRange returns the largest range over all attacks, or zero if the
// fighter is unarmed. Both hostile and friendly attacks count.
func (cd *CombatData) MaxRange() int {
	max := 0
	for _, a := range cd.Attacks {
		if a.Range > max {
			max = a.Range
		}
	}
	return max
}

// HasFriendly reports whether any attack targets friendlies.
func (cd *CombatData) HasFriendly() bool {
	for _, a := range cd.Attacks {
		if a.Friendlies {
			return true
		}
	}
	return false
}

// Effects is the set of status effects active on a fighter for the
// current block.
type Effects struct {
	SpeedPct int32 `json:"speed_pct,omitempty"`
	RangePct int32 `json:"range_pct,omitempty"`
	Mentecon bool  `json:"mentecon,omitempty"`
}

// IsZero reports whether no effect is active.
func (e Effects) IsZero() bool {
	return e == Effects{}
}

// fxMask encodes the presence of active and staged effects into the
// indexed fx column.
func fxMask(active, staged Effects) int {
	mask := 0
	if !active.IsZero() {
		mask |= 1
	}
	if !staged.IsZero() {
		mask |= 2
	}
	return mask
}

// Merge accumulates another effect application into this set.
func (e *Effects) Merge(a AttackEffects) {
	e.SpeedPct += a.SpeedPct
	e.RangePct += a.RangePct
	e.Mentecon = e.Mentecon || a.Mentecon
}

// MovementData is the waypoint queue of a character.
type MovementData struct {
	Waypoints []hex.Coord `json:"waypoints"`
}

// MiningData is the resource-extraction capability of a character.
type MiningData struct {
	Rate   int64 `json:"rate"`
	Active bool  `json:"active,omitempty"`
}

// CharacterProto is the full payload of a character row. It is stored
// as a serialized blob; the indexed columns of the row are kept in sync
// with it on write-back.
type CharacterProto struct {
	Speed      uint32 `json:"speed"`
	CargoSpace int64  `json:"cargo_space"`

	Movement     *MovementData `json:"movement,omitempty"`
	PartialStep  uint32        `json:"partial_step,omitempty"`
	BlockedTurns uint32        `json:"blocked_turns,omitempty"`

	Combat CombatData `json:"combat,omitempty"`
	Target *TargetId  `json:"target,omitempty"`

	HP        HP        `json:"hp"`
	RegenData RegenData `json:"regen_data"`

	// Effects are active for the current block; StagedEffects were
	// applied by attacks this block and become active next block.
	Effects       Effects `json:"effects,omitempty"`
	StagedEffects Effects `json:"staged_effects,omitempty"`

	Mining *MiningData `json:"mining,omitempty"`

	Inventory Inventory `json:"inventory,omitempty"`
}

// EffectiveSpeed returns the milli-tiles-per-block speed with active
// speed effects applied, floored at a small positive minimum.
func (p *CharacterProto) EffectiveSpeed() uint32 {
	speed := int64(p.Speed)
	speed += speed * int64(p.Effects.SpeedPct) / 100
	if speed < 1 {
		speed = 1
	}
	return uint32(speed)
}

// BuildingConfig is the owner-settable configuration of a building.
type BuildingConfig struct {
	ServiceFeePercent int64 `json:"service_fee_percent"`
	DexFeeBps         int64 `json:"dex_fee_bps"`
}

// AgeData tracks the construction lifecycle of a building.
type AgeData struct {
	FoundedHeight  uint64  `json:"founded_height"`
	FinishedHeight *uint64 `json:"finished_height,omitempty"`
}

// BuildingProto is the full payload of a building row.
type BuildingProto struct {
	Config BuildingConfig `json:"config"`
	Age    AgeData        `json:"age_data"`

	// ConstructionInventory holds the materials deposited into a
	// foundation; cleared when construction finishes.
	ConstructionInventory Inventory `json:"construction_inventory,omitempty"`

	Combat CombatData `json:"combat,omitempty"`
	Target *TargetId  `json:"target,omitempty"`

	HP        HP        `json:"hp"`
	RegenData RegenData `json:"regen_data"`

	Effects       Effects `json:"effects,omitempty"`
	StagedEffects Effects `json:"staged_effects,omitempty"`
}

// Prospection is the recorded outcome of a finished prospection.
type Prospection struct {
	Name     string `json:"name"`
	Height   uint64 `json:"height"`
	Resource string `json:"resource"`
}

// RegionProto is the payload of a region row.
type RegionProto struct {
	Prospection *Prospection `json:"prospection,omitempty"`
	// ProspectingCharacter is the character currently busy
	// prospecting the region, or zero.
	ProspectingCharacter uint64 `json:"prospecting_character,omitempty"`
}

// AccountProto holds the account data beyond the indexed columns.
type AccountProto struct {
	SkillXp map[string]int64 `json:"skill_xp,omitempty"`
}

// Ongoing operation payloads. Exactly one of the pointers in
// OngoingProto is set; it is the operation's tag.

// OngoingProspection is a running region prospection.
type OngoingProspection struct {
	RegionId uint64 `json:"region_id"`
}

// OngoingArmourRepair restores a character's armour inside a building.
type OngoingArmourRepair struct{}

// OngoingBlueprintCopy produces copies of a blueprint original.
type OngoingBlueprintCopy struct {
	Account      string `json:"account"`
	OriginalType string `json:"original_type"`
	CopyType     string `json:"copy_type"`
	NumCopies    int64  `json:"num_copies"`
}

// OngoingItemConstruction manufactures items from a blueprint.
type OngoingItemConstruction struct {
	Account      string `json:"account"`
	OutputType   string `json:"output_type"`
	NumItems     int64  `json:"num_items"`
	OriginalType string `json:"original_type,omitempty"`
}

// OngoingBuildingConstruction upgrades a foundation into the finished
// building.
type OngoingBuildingConstruction struct{}

// OngoingBuildingUpdate applies a delayed config change.
type OngoingBuildingUpdate struct {
	NewConfig BuildingConfig `json:"new_config"`
}

// OngoingProto is the tagged payload of an ongoing-operation row.
type OngoingProto struct {
	StartHeight uint64 `json:"start_height"`

	Prospection          *OngoingProspection          `json:"prospection,omitempty"`
	ArmourRepair         *OngoingArmourRepair         `json:"armour_repair,omitempty"`
	BlueprintCopy        *OngoingBlueprintCopy        `json:"blueprint_copy,omitempty"`
	ItemConstruction     *OngoingItemConstruction     `json:"item_construction,omitempty"`
	BuildingConstruction *OngoingBuildingConstruction `json:"building_construction,omitempty"`
	BuildingUpdate       *OngoingBuildingUpdate       `json:"building_update,omitempty"`
}

// InitCharacterStats fills in the base stats for a freshly spawned
// character.
func InitCharacterStats(p *params.Params, proto *CharacterProto) {
	proto.Speed = p.CharacterSpeed
	proto.CargoSpace = p.CharacterCargoSpace
	proto.RegenData = RegenData{
		MaxArmour:      p.CharacterMaxArmour,
		MaxShield:      p.CharacterMaxShield,
		ShieldRegenMhp: p.CharacterRegenMhp,
	}
	proto.HP = HP{
		Armour: p.CharacterMaxArmour,
		Shield: p.CharacterMaxShield,
	}
	proto.Combat = CombatData{
		Attacks: []Attack{{
			Range:     p.CharacterAttackRange,
			MinDamage: p.CharacterDamageMin,
			MaxDamage: p.CharacterDamageMax,
		}},
	}
	proto.Mining = &MiningData{Rate: p.MiningRatePerBlock}
}
