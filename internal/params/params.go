// Package params holds the immutable per-chain parameter block. Values
// differ between mainnet, testnet and regtest; regtest additionally
// accepts YAML overrides for integration testing.
package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/outpost/internal/faction"
	"github.com/talgya/outpost/internal/hex"
)

// Amount is a coin value in minor currency units.
type Amount = int64

// Chain identifies which network the engine is running on.
type Chain int

const (
	ChainMain Chain = iota
	ChainTest
	ChainRegtest
)

// String returns the canonical chain name.
func (c Chain) String() string {
	switch c {
	case ChainMain:
		return "main"
	case ChainTest:
		return "test"
	case ChainRegtest:
		return "regtest"
	default:
		return fmt.Sprintf("chain(%d)", int(c))
	}
}

// BurnsaleStage is one step of the staged coin sale: up to Amount vCHI
// sold at Price burnt satoshi per coin.
type BurnsaleStage struct {
	AmountSold Amount `yaml:"amount_sold"`
	Price      Amount `yaml:"price"`
}

// Prize is one entry of the prospecting prize table.
type Prize struct {
	Name      string `yaml:"name"`
	Number    int    `yaml:"number"`
	OneInodds int    `yaml:"one_in_odds"`
}

// Resource describes one minable resource type and the yield range a
// freshly prospected region receives.
type Resource struct {
	Name     string `yaml:"name"`
	YieldMin int64  `yaml:"yield_min"`
	YieldMax int64  `yaml:"yield_max"`
}

// ItemData holds the static per-item configuration.
type ItemData struct {
	// Space is the cargo space one unit takes up.
	Space int64 `yaml:"space"`
	// Complexity scales service costs and durations.
	Complexity int `yaml:"complexity"`
	// IsBlueprint marks blueprint items eligible for copying.
	IsBlueprint bool `yaml:"is_blueprint"`
}

// BuildingData holds the static per-building-type configuration.
type BuildingData struct {
	// Shape is the set of tiles the building occupies, relative to its
	// centre before rotation.
	Shape []hex.Coord `yaml:"shape"`
	// ConstructionBlocks is how long the foundation-to-finished
	// construction operation takes.
	ConstructionBlocks uint64 `yaml:"construction_blocks"`
	// Materials must be present in the construction inventory before
	// the construction operation starts.
	Materials map[string]int64 `yaml:"materials"`
}

// SpawnArea defines where a faction's new characters enter the map.
type SpawnArea struct {
	Centre hex.Coord `yaml:"centre"`
	Radius int       `yaml:"radius"`
}

// Params is the immutable configuration of one chain.
type Params struct {
	Chain Chain `yaml:"-"`

	// DeveloperAddress receives the payments for character creation.
	DeveloperAddress string `yaml:"developer_address"`

	CharacterCost  Amount `yaml:"character_cost"`
	CharacterLimit int    `yaml:"character_limit"`

	SpawnAreas map[faction.Faction]SpawnArea `yaml:"spawn_areas"`

	// DamageListAge is how many blocks a damage-list entry stays live
	// without being refreshed.
	DamageListAge uint64 `yaml:"damage_list_age"`

	// BuildingUpdateDelay is how many blocks a building config update
	// takes to come into effect.
	BuildingUpdateDelay uint64 `yaml:"building_update_delay"`

	// ProspectionBlocks is the duration of a prospection operation.
	ProspectionBlocks uint64 `yaml:"prospection_blocks"`
	// ProspectionExpiryBlocks is the age after which a fully mined-out
	// region can be prospected again.
	ProspectionExpiryBlocks uint64 `yaml:"prospection_expiry_blocks"`

	// ArmourRepairHpPerBlock sets the repair speed of the armour
	// repair service.
	ArmourRepairHpPerBlock uint32 `yaml:"armour_repair_hp_per_block"`
	// ArmourRepairCostPerHp is the service base cost per hit point.
	ArmourRepairCostPerHp Amount `yaml:"armour_repair_cost_per_hp"`

	// BpCopyBlocks is the per-copy duration of blueprint copying,
	// multiplied by item complexity.
	BpCopyBlocks uint64 `yaml:"bp_copy_blocks"`
	// BpCopyCost is the per-copy base cost, multiplied by complexity.
	BpCopyCost Amount `yaml:"bp_copy_cost"`

	// ConstructionBlocks is the per-item duration of item
	// construction, multiplied by item complexity.
	ConstructionBlocks uint64 `yaml:"item_construction_blocks"`
	// ConstructionCost is the per-item base cost.
	ConstructionCost Amount `yaml:"item_construction_cost"`

	// DexFeeBps is the base DEX fee in basis points, burnt on each
	// trade in addition to the building owner's configured fee.
	DexFeeBps int64 `yaml:"dex_fee_bps"`

	// BlockedStepPatience is how many blocked movement attempts a
	// character tolerates before dropping the current waypoint.
	BlockedStepPatience uint32 `yaml:"blocked_step_patience"`

	// EnterBuildingRange is the maximum L1 distance at which a
	// pending enter-building intent resolves.
	EnterBuildingRange int `yaml:"enter_building_range"`

	// MiningRatePerBlock is how many resource units a mining
	// character extracts each block, cargo permitting.
	MiningRatePerBlock int64 `yaml:"mining_rate_per_block"`

	// Character base stats.
	CharacterSpeed       uint32 `yaml:"character_speed"`
	CharacterCargoSpace  int64  `yaml:"character_cargo_space"`
	CharacterMaxArmour   uint32 `yaml:"character_max_armour"`
	CharacterMaxShield   uint32 `yaml:"character_max_shield"`
	CharacterRegenMhp    uint32 `yaml:"character_regen_mhp"`
	CharacterAttackRange int    `yaml:"character_attack_range"`
	CharacterDamageMin   uint32 `yaml:"character_damage_min"`
	CharacterDamageMax   uint32 `yaml:"character_damage_max"`

	BurnsaleStages []BurnsaleStage `yaml:"burnsale_stages"`
	PrizeTable     []Prize         `yaml:"prize_table"`

	// Resources, in the fixed order the prospection roll draws from.
	Resources []Resource `yaml:"resources"`

	Items     map[string]ItemData     `yaml:"items"`
	Buildings map[string]BuildingData `yaml:"buildings"`

	// MapSeed drives the deterministic base-map generation.
	MapSeed int64 `yaml:"map_seed"`
	// MapRadius bounds the playable hex grid.
	MapRadius int `yaml:"map_radius"`
	// RegionSize is the edge length of the coarse region tiling.
	RegionSize int `yaml:"region_size"`
}

// SpawnAreaFor returns the spawn disk of the given faction.
func (p *Params) SpawnAreaFor(f faction.Faction) SpawnArea {
	area, ok := p.SpawnAreas[f]
	if !ok {
		panic(fmt.Sprintf("params: no spawn area for faction %v", f))
	}
	return area
}

// Item returns the configuration of an item type, or nil if unknown.
func (p *Params) Item(name string) *ItemData {
	it, ok := p.Items[name]
	if !ok {
		return nil
	}
	return &it
}

// Building returns the configuration of a building type, or nil.
func (p *Params) Building(kind string) *BuildingData {
	b, ok := p.Buildings[kind]
	if !ok {
		return nil
	}
	return &b
}

// ForChain builds the parameter block of the given chain.
func ForChain(c Chain) *Params {
	p := &Params{
		Chain: c,

		DeveloperAddress: "OUTdevpay9fxx1",

		CharacterCost:  100000000,
		CharacterLimit: 20,

		SpawnAreas: map[faction.Faction]SpawnArea{
			faction.Red:   {Centre: hex.Coord{X: -60, Y: 0}, Radius: 12},
			faction.Green: {Centre: hex.Coord{X: 30, Y: -55}, Radius: 12},
			faction.Blue:  {Centre: hex.Coord{X: 30, Y: 55}, Radius: 12},
		},

		DamageListAge:       100,
		BuildingUpdateDelay: 10,

		ProspectionBlocks:       10,
		ProspectionExpiryBlocks: 100,

		ArmourRepairHpPerBlock: 100,
		ArmourRepairCostPerHp:  10,

		BpCopyBlocks: 10,
		BpCopyCost:   1000,

		ConstructionBlocks: 10,
		ConstructionCost:   2500,

		DexFeeBps: 10,

		BlockedStepPatience: 10,
		EnterBuildingRange:  5,

		MiningRatePerBlock: 2,

		CharacterSpeed:       750,
		CharacterCargoSpace:  20,
		CharacterMaxArmour:   100,
		CharacterMaxShield:   30,
		CharacterRegenMhp:    500,
		CharacterAttackRange: 10,
		CharacterDamageMin:   1,
		CharacterDamageMax:   10,

		BurnsaleStages: []BurnsaleStage{
			{AmountSold: 10000000000, Price: 1000},
			{AmountSold: 10000000000, Price: 2000},
			{AmountSold: 10000000000, Price: 4000},
			{AmountSold: 10000000000, Price: 8000},
		},

		PrizeTable: []Prize{
			{Name: "gold", Number: 3, OneInodds: 100000},
			{Name: "silver", Number: 50, OneInodds: 4000},
			{Name: "bronze", Number: 2000, OneInodds: 100},
		},

		Resources: []Resource{
			{Name: "ore a", YieldMin: 1000, YieldMax: 10000},
			{Name: "ore b", YieldMin: 1000, YieldMax: 10000},
			{Name: "ore c", YieldMin: 500, YieldMax: 5000},
			{Name: "ore d", YieldMin: 500, YieldMax: 5000},
			{Name: "ore e", YieldMin: 100, YieldMax: 1000},
		},

		Items: map[string]ItemData{
			"ore a":        {Space: 1, Complexity: 1},
			"ore b":        {Space: 1, Complexity: 1},
			"ore c":        {Space: 1, Complexity: 1},
			"ore d":        {Space: 1, Complexity: 1},
			"ore e":        {Space: 1, Complexity: 1},
			"foo":          {Space: 1, Complexity: 1},
			"bar":          {Space: 2, Complexity: 2},
			"gold":         {Space: 0, Complexity: 1},
			"silver":       {Space: 0, Complexity: 1},
			"bronze":       {Space: 0, Complexity: 1},
			"sword":        {Space: 2, Complexity: 2},
			"sword bpo":    {Space: 0, Complexity: 2, IsBlueprint: true},
			"sword bpc":    {Space: 0, Complexity: 2, IsBlueprint: true},
			"shield unit":  {Space: 3, Complexity: 3},
			"drive module": {Space: 5, Complexity: 4},
		},

		Buildings: map[string]BuildingData{
			"hut": {
				Shape:              []hex.Coord{{X: 0, Y: 0}},
				ConstructionBlocks: 10,
				Materials:          map[string]int64{"foo": 10},
			},
			"workshop": {
				Shape: []hex.Coord{
					{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1},
				},
				ConstructionBlocks: 50,
				Materials:          map[string]int64{"foo": 20, "bar": 10},
			},
			"citadel": {
				Shape: []hex.Coord{
					{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1},
					{X: -1, Y: 0}, {X: 0, Y: -1}, {X: 1, Y: -1},
					{X: -1, Y: 1},
				},
				ConstructionBlocks: 200,
				Materials: map[string]int64{
					"foo": 100, "bar": 50, "shield unit": 10,
				},
			},
		},

		MapSeed:    2218503296,
		MapRadius:  100,
		RegionSize: 8,
	}

	switch c {
	case ChainMain:
		// Mainnet keeps the defaults above.
	case ChainTest:
		p.MapSeed = 1256821123
	case ChainRegtest:
		p.CharacterCost = 100
		p.MapSeed = 42
	}

	return p
}

// LoadOverrides applies a YAML override file on top of the parameter
// block. Only regtest accepts overrides; tampering with consensus
// parameters on a public chain would fork the node off the network.
func (p *Params) LoadOverrides(path string) error {
	if p.Chain != ChainRegtest {
		return fmt.Errorf("parameter overrides are only allowed on regtest")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read overrides: %w", err)
	}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return fmt.Errorf("parse overrides: %w", err)
	}
	return nil
}
