package logic

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/talgya/outpost/internal/combat"
	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/dynobstacles"
	"github.com/talgya/outpost/internal/mapdata"
	"github.com/talgya/outpost/internal/movement"
	"github.com/talgya/outpost/internal/moves"
	"github.com/talgya/outpost/internal/params"
	"github.com/talgya/outpost/internal/rnd"
	"github.com/talgya/outpost/internal/storage"
)

// BlockMeta identifies the block being processed.
type BlockMeta struct {
	Height    uint64 `json:"height"`
	Timestamp int64  `json:"timestamp"`
	Hash      string `json:"hash"`
}

// BlockData is the full per-block input handed to the engine.
type BlockData struct {
	Block BlockMeta         `json:"block"`
	Moves []moves.MoveEntry `json:"moves"`
	Admin []json.RawMessage `json:"admin,omitempty"`
}

// Game wires the static collaborators of one chain together and
// processes blocks against the storage.
type Game struct {
	Params *params.Params
	Map    *mapdata.BaseMap
	DB     *storage.DB
}

// NewGame sets up the engine for one chain.
func NewGame(p *params.Params, store *storage.DB) *Game {
	return &Game{
		Params: p,
		Map:    mapdata.New(p),
		DB:     store,
	}
}

// NewTables binds all entity tables to a block transaction. Exposed
// for the validator, state export and tests.
func (g *Game) NewTables(tx *storage.Tx, height uint64,
	timestamp int64) *moves.Tables {
	return &moves.Tables{
		Params:      g.Params,
		Map:         g.Map,
		Height:      height,
		Timestamp:   timestamp,
		Accounts:    db.NewAccountsTable(tx),
		Characters:  db.NewCharactersTable(tx, g.Map.RegionForHex),
		Buildings:   db.NewBuildingsTable(tx),
		Regions:     db.NewRegionsTable(tx, height),
		Ongoings:    db.NewOngoingsTable(tx),
		GroundLoot:  db.NewGroundLootTable(tx),
		Inventories: db.NewBuildingInventoriesTable(tx),
		DexOrders:   db.NewDexOrdersTable(tx),
		DexHistory:  db.NewDexHistoryTable(tx),
		Money:       db.NewMoneySupply(tx, g.Params),
	}
}

// ProcessBlock applies one block inside a fresh transaction. Either
// the whole block commits or nothing does; consistency violations
// surface as an error after rolling back.
func (g *Game) ProcessBlock(blk *BlockData) (err error) {
	tx, err := g.DB.BeginBlock()
	if err != nil {
		return fmt.Errorf("begin block %d: %w", blk.Block.Height, err)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			err = fmt.Errorf("block %d failed: %v", blk.Block.Height, r)
		}
	}()

	g.updateState(tx, blk)

	tx.SetMeta("height", strconv.FormatUint(blk.Block.Height, 10))
	tx.SetMeta("blockhash", blk.Block.Hash)

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit block %d: %w", blk.Block.Height, err)
	}

	slog.Info("processed block", "height", blk.Block.Height,
		"moves", len(blk.Moves))
	return nil
}

// updateState runs the fixed phase sequence of one block.
func (g *Game) updateState(tx *storage.Tx, blk *BlockData) {
	height := blk.Block.Height

	// (1) Block metadata seeds the random stream.
	r, err := rnd.NewFromBlockHash(blk.Block.Hash)
	if err != nil {
		panic(fmt.Sprintf("logic: %v", err))
	}

	t := g.NewTables(tx, height, blk.Block.Timestamp)
	fighters := db.NewFightersTable(t.Characters, t.Buildings)
	damageLists := db.NewDamageLists(tx, height)

	// Effects staged by last block's hits become active now, before
	// any phase reads speed, range or mentecon.
	combat.PromoteEffects(fighters)

	// (2) The dynamic obstacle view of this block.
	t.Dyn = dynobstacles.Build(t.Characters, t.Buildings, g.Params)

	// (3) Damage lists age out.
	damageLists.RemoveOld(g.Params.DamageListAge)

	// (4) Scheduled operations complete, so that a finished prospect
	// can be followed by mining in this very block.
	ProcessAllOngoings(t, r)

	// (5) The block's moves.
	processor := moves.NewProcessor(t)
	processor.ProcessAll(blk.Moves)
	g.processAdmin(blk.Admin)

	// (6) + (7) Targeting, then damage, so mutually lethal fighters
	// take each other down in the same block.
	combat.AcquireTargets(fighters, r)
	killed := combat.DealDamage(fighters, damageLists, r)
	combat.ProcessKills(&combat.KillContext{
		Characters:  t.Characters,
		Buildings:   t.Buildings,
		Accounts:    t.Accounts,
		Regions:     t.Regions,
		Ongoings:    t.Ongoings,
		GroundLoot:  t.GroundLoot,
		Inventories: t.Inventories,
		DexOrders:   t.DexOrders,
		DamageLists: damageLists,
		Dyn:         t.Dyn,
		Params:      g.Params,
	}, killed)

	// (8) Movement stepping, after waypoint updates so fresh orders
	// take effect immediately.
	movement.ProcessAllMovement(t.Characters, g.Map, t.Dyn, g.Params)

	// (9) Building entries resolve once all steps are done.
	movement.ResolveBuildingEntries(t.Characters, t.Buildings, t.Dyn,
		g.Params)

	// (10) Newly created characters enter the map.
	for _, spawn := range processor.Spawns() {
		SpawnCharacter(spawn.Name, spawn.Faction, t.Characters, t.Dyn, r,
			g.Map, g.Params)
	}

	// (11) Shield regeneration; the dead no longer qualify.
	combat.Regenerate(fighters)

	// (12) Mining ticks.
	ProcessAllMining(t)

	// (13) Finalize. Handles write back on release throughout, and
	// empty inventories delete their rows themselves; the money
	// bookkeeping row is the only one left open.
	t.Money.Release()
}

// processAdmin is the extension hook for god-mode commands. They are
// processed after user moves; outside regtest they are ignored.
func (g *Game) processAdmin(admin []json.RawMessage) {
	if len(admin) == 0 {
		return
	}
	if g.Params.Chain != params.ChainRegtest {
		slog.Warn("ignoring admin commands", "chain", g.Params.Chain.String())
		return
	}
	slog.Info("ignoring admin commands on regtest; no handler registered",
		"count", len(admin))
}
