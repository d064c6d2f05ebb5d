package logic

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/faction"
	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/moves"
	"github.com/talgya/outpost/internal/params"
	"github.com/talgya/outpost/internal/statejson"
	"github.com/talgya/outpost/internal/storage"
)

// newTestGame builds an engine over an in-memory database and a fully
// open map, so placement does not depend on the noise layer.
func newTestGame(t *testing.T) *Game {
	t.Helper()

	p := params.ForChain(params.ChainRegtest)
	p.MapSeed = 0

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return NewGame(p, store)
}

// setup mutates the state directly, outside block processing, the way
// test fixtures do.
func setup(t *testing.T, g *Game, fn func(tbl *moves.Tables)) {
	t.Helper()

	tx, err := g.DB.BeginBlock()
	if err != nil {
		t.Fatalf("begin setup tx: %v", err)
	}
	tbl := g.NewTables(tx, 0, 0)
	fn(tbl)
	tbl.Money.Release()
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit setup tx: %v", err)
	}
}

// inspect opens a read-only view of the state.
func inspect(t *testing.T, g *Game, fn func(tbl *moves.Tables)) {
	t.Helper()

	tx, err := g.DB.BeginBlock()
	if err != nil {
		t.Fatalf("begin inspect tx: %v", err)
	}
	defer tx.Rollback()
	tbl := g.NewTables(tx, 0, 0)
	defer tbl.Money.Release()
	fn(tbl)
}

// ensureAccount creates and initialises an account if needed.
func ensureAccount(tbl *moves.Tables, name string, f faction.Faction) {
	a := tbl.Accounts.GetByName(name)
	if a == nil {
		a = tbl.Accounts.CreateNew(name)
	}
	if !a.IsInitialised() {
		a.SetFaction(f)
	}
	a.Release()
}

// createCharacter inserts a character with base stats at a position.
func createCharacter(tbl *moves.Tables, owner string, f faction.Faction,
	pos hex.Coord) uint64 {
	ensureAccount(tbl, owner, f)
	c := tbl.Characters.CreateNew(owner, f)
	c.SetPosition(pos)
	db.InitCharacterStats(tbl.Params, c.MutableProto())
	id := c.GetId()
	c.Release()
	return id
}

// createBuilding inserts a finished building.
func createBuilding(tbl *moves.Tables, kind, owner string,
	f faction.Faction, centre hex.Coord) uint64 {
	if owner != "" {
		ensureAccount(tbl, owner, f)
	}
	b := tbl.Buildings.CreateNew(kind, owner, f, centre, 0)
	b.SetFinished(0)
	id := b.GetId()
	b.Release()
	return id
}

// processBlock feeds one block with the given move entries.
func processBlock(t *testing.T, g *Game, height uint64, moveJSON ...string) {
	t.Helper()

	var entries []moves.MoveEntry
	for _, raw := range moveJSON {
		var entry moves.MoveEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			t.Fatalf("bad test move %s: %v", raw, err)
		}
		entries = append(entries, entry)
	}

	blk := &BlockData{
		Block: BlockMeta{
			Height:    height,
			Timestamp: int64(height) * 100,
			Hash:      fmt.Sprintf("%064x", height+1),
		},
		Moves: entries,
	}
	if err := g.ProcessBlock(blk); err != nil {
		t.Fatalf("process block %d: %v", height, err)
	}
}

func TestMutuallyLethalFightersBothDie(t *testing.T) {
	g := newTestGame(t)

	var idA, idB uint64
	setup(t, g, func(tbl *moves.Tables) {
		idA = createCharacter(tbl, "domob", faction.Red, hex.Coord{X: 0, Y: 0})
		idB = createCharacter(tbl, "andy", faction.Green, hex.Coord{X: 1, Y: 0})

		for _, id := range []uint64{idA, idB} {
			c := tbl.Characters.GetById(id)
			proto := c.MutableProto()
			proto.HP = db.HP{Armour: 0, Shield: 1}
			proto.Combat.Attacks = []db.Attack{
				{Range: 1, MinDamage: 1, MaxDamage: 1},
			}
			c.Release()
		}
	})

	processBlock(t, g, 1)

	inspect(t, g, func(tbl *moves.Tables) {
		if c := tbl.Characters.GetById(idA); c != nil {
			c.Release()
			t.Errorf("character %d survived", idA)
		}
		if c := tbl.Characters.GetById(idB); c != nil {
			c.Release()
			t.Errorf("character %d survived", idB)
		}

		for _, name := range []string{"domob", "andy"} {
			a := tbl.Accounts.GetByName(name)
			if a.GetKills() != 1 {
				t.Errorf("kills of %q = %d, want 1", name, a.GetKills())
			}
			a.Release()
		}

		// Empty inventories drop no ground loot.
		if positions := tbl.GroundLoot.QueryAllPositions(); len(positions) != 0 {
			t.Errorf("unexpected ground loot at %v", positions)
		}
	})
}

func TestWaypointReplacementBeforeStepping(t *testing.T) {
	g := newTestGame(t)

	var id uint64
	setup(t, g, func(tbl *moves.Tables) {
		id = createCharacter(tbl, "domob", faction.Red, hex.Coord{X: 0, Y: 0})
		c := tbl.Characters.GetById(id)
		proto := c.MutableProto()
		proto.Combat.Attacks = nil
		proto.Speed = 750
		proto.PartialStep = 1000
		proto.Movement = &db.MovementData{
			Waypoints: []hex.Coord{{X: 5, Y: 0}},
		}
		c.Release()
	})

	processBlock(t, g, 1, fmt.Sprintf(
		`{"name": "domob", "move": {"c": {"%d": {"wp": [{"x": -1, "y": 0}]}}}}`,
		id))

	inspect(t, g, func(tbl *moves.Tables) {
		c := tbl.Characters.GetById(id)
		if c.GetPosition() != (hex.Coord{X: 0, Y: 0}) {
			t.Errorf("position after replacement block = %v", c.GetPosition())
		}
		c.Release()
	})

	processBlock(t, g, 2)

	inspect(t, g, func(tbl *moves.Tables) {
		c := tbl.Characters.GetById(id)
		if c.GetPosition() != (hex.Coord{X: -1, Y: 0}) {
			t.Errorf("position after second block = %v", c.GetPosition())
		}
		if c.GetProto().Movement != nil {
			t.Errorf("movement not cleared after reaching waypoint")
		}
		c.Release()
	})
}

func TestFoundationBlocksMovementSameBlock(t *testing.T) {
	g := newTestGame(t)

	var builder, mover uint64
	setup(t, g, func(tbl *moves.Tables) {
		builder = createCharacter(tbl, "domob", faction.Red, hex.Coord{X: 0, Y: 0})
		mover = createCharacter(tbl, "domob", faction.Red, hex.Coord{X: 1, Y: 0})

		b := tbl.Characters.GetById(builder)
		proto := b.MutableProto()
		proto.Combat.Attacks = nil
		proto.Inventory.AddCount("foo", 10)
		b.Release()

		m := tbl.Characters.GetById(mover)
		proto = m.MutableProto()
		proto.Combat.Attacks = nil
		proto.Speed = 1000
		m.Release()
	})

	// The mover's waypoint order comes first in the block, the
	// foundation second; the foundation still blocks the step since
	// movement happens after all moves.
	processBlock(t, g, 1,
		fmt.Sprintf(
			`{"name": "domob", "move": {"c": {"%d": {"wp": [{"x": 0, "y": 0}]}}}}`,
			mover),
		fmt.Sprintf(
			`{"name": "domob", "move": {"c": {"%d": {"fb": {"t": "hut", "rot": 0}}}}}`,
			builder))

	inspect(t, g, func(tbl *moves.Tables) {
		m := tbl.Characters.GetById(mover)
		if m.GetPosition() != (hex.Coord{X: 1, Y: 0}) {
			t.Errorf("mover stepped onto the foundation: %v", m.GetPosition())
		}
		m.Release()

		b := tbl.Characters.GetById(builder)
		if !b.IsInBuilding() {
			t.Fatalf("builder did not enter the foundation")
		}
		bld := tbl.Buildings.GetById(b.GetBuildingId())
		if bld == nil {
			t.Fatalf("foundation does not exist")
		}
		if !bld.IsFoundation() {
			t.Errorf("fresh foundation already finished")
		}
		// The cargo covered the materials, so construction started.
		if bld.GetOngoingId() == 0 {
			t.Errorf("construction did not start despite materials")
		}
		bld.Release()
		b.Release()
	})
}

func TestProspectWinsOverWaypoints(t *testing.T) {
	g := newTestGame(t)

	// (7, 0) and (8, 0) are in different regions with region size 8.
	start := hex.Coord{X: 7, Y: 0}
	var id uint64
	setup(t, g, func(tbl *moves.Tables) {
		if tbl.Map.SameRegion(start, hex.Coord{X: 8, Y: 0}) {
			t.Fatalf("test positions share a region")
		}
		id = createCharacter(tbl, "domob", faction.Red, start)
		c := tbl.Characters.GetById(id)
		c.MutableProto().Combat.Attacks = nil
		c.Release()
	})

	processBlock(t, g, 1, fmt.Sprintf(
		`{"name": "domob", "move": {"c": {"%d": {
			"wp": [{"x": 8, "y": 0}], "prospect": {}}}}}`, id))

	inspect(t, g, func(tbl *moves.Tables) {
		c := tbl.Characters.GetById(id)
		if !c.IsBusy() {
			t.Fatalf("character is not prospecting")
		}
		if c.GetProto().Movement != nil {
			t.Errorf("movement survived prospecting")
		}

		op := tbl.Ongoings.GetById(c.GetOngoingId())
		if op == nil {
			t.Fatalf("no ongoing operation")
		}
		prospection := op.GetProto().Prospection
		if prospection == nil {
			t.Fatalf("ongoing is not a prospection")
		}
		if want := tbl.Map.RegionForHex(start); prospection.RegionId != want {
			t.Errorf("prospecting region %d, want %d (the original one)",
				prospection.RegionId, want)
		}
		op.Release()
		c.Release()
	})
}

func TestProspectThenMineFlow(t *testing.T) {
	g := newTestGame(t)

	pos := hex.Coord{X: 3, Y: 3}
	var id uint64
	setup(t, g, func(tbl *moves.Tables) {
		id = createCharacter(tbl, "domob", faction.Red, pos)
		c := tbl.Characters.GetById(id)
		c.MutableProto().Combat.Attacks = nil
		c.Release()
	})

	processBlock(t, g, 1, fmt.Sprintf(
		`{"name": "domob", "move": {"c": {"%d": {"prospect": {}}}}}`, id))

	// Prospection takes 10 blocks: started at 1, finishes at 11.
	for h := uint64(2); h <= 10; h++ {
		processBlock(t, g, h)
	}

	inspect(t, g, func(tbl *moves.Tables) {
		c := tbl.Characters.GetById(id)
		if !c.IsBusy() {
			t.Fatalf("prospection finished early")
		}
		c.Release()
	})

	processBlock(t, g, 11)

	var regionId uint64
	inspect(t, g, func(tbl *moves.Tables) {
		c := tbl.Characters.GetById(id)
		if c.IsBusy() {
			t.Fatalf("prospection did not finish at its end height")
		}
		c.Release()

		regionId = tbl.Map.RegionForHex(pos)
		r := tbl.Regions.GetById(regionId)
		prospection := r.GetProto().Prospection
		if prospection == nil {
			t.Fatalf("region has no prospection result")
		}
		if prospection.Name != "domob" || prospection.Height != 11 {
			t.Errorf("prospection = %+v", prospection)
		}
		if r.GetResourceLeft() <= 0 {
			t.Errorf("no resources rolled: %d", r.GetResourceLeft())
		}
		if r.GetProto().ProspectingCharacter != 0 {
			t.Errorf("prospecting attribution not cleared")
		}
		r.Release()
	})

	// A just-finished prospection can be mined; the same block's
	// mining tick already extracts.
	processBlock(t, g, 12, fmt.Sprintf(
		`{"name": "domob", "move": {"c": {"%d": {"mine": {}}}}}`, id))

	inspect(t, g, func(tbl *moves.Tables) {
		c := tbl.Characters.GetById(id)
		proto := c.GetProto()
		if proto.Mining == nil || !proto.Mining.Active {
			t.Fatalf("mining did not start")
		}

		r := tbl.Regions.GetById(regionId)
		resource := r.GetProto().Prospection.Resource
		if got := proto.Inventory.Count(resource); got != 2 {
			t.Errorf("extracted %d units of %q, want 2", got, resource)
		}
		r.Release()
		c.Release()
	})
}

func TestBuildingConfigUpdateDelay(t *testing.T) {
	g := newTestGame(t)

	var buildingId uint64
	setup(t, g, func(tbl *moves.Tables) {
		buildingId = createBuilding(tbl, "hut", "domob", faction.Red,
			hex.Coord{X: 10, Y: 10})
	})

	processBlock(t, g, 1, fmt.Sprintf(
		`{"name": "domob", "move": {"b": {"%d": {"sf": 100}}}}`, buildingId))

	for h := uint64(2); h <= 10; h++ {
		processBlock(t, g, h)
	}

	// One block before the delay ends, the old fee still applies.
	inspect(t, g, func(tbl *moves.Tables) {
		b := tbl.Buildings.GetById(buildingId)
		if fee := b.GetProto().Config.ServiceFeePercent; fee != 0 {
			t.Errorf("fee changed early: %d", fee)
		}
		b.Release()
	})

	processBlock(t, g, 11)

	inspect(t, g, func(tbl *moves.Tables) {
		b := tbl.Buildings.GetById(buildingId)
		if fee := b.GetProto().Config.ServiceFeePercent; fee != 100 {
			t.Errorf("fee after delay = %d, want 100", fee)
		}
		if b.GetOngoingId() != 0 {
			t.Errorf("update operation not cleared")
		}
		b.Release()
	})
}

func TestMenteconDrainsArmourNextBlock(t *testing.T) {
	g := newTestGame(t)

	var source, target uint64
	setup(t, g, func(tbl *moves.Tables) {
		source = createCharacter(tbl, "domob", faction.Red, hex.Coord{X: 0, Y: 0})
		target = createCharacter(tbl, "domob", faction.Red, hex.Coord{X: 1, Y: 0})

		s := tbl.Characters.GetById(source)
		s.MutableProto().Combat.Attacks = []db.Attack{{
			Range:      1,
			Friendlies: true,
			Effects:    &db.AttackEffects{Mentecon: true},
		}}
		s.Release()

		c := tbl.Characters.GetById(target)
		c.MutableProto().Combat.Attacks = nil
		c.Release()
	})

	// Block 1 stages the effect; nothing drains yet.
	processBlock(t, g, 1)
	inspect(t, g, func(tbl *moves.Tables) {
		c := tbl.Characters.GetById(target)
		if got := c.GetProto().HP.Armour; got != g.Params.CharacterMaxArmour {
			t.Errorf("armour drained in the application block: %d", got)
		}
		if !c.GetProto().StagedEffects.Mentecon {
			t.Errorf("mentecon not staged")
		}
		c.Release()
	})

	// Blocks 2 and 3: the effect is active (refreshed each block) and
	// drains one armour per block.
	processBlock(t, g, 2)
	processBlock(t, g, 3)
	inspect(t, g, func(tbl *moves.Tables) {
		c := tbl.Characters.GetById(target)
		want := g.Params.CharacterMaxArmour - 2
		if got := c.GetProto().HP.Armour; got != want {
			t.Errorf("armour after two active blocks = %d, want %d",
				got, want)
		}
		c.Release()
	})
}

func TestDexAskThenBid(t *testing.T) {
	g := newTestGame(t)
	g.Params.DexFeeBps = 50

	var buildingId uint64
	setup(t, g, func(tbl *moves.Tables) {
		buildingId = createBuilding(tbl, "workshop", "owner", faction.Red,
			hex.Coord{X: 20, Y: 0})
		ensureAccount(tbl, "seller", faction.Red)
		ensureAccount(tbl, "buyer", faction.Green)

		b := tbl.Buildings.GetById(buildingId)
		b.MutableProto().Config.DexFeeBps = 50
		b.Release()

		bi := tbl.Inventories.Get(buildingId, "seller")
		bi.MutableInventory().AddCount("foo", 200)
		bi.Release()

		buyer := tbl.Accounts.GetByName("buyer")
		buyer.AddBalance(2000)
		buyer.Release()
		tbl.Money.AddGifted(2000)
	})

	processBlock(t, g, 1, fmt.Sprintf(
		`{"name": "seller", "move": {"x": [
			{"b": %d, "t": "ask", "i": "foo", "n": 100, "bp": 10}]}}`,
		buildingId))

	inspect(t, g, func(tbl *moves.Tables) {
		bi := tbl.Inventories.Get(buildingId, "seller")
		if got := bi.GetInventory().Count("foo"); got != 100 {
			t.Errorf("seller store after ask = %d, want 100 (reserved)", got)
		}
		bi.Release()
	})

	processBlock(t, g, 2, fmt.Sprintf(
		`{"name": "buyer", "move": {"x": [
			{"b": %d, "t": "bid", "i": "foo", "n": 100, "bp": 12}]}}`,
		buildingId))

	inspect(t, g, func(tbl *moves.Tables) {
		// The bid crossed at the resting ask price of 10: cost 1000.
		// The combined fee of 100 bps rounds up to 10; the owner's
		// half rounds down to 5, the remaining 5 are burnt.
		buyer := tbl.Accounts.GetByName("buyer")
		if got := buyer.GetBalance(); got != 1000 {
			t.Errorf("buyer balance = %d, want 1000", got)
		}
		buyer.Release()

		seller := tbl.Accounts.GetByName("seller")
		if got := seller.GetBalance(); got != 990 {
			t.Errorf("seller balance = %d, want 990", got)
		}
		seller.Release()

		owner := tbl.Accounts.GetByName("owner")
		if got := owner.GetBalance(); got != 5 {
			t.Errorf("owner fee = %d, want 5", got)
		}
		owner.Release()

		if got := tbl.Money.GetBurnt(); got != 5 {
			t.Errorf("burnt = %d, want 5", got)
		}

		bi := tbl.Inventories.Get(buildingId, "buyer")
		if got := bi.GetInventory().Count("foo"); got != 100 {
			t.Errorf("buyer store = %d foo, want 100", got)
		}
		bi.Release()

		trades := tbl.DexHistory.QueryForItem("foo", buildingId)
		if len(trades) != 1 || trades[0].Quantity != 100 ||
			trades[0].Price != 10 {
			t.Errorf("trade history = %+v", trades)
		}

		if err := ValidateState(tbl, 2); err != nil {
			t.Errorf("state invalid after trading: %v", err)
		}
	})
}

func TestCharacterCreationPaidAndLimited(t *testing.T) {
	g := newTestGame(t)

	// Regtest character cost is 100 minor units = 0.000001 of the
	// chain currency; pay for exactly two.
	dev := g.Params.DeveloperAddress
	processBlock(t, g, 1, fmt.Sprintf(
		`{"name": "domob", "move": {"nc": [
			{"faction": "r"}, {"faction": "r"}, {"faction": "r"}]},
		  "out": {"%s": 0.000002}}`, dev))

	inspect(t, g, func(tbl *moves.Tables) {
		a := tbl.Accounts.GetByName("domob")
		if a == nil {
			t.Fatalf("account not created")
		}
		if !a.IsInitialised() || a.GetFaction() != faction.Red {
			t.Errorf("account not initialised to red")
		}
		a.Release()

		ids := tbl.Characters.QueryForOwner("domob")
		if len(ids) != 2 {
			t.Fatalf("created %d characters, want 2 (paid for)", len(ids))
		}
		for _, id := range ids {
			c := tbl.Characters.GetById(id)
			if c.GetFaction() != faction.Red {
				t.Errorf("character %d faction = %v", id, c.GetFaction())
			}
			pos := c.GetPosition()
			area := g.Params.SpawnAreaFor(faction.Red)
			if hex.DistanceL1(pos, area.Centre) > area.Radius+5 {
				t.Errorf("character %d spawned far from the spawn disk: %v",
					id, pos)
			}
			c.Release()
		}
	})
}

func TestNoOpBlockKeepsStateStable(t *testing.T) {
	g := newTestGame(t)

	setup(t, g, func(tbl *moves.Tables) {
		id := createCharacter(tbl, "domob", faction.Red, hex.Coord{X: 2, Y: 2})
		c := tbl.Characters.GetById(id)
		c.MutableProto().Combat.Attacks = nil
		c.Release()
	})

	processBlock(t, g, 1)

	var before, after json.RawMessage
	inspect(t, g, func(tbl *moves.Tables) {
		before = statejson.FullState(tbl)
	})

	processBlock(t, g, 2)

	inspect(t, g, func(tbl *moves.Tables) {
		after = statejson.FullState(tbl)
	})

	if string(before) != string(after) {
		t.Errorf("state changed under a no-op block:\n%s\nvs\n%s",
			before, after)
	}
}
