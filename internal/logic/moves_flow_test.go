package logic

import (
	"fmt"
	"testing"

	"github.com/talgya/outpost/internal/faction"
	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/moves"
)

func TestEnterAndExitBuilding(t *testing.T) {
	g := newTestGame(t)

	var charId, buildingId uint64
	setup(t, g, func(tbl *moves.Tables) {
		buildingId = createBuilding(tbl, "hut", "domob", faction.Red,
			hex.Coord{X: 5, Y: 0})
		charId = createCharacter(tbl, "domob", faction.Red,
			hex.Coord{X: 3, Y: 0})
		c := tbl.Characters.GetById(charId)
		c.MutableProto().Combat.Attacks = nil
		c.Release()
	})

	// Entering and exiting in the same move resolves to enter-only:
	// the exit is invalid while the character is still outside.
	processBlock(t, g, 1, fmt.Sprintf(
		`{"name": "domob", "move": {"c": {"%d": {"eb": %d, "xb": {}}}}}`,
		charId, buildingId))

	inspect(t, g, func(tbl *moves.Tables) {
		c := tbl.Characters.GetById(charId)
		if !c.IsInBuilding() || c.GetBuildingId() != buildingId {
			t.Fatalf("character did not enter the building")
		}
		if c.GetEnterBuilding() != 0 {
			t.Errorf("enter intent not cleared")
		}
		c.Release()
	})

	processBlock(t, g, 2, fmt.Sprintf(
		`{"name": "domob", "move": {"c": {"%d": {"xb": {}}}}}`, charId))

	inspect(t, g, func(tbl *moves.Tables) {
		c := tbl.Characters.GetById(charId)
		if c.IsInBuilding() {
			t.Fatalf("character did not exit")
		}
		dist := hex.DistanceL1(c.GetPosition(), hex.Coord{X: 5, Y: 0})
		if dist < 1 || dist > g.Params.EnterBuildingRange {
			t.Errorf("exited to %v, distance %d from the building",
				c.GetPosition(), dist)
		}
		c.Release()
	})
}

func TestDropAndPickupOnGround(t *testing.T) {
	g := newTestGame(t)

	pos := hex.Coord{X: 2, Y: -2}
	var id uint64
	setup(t, g, func(tbl *moves.Tables) {
		id = createCharacter(tbl, "domob", faction.Red, pos)
		c := tbl.Characters.GetById(id)
		proto := c.MutableProto()
		proto.Combat.Attacks = nil
		proto.Inventory.AddCount("foo", 5)
		c.Release()
	})

	processBlock(t, g, 1, fmt.Sprintf(
		`{"name": "domob", "move": {"c": {"%d": {"drop": {"f": {"foo": 3}}}}}}`,
		id))

	inspect(t, g, func(tbl *moves.Tables) {
		loot := tbl.GroundLoot.GetByPosition(pos)
		if got := loot.GetInventory().Count("foo"); got != 3 {
			t.Errorf("ground loot = %d foo, want 3", got)
		}
		loot.Release()
	})

	processBlock(t, g, 2, fmt.Sprintf(
		`{"name": "domob", "move": {"c": {"%d": {"pu": {"f": {"foo": 2}}}}}}`,
		id))

	inspect(t, g, func(tbl *moves.Tables) {
		c := tbl.Characters.GetById(id)
		if got := c.GetProto().Inventory.Count("foo"); got != 4 {
			t.Errorf("cargo = %d foo, want 4", got)
		}
		c.Release()

		loot := tbl.GroundLoot.GetByPosition(pos)
		if got := loot.GetInventory().Count("foo"); got != 1 {
			t.Errorf("ground loot = %d foo, want 1", got)
		}
		loot.Release()
	})
}

func TestCoinTransferBurnAndMint(t *testing.T) {
	g := newTestGame(t)

	setup(t, g, func(tbl *moves.Tables) {
		ensureAccount(tbl, "alice", faction.Red)
		a := tbl.Accounts.GetByName("alice")
		a.AddBalance(500)
		a.Release()
		tbl.Money.AddGifted(500)
	})

	processBlock(t, g, 1,
		`{"name": "alice", "move": {"vc": {"t": {"bob": 200}, "b": 100}}}`)

	inspect(t, g, func(tbl *moves.Tables) {
		alice := tbl.Accounts.GetByName("alice")
		if got := alice.GetBalance(); got != 200 {
			t.Errorf("alice balance = %d, want 200", got)
		}
		alice.Release()

		bob := tbl.Accounts.GetByName("bob")
		if bob == nil {
			t.Fatalf("transfer did not create the recipient account")
		}
		if got := bob.GetBalance(); got != 200 {
			t.Errorf("bob balance = %d, want 200", got)
		}
		bob.Release()

		if got := tbl.Money.GetBurnt(); got != 100 {
			t.Errorf("burnt = %d, want 100", got)
		}
	})

	// Burning chain currency alongside a mint request buys vCHI at
	// the first burnsale stage price.
	processBlock(t, g, 2,
		`{"name": "alice", "move": {"vc": {"m": {}}}, "burnt": 0.00001}`)

	inspect(t, g, func(tbl *moves.Tables) {
		alice := tbl.Accounts.GetByName("alice")
		// 1000 satoshi at 1000 satoshi per coin buys one full coin.
		if got := alice.GetBalance(); got != 200+100000000 {
			t.Errorf("alice balance after mint = %d", got)
		}
		if got := alice.GetBurnsaleBalance(); got != 100000000 {
			t.Errorf("burnsale balance = %d", got)
		}
		alice.Release()

		if got := tbl.Money.GetBurnsaleSold(); got != 100000000 {
			t.Errorf("burnsale sold = %d", got)
		}

		if err := ValidateState(tbl, 2); err != nil {
			t.Errorf("state invalid after coin ops: %v", err)
		}
	})
}

func TestBlueprintCopyService(t *testing.T) {
	g := newTestGame(t)
	g.Params.BpCopyBlocks = 1

	var buildingId uint64
	setup(t, g, func(tbl *moves.Tables) {
		buildingId = createBuilding(tbl, "workshop", "domob", faction.Red,
			hex.Coord{X: 15, Y: 0})

		bi := tbl.Inventories.Get(buildingId, "domob")
		bi.MutableInventory().AddCount("sword bpo", 1)
		bi.Release()

		a := tbl.Accounts.GetByName("domob")
		a.AddBalance(10000)
		a.Release()
		tbl.Money.AddGifted(10000)
	})

	processBlock(t, g, 1, fmt.Sprintf(
		`{"name": "domob", "move": {"s": [
			{"b": %d, "t": "cp", "i": "sword bpo", "n": 1}]}}`, buildingId))

	inspect(t, g, func(tbl *moves.Tables) {
		// The original is locked up while the copy runs; the base
		// cost of 1 * 1000 * complexity 2 was charged and burnt
		// (owners pay no fee in their own buildings).
		bi := tbl.Inventories.Get(buildingId, "domob")
		if got := bi.GetInventory().Count("sword bpo"); got != 0 {
			t.Errorf("original not locked up: %d", got)
		}
		bi.Release()

		a := tbl.Accounts.GetByName("domob")
		if got := a.GetBalance(); got != 8000 {
			t.Errorf("balance after charge = %d, want 8000", got)
		}
		if got := a.GetProto().SkillXp["copying"]; got != 1 {
			t.Errorf("copying xp = %d, want 1", got)
		}
		a.Release()

		b := tbl.Buildings.GetById(buildingId)
		if b.GetOngoingId() == 0 {
			t.Fatalf("no copy operation running")
		}
		b.Release()
	})

	// Duration is 1 copy * 1 block * complexity 2: finishes at 3.
	processBlock(t, g, 2)
	processBlock(t, g, 3)

	inspect(t, g, func(tbl *moves.Tables) {
		bi := tbl.Inventories.Get(buildingId, "domob")
		inv := bi.GetInventory()
		if inv.Count("sword bpo") != 1 || inv.Count("sword bpc") != 1 {
			t.Errorf("store after copy = %v", inv.Fungible)
		}
		bi.Release()

		b := tbl.Buildings.GetById(buildingId)
		if b.GetOngoingId() != 0 {
			t.Errorf("operation not cleared from the building")
		}
		b.Release()

		if err := ValidateState(tbl, 3); err != nil {
			t.Errorf("state invalid after service: %v", err)
		}
	})
}
