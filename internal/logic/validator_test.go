package logic

import (
	"strings"
	"testing"

	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/faction"
	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/moves"
)

// expectInvalid runs the validator and checks the diagnostic.
func expectInvalid(t *testing.T, g *Game, wantSubstring string) {
	t.Helper()
	inspect(t, g, func(tbl *moves.Tables) {
		err := ValidateState(tbl, 100)
		if err == nil {
			t.Fatalf("validator accepted broken state, wanted %q",
				wantSubstring)
		}
		if !strings.Contains(err.Error(), wantSubstring) {
			t.Errorf("diagnostic = %q, want substring %q",
				err.Error(), wantSubstring)
		}
	})
}

func TestValidatorAcceptsConsistentState(t *testing.T) {
	g := newTestGame(t)
	setup(t, g, func(tbl *moves.Tables) {
		createCharacter(tbl, "domob", faction.Red, hex.Coord{X: 1, Y: 1})
		createBuilding(tbl, "hut", "domob", faction.Red, hex.Coord{X: 5, Y: 5})
	})

	inspect(t, g, func(tbl *moves.Tables) {
		if err := ValidateState(tbl, 100); err != nil {
			t.Errorf("consistent state rejected: %v", err)
		}
	})
}

func TestValidatorMissingOwnerAccount(t *testing.T) {
	g := newTestGame(t)
	setup(t, g, func(tbl *moves.Tables) {
		c := tbl.Characters.CreateNew("ghost", faction.Red)
		c.SetPosition(hex.Coord{X: 0, Y: 0})
		db.InitCharacterStats(tbl.Params, c.MutableProto())
		c.Release()
	})

	expectInvalid(t, g, "refers to non-existing account")
}

func TestValidatorFactionMismatch(t *testing.T) {
	g := newTestGame(t)
	setup(t, g, func(tbl *moves.Tables) {
		ensureAccount(tbl, "domob", faction.Red)
		c := tbl.Characters.CreateNew("domob", faction.Blue)
		c.SetPosition(hex.Coord{X: 0, Y: 0})
		db.InitCharacterStats(tbl.Params, c.MutableProto())
		c.Release()
	})

	expectInvalid(t, g, "Faction mismatch")
}

func TestValidatorFoundedInTheFuture(t *testing.T) {
	g := newTestGame(t)
	setup(t, g, func(tbl *moves.Tables) {
		ensureAccount(tbl, "domob", faction.Red)
		b := tbl.Buildings.CreateNew("hut", "domob", faction.Red,
			hex.Coord{X: 2, Y: 2}, 0)
		b.MutableProto().Age.FoundedHeight = 500
		b.Release()
	})

	expectInvalid(t, g, "founded in the future")
}

func TestValidatorOngoingWithoutCarrier(t *testing.T) {
	g := newTestGame(t)
	setup(t, g, func(tbl *moves.Tables) {
		op := tbl.Ongoings.CreateNew(1, 50)
		op.MutableProto().ArmourRepair = &db.OngoingArmourRepair{}
		op.Release()
	})

	expectInvalid(t, g, "exactly one carrier")
}

func TestValidatorBrokenBackReference(t *testing.T) {
	g := newTestGame(t)
	setup(t, g, func(tbl *moves.Tables) {
		id := createCharacter(tbl, "domob", faction.Red, hex.Coord{X: 0, Y: 0})

		op := tbl.Ongoings.CreateNew(1, 50)
		op.MutableProto().ArmourRepair = &db.OngoingArmourRepair{}
		op.SetCharacterId(id)
		op.Release()
		// The character does not point back at the operation.
	})

	expectInvalid(t, g, "back-reference")
}

func TestValidatorCargoOverflow(t *testing.T) {
	g := newTestGame(t)
	setup(t, g, func(tbl *moves.Tables) {
		id := createCharacter(tbl, "domob", faction.Red, hex.Coord{X: 0, Y: 0})
		c := tbl.Characters.GetById(id)
		// Regtest cargo space is 20; bar takes 2 units each.
		c.MutableProto().Inventory.SetCount("bar", 50)
		c.Release()
	})

	expectInvalid(t, g, "cargo space")
}

func TestValidatorDexOrderInFoundation(t *testing.T) {
	g := newTestGame(t)
	setup(t, g, func(tbl *moves.Tables) {
		ensureAccount(tbl, "domob", faction.Red)
		b := tbl.Buildings.CreateNew("hut", "domob", faction.Red,
			hex.Coord{X: 2, Y: 2}, 0)
		buildingId := b.GetId()
		b.Release()

		o := tbl.DexOrders.CreateNew(buildingId, "domob", db.DexAsk,
			"foo", 1, 10)
		o.Release()
	})

	expectInvalid(t, g, "foundation")
}

func TestValidatorMoneySupplyMismatch(t *testing.T) {
	g := newTestGame(t)
	setup(t, g, func(tbl *moves.Tables) {
		ensureAccount(tbl, "domob", faction.Red)
		a := tbl.Accounts.GetByName("domob")
		// Coins out of thin air: nothing backs this balance.
		a.AddBalance(12345)
		a.Release()
	})

	expectInvalid(t, g, "money supply mismatch")
}
