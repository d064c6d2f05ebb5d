package db

import (
	"testing"

	"github.com/talgya/outpost/internal/faction"
	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/storage"
)

// regionOfForTest tiles the plane into 8-wide stripes, enough to test
// the indexed region column.
func regionOfForTest(c hex.Coord) uint64 {
	return uint64(c.X/8 + 1000)
}

func openTestTx(t *testing.T) *storage.Tx {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tx, err := db.BeginBlock()
	if err != nil {
		t.Fatalf("begin block: %v", err)
	}
	t.Cleanup(func() { tx.Rollback() })
	return tx
}

func TestCharacterRoundTrip(t *testing.T) {
	tx := openTestTx(t)
	chars := NewCharactersTable(tx, regionOfForTest)

	c := chars.CreateNew("domob", faction.Red)
	id := c.GetId()
	c.SetPosition(hex.Coord{X: 5, Y: -3})
	proto := c.MutableProto()
	proto.Speed = 750
	proto.HP = HP{Armour: 10, Shield: 5, ShieldMhp: 250}
	proto.Inventory.AddCount("foo", 2)
	c.Release()

	c = chars.GetById(id)
	if c == nil {
		t.Fatalf("character %d not found after insert", id)
	}
	if c.GetOwner() != "domob" || c.GetFaction() != faction.Red {
		t.Errorf("owner/faction = %q/%v", c.GetOwner(), c.GetFaction())
	}
	if c.GetPosition() != (hex.Coord{X: 5, Y: -3}) {
		t.Errorf("position = %v", c.GetPosition())
	}
	p := c.GetProto()
	if p.Speed != 750 || p.HP.ShieldMhp != 250 || p.Inventory.Count("foo") != 2 {
		t.Errorf("proto did not round-trip: %+v", p)
	}
	c.Release()
}

func TestCharacterIndexColumns(t *testing.T) {
	tx := openTestTx(t)
	chars := NewCharactersTable(tx, regionOfForTest)

	c := chars.CreateNew("domob", faction.Red)
	id := c.GetId()
	proto := c.MutableProto()
	proto.Movement = &MovementData{Waypoints: []hex.Coord{{X: 1, Y: 0}}}
	proto.RegenData = RegenData{MaxShield: 10, ShieldRegenMhp: 100}
	proto.HP.Shield = 5
	proto.Combat.Attacks = []Attack{{Range: 7, MinDamage: 1, MaxDamage: 2}}
	c.Release()

	if moving := chars.QueryMoving(); len(moving) != 1 || moving[0] != id {
		t.Errorf("QueryMoving = %v", moving)
	}
	if armed := chars.QueryWithAttacks(); len(armed) != 1 || armed[0] != id {
		t.Errorf("QueryWithAttacks = %v", armed)
	}
	if regen := chars.QueryForRegen(); len(regen) != 1 || regen[0] != id {
		t.Errorf("QueryForRegen = %v", regen)
	}

	// Clearing movement through the proto updates the index.
	c = chars.GetById(id)
	c.MutableProto().Movement = nil
	c.Release()
	if moving := chars.QueryMoving(); len(moving) != 0 {
		t.Errorf("QueryMoving after stop = %v", moving)
	}
}

func TestDoubleHandlePanics(t *testing.T) {
	tx := openTestTx(t)
	chars := NewCharactersTable(tx, regionOfForTest)

	c := chars.CreateNew("domob", faction.Red)
	id := c.GetId()
	c.Release()

	first := chars.GetById(id)
	defer first.Release()

	defer func() {
		if recover() == nil {
			t.Fatalf("second live handle did not panic")
		}
	}()
	chars.GetById(id)
}

func TestOngoingQueryForHeight(t *testing.T) {
	tx := openTestTx(t)
	ops := NewOngoingsTable(tx)

	a := ops.CreateNew(10, 20)
	a.SetCharacterId(1)
	aId := a.GetId()
	a.Release()

	b := ops.CreateNew(10, 21)
	b.SetCharacterId(2)
	b.Release()

	due := ops.QueryForHeight(20)
	if len(due) != 1 || due[0] != aId {
		t.Errorf("QueryForHeight(20) = %v, want [%d]", due, aId)
	}
}

func TestDamageListsAging(t *testing.T) {
	tx := openTestTx(t)

	dl := NewDamageLists(tx, 100)
	dl.AddEntry(7, 8)
	dl.AddEntry(7, 9)

	later := NewDamageLists(tx, 199)
	later.RemoveOld(100)
	if attackers := later.GetAttackers(7); len(attackers) != 2 {
		t.Errorf("attackers aged out too early: %v", attackers)
	}

	expired := NewDamageLists(tx, 200)
	expired.RemoveOld(100)
	if attackers := expired.GetAttackers(7); len(attackers) != 0 {
		t.Errorf("attackers survived expiry: %v", attackers)
	}
}

func TestDexOrderMatchingQueries(t *testing.T) {
	tx := openTestTx(t)
	orders := NewDexOrdersTable(tx)

	mk := func(kind DexOrderType, price int64) uint64 {
		o := orders.CreateNew(1, "domob", kind, "foo", 10, price)
		id := o.GetId()
		o.Release()
		return id
	}

	cheapAsk := mk(DexAsk, 5)
	mk(DexAsk, 9)
	mk(DexAsk, 20)
	highBid := mk(DexBid, 8)
	mk(DexBid, 3)

	asks := orders.QueryToMatchBid(1, "foo", 10)
	if len(asks) != 2 || asks[0].Id != cheapAsk {
		t.Errorf("QueryToMatchBid = %+v", asks)
	}

	bids := orders.QueryToMatchAsk(1, "foo", 4)
	if len(bids) != 1 || bids[0].Id != highBid {
		t.Errorf("QueryToMatchAsk = %+v", bids)
	}
}
