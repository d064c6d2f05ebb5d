package combat

import (
	"testing"

	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/rnd"
)

func TestApplyDamageShieldFirst(t *testing.T) {
	hp := db.HP{Armour: 10, Shield: 3, ShieldMhp: 500}

	if applyDamage(&hp, 2) {
		t.Fatalf("fighter died with shield left")
	}
	if hp.Shield != 1 || hp.Armour != 10 {
		t.Errorf("hp after 2 damage = %+v", hp)
	}

	// Emptying the shield drops the milli fraction too.
	if applyDamage(&hp, 4) {
		t.Fatalf("fighter died with armour left")
	}
	if hp.Shield != 0 || hp.ShieldMhp != 0 || hp.Armour != 7 {
		t.Errorf("hp after overkill on shield = %+v", hp)
	}

	if !applyDamage(&hp, 100) {
		t.Fatalf("fighter survived lethal damage")
	}
	if hp.Armour != 0 {
		t.Errorf("armour = %d after death", hp.Armour)
	}
}

func TestRollDamageRange(t *testing.T) {
	r := rnd.NewFromSeed([]byte("damage"))
	attack := db.Attack{MinDamage: 3, MaxDamage: 7}

	seen := make(map[uint32]bool)
	for i := 0; i < 500; i++ {
		dmg := rollDamage(r, attack)
		if dmg < 3 || dmg > 7 {
			t.Fatalf("damage roll %d outside [3, 7]", dmg)
		}
		seen[dmg] = true
	}
	for v := uint32(3); v <= 7; v++ {
		if !seen[v] {
			t.Errorf("damage value %d never rolled", v)
		}
	}
}

func TestEffectiveRange(t *testing.T) {
	if got := effectiveRange(10, db.Effects{}); got != 10 {
		t.Errorf("no effects: range = %d", got)
	}
	if got := effectiveRange(10, db.Effects{RangePct: 50}); got != 15 {
		t.Errorf("+50%%: range = %d", got)
	}
	if got := effectiveRange(10, db.Effects{RangePct: -200}); got != 0 {
		t.Errorf("heavy malus floors at zero, got %d", got)
	}
}

func TestFameLevel(t *testing.T) {
	tests := map[uint64]int{
		0:    0,
		999:  0,
		1000: 1,
		4500: 4,
		8000: 8,
		9999: 8,
	}
	for fame, want := range tests {
		if got := FameLevel(fame); got != want {
			t.Errorf("FameLevel(%d) = %d, want %d", fame, got, want)
		}
	}
}
