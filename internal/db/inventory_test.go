package db

import (
	"testing"

	"github.com/talgya/outpost/internal/params"
)

func TestInventoryAddCount(t *testing.T) {
	var inv Inventory

	inv.AddCount("foo", 5)
	if inv.Count("foo") != 5 {
		t.Errorf("count = %d, want 5", inv.Count("foo"))
	}

	inv.AddCount("foo", -5)
	if !inv.IsEmpty() {
		t.Errorf("inventory not empty after removing everything")
	}
	if _, present := inv.Fungible["foo"]; present {
		t.Errorf("zero-count entry kept in the map")
	}
}

func TestInventoryOverdraw(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("overdraw did not panic")
		}
	}()

	var inv Inventory
	inv.AddCount("foo", 1)
	inv.AddCount("foo", -2)
}

func TestInventoryItemsSorted(t *testing.T) {
	var inv Inventory
	inv.AddCount("zeta", 1)
	inv.AddCount("alpha", 1)
	inv.AddCount("mid", 1)

	items := inv.Items()
	want := []string{"alpha", "mid", "zeta"}
	if len(items) != len(want) {
		t.Fatalf("items = %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("items = %v, want %v", items, want)
		}
	}
}

func TestInventoryUsedSpace(t *testing.T) {
	p := params.ForChain(params.ChainRegtest)

	var inv Inventory
	inv.AddCount("foo", 3)
	inv.AddCount("bar", 2)

	// foo takes 1 unit, bar takes 2.
	if used := inv.UsedSpace(p); used != 3+4 {
		t.Errorf("used space = %d, want 7", used)
	}
}

func TestInventoryMoveAll(t *testing.T) {
	var src, dst Inventory
	src.AddCount("foo", 2)
	dst.AddCount("foo", 1)
	dst.AddCount("bar", 1)

	src.MoveAll(&dst)
	if !src.IsEmpty() {
		t.Errorf("source not empty after MoveAll")
	}
	if dst.Count("foo") != 3 || dst.Count("bar") != 1 {
		t.Errorf("destination = %v", dst.Fungible)
	}
}
