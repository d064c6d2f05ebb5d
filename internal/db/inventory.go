// Package db holds the entity tables of the game state and the row
// handles used to read and mutate them. A handle exclusively owns its
// row until released; releasing writes pending modifications back.
package db

import (
	"fmt"
	"sort"

	"github.com/talgya/outpost/internal/params"
)

// Inventory is a fungible item collection: item name to count. Counts
// are strictly positive; removing the last unit removes the entry.
type Inventory struct {
	Fungible map[string]int64 `json:"fungible,omitempty"`
}

// Count returns how many units of an item are held.
func (inv *Inventory) Count(item string) int64 {
	return inv.Fungible[item]
}

// AddCount changes the held units of an item by delta, which may be
// negative. Taking out more than is held is a consistency error.
func (inv *Inventory) AddCount(item string, delta int64) {
	cur := inv.Fungible[item]
	next := cur + delta
	if next < 0 {
		panic(fmt.Sprintf("inventory: count of %q would become %d", item, next))
	}
	if next == 0 {
		delete(inv.Fungible, item)
		return
	}
	if inv.Fungible == nil {
		inv.Fungible = make(map[string]int64)
	}
	inv.Fungible[item] = next
}

// SetCount sets the held units of an item outright.
func (inv *Inventory) SetCount(item string, count int64) {
	if count < 0 {
		panic(fmt.Sprintf("inventory: negative count %d of %q", count, item))
	}
	if count == 0 {
		delete(inv.Fungible, item)
		return
	}
	if inv.Fungible == nil {
		inv.Fungible = make(map[string]int64)
	}
	inv.Fungible[item] = count
}

// IsEmpty reports whether nothing is held.
func (inv *Inventory) IsEmpty() bool {
	return len(inv.Fungible) == 0
}

// Items returns the held item names in sorted order. All iteration over
// an inventory must go through this to stay deterministic.
func (inv *Inventory) Items() []string {
	items := make([]string, 0, len(inv.Fungible))
	for it := range inv.Fungible {
		items = append(items, it)
	}
	sort.Strings(items)
	return items
}

// UsedSpace returns the total cargo space taken up, according to the
// per-item space configuration.
func (inv *Inventory) UsedSpace(p *params.Params) int64 {
	var total int64
	for _, it := range inv.Items() {
		data := p.Item(it)
		if data == nil {
			continue
		}
		total += data.Space * inv.Fungible[it]
	}
	return total
}

// MoveAll transfers the full contents into another inventory.
func (inv *Inventory) MoveAll(dst *Inventory) {
	for _, it := range inv.Items() {
		dst.AddCount(it, inv.Fungible[it])
	}
	inv.Fungible = nil
}
