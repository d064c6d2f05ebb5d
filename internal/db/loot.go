package db

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/storage"
)

// GroundLoot is a row handle for the item pile on one tile. Piles exist
// implicitly; empty piles are removed from the database on release.
type GroundLoot struct {
	tx *storage.Tx

	pos hex.Coord
	inv Inventory

	inDb  bool
	dirty bool
}

// GroundLootTable looks up ground-loot handles by position.
type GroundLootTable struct {
	tx *storage.Tx
}

// NewGroundLootTable binds the table to a block transaction.
func NewGroundLootTable(tx *storage.Tx) *GroundLootTable {
	return &GroundLootTable{tx: tx}
}

type groundLootRow struct {
	X         int    `db:"x"`
	Y         int    `db:"y"`
	Inventory string `db:"inventory"`
}

// GetByPosition returns the loot pile at the given tile; an empty
// handle if there is none yet.
func (t *GroundLootTable) GetByPosition(pos hex.Coord) *GroundLoot {
	t.tx.TrackHandle(fmt.Sprintf("loot/%d,%d", pos.X, pos.Y))

	l := &GroundLoot{tx: t.tx, pos: pos}
	var row groundLootRow
	if t.tx.Get(&row,
		"SELECT * FROM ground_loot WHERE x = ? AND y = ?", pos.X, pos.Y) {
		l.inDb = true
		if err := json.Unmarshal([]byte(row.Inventory), &l.inv); err != nil {
			panic(fmt.Sprintf("db: corrupt ground loot at %v: %v", pos, err))
		}
	}
	return l
}

// QueryAllPositions returns every tile with loot, ordered by (x, y).
func (t *GroundLootTable) QueryAllPositions() []hex.Coord {
	var rows []groundLootRow
	t.tx.Select(&rows, "SELECT x, y, inventory FROM ground_loot ORDER BY x, y")
	res := make([]hex.Coord, 0, len(rows))
	for _, r := range rows {
		res = append(res, hex.Coord{X: r.X, Y: r.Y})
	}
	return res
}

// Release writes the pile back, removing rows that became empty.
func (l *GroundLoot) Release() {
	defer l.tx.UntrackHandle(fmt.Sprintf("loot/%d,%d", l.pos.X, l.pos.Y))

	if !l.dirty {
		return
	}

	if l.inv.IsEmpty() {
		if l.inDb {
			l.tx.MustExec(
				"DELETE FROM ground_loot WHERE x = ? AND y = ?",
				l.pos.X, l.pos.Y)
		}
		return
	}

	raw, err := json.Marshal(l.inv)
	if err != nil {
		panic(fmt.Sprintf("db: marshal ground loot: %v", err))
	}
	l.tx.MustExec(`INSERT OR REPLACE INTO ground_loot (x, y, inventory)
		VALUES (?, ?, ?)`, l.pos.X, l.pos.Y, string(raw))
}

// GetPosition returns the pile's tile.
func (l *GroundLoot) GetPosition() hex.Coord {
	return l.pos
}

// GetInventory gives read access to the pile contents.
func (l *GroundLoot) GetInventory() *Inventory {
	return &l.inv
}

// MutableInventory gives write access to the pile contents.
func (l *GroundLoot) MutableInventory() *Inventory {
	l.dirty = true
	return &l.inv
}

// BuildingInventory is a row handle for one account's item store inside
// one building. Like ground loot, rows exist implicitly and empty ones
// are removed.
type BuildingInventory struct {
	tx *storage.Tx

	building uint64
	account  string
	inv      Inventory

	inDb  bool
	dirty bool
}

// BuildingInventoriesTable looks up building-inventory handles.
type BuildingInventoriesTable struct {
	tx *storage.Tx
}

// NewBuildingInventoriesTable binds the table to a block transaction.
func NewBuildingInventoriesTable(tx *storage.Tx) *BuildingInventoriesTable {
	return &BuildingInventoriesTable{tx: tx}
}

type buildingInvRow struct {
	Building  uint64 `db:"building"`
	Account   string `db:"account"`
	Inventory string `db:"inventory"`
}

// Get returns the handle for (building, account); an empty handle if
// the row does not exist yet.
func (t *BuildingInventoriesTable) Get(building uint64,
	account string) *BuildingInventory {
	t.tx.TrackHandle(fmt.Sprintf("binv/%d/%s", building, account))

	bi := &BuildingInventory{tx: t.tx, building: building, account: account}
	var row buildingInvRow
	if t.tx.Get(&row, `SELECT * FROM building_inventories
		WHERE building = ? AND account = ?`, building, account) {
		bi.inDb = true
		if err := json.Unmarshal([]byte(row.Inventory), &bi.inv); err != nil {
			panic(fmt.Sprintf("db: corrupt building inventory %d/%s: %v",
				building, account, err))
		}
	}
	return bi
}

// BuildingInventoryKey identifies one building-inventory row.
type BuildingInventoryKey struct {
	Building uint64 `db:"building"`
	Account  string `db:"account"`
}

// QueryForBuilding returns the inventory keys of one building, ordered
// by account.
func (t *BuildingInventoriesTable) QueryForBuilding(
	building uint64) []BuildingInventoryKey {
	var keys []BuildingInventoryKey
	t.tx.Select(&keys, `SELECT building, account FROM building_inventories
		WHERE building = ? ORDER BY account`, building)
	return keys
}

// QueryAll returns every inventory key, ordered by (building, account).
func (t *BuildingInventoriesTable) QueryAll() []BuildingInventoryKey {
	var keys []BuildingInventoryKey
	t.tx.Select(&keys, `SELECT building, account FROM building_inventories
		ORDER BY building, account`)
	return keys
}

// DeleteForBuilding drops all inventories of a destroyed building.
func (t *BuildingInventoriesTable) DeleteForBuilding(building uint64) {
	t.tx.MustExec(
		"DELETE FROM building_inventories WHERE building = ?", building)
}

// Release writes the inventory back, removing rows that became empty.
func (bi *BuildingInventory) Release() {
	defer bi.tx.UntrackHandle(
		fmt.Sprintf("binv/%d/%s", bi.building, bi.account))

	if !bi.dirty {
		return
	}

	if bi.inv.IsEmpty() {
		if bi.inDb {
			bi.tx.MustExec(`DELETE FROM building_inventories
				WHERE building = ? AND account = ?`,
				bi.building, bi.account)
		}
		return
	}

	raw, err := json.Marshal(bi.inv)
	if err != nil {
		panic(fmt.Sprintf("db: marshal building inventory: %v", err))
	}
	bi.tx.MustExec(`INSERT OR REPLACE INTO building_inventories
		(building, account, inventory) VALUES (?, ?, ?)`,
		bi.building, bi.account, string(raw))
}

// GetBuilding returns the building id of the row.
func (bi *BuildingInventory) GetBuilding() uint64 {
	return bi.building
}

// GetAccount returns the account of the row.
func (bi *BuildingInventory) GetAccount() string {
	return bi.account
}

// GetInventory gives read access to the stored items.
func (bi *BuildingInventory) GetInventory() *Inventory {
	return &bi.inv
}

// MutableInventory gives write access to the stored items.
func (bi *BuildingInventory) MutableInventory() *Inventory {
	bi.dirty = true
	return &bi.inv
}
