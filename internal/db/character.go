package db

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/outpost/internal/faction"
	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/storage"
)

// Character is a row handle for one character. A character is either at
// a map position or inside a building, never both.
type Character struct {
	tx       *storage.Tx
	regionOf func(hex.Coord) uint64

	id            uint64
	owner         string
	faction       faction.Faction
	pos           hex.Coord
	inBuilding    uint64
	enterBuilding uint64
	busy          bool
	ongoing       uint64

	proto CharacterProto

	isNew       bool
	deleted     bool
	dirtyFields bool
	dirtyProto  bool
}

// CharactersTable creates and looks up character handles.
type CharactersTable struct {
	tx *storage.Tx

	// regionOf maps a position to its region id; it keeps the indexed
	// region column in sync with positions.
	regionOf func(hex.Coord) uint64
}

// NewCharactersTable binds the table to a block transaction.
func NewCharactersTable(tx *storage.Tx, regionOf func(hex.Coord) uint64) *CharactersTable {
	return &CharactersTable{tx: tx, regionOf: regionOf}
}

type characterRow struct {
	Id            uint64 `db:"id"`
	Owner         string `db:"owner"`
	Faction       int    `db:"faction"`
	X             int    `db:"x"`
	Y             int    `db:"y"`
	Region        uint64 `db:"region"`
	InBuilding    uint64 `db:"inbuilding"`
	EnterBuilding uint64 `db:"enterbuilding"`
	Busy          int    `db:"busy"`
	IsMoving      int    `db:"ismoving"`
	IsMining      int    `db:"ismining"`
	HasTarget     int    `db:"hastarget"`
	CanRegen      int    `db:"canregen"`
	AttackRange   int    `db:"attackrange"`
	Fx            int    `db:"fx"`
	Ongoing       uint64 `db:"ongoing"`
	Proto         string `db:"proto"`
}

// CreateNew inserts a fresh character for the given owner. The position
// is unset until the spawn phase places it.
func (t *CharactersTable) CreateNew(owner string, f faction.Faction) *Character {
	id := t.tx.NextID()
	t.tx.TrackHandle(fmt.Sprintf("character/%d", id))
	return &Character{
		tx:       t.tx,
		regionOf: t.regionOf,
		id:       id,
		owner:    owner,
		faction:  f,
		isNew:    true,
	}
}

// GetById returns a handle for the character, or nil if it does not
// exist.
func (t *CharactersTable) GetById(id uint64) *Character {
	var row characterRow
	if !t.tx.Get(&row, "SELECT * FROM characters WHERE id = ?", id) {
		return nil
	}
	t.tx.TrackHandle(fmt.Sprintf("character/%d", id))

	c := &Character{
		tx:            t.tx,
		regionOf:      t.regionOf,
		id:            row.Id,
		owner:         row.Owner,
		faction:       faction.Faction(row.Faction),
		pos:           hex.Coord{X: row.X, Y: row.Y},
		inBuilding:    row.InBuilding,
		enterBuilding: row.EnterBuilding,
		busy:          row.Busy != 0,
		ongoing:       row.Ongoing,
	}
	if err := json.Unmarshal([]byte(row.Proto), &c.proto); err != nil {
		panic(fmt.Sprintf("db: corrupt character proto for %d: %v", id, err))
	}
	return c
}

func (t *CharactersTable) queryIds(query string, args ...any) []uint64 {
	var ids []uint64
	t.tx.Select(&ids, query, args...)
	return ids
}

// QueryAllIds returns every character id, ascending.
func (t *CharactersTable) QueryAllIds() []uint64 {
	return t.queryIds("SELECT id FROM characters ORDER BY id")
}

// QueryForOwner returns the ids of an account's characters, ascending.
func (t *CharactersTable) QueryForOwner(owner string) []uint64 {
	return t.queryIds(
		"SELECT id FROM characters WHERE owner = ? ORDER BY id", owner)
}

// CountForOwner returns how many characters an account owns.
func (t *CharactersTable) CountForOwner(owner string) int {
	var n int
	t.tx.Get(&n, "SELECT COUNT(*) FROM characters WHERE owner = ?", owner)
	return n
}

// QueryMoving returns the ids of characters with waypoints, ascending.
func (t *CharactersTable) QueryMoving() []uint64 {
	return t.queryIds(
		"SELECT id FROM characters WHERE ismoving = 1 ORDER BY id")
}

// QueryMining returns the ids of actively mining characters, ascending.
func (t *CharactersTable) QueryMining() []uint64 {
	return t.queryIds(
		"SELECT id FROM characters WHERE ismining = 1 ORDER BY id")
}

// QueryWithAttacks returns the ids of armed characters, ascending.
func (t *CharactersTable) QueryWithAttacks() []uint64 {
	return t.queryIds(
		"SELECT id FROM characters WHERE attackrange > 0 ORDER BY id")
}

// QueryWithTarget returns the ids of characters with an acquired
// target, ascending.
func (t *CharactersTable) QueryWithTarget() []uint64 {
	return t.queryIds(
		"SELECT id FROM characters WHERE hastarget = 1 ORDER BY id")
}

// QueryForRegen returns the ids of characters eligible for shield
// regeneration, ascending.
func (t *CharactersTable) QueryForRegen() []uint64 {
	return t.queryIds(
		"SELECT id FROM characters WHERE canregen = 1 ORDER BY id")
}

// QueryWithEnterBuilding returns the ids of characters with a pending
// enter-building intent, ascending.
func (t *CharactersTable) QueryWithEnterBuilding() []uint64 {
	return t.queryIds(
		"SELECT id FROM characters WHERE enterbuilding != 0 ORDER BY id")
}

// QueryWithEffects returns the ids of characters with active or staged
// status effects, ascending.
func (t *CharactersTable) QueryWithEffects() []uint64 {
	return t.queryIds("SELECT id FROM characters WHERE fx > 0 ORDER BY id")
}

// QueryInBuilding returns the ids of characters inside the given
// building, ascending.
func (t *CharactersTable) QueryInBuilding(buildingId uint64) []uint64 {
	return t.queryIds(
		"SELECT id FROM characters WHERE inbuilding = ? ORDER BY id",
		buildingId)
}

// CharacterPosition is a lightweight projection used to build the
// dynamic obstacle map without allocating row handles.
type CharacterPosition struct {
	Id      uint64 `db:"id"`
	Faction int    `db:"faction"`
	X       int    `db:"x"`
	Y       int    `db:"y"`
}

// QueryPositions returns position and faction of every character on the
// map (not inside buildings), ordered by id.
func (t *CharactersTable) QueryPositions() []CharacterPosition {
	var rows []CharacterPosition
	t.tx.Select(&rows, `SELECT id, faction, x, y FROM characters
		WHERE inbuilding = 0 ORDER BY id`)
	return rows
}

// Release writes any modifications back and invalidates the handle.
func (c *Character) Release() {
	defer c.tx.UntrackHandle(fmt.Sprintf("character/%d", c.id))

	if c.deleted {
		if c.isNew {
			return
		}
		c.tx.MustExec("DELETE FROM characters WHERE id = ?", c.id)
		return
	}

	if c.isNew || c.dirtyProto {
		raw, err := json.Marshal(c.proto)
		if err != nil {
			panic(fmt.Sprintf("db: marshal character proto: %v", err))
		}
		c.tx.MustExec(`INSERT OR REPLACE INTO characters
			(id, owner, faction, x, y, region, inbuilding, enterbuilding,
			 busy, ismoving, ismining, hastarget, canregen, attackrange,
			 fx, ongoing, proto)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.id, c.owner, int(c.faction), c.pos.X, c.pos.Y, c.region(),
			c.inBuilding, c.enterBuilding,
			boolInt(c.busy), boolInt(c.isMoving()), boolInt(c.isMining()),
			boolInt(c.proto.Target != nil), boolInt(c.canRegen()),
			c.proto.Combat.MaxRange(),
			fxMask(c.proto.Effects, c.proto.StagedEffects),
			c.ongoing, string(raw))
		return
	}

	if c.dirtyFields {
		c.tx.MustExec(`UPDATE characters SET owner = ?, x = ?, y = ?,
			region = ?, inbuilding = ?, enterbuilding = ?, busy = ?,
			ongoing = ? WHERE id = ?`,
			c.owner, c.pos.X, c.pos.Y, c.region(), c.inBuilding,
			c.enterBuilding, boolInt(c.busy), c.ongoing, c.id)
	}
}

func (c *Character) region() uint64 {
	if c.inBuilding != 0 {
		return 0
	}
	return c.regionOf(c.pos)
}

func (c *Character) isMoving() bool {
	return c.proto.Movement != nil && len(c.proto.Movement.Waypoints) > 0
}

func (c *Character) isMining() bool {
	return c.proto.Mining != nil && c.proto.Mining.Active
}

func (c *Character) canRegen() bool {
	rd := c.proto.RegenData
	return rd.ShieldRegenMhp > 0 && c.proto.HP.Shield < rd.MaxShield
}

// Delete marks the row for deletion on release.
func (c *Character) Delete() {
	c.deleted = true
}

// GetId returns the character id.
func (c *Character) GetId() uint64 {
	return c.id
}

// GetOwner returns the owning account name.
func (c *Character) GetOwner() string {
	return c.owner
}

// SetOwner transfers the character to another account.
func (c *Character) SetOwner(owner string) {
	c.owner = owner
	c.dirtyFields = true
}

// GetFaction returns the character's immutable faction.
func (c *Character) GetFaction() faction.Faction {
	return c.faction
}

// GetPosition returns the map position. Only valid while the character
// is not inside a building.
func (c *Character) GetPosition() hex.Coord {
	return c.pos
}

// SetPosition moves the character on the map.
func (c *Character) SetPosition(pos hex.Coord) {
	c.pos = pos
	c.inBuilding = 0
	c.dirtyFields = true
}

// IsInBuilding reports whether the character is inside a building.
func (c *Character) IsInBuilding() bool {
	return c.inBuilding != 0
}

// GetBuildingId returns the building the character is inside of, or
// zero.
func (c *Character) GetBuildingId() uint64 {
	return c.inBuilding
}

// SetInBuilding teleports the character into a building; the map
// position is cleared.
func (c *Character) SetInBuilding(buildingId uint64) {
	c.inBuilding = buildingId
	c.pos = hex.Coord{}
	c.dirtyFields = true
}

// GetEnterBuilding returns the pending enter-building intent, or zero.
func (c *Character) GetEnterBuilding() uint64 {
	return c.enterBuilding
}

// SetEnterBuilding sets or clears the enter-building intent.
func (c *Character) SetEnterBuilding(buildingId uint64) {
	c.enterBuilding = buildingId
	c.dirtyFields = true
}

// IsBusy reports whether the character is tied up in an ongoing
// operation.
func (c *Character) IsBusy() bool {
	return c.busy
}

// SetBusy sets or clears the busy flag.
func (c *Character) SetBusy(busy bool) {
	c.busy = busy
	c.dirtyFields = true
}

// GetOngoingId returns the ongoing operation carried by the character,
// or zero.
func (c *Character) GetOngoingId() uint64 {
	return c.ongoing
}

// SetOngoingId links or clears the carried ongoing operation.
func (c *Character) SetOngoingId(id uint64) {
	c.ongoing = id
	c.dirtyFields = true
}

// GetProto gives read access to the character payload.
func (c *Character) GetProto() *CharacterProto {
	return &c.proto
}

// MutableProto gives write access to the character payload and marks it
// dirty.
func (c *Character) MutableProto() *CharacterProto {
	c.dirtyProto = true
	return &c.proto
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
