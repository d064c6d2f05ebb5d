package db

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/outpost/internal/faction"
	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/params"
	"github.com/talgya/outpost/internal/storage"
)

// Building is a row handle for one building or foundation.
type Building struct {
	tx *storage.Tx

	id         uint64
	kind       string
	owner      string
	faction    faction.Faction
	centre     hex.Coord
	rotation   int
	foundation bool
	ongoing    uint64

	proto BuildingProto

	isNew       bool
	deleted     bool
	dirtyFields bool
	dirtyProto  bool
}

// BuildingsTable creates and looks up building handles.
type BuildingsTable struct {
	tx *storage.Tx
}

// NewBuildingsTable binds the table to a block transaction.
func NewBuildingsTable(tx *storage.Tx) *BuildingsTable {
	return &BuildingsTable{tx: tx}
}

type buildingRow struct {
	Id          uint64 `db:"id"`
	Type        string `db:"type"`
	Owner       string `db:"owner"`
	Faction     int    `db:"faction"`
	X           int    `db:"x"`
	Y           int    `db:"y"`
	Rotation    int    `db:"rotation"`
	Foundation  int    `db:"foundation"`
	HasTarget   int    `db:"hastarget"`
	CanRegen    int    `db:"canregen"`
	AttackRange int    `db:"attackrange"`
	Fx          int    `db:"fx"`
	Ongoing     uint64 `db:"ongoing"`
	Proto       string `db:"proto"`
}

// CreateNew inserts a fresh foundation of the given type. Ancient
// buildings use an empty owner.
func (t *BuildingsTable) CreateNew(kind, owner string, f faction.Faction,
	centre hex.Coord, rotation int) *Building {
	id := t.tx.NextID()
	t.tx.TrackHandle(fmt.Sprintf("building/%d", id))
	return &Building{
		tx:         t.tx,
		id:         id,
		kind:       kind,
		owner:      owner,
		faction:    f,
		centre:     centre,
		rotation:   rotation,
		foundation: true,
		isNew:      true,
	}
}

// GetById returns a handle for the building, or nil if it does not
// exist.
func (t *BuildingsTable) GetById(id uint64) *Building {
	var row buildingRow
	if !t.tx.Get(&row, "SELECT * FROM buildings WHERE id = ?", id) {
		return nil
	}
	t.tx.TrackHandle(fmt.Sprintf("building/%d", id))

	b := &Building{
		tx:         t.tx,
		id:         row.Id,
		kind:       row.Type,
		owner:      row.Owner,
		faction:    faction.Faction(row.Faction),
		centre:     hex.Coord{X: row.X, Y: row.Y},
		rotation:   row.Rotation,
		foundation: row.Foundation != 0,
		ongoing:    row.Ongoing,
	}
	if err := json.Unmarshal([]byte(row.Proto), &b.proto); err != nil {
		panic(fmt.Sprintf("db: corrupt building proto for %d: %v", id, err))
	}
	return b
}

func (t *BuildingsTable) queryIds(query string, args ...any) []uint64 {
	var ids []uint64
	t.tx.Select(&ids, query, args...)
	return ids
}

// QueryAllIds returns every building id, ascending.
func (t *BuildingsTable) QueryAllIds() []uint64 {
	return t.queryIds("SELECT id FROM buildings ORDER BY id")
}

// QueryWithAttacks returns the ids of armed buildings, ascending.
func (t *BuildingsTable) QueryWithAttacks() []uint64 {
	return t.queryIds(
		"SELECT id FROM buildings WHERE attackrange > 0 ORDER BY id")
}

// QueryWithTarget returns the ids of buildings with an acquired target,
// ascending.
func (t *BuildingsTable) QueryWithTarget() []uint64 {
	return t.queryIds(
		"SELECT id FROM buildings WHERE hastarget = 1 ORDER BY id")
}

// QueryForRegen returns the ids of buildings eligible for shield
// regeneration, ascending.
func (t *BuildingsTable) QueryForRegen() []uint64 {
	return t.queryIds(
		"SELECT id FROM buildings WHERE canregen = 1 ORDER BY id")
}

// QueryWithEffects returns the ids of buildings with active or staged
// status effects, ascending.
func (t *BuildingsTable) QueryWithEffects() []uint64 {
	return t.queryIds("SELECT id FROM buildings WHERE fx > 0 ORDER BY id")
}

// BuildingPlacement is a lightweight projection used to resolve
// occupied tiles at block start.
type BuildingPlacement struct {
	Id       uint64 `db:"id"`
	Type     string `db:"type"`
	X        int    `db:"x"`
	Y        int    `db:"y"`
	Rotation int    `db:"rotation"`
}

// QueryPlacements returns type, centre and rotation of every building,
// ordered by id.
func (t *BuildingsTable) QueryPlacements() []BuildingPlacement {
	var rows []BuildingPlacement
	t.tx.Select(&rows,
		"SELECT id, type, x, y, rotation FROM buildings ORDER BY id")
	return rows
}

// Release writes any modifications back and invalidates the handle.
func (b *Building) Release() {
	defer b.tx.UntrackHandle(fmt.Sprintf("building/%d", b.id))

	if b.deleted {
		if b.isNew {
			return
		}
		b.tx.MustExec("DELETE FROM buildings WHERE id = ?", b.id)
		return
	}

	if b.isNew || b.dirtyProto {
		raw, err := json.Marshal(b.proto)
		if err != nil {
			panic(fmt.Sprintf("db: marshal building proto: %v", err))
		}
		b.tx.MustExec(`INSERT OR REPLACE INTO buildings
			(id, type, owner, faction, x, y, rotation, foundation,
			 hastarget, canregen, attackrange, fx, ongoing, proto)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.id, b.kind, b.owner, int(b.faction),
			b.centre.X, b.centre.Y, b.rotation, boolInt(b.foundation),
			boolInt(b.proto.Target != nil), boolInt(b.canRegen()),
			b.proto.Combat.MaxRange(),
			fxMask(b.proto.Effects, b.proto.StagedEffects),
			b.ongoing, string(raw))
		return
	}

	if b.dirtyFields {
		b.tx.MustExec(`UPDATE buildings SET owner = ?, foundation = ?,
			ongoing = ? WHERE id = ?`,
			b.owner, boolInt(b.foundation), b.ongoing, b.id)
	}
}

func (b *Building) canRegen() bool {
	rd := b.proto.RegenData
	return rd.ShieldRegenMhp > 0 && b.proto.HP.Shield < rd.MaxShield
}

// Delete marks the row for deletion on release.
func (b *Building) Delete() {
	b.deleted = true
}

// GetId returns the building id.
func (b *Building) GetId() uint64 {
	return b.id
}

// GetType returns the building type name.
func (b *Building) GetType() string {
	return b.kind
}

// GetOwner returns the owning account, or "" for Ancient buildings.
func (b *Building) GetOwner() string {
	return b.owner
}

// SetOwner transfers the building to another account.
func (b *Building) SetOwner(owner string) {
	b.owner = owner
	b.dirtyFields = true
}

// GetFaction returns the building faction.
func (b *Building) GetFaction() faction.Faction {
	return b.faction
}

// GetCentre returns the placement centre.
func (b *Building) GetCentre() hex.Coord {
	return b.centre
}

// GetRotation returns the placement rotation in 60-degree steps.
func (b *Building) GetRotation() int {
	return b.rotation
}

// IsFoundation reports whether the building is still under
// construction.
func (b *Building) IsFoundation() bool {
	return b.foundation
}

// SetFinished transitions the foundation into a finished building.
func (b *Building) SetFinished(height uint64) {
	if !b.foundation {
		panic(fmt.Sprintf("db: building %d is already finished", b.id))
	}
	b.foundation = false
	b.dirtyFields = true
	p := b.MutableProto()
	p.Age.FinishedHeight = &height
	p.ConstructionInventory = Inventory{}
}

// GetOngoingId returns the carried ongoing operation (construction or
// config update), or zero.
func (b *Building) GetOngoingId() uint64 {
	return b.ongoing
}

// SetOngoingId links or clears the carried ongoing operation.
func (b *Building) SetOngoingId(id uint64) {
	b.ongoing = id
	b.dirtyFields = true
}

// GetProto gives read access to the building payload.
func (b *Building) GetProto() *BuildingProto {
	return &b.proto
}

// MutableProto gives write access to the building payload and marks it
// dirty.
func (b *Building) MutableProto() *BuildingProto {
	b.dirtyProto = true
	return &b.proto
}

// OccupiedTiles returns the tiles a building of the given type covers
// when placed with the given centre and rotation.
func OccupiedTiles(data *params.BuildingData, centre hex.Coord,
	rotation int) []hex.Coord {
	tiles := make([]hex.Coord, 0, len(data.Shape))
	for _, off := range data.Shape {
		tiles = append(tiles, centre.Add(off.RotateCW(rotation)))
	}
	return tiles
}
