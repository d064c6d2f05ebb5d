package db

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/outpost/internal/storage"
)

// Ongoing is a row handle for one multi-block operation. Exactly one
// carrier (character or building) references it back.
type Ongoing struct {
	tx *storage.Tx

	id          uint64
	endHeight   uint64
	characterId uint64
	buildingId  uint64

	proto OngoingProto

	isNew       bool
	deleted     bool
	dirtyFields bool
	dirtyProto  bool
}

// OngoingsTable creates and looks up ongoing-operation handles.
type OngoingsTable struct {
	tx *storage.Tx
}

// NewOngoingsTable binds the table to a block transaction.
func NewOngoingsTable(tx *storage.Tx) *OngoingsTable {
	return &OngoingsTable{tx: tx}
}

type ongoingRow struct {
	Id        uint64 `db:"id"`
	EndHeight uint64 `db:"endheight"`
	Character uint64 `db:"character"`
	Building  uint64 `db:"building"`
	Proto     string `db:"proto"`
}

// CreateNew inserts a fresh operation finishing at endHeight.
func (t *OngoingsTable) CreateNew(startHeight, endHeight uint64) *Ongoing {
	id := t.tx.NextID()
	t.tx.TrackHandle(fmt.Sprintf("ongoing/%d", id))
	return &Ongoing{
		tx:        t.tx,
		id:        id,
		endHeight: endHeight,
		proto:     OngoingProto{StartHeight: startHeight},
		isNew:     true,
	}
}

// GetById returns a handle for the operation, or nil if it does not
// exist.
func (t *OngoingsTable) GetById(id uint64) *Ongoing {
	var row ongoingRow
	if !t.tx.Get(&row, "SELECT * FROM ongoings WHERE id = ?", id) {
		return nil
	}
	t.tx.TrackHandle(fmt.Sprintf("ongoing/%d", id))

	o := &Ongoing{
		tx:          t.tx,
		id:          row.Id,
		endHeight:   row.EndHeight,
		characterId: row.Character,
		buildingId:  row.Building,
	}
	if err := json.Unmarshal([]byte(row.Proto), &o.proto); err != nil {
		panic(fmt.Sprintf("db: corrupt ongoing proto for %d: %v", id, err))
	}
	return o
}

// QueryAllIds returns every operation id, ascending.
func (t *OngoingsTable) QueryAllIds() []uint64 {
	var ids []uint64
	t.tx.Select(&ids, "SELECT id FROM ongoings ORDER BY id")
	return ids
}

// QueryForHeight returns the ids of operations completing exactly at
// the given height, ascending.
func (t *OngoingsTable) QueryForHeight(height uint64) []uint64 {
	var ids []uint64
	t.tx.Select(&ids,
		"SELECT id FROM ongoings WHERE endheight = ? ORDER BY id", height)
	return ids
}

// Release writes any modifications back and invalidates the handle.
func (o *Ongoing) Release() {
	defer o.tx.UntrackHandle(fmt.Sprintf("ongoing/%d", o.id))

	if o.deleted {
		if o.isNew {
			return
		}
		o.tx.MustExec("DELETE FROM ongoings WHERE id = ?", o.id)
		return
	}

	if o.isNew || o.dirtyProto {
		raw, err := json.Marshal(o.proto)
		if err != nil {
			panic(fmt.Sprintf("db: marshal ongoing proto: %v", err))
		}
		o.tx.MustExec(`INSERT OR REPLACE INTO ongoings
			(id, endheight, character, building, proto)
			VALUES (?, ?, ?, ?, ?)`,
			o.id, o.endHeight, o.characterId, o.buildingId, string(raw))
		return
	}

	if o.dirtyFields {
		o.tx.MustExec(`UPDATE ongoings SET endheight = ?, character = ?,
			building = ? WHERE id = ?`,
			o.endHeight, o.characterId, o.buildingId, o.id)
	}
}

// Delete marks the row for deletion on release.
func (o *Ongoing) Delete() {
	o.deleted = true
}

// GetId returns the operation id.
func (o *Ongoing) GetId() uint64 {
	return o.id
}

// GetEndHeight returns the completion height.
func (o *Ongoing) GetEndHeight() uint64 {
	return o.endHeight
}

// SetEndHeight reschedules the completion height.
func (o *Ongoing) SetEndHeight(height uint64) {
	o.endHeight = height
	o.dirtyFields = true
}

// GetCharacterId returns the carrying character, or zero.
func (o *Ongoing) GetCharacterId() uint64 {
	return o.characterId
}

// SetCharacterId links the operation to a carrying character.
func (o *Ongoing) SetCharacterId(id uint64) {
	o.characterId = id
	o.dirtyFields = true
}

// GetBuildingId returns the carrying building, or zero.
func (o *Ongoing) GetBuildingId() uint64 {
	return o.buildingId
}

// SetBuildingId links the operation to a carrying building.
func (o *Ongoing) SetBuildingId(id uint64) {
	o.buildingId = id
	o.dirtyFields = true
}

// GetProto gives read access to the operation payload.
func (o *Ongoing) GetProto() *OngoingProto {
	return &o.proto
}

// MutableProto gives write access to the operation payload and marks it
// dirty.
func (o *Ongoing) MutableProto() *OngoingProto {
	o.dirtyProto = true
	return &o.proto
}
