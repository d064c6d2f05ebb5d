package db

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/outpost/internal/storage"
)

// Region is a row handle for one map region. Regions exist implicitly;
// a row is only written once a region differs from the default state.
type Region struct {
	tx *storage.Tx

	id            uint64
	currentHeight uint64
	resourceLeft  int64

	proto RegionProto

	inDb        bool
	dirtyFields bool
	dirtyProto  bool
}

// RegionsTable creates and looks up region handles.
type RegionsTable struct {
	tx *storage.Tx

	// currentHeight stamps the modified-height column on write-back,
	// which lets state export skip untouched regions.
	currentHeight uint64
}

// NewRegionsTable binds the table to a block transaction at the given
// height.
func NewRegionsTable(tx *storage.Tx, currentHeight uint64) *RegionsTable {
	return &RegionsTable{tx: tx, currentHeight: currentHeight}
}

type regionRow struct {
	Id             uint64 `db:"id"`
	ModifiedHeight uint64 `db:"modifiedheight"`
	ResourceLeft   int64  `db:"resourceleft"`
	Proto          string `db:"proto"`
}

// GetById returns a handle for the region. Regions exist implicitly,
// so this never returns nil; absent rows yield the default state.
func (t *RegionsTable) GetById(id uint64) *Region {
	t.tx.TrackHandle(fmt.Sprintf("region/%d", id))

	r := &Region{tx: t.tx, id: id, currentHeight: t.currentHeight}
	var row regionRow
	if t.tx.Get(&row, "SELECT * FROM regions WHERE id = ?", id) {
		r.inDb = true
		r.resourceLeft = row.ResourceLeft
		if err := json.Unmarshal([]byte(row.Proto), &r.proto); err != nil {
			panic(fmt.Sprintf("db: corrupt region proto for %d: %v", id, err))
		}
	}
	return r
}

// QueryModifiedIds returns the ids of regions modified at or after the
// given height, ascending.
func (t *RegionsTable) QueryModifiedIds(sinceHeight uint64) []uint64 {
	var ids []uint64
	t.tx.Select(&ids,
		"SELECT id FROM regions WHERE modifiedheight >= ? ORDER BY id",
		sinceHeight)
	return ids
}

// QueryAllIds returns the ids of all non-default regions, ascending.
func (t *RegionsTable) QueryAllIds() []uint64 {
	return t.QueryModifiedIds(0)
}

// Release writes any modifications back and invalidates the handle.
func (r *Region) Release() {
	defer r.tx.UntrackHandle(fmt.Sprintf("region/%d", r.id))

	if !r.dirtyFields && !r.dirtyProto {
		return
	}

	raw, err := json.Marshal(r.proto)
	if err != nil {
		panic(fmt.Sprintf("db: marshal region proto: %v", err))
	}
	r.tx.MustExec(`INSERT OR REPLACE INTO regions
		(id, modifiedheight, resourceleft, proto) VALUES (?, ?, ?, ?)`,
		r.id, r.currentHeight, r.resourceLeft, string(raw))
}

// GetId returns the region id.
func (r *Region) GetId() uint64 {
	return r.id
}

// GetResourceLeft returns the minable resource amount remaining.
func (r *Region) GetResourceLeft() int64 {
	return r.resourceLeft
}

// SetResourceLeft sets the minable resource amount.
func (r *Region) SetResourceLeft(left int64) {
	if left < 0 {
		panic(fmt.Sprintf("db: region %d resource would become %d",
			r.id, left))
	}
	r.resourceLeft = left
	r.dirtyFields = true
}

// GetProto gives read access to the region payload.
func (r *Region) GetProto() *RegionProto {
	return &r.proto
}

// MutableProto gives write access to the region payload and marks it
// dirty.
func (r *Region) MutableProto() *RegionProto {
	r.dirtyProto = true
	return &r.proto
}
