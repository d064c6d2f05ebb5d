package db

import (
	"github.com/talgya/outpost/internal/storage"
)

// DamageLists tracks which attackers recently damaged which victims.
// Entries expire after a configured number of blocks without a refresh;
// the surviving set decides kill attribution.
type DamageLists struct {
	tx            *storage.Tx
	currentHeight uint64
}

// NewDamageLists binds the damage lists to a block transaction at the
// given height.
func NewDamageLists(tx *storage.Tx, currentHeight uint64) *DamageLists {
	return &DamageLists{tx: tx, currentHeight: currentHeight}
}

// AddEntry records (or refreshes) that attacker hit victim this block.
func (dl *DamageLists) AddEntry(victim, attacker uint64) {
	dl.tx.MustExec(`INSERT OR REPLACE INTO damage_lists
		(victim, attacker, height) VALUES (?, ?, ?)`,
		victim, attacker, dl.currentHeight)
}

// RemoveOld drops all entries whose last refresh is maxAge or more
// blocks in the past.
func (dl *DamageLists) RemoveOld(maxAge uint64) {
	if dl.currentHeight < maxAge {
		return
	}
	dl.tx.MustExec("DELETE FROM damage_lists WHERE height <= ?",
		dl.currentHeight-maxAge)
}

// GetAttackers returns the attackers with a live entry against the
// victim, ascending.
func (dl *DamageLists) GetAttackers(victim uint64) []uint64 {
	var ids []uint64
	dl.tx.Select(&ids, `SELECT attacker FROM damage_lists
		WHERE victim = ? ORDER BY attacker`, victim)
	return ids
}

// RemoveCharacter drops every entry referencing a dead character, on
// either side.
func (dl *DamageLists) RemoveCharacter(id uint64) {
	dl.tx.MustExec(
		"DELETE FROM damage_lists WHERE victim = ? OR attacker = ?", id, id)
}

// damageListRow is the full row projection used by the validator.
type damageListRow struct {
	Victim   uint64 `db:"victim"`
	Attacker uint64 `db:"attacker"`
	Height   uint64 `db:"height"`
}

// OldestHeight returns the smallest refresh height present, or false
// when the lists are empty.
func (dl *DamageLists) OldestHeight() (uint64, bool) {
	var rows []damageListRow
	dl.tx.Select(&rows,
		"SELECT * FROM damage_lists ORDER BY height LIMIT 1")
	if len(rows) == 0 {
		return 0, false
	}
	return rows[0].Height, true
}
