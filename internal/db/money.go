package db

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/outpost/internal/params"
	"github.com/talgya/outpost/internal/storage"
)

// MoneySupply is the singleton bookkeeping row for coins entering and
// leaving circulation, plus the remaining prospecting prizes.
type MoneySupply struct {
	tx *storage.Tx

	burnsaleSold params.Amount
	gifted       params.Amount
	burnt        params.Amount
	prizes       map[string]int

	inDb  bool
	dirty bool
}

// NewMoneySupply loads the bookkeeping row, creating the default state
// on first use.
func NewMoneySupply(tx *storage.Tx, p *params.Params) *MoneySupply {
	tx.TrackHandle("money/1")

	m := &MoneySupply{tx: tx, prizes: make(map[string]int)}

	type moneyRow struct {
		Id           int    `db:"id"`
		BurnsaleSold int64  `db:"burnsale_sold"`
		Gifted       int64  `db:"gifted"`
		Burnt        int64  `db:"burnt"`
		Prizes       string `db:"prizes"`
	}
	var row moneyRow
	if tx.Get(&row, "SELECT * FROM money WHERE id = 1") {
		m.inDb = true
		m.burnsaleSold = row.BurnsaleSold
		m.gifted = row.Gifted
		m.burnt = row.Burnt
		if err := json.Unmarshal([]byte(row.Prizes), &m.prizes); err != nil {
			panic(fmt.Sprintf("db: corrupt prize counters: %v", err))
		}
		return m
	}

	for _, prize := range p.PrizeTable {
		m.prizes[prize.Name] = prize.Number
	}
	m.dirty = true
	return m
}

// Release writes the bookkeeping row back.
func (m *MoneySupply) Release() {
	defer m.tx.UntrackHandle("money/1")

	if !m.dirty {
		return
	}

	raw, err := json.Marshal(m.prizes)
	if err != nil {
		panic(fmt.Sprintf("db: marshal prize counters: %v", err))
	}
	m.tx.MustExec(`INSERT OR REPLACE INTO money
		(id, burnsale_sold, gifted, burnt, prizes) VALUES (1, ?, ?, ?, ?)`,
		m.burnsaleSold, m.gifted, m.burnt, string(raw))
}

// GetBurnsaleSold returns the vCHI sold through the burnsale so far.
func (m *MoneySupply) GetBurnsaleSold() params.Amount {
	return m.burnsaleSold
}

// AddBurnsaleSold advances the burnsale sold counter.
func (m *MoneySupply) AddBurnsaleSold(delta params.Amount) {
	m.burnsaleSold += delta
	m.dirty = true
}

// GetGifted returns the coins gifted on non-main chains.
func (m *MoneySupply) GetGifted() params.Amount {
	return m.gifted
}

// AddGifted records gifted coins entering circulation.
func (m *MoneySupply) AddGifted(delta params.Amount) {
	m.gifted += delta
	m.dirty = true
}

// GetBurnt returns the coins burnt out of circulation.
func (m *MoneySupply) GetBurnt() params.Amount {
	return m.burnt
}

// AddBurnt records burnt coins.
func (m *MoneySupply) AddBurnt(delta params.Amount) {
	m.burnt += delta
	m.dirty = true
}

// PrizesLeft returns how many of a prize remain.
func (m *MoneySupply) PrizesLeft(name string) int {
	return m.prizes[name]
}

// DecrementPrize hands out one prize.
func (m *MoneySupply) DecrementPrize(name string) {
	left := m.prizes[name]
	if left <= 0 {
		panic(fmt.Sprintf("db: no %q prizes left to hand out", name))
	}
	m.prizes[name] = left - 1
	m.dirty = true
}
