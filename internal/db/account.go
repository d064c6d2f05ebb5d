package db

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/outpost/internal/faction"
	"github.com/talgya/outpost/internal/params"
	"github.com/talgya/outpost/internal/storage"
)

// Account is a row handle for one player account. Obtain instances
// through AccountsTable and release them when done; releasing writes
// modifications back.
type Account struct {
	tx *storage.Tx

	name            string
	faction         faction.Faction
	balance         params.Amount
	burnsaleBalance params.Amount
	kills           uint64
	fame            uint64

	proto AccountProto

	isNew       bool
	dirtyFields bool
	dirtyProto  bool
}

// AccountsTable creates and looks up account handles.
type AccountsTable struct {
	tx *storage.Tx
}

// NewAccountsTable binds the table to a block transaction.
func NewAccountsTable(tx *storage.Tx) *AccountsTable {
	return &AccountsTable{tx: tx}
}

type accountRow struct {
	Name            string `db:"name"`
	Faction         int    `db:"faction"`
	Balance         int64  `db:"balance"`
	BurnsaleBalance int64  `db:"burnsale_balance"`
	Kills           uint64 `db:"kills"`
	Fame            uint64 `db:"fame"`
	Proto           string `db:"proto"`
}

// CreateNew inserts an uninitialised account with zero balance. The
// faction is set later by the first valid character creation.
func (t *AccountsTable) CreateNew(name string) *Account {
	t.tx.TrackHandle("account/" + name)
	return &Account{
		tx:    t.tx,
		name:  name,
		isNew: true,
	}
}

// GetByName returns a handle for the named account, or nil if it does
// not exist.
func (t *AccountsTable) GetByName(name string) *Account {
	var row accountRow
	if !t.tx.Get(&row,
		"SELECT * FROM accounts WHERE name = ?", name) {
		return nil
	}
	t.tx.TrackHandle("account/" + name)

	a := &Account{
		tx:              t.tx,
		name:            row.Name,
		faction:         faction.Faction(row.Faction),
		balance:         row.Balance,
		burnsaleBalance: row.BurnsaleBalance,
		kills:           row.Kills,
		fame:            row.Fame,
	}
	if err := json.Unmarshal([]byte(row.Proto), &a.proto); err != nil {
		panic(fmt.Sprintf("db: corrupt account proto for %q: %v", name, err))
	}
	return a
}

// QueryAllNames returns every account name in sorted order.
func (t *AccountsTable) QueryAllNames() []string {
	var names []string
	t.tx.Select(&names, "SELECT name FROM accounts ORDER BY name")
	return names
}

// Release writes any modifications back and invalidates the handle.
func (a *Account) Release() {
	defer a.tx.UntrackHandle("account/" + a.name)

	if a.isNew {
		raw, err := json.Marshal(a.proto)
		if err != nil {
			panic(fmt.Sprintf("db: marshal account proto: %v", err))
		}
		a.tx.MustExec(`INSERT INTO accounts
			(name, faction, balance, burnsale_balance, kills, fame, proto)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.name, int(a.faction), a.balance, a.burnsaleBalance,
			a.kills, a.fame, string(raw))
		return
	}

	if a.dirtyProto {
		raw, err := json.Marshal(a.proto)
		if err != nil {
			panic(fmt.Sprintf("db: marshal account proto: %v", err))
		}
		a.tx.MustExec(`UPDATE accounts SET faction = ?, balance = ?,
			burnsale_balance = ?, kills = ?, fame = ?, proto = ?
			WHERE name = ?`,
			int(a.faction), a.balance, a.burnsaleBalance,
			a.kills, a.fame, string(raw), a.name)
		return
	}

	if a.dirtyFields {
		a.tx.MustExec(`UPDATE accounts SET faction = ?, balance = ?,
			burnsale_balance = ?, kills = ?, fame = ? WHERE name = ?`,
			int(a.faction), a.balance, a.burnsaleBalance,
			a.kills, a.fame, a.name)
	}
}

// GetName returns the account name.
func (a *Account) GetName() string {
	return a.name
}

// GetFaction returns the account faction, which is Invalid until the
// account is initialised.
func (a *Account) GetFaction() faction.Faction {
	return a.faction
}

// IsInitialised reports whether the account has chosen a faction.
func (a *Account) IsInitialised() bool {
	return a.faction != faction.Invalid
}

// SetFaction initialises the account faction. The faction is immutable
// once set.
func (a *Account) SetFaction(f faction.Faction) {
	if a.faction != faction.Invalid {
		panic(fmt.Sprintf("db: faction of account %q is already set", a.name))
	}
	a.faction = f
	a.dirtyFields = true
}

// GetBalance returns the spendable coin balance.
func (a *Account) GetBalance() params.Amount {
	return a.balance
}

// AddBalance changes the balance by delta. Overdrawing is a
// consistency error; callers validate first.
func (a *Account) AddBalance(delta params.Amount) {
	next := a.balance + delta
	if next < 0 {
		panic(fmt.Sprintf("db: balance of %q would become %d", a.name, next))
	}
	a.balance = next
	a.dirtyFields = true
}

// GetBurnsaleBalance returns the vCHI bought through the burnsale.
func (a *Account) GetBurnsaleBalance() params.Amount {
	return a.burnsaleBalance
}

// AddBurnsaleBalance credits vCHI minted through the burnsale.
func (a *Account) AddBurnsaleBalance(delta params.Amount) {
	next := a.burnsaleBalance + delta
	if next < 0 {
		panic(fmt.Sprintf("db: burnsale balance of %q would become %d",
			a.name, next))
	}
	a.burnsaleBalance = next
	a.dirtyFields = true
}

// GetKills returns the kill counter.
func (a *Account) GetKills() uint64 {
	return a.kills
}

// IncrementKills advances the kill counter by one.
func (a *Account) IncrementKills() {
	a.kills++
	a.dirtyFields = true
}

// GetFame returns the fame value.
func (a *Account) GetFame() uint64 {
	return a.fame
}

// SetFame sets the fame value.
func (a *Account) SetFame(fame uint64) {
	a.fame = fame
	a.dirtyFields = true
}

// GetProto gives read access to the account payload.
func (a *Account) GetProto() *AccountProto {
	return &a.proto
}

// MutableProto gives write access to the account payload and marks it
// dirty.
func (a *Account) MutableProto() *AccountProto {
	a.dirtyProto = true
	return &a.proto
}

// AddSkillXp accrues experience for a named skill.
func (a *Account) AddSkillXp(skill string, xp int64) {
	p := a.MutableProto()
	if p.SkillXp == nil {
		p.SkillXp = make(map[string]int64)
	}
	p.SkillXp[skill] += xp
}
