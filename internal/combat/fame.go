package combat

import (
	"fmt"
	"sort"

	"github.com/talgya/outpost/internal/db"
)

const (
	// maxFame caps a player's fame.
	maxFame = 9999
	// famePerKill is the fame transferred when a character dies.
	famePerKill = 100
)

// FameLevel maps a fame value to its matchmaking level.
func FameLevel(fame uint64) int {
	level := int(fame / 1000)
	if level > 8 {
		return 8
	}
	return level
}

// FameUpdater accumulates fame deltas over a block's kills and applies
// them in one deterministic pass at the end of kill processing.
type FameUpdater struct {
	characters *db.CharactersTable
	accounts   *db.AccountsTable

	deltas map[string]int64
}

// NewFameUpdater creates an updater bound to the block's tables.
func NewFameUpdater(chars *db.CharactersTable,
	accounts *db.AccountsTable) *FameUpdater {
	return &FameUpdater{
		characters: chars,
		accounts:   accounts,
		deltas:     make(map[string]int64),
	}
}

// UpdateForKill processes the death of a character: every distinct
// killing account's kills counter advances, and fame transfers from
// the victim to the killers within one level of it.
func (fu *FameUpdater) UpdateForKill(victim uint64, attackers []uint64) {
	victimChar := fu.characters.GetById(victim)
	if victimChar == nil {
		panic(fmt.Sprintf("combat: fame update for non-existing character %d",
			victim))
	}
	victimOwner := victimChar.GetOwner()
	victimChar.Release()

	victimAccount := fu.accounts.GetByName(victimOwner)
	if victimAccount == nil {
		panic(fmt.Sprintf("combat: character %d refers to non-existing owner",
			victim))
	}
	victimFame := victimAccount.GetFame()
	victimLevel := FameLevel(victimFame)
	victimAccount.Release()

	// The distinct set of accounts that damaged the victim recently.
	ownerSet := make(map[string]bool)
	for _, attackerId := range attackers {
		c := fu.characters.GetById(attackerId)
		if c == nil {
			panic(fmt.Sprintf(
				"combat: damage list refers to non-existing character %d",
				attackerId))
		}
		ownerSet[c.GetOwner()] = true
		c.Release()
	}

	owners := make([]string, 0, len(ownerSet))
	for owner := range ownerSet {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	var inRange []string
	for _, owner := range owners {
		a := fu.accounts.GetByName(owner)
		if a == nil {
			panic(fmt.Sprintf("combat: killer account %q does not exist",
				owner))
		}
		a.IncrementKills()

		level := FameLevel(a.GetFame())
		if level-victimLevel <= 1 && victimLevel-level <= 1 {
			inRange = append(inRange, owner)
		}
		a.Release()
	}

	if len(inRange) == 0 {
		return
	}

	fameLost := int64(famePerKill)
	if int64(victimFame) < fameLost {
		fameLost = int64(victimFame)
	}

	famePerKiller := fameLost / int64(len(owners))
	for _, owner := range inRange {
		fu.deltas[owner] += famePerKiller
	}
	fu.deltas[victimOwner] -= fameLost
}

// Apply writes the accumulated deltas back, clamping fame to its valid
// range. Accounts are processed in sorted order.
func (fu *FameUpdater) Apply() {
	names := make([]string, 0, len(fu.deltas))
	for name := range fu.deltas {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		a := fu.accounts.GetByName(name)
		if a == nil {
			panic(fmt.Sprintf("combat: fame delta for non-existing account %q",
				name))
		}
		fame := int64(a.GetFame()) + fu.deltas[name]
		if fame < 0 {
			fame = 0
		}
		if fame > maxFame {
			fame = maxFame
		}
		a.SetFame(uint64(fame))
		a.Release()
	}
}
