package moves

import (
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/params"
)

// CoinOps is the parsed and validated "vc" sub-move: vCHI transfers,
// burns, and minting from burnt chain currency.
type CoinOps struct {
	Burnt     params.Amount
	Minted    params.Amount
	Transfers map[string]params.Amount
}

// ParseCoinOps validates the "vc" value against the account's balance.
// Transfers and burn together must be covered; minting is bounded by
// the burnsale stages and the chain coins burnt alongside the move.
func ParseCoinOps(a *db.Account, raw json.RawMessage, burntChi params.Amount,
	money *db.MoneySupply, p *params.Params) (CoinOps, bool) {
	var body struct {
		B json.RawMessage            `json:"b,omitempty"`
		M json.RawMessage            `json:"m,omitempty"`
		T map[string]json.RawMessage `json:"t,omitempty"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return CoinOps{}, false
	}

	var ops CoinOps
	var total params.Amount

	if len(body.B) > 0 {
		amount, valid := parseInt(body.B)
		if !valid || amount <= 0 {
			return CoinOps{}, false
		}
		ops.Burnt = amount
		total += amount
	}

	if body.T != nil {
		ops.Transfers = make(map[string]params.Amount, len(body.T))
		for recipient, amountRaw := range body.T {
			amount, valid := parseInt(amountRaw)
			if !valid || amount <= 0 || recipient == a.GetName() {
				return CoinOps{}, false
			}
			ops.Transfers[recipient] = amount
			total += amount
		}
	}

	if total > a.GetBalance() {
		slog.Debug("coin operations exceed balance",
			"name", a.GetName(), "total", total)
		return CoinOps{}, false
	}

	if len(body.M) > 0 {
		if !isEmptyObject(body.M) {
			return CoinOps{}, false
		}
		ops.Minted = burnsaleMintable(burntChi, money, p)
	}

	return ops, true
}

// burnsaleMintable computes how much vCHI the given burnt chain coins
// buy, walking the staged price schedule from the current sold total.
func burnsaleMintable(burntChi params.Amount, money *db.MoneySupply,
	p *params.Params) params.Amount {
	sold := money.GetBurnsaleSold()
	var stageStart params.Amount
	var minted params.Amount

	for _, stage := range p.BurnsaleStages {
		stageEnd := stageStart + stage.AmountSold
		if sold < stageEnd {
			available := stageEnd - sold
			// Price is burnt satoshi per full coin of vCHI.
			affordable := burntChi / stage.Price * 100000000
			take := available
			if affordable < take {
				take = affordable
			}
			minted += take
			sold += take
			burntChi -= take / 100000000 * stage.Price
			if burntChi <= 0 {
				break
			}
		}
		stageStart = stageEnd
	}

	return minted
}

// processCoinOps applies a validated "vc" sub-move.
func (p *Processor) processCoinOps(a *db.Account, raw json.RawMessage,
	burntChi params.Amount) {
	ops, valid := ParseCoinOps(a, raw, burntChi, p.t.Money, p.t.Params)
	if !valid {
		return
	}

	if ops.Burnt > 0 {
		a.AddBalance(-ops.Burnt)
		p.t.Money.AddBurnt(ops.Burnt)
	}

	recipients := make([]string, 0, len(ops.Transfers))
	for name := range ops.Transfers {
		recipients = append(recipients, name)
	}
	sort.Strings(recipients)

	for _, name := range recipients {
		amount := ops.Transfers[name]
		recipient := p.t.Accounts.GetByName(name)
		if recipient == nil {
			recipient = p.t.Accounts.CreateNew(name)
		}
		a.AddBalance(-amount)
		recipient.AddBalance(amount)
		recipient.Release()
	}

	if ops.Minted > 0 {
		// Minted coins are spendable and tracked separately for the
		// money-supply accounting.
		a.AddBalance(ops.Minted)
		a.AddBurnsaleBalance(ops.Minted)
		p.t.Money.AddBurnsaleSold(ops.Minted)
		slog.Debug("burnsale mint", "name", a.GetName(), "amount", ops.Minted)
	}
}
