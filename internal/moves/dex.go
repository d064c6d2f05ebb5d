package moves

import (
	"encoding/json"
	"log/slog"

	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/params"
)

// dexRequest is one element of the "x" array.
type dexRequest struct {
	B json.RawMessage `json:"b,omitempty"`
	T string          `json:"t,omitempty"`
	I string          `json:"i,omitempty"`
	N json.RawMessage `json:"n,omitempty"`
	// Bp is the limit price for bids and asks.
	Bp json.RawMessage `json:"bp,omitempty"`
	// R is the recipient of an item transfer.
	R string `json:"r,omitempty"`
	// C cancels the referenced order.
	C json.RawMessage `json:"c,omitempty"`
}

// processDexOps handles the "x" array: order placement, cancellation
// and item transfers inside building exchanges. DEX operations work
// for uninitialised accounts too; trading needs no faction.
func (p *Processor) processDexOps(name string, x []json.RawMessage) {
	for _, raw := range x {
		var req dexRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			continue
		}

		if len(req.C) > 0 {
			p.tryCancelOrder(name, &req)
			continue
		}

		buildingId, valid := parseInt(req.B)
		if !valid || buildingId <= 0 {
			continue
		}
		b := p.t.Buildings.GetById(uint64(buildingId))
		if b == nil {
			slog.Debug("dex operation in non-existing building",
				"id", buildingId)
			continue
		}
		if b.IsFoundation() || p.t.Params.Item(req.I) == nil {
			b.Release()
			continue
		}

		switch req.T {
		case "bid":
			p.tryPlaceBid(name, b, &req)
		case "ask":
			p.tryPlaceAsk(name, b, &req)
		case "transfer":
			p.tryTransferItems(name, b, &req)
		default:
			slog.Debug("unknown dex operation", "type", req.T)
		}
		b.Release()
	}
}

// payToSellerAndFee credits the seller with the sale proceeds minus
// fees. The combined fee is rounded up, so splitting an order cannot
// dodge fees entirely; the building owner's share is rounded down and
// paid out, and the rest is burnt.
func (p *Processor) payToSellerAndFee(seller string, b *db.Building,
	cost params.Amount) {
	baseBps := p.t.Params.DexFeeBps
	ownerBps := b.GetProto().Config.DexFeeBps

	total := (cost*(baseBps+ownerBps) + 9999) / 10000
	ownerFee := cost * ownerBps / 10000
	baseFee := total - ownerFee

	proceeds := cost - total
	if proceeds < 0 {
		proceeds = 0
	}

	p.t.Money.AddBurnt(baseFee)

	if ownerFee > 0 {
		switch {
		case b.GetOwner() == "":
			// Ownerless ancient buildings burn their share; every
			// coin stays accounted for.
			p.t.Money.AddBurnt(ownerFee)
		case b.GetOwner() == seller:
			proceeds += ownerFee
		default:
			owner := p.t.Accounts.GetByName(b.GetOwner())
			if owner == nil {
				panic("moves: building owner account does not exist")
			}
			owner.AddBalance(ownerFee)
			owner.Release()
		}
	}

	a := p.t.Accounts.GetByName(seller)
	if a == nil {
		panic("moves: dex seller account does not exist")
	}
	a.AddBalance(proceeds)
	a.Release()
}

// tryPlaceBid matches a new buy order against resting asks and rests
// the remainder, reserving its coins.
func (p *Processor) tryPlaceBid(name string, b *db.Building, req *dexRequest) {
	n, okN := parseInt(req.N)
	price, okP := parseInt(req.Bp)
	if !okN || n <= 0 || !okP || price < 0 {
		return
	}

	a := p.t.Accounts.GetByName(name)
	if a == nil {
		panic("moves: dex bid for non-existing account")
	}
	if a.GetBalance() < n*price {
		slog.Debug("bid not covered", "name", name, "total", n*price)
		a.Release()
		return
	}
	a.Release()

	remaining := n
	for _, row := range p.t.DexOrders.QueryToMatchBid(b.GetId(), req.I, price) {
		if remaining == 0 {
			break
		}
		if row.Account == name {
			// Own resting orders are not crossed against.
			continue
		}

		fill := remaining
		if row.Quantity < fill {
			fill = row.Quantity
		}
		cost := fill * row.Price

		buyer := p.t.Accounts.GetByName(name)
		buyer.AddBalance(-cost)
		buyer.Release()

		p.payToSellerAndFee(row.Account, b, cost)

		// Asks already pulled the items out of the seller's store;
		// they materialise directly for the buyer.
		bi := p.t.Inventories.Get(b.GetId(), name)
		bi.MutableInventory().AddCount(req.I, fill)
		bi.Release()

		p.t.DexHistory.RecordTrade(p.t.Height, p.t.Timestamp, b.GetId(),
			req.I, fill, row.Price, row.Account, name)

		order := p.t.DexOrders.GetById(row.Id)
		order.ReduceQuantity(fill)
		order.Release()

		remaining -= fill
	}

	if remaining > 0 {
		// The resting part reserves its coins at the limit price.
		a := p.t.Accounts.GetByName(name)
		a.AddBalance(-remaining * price)
		a.Release()

		order := p.t.DexOrders.CreateNew(b.GetId(), name, db.DexBid,
			req.I, remaining, price)
		order.Release()
	}
}

// tryPlaceAsk matches a new sell order against resting bids and rests
// the remainder, reserving its items.
func (p *Processor) tryPlaceAsk(name string, b *db.Building, req *dexRequest) {
	n, okN := parseInt(req.N)
	price, okP := parseInt(req.Bp)
	if !okN || n <= 0 || !okP || price < 0 {
		return
	}

	bi := p.t.Inventories.Get(b.GetId(), name)
	if bi.GetInventory().Count(req.I) < n {
		slog.Debug("ask not covered", "name", name, "item", req.I)
		bi.Release()
		return
	}
	// The full amount leaves the store up front; fills hand it to
	// buyers and the rest is the resting reservation.
	bi.MutableInventory().AddCount(req.I, -n)
	bi.Release()

	remaining := n
	for _, row := range p.t.DexOrders.QueryToMatchAsk(b.GetId(), req.I, price) {
		if remaining == 0 {
			break
		}
		if row.Account == name {
			continue
		}

		fill := remaining
		if row.Quantity < fill {
			fill = row.Quantity
		}
		cost := fill * row.Price

		// The bid reserved its coins when it was placed.
		p.payToSellerAndFee(name, b, cost)

		bi := p.t.Inventories.Get(b.GetId(), row.Account)
		bi.MutableInventory().AddCount(req.I, fill)
		bi.Release()

		p.t.DexHistory.RecordTrade(p.t.Height, p.t.Timestamp, b.GetId(),
			req.I, fill, row.Price, name, row.Account)

		order := p.t.DexOrders.GetById(row.Id)
		order.ReduceQuantity(fill)
		order.Release()

		remaining -= fill
	}

	if remaining > 0 {
		order := p.t.DexOrders.CreateNew(b.GetId(), name, db.DexAsk,
			req.I, remaining, price)
		order.Release()
	}
}

// tryCancelOrder removes an own resting order and refunds its
// reservation.
func (p *Processor) tryCancelOrder(name string, req *dexRequest) {
	id, valid := parseInt(req.C)
	if !valid || id <= 0 {
		return
	}

	order := p.t.DexOrders.GetById(uint64(id))
	if order == nil {
		return
	}
	if order.GetAccount() != name {
		order.Release()
		return
	}

	switch order.GetType() {
	case db.DexBid:
		a := p.t.Accounts.GetByName(name)
		a.AddBalance(params.Amount(order.GetQuantity()) * order.GetPrice())
		a.Release()
	case db.DexAsk:
		bi := p.t.Inventories.Get(order.GetBuilding(), name)
		bi.MutableInventory().AddCount(order.GetItem(), order.GetQuantity())
		bi.Release()
	}

	order.Delete()
	order.Release()
}

// tryTransferItems moves items to another account's store in the same
// building.
func (p *Processor) tryTransferItems(name string, b *db.Building,
	req *dexRequest) {
	n, valid := parseInt(req.N)
	if !valid || n <= 0 || req.R == "" || req.R == name {
		return
	}

	src := p.t.Inventories.Get(b.GetId(), name)
	if src.GetInventory().Count(req.I) < n {
		src.Release()
		return
	}

	recipient := p.t.Accounts.GetByName(req.R)
	if recipient == nil {
		src.Release()
		return
	}
	recipient.Release()

	src.MutableInventory().AddCount(req.I, -n)
	src.Release()

	dst := p.t.Inventories.Get(b.GetId(), req.R)
	dst.MutableInventory().AddCount(req.I, n)
	dst.Release()
}
