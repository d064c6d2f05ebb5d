package db

import (
	"fmt"

	"github.com/talgya/outpost/internal/params"
	"github.com/talgya/outpost/internal/storage"
)

// DexOrderType distinguishes bids from asks. The numeric values are the
// stored database values.
type DexOrderType int

const (
	DexBid DexOrderType = 1
	DexAsk DexOrderType = 2
)

// DexOrder is a row handle for one resting order. Orders are mostly
// immutable; only the quantity changes during partial fills.
type DexOrder struct {
	tx *storage.Tx

	id       uint64
	building uint64
	account  string
	kind     DexOrderType
	item     string
	quantity int64
	price    params.Amount

	isNew   bool
	deleted bool
	dirty   bool
}

// DexOrderRow is the raw projection used when scanning the book.
type DexOrderRow struct {
	Id       uint64 `db:"id"`
	Building uint64 `db:"building"`
	Account  string `db:"account"`
	Type     int    `db:"type"`
	Item     string `db:"item"`
	Quantity int64  `db:"quantity"`
	Price    int64  `db:"price"`
}

// DexOrdersTable creates and looks up order handles.
type DexOrdersTable struct {
	tx *storage.Tx
}

// NewDexOrdersTable binds the table to a block transaction.
func NewDexOrdersTable(tx *storage.Tx) *DexOrdersTable {
	return &DexOrdersTable{tx: tx}
}

// CreateNew inserts a fresh resting order.
func (t *DexOrdersTable) CreateNew(building uint64, account string,
	kind DexOrderType, item string, quantity int64,
	price params.Amount) *DexOrder {
	id := t.tx.NextID()
	t.tx.TrackHandle(fmt.Sprintf("dexorder/%d", id))
	return &DexOrder{
		tx:       t.tx,
		id:       id,
		building: building,
		account:  account,
		kind:     kind,
		item:     item,
		quantity: quantity,
		price:    price,
		isNew:    true,
	}
}

// GetById returns a handle for the order, or nil if it does not exist.
func (t *DexOrdersTable) GetById(id uint64) *DexOrder {
	var row DexOrderRow
	if !t.tx.Get(&row, "SELECT * FROM dex_orders WHERE id = ?", id) {
		return nil
	}
	t.tx.TrackHandle(fmt.Sprintf("dexorder/%d", id))
	return &DexOrder{
		tx:       t.tx,
		id:       row.Id,
		building: row.Building,
		account:  row.Account,
		kind:     DexOrderType(row.Type),
		item:     row.Item,
		quantity: row.Quantity,
		price:    row.Price,
	}
}

// QueryAll returns every order row, ordered by id.
func (t *DexOrdersTable) QueryAll() []DexOrderRow {
	var rows []DexOrderRow
	t.tx.Select(&rows, "SELECT * FROM dex_orders ORDER BY id")
	return rows
}

// QueryForBuilding returns the orders of one building grouped for
// order-book display: by item, type, then price and id ascending.
func (t *DexOrdersTable) QueryForBuilding(building uint64) []DexOrderRow {
	var rows []DexOrderRow
	t.tx.Select(&rows, `SELECT * FROM dex_orders WHERE building = ?
		ORDER BY item, type, price, id`, building)
	return rows
}

// QueryToMatchBid returns the resting asks a new bid with the given
// price limit can fill, best (cheapest, oldest) first.
func (t *DexOrdersTable) QueryToMatchBid(building uint64, item string,
	limitPrice params.Amount) []DexOrderRow {
	var rows []DexOrderRow
	t.tx.Select(&rows, `SELECT * FROM dex_orders
		WHERE building = ? AND item = ? AND type = ? AND price <= ?
		ORDER BY price, id`, building, item, int(DexAsk), limitPrice)
	return rows
}

// QueryToMatchAsk returns the resting bids a new ask with the given
// price limit can fill, best (highest, oldest) first.
func (t *DexOrdersTable) QueryToMatchAsk(building uint64, item string,
	limitPrice params.Amount) []DexOrderRow {
	var rows []DexOrderRow
	t.tx.Select(&rows, `SELECT * FROM dex_orders
		WHERE building = ? AND item = ? AND type = ? AND price >= ?
		ORDER BY price DESC, id`, building, item, int(DexBid), limitPrice)
	return rows
}

// QueryForBuildingOrders returns all orders of a building ordered by
// id, used when the building is destroyed.
func (t *DexOrdersTable) QueryForBuildingOrders(building uint64) []DexOrderRow {
	var rows []DexOrderRow
	t.tx.Select(&rows,
		"SELECT * FROM dex_orders WHERE building = ? ORDER BY id", building)
	return rows
}

// ReservedCoins sums the coins locked in resting bids per account,
// keyed by account name.
func (t *DexOrdersTable) ReservedCoins() map[string]params.Amount {
	var rows []DexOrderRow
	t.tx.Select(&rows,
		"SELECT * FROM dex_orders WHERE type = ? ORDER BY id", int(DexBid))
	res := make(map[string]params.Amount)
	for _, r := range rows {
		res[r.Account] += params.Amount(r.Quantity) * r.Price
	}
	return res
}

// Release writes any modifications back and invalidates the handle.
func (o *DexOrder) Release() {
	defer o.tx.UntrackHandle(fmt.Sprintf("dexorder/%d", o.id))

	if o.deleted || o.quantity == 0 {
		if !o.isNew {
			o.tx.MustExec("DELETE FROM dex_orders WHERE id = ?", o.id)
		}
		return
	}

	if o.isNew {
		o.tx.MustExec(`INSERT INTO dex_orders
			(id, building, account, type, item, quantity, price)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			o.id, o.building, o.account, int(o.kind), o.item,
			o.quantity, o.price)
		return
	}

	if o.dirty {
		o.tx.MustExec("UPDATE dex_orders SET quantity = ? WHERE id = ?",
			o.quantity, o.id)
	}
}

// GetId returns the order id.
func (o *DexOrder) GetId() uint64 {
	return o.id
}

// GetBuilding returns the building the order rests in.
func (o *DexOrder) GetBuilding() uint64 {
	return o.building
}

// GetAccount returns the order's owning account.
func (o *DexOrder) GetAccount() string {
	return o.account
}

// GetType returns whether the order is a bid or an ask.
func (o *DexOrder) GetType() DexOrderType {
	return o.kind
}

// GetItem returns the traded item type.
func (o *DexOrder) GetItem() string {
	return o.item
}

// GetPrice returns the per-unit limit price.
func (o *DexOrder) GetPrice() params.Amount {
	return o.price
}

// GetQuantity returns the open quantity.
func (o *DexOrder) GetQuantity() int64 {
	return o.quantity
}

// ReduceQuantity subtracts a filled amount. Reaching zero deletes the
// order on release.
func (o *DexOrder) ReduceQuantity(q int64) {
	if q <= 0 || q > o.quantity {
		panic(fmt.Sprintf("db: invalid fill of %d on order %d (open %d)",
			q, o.id, o.quantity))
	}
	o.quantity -= q
	o.dirty = true
}

// Delete marks the order for removal on release.
func (o *DexOrder) Delete() {
	o.deleted = true
}

// DexTradeRow is one immutable trade-history entry.
type DexTradeRow struct {
	Id       uint64 `db:"id"`
	Height   uint64 `db:"height"`
	Time     int64  `db:"time"`
	Building uint64 `db:"building"`
	Item     string `db:"item"`
	Quantity int64  `db:"quantity"`
	Price    int64  `db:"price"`
	Seller   string `db:"seller"`
	Buyer    string `db:"buyer"`
}

// DexHistoryTable records and queries past trades.
type DexHistoryTable struct {
	tx *storage.Tx
}

// NewDexHistoryTable binds the table to a block transaction.
func NewDexHistoryTable(tx *storage.Tx) *DexHistoryTable {
	return &DexHistoryTable{tx: tx}
}

// RecordTrade appends a trade to the history.
func (t *DexHistoryTable) RecordTrade(height uint64, time int64,
	building uint64, item string, quantity int64, price params.Amount,
	seller, buyer string) {
	id := t.tx.NextID()
	t.tx.MustExec(`INSERT INTO dex_trades
		(id, height, time, building, item, quantity, price, seller, buyer)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, height, time, building, item, quantity, price, seller, buyer)
}

// QueryForItem returns the trade history of an item in a building from
// oldest to newest.
func (t *DexHistoryTable) QueryForItem(item string,
	building uint64) []DexTradeRow {
	var rows []DexTradeRow
	t.tx.Select(&rows, `SELECT * FROM dex_trades
		WHERE building = ? AND item = ? ORDER BY id`, building, item)
	return rows
}
