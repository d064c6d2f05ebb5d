// Package statejson renders the consensus game state as JSON. All
// integer fields serialize as JSON integers; hit points with a
// non-zero milli fraction serialize as a decimal with up to three
// fractional digits, trailing zeros dropped.
// Output ordering is deterministic: arrays sort by id or name and maps
// marshal key-sorted.
package statejson

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/moves"
)

// MhpValue serializes a hit-point value with milli fraction: plain
// integer when the fraction is zero, otherwise a decimal of the whole
// value plus thousandths with trailing zeros dropped (30.5, 30.25).
type MhpValue struct {
	Whole  uint32
	Millis uint32
}

// MarshalJSON renders the value as described on MhpValue.
func (v MhpValue) MarshalJSON() ([]byte, error) {
	if v.Millis == 0 {
		return []byte(fmt.Sprintf("%d", v.Whole)), nil
	}
	s := fmt.Sprintf("%d.%03d", v.Whole, v.Millis)
	s = strings.TrimRight(s, "0")
	return []byte(s), nil
}

type hpJSON struct {
	Armour uint32   `json:"armour"`
	Shield MhpValue `json:"shield"`
}

func hpToJSON(hp db.HP) hpJSON {
	return hpJSON{
		Armour: hp.Armour,
		Shield: MhpValue{Whole: hp.Shield, Millis: hp.ShieldMhp},
	}
}

type accountJSON struct {
	Name            string           `json:"name"`
	Faction         string           `json:"faction,omitempty"`
	Balance         int64            `json:"balance"`
	BurnsaleBalance int64            `json:"burnsalebalance"`
	Kills           uint64           `json:"kills"`
	Fame            uint64           `json:"fame"`
	SkillXp         map[string]int64 `json:"skillxp,omitempty"`
}

type characterJSON struct {
	Id      uint64 `json:"id"`
	Owner   string `json:"owner"`
	Faction string `json:"faction"`

	Position   *hex.Coord `json:"position,omitempty"`
	InBuilding uint64     `json:"inbuilding,omitempty"`

	Busy bool `json:"busy,omitempty"`

	Speed     uint32       `json:"speed"`
	Waypoints []hex.Coord  `json:"waypoints,omitempty"`

	HP        hpJSON           `json:"hp"`
	Inventory map[string]int64 `json:"inventory,omitempty"`

	Mining bool `json:"mining,omitempty"`
}

type buildingJSON struct {
	Id         uint64    `json:"id"`
	Type       string    `json:"type"`
	Owner      string    `json:"owner,omitempty"`
	Faction    string    `json:"faction"`
	Centre     hex.Coord `json:"centre"`
	Rotation   int       `json:"rotation"`
	Foundation bool      `json:"foundation,omitempty"`

	FoundedHeight  uint64  `json:"foundedheight"`
	FinishedHeight *uint64 `json:"finishedheight,omitempty"`

	ServiceFeePercent int64 `json:"servicefeepercent"`
	DexFeeBps         int64 `json:"dexfeebps"`

	HP hpJSON `json:"hp"`
}

type regionJSON struct {
	Id                   uint64 `json:"id"`
	ResourceLeft         int64  `json:"resourceleft"`
	Prospection          *db.Prospection `json:"prospection,omitempty"`
	ProspectingCharacter uint64 `json:"prospectingcharacter,omitempty"`
}

type groundLootJSON struct {
	Position  hex.Coord        `json:"position"`
	Inventory map[string]int64 `json:"inventory"`
}

type ongoingJSON struct {
	Id        uint64 `json:"id"`
	EndHeight uint64 `json:"endheight"`
	Character uint64 `json:"character,omitempty"`
	Building  uint64 `json:"building,omitempty"`
	Operation string `json:"operation"`
}

type dexOrderJSON struct {
	Id       uint64 `json:"id"`
	Building uint64 `json:"building"`
	Account  string `json:"account"`
	Type     string `json:"type"`
	Item     string `json:"item"`
	Quantity int64  `json:"quantity"`
	Price    int64  `json:"price"`
}

type moneyJSON struct {
	BurnsaleSold int64          `json:"burnsalesold"`
	Gifted       int64          `json:"gifted"`
	Burnt        int64          `json:"burnt"`
	PrizesLeft   map[string]int `json:"prizesleft"`
}

type fullStateJSON struct {
	Accounts   []accountJSON    `json:"accounts"`
	Characters []characterJSON  `json:"characters"`
	Buildings  []buildingJSON   `json:"buildings"`
	Regions    []regionJSON     `json:"regions"`
	GroundLoot []groundLootJSON `json:"groundloot"`
	Ongoings   []ongoingJSON    `json:"ongoings"`
	DexOrders  []dexOrderJSON   `json:"dexorders"`
	Money      moneyJSON        `json:"moneysupply"`
}

// FullState renders the complete game state.
func FullState(t *moves.Tables) json.RawMessage {
	return render(t, 0)
}

// RegionsSince renders the full state, with the regions array limited
// to regions modified at or after the given height.
func RegionsSince(t *moves.Tables, height uint64) json.RawMessage {
	return render(t, height)
}

func render(t *moves.Tables, regionsSince uint64) json.RawMessage {
	out := fullStateJSON{
		Accounts:   []accountJSON{},
		Characters: []characterJSON{},
		Buildings:  []buildingJSON{},
		Regions:    []regionJSON{},
		GroundLoot: []groundLootJSON{},
		Ongoings:   []ongoingJSON{},
		DexOrders:  []dexOrderJSON{},
	}

	for _, name := range t.Accounts.QueryAllNames() {
		a := t.Accounts.GetByName(name)
		entry := accountJSON{
			Name:            name,
			Balance:         a.GetBalance(),
			BurnsaleBalance: a.GetBurnsaleBalance(),
			Kills:           a.GetKills(),
			Fame:            a.GetFame(),
			SkillXp:         a.GetProto().SkillXp,
		}
		if a.IsInitialised() {
			entry.Faction = a.GetFaction().String()
		}
		a.Release()
		out.Accounts = append(out.Accounts, entry)
	}

	for _, id := range t.Characters.QueryAllIds() {
		c := t.Characters.GetById(id)
		proto := c.GetProto()
		entry := characterJSON{
			Id:      id,
			Owner:   c.GetOwner(),
			Faction: c.GetFaction().String(),
			Busy:    c.IsBusy(),
			Speed:   proto.Speed,
			HP:      hpToJSON(proto.HP),
			Mining:  proto.Mining != nil && proto.Mining.Active,
		}
		if c.IsInBuilding() {
			entry.InBuilding = c.GetBuildingId()
		} else {
			pos := c.GetPosition()
			entry.Position = &pos
		}
		if proto.Movement != nil {
			entry.Waypoints = proto.Movement.Waypoints
		}
		if !proto.Inventory.IsEmpty() {
			entry.Inventory = proto.Inventory.Fungible
		}
		c.Release()
		out.Characters = append(out.Characters, entry)
	}

	for _, id := range t.Buildings.QueryAllIds() {
		b := t.Buildings.GetById(id)
		proto := b.GetProto()
		entry := buildingJSON{
			Id:                id,
			Type:              b.GetType(),
			Owner:             b.GetOwner(),
			Faction:           b.GetFaction().String(),
			Centre:            b.GetCentre(),
			Rotation:          b.GetRotation(),
			Foundation:        b.IsFoundation(),
			FoundedHeight:     proto.Age.FoundedHeight,
			FinishedHeight:    proto.Age.FinishedHeight,
			ServiceFeePercent: proto.Config.ServiceFeePercent,
			DexFeeBps:         proto.Config.DexFeeBps,
			HP:                hpToJSON(proto.HP),
		}
		b.Release()
		out.Buildings = append(out.Buildings, entry)
	}

	for _, id := range t.Regions.QueryModifiedIds(regionsSince) {
		r := t.Regions.GetById(id)
		proto := r.GetProto()
		out.Regions = append(out.Regions, regionJSON{
			Id:                   id,
			ResourceLeft:         r.GetResourceLeft(),
			Prospection:          proto.Prospection,
			ProspectingCharacter: proto.ProspectingCharacter,
		})
		r.Release()
	}

	for _, pos := range t.GroundLoot.QueryAllPositions() {
		loot := t.GroundLoot.GetByPosition(pos)
		out.GroundLoot = append(out.GroundLoot, groundLootJSON{
			Position:  pos,
			Inventory: loot.GetInventory().Fungible,
		})
		loot.Release()
	}

	for _, id := range t.Ongoings.QueryAllIds() {
		op := t.Ongoings.GetById(id)
		out.Ongoings = append(out.Ongoings, ongoingJSON{
			Id:        id,
			EndHeight: op.GetEndHeight(),
			Character: op.GetCharacterId(),
			Building:  op.GetBuildingId(),
			Operation: operationName(op.GetProto()),
		})
		op.Release()
	}

	for _, row := range t.DexOrders.QueryAll() {
		kind := "bid"
		if db.DexOrderType(row.Type) == db.DexAsk {
			kind = "ask"
		}
		out.DexOrders = append(out.DexOrders, dexOrderJSON{
			Id:       row.Id,
			Building: row.Building,
			Account:  row.Account,
			Type:     kind,
			Item:     row.Item,
			Quantity: row.Quantity,
			Price:    row.Price,
		})
	}

	out.Money = moneyJSON{
		BurnsaleSold: t.Money.GetBurnsaleSold(),
		Gifted:       t.Money.GetGifted(),
		Burnt:        t.Money.GetBurnt(),
		PrizesLeft:   prizeCounts(t),
	}

	raw, err := json.Marshal(out)
	if err != nil {
		panic(fmt.Sprintf("statejson: marshal state: %v", err))
	}
	return raw
}

func prizeCounts(t *moves.Tables) map[string]int {
	counts := make(map[string]int, len(t.Params.PrizeTable))
	for _, prize := range t.Params.PrizeTable {
		counts[prize.Name] = t.Money.PrizesLeft(prize.Name)
	}
	return counts
}

func operationName(proto *db.OngoingProto) string {
	switch {
	case proto.Prospection != nil:
		return "prospection"
	case proto.ArmourRepair != nil:
		return "armourrepair"
	case proto.BlueprintCopy != nil:
		return "blueprintcopy"
	case proto.ItemConstruction != nil:
		return "itemconstruction"
	case proto.BuildingConstruction != nil:
		return "buildingconstruction"
	case proto.BuildingUpdate != nil:
		return "buildingupdate"
	default:
		return "unknown"
	}
}

type tradeJSON struct {
	Height   uint64 `json:"height"`
	Time     int64  `json:"time"`
	Quantity int64  `json:"quantity"`
	Price    int64  `json:"price"`
	Seller   string `json:"seller"`
	Buyer    string `json:"buyer"`
}

// TradeHistory renders the trade history of one item in one building,
// oldest first.
func TradeHistory(t *moves.Tables, item string, building uint64) json.RawMessage {
	trades := []tradeJSON{}
	for _, row := range t.DexHistory.QueryForItem(item, building) {
		trades = append(trades, tradeJSON{
			Height:   row.Height,
			Time:     row.Time,
			Quantity: row.Quantity,
			Price:    row.Price,
			Seller:   row.Seller,
			Buyer:    row.Buyer,
		})
	}

	raw, err := json.Marshal(trades)
	if err != nil {
		panic(fmt.Sprintf("statejson: marshal trades: %v", err))
	}
	return raw
}
