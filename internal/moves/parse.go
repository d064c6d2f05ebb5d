package moves

import (
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/params"
)

// MoveEntry is one player's entry in a block's move array.
type MoveEntry struct {
	Name  string                     `json:"name"`
	Move  json.RawMessage            `json:"move"`
	Out   map[string]json.RawMessage `json:"out,omitempty"`
	Burnt json.RawMessage            `json:"burnt,omitempty"`
}

// MoveBody is the parsed inner move object.
type MoveBody struct {
	Vc json.RawMessage            `json:"vc,omitempty"`
	Nc []json.RawMessage          `json:"nc,omitempty"`
	C  map[string]json.RawMessage `json:"c,omitempty"`
	B  map[string]json.RawMessage `json:"b,omitempty"`
	S  []json.RawMessage          `json:"s,omitempty"`
	X  []json.RawMessage          `json:"x,omitempty"`
}

// CharacterUpdate is the parsed per-character sub-intent object.
type CharacterUpdate struct {
	Wp       json.RawMessage `json:"wp,omitempty"`
	Send     json.RawMessage `json:"send,omitempty"`
	Prospect json.RawMessage `json:"prospect,omitempty"`
	Mine     json.RawMessage `json:"mine,omitempty"`
	Drop     json.RawMessage `json:"drop,omitempty"`
	Pu       json.RawMessage `json:"pu,omitempty"`
	Eb       json.RawMessage `json:"eb,omitempty"`
	Xb       json.RawMessage `json:"xb,omitempty"`
	Fb       json.RawMessage `json:"fb,omitempty"`
}

// ParsedCharacterUpdate pairs a character id with its parsed
// sub-intents.
type ParsedCharacterUpdate struct {
	Id uint64
	CharacterUpdate
}

// SortedCharacterUpdates parses the "c" object of a move into
// per-character updates, ordered by ascending id. Invalid keys and
// unparsable values are dropped.
func SortedCharacterUpdates(mv MoveBody) []ParsedCharacterUpdate {
	var updates []ParsedCharacterUpdate
	for key, raw := range mv.C {
		id, valid := ParseIdString(key)
		if !valid {
			slog.Debug("invalid character id key", "key", key)
			continue
		}
		var upd CharacterUpdate
		if err := json.Unmarshal(raw, &upd); err != nil {
			continue
		}
		updates = append(updates, ParsedCharacterUpdate{
			Id:              id,
			CharacterUpdate: upd,
		})
	}
	sort.Slice(updates, func(i, j int) bool {
		return updates[i].Id < updates[j].Id
	})
	return updates
}

// CanStartOperation checks the shared preconditions for starting any
// operation on a character.
func CanStartOperation(c *db.Character) bool {
	return !c.IsBusy() && !c.IsInBuilding()
}

// ExtractMoveBasics pulls name, move object and payments out of one
// move entry. Returns false for entries the engine ignores entirely.
func ExtractMoveBasics(entry *MoveEntry, devAddr string) (mv MoveBody,
	paidToDev params.Amount, burnt params.Amount, ok bool) {
	if entry.Name == "" || len(entry.Move) == 0 {
		return MoveBody{}, 0, 0, false
	}
	if err := json.Unmarshal(entry.Move, &mv); err != nil {
		slog.Debug("ignoring unparsable move", "name", entry.Name)
		return MoveBody{}, 0, 0, false
	}

	if raw, found := entry.Out[devAddr]; found {
		amount, valid := ParseAmount(raw)
		if !valid {
			panic("moves: non-numeric amount in block input")
		}
		paidToDev = amount
	}

	if len(entry.Burnt) > 0 {
		amount, valid := ParseAmount(entry.Burnt)
		if !valid {
			panic("moves: non-numeric burnt amount in block input")
		}
		burnt = amount
	}

	return mv, paidToDev, burnt, true
}

// ParseWaypoints validates a "wp" value: an array of integer coordinate
// objects. An empty array is valid and clears movement. Returns the
// parsed list and whether the value was well-formed.
func ParseWaypoints(raw json.RawMessage) ([]hex.Coord, bool) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, false
	}
	wp := make([]hex.Coord, 0, len(arr))
	for _, el := range arr {
		c, valid := parseCoord(el)
		if !valid {
			return nil, false
		}
		wp = append(wp, c)
	}
	return wp, true
}

// isEmptyObject accepts exactly the JSON value {}.
func isEmptyObject(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	return len(obj) == 0
}

// ParseFungible parses the {f: {item: count}} form used by drop and
// pick-up intents. Counts must be positive canonical integers.
func ParseFungible(raw json.RawMessage) (map[string]int64, bool) {
	var outer struct {
		F map[string]json.RawMessage `json:"f"`
	}
	if err := json.Unmarshal(raw, &outer); err != nil {
		return nil, false
	}
	if outer.F == nil {
		return nil, false
	}

	res := make(map[string]int64, len(outer.F))
	for item, countRaw := range outer.F {
		count, valid := parseInt(countRaw)
		if !valid || count <= 0 {
			return nil, false
		}
		res[item] = count
	}
	return res, true
}

// foundBuilding is the parsed "fb" intent.
type foundBuilding struct {
	Type     string
	Rotation int
}

// parseFoundBuilding validates an "fb" value {t: type, rot: int}. A
// rotation outside [0, 5] rejects the intent.
func parseFoundBuilding(raw json.RawMessage, p *params.Params) (foundBuilding, bool) {
	var obj struct {
		T   json.RawMessage `json:"t"`
		Rot json.RawMessage `json:"rot"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return foundBuilding{}, false
	}

	var kind string
	if err := json.Unmarshal(obj.T, &kind); err != nil {
		return foundBuilding{}, false
	}
	if p.Building(kind) == nil {
		return foundBuilding{}, false
	}

	rot, valid := parseInt(obj.Rot)
	if !valid || rot < 0 || rot > 5 {
		return foundBuilding{}, false
	}

	return foundBuilding{Type: kind, Rotation: int(rot)}, true
}

// CanSetWaypoints checks the preconditions shared by the applier and
// the pending projection for a waypoints update. They are the same as
// for starting an operation: the character must be its own master.
func CanSetWaypoints(c *db.Character) bool {
	return CanStartOperation(c)
}

// CanProspectRegion checks whether a character may start prospecting
// the region it stands in. The region handle belongs to the caller.
func CanProspectRegion(c *db.Character, r *db.Region, height uint64,
	p *params.Params) bool {
	if c.IsBusy() || c.IsInBuilding() {
		return false
	}
	if r.GetProto().ProspectingCharacter != 0 {
		return false
	}
	if prospection := r.GetProto().Prospection; prospection != nil {
		// Re-prospecting is allowed only once the region is mined
		// out and the previous result has gone stale.
		if r.GetResourceLeft() > 0 {
			return false
		}
		if height < prospection.Height+p.ProspectionExpiryBlocks {
			return false
		}
	}
	return true
}

// CanMineRegion checks whether a character may start mining the region
// it stands in.
func CanMineRegion(c *db.Character, r *db.Region) bool {
	if c.IsBusy() || c.IsInBuilding() {
		return false
	}
	if c.GetProto().Mining == nil {
		return false
	}
	if r.GetProto().Prospection == nil {
		return false
	}
	return r.GetResourceLeft() > 0
}
