// Package faction defines the team identity shared by accounts,
// characters and buildings.
package faction

import "fmt"

// Faction is the team identity. Opposing factions may attack each
// other, same-faction fighters may buff each other.
type Faction uint8

const (
	// Invalid is the zero value and marks an uninitialised faction.
	Invalid Faction = iota
	Red
	Green
	Blue
	// Ancient marks neutral map-owned buildings.
	Ancient
)

// FromString parses the one-letter move encoding ("r", "g", "b").
// Ancient cannot be chosen by players.
func FromString(s string) (Faction, bool) {
	switch s {
	case "r":
		return Red, true
	case "g":
		return Green, true
	case "b":
		return Blue, true
	default:
		return Invalid, false
	}
}

// String returns the one-letter encoding used in moves and JSON state.
func (f Faction) String() string {
	switch f {
	case Red:
		return "r"
	case Green:
		return "g"
	case Blue:
		return "b"
	case Ancient:
		return "a"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(f))
	}
}

// Playable lists the factions a player can join, in fixed order.
var Playable = [3]Faction{Red, Green, Blue}
