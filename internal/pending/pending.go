// Package pending maintains the non-consensus projection of
// mempool-visible moves. It previews what confirmed processing would
// likely do, keyed for UI consumption, and is rebuilt from scratch
// whenever the confirmed state advances.
package pending

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/talgya/outpost/internal/faction"
	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/moves"
)

// noRegion marks the absence of a region id in a character state.
const noRegion uint64 = 0

// CharacterState is the pending view of one character.
type CharacterState struct {
	// Wp is the latest waypoint update, nil when none is pending. A
	// present-but-empty list is a pending movement stop.
	Wp *[]hex.Coord

	// ProspectingRegionId is the region the character will start
	// prospecting, or zero.
	ProspectingRegionId uint64

	// MiningRegionId is the region the character will start mining,
	// or zero.
	MiningRegionId uint64
}

// NewCharacter is one pending character creation.
type NewCharacter struct {
	Faction faction.Faction
}

// State accumulates the pending view between confirmed blocks.
type State struct {
	characters    map[uint64]*CharacterState
	newCharacters map[string][]NewCharacter
}

// NewState creates an empty pending state.
func NewState() *State {
	s := &State{}
	s.Clear()
	return s
}

// Clear resets all accumulated state.
func (s *State) Clear() {
	s.characters = make(map[uint64]*CharacterState)
	s.newCharacters = make(map[string][]NewCharacter)
}

// getCharacterState finds or creates the entry for a character.
func (s *State) getCharacterState(id uint64) *CharacterState {
	if st, found := s.characters[id]; found {
		return st
	}
	st := &CharacterState{}
	s.characters[id] = st
	return st
}

// AddCharacterWaypoints records a pending waypoint replacement. A
// pending prospection wins over movement; a pending mining operation
// is dropped, since moving stops mining.
func (s *State) AddCharacterWaypoints(id uint64, wp []hex.Coord) {
	st := s.getCharacterState(id)

	if st.ProspectingRegionId != noRegion {
		slog.Warn("pending prospection, ignoring waypoints", "character", id)
		return
	}
	if st.MiningRegionId != noRegion {
		slog.Warn("pending waypoints stop pending mining", "character", id)
		st.MiningRegionId = noRegion
	}

	cp := make([]hex.Coord, 0, len(wp))
	cp = append(cp, wp...)
	st.Wp = &cp
}

// AddCharacterProspecting records a pending prospection. The region is
// derived from the character's position, which cannot change while the
// pending state lives; a different region for the same character is a
// programmer error.
func (s *State) AddCharacterProspecting(id uint64, regionId uint64) {
	st := s.getCharacterState(id)

	if st.ProspectingRegionId != noRegion &&
		st.ProspectingRegionId != regionId {
		panic(fmt.Sprintf(
			"pending: character %d is pending to prospect region %d,"+
				" not %d", id, st.ProspectingRegionId, regionId))
	}

	st.ProspectingRegionId = regionId

	if st.Wp != nil {
		slog.Warn("pending prospection clears pending waypoints",
			"character", id)
		st.Wp = nil
	}
}

// AddCharacterMining records a pending mining start. Mining cannot
// start while a prospection or movement is pending.
func (s *State) AddCharacterMining(id uint64, regionId uint64) {
	st := s.getCharacterState(id)

	if st.ProspectingRegionId != noRegion {
		slog.Warn("pending prospection, not starting mining", "character", id)
		return
	}
	if st.Wp != nil {
		slog.Warn("pending waypoints, not starting mining", "character", id)
		return
	}

	if st.MiningRegionId != noRegion && st.MiningRegionId != regionId {
		panic(fmt.Sprintf(
			"pending: character %d is pending to mine region %d, not %d",
			id, st.MiningRegionId, regionId))
	}
	st.MiningRegionId = regionId
}

// AddCharacterCreation records a pending character creation.
func (s *State) AddCharacterCreation(name string, f faction.Faction) {
	s.newCharacters[name] = append(s.newCharacters[name],
		NewCharacter{Faction: f})
}

// characterJSON is the serialized form of one pending character.
type characterJSON struct {
	Id          uint64         `json:"id"`
	Waypoints   *[]hex.Coord   `json:"waypoints,omitempty"`
	Prospecting uint64         `json:"prospecting,omitempty"`
	Mining      uint64         `json:"mining,omitempty"`
}

type newCharacterJSON struct {
	Faction string `json:"faction"`
}

type newCharactersJSON struct {
	Name      string             `json:"name"`
	Creations []newCharacterJSON `json:"creations"`
}

type stateJSON struct {
	Characters    []characterJSON     `json:"characters"`
	NewCharacters []newCharactersJSON `json:"newcharacters"`
}

// ToJSON serializes the pending state. Characters are ordered by id,
// new characters by name.
func (s *State) ToJSON() json.RawMessage {
	out := stateJSON{
		Characters:    []characterJSON{},
		NewCharacters: []newCharactersJSON{},
	}

	charIds := make([]uint64, 0, len(s.characters))
	for id := range s.characters {
		charIds = append(charIds, id)
	}
	sort.Slice(charIds, func(i, j int) bool { return charIds[i] < charIds[j] })

	for _, id := range charIds {
		st := s.characters[id]
		out.Characters = append(out.Characters, characterJSON{
			Id:          id,
			Waypoints:   st.Wp,
			Prospecting: st.ProspectingRegionId,
			Mining:      st.MiningRegionId,
		})
	}

	names := make([]string, 0, len(s.newCharacters))
	for name := range s.newCharacters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entry := newCharactersJSON{Name: name, Creations: []newCharacterJSON{}}
		for _, nc := range s.newCharacters[name] {
			entry.Creations = append(entry.Creations,
				newCharacterJSON{Faction: nc.Faction.String()})
		}
		out.NewCharacters = append(out.NewCharacters, entry)
	}

	raw, err := json.Marshal(out)
	if err != nil {
		panic(fmt.Sprintf("pending: marshal state: %v", err))
	}
	return raw
}

// Updater feeds unconfirmed moves into a pending state, using the
// confirmed tables read-only for validation.
type Updater struct {
	state  *State
	tables *moves.Tables
}

// NewUpdater binds a pending state to the confirmed tables.
func NewUpdater(state *State, tables *moves.Tables) *Updater {
	return &Updater{state: state, tables: tables}
}

// ProcessMove previews one mempool move entry.
func (u *Updater) ProcessMove(entry *moves.MoveEntry) {
	mv, paidToDev, _, ok := moves.ExtractMoveBasics(entry,
		u.tables.Params.DeveloperAddress)
	if !ok {
		return
	}

	a := u.tables.Accounts.GetByName(entry.Name)
	if a == nil {
		// The confirmed account does not exist yet; predicting its
		// creation is not worth the trouble.
		slog.Debug("pending move for unknown account", "name", entry.Name)
		return
	}
	initialised := a.IsInitialised()
	accountFaction := a.GetFaction()
	a.Release()

	if initialised {
		u.processCharacterUpdates(entry.Name, mv)
	}

	remaining := paidToDev
	for range mv.Nc {
		if remaining < u.tables.Params.CharacterCost {
			break
		}
		remaining -= u.tables.Params.CharacterCost
		if accountFaction != faction.Invalid {
			u.state.AddCharacterCreation(entry.Name, accountFaction)
		}
	}
}

// processCharacterUpdates previews the "c" object of a move.
func (u *Updater) processCharacterUpdates(name string, mv moves.MoveBody) {
	for _, upd := range moves.SortedCharacterUpdates(mv) {
		ch := u.tables.Characters.GetById(upd.Id)
		if ch == nil || ch.GetOwner() != name {
			if ch != nil {
				ch.Release()
			}
			continue
		}

		if len(upd.Prospect) > 0 && moves.CanStartOperation(ch) {
			regionId := u.tables.Map.RegionForHex(ch.GetPosition())
			u.state.AddCharacterProspecting(ch.GetId(), regionId)
		}

		if len(upd.Mine) > 0 && moves.CanStartOperation(ch) {
			regionId := u.tables.Map.RegionForHex(ch.GetPosition())
			region := u.tables.Regions.GetById(regionId)
			if moves.CanMineRegion(ch, region) {
				u.state.AddCharacterMining(ch.GetId(), regionId)
			}
			region.Release()
		}

		if len(upd.Wp) > 0 {
			if wp, valid := moves.ParseWaypoints(upd.Wp); valid &&
				moves.CanSetWaypoints(ch) {
				u.state.AddCharacterWaypoints(ch.GetId(), wp)
			}
		}

		ch.Release()
	}
}
