package pending

import (
	"bytes"
	"testing"

	"github.com/talgya/outpost/internal/faction"
	"github.com/talgya/outpost/internal/hex"
)

func TestClearThenAddMatchesFreshState(t *testing.T) {
	apply := func(s *State) {
		s.AddCharacterWaypoints(5, []hex.Coord{{X: 1, Y: 2}})
		s.AddCharacterProspecting(7, 42)
		s.AddCharacterMining(9, 43)
		s.AddCharacterCreation("domob", faction.Red)
		s.AddCharacterCreation("domob", faction.Red)
		s.AddCharacterCreation("andy", faction.Blue)
	}

	used := NewState()
	used.AddCharacterWaypoints(99, []hex.Coord{{X: 0, Y: 0}})
	used.AddCharacterCreation("stale", faction.Green)
	used.Clear()
	apply(used)

	fresh := NewState()
	apply(fresh)

	if !bytes.Equal(used.ToJSON(), fresh.ToJSON()) {
		t.Errorf("cleared state differs from fresh state:\n%s\nvs\n%s",
			used.ToJSON(), fresh.ToJSON())
	}
}

func TestWaypointsClearMining(t *testing.T) {
	s := NewState()
	s.AddCharacterMining(5, 42)
	s.AddCharacterWaypoints(5, []hex.Coord{{X: 1, Y: 0}})

	st := s.characters[5]
	if st.MiningRegionId != 0 {
		t.Errorf("mining region survived waypoint update: %d",
			st.MiningRegionId)
	}
	if st.Wp == nil {
		t.Errorf("waypoints not recorded")
	}
}

func TestProspectingWinsOverWaypoints(t *testing.T) {
	s := NewState()
	s.AddCharacterWaypoints(5, []hex.Coord{{X: 1, Y: 0}})
	s.AddCharacterProspecting(5, 42)

	st := s.characters[5]
	if st.Wp != nil {
		t.Errorf("waypoints survived prospection")
	}

	// Later waypoints are ignored while a prospection is pending.
	s.AddCharacterWaypoints(5, []hex.Coord{{X: 2, Y: 0}})
	if s.characters[5].Wp != nil {
		t.Errorf("waypoints overrode pending prospection")
	}
}

func TestMiningBlockedByWaypointsAndProspection(t *testing.T) {
	s := NewState()
	s.AddCharacterWaypoints(5, []hex.Coord{{X: 1, Y: 0}})
	s.AddCharacterMining(5, 42)
	if s.characters[5].MiningRegionId != 0 {
		t.Errorf("mining started despite pending waypoints")
	}

	s.AddCharacterProspecting(6, 42)
	s.AddCharacterMining(6, 42)
	if s.characters[6].MiningRegionId != 0 {
		t.Errorf("mining started despite pending prospection")
	}
}

func TestProspectingDifferentRegionPanics(t *testing.T) {
	s := NewState()
	s.AddCharacterProspecting(5, 42)

	defer func() {
		if recover() == nil {
			t.Fatalf("prospecting a different region did not panic")
		}
	}()
	s.AddCharacterProspecting(5, 43)
}

func TestToJSONOrdering(t *testing.T) {
	s := NewState()
	s.AddCharacterWaypoints(10, nil)
	s.AddCharacterWaypoints(2, nil)
	s.AddCharacterCreation("zoe", faction.Red)
	s.AddCharacterCreation("abe", faction.Blue)

	raw := string(s.ToJSON())
	if bytes.Contains([]byte(raw), []byte("null")) {
		t.Errorf("unexpected null in JSON: %s", raw)
	}

	// Characters sorted by id, names sorted alphabetically.
	idx2 := bytes.Index([]byte(raw), []byte(`"id":2`))
	idx10 := bytes.Index([]byte(raw), []byte(`"id":10`))
	if idx2 < 0 || idx10 < 0 || idx2 > idx10 {
		t.Errorf("characters not sorted by id: %s", raw)
	}
	abe := bytes.Index([]byte(raw), []byte(`"abe"`))
	zoe := bytes.Index([]byte(raw), []byte(`"zoe"`))
	if abe < 0 || zoe < 0 || abe > zoe {
		t.Errorf("new characters not sorted by name: %s", raw)
	}
}
