package moves

import (
	"encoding/json"
	"testing"
)

func TestParseIdString(t *testing.T) {
	valid := map[string]uint64{
		"1":      1,
		"42":     42,
		"100000": 100000,
	}
	for s, want := range valid {
		id, ok := ParseIdString(s)
		if !ok || id != want {
			t.Errorf("ParseIdString(%q) = %d, %v; want %d", s, id, ok, want)
		}
	}

	invalid := []string{"", "0", "01", " 1", "1 ", "+1", "-1", "1.0", "abc"}
	for _, s := range invalid {
		if _, ok := ParseIdString(s); ok {
			t.Errorf("ParseIdString(%q) accepted", s)
		}
	}
}

func TestParseAmount(t *testing.T) {
	valid := map[string]int64{
		`0`:          0,
		`1`:          100000000,
		`0.00001`:    1000,
		`2.5`:        250000000,
		`0.00000001`: 1,
	}
	for s, want := range valid {
		got, ok := ParseAmount(json.RawMessage(s))
		if !ok || got != want {
			t.Errorf("ParseAmount(%s) = %d, %v; want %d", s, got, ok, want)
		}
	}

	invalid := []string{`"1"`, `-1`, `1e8`, `0.000000001`, `{}`, `true`}
	for _, s := range invalid {
		if _, ok := ParseAmount(json.RawMessage(s)); ok {
			t.Errorf("ParseAmount(%s) accepted", s)
		}
	}
}

func TestParseWaypoints(t *testing.T) {
	wp, ok := ParseWaypoints(json.RawMessage(`[{"x": 1, "y": -2}, {"x": 0, "y": 0}]`))
	if !ok || len(wp) != 2 || wp[0].X != 1 || wp[0].Y != -2 {
		t.Errorf("waypoints = %v, %v", wp, ok)
	}

	// An empty list is a valid stop order.
	wp, ok = ParseWaypoints(json.RawMessage(`[]`))
	if !ok || len(wp) != 0 {
		t.Errorf("empty waypoints = %v, %v", wp, ok)
	}

	invalid := []string{
		`[{"x": 1.5, "y": 0}]`,
		`[{"x": "1", "y": 0}]`,
		`[{"x": 1}]`,
		`[{"x": 1, "y": 0, "z": 0}]`,
		`{"x": 1, "y": 0}`,
		`[null]`,
	}
	for _, s := range invalid {
		if _, ok := ParseWaypoints(json.RawMessage(s)); ok {
			t.Errorf("ParseWaypoints(%s) accepted", s)
		}
	}
}

func TestParseFungible(t *testing.T) {
	items, ok := ParseFungible(json.RawMessage(`{"f": {"foo": 3, "bar": 1}}`))
	if !ok || items["foo"] != 3 || items["bar"] != 1 {
		t.Errorf("fungible = %v, %v", items, ok)
	}

	invalid := []string{
		`{"f": {"foo": 0}}`,
		`{"f": {"foo": -1}}`,
		`{"f": {"foo": 1.5}}`,
		`{}`,
		`[]`,
	}
	for _, s := range invalid {
		if _, ok := ParseFungible(json.RawMessage(s)); ok {
			t.Errorf("ParseFungible(%s) accepted", s)
		}
	}
}

func TestSortedCharacterUpdates(t *testing.T) {
	var mv MoveBody
	if err := json.Unmarshal([]byte(`{
		"c": {"10": {"wp": []}, "2": {"wp": []}, "bogus": {}, "03": {}}
	}`), &mv); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	updates := SortedCharacterUpdates(mv)
	if len(updates) != 2 || updates[0].Id != 2 || updates[1].Id != 10 {
		t.Errorf("updates = %+v", updates)
	}
}
