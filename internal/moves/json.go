// Package moves parses, validates and applies the per-block move
// bundle. Invalid user input is dropped at sub-intent granularity and
// never aborts sibling intents; raising an error for bad input would
// fork the chain.
package moves

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/params"
)

// coinDecimals is the fixed decimal scaling of chain-currency amounts
// in the block input.
const coinDecimals = 8

var (
	intPattern = regexp.MustCompile(`^-?(0|[1-9][0-9]*)$`)
	idPattern  = regexp.MustCompile(`^[1-9][0-9]*$`)
)

// parseInt accepts only canonical integer JSON numbers: no fraction,
// no exponent, no leading zeros.
func parseInt(raw json.RawMessage) (int64, bool) {
	// json.Number also decodes from a quoted string; reject those.
	if s := strings.TrimSpace(string(raw)); s == "" || s[0] == '"' {
		return 0, false
	}
	var num json.Number
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&num); err != nil {
		return 0, false
	}
	if !intPattern.MatchString(num.String()) {
		return 0, false
	}
	v, err := strconv.ParseInt(num.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseIdString validates a canonical decimal id string as used for
// keys in the "c" object: no whitespace, no leading zeros, non-zero.
func ParseIdString(s string) (uint64, bool) {
	if !idPattern.MatchString(s) {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// parseCoord parses a waypoint object {x: int, y: int}. Non-integer
// coordinates reject the value.
func parseCoord(raw json.RawMessage) (hex.Coord, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return hex.Coord{}, false
	}
	if len(obj) != 2 {
		return hex.Coord{}, false
	}
	xRaw, okX := obj["x"]
	yRaw, okY := obj["y"]
	if !okX || !okY {
		return hex.Coord{}, false
	}
	x, okX := parseInt(xRaw)
	y, okY := parseInt(yRaw)
	if !okX || !okY {
		return hex.Coord{}, false
	}
	return hex.Coord{X: int(x), Y: int(y)}, true
}

// ParseAmount parses a chain-currency amount encoded as a JSON number
// with fixed decimal scaling into minor units. Non-numeric values are
// rejected; the caller treats that as fatal for the whole block input,
// since the chain would never hand us one.
func ParseAmount(raw json.RawMessage) (params.Amount, bool) {
	if s := strings.TrimSpace(string(raw)); s == "" || s[0] == '"' {
		return 0, false
	}
	var num json.Number
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&num); err != nil {
		return 0, false
	}

	s := num.String()
	if strings.ContainsAny(s, "eE") {
		return 0, false
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" || strings.HasPrefix(whole, "-") {
		return 0, false
	}
	if len(frac) > coinDecimals {
		return 0, false
	}

	wholeVal, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, false
	}

	fracVal := int64(0)
	if frac != "" {
		fracVal, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, false
		}
		for i := len(frac); i < coinDecimals; i++ {
			fracVal *= 10
		}
	}

	const scale = 100000000
	return wholeVal*scale + fracVal, true
}
