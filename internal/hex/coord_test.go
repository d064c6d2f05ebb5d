package hex

import "testing"

func TestDistanceL1(t *testing.T) {
	tests := []struct {
		a, b Coord
		want int
	}{
		{Coord{0, 0}, Coord{0, 0}, 0},
		{Coord{0, 0}, Coord{1, 0}, 1},
		{Coord{0, 0}, Coord{-1, 1}, 1},
		{Coord{0, 0}, Coord{3, -3}, 3},
		{Coord{0, 0}, Coord{2, 2}, 4},
		{Coord{-2, 1}, Coord{3, -1}, 5},
	}
	for _, tc := range tests {
		if got := DistanceL1(tc.a, tc.b); got != tc.want {
			t.Errorf("DistanceL1(%v, %v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
		if got := DistanceL1(tc.b, tc.a); got != tc.want {
			t.Errorf("DistanceL1(%v, %v) = %d, want %d", tc.b, tc.a, got, tc.want)
		}
	}
}

func TestNeighbours(t *testing.T) {
	c := Coord{X: 2, Y: -1}
	for _, n := range c.Neighbours() {
		if DistanceL1(c, n) != 1 {
			t.Errorf("neighbour %v of %v is not at distance 1", n, c)
		}
	}

	// The enumeration order is part of consensus and must stay fixed.
	want := [6]Coord{{3, -1}, {3, -2}, {2, -2}, {1, -1}, {1, 0}, {2, 0}}
	if got := c.Neighbours(); got != want {
		t.Errorf("Neighbours(%v) = %v, want %v", c, got, want)
	}
}

func TestRotateCW(t *testing.T) {
	c := Coord{X: 3, Y: -1}

	full := c.RotateCW(6)
	if full != c {
		t.Errorf("six rotations of %v = %v, want identity", c, full)
	}

	cur := c
	for i := 0; i < 6; i++ {
		if DistanceL1(Coord{}, cur) != DistanceL1(Coord{}, c) {
			t.Errorf("rotation changed distance from origin: %v", cur)
		}
		cur = cur.RotateCW(1)
	}

	if got := c.RotateCW(-1); got != c.RotateCW(5) {
		t.Errorf("RotateCW(-1) = %v, want %v", got, c.RotateCW(5))
	}
}

func TestRingRadiusZero(t *testing.T) {
	centre := Coord{X: -2, Y: 5}
	coords := NewRing(centre, 0).Coords()
	if len(coords) != 1 || coords[0] != centre {
		t.Fatalf("radius-0 ring = %v, want just %v", coords, centre)
	}
}

func TestRingExactDistance(t *testing.T) {
	centre := Coord{X: 1, Y: -2}
	for radius := 1; radius <= 4; radius++ {
		coords := NewRing(centre, radius).Coords()
		if len(coords) != 6*radius {
			t.Errorf("radius-%d ring has %d tiles, want %d",
				radius, len(coords), 6*radius)
		}
		seen := make(map[Coord]bool)
		for _, c := range coords {
			if DistanceL1(centre, c) != radius {
				t.Errorf("ring tile %v has distance %d, want %d",
					c, DistanceL1(centre, c), radius)
			}
			if seen[c] {
				t.Errorf("ring tile %v enumerated twice", c)
			}
			seen[c] = true
		}
	}
}
