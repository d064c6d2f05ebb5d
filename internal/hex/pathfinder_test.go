package hex

import "testing"

func allPassable(from, to Coord) bool {
	return true
}

func TestPathFinderStraightLine(t *testing.T) {
	pf := NewPathFinder(allPassable, Coord{X: 5, Y: 0})
	d := pf.ComputeDistances(Coord{X: 0, Y: 0}, 10)
	if d != 5 {
		t.Fatalf("distance = %d, want 5", d)
	}

	stepper := pf.StepPath(Coord{X: 0, Y: 0})
	steps := 0
	for stepper.HasMore() {
		cost := stepper.Next()
		if cost != 1 {
			t.Errorf("step cost = %d, want 1", cost)
		}
		steps++
		if steps > 10 {
			t.Fatalf("stepper did not terminate")
		}
	}
	if steps != 5 {
		t.Errorf("path took %d steps, want 5", steps)
	}
	if stepper.Position() != (Coord{X: 5, Y: 0}) {
		t.Errorf("final position = %v, want (5, 0)", stepper.Position())
	}
}

func TestPathFinderObstacle(t *testing.T) {
	// A wall through x=1 with a single gap at (1, 2).
	edges := func(from, to Coord) bool {
		if to.X != 1 {
			return true
		}
		return to.Y == 2
	}

	pf := NewPathFinder(edges, Coord{X: 2, Y: 0})
	d := pf.ComputeDistances(Coord{X: 0, Y: 0}, 10)
	if d == NoConnection {
		t.Fatalf("no path found around the wall")
	}
	if d <= 2 {
		t.Errorf("distance through wall = %d, want a detour longer than 2", d)
	}

	stepper := pf.StepPath(Coord{X: 0, Y: 0})
	var total uint
	for stepper.HasMore() {
		total += stepper.Next()
	}
	if total != d {
		t.Errorf("sum of step costs = %d, want %d", total, d)
	}
}

func TestPathFinderNoConnection(t *testing.T) {
	// The target is fully walled in.
	edges := func(from, to Coord) bool {
		return DistanceL1(to, Coord{X: 0, Y: 0}) >= 2 ||
			to == (Coord{X: 0, Y: 0})
	}

	pf := NewPathFinder(edges, Coord{X: 0, Y: 0})
	if d := pf.ComputeDistances(Coord{X: 5, Y: 0}, 10); d != NoConnection {
		t.Errorf("distance into walled-in target = %d, want NoConnection", d)
	}
}

func TestPathFinderRangeBound(t *testing.T) {
	pf := NewPathFinder(allPassable, Coord{X: 0, Y: 0})
	if d := pf.ComputeDistances(Coord{X: 6, Y: 0}, 3); d != NoConnection {
		t.Errorf("source outside range bound got distance %d", d)
	}
}
