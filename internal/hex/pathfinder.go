package hex

// NoConnection is the distance value for tiles that cannot be reached.
const NoConnection = ^uint(0)

// EdgeFunc decides whether the edge between two adjacent tiles can be
// used. It receives the tile being expanded from and the neighbour being
// entered. Passability and faction rules live in the caller.
type EdgeFunc func(from, to Coord) bool

// PathFinder computes a BFS distance field towards a fixed target over a
// bounded region. All edges cost one step. The field is read by Stepper,
// which walks a tile-by-tile path towards the target.
type PathFinder struct {
	edges  EdgeFunc
	target Coord

	dist map[Coord]uint
}

// NewPathFinder constructs a path finder towards the given target tile.
func NewPathFinder(edges EdgeFunc, target Coord) *PathFinder {
	return &PathFinder{edges: edges, target: target}
}

// Distance returns the computed distance from the given tile to the
// target, or NoConnection if the tile was not reached.
func (pf *PathFinder) Distance(c Coord) uint {
	if pf.dist == nil {
		return NoConnection
	}
	d, ok := pf.dist[c]
	if !ok {
		return NoConnection
	}
	return d
}

// ComputeDistances runs the BFS from the target until the source tile is
// found or the l1Range bound around the target is exhausted. It returns
// the distance of the source, which is NoConnection if no path exists
// within the bound.
func (pf *PathFinder) ComputeDistances(source Coord, l1Range int) uint {
	pf.dist = make(map[Coord]uint)
	pf.dist[pf.target] = 0

	queue := []Coord{pf.target}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		curDist := pf.dist[cur]

		if cur == source {
			return curDist
		}

		for _, n := range cur.Neighbours() {
			if DistanceL1(n, pf.target) > l1Range {
				continue
			}
			if _, seen := pf.dist[n]; seen {
				continue
			}
			if !pf.edges(cur, n) {
				continue
			}
			pf.dist[n] = curDist + 1
			queue = append(queue, n)
		}
	}

	return pf.Distance(source)
}

// StepPath starts walking from source towards the target. The source must
// have a finite computed distance.
func (pf *PathFinder) StepPath(source Coord) *Stepper {
	if pf.Distance(source) == NoConnection {
		panic("hex: no path from the given source has been computed")
	}
	return &Stepper{finder: pf, position: source}
}

// Stepper walks a path along a computed distance field. Each step moves
// to the neighbour with the smallest distance, tie-broken by the fixed
// neighbour enumeration order.
type Stepper struct {
	finder   *PathFinder
	position Coord
}

// Position returns the current tile of the stepper.
func (s *Stepper) Position() Coord {
	return s.position
}

// HasMore returns true while the target has not been reached.
func (s *Stepper) HasMore() bool {
	return s.finder.Distance(s.position) > 0
}

// Next advances one tile towards the target and returns the cost of the
// step taken.
func (s *Stepper) Next() uint {
	if !s.HasMore() {
		panic("hex: stepping past the path target")
	}

	curDist := s.finder.Distance(s.position)

	bestDist := NoConnection
	var bestNeighbour Coord
	for _, n := range s.position.Neighbours() {
		d := s.finder.Distance(n)
		if d == NoConnection {
			continue
		}
		if bestDist == NoConnection || d < bestDist {
			bestDist = d
			bestNeighbour = n
		}
	}

	if bestDist == NoConnection || bestDist > curDist {
		panic("hex: no good neighbour found along path")
	}

	s.position = bestNeighbour
	return curDist - bestDist
}
