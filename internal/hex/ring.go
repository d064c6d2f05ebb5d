package hex

// Ring enumerates all coordinates at an exact L1 distance from a centre.
// Radius zero yields just the centre itself. The iteration order is fixed
// rotational order, starting from the tile in Directions[4] direction and
// walking each of the six edges in Directions order.
type Ring struct {
	centre Coord
	radius int
}

// NewRing constructs a ring around centre with the given radius.
func NewRing(centre Coord, radius int) Ring {
	if radius < 0 {
		panic("hex: negative ring radius")
	}
	return Ring{centre: centre, radius: radius}
}

// ForEach calls fn for every coordinate on the ring in the fixed order.
// If fn returns false, iteration stops early.
func (r Ring) ForEach(fn func(Coord) bool) {
	if r.radius == 0 {
		fn(r.centre)
		return
	}

	cur := r.centre.Add(Directions[4].Scale(r.radius))
	for _, d := range Directions {
		for i := 0; i < r.radius; i++ {
			if !fn(cur) {
				return
			}
			cur = cur.Add(d)
		}
	}
}

// Coords returns all coordinates on the ring in the fixed order.
func (r Ring) Coords() []Coord {
	var res []Coord
	if r.radius == 0 {
		return []Coord{r.centre}
	}
	res = make([]Coord, 0, 6*r.radius)
	r.ForEach(func(c Coord) bool {
		res = append(res, c)
		return true
	})
	return res
}
