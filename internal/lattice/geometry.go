package lattice

import (
	"fmt"
	"math"
	"sort"

	"neoplasm/internal/core"
)

// Geometry describes a lattice neighborhood: its direction set, the graph
// and Euclidean metrics on coordinate differences, and a generator of
// compact initial seed positions.
type Geometry interface {
	// Dimensions reports 2 or 3.
	Dimensions() int
	// Directions returns the ordered unit displacements to all neighbors.
	Directions() []Coord
	// MaxNeighbors is len(Directions()).
	MaxNeighbors() int
	// RandomDirection draws a direction uniformly.
	RandomDirection(rng *core.RNG) Coord
	// RandomNeighbor returns p displaced by a uniform random direction.
	RandomNeighbor(p Coord, rng *core.RNG) Coord
	// Neighbors returns p displaced by every direction, in direction order.
	Neighbors(p Coord) []Coord
	// Outward returns the neighbor of p farthest from the origin.
	Outward(p Coord) Coord
	// GraphDistance is the lattice metric on a coordinate difference.
	GraphDistance(d Coord) int
	// EuclideanDistance is the continuous metric on a coordinate difference.
	EuclideanDistance(d Coord) float64
	// Sphere returns n distinct coords packed around the origin, ordered by
	// non-decreasing distance with deterministic tie-breaking.
	Sphere(n int) []Coord
}

// New builds the geometry selected by name ("neumann", "moore", "hex") for
// the given number of dimensions.
func New(coordinate string, dimensions int) (Geometry, error) {
	if dimensions != 2 && dimensions != 3 {
		return nil, fmt.Errorf("invalid dimensions %d; choose from 2, 3", dimensions)
	}
	switch coordinate {
	case "neumann":
		return newNeumann(dimensions), nil
	case "moore":
		return newMoore(dimensions), nil
	case "hex":
		return newHexagonal(dimensions), nil
	}
	return nil, fmt.Errorf("invalid coordinate %q; choose from hex, moore, neumann", coordinate)
}

// base carries the pieces shared by all geometries. The concrete types fill
// in the direction set and the distance functions at construction.
type base struct {
	dims       int
	directions []Coord
	graph      func(Coord) int
	euclidean  func(Coord) float64
}

func (b *base) Dimensions() int      { return b.dims }
func (b *base) Directions() []Coord  { return b.directions }
func (b *base) MaxNeighbors() int    { return len(b.directions) }
func (b *base) GraphDistance(d Coord) int {
	return b.graph(d)
}
func (b *base) EuclideanDistance(d Coord) float64 {
	return b.euclidean(d)
}

func (b *base) RandomDirection(rng *core.RNG) Coord {
	return b.directions[rng.Intn(len(b.directions))]
}

func (b *base) RandomNeighbor(p Coord, rng *core.RNG) Coord {
	return p.Add(b.RandomDirection(rng))
}

func (b *base) Neighbors(p Coord) []Coord {
	out := make([]Coord, len(b.directions))
	for i, d := range b.directions {
		out[i] = p.Add(d)
	}
	return out
}

func (b *base) Outward(p Coord) Coord {
	neighbors := b.Neighbors(p)
	best := neighbors[0]
	bestDist := b.euclidean(best)
	for _, n := range neighbors[1:] {
		if d := b.euclidean(n); d > bestDist {
			best, bestDist = n, d
		}
	}
	return best
}

// Sphere collects lattice points from growing cubes until at least n points
// lie within the cube radius, then keeps the n nearest. Any point outside a
// cube of radius r is farther than r in every metric used here, so the n
// nearest are always among the collected candidates.
func (b *base) Sphere(n int) []Coord {
	if n <= 0 {
		return nil
	}
	for r := 1; ; r++ {
		var candidates []Coord
		zlo, zhi := -r, r
		if b.dims == 2 {
			zlo, zhi = 0, 0
		}
		for x := -r; x <= r; x++ {
			for y := -r; y <= r; y++ {
				for z := zlo; z <= zhi; z++ {
					c := Coord{x, y, z}
					if b.euclidean(c) <= float64(r) {
						candidates = append(candidates, c)
					}
				}
			}
		}
		if len(candidates) < n {
			continue
		}
		sort.Slice(candidates, func(i, j int) bool {
			di, dj := b.euclidean(candidates[i]), b.euclidean(candidates[j])
			if di != dj {
				return di < dj
			}
			ci, cj := candidates[i], candidates[j]
			if ci[0] != cj[0] {
				return ci[0] < cj[0]
			}
			if ci[1] != cj[1] {
				return ci[1] < cj[1]
			}
			return ci[2] < cj[2]
		})
		return candidates[:n:n]
	}
}

func euclidean(d Coord) float64 {
	return math.Sqrt(float64(d[0]*d[0] + d[1]*d[1] + d[2]*d[2]))
}

// Neumann connects each site to its axial neighbors only.
type Neumann struct{ base }

func newNeumann(dims int) *Neumann {
	g := &Neumann{base{dims: dims, euclidean: euclidean}}
	for i := dims - 1; i >= 0; i-- {
		var d Coord
		d[i] = 1
		g.directions = append(g.directions, d)
	}
	for i := 0; i < dims; i++ {
		var d Coord
		d[i] = -1
		g.directions = append(g.directions, d)
	}
	// Manhattan distance
	g.graph = func(d Coord) int {
		return abs(d[0]) + abs(d[1]) + abs(d[2])
	}
	return g
}

// Moore connects each site to its axial and diagonal neighbors.
type Moore struct{ base }

func newMoore(dims int) *Moore {
	g := &Moore{base{dims: dims, euclidean: euclidean}}
	for x := -1; x <= 1; x++ {
		for y := -1; y <= 1; y++ {
			if dims == 2 {
				if x == 0 && y == 0 {
					continue
				}
				g.directions = append(g.directions, Coord{x, y, 0})
				continue
			}
			for z := -1; z <= 1; z++ {
				if x == 0 && y == 0 && z == 0 {
					continue
				}
				g.directions = append(g.directions, Coord{x, y, z})
			}
		}
	}
	// Chebyshev distance
	g.graph = func(d Coord) int {
		m := abs(d[0])
		if v := abs(d[1]); v > m {
			m = v
		}
		if v := abs(d[2]); v > m {
			m = v
		}
		return m
	}
	return g
}

// Hexagonal packs the plane triangularly; the 3D variant stacks layers in
// the ABA close-packed arrangement.
type Hexagonal struct{ base }

func newHexagonal(dims int) *Hexagonal {
	g := &Hexagonal{base{dims: dims}}
	inPlane := []Coord{
		{-1, 0, 0}, {-1, 1, 0}, {0, -1, 0}, {0, 1, 0}, {1, -1, 0}, {1, 0, 0},
	}
	g.directions = append(g.directions, inPlane...)
	if dims == 3 {
		g.directions = append(g.directions,
			Coord{0, 0, -1}, Coord{1, 0, -1}, Coord{1, -1, -1},
			Coord{0, 0, 1}, Coord{-1, 0, 1}, Coord{-1, 1, 1},
		)
	}
	g.graph = func(d Coord) int {
		m := abs(d[0])
		for _, v := range []int{abs(d[1]), abs(d[2]), abs(d[0] + d[1]), abs(d[0] + d[2])} {
			if v > m {
				m = v
			}
		}
		return m
	}
	// The skewed axes make the raw Euclidean norm misleading, so distance
	// on the hex lattice is its graph distance.
	g.euclidean = func(d Coord) float64 {
		return float64(g.graph(d))
	}
	return g
}
