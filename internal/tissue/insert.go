package tissue

import (
	"fmt"
	"math"

	"neoplasm/internal/cell"
	"neoplasm/internal/core"
	"neoplasm/internal/lattice"
)

// searchMaxDirections caps how many shuffled directions a nearest-empty
// search probes.
const searchMaxDirections = 26

// initInsert resolves the insertion strategy once from the two policy keys.
// The local density effect decides whether a division is admitted; the
// displacement path decides where the daughter goes and who gets pushed.
func (t *Tissue) initInsert(density, path string) error {
	table := map[string]map[string]func(*cell.Cell) bool{
		"const": {
			"random": func(daughter *cell.Cell) bool {
				t.push(daughter, t.geom.RandomDirection(t.rng))
				return true
			},
			"mindrag": func(daughter *cell.Cell) bool {
				t.pushMinimumDrag(daughter)
				return true
			},
			"minstraight": func(daughter *cell.Cell) bool {
				t.push(daughter, t.toNearestEmpty(daughter.Coord(), searchMaxDirections))
				return true
			},
			"roulette": func(daughter *cell.Cell) bool {
				t.push(daughter, t.rouletteDirection(daughter.Coord()))
				return true
			},
			"stroll": func(daughter *cell.Cell) bool {
				t.stroll(daughter, t.geom.RandomDirection(t.rng))
				return true
			},
		},
		"step": {
			"random": func(daughter *cell.Cell) bool {
				if t.numEmptyNeighbors(daughter.Coord()) == 0 {
					return false
				}
				t.push(daughter, t.geom.RandomDirection(t.rng))
				return true
			},
			"mindrag": func(daughter *cell.Cell) bool {
				return t.insertAdjacent(daughter)
			},
		},
		"linear": {
			"random": func(daughter *cell.Cell) bool {
				prob := t.proportionEmptyNeighbors(daughter.Coord())
				if !t.rng.Bernoulli(prob) {
					return false
				}
				t.push(daughter, t.geom.RandomDirection(t.rng))
				return true
			},
			"mindrag": func(daughter *cell.Cell) bool {
				daughter.SetCoord(t.geom.RandomNeighbor(daughter.Coord(), t.rng))
				if _, ok := t.extant[daughter.Coord()]; ok {
					return false
				}
				t.extant[daughter.Coord()] = daughter
				return true
			},
		},
	}
	if paths, ok := table[density]; ok {
		if fn, ok := paths[path]; ok {
			t.insert = fn
			return nil
		}
	}
	return fmt.Errorf(
		"invalid -L/-P combination (%s/%s); choose from -Lconst -P{mindrag,minstraight,random,roulette,stroll}, -Llinear -P{mindrag,random}, -Lstep -P{mindrag,random}",
		density, path)
}

// push drives moving one step along direction, swapping with each resident
// it lands on, until a site is empty. A birth in a packed region pushes a
// chain of cells outward.
func (t *Tissue) push(moving *cell.Cell, direction lattice.Coord) {
	for {
		moving.SetCoord(moving.Coord().Add(direction))
		displaced, swapped := t.swapExisting(moving)
		if !swapped {
			return
		}
		moving = displaced
	}
}

// pushMinimumDrag is push with the direction recomputed toward the nearest
// empty site at every step, so the chain of displaced cells is as short as
// the occupancy allows.
func (t *Tissue) pushMinimumDrag(moving *cell.Cell) {
	for {
		moving.SetCoord(moving.Coord().Add(t.toNearestEmpty(moving.Coord(), searchMaxDirections)))
		displaced, swapped := t.swapExisting(moving)
		if !swapped {
			return
		}
		moving = displaced
	}
}

// stroll places moving in any free neighbor; when all neighbors are full it
// swaps moving one step along direction and retries with the displaced
// resident.
func (t *Tissue) stroll(moving *cell.Cell, direction lattice.Coord) {
	for !t.insertAdjacent(moving) {
		moving.SetCoord(moving.Coord().Add(direction))
		displaced, swapped := t.swapExisting(moving)
		if !swapped {
			return
		}
		moving = displaced
	}
}

// insertAdjacent places moving at a free neighbor, probing in shuffled
// order. It restores moving's coord and reports false when every neighbor
// is occupied.
func (t *Tissue) insertAdjacent(moving *cell.Cell) bool {
	origin := moving.Coord()
	neighbors := t.geom.Neighbors(origin)
	t.rng.Shuffle(len(neighbors), func(i, j int) { neighbors[i], neighbors[j] = neighbors[j], neighbors[i] })
	for _, v := range neighbors {
		if _, ok := t.extant[v]; !ok {
			moving.SetCoord(v)
			t.extant[v] = moving
			return true
		}
	}
	moving.SetCoord(origin)
	return false
}

// swapExisting claims moving's site in the occupancy index. moving must not
// already be indexed. When the site is occupied the resident is evicted and
// returned for the caller to keep moving.
func (t *Tissue) swapExisting(moving *cell.Cell) (*cell.Cell, bool) {
	resident, occupied := t.extant[moving.Coord()]
	t.extant[moving.Coord()] = moving
	if occupied {
		return resident, true
	}
	return nil, false
}

// stepsToEmpty counts the occupied sites on the ray from current along
// direction before the first empty site. A free neighbor is 0.
func (t *Tissue) stepsToEmpty(current, direction lattice.Coord) int {
	steps := 0
	for {
		current = current.Add(direction)
		if _, ok := t.extant[current]; !ok {
			return steps
		}
		steps++
	}
}

// toNearestEmpty returns the direction whose ray reaches an empty site in
// the fewest steps, probing at most searchMax shuffled directions.
func (t *Tissue) toNearestEmpty(current lattice.Coord, searchMax int) lattice.Coord {
	directions := append([]lattice.Coord(nil), t.geom.Directions()...)
	t.rng.Shuffle(len(directions), func(i, j int) { directions[i], directions[j] = directions[j], directions[i] })
	if searchMax < len(directions) {
		directions = directions[:searchMax]
	}
	best := directions[0]
	least := math.MaxInt
	for _, d := range directions {
		if n := t.stepsToEmpty(current, d); n < least {
			least = n
			best = d
		}
	}
	return best
}

// rouletteDirection samples a direction with weight inverse to its
// steps-to-empty. A direction with a free neighbor wins outright.
func (t *Tissue) rouletteDirection(current lattice.Coord) lattice.Coord {
	directions := append([]lattice.Coord(nil), t.geom.Directions()...)
	t.rng.Shuffle(len(directions), func(i, j int) { directions[i], directions[j] = directions[j], directions[i] })
	weights := make([]float64, 0, len(directions))
	for _, d := range directions {
		l := t.stepsToEmpty(current, d)
		if l == 0 {
			return d
		}
		weights = append(weights, 1.0/float64(l))
	}
	return directions[rouletteSelect(weights, t.rng)]
}

func rouletteSelect(weights []float64, rng *core.RNG) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0.0 {
			return i
		}
	}
	return len(weights) - 1
}

func (t *Tissue) numEmptyNeighbors(v lattice.Coord) int {
	cnt := 0
	for _, n := range t.geom.Neighbors(v) {
		if _, ok := t.extant[n]; !ok {
			cnt++
		}
	}
	return cnt
}

func (t *Tissue) proportionEmptyNeighbors(v lattice.Coord) float64 {
	return float64(t.numEmptyNeighbors(v)) / float64(t.geom.MaxNeighbors())
}
