package tissue

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"neoplasm/internal/cell"
	"neoplasm/internal/core"
	"neoplasm/internal/lattice"
)

// SampleRandom draws n extant cells uniformly without replacement.
func (t *Tissue) SampleRandom(n int) []*cell.Cell {
	return sampleFrom(t.extantCells(), n, t.rng)
}

// SampleSection draws n cells uniformly from the z=0 cross section.
func (t *Tissue) SampleSection(n int) []*cell.Cell {
	var section []*cell.Cell
	for _, c := range t.extantCells() {
		if c.Coord().Z() == 0 {
			section = append(section, c)
		}
	}
	return sampleFrom(section, n, t.rng)
}

func sampleFrom(cells []*cell.Cell, n int, rng *core.RNG) []*cell.Cell {
	rng.Shuffle(len(cells), func(i, j int) { cells[i], cells[j] = cells[j], cells[i] })
	if n > len(cells) {
		n = len(cells)
	}
	return cells[:n:n]
}

// SampleBulk returns the n extant cells nearest to center in Euclidean
// distance. Equidistant cells keep id order.
func (t *Tissue) SampleBulk(center lattice.Coord, n int) []*cell.Cell {
	cells := t.extantCells()
	sort.SliceStable(cells, func(i, j int) bool {
		di := t.geom.EuclideanDistance(cells[i].Coord().Sub(center))
		dj := t.geom.EuclideanDistance(cells[j].Coord().Sub(center))
		return di < dj
	})
	if n > len(cells) {
		n = len(cells)
	}
	return cells[:n:n]
}

// SampleMedoids partitions the extant coords into n clusters around medoids
// and returns the medoid cells. Greedy swap refinement from a random start;
// the clustering cost is the sum of distances to the nearest medoid.
func (t *Tissue) SampleMedoids(n int) []*cell.Cell {
	cells := t.extantCells()
	if n >= len(cells) {
		return cells
	}
	dist := func(i, j int) float64 {
		return t.geom.EuclideanDistance(cells[i].Coord().Sub(cells[j].Coord()))
	}
	indexes := make([]int, len(cells))
	for i := range indexes {
		indexes[i] = i
	}
	t.rng.Shuffle(len(indexes), func(i, j int) { indexes[i], indexes[j] = indexes[j], indexes[i] })
	medoids := append([]int(nil), indexes[:n]...)
	inMedoids := make(map[int]bool, n)
	for _, m := range medoids {
		inMedoids[m] = true
	}
	cost := func(ms []int) float64 {
		total := 0.0
		for i := range cells {
			best := dist(i, ms[0])
			for _, m := range ms[1:] {
				if d := dist(i, m); d < best {
					best = d
				}
			}
			total += best
		}
		return total
	}
	bestCost := cost(medoids)
	for improved := true; improved; {
		improved = false
		for mi := range medoids {
			for candidate := range cells {
				if inMedoids[candidate] {
					continue
				}
				old := medoids[mi]
				medoids[mi] = candidate
				if c := cost(medoids); c < bestCost {
					bestCost = c
					delete(inMedoids, old)
					inMedoids[candidate] = true
					improved = true
				} else {
					medoids[mi] = old
				}
			}
		}
	}
	sort.Ints(medoids)
	sampled := make([]*cell.Cell, 0, n)
	for _, m := range medoids {
		sampled = append(sampled, cells[m])
	}
	return sampled
}

// GenerateNeutralMutations labels divisions with effect-free sites. It draws
// Poisson(mu * idTail) uniform ids from 1..idTail; with ensure set it first
// lays down one site per issued id 1..idTail. Duplicate ids are distinct
// sites.
func (t *Tissue) GenerateNeutralMutations(mu float64, ensure bool) []int {
	num := 0
	if lambda := mu * float64(t.idTail); lambda > 0.0 {
		num = int(distuv.Poisson{Lambda: lambda, Src: t.rng.Source()}.Rand())
	}
	var mutants []int
	if ensure {
		mutants = make([]int, 0, t.idTail+num)
		for id := 1; id <= t.idTail; id++ {
			mutants = append(mutants, id)
		}
	} else {
		mutants = make([]int, 0, num)
	}
	for i := 0; i < num; i++ {
		mutants = append(mutants, t.rng.Intn(t.idTail)+1)
	}
	return mutants
}

// WriteSegsites emits one ms-like replicate block: per-sample 0/1 genotypes
// at each mutant site, keeping only segregating sites, where the derived
// allele is present in some but not all samples.
func WriteSegsites(w io.Writer, samples []*cell.Cell, mutants []int) error {
	sampleSize := len(samples)
	flags := make([][]uint8, sampleSize)
	for i, c := range samples {
		flags[i] = c.HasMutationsOf(mutants)
	}
	var segsites [][]uint8
	for site := range mutants {
		daf := 0
		row := make([]uint8, sampleSize)
		for i := range samples {
			row[i] = flags[i][site]
			daf += int(row[i])
		}
		if 0 < daf && daf < sampleSize {
			segsites = append(segsites, row)
		}
	}
	s := len(segsites)
	var b strings.Builder
	fmt.Fprintf(&b, "\n//\nsegsites: %d\n", s)
	if s > 0 {
		b.WriteString("positions: ")
		for i := 0; i < s; i++ {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteByte('0')
		}
		b.WriteByte('\n')
		for i := range samples {
			for _, row := range segsites {
				b.WriteByte('0' + row[i])
			}
			b.WriteByte('\n')
		}
	} else {
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// PairwiseDistanceRows samples 2*npair cells and renders the genealogical,
// graph, and Euclidean distances of consecutive shuffled pairs.
func (t *Tissue) PairwiseDistanceRows(npair int) [][]string {
	rows := [][]string{{"genealogy", "graph", "euclidean"}}
	if npair == 0 {
		return rows
	}
	samples := t.SampleRandom(2 * npair)
	t.rng.Shuffle(len(samples), func(i, j int) { samples[i], samples[j] = samples[j], samples[i] })
	for i := 0; i+1 < len(samples); i += 2 {
		lhs, rhs := samples[i], samples[i+1]
		diff := lhs.Coord().Sub(rhs.Coord())
		rows = append(rows, []string{
			strconv.Itoa(lhs.BranchLength(rhs)),
			strconv.Itoa(t.geom.GraphDistance(diff)),
			core.Ftoa(t.geom.EuclideanDistance(diff)),
		})
	}
	return rows
}
