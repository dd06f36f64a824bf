package tissue

import (
	"container/heap"
	"fmt"
	"math"
	"sort"
	"strconv"

	"neoplasm/internal/cell"
	"neoplasm/internal/core"
	"neoplasm/internal/lattice"
)

// Options selects the geometry, the insertion policy, and the founding
// population of a tissue.
type Options struct {
	InitialSize        int
	Dimensions         int
	Coordinate         string
	LocalDensityEffect string
	DisplacementPath   string
	InitialRates       cell.EventRates
}

// Tissue couples the occupancy index, the event queue, and the recorded
// history of one growing population. The occupancy index keys extant cells
// by lattice position, one cell per site; every extant cell has exactly one
// queue entry at a time not earlier than the current simulated time.
type Tissue struct {
	geom lattice.Geometry
	env  *cell.Env
	rng  *core.RNG

	extant map[lattice.Coord]*cell.Cell
	queue  eventQueue
	seq    uint64
	insert func(*cell.Cell) bool

	time      float64
	idTail    int
	iSnapshot int

	history   []*cell.Cell
	snapshots [][]string
	drivers   []cell.Driver
}

// New builds a tissue seeded with a compact ball of InitialSize cells. The
// founders descend from a single origin cell through zero-duration divisions
// so that every pair of seeds already has a genealogical path at time 0.
func New(opts Options, env *cell.Env, rng *core.RNG) (*Tissue, error) {
	if opts.InitialSize < 1 {
		return nil, fmt.Errorf("invalid initial size %d; must be positive", opts.InitialSize)
	}
	geom, err := lattice.New(opts.Coordinate, opts.Dimensions)
	if err != nil {
		return nil, err
	}
	t := &Tissue{
		geom:   geom,
		env:    env,
		rng:    rng,
		extant: make(map[lattice.Coord]*cell.Cell, opts.InitialSize),
	}
	if err := t.initInsert(opts.LocalDensityEffect, opts.DisplacementPath); err != nil {
		return nil, err
	}
	coords := geom.Sphere(opts.InitialSize)
	t.idTail++
	origin := cell.NewRoot(coords[0], t.idTail, opts.InitialRates, env)
	t.extant[origin.Coord()] = origin
	for len(t.extant) < opts.InitialSize {
		for _, mother := range t.extantCells() {
			daughter := mother.Daughter(env)
			ancestor := mother.Snapshot()
			ancestor.SetTimeOfDeath(0.0)
			t.history = append(t.history, ancestor)
			t.idTail++
			mother.SetTimeOfBirth(0.0, t.idTail, ancestor)
			t.idTail++
			daughter.SetTimeOfBirth(0.0, t.idTail, ancestor)
			daughter.SetCoord(coords[len(t.extant)])
			t.extant[daughter.Coord()] = daughter
			if len(t.extant) >= opts.InitialSize {
				break
			}
		}
	}
	for _, c := range t.extantCells() {
		t.queuePush(c)
	}
	return t, nil
}

// GrowOptions caps one growth phase. RecordingEarlyGrowth appends a snapshot
// after every change while the population is below it; MutationTiming arms a
// one-shot forced driver on the first daughter born above it.
type GrowOptions struct {
	MaxSize              int
	MaxTime              float64
	SnapshotInterval     float64
	RecordingEarlyGrowth int
	MutationTiming       int
}

// Grow pops events until a cap is hit or the population dies out. It reports
// false only on extinction; the recorded history survives either way. The
// entry that trips a cap stays queued so a later phase can resume from it.
func (t *Tissue) Grow(opts GrowOptions) bool {
	recording := opts.RecordingEarlyGrowth
	mutationTiming := opts.MutationTiming
	if recording > 0 {
		t.snapshotsAppend()
	}
	timeSnapshot := math.Inf(1)
	if !math.IsInf(opts.SnapshotInterval, 1) {
		timeSnapshot = float64(t.iSnapshot) * opts.SnapshotInterval
	}
	for {
		if len(t.queue) == 0 {
			return false
		}
		t.time = t.queue[0].time
		if t.time > opts.MaxTime || len(t.extant) >= opts.MaxSize {
			return true
		}
		if t.time > timeSnapshot {
			t.snapshotsAppend()
			t.iSnapshot++
			timeSnapshot = float64(t.iSnapshot) * opts.SnapshotInterval
		}
		mother := heap.Pop(&t.queue).(*entry).c
		if occupant := t.extant[mother.Coord()]; occupant != mother {
			panic(fmt.Sprintf("occupancy does not hold scheduled cell %d at %v", mother.ID(), mother.Coord()))
		}
		switch mother.NextEvent() {
		case cell.Birth:
			daughter := mother.Daughter(t.env)
			if !t.insert(daughter) {
				t.queuePush(mother)
				continue
			}
			ancestor := mother.Snapshot()
			ancestor.SetTimeOfDeath(t.time)
			t.history = append(t.history, ancestor)
			t.idTail++
			mother.SetTimeOfBirth(t.time, t.idTail, ancestor)
			t.idTail++
			daughter.SetTimeOfBirth(t.time, t.idTail, ancestor)
			t.drivers = append(t.drivers, mother.Mutate(t.env)...)
			t.drivers = append(t.drivers, daughter.Mutate(t.env)...)
			if len(t.extant) > mutationTiming {
				mutationTiming = math.MaxInt
				t.drivers = append(t.drivers, daughter.ForceMutate(t.env)...)
			}
			t.queuePush(mother)
			t.queuePush(daughter)
		case cell.Death:
			mother.SetTimeOfDeath(t.time)
			t.history = append(t.history, mother)
			delete(t.extant, mother.Coord())
			if len(t.extant) == 0 {
				return false
			}
		default:
			t.migrate(mother)
			t.queuePush(mother)
		}
		if len(t.extant) < recording {
			t.snapshotsAppend()
		} else {
			recording = 0
		}
	}
}

// Plateau rebalances every extant cell to zero expected growth and runs for
// the given duration. The queue is rebuilt because raising delta invalidates
// every pending waiting time.
func (t *Tissue) Plateau(duration float64) {
	t.queue = t.queue[:0]
	for _, c := range t.extantCells() {
		c.IncreaseDeathRate()
		c.SetElapsed(0.0)
		t.queuePush(c)
	}
	t.Grow(GrowOptions{
		MaxSize:          math.MaxInt,
		MaxTime:          t.time + duration,
		SnapshotInterval: math.Inf(1),
		MutationTiming:   math.MaxInt,
	})
}

// Treatment imposes cycle-dependent death on all but numResistant cells,
// chosen by shuffling a deterministic materialization of the queue, then
// runs until the population either dies out or regrows past the starting
// size by 10*numResistant+10 cells.
func (t *Tissue) Treatment(deathProb float64, numResistant int) {
	originalSize := len(t.extant)
	entries := append([]*entry(nil), t.queue...)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].time != entries[j].time {
			return entries[i].time < entries[j].time
		}
		return entries[i].seq < entries[j].seq
	})
	cells := make([]*cell.Cell, len(entries))
	for i, e := range entries {
		cells[i] = e.c
	}
	t.rng.Shuffle(len(cells), func(i, j int) { cells[i], cells[j] = cells[j], cells[i] })
	for i, c := range cells {
		if i >= numResistant {
			c.SetCycleDependentDeath(t.env, deathProb)
		}
	}
	margin := 10*numResistant + 10
	t.Grow(GrowOptions{
		MaxSize:          originalSize + margin,
		MaxTime:          math.Inf(1),
		SnapshotInterval: math.Inf(1),
		MutationTiming:   math.MaxInt,
	})
}

// Clear archives every extant cell into history and empties the queue and
// the occupancy index.
func (t *Tissue) Clear() {
	for _, c := range t.extantCells() {
		t.history = append(t.history, c)
	}
	t.extant = make(map[lattice.Coord]*cell.Cell)
	t.queue = t.queue[:0]
}

// queuePush draws the waiting time of c and schedules it.
func (t *Tissue) queuePush(c *cell.Cell) {
	dt := c.DeltaTime(t.env, t.positionalValue(c.Coord()))
	t.seq++
	heap.Push(&t.queue, &entry{time: t.time + dt, seq: t.seq, c: c})
}

// positionalValue scales the birth intensity by position. Held at 1.0 until
// a spatial growth-factor model is chosen.
func (t *Tissue) positionalValue(lattice.Coord) float64 { return 1.0 }

// migrate moves c to a random neighbor, swapping positions with the
// resident when the target is occupied.
func (t *Tissue) migrate(moving *cell.Cell) {
	orig := moving.Coord()
	delete(t.extant, orig)
	moving.SetCoord(t.geom.RandomNeighbor(orig, t.rng))
	if resident, ok := t.extant[moving.Coord()]; ok {
		t.extant[moving.Coord()] = moving
		resident.SetCoord(orig)
		t.extant[orig] = resident
		return
	}
	t.extant[moving.Coord()] = moving
}

// extantCells lists the living cells in ascending id order. Every iteration
// over the occupancy index that feeds randomized decisions or output goes
// through this ordering so a seed fixes the run.
func (t *Tissue) extantCells() []*cell.Cell {
	cells := make([]*cell.Cell, 0, len(t.extant))
	for _, c := range t.extant {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].ID() < cells[j].ID() })
	return cells
}

func (t *Tissue) snapshotsAppend() {
	for _, c := range t.extantCells() {
		row := append([]string{core.Ftoa(t.time)}, c.Fields()...)
		t.snapshots = append(t.snapshots, row)
	}
}

// Size reports the number of extant cells.
func (t *Tissue) Size() int { return len(t.extant) }

// Time reports the current simulated time.
func (t *Tissue) Time() float64 { return t.time }

// IDTail reports the highest id issued so far. Every division issues two
// ids (mother and daughter), so this is one plus twice the number of
// recorded divisions.
func (t *Tissue) IDTail() int { return t.idTail }

// Geometry returns the lattice the tissue grows on.
func (t *Tissue) Geometry() lattice.Geometry { return t.geom }

// HistoryRows renders the full recorded population: the header, every
// archived cell in event order, then the extant cells in id order.
func (t *Tissue) HistoryRows() [][]string {
	rows := make([][]string, 0, len(t.history)+len(t.extant)+1)
	rows = append(rows, cell.Header())
	for _, c := range t.history {
		rows = append(rows, c.Fields())
	}
	for _, c := range t.extantCells() {
		rows = append(rows, c.Fields())
	}
	return rows
}

// SnapshotRows renders the time-indexed snapshot stream.
func (t *Tissue) SnapshotRows() [][]string {
	rows := make([][]string, 0, len(t.snapshots)+1)
	rows = append(rows, append([]string{"time"}, cell.Header()...))
	return append(rows, t.snapshots...)
}

// DriverRows renders the driver-mutation log in the order the hits happened.
func (t *Tissue) DriverRows() [][]string {
	rows := make([][]string, 0, len(t.drivers)+1)
	rows = append(rows, []string{"id", "type", "coef"})
	for _, d := range t.drivers {
		rows = append(rows, []string{strconv.Itoa(d.CellID), d.Trait, core.Ftoa(d.Coef)})
	}
	return rows
}
