package tissue

import (
	"container/heap"
	"math"
	"strconv"
	"strings"
	"testing"

	"neoplasm/internal/cell"
	"neoplasm/internal/core"
	"neoplasm/internal/lattice"
)

func newTestTissue(t *testing.T, opts Options, p cell.Params, dp cell.DriverParams, seed uint64) *Tissue {
	t.Helper()
	rng := core.NewRNG(seed)
	env := cell.NewEnv(p, dp, rng)
	tis, err := New(opts, env, rng)
	if err != nil {
		t.Fatal(err)
	}
	return tis
}

func immortal() cell.Params {
	return cell.Params{GammaShape: 1, SymmetricProb: 1, MaxProliferation: 1 << 30}
}

func defaultOptions() Options {
	return Options{
		InitialSize:        1,
		Dimensions:         2,
		Coordinate:         "moore",
		LocalDensityEffect: "const",
		DisplacementPath:   "random",
		InitialRates:       cell.EventRates{Birth: 1},
	}
}

func checkOccupancy(t *testing.T, tis *Tissue) {
	t.Helper()
	for v, c := range tis.extant {
		if c.Coord() != v {
			t.Fatalf("cell %d indexed at %v but positioned at %v", c.ID(), v, c.Coord())
		}
	}
}

func TestQueueOrdering(t *testing.T) {
	var q eventQueue
	heap.Push(&q, &entry{time: 2.0, seq: 1})
	heap.Push(&q, &entry{time: 1.0, seq: 2})
	heap.Push(&q, &entry{time: 1.0, seq: 3})
	heap.Push(&q, &entry{time: 0.5, seq: 4})
	var got []uint64
	for q.Len() > 0 {
		got = append(got, heap.Pop(&q).(*entry).seq)
	}
	want := []uint64{4, 2, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pop order = %v, want %v", got, want)
		}
	}
}

func TestNewSeedsCompactBall(t *testing.T) {
	opts := defaultOptions()
	opts.InitialSize = 10
	tis := newTestTissue(t, opts, immortal(), cell.DriverParams{}, 1)
	if tis.Size() != 10 {
		t.Fatalf("size = %d, want 10", tis.Size())
	}
	if len(tis.queue) != 10 {
		t.Fatalf("queue has %d entries, want 10", len(tis.queue))
	}
	checkOccupancy(t, tis)
	wantSites := map[lattice.Coord]bool{}
	for _, v := range tis.Geometry().Sphere(10) {
		wantSites[v] = true
	}
	ids := map[int]bool{}
	for v, c := range tis.extant {
		if !wantSites[v] {
			t.Fatalf("seed at %v outside the founding ball", v)
		}
		if ids[c.ID()] {
			t.Fatalf("duplicate id %d", c.ID())
		}
		ids[c.ID()] = true
		if c.TimeOfBirth() != 0 {
			t.Fatalf("seed born at %v, want 0", c.TimeOfBirth())
		}
	}
	if tis.IDTail() < 10 {
		t.Fatalf("idTail = %d after seeding 10 cells", tis.IDTail())
	}
}

func TestInvalidPolicyCombination(t *testing.T) {
	opts := defaultOptions()
	opts.DisplacementPath = "teleport"
	rng := core.NewRNG(1)
	env := cell.NewEnv(immortal(), cell.DriverParams{}, rng)
	_, err := New(opts, env, rng)
	if err == nil {
		t.Fatal("expected error for unknown displacement path")
	}
	if !strings.Contains(err.Error(), "choose from") {
		t.Fatalf("error %q does not list the valid combinations", err)
	}
}

// place adds a fresh cell at v directly to the occupancy index.
func place(tis *Tissue, v lattice.Coord) *cell.Cell {
	tis.idTail++
	c := cell.NewRoot(v, tis.idTail, cell.EventRates{Birth: 1}, tis.env)
	tis.extant[v] = c
	return c
}

func TestPushShiftsChain(t *testing.T) {
	tis := newTestTissue(t, defaultOptions(), immortal(), cell.DriverParams{}, 1)
	// Occupy a row next to the seed at the origin.
	place(tis, lattice.Coord{1, 0, 0})
	place(tis, lattice.Coord{2, 0, 0})

	tis.idTail++
	moving := cell.NewRoot(lattice.Coord{0, 0, 0}, tis.idTail, cell.EventRates{Birth: 1}, tis.env)
	tis.push(moving, lattice.Coord{1, 0, 0})

	for _, v := range []lattice.Coord{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}} {
		if _, ok := tis.extant[v]; !ok {
			t.Fatalf("site %v empty after push", v)
		}
	}
	if tis.extant[lattice.Coord{1, 0, 0}] != moving {
		t.Fatal("pushed cell did not take the first site of the chain")
	}
	checkOccupancy(t, tis)
}

func TestStepsToEmpty(t *testing.T) {
	tis := newTestTissue(t, defaultOptions(), immortal(), cell.DriverParams{}, 1)
	place(tis, lattice.Coord{1, 0, 0})
	place(tis, lattice.Coord{2, 0, 0})
	if got := tis.stepsToEmpty(lattice.Coord{0, 0, 0}, lattice.Coord{1, 0, 0}); got != 2 {
		t.Fatalf("steps along the occupied row = %d, want 2", got)
	}
	if got := tis.stepsToEmpty(lattice.Coord{0, 0, 0}, lattice.Coord{0, 1, 0}); got != 0 {
		t.Fatalf("steps toward a free neighbor = %d, want 0", got)
	}
	d := tis.toNearestEmpty(lattice.Coord{0, 0, 0}, searchMaxDirections)
	if got := tis.stepsToEmpty(lattice.Coord{0, 0, 0}, d); got != 0 {
		t.Fatalf("nearest-empty direction %v has %d steps, want 0", d, got)
	}
}

func TestRouletteDirectionPrefersFreeNeighbor(t *testing.T) {
	tis := newTestTissue(t, defaultOptions(), immortal(), cell.DriverParams{}, 1)
	place(tis, lattice.Coord{1, 0, 0})
	d := tis.rouletteDirection(lattice.Coord{0, 0, 0})
	if got := tis.stepsToEmpty(lattice.Coord{0, 0, 0}, d); got != 0 {
		t.Fatalf("roulette picked %v with %d steps while free neighbors exist", d, got)
	}
}

func surround(tis *Tissue, v lattice.Coord) {
	for _, n := range tis.geom.Neighbors(v) {
		if _, ok := tis.extant[n]; !ok {
			place(tis, n)
		}
	}
}

func TestInsertAdjacentFailsWhenSurrounded(t *testing.T) {
	tis := newTestTissue(t, defaultOptions(), immortal(), cell.DriverParams{}, 1)
	origin := lattice.Coord{0, 0, 0}
	surround(tis, origin)
	if got := tis.numEmptyNeighbors(origin); got != 0 {
		t.Fatalf("numEmptyNeighbors = %d after surrounding", got)
	}
	if got := tis.proportionEmptyNeighbors(origin); got != 0 {
		t.Fatalf("proportionEmptyNeighbors = %v, want 0", got)
	}
	tis.idTail++
	moving := cell.NewRoot(origin, tis.idTail, cell.EventRates{Birth: 1}, tis.env)
	if tis.insertAdjacent(moving) {
		t.Fatal("insertAdjacent succeeded with no free neighbor")
	}
	if moving.Coord() != origin {
		t.Fatalf("failed insert moved the cell to %v", moving.Coord())
	}
}

func TestMigrateSwapsWithResident(t *testing.T) {
	tis := newTestTissue(t, defaultOptions(), immortal(), cell.DriverParams{}, 1)
	origin := lattice.Coord{0, 0, 0}
	mover := tis.extant[origin]
	surround(tis, origin)
	before := tis.Size()
	tis.migrate(mover)
	if tis.Size() != before {
		t.Fatalf("size changed from %d to %d during migration", before, tis.Size())
	}
	if mover.Coord() == origin {
		t.Fatal("migration did not move the cell")
	}
	resident, ok := tis.extant[origin]
	if !ok || resident == mover {
		t.Fatal("displaced resident did not take the vacated site")
	}
	checkOccupancy(t, tis)
}

func TestGrowReachesMaxSize(t *testing.T) {
	opts := defaultOptions()
	tis := newTestTissue(t, opts, immortal(), cell.DriverParams{}, 42)
	ok := tis.Grow(GrowOptions{
		MaxSize:          100,
		MaxTime:          math.Inf(1),
		SnapshotInterval: math.Inf(1),
		MutationTiming:   math.MaxInt,
	})
	if !ok {
		t.Fatal("growth reported extinction")
	}
	if tis.Size() != 100 {
		t.Fatalf("size = %d, want 100", tis.Size())
	}
	if len(tis.queue) != 100 {
		t.Fatalf("queue has %d entries for 100 extant cells", len(tis.queue))
	}
	checkOccupancy(t, tis)

	rows := tis.HistoryRows()
	if len(rows) != 1+len(tis.history)+100 {
		t.Fatalf("history table has %d rows", len(rows))
	}
	ids := map[int]bool{}
	for _, c := range tis.history {
		if ids[c.ID()] {
			t.Fatalf("archived id %d reused", c.ID())
		}
		ids[c.ID()] = true
	}
	for _, c := range tis.extantCells() {
		if ids[c.ID()] {
			t.Fatalf("extant id %d also archived", c.ID())
		}
		ids[c.ID()] = true
		if c.ID() > 1 && c.Ancestor() == nil {
			t.Fatalf("cell %d has no ancestor", c.ID())
		}
		if c.TimeOfDeath() != 0 {
			t.Fatalf("extant cell %d has a death time", c.ID())
		}
	}
	for _, c := range tis.history {
		if c.TimeOfDeath() < 0 {
			t.Fatalf("archived cell %d has negative death time", c.ID())
		}
	}
}

func TestGrowExtinction(t *testing.T) {
	opts := defaultOptions()
	opts.InitialRates = cell.EventRates{Death: 1}
	tis := newTestTissue(t, opts, immortal(), cell.DriverParams{}, 7)
	ok := tis.Grow(GrowOptions{
		MaxSize:          1000,
		MaxTime:          math.Inf(1),
		SnapshotInterval: math.Inf(1),
		MutationTiming:   math.MaxInt,
	})
	if ok {
		t.Fatal("pure-death growth did not report extinction")
	}
	if tis.Size() != 0 {
		t.Fatalf("size = %d after extinction", tis.Size())
	}
	if len(tis.history) != 1 {
		t.Fatalf("history holds %d cells, want the single seed", len(tis.history))
	}
	if tis.history[0].TimeOfDeath() <= 0 {
		t.Fatal("archived seed has no death time")
	}
}

func TestGrowStopsAtMaxTime(t *testing.T) {
	tis := newTestTissue(t, defaultOptions(), immortal(), cell.DriverParams{}, 5)
	ok := tis.Grow(GrowOptions{
		MaxSize:          math.MaxInt,
		MaxTime:          3.0,
		SnapshotInterval: math.Inf(1),
		MutationTiming:   math.MaxInt,
	})
	if !ok {
		t.Fatal("time-capped growth reported extinction")
	}
	if tis.Time() <= 3.0 {
		t.Fatalf("time = %v, want the first event past the cap", tis.Time())
	}
}

func TestGrowSnapshotInterval(t *testing.T) {
	tis := newTestTissue(t, defaultOptions(), immortal(), cell.DriverParams{}, 11)
	tis.Grow(GrowOptions{
		MaxSize:          64,
		MaxTime:          math.Inf(1),
		SnapshotInterval: 0.5,
		MutationTiming:   math.MaxInt,
	})
	rows := tis.SnapshotRows()
	if len(rows) < 2 {
		t.Fatal("no snapshots recorded with a finite interval")
	}
	if got := rows[0][0]; got != "time" {
		t.Fatalf("snapshot header starts with %q", got)
	}
	prev := -1.0
	for _, row := range rows[1:] {
		if len(row) != len(rows[0]) {
			t.Fatalf("snapshot row has %d fields, header has %d", len(row), len(rows[0]))
		}
		v := parseFloat(t, row[0])
		if v < prev {
			t.Fatalf("snapshot times decrease: %v after %v", v, prev)
		}
		prev = v
	}
}

func parseFloat(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.Fatalf("cannot parse %q as float: %v", s, err)
	}
	return v
}

func TestForcedDriverFiresOnce(t *testing.T) {
	opts := defaultOptions()
	tis := newTestTissue(t, opts, immortal(), cell.DriverParams{
		MeanBirth: 0.1, MeanDeath: 0.1, MeanMigra: 0.1,
	}, 3)
	tis.Grow(GrowOptions{
		MaxSize:          50,
		MaxTime:          math.Inf(1),
		SnapshotInterval: math.Inf(1),
		MutationTiming:   20,
	})
	if len(tis.drivers) != 3 {
		t.Fatalf("drivers log has %d entries, want the single forced triple", len(tis.drivers))
	}
	wantTraits := []string{"birth", "death", "migra"}
	id := tis.drivers[0].CellID
	for i, d := range tis.drivers {
		if d.Trait != wantTraits[i] {
			t.Fatalf("driver %d trait = %q, want %q", i, d.Trait, wantTraits[i])
		}
		if d.CellID != id {
			t.Fatalf("forced triple spans cells %d and %d", id, d.CellID)
		}
	}
}

func TestStepDensityStallsWhenPacked(t *testing.T) {
	opts := defaultOptions()
	opts.LocalDensityEffect = "step"
	tis := newTestTissue(t, opts, immortal(), cell.DriverParams{}, 9)
	origin := lattice.Coord{0, 0, 0}
	surround(tis, origin)
	size := tis.Size()
	tis.idTail++
	daughter := cell.NewRoot(origin, tis.idTail, cell.EventRates{Birth: 1}, tis.env)
	if tis.insert(daughter) {
		t.Fatal("step insertion succeeded with zero empty neighbors")
	}
	if tis.Size() != size {
		t.Fatalf("failed insertion changed size from %d to %d", size, tis.Size())
	}
}

func TestLinearMindragRefusesOccupiedNeighbor(t *testing.T) {
	opts := defaultOptions()
	opts.LocalDensityEffect = "linear"
	opts.DisplacementPath = "mindrag"
	tis := newTestTissue(t, opts, immortal(), cell.DriverParams{}, 9)
	origin := lattice.Coord{0, 0, 0}
	surround(tis, origin)
	tis.idTail++
	daughter := cell.NewRoot(origin, tis.idTail, cell.EventRates{Birth: 1}, tis.env)
	if tis.insert(daughter) {
		t.Fatal("linear mindrag inserted into a fully occupied neighborhood")
	}
}

func TestPlateauBalancesRates(t *testing.T) {
	tis := newTestTissue(t, defaultOptions(), immortal(), cell.DriverParams{}, 13)
	tis.Grow(GrowOptions{
		MaxSize:          50,
		MaxTime:          math.Inf(1),
		SnapshotInterval: math.Inf(1),
		MutationTiming:   math.MaxInt,
	})
	t0 := tis.Time()
	tis.Plateau(5.0)
	if tis.Size() > 0 {
		if tis.Time() <= t0+5.0 {
			t.Fatalf("time = %v after plateau from %v", tis.Time(), t0)
		}
		if len(tis.queue) == 0 {
			t.Fatal("queue empty with extant cells after plateau")
		}
		for _, c := range tis.extantCells() {
			if c.DeathRate() != c.BirthRate() {
				t.Fatalf("cell %d has delta %v != beta %v after plateau", c.ID(), c.DeathRate(), c.BirthRate())
			}
		}
	}
	checkOccupancy(t, tis)
}

func TestTreatmentSparesResistant(t *testing.T) {
	tis := newTestTissue(t, defaultOptions(), immortal(), cell.DriverParams{}, 17)
	tis.Grow(GrowOptions{
		MaxSize:          100,
		MaxTime:          math.Inf(1),
		SnapshotInterval: math.Inf(1),
		MutationTiming:   math.MaxInt,
	})
	tis.Treatment(1.0, 3)
	if tis.Size() != 140 {
		t.Fatalf("size = %d after treatment, want regrowth to 140", tis.Size())
	}
	for _, c := range tis.extantCells() {
		if c.DeathProb() != 0 {
			t.Fatalf("cell %d kept death prob %v; survivors must descend from resistant cells", c.ID(), c.DeathProb())
		}
	}
	checkOccupancy(t, tis)
}

func TestClearArchivesEverything(t *testing.T) {
	opts := defaultOptions()
	opts.InitialSize = 5
	tis := newTestTissue(t, opts, immortal(), cell.DriverParams{}, 1)
	archived := len(tis.history)
	tis.Clear()
	if tis.Size() != 0 || len(tis.queue) != 0 {
		t.Fatal("clear left extant cells or queue entries")
	}
	if len(tis.history) != archived+5 {
		t.Fatalf("history holds %d cells, want %d", len(tis.history), archived+5)
	}
}
