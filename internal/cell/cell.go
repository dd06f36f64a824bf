package cell

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/stat/distuv"

	"neoplasm/internal/core"
	"neoplasm/internal/lattice"
)

// Type distinguishes stem cells (unbounded divisions) from differentiated
// cells with a finite proliferation budget.
type Type uint8

const (
	Stem Type = iota
	NonStem
)

// Event is the kind of the next scheduled event of a cell.
type Event uint8

const (
	Birth Event = iota
	Death
	Migration
)

// Cell is one simulated cell: a lattice position, a shared handle to its
// event rates, and the genealogical record linking it to the immutable
// snapshot of the division that produced it.
type Cell struct {
	coord       lattice.Coord
	rates       *EventRates
	typ         Type
	capacity    int
	id          int
	ancestor    *Cell
	timeOfBirth float64
	timeOfDeath float64
	nextEvent   Event
	elapsed     float64
}

// NewRoot creates a seed cell at v owning a fresh copy of rates.
func NewRoot(v lattice.Coord, id int, rates EventRates, env *Env) *Cell {
	return &Cell{
		coord:    v,
		rates:    &rates,
		typ:      Stem,
		capacity: env.params.MaxProliferation,
		id:       id,
	}
}

// Daughter copies c for a division. A stem copy differentiates with
// probability 1 - SymmetricProb. The copy shares the rates handle, keeps
// id and ancestor until SetTimeOfBirth reassigns them, and starts with a
// fresh event clock.
func (c *Cell) Daughter(env *Env) *Cell {
	d := &Cell{
		coord:       c.coord,
		rates:       c.rates,
		typ:         c.typ,
		capacity:    c.capacity,
		id:          c.id,
		ancestor:    c.ancestor,
		timeOfBirth: c.timeOfBirth,
	}
	if d.typ == Stem && !env.rng.Bernoulli(env.params.SymmetricProb) {
		d.typ = NonStem
	}
	return d
}

// Snapshot returns an archival copy of c. Snapshots are immutable once
// archived; descendants hold them as ancestor links.
func (c *Cell) Snapshot() *Cell {
	clone := *c
	return &clone
}

// SetTimeOfBirth stamps a division: new time, fresh id, and the ancestor
// snapshot shared with the sibling. Differentiated cells pay one division
// from their budget.
func (c *Cell) SetTimeOfBirth(t float64, id int, ancestor *Cell) {
	c.timeOfBirth = t
	c.id = id
	c.ancestor = ancestor
	if c.typ == NonStem {
		c.capacity--
	}
}

// SetTimeOfDeath stamps the removal time before the cell moves to history.
func (c *Cell) SetTimeOfDeath(t float64) { c.timeOfDeath = t }

// SetCoord moves the cell to v. The occupancy index must be updated by the
// caller.
func (c *Cell) SetCoord(v lattice.Coord) { c.coord = v }

// Coord returns the current lattice position.
func (c *Cell) Coord() lattice.Coord { return c.coord }

// ID returns the unique id of the cell.
func (c *Cell) ID() int { return c.id }

// Ancestor returns the snapshot of the division that produced this cell,
// or nil for seed-lineage roots.
func (c *Cell) Ancestor() *Cell { return c.ancestor }

// NextEvent reports the event chosen by the most recent DeltaTime call.
func (c *Cell) NextEvent() Event { return c.nextEvent }

// Type reports whether the cell is stem or differentiated.
func (c *Cell) Type() Type { return c.typ }

// Capacity reports the remaining proliferation budget.
func (c *Cell) Capacity() int { return c.capacity }

// TimeOfBirth returns the simulated time of the producing division.
func (c *Cell) TimeOfBirth() float64 { return c.timeOfBirth }

// TimeOfDeath returns the removal time; zero while the cell is extant.
func (c *Cell) TimeOfDeath() float64 { return c.timeOfDeath }

// BirthRate returns beta.
func (c *Cell) BirthRate() float64 { return c.rates.Birth }

// DeathRate returns delta.
func (c *Cell) DeathRate() float64 { return c.rates.Death }

// DeathProb returns alpha, the chance a division attempt kills instead.
func (c *Cell) DeathProb() float64 { return c.rates.DeathProb }

// MigraRate returns rho.
func (c *Cell) MigraRate() float64 { return c.rates.Migra }

// SetElapsed overrides the accumulated dwell time of the birth clock.
func (c *Cell) SetElapsed(v float64) { c.elapsed = v }

// cow detaches the rates handle before a write.
func (c *Cell) cow() {
	r := *c.rates
	c.rates = &r
}

// Mutate runs one independent driver trial per trait. Each hit clones the
// rates, multiplies the trait by (1 + s) with s drawn from the trait's
// Gaussian, and yields a Driver record. A death hit scales the death
// probability by the same factor.
func (c *Cell) Mutate(env *Env) []Driver {
	var drivers []Driver
	if env.rng.Bernoulli(env.driver.RateBirth) {
		c.cow()
		s := env.gaussBirth.Rand()
		drivers = append(drivers, Driver{CellID: c.id, Trait: "birth", Coef: s})
		c.rates.Birth *= 1.0 + s
	}
	if env.rng.Bernoulli(env.driver.RateDeath) {
		c.cow()
		s := env.gaussDeath.Rand()
		drivers = append(drivers, Driver{CellID: c.id, Trait: "death", Coef: s})
		c.rates.Death *= 1.0 + s
		c.rates.DeathProb *= 1.0 + s
	}
	if env.rng.Bernoulli(env.driver.RateMigra) {
		c.cow()
		s := env.gaussMigra.Rand()
		drivers = append(drivers, Driver{CellID: c.id, Trait: "migra", Coef: s})
		c.rates.Migra *= 1.0 + s
	}
	return drivers
}

// ForceMutate perturbs all three traits unconditionally. Used to inject a
// guaranteed driver once the population crosses a configured size.
func (c *Cell) ForceMutate(env *Env) []Driver {
	c.cow()
	sBirth := env.gaussBirth.Rand()
	sDeath := env.gaussDeath.Rand()
	sMigra := env.gaussMigra.Rand()
	c.rates.Birth *= 1.0 + sBirth
	c.rates.Death *= 1.0 + sDeath
	c.rates.DeathProb *= 1.0 + sDeath
	c.rates.Migra *= 1.0 + sMigra
	return []Driver{
		{CellID: c.id, Trait: "birth", Coef: sBirth},
		{CellID: c.id, Trait: "death", Coef: sDeath},
		{CellID: c.id, Trait: "migra", Coef: sMigra},
	}
}

// DeltaTime samples the waiting time to the next event of c and records
// which event it is. Zero rates never draw; the gamma scale is clamped at
// zero so an overdue birth fires immediately.
func (c *Cell) DeltaTime(env *Env, positionalValue float64) float64 {
	tBirth := math.Inf(1)
	tDeath := math.Inf(1)
	tMigra := math.Inf(1)
	if c.capacity > 0 && c.rates.Birth > 0.0 && positionalValue > 0.0 {
		mu := 1.0 / c.rates.Birth / positionalValue
		mu -= c.elapsed
		theta := math.Max(mu/env.params.GammaShape, 0.0)
		if theta > 0.0 {
			gamma := distuv.Gamma{
				Alpha: env.params.GammaShape,
				Beta:  1.0 / theta,
				Src:   env.rng.Source(),
			}
			tBirth = gamma.Rand()
		} else {
			tBirth = 0.0
		}
	}
	if c.rates.Death > 0.0 {
		tDeath = distuv.Exponential{Rate: c.rates.Death, Src: env.rng.Source()}.Rand()
	}
	if c.rates.Migra > 0.0 {
		tMigra = distuv.Exponential{Rate: c.rates.Migra, Src: env.rng.Source()}.Rand()
	}

	switch {
	case tBirth < tDeath && tBirth < tMigra:
		if env.rng.Bernoulli(c.rates.DeathProb) {
			c.nextEvent = Death
		} else {
			c.nextEvent = Birth
		}
		c.elapsed = 0.0
		return tBirth
	case tDeath <= tMigra:
		c.nextEvent = Death
		return tDeath
	default:
		c.nextEvent = Migration
		c.elapsed += tMigra
		return tMigra
	}
}

// SetCycleDependentDeath imposes a new death probability on division
// attempts and rerolls whether the pending event kills the cell.
func (c *Cell) SetCycleDependentDeath(env *Env, p float64) {
	c.cow()
	c.rates.DeathProb = p
	if env.rng.Bernoulli(p) {
		c.nextEvent = Death
	} else {
		c.nextEvent = Birth
	}
}

// IncreaseDeathRate raises delta to beta so the expected per-cell
// population change is zero, as in a Moran process.
func (c *Cell) IncreaseDeathRate() {
	c.cow()
	c.rates.Death = c.rates.Birth
}

// Traceback collects the id of c and of every ancestor snapshot.
func (c *Cell) Traceback() map[int]struct{} {
	genealogy := map[int]struct{}{c.id: {}}
	for p := c.ancestor; p != nil; p = p.ancestor {
		genealogy[p.id] = struct{}{}
	}
	return genealogy
}

// HasMutationsOf reports, per queried mutant id, whether it lies on the
// ancestry of c (1) or not (0).
func (c *Cell) HasMutationsOf(mutants []int) []uint8 {
	genealogy := c.Traceback()
	genotype := make([]uint8, len(mutants))
	for i, m := range mutants {
		if _, ok := genealogy[m]; ok {
			genotype[i] = 1
		}
	}
	return genotype
}

// BranchLength counts the divisions on the path between c and other through
// their most recent common ancestor. Ids are monotone along every lineage,
// which bounds the second walk.
func (c *Cell) BranchLength(other *Cell) int {
	if c.id == other.id {
		return 0
	}
	length := 2
	mrca := 1
	genealogy := c.Traceback()
	for p := other.ancestor; p != nil; p = p.ancestor {
		if _, ok := genealogy[p.id]; ok {
			mrca = p.id
			break
		}
		length++
	}
	for p := c.ancestor; p != nil && p.id > mrca; p = p.ancestor {
		length++
	}
	return length
}

func itoa(v int) string { return strconv.Itoa(v) }

// Header lists the column names of the population tables.
func Header() []string {
	return []string{
		"x", "y", "z",
		"id", "ancestor",
		"birth", "death",
		"beta", "delta", "alpha", "rho",
		"type", "omega",
	}
}

// Fields renders one table row for c.
func (c *Cell) Fields() []string {
	ancestor := 0
	if c.ancestor != nil {
		ancestor = c.ancestor.id
	}
	return []string{
		itoa(c.coord.X()), itoa(c.coord.Y()), itoa(c.coord.Z()),
		itoa(c.id), itoa(ancestor),
		core.Ftoa(c.timeOfBirth), core.Ftoa(c.timeOfDeath),
		core.Ftoa(c.rates.Birth),
		core.Ftoa(c.rates.Death),
		core.Ftoa(c.rates.DeathProb),
		core.Ftoa(c.rates.Migra),
		itoa(int(c.typ)), itoa(c.capacity),
	}
}
