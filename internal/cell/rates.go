package cell

import (
	"gonum.org/v1/gonum/stat/distuv"

	"neoplasm/internal/core"
)

// EventRates bundles the per-cell event intensities. Cells share one handle
// until a driver hit, at which point the mutating cell clones the record
// before writing so unmutated relatives keep the old values.
type EventRates struct {
	Birth     float64
	Death     float64
	DeathProb float64
	Migra     float64
}

// Params holds the cell-level constants of a run.
type Params struct {
	// GammaShape is k in the Gamma(k, theta) birth clock.
	GammaShape float64
	// SymmetricProb is the probability that a stem division yields two stem
	// cells; otherwise the daughter differentiates.
	SymmetricProb float64
	// MaxProliferation is the division budget of a freshly differentiated
	// cell.
	MaxProliferation int
}

// DriverParams holds the per-trait driver-mutation rates and effect-size
// distributions.
type DriverParams struct {
	RateBirth float64
	RateDeath float64
	RateMigra float64
	MeanBirth float64
	MeanDeath float64
	MeanMigra float64
	SDBirth   float64
	SDDeath   float64
	SDMigra   float64
}

// Env binds the run parameters to the shared random stream and the prepared
// effect-size distributions. Every stochastic cell operation draws through
// it, in source order, so a seed fixes the event sequence.
type Env struct {
	params  Params
	driver  DriverParams
	rng     *core.RNG
	gammaOn bool

	gaussBirth distuv.Normal
	gaussDeath distuv.Normal
	gaussMigra distuv.Normal
}

// NewEnv prepares an environment from run parameters and the seeded stream.
func NewEnv(p Params, dp DriverParams, rng *core.RNG) *Env {
	src := rng.Source()
	return &Env{
		params:     p,
		driver:     dp,
		rng:        rng,
		gaussBirth: distuv.Normal{Mu: dp.MeanBirth, Sigma: dp.SDBirth, Src: src},
		gaussDeath: distuv.Normal{Mu: dp.MeanDeath, Sigma: dp.SDDeath, Src: src},
		gaussMigra: distuv.Normal{Mu: dp.MeanMigra, Sigma: dp.SDMigra, Src: src},
	}
}

// Params returns the cell-level constants.
func (e *Env) Params() Params { return e.params }

// RNG returns the shared stream.
func (e *Env) RNG() *core.RNG { return e.rng }

// Driver is one heritable multiplicative rate change, recorded in the order
// the hits happen.
type Driver struct {
	CellID int
	Trait  string
	Coef   float64
}
