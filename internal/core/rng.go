package core

import "golang.org/x/exp/rand"

// RNG is the single seeded random stream behind every stochastic draw in a
// run. Distribution objects share the same source, so one seed fixes the
// whole sequence of events and therefore the output bytes.
type RNG struct {
	src rand.Source
	r   *rand.Rand
}

// NewRNG creates a deterministic RNG using the provided seed.
func NewRNG(seed uint64) *RNG {
	src := rand.NewSource(seed)
	return &RNG{src: src, r: rand.New(src)}
}

// Source exposes the underlying stream for distribution objects.
func (r *RNG) Source() rand.Source { return r.src }

// Rand exposes the wrapped rand.Rand for advanced use.
func (r *RNG) Rand() *rand.Rand { return r.r }

// Bernoulli reports a p-weighted coin flip. Probabilities at or beyond the
// ends of [0, 1] never touch the stream, so draw sequences stay aligned
// across parameter sets that differ only in a deterministic branch.
func (r *RNG) Bernoulli(p float64) bool {
	if p >= 1.0 {
		return true
	}
	if p <= 0.0 {
		return false
	}
	return r.r.Float64() < p
}

// Float64 returns a uniform draw from [0, 1).
func (r *RNG) Float64() float64 { return r.r.Float64() }

// Intn returns a uniform draw from [0, n).
func (r *RNG) Intn(n int) int { return r.r.Intn(n) }

// Shuffle permutes n elements through the provided swap function.
func (r *RNG) Shuffle(n int, swap func(i, j int)) { r.r.Shuffle(n, swap) }
