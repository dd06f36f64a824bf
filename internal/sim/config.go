package sim

import (
	"flag"
	"fmt"
	"math"
	"sort"
	"strconv"

	"neoplasm/internal/cell"
	"neoplasm/internal/tissue"
)

// Config represents the command-line parameters of one run.
type Config struct {
	Dimensions         int
	Coordinate         string
	LocalDensityEffect string
	DisplacementPath   string

	InitialSize int
	MaxSize     int
	MaxTime     float64

	SnapshotInterval     float64
	RecordingEarlyGrowth int
	MutationTiming       int

	GammaShape       float64
	SymmetricProb    float64
	MaxProliferation int
	Birth            float64
	Death            float64
	DeathProb        float64
	Migra            float64

	DriverRateBirth float64
	DriverRateDeath float64
	DriverRateMigra float64
	DriverMeanBirth float64
	DriverMeanDeath float64
	DriverMeanMigra float64
	DriverSDBirth   float64
	DriverSDDeath   float64
	DriverSDMigra   float64

	NeutralRate    float64
	EnsureMutation bool
	Npair          int

	PlateauTime        float64
	TreatmentDeathProb float64
	NumResistant       int

	Nsam    int
	Howmany int

	Seed    uint64
	OutDir  string
	Verbose bool
}

// NewConfig returns a Config populated with the defaults of a small neutral
// 3D run.
func NewConfig() *Config {
	return &Config{
		Dimensions:         3,
		Coordinate:         "moore",
		LocalDensityEffect: "const",
		DisplacementPath:   "random",
		InitialSize:        1,
		MaxSize:            16384,
		MaxTime:            math.Inf(1),
		GammaShape:         1.0,
		SymmetricProb:      1.0,
		MaxProliferation:   10,
		Birth:              1.0,
		NumResistant:       3,
		Nsam:               20,
		Howmany:            1,
		Seed:               42,
	}
}

// Bind attaches the configuration to the provided FlagSet.
func (c *Config) Bind(fs *flag.FlagSet) {
	fs.IntVar(&c.Dimensions, "D", c.Dimensions, "dimensions: 2 or 3")
	fs.StringVar(&c.Coordinate, "C", c.Coordinate, "coordinate system: hex, moore, neumann")
	fs.StringVar(&c.LocalDensityEffect, "L", c.LocalDensityEffect, "local density effect: const, linear, step")
	fs.StringVar(&c.DisplacementPath, "P", c.DisplacementPath, "displacement path: mindrag, minstraight, random, roulette, stroll")
	fs.IntVar(&c.InitialSize, "origin", c.InitialSize, "initial population size")
	fs.IntVar(&c.MaxSize, "N", c.MaxSize, "maximum population size")
	fs.Float64Var(&c.MaxTime, "T", c.MaxTime, "maximum simulated time")
	fs.Float64Var(&c.SnapshotInterval, "snapshot", c.SnapshotInterval, "snapshot interval in simulated time; 0 disables")
	fs.IntVar(&c.RecordingEarlyGrowth, "record", c.RecordingEarlyGrowth, "record a snapshot after every change below this size; 0 disables")
	fs.IntVar(&c.MutationTiming, "mutate", c.MutationTiming, "force a driver on the first daughter born above this size; 0 disables")

	fs.Float64Var(&c.GammaShape, "k", c.GammaShape, "shape of the gamma birth clock")
	fs.Float64Var(&c.SymmetricProb, "p", c.SymmetricProb, "probability of symmetric stem division")
	fs.IntVar(&c.MaxProliferation, "r", c.MaxProliferation, "division budget of a differentiated cell")
	fs.Float64Var(&c.Birth, "b", c.Birth, "initial birth rate beta")
	fs.Float64Var(&c.Death, "d", c.Death, "initial death rate delta")
	fs.Float64Var(&c.DeathProb, "a", c.DeathProb, "initial death probability alpha on division")
	fs.Float64Var(&c.Migra, "m", c.Migra, "initial migration rate rho")

	fs.Float64Var(&c.DriverRateBirth, "ub", c.DriverRateBirth, "driver rate on beta")
	fs.Float64Var(&c.DriverRateDeath, "ud", c.DriverRateDeath, "driver rate on delta")
	fs.Float64Var(&c.DriverRateMigra, "um", c.DriverRateMigra, "driver rate on rho")
	fs.Float64Var(&c.DriverMeanBirth, "mb", c.DriverMeanBirth, "mean driver effect on beta")
	fs.Float64Var(&c.DriverMeanDeath, "md", c.DriverMeanDeath, "mean driver effect on delta")
	fs.Float64Var(&c.DriverMeanMigra, "mm", c.DriverMeanMigra, "mean driver effect on rho")
	fs.Float64Var(&c.DriverSDBirth, "sb", c.DriverSDBirth, "sd of driver effect on beta")
	fs.Float64Var(&c.DriverSDDeath, "sd", c.DriverSDDeath, "sd of driver effect on delta")
	fs.Float64Var(&c.DriverSDMigra, "sm", c.DriverSDMigra, "sd of driver effect on rho")

	fs.Float64Var(&c.NeutralRate, "u", c.NeutralRate, "neutral mutation rate per division")
	fs.BoolVar(&c.EnsureMutation, "u1", c.EnsureMutation, "ensure one neutral mutation per issued cell id")
	fs.IntVar(&c.Npair, "npair", c.Npair, "number of sampled pairs for the distance table")

	fs.Float64Var(&c.PlateauTime, "plateau", c.PlateauTime, "plateau duration after growth; 0 disables")
	fs.Float64Var(&c.TreatmentDeathProb, "treatment", c.TreatmentDeathProb, "cycle-dependent death probability imposed after growth; 0 disables")
	fs.IntVar(&c.NumResistant, "resistant", c.NumResistant, "cells spared by treatment")

	fs.Uint64Var(&c.Seed, "seed", c.Seed, "random seed")
	fs.StringVar(&c.OutDir, "o", c.OutDir, "output directory; empty writes nothing but the ms block")
	fs.BoolVar(&c.Verbose, "v", c.Verbose, "verbose logging to stderr")
}

// ParsePositional consumes the optional trailing arguments: sample size and
// replicate count.
func (c *Config) ParsePositional(args []string) error {
	names := []string{"nsam", "howmany"}
	targets := []*int{&c.Nsam, &c.Howmany}
	if len(args) > len(names) {
		return fmt.Errorf("unexpected argument %q; positional arguments are nsam and howmany", args[len(names)])
	}
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", names[i], a, err)
		}
		*targets[i] = v
	}
	return nil
}

// Validate rejects values the engine cannot run with. Geometry and policy
// names are not checked here; tissue construction rejects unknown ones.
func (c *Config) Validate() error {
	if c.InitialSize < 1 {
		return fmt.Errorf("invalid -origin %d; must be positive", c.InitialSize)
	}
	if c.MaxSize < 1 {
		return fmt.Errorf("invalid -N %d; must be positive", c.MaxSize)
	}
	if c.Nsam > c.MaxSize {
		return fmt.Errorf("nsam %d is larger than max tumor size %d", c.Nsam, c.MaxSize)
	}
	if c.Nsam < 0 || c.Howmany < 0 || c.Npair < 0 {
		return fmt.Errorf("nsam, howmany, and -npair must be nonnegative")
	}
	if c.SnapshotInterval < 0 {
		return fmt.Errorf("invalid -snapshot %v; must be nonnegative", c.SnapshotInterval)
	}
	for name, v := range map[string]float64{
		"-b": c.Birth, "-d": c.Death, "-m": c.Migra, "-k": c.GammaShape,
	} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("invalid %s %v; must be nonnegative", name, v)
		}
	}
	for name, v := range map[string]float64{"-p": c.SymmetricProb, "-a": c.DeathProb, "-treatment": c.TreatmentDeathProb} {
		if v < 0 || v > 1 {
			return fmt.Errorf("invalid %s %v; must be a probability", name, v)
		}
	}
	return nil
}

// CellParams returns the per-cell behavioral parameters.
func (c *Config) CellParams() cell.Params {
	return cell.Params{
		GammaShape:       c.GammaShape,
		SymmetricProb:    c.SymmetricProb,
		MaxProliferation: c.MaxProliferation,
	}
}

// DriverParams returns the driver mutation parameters.
func (c *Config) DriverParams() cell.DriverParams {
	return cell.DriverParams{
		RateBirth: c.DriverRateBirth,
		RateDeath: c.DriverRateDeath,
		RateMigra: c.DriverRateMigra,
		MeanBirth: c.DriverMeanBirth,
		MeanDeath: c.DriverMeanDeath,
		MeanMigra: c.DriverMeanMigra,
		SDBirth:   c.DriverSDBirth,
		SDDeath:   c.DriverSDDeath,
		SDMigra:   c.DriverSDMigra,
	}
}

// TissueOptions returns the construction options for the lattice.
func (c *Config) TissueOptions() tissue.Options {
	return tissue.Options{
		InitialSize:        c.InitialSize,
		Dimensions:         c.Dimensions,
		Coordinate:         c.Coordinate,
		LocalDensityEffect: c.LocalDensityEffect,
		DisplacementPath:   c.DisplacementPath,
		InitialRates: cell.EventRates{
			Birth:     c.Birth,
			Death:     c.Death,
			DeathProb: c.DeathProb,
			Migra:     c.Migra,
		},
	}
}

// GrowOptions returns the growth loop options, with zero values of the
// optional features mapped to their disabled sentinels.
func (c *Config) GrowOptions() tissue.GrowOptions {
	interval := math.Inf(1)
	if c.SnapshotInterval > 0 {
		interval = c.SnapshotInterval
	}
	timing := math.MaxInt
	if c.MutationTiming > 0 {
		timing = c.MutationTiming
	}
	return tissue.GrowOptions{
		MaxSize:              c.MaxSize,
		MaxTime:              c.MaxTime,
		SnapshotInterval:     interval,
		RecordingEarlyGrowth: c.RecordingEarlyGrowth,
		MutationTiming:       timing,
	}
}

// ConfLines renders the resolved option set as sorted key = value lines for
// program_options.conf.
func (c *Config) ConfLines() []string {
	ftoa := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	pairs := map[string]string{
		"D":         strconv.Itoa(c.Dimensions),
		"C":         c.Coordinate,
		"L":         c.LocalDensityEffect,
		"P":         c.DisplacementPath,
		"origin":    strconv.Itoa(c.InitialSize),
		"N":         strconv.Itoa(c.MaxSize),
		"T":         ftoa(c.MaxTime),
		"snapshot":  ftoa(c.SnapshotInterval),
		"record":    strconv.Itoa(c.RecordingEarlyGrowth),
		"mutate":    strconv.Itoa(c.MutationTiming),
		"k":         ftoa(c.GammaShape),
		"p":         ftoa(c.SymmetricProb),
		"r":         strconv.Itoa(c.MaxProliferation),
		"b":         ftoa(c.Birth),
		"d":         ftoa(c.Death),
		"a":         ftoa(c.DeathProb),
		"m":         ftoa(c.Migra),
		"ub":        ftoa(c.DriverRateBirth),
		"ud":        ftoa(c.DriverRateDeath),
		"um":        ftoa(c.DriverRateMigra),
		"mb":        ftoa(c.DriverMeanBirth),
		"md":        ftoa(c.DriverMeanDeath),
		"mm":        ftoa(c.DriverMeanMigra),
		"sb":        ftoa(c.DriverSDBirth),
		"sd":        ftoa(c.DriverSDDeath),
		"sm":        ftoa(c.DriverSDMigra),
		"u":         ftoa(c.NeutralRate),
		"u1":        strconv.FormatBool(c.EnsureMutation),
		"npair":     strconv.Itoa(c.Npair),
		"plateau":   ftoa(c.PlateauTime),
		"treatment": ftoa(c.TreatmentDeathProb),
		"resistant": strconv.Itoa(c.NumResistant),
		"nsam":      strconv.Itoa(c.Nsam),
		"howmany":   strconv.Itoa(c.Howmany),
		"seed":      strconv.FormatUint(c.Seed, 10),
		"out_dir":   c.OutDir,
		"verbose":   strconv.FormatBool(c.Verbose),
	}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+" = "+pairs[k])
	}
	return lines
}
