package sim

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"neoplasm/internal/cell"
	"neoplasm/internal/core"
	"neoplasm/internal/tissue"
)

// Run grows one tumor from the configuration, emits the ms-like block on
// stdout, and writes the result tables into the output directory when one is
// configured. Extinction is an ordinary outcome; the recorded history is
// written either way.
func Run(cfg *Config, args []string, stdout io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := log.New(io.Discard, "", log.LstdFlags)
	if cfg.Verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	start := time.Now()

	rng := core.NewRNG(cfg.Seed)
	env := cell.NewEnv(cfg.CellParams(), cfg.DriverParams(), rng)
	tis, err := tissue.New(cfg.TissueOptions(), env, rng)
	if err != nil {
		return err
	}

	// The ms-like header: the command line and the seed.
	if _, err := fmt.Fprintf(stdout, "%s\n%d\n", strings.Join(args, " "), cfg.Seed); err != nil {
		return err
	}

	if !tis.Grow(cfg.GrowOptions()) {
		logger.Printf("population went extinct at t=%g after %d divisions", tis.Time(), tis.IDTail())
	}
	logger.Printf("grown to %d cells at t=%g", tis.Size(), tis.Time())
	if cfg.PlateauTime > 0 {
		tis.Plateau(cfg.PlateauTime)
		logger.Printf("plateau ended with %d cells at t=%g", tis.Size(), tis.Time())
	}
	if cfg.TreatmentDeathProb > 0 {
		tis.Treatment(cfg.TreatmentDeathProb, cfg.NumResistant)
		logger.Printf("treatment ended with %d cells at t=%g", tis.Size(), tis.Time())
	}

	for i := 0; i < cfg.Howmany; i++ {
		mutants := tis.GenerateNeutralMutations(cfg.NeutralRate, cfg.EnsureMutation)
		var samples []*cell.Cell
		if cfg.Dimensions == 3 {
			samples = tis.SampleSection(cfg.Nsam)
		} else {
			samples = tis.SampleRandom(cfg.Nsam)
		}
		if err := tissue.WriteSegsites(stdout, samples, mutants); err != nil {
			return err
		}
	}

	if cfg.OutDir != "" {
		if err := writeResults(cfg, tis); err != nil {
			return err
		}
		logger.Printf("results written to %s", cfg.OutDir)
	}
	logger.Printf("done in %v", time.Since(start))
	return nil
}

func writeResults(cfg *Config, tis *tissue.Tissue) error {
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return err
	}
	if err := writeLines(cfg.OutDir, "program_options.conf", cfg.ConfLines()); err != nil {
		return err
	}
	if err := writeTable(cfg.OutDir, "population.tsv.gz", tis.HistoryRows()); err != nil {
		return err
	}
	if err := writeTable(cfg.OutDir, "snapshots.tsv.gz", tis.SnapshotRows()); err != nil {
		return err
	}
	if err := writeTable(cfg.OutDir, "drivers.tsv", tis.DriverRows()); err != nil {
		return err
	}
	return writeTable(cfg.OutDir, "distances.tsv", tis.PairwiseDistanceRows(cfg.Npair))
}
