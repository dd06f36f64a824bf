package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"neoplasm/internal/cell"
	"neoplasm/internal/core"
	"neoplasm/internal/sim"
	"neoplasm/internal/tissue"
)

type paramSet struct {
	densityEffect string
	displacement  string
	death         float64
	deathProb     float64
	migra         float64
	gammaShape    float64
}

func (p paramSet) String() string {
	return fmt.Sprintf("L=%s P=%s d=%.2f a=%.2f m=%.2f k=%.1f",
		p.densityEffect, p.displacement, p.death, p.deathProb, p.migra, p.gammaShape)
}

type scenarioResult struct {
	params     paramSet
	extinction int
	meanTime   float64
	meanRadius float64
	maxRadius  float64
	divisions  int
}

func main() {
	maxSize := flag.Int("N", 4096, "population size to grow each scenario to")
	reps := flag.Int("reps", 3, "replicate runs per parameter set")
	workers := flag.Int("workers", runtime.NumCPU(), "number of worker goroutines")
	seed := flag.Uint64("seed", 42, "base random seed; replicate i runs with seed+i")
	flag.Parse()

	baseCfg := sim.NewConfig()
	baseCfg.Dimensions = 3
	baseCfg.MaxSize = *maxSize
	if err := baseCfg.Validate(); err != nil {
		log.Fatal(err)
	}

	densityOptions := []string{"const", "linear", "step"}
	displacementOptions := map[string][]string{
		"const":  {"random", "mindrag", "roulette"},
		"linear": {"random", "mindrag"},
		"step":   {"random", "mindrag"},
	}
	deathOptions := []float64{0, 0.2}
	deathProbOptions := []float64{0, 0.2}
	migraOptions := []float64{0, 0.5}
	shapeOptions := []float64{1, 3}

	var sets []paramSet
	for _, density := range densityOptions {
		for _, displacement := range displacementOptions[density] {
			for _, death := range deathOptions {
				for _, deathProb := range deathProbOptions {
					for _, migra := range migraOptions {
						for _, shape := range shapeOptions {
							sets = append(sets, paramSet{
								densityEffect: density,
								displacement:  displacement,
								death:         death,
								deathProb:     deathProb,
								migra:         migra,
								gammaShape:    shape,
							})
						}
					}
				}
			}
		}
	}

	fmt.Printf("Sweeping %d parameter sets (%d workers, %d reps, N=%d)\n",
		len(sets), *workers, *reps, *maxSize)

	jobs := make(chan paramSet)
	results := make(chan scenarioResult)
	var wg sync.WaitGroup

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for params := range jobs {
				results <- runScenario(baseCfg, params, *reps, *seed)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		for _, params := range sets {
			jobs <- params
		}
		close(jobs)
	}()

	start := time.Now()
	var all []scenarioResult
	for res := range results {
		all = append(all, res)
		if res.extinction > 0 {
			fmt.Printf("Extinct %d/%d times with %s\n", res.extinction, *reps, res.params)
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].meanRadius > all[j].meanRadius })
	elapsed := time.Since(start)

	fmt.Printf("\nTop 10 by mean radius (elapsed %s):\n", elapsed.Round(time.Millisecond))
	for i := 0; i < len(all) && i < 10; i++ {
		res := all[i]
		fmt.Printf("%2d) radius=%.2f max=%.2f t=%.2f divisions=%d extinct=%d params=%s\n",
			i+1, res.meanRadius, res.maxRadius, res.meanTime, res.divisions, res.extinction, res.params)
	}
}

func runScenario(base *sim.Config, params paramSet, reps int, seed uint64) scenarioResult {
	cfg := *base
	cfg.LocalDensityEffect = params.densityEffect
	cfg.DisplacementPath = params.displacement
	cfg.Death = params.death
	cfg.DeathProb = params.deathProb
	cfg.Migra = params.migra
	cfg.GammaShape = params.gammaShape

	res := scenarioResult{params: params}
	for rep := 0; rep < reps; rep++ {
		rng := core.NewRNG(seed + uint64(rep))
		env := cell.NewEnv(cfg.CellParams(), cfg.DriverParams(), rng)
		tis, err := tissue.New(cfg.TissueOptions(), env, rng)
		if err != nil {
			log.Fatal(err)
		}
		if !tis.Grow(cfg.GrowOptions()) {
			res.extinction++
		}
		res.meanTime += tis.Time() / float64(reps)
		res.divisions += (tis.IDTail() - 1) / 2

		geom := tis.Geometry()
		var sum float64
		n := 0
		for _, c := range tis.SampleRandom(256) {
			r := geom.EuclideanDistance(c.Coord())
			sum += r
			res.maxRadius = math.Max(res.maxRadius, r)
			n++
		}
		if n > 0 {
			res.meanRadius += sum / float64(n) / float64(reps)
		}
	}
	return res
}
