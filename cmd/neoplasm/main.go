package main

import (
	"flag"
	"log"
	"os"

	"neoplasm/internal/sim"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("neoplasm: ")

	cfg := sim.NewConfig()
	cfg.Bind(flag.CommandLine)
	flag.Parse()

	if err := cfg.ParsePositional(flag.Args()); err != nil {
		log.Fatal(err)
	}
	if err := sim.Run(cfg, os.Args, os.Stdout); err != nil {
		log.Fatal(err)
	}
}
