// af-parse runs only the fixture compilation stage: compile a previously
// populated entity cache into batched fixture files. The mountpoint is not
// needed, a copied cache directory is enough.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lwmdb/alto2fixture"
	"github.com/lwmdb/alto2fixture/config"
	"github.com/lwmdb/alto2fixture/fixture"
	log "github.com/sirupsen/logrus"
)

var (
	cacheHome   = flag.String("cache", "", "cache directory")
	output      = flag.String("o", "", "fixture output directory")
	settings    = flag.String("settings", "", "YAML settings file")
	maxElements = flag.Int("max-elements", 0, "maximum records per fixture file")
	compress    = flag.String("compress", "", "compress fixture output: gz or zst")
	showVersion = flag.Bool("version", false, "show version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Printf("%s %s\n", alto2fixture.AppName, alto2fixture.Version)
		os.Exit(0)
	}
	cfg := config.Default()
	if *settings != "" {
		if err := cfg.LoadFile(*settings); err != nil {
			log.Fatalf("settings: %v", err)
		}
	}
	if err := cfg.FromEnv(); err != nil {
		log.Fatalf("env: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cache":
			cfg.CacheHome = *cacheHome
		case "o":
			cfg.Output = *output
		case "max-elements":
			cfg.MaxElementsPerFile = *maxElements
		case "compress":
			cfg.FixtureCompression = *compress
		}
	})
	if cfg.MaxElementsPerFile < 1 {
		log.Fatalf("max elements per file must be positive, got %d", cfg.MaxElementsPerFile)
	}
	if _, err := os.Stat(cfg.CacheHome); err != nil {
		log.Fatalf("no cache at %s, run af-route first", cfg.CacheHome)
	}
	if err := fixture.Parse(&cfg); err != nil {
		log.Fatal(err)
	}
	log.WithField("output", cfg.Output).Info("done")
}
