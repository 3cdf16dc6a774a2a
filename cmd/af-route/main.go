// af-route runs only the routing stage: walk the alto2txt metadata archives
// of the configured collections and populate the entity cache, one processing
// report per archive. Useful for filling the cache on a machine with the
// mountpoint, then compiling fixtures elsewhere with af-parse.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/lwmdb/alto2fixture"
	"github.com/lwmdb/alto2fixture/config"
	"github.com/lwmdb/alto2fixture/router"
	log "github.com/sirupsen/logrus"
)

var (
	collections = flag.String("c", "", "comma separated collections to process (default hmd,lwm,jisc,bna)")
	mount       = flag.String("mount", "", "alto2txt mountpoint")
	cacheHome   = flag.String("cache", "", "cache directory")
	reportDir   = flag.String("reports", "", "processing report directory")
	jiscCSV     = flag.String("jisc", "", "path to the JISC papers reference CSV")
	jiscURL     = flag.String("jisc-url", "", "URL to fetch the JISC papers CSV from when the local file is absent")
	settings    = flag.String("settings", "", "YAML settings file")
	largest     = flag.Bool("largest", false, "process the largest archives first")
	skipSize    = flag.Int64("skip-size", -1, "skip archives larger than this many bytes, 0 disables")
	lockfiles   = flag.Bool("lockfiles", false, "write advisory cache lockfiles")
	overwrite   = flag.Bool("overwrite", false, "drop cache lockfiles before processing")
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
		case "c":
			cfg.Collections = strings.FieldsFunc(*collections, func(r rune) bool {
				return r == ',' || r == ' '
			})
		case "mount":
			cfg.Mount = *mount
		case "cache":
			cfg.CacheHome = *cacheHome
		case "reports":
			cfg.ReportDir = *reportDir
		case "jisc":
			cfg.JiscPapersCSV = *jiscCSV
		case "jisc-url":
			cfg.JiscPapersURL = *jiscURL
		case "largest":
			cfg.StartWithLargest = *largest
		case "skip-size":
			cfg.SkipFileSize = *skipSize
		case "lockfiles":
			cfg.WriteLockfiles = *lockfiles
		case "overwrite":
			cfg.OverwriteCache = *overwrite
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if err := router.Route(&cfg); err != nil {
		log.Fatal(err)
	}
	log.WithField("cache", cfg.CacheHome).Info("done")
}
