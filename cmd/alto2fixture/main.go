// alto2fixture turns a mounted tree of alto2txt metadata archives into
// batched fixture files for a relational loader.
//
// The run has two stages: routing walks every collection's ZIP archives and
// caches one file per extracted entity, then parsing compiles the cache into
// numbered fixture files with resolved foreign keys. Both stages are
// idempotent, interrupted runs can be resumed by running again.
//
//	$ alto2fixture -c hmd,lwm -mount /media/alto2txt -o fixtures
//
// Configuration precedence, lowest to highest: builtin defaults, YAML
// settings file (-settings), ALTO2FIXTURE_* environment variables, flags.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/lwmdb/alto2fixture"
	"github.com/lwmdb/alto2fixture/cache"
	"github.com/lwmdb/alto2fixture/config"
	"github.com/lwmdb/alto2fixture/fixture"
	"github.com/lwmdb/alto2fixture/router"
	log "github.com/sirupsen/logrus"
)

var (
	collections = flag.String("c", "", "comma separated collections to process (default hmd,lwm,jisc,bna)")
	mount       = flag.String("mount", "", "alto2txt mountpoint")
	cacheHome   = flag.String("cache", "", "cache directory")
	output      = flag.String("o", "", "fixture output directory")
	reportDir   = flag.String("reports", "", "processing report directory")
	jiscCSV     = flag.String("jisc", "", "path to the JISC papers reference CSV")
	jiscURL     = flag.String("jisc-url", "", "URL to fetch the JISC papers CSV from when the local file is absent")
	settings    = flag.String("settings", "", "YAML settings file")
	largest     = flag.Bool("largest", false, "process the largest archives first")
	maxElements = flag.Int("max-elements", 0, "maximum records per fixture file")
	skipSize    = flag.Int64("skip-size", -1, "skip archives larger than this many bytes, 0 disables")
	compress    = flag.String("compress", "", "compress fixture output: gz or zst")
	lockfiles   = flag.Bool("lockfiles", false, "write advisory cache lockfiles")
	overwrite   = flag.Bool("overwrite", false, "drop cache lockfiles before processing")
	yes         = flag.Bool("yes", false, "assume yes on all prompts")
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
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if dirty(cfg.Output) && !confirm(fmt.Sprintf("fixture output at %s is not empty, clear it", cfg.Output)) {
		log.Fatal("not overwriting existing fixtures, move them away or pass -yes")
	}
	if err := cache.Clear(cfg.Output); err != nil {
		log.Fatal(err)
	}
	if err := router.Route(&cfg); err != nil {
		log.Fatal(err)
	}
	if err := fixture.Parse(&cfg); err != nil {
		log.Fatal(err)
	}
	if confirm(fmt.Sprintf("fixtures are written, remove the cache at %s", cfg.CacheHome)) {
		if err := os.RemoveAll(cfg.CacheHome); err != nil {
			log.Fatal(err)
		}
	}
	log.WithField("output", cfg.Output).Info("done")
}

// applyFlags copies only the flags that were actually set on the command
// line, so unset flags never clobber settings file or environment values.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "c":
			cfg.Collections = splitList(*collections)
		case "mount":
			cfg.Mount = *mount
		case "cache":
			cfg.CacheHome = *cacheHome
		case "o":
			cfg.Output = *output
		case "reports":
			cfg.ReportDir = *reportDir
		case "jisc":
			cfg.JiscPapersCSV = *jiscCSV
		case "jisc-url":
			cfg.JiscPapersURL = *jiscURL
		case "largest":
			cfg.StartWithLargest = *largest
		case "max-elements":
			cfg.MaxElementsPerFile = *maxElements
		case "skip-size":
			cfg.SkipFileSize = *skipSize
		case "compress":
			cfg.FixtureCompression = *compress
		case "lockfiles":
			cfg.WriteLockfiles = *lockfiles
		case "overwrite":
			cfg.OverwriteCache = *overwrite
		}
	})
}

// splitList splits a comma or space separated flag value.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

// dirty reports whether a directory already holds generated files.
func dirty(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	return len(entries) > 0
}

// confirm asks on stdin, default no. With -yes every prompt is accepted.
func confirm(question string) bool {
	if *yes {
		return true
	}
	fmt.Printf("%s? [y/N] ", question)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}
