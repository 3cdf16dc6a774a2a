// Package config holds the explicit, fully typed run configuration. There
// are no module level mutable settings: a Config is built once in main and
// passed into the router and the fixture parser.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/kelseyhightower/envconfig"
	"github.com/lwmdb/alto2fixture"
	"gopkg.in/yaml.v3"
)

// Config for a pipeline run.
type Config struct {
	// Collections to process, e.g. hmd, lwm, jisc, bna.
	Collections []string `yaml:"collections"`
	// Mount is the directory tree of per-collection alto2txt ZIP archives.
	Mount string `yaml:"mount"`
	// CacheHome is where per-entity cache files go.
	CacheHome string `yaml:"cache_home"`
	// Output is the fixture output directory.
	Output string `yaml:"output"`
	// ReportDir receives one processing report per archive.
	ReportDir string `yaml:"report_dir"`
	// JiscPapersCSV is the local reference table of historical titles.
	JiscPapersCSV string `yaml:"jisc_papers_csv"`
	// JiscPapersURL, when set, is fetched and cached if the CSV is absent.
	JiscPapersURL string `yaml:"jisc_papers_url"`
	// MaxElementsPerFile bounds records per fixture output file.
	MaxElementsPerFile int `yaml:"max_elements_per_file"`
	// FixtureCompression compresses fixture output files: "", "gz" or "zst".
	FixtureCompression string `yaml:"fixture_compression"`
	// SkipFileSize: archives larger than this many bytes are skipped.
	SkipFileSize int64 `yaml:"skip_file_size"`
	// StartWithLargest reverses the smallest-first archive order.
	StartWithLargest bool `yaml:"start_with_largest"`
	// WriteLockfiles enables advisory marker files per cached entity.
	WriteLockfiles bool `yaml:"write_lockfiles"`
	// OverwriteCache drops lockfiles before processing a collection.
	OverwriteCache bool `yaml:"overwrite_cache"`
}

// Default returns a config with the defaults of a local run.
func Default() Config {
	dataDir := filepath.Join(xdg.DataHome, alto2fixture.AppName)
	return Config{
		Collections:        []string{"hmd", "lwm", "jisc", "bna"},
		Mount:              "./alto2txt",
		CacheHome:          filepath.Join(dataDir, "cache"),
		Output:             "./fixtures",
		ReportDir:          filepath.Join(dataDir, "reports"),
		JiscPapersCSV:      "./fixture-files/JISC papers.csv",
		MaxElementsPerFile: 2000000,
		SkipFileSize:       1500000000,
	}
}

// FromEnv overrides fields from ALTO2FIXTURE_* environment variables.
func (c *Config) FromEnv() error {
	return envconfig.Process(alto2fixture.AppName, c)
}

// LoadFile overrides fields from a YAML settings file.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, c)
}

// CollectionDir is where one collection's metadata archives live.
func (c *Config) CollectionDir(name string) string {
	return filepath.Join(c.Mount, name+"-alto2txt", "metadata")
}

// Validate checks run preconditions that indicate a misconfigured run.
func (c *Config) Validate() error {
	if len(c.Collections) == 0 {
		return fmt.Errorf("no collections configured")
	}
	if c.MaxElementsPerFile < 1 {
		return fmt.Errorf("max elements per file must be positive, got %d", c.MaxElementsPerFile)
	}
	if _, err := os.Stat(c.Mount); os.IsNotExist(err) {
		return fmt.Errorf("no alto2txt mountpoint at %s, create a local copy or mount it there", c.Mount)
	}
	return nil
}
