// Package router drives the first pipeline stage: for every configured
// collection, walk its ZIP archives of alto2txt metadata, extract the entity
// graph per document and write everything to the cache tree. One processing
// report per archive is written for auditing.
package router

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lwmdb/alto2fixture/cache"
	"github.com/lwmdb/alto2fixture/config"
	"github.com/lwmdb/alto2fixture/extract"
	"github.com/lwmdb/alto2fixture/jisc"
	"github.com/lwmdb/alto2fixture/schema/alto"
	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
)

// Meta is the per-archive accumulator, serialized as the processing report.
type Meta struct {
	Path             string   `json:"path"`
	Bytes            int64    `json:"bytes"`
	Size             string   `json:"size"`
	Contents         int      `json:"contents"`
	Start            string   `json:"start"`
	End              string   `json:"end"`
	Seconds          int64    `json:"seconds"`
	Microseconds     int64    `json:"microseconds"`
	NewspaperPaths   []string `json:"newspaper_paths"`
	IssuePaths       []string `json:"issue_paths"`
	ItemPaths        []string `json:"item_paths"`
	PublicationCodes []string `json:"publication_codes"`
}

// HumanSize renders a byte count the way the reports expect: MB below half
// a GB, GB above. The GB value is rounded to one decimal before the
// comparison, so 499999999 bytes reads as 0.5GB, not 500.0MB.
func HumanSize(bytes int64) string {
	gb := math.Round(float64(bytes)/1000/1000/1000*10) / 10
	if gb < 0.5 {
		return fmt.Sprintf("%.1fMB", float64(bytes)/1000/1000)
	}
	return fmt.Sprintf("%.1fGB", gb)
}

// Archive wraps one open metadata ZIP file.
type Archive struct {
	Path       string
	Collection string
	Meta       Meta

	zr         *zip.ReadCloser
	store      *cache.Store
	papers     jisc.Papers
	reportPath string
	started    time.Time
}

// OpenArchive opens a metadata ZIP for processing. The report lands under
// reportDir/runID, named after the archive without its _metadata suffix.
func OpenArchive(path, collection, runID, reportDir string, store *cache.Store, papers jisc.Papers) (*Archive, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	stem := strings.TrimSuffix(strings.TrimSuffix(filepath.Base(path), ".zip"), "_metadata")
	a := &Archive{
		Path:       path,
		Collection: collection,
		zr:         zr,
		store:      store,
		papers:     papers,
		reportPath: filepath.Join(reportDir, runID, stem+".json"),
		started:    time.Now().UTC(),
	}
	a.Meta = Meta{
		Path:     path,
		Bytes:    info.Size(),
		Size:     HumanSize(info.Size()),
		Contents: len(zr.File),
		Start:    a.started.Format(time.RFC3339Nano),
	}
	return a, nil
}

// Process iterates the archive's entries in listing order and writes all six
// entities per document to the cache. Empty entries are skipped, malformed
// XML is fatal.
func (a *Archive) Process() error {
	for _, f := range a.zr.File {
		if f.UncompressedSize64 == 0 {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open entry %s: %w", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("read entry %s: %w", f.Name, err)
		}
		if len(b) == 0 {
			continue
		}
		var root alto.Document
		if err := xml.Unmarshal(b, &root); err != nil {
			return fmt.Errorf("parse %s in %s: %w", f.Name, a.Path, err)
		}
		doc := extract.New(&root, a.Collection, filepath.Base(a.Path), a.papers)
		if err := a.writeDocument(doc); err != nil {
			return err
		}
	}
	return nil
}

// writeDocument persists the six entities of one document, in the fixed
// order the original pipeline used.
func (a *Archive) writeDocument(doc *extract.Document) error {
	code, err := doc.PublicationCode()
	if err != nil {
		return err
	}
	item, err := doc.Item()
	if err != nil {
		return err
	}
	itemsPath := a.store.ItemsPath(a.Collection, code)
	if err := a.store.AppendJSONL(itemsPath, item); err != nil {
		return err
	}
	a.Meta.ItemPaths = addUnique(a.Meta.ItemPaths, itemsPath)
	if err := a.store.Lock(a.store.LockPath(a.Collection, "item", item.IssueIdentifier, item.ItemCode)); err != nil {
		return err
	}

	newspaper, err := doc.Newspaper()
	if err != nil {
		return err
	}
	newspaperPath := a.store.NewspaperPath(a.Collection, code)
	if err := a.store.WriteJSON(newspaperPath, newspaper); err != nil {
		return err
	}
	a.Meta.NewspaperPaths = addUnique(a.Meta.NewspaperPaths, newspaperPath)
	a.Meta.PublicationCodes = addUnique(a.Meta.PublicationCodes, code)
	if err := a.store.Lock(a.store.LockPath(a.Collection, "newspaper", code)); err != nil {
		return err
	}

	issue, err := doc.Issue()
	if err != nil {
		return err
	}
	issuePath := a.store.IssuePath(a.Collection, code, issue.IssueCode)
	if err := a.store.WriteJSON(issuePath, issue); err != nil {
		return err
	}
	a.Meta.IssuePaths = addUnique(a.Meta.IssuePaths, issuePath)
	if err := a.store.Lock(a.store.LockPath(a.Collection, "issue", code, issue.IssueCode)); err != nil {
		return err
	}

	dp := doc.DataProvider()
	if err := a.store.WriteJSON(a.store.KindPath(a.Collection, "data-provider", dp.ID()), dp); err != nil {
		return err
	}
	ingest := doc.Ingest()
	if err := a.store.WriteJSON(a.store.KindPath(a.Collection, "ingest", ingest.ID()), ingest); err != nil {
		return err
	}
	if digitisation := doc.Digitisation(); !digitisation.Empty() {
		if err := a.store.WriteJSON(a.store.KindPath(a.Collection, "digitisation", digitisation.ID()), digitisation); err != nil {
			return err
		}
	}
	return nil
}

// Close finalizes the report and deduplicates accumulated item lines. It
// must run on all exit paths, even when processing failed halfway.
func (a *Archive) Close() error {
	ended := time.Now().UTC()
	elapsed := ended.Sub(a.started)
	a.Meta.End = ended.Format(time.RFC3339Nano)
	a.Meta.Seconds = int64(elapsed.Seconds())
	a.Meta.Microseconds = elapsed.Microseconds() % 1000000
	if err := a.writeReport(); err != nil {
		a.zr.Close()
		return err
	}
	for _, p := range a.Meta.ItemPaths {
		if err := a.store.DedupJSONL(p); err != nil {
			a.zr.Close()
			return err
		}
	}
	return a.zr.Close()
}

func (a *Archive) writeReport() error {
	if err := os.MkdirAll(filepath.Dir(a.reportPath), 0755); err != nil {
		return err
	}
	b, err := json.Marshal(a.Meta)
	if err != nil {
		return err
	}
	return os.WriteFile(a.reportPath, b, 0644)
}

func addUnique(xs []string, v string) []string {
	for _, x := range xs {
		if x == v {
			return xs
		}
	}
	return append(xs, v)
}

// Zipfiles lists a collection's archives, smallest first by default,
// skipping anything above skipFileSize (zero means no limit).
func Zipfiles(dir string, largestFirst bool, skipFileSize int64) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.zip"))
	if err != nil {
		return nil, err
	}
	type sized struct {
		path string
		size int64
	}
	var files []sized
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, err
		}
		if skipFileSize > 0 && info.Size() > skipFileSize {
			log.WithFields(log.Fields{"path": m, "size": HumanSize(info.Size())}).Warn("skipping oversized archive")
			continue
		}
		files = append(files, sized{m, info.Size()})
	}
	sort.Slice(files, func(i, j int) bool {
		if largestFirst {
			return files[i].size > files[j].size
		}
		return files[i].size < files[j].size
	})
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

// LoadPapers loads the JISC reference table, fetching a copy first when the
// local CSV is absent and a URL is configured.
func LoadPapers(cfg *config.Config) (jisc.Papers, error) {
	path := cfg.JiscPapersCSV
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if cfg.JiscPapersURL == "" {
			return nil, fmt.Errorf("jisc papers file not found: put %s in place or configure a URL", path)
		}
		fetcher, err := jisc.NewFetcher(cfg.JiscPapersURL)
		if err != nil {
			return nil, err
		}
		path, err = fetcher.Fetch()
		if err != nil {
			return nil, err
		}
	}
	return jisc.ReadPapers(path)
}

// Route runs the full traversal: collections, archives, documents. Missing
// mountpoints and empty collections are fatal; this is a one shot batch job
// and a failed precondition means a misconfigured run.
func Route(cfg *config.Config) error {
	if _, err := os.Stat(cfg.Mount); err != nil {
		return fmt.Errorf("no alto2txt mountpoint at %s, create a local copy or mount it there", cfg.Mount)
	}
	papers, err := LoadPapers(cfg)
	if err != nil {
		return err
	}
	store := cache.New(cfg.CacheHome)
	store.WriteLockfiles = cfg.WriteLockfiles
	runID := uuid.NewString()
	for _, name := range cfg.Collections {
		dir := cfg.CollectionDir(name)
		zipfiles, err := Zipfiles(dir, cfg.StartWithLargest, cfg.SkipFileSize)
		if err != nil {
			return err
		}
		if len(zipfiles) == 0 {
			return fmt.Errorf("collection %s looks empty in the alto2txt mountpoint: %s", name, dir)
		}
		if cfg.OverwriteCache {
			if err := store.DropLocks(name); err != nil {
				return err
			}
		}
		log.WithFields(log.Fields{"collection": name, "archives": len(zipfiles)}).Info("routing collection")
		for _, zf := range zipfiles {
			if err := processArchive(zf, name, runID, cfg.ReportDir, store, papers); err != nil {
				return err
			}
		}
	}
	return nil
}

// processArchive opens, processes and closes one archive; the close runs on
// all exit paths so the report and the item dedup always happen.
func processArchive(path, collection, runID, reportDir string, store *cache.Store, papers jisc.Papers) error {
	a, err := OpenArchive(path, collection, runID, reportDir, store, papers)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"archive": filepath.Base(path), "size": a.Meta.Size, "contents": a.Meta.Contents}).Info("processing")
	procErr := a.Process()
	closeErr := a.Close()
	if procErr != nil {
		return procErr
	}
	return closeErr
}
