// Package fixture compiles the cache tree into batched fixture files for a
// relational loader. Models are compiled in dependency order so that by the
// time a record references a parent, the parent's primary key is known.
package fixture

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lwmdb/alto2fixture/config"
	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
)

// Model labels, app.model style.
const (
	ModelNewspaper    = "newspapers.newspaper"
	ModelIssue        = "newspapers.issue"
	ModelItem         = "newspapers.item"
	ModelDigitisation = "newspapers.digitisation"
	ModelIngest       = "newspapers.ingest"
	ModelDataProvider = "newspapers.dataprovider"
)

// Record is one fixture entry.
type Record struct {
	PK     int64                  `json:"pk"`
	Model  string                 `json:"model"`
	Fields map[string]interface{} `json:"fields"`
}

// Batcher writes fixture records into numbered files of at most max records
// each, so every output file except the last holds exactly max entries.
type Batcher struct {
	Dir    string
	Prefix string
	Suffix string // "", "gz" or "zst"
	Max    int

	buf   []Record
	index int
}

// Add buffers one record, flushing a full batch to disk.
func (b *Batcher) Add(r Record) error {
	b.buf = append(b.buf, r)
	if len(b.buf) >= b.Max {
		return b.flush()
	}
	return nil
}

// Close writes any buffered remainder.
func (b *Batcher) Close() error {
	if len(b.buf) == 0 {
		return nil
	}
	return b.flush()
}

func (b *Batcher) flush() error {
	if err := os.MkdirAll(b.Dir, 0755); err != nil {
		return err
	}
	b.index++
	name := fmt.Sprintf("%s-%d.json", b.Prefix, b.index)
	if b.Suffix != "" {
		name += "." + b.Suffix
	}
	w, err := createFile(filepath.Join(b.Dir, name))
	if err != nil {
		return err
	}
	data, err := json.Marshal(b.buf)
	if err != nil {
		w.Close()
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	b.buf = b.buf[:0]
	return w.Close()
}

// SaveFixture writes a full record slice through a batcher.
func SaveFixture(records []Record, dir, prefix, suffix string, max int) error {
	b := &Batcher{Dir: dir, Prefix: prefix, Suffix: suffix, Max: max}
	for _, r := range records {
		if err := b.Add(r); err != nil {
			return err
		}
	}
	return b.Close()
}

// filelists partitions the cache tree by entity kind.
type filelists struct {
	newspapers    []string
	issues        []string
	items         []string
	dataProviders []string
	ingests       []string
	digitisations []string
}

// scan walks the configured collections under the cache home and classifies
// every file by the directory it sits in. Collections outside the
// configuration stay untouched, even when their cache subtrees exist. Lists
// come back sorted for deterministic primary keys.
func scan(home string, collections []string) (*filelists, error) {
	var (
		lists = &filelists{}
		sep   = string(os.PathSeparator)
	)
	for _, collection := range collections {
		root := filepath.Join(home, collection)
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch {
			case strings.Contains(path, sep+"data-provider"+sep):
				lists.dataProviders = append(lists.dataProviders, path)
			case strings.Contains(path, sep+"ingest"+sep):
				lists.ingests = append(lists.ingests, path)
			case strings.Contains(path, sep+"digitisation"+sep):
				lists.digitisations = append(lists.digitisations, path)
			case strings.Contains(path, sep+"issues"+sep):
				lists.issues = append(lists.issues, path)
			case strings.HasSuffix(strings.TrimSuffix(path, ".gz"), ".jsonl") ||
				strings.HasSuffix(strings.TrimSuffix(path, ".zst"), ".jsonl"):
				lists.items = append(lists.items, path)
			case strings.Contains(path, ".json"):
				lists.newspapers = append(lists.newspapers, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	for _, l := range [][]string{
		lists.newspapers, lists.issues, lists.items,
		lists.dataProviders, lists.ingests, lists.digitisations,
	} {
		sort.Strings(l)
	}
	return lists, nil
}

// Parser compiles cached entities into fixtures. One timestamp per run, so
// every record of a compilation carries the same created_at and updated_at.
type Parser struct {
	cfg        *config.Config
	runTime    string
	translator Translator
}

// NewParser prepares a compilation run.
func NewParser(cfg *config.Config) *Parser {
	return &Parser{
		cfg:        cfg,
		runTime:    time.Now().UTC().Format("2006-01-02T15:04:05.000000"),
		translator: make(Translator),
	}
}

// Parse compiles the whole cache into batched fixture files.
func Parse(cfg *config.Config) error {
	return NewParser(cfg).Run()
}

// Run compiles all six models in dependency order: the flat reference models
// first, then newspapers, then issues, then the item stream.
func (p *Parser) Run() error {
	lists, err := scan(p.cfg.CacheHome, p.cfg.Collections)
	if err != nil {
		return err
	}
	steps := []struct {
		model string
		run   func() error
	}{
		{ModelDataProvider, func() error {
			return p.parseUnique(lists.dataProviders, ModelDataProvider, "DataProvider",
				"data_provider__name", func(f map[string]interface{}) string {
					s, _ := f["name"].(string)
					return s
				})
		}},
		{ModelIngest, func() error {
			return p.parseUnique(lists.ingests, ModelIngest, "Ingest",
				"ingest__lwm_tool_identifier", func(f map[string]interface{}) string {
					name, _ := f["lwm_tool_name"].(string)
					version, _ := f["lwm_tool_version"].(string)
					return name + "-" + version
				})
		}},
		{ModelDigitisation, func() error {
			return p.parseUnique(lists.digitisations, ModelDigitisation, "Digitisation",
				"digitisation__software", func(f map[string]interface{}) string {
					s, _ := f["software"].(string)
					return strings.ReplaceAll(s, "/", "---")
				})
		}},
		{ModelNewspaper, p.parseNewspapers(lists.newspapers)},
		{ModelIssue, p.parseIssues(lists.issues)},
		{ModelItem, p.parseItems(lists.items)},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("compile %s: %w", step.model, err)
		}
	}
	return nil
}

func (p *Parser) readRecord(path string) (map[string]interface{}, error) {
	r, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("malformed cache file %s: %w", path, err)
	}
	return fields, nil
}

func (p *Parser) finish(fields map[string]interface{}) map[string]interface{} {
	fields["created_at"] = p.runTime
	fields["updated_at"] = p.runTime
	return fields
}

// parseUnique compiles a flat reference model: records are deduplicated on
// their natural key across collections, first occurrence wins, and every key
// is registered with the translator.
func (p *Parser) parseUnique(paths []string, model, prefix, field string, key func(map[string]interface{}) string) error {
	var (
		seen    = make(map[string]struct{})
		records []Record
		pk      int64
	)
	for _, path := range paths {
		fields, err := p.readRecord(path)
		if err != nil {
			return err
		}
		k := key(fields)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		pk++
		p.translator.Add(field, k, pk)
		records = append(records, Record{PK: pk, Model: model, Fields: p.finish(fields)})
	}
	log.WithFields(log.Fields{"model": model, "records": len(records)}).Info("compiled")
	return SaveFixture(records, p.cfg.Output, prefix, p.cfg.FixtureCompression, p.cfg.MaxElementsPerFile)
}

func (p *Parser) parseNewspapers(paths []string) func() error {
	return func() error {
		var (
			records []Record
			pk      int64
		)
		for _, path := range paths {
			fields, err := p.readRecord(path)
			if err != nil {
				return err
			}
			code, _ := fields["publication_code"].(string)
			pk++
			p.translator.Add("publication__publication_code", code, pk)
			records = append(records, Record{PK: pk, Model: ModelNewspaper, Fields: p.finish(fields)})
		}
		log.WithFields(log.Fields{"model": ModelNewspaper, "records": len(records)}).Info("compiled")
		return SaveFixture(records, p.cfg.Output, "Newspaper", p.cfg.FixtureCompression, p.cfg.MaxElementsPerFile)
	}
}

func (p *Parser) parseIssues(paths []string) func() error {
	return func() error {
		var (
			records []Record
			pk      int64
		)
		for _, path := range paths {
			fields, err := p.readRecord(path)
			if err != nil {
				return err
			}
			code, _ := fields["issue_code"].(string)
			if err := translate(fields, issueTranslations, p.translator); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			pk++
			p.translator.Add("issue__issue_identifier", code, pk)
			records = append(records, Record{PK: pk, Model: ModelIssue, Fields: p.finish(fields)})
		}
		log.WithFields(log.Fields{"model": ModelIssue, "records": len(records)}).Info("compiled")
		return SaveFixture(records, p.cfg.Output, "Issue", p.cfg.FixtureCompression, p.cfg.MaxElementsPerFile)
	}
}

// parseItems streams the item lines instead of loading them: item counts run
// into the tens of millions, batches go to disk as soon as they fill up.
func (p *Parser) parseItems(paths []string) func() error {
	return func() error {
		b := &Batcher{
			Dir:    p.cfg.Output,
			Prefix: "Item",
			Suffix: p.cfg.FixtureCompression,
			Max:    p.cfg.MaxElementsPerFile,
		}
		var pk int64
		for _, path := range paths {
			r, err := openFile(path)
			if err != nil {
				return err
			}
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 0, 1<<20), 1<<26)
			for scanner.Scan() {
				line := scanner.Bytes()
				if len(line) == 0 {
					continue
				}
				var fields map[string]interface{}
				if err := json.Unmarshal(line, &fields); err != nil {
					r.Close()
					return fmt.Errorf("malformed item line in %s: %w", path, err)
				}
				if err := translate(fields, itemTranslations, p.translator); err != nil {
					r.Close()
					return fmt.Errorf("%s: %w", path, err)
				}
				normalize(ModelItem, fields)
				pk++
				if err := b.Add(Record{PK: pk, Model: ModelItem, Fields: p.finish(fields)}); err != nil {
					r.Close()
					return err
				}
			}
			if err := scanner.Err(); err != nil {
				r.Close()
				return err
			}
			if err := r.Close(); err != nil {
				return err
			}
		}
		log.WithFields(log.Fields{"model": ModelItem, "records": pk}).Info("compiled")
		return b.Close()
	}
}
