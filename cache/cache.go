// Package cache persists extracted entities under a deterministic path
// hierarchy. Paths double as dedup keys: single record writes are skipped
// when the target already exists, which is what makes re-runs cheap and
// incremental, without a separate ledger of processed work.
package cache

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/lwmdb/alto2fixture/pubcode"
	"github.com/segmentio/encoding/json"
)

// DefaultSortThreshold is the item file size in bytes above which the
// archive close dedup shells out to sort instead of building a set in
// memory.
const DefaultSortThreshold = 1 << 30 // 1GB

// Store writes entity files under a cache home directory.
type Store struct {
	Home string
	// WriteLockfiles enables the advisory marker files. Off by default;
	// idempotency already comes from the cache paths themselves.
	WriteLockfiles bool
	// SortThreshold switches item dedup to an external sort for very large
	// files. Zero means DefaultSortThreshold.
	SortThreshold int64
}

// New returns a store rooted at home.
func New(home string) *Store {
	return &Store{Home: home}
}

// NewspaperDir is the bucketed directory for one publication.
func (s *Store) NewspaperDir(collection, publicationCode string) string {
	parts := append([]string{s.Home, collection}, pubcode.BucketDirs(publicationCode)...)
	return filepath.Join(append(parts, publicationCode)...)
}

// NewspaperPath is the cache path for a newspaper record.
func (s *Store) NewspaperPath(collection, publicationCode string) string {
	return filepath.Join(s.NewspaperDir(collection, publicationCode), publicationCode+".json")
}

// IssuePath is the cache path for an issue record.
func (s *Store) IssuePath(collection, publicationCode, issueCode string) string {
	return filepath.Join(s.NewspaperDir(collection, publicationCode), "issues", issueCode+".json")
}

// ItemsPath is the append-only JSONL file accumulating all items of one
// newspaper.
func (s *Store) ItemsPath(collection, publicationCode string) string {
	return filepath.Join(s.NewspaperDir(collection, publicationCode), "items.jsonl")
}

// KindPath is the cache path for flat entities: data-provider, ingest,
// digitisation.
func (s *Store) KindPath(collection, kind, id string) string {
	return filepath.Join(s.Home, collection, kind, id+".json")
}

// WriteJSON persists a single record. Writing to an existing path is a
// no-op, the file is left untouched.
func (s *Store) WriteJSON(path string, v interface{}) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// AppendJSONL appends one record as a line. Duplicates are allowed here and
// removed once, at archive close, via DedupJSONL.
func (s *Store) AppendJSONL(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = f.Write(b)
	return err
}

// DedupJSONL rewrites a JSONL file to the set of its distinct lines. Line
// order is not preserved. Large files are handed to sort -u, the in-memory
// set is fine for everything else.
func (s *Store) DedupJSONL(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	threshold := s.SortThreshold
	if threshold == 0 {
		threshold = DefaultSortThreshold
	}
	if info.Size() > threshold {
		cmd := exec.Command("bash", "-c", fmt.Sprintf("LC_ALL=C sort -u -o %q %q", path, path))
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("sort -u failed: %s: %w", string(output), err)
		}
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	var (
		seen    = make(map[string]struct{})
		ordered []string
		scanner = bufio.NewScanner(f)
	)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<26)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		ordered = append(ordered, line)
	}
	if err := scanner.Err(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strings.Join(ordered, "\n")+"\n"), 0644)
}

// LockPath returns the advisory marker path for an entity. The marker only
// signals "already processed" across runs, it is no concurrency guard.
func (s *Store) LockPath(collection, kind string, ids ...string) string {
	parts := append([]string{s.Home, "cache-lockfiles", collection, kind + "s"}, ids...)
	return filepath.Join(parts...)
}

// Lock writes a marker file, creating parents as needed. No-op unless the
// store has lockfiles enabled.
func (s *Store) Lock(path string) error {
	if !s.WriteLockfiles {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, nil, 0644)
}

// DropLocks removes all marker files for a collection, forcing overwrite
// semantics on the next run.
func (s *Store) DropLocks(collection string) error {
	return os.RemoveAll(filepath.Join(s.Home, "cache-lockfiles", collection))
}

// Clear removes generated cache files under dir. Destructive; callers are
// responsible for confirming with the user first.
func Clear(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json*"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return err
		}
	}
	return nil
}
