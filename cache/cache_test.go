package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lwmdb/alto2fixture/schema/newspapers"
)

func TestPaths(t *testing.T) {
	s := New("/tmp/c")
	var cases = []struct {
		result string
		want   string
	}{
		{s.NewspaperPath("lwm", "0003548"), "/tmp/c/lwm/0/3/0003548/0003548.json"},
		{s.IssuePath("lwm", "0003548", "0003548-19040707"), "/tmp/c/lwm/0/3/0003548/issues/0003548-19040707.json"},
		{s.ItemsPath("lwm", "0003548"), "/tmp/c/lwm/0/3/0003548/items.jsonl"},
		{s.KindPath("lwm", "data-provider", "lwm"), "/tmp/c/lwm/data-provider/lwm.json"},
		{s.KindPath("lwm", "ingest", "alto2txt-1.0"), "/tmp/c/lwm/ingest/alto2txt-1.0.json"},
	}
	for _, c := range cases {
		if c.result != c.want {
			t.Fatalf("got %v, want %v", c.result, c.want)
		}
	}
}

func TestWriteJSONIdempotent(t *testing.T) {
	s := New(t.TempDir())
	path := s.NewspaperPath("lwm", "0003548")
	first := newspapers.Newspaper{PublicationCode: "0003548", Title: "New Tredegar Journal"}
	if err := s.WriteJSON(path, first); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	// A second write with different content must not touch the file.
	second := newspapers.Newspaper{PublicationCode: "0003548", Title: "Changed"}
	if err := s.WriteJSON(path, second); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if !strings.Contains(string(b), "New Tredegar Journal") || strings.Contains(string(b), "Changed") {
		t.Fatalf("existing cache file was overwritten: %s", string(b))
	}
}

func TestAppendAndDedupJSONL(t *testing.T) {
	s := New(t.TempDir())
	path := s.ItemsPath("lwm", "0003548")
	items := []newspapers.Item{
		{ItemCode: "0003548-19040707-art0037", Title: "A"},
		{ItemCode: "0003548-19040707-art0038", Title: "B"},
		{ItemCode: "0003548-19040707-art0037", Title: "A"}, // duplicate
	}
	for _, item := range items {
		if err := s.AppendJSONL(path, item); err != nil {
			t.Fatalf("got %v, want nil", err)
		}
	}
	if err := s.DedupJSONL(path); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "art0037") || !strings.Contains(lines[1], "art0038") {
		t.Fatalf("first seen order not preserved: %v", lines)
	}
}

func TestDedupJSONLMissingFile(t *testing.T) {
	s := New(t.TempDir())
	if err := s.DedupJSONL(filepath.Join(s.Home, "nope.jsonl")); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
}

func TestLockfiles(t *testing.T) {
	s := New(t.TempDir())
	path := s.LockPath("lwm", "newspaper", "0003548")
	// Disabled by default: no file appears.
	if err := s.Lock(path); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("lockfile written although disabled")
	}
	s.WriteLockfiles = true
	if err := s.Lock(path); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("got %v, want lockfile", err)
	}
	if err := s.DropLocks("lwm"); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("lockfile survived DropLocks")
	}
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "notes.txt")
	remove := filepath.Join(dir, "Newspaper-1.json")
	for _, p := range []string{keep, remove} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatalf("got %v, want nil", err)
		}
	}
	if err := Clear(dir); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if _, err := os.Stat(remove); !os.IsNotExist(err) {
		t.Fatal("generated file survived Clear")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("unrelated file removed: %v", err)
	}
}

func TestBucketLayout(t *testing.T) {
	s := New(t.TempDir())
	if err := s.WriteJSON(s.NewspaperPath("lwm", "0003548"), newspapers.Newspaper{PublicationCode: "0003548"}); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	want := filepath.Join(s.Home, "lwm", "0", "3", "0003548", "0003548.json")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("got %v, want newspaper at %v", err, want)
	}
}
