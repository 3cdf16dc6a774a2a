package fixture

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lwmdb/alto2fixture/cache"
	"github.com/lwmdb/alto2fixture/config"
	"github.com/lwmdb/alto2fixture/schema/newspapers"
	"github.com/segmentio/encoding/json"
)

func readBatch(t *testing.T, path string) []Record {
	t.Helper()
	r, err := openFile(path)
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	var records []Record
	if err := json.Unmarshal(b, &records); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	return records
}

func TestBatcher(t *testing.T) {
	dir := t.TempDir()
	b := &Batcher{Dir: dir, Prefix: "Item", Max: 2}
	for i := 1; i <= 5; i++ {
		r := Record{PK: int64(i), Model: ModelItem, Fields: map[string]interface{}{"item_code": fmt.Sprintf("i%d", i)}}
		if err := b.Add(r); err != nil {
			t.Fatalf("got %v, want nil", err)
		}
	}
	if err := b.Close(); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	var sizes []int
	for i := 1; i <= 3; i++ {
		sizes = append(sizes, len(readBatch(t, filepath.Join(dir, fmt.Sprintf("Item-%d.json", i)))))
	}
	if !cmp.Equal(sizes, []int{2, 2, 1}) {
		t.Fatalf("got batch sizes %v, want [2 2 1]", sizes)
	}
	if _, err := os.Stat(filepath.Join(dir, "Item-4.json")); !os.IsNotExist(err) {
		t.Fatal("unexpected fourth batch")
	}
}

func TestSaveFixtureCompressed(t *testing.T) {
	dir := t.TempDir()
	records := []Record{{PK: 1, Model: ModelNewspaper, Fields: map[string]interface{}{"title": "X"}}}
	for _, suffix := range []string{"gz", "zst"} {
		if err := SaveFixture(records, dir, "Newspaper-"+suffix, suffix, 10); err != nil {
			t.Fatalf("got %v, want nil", err)
		}
		path := filepath.Join(dir, fmt.Sprintf("Newspaper-%s-1.json.%s", suffix, suffix))
		got := readBatch(t, path)
		if len(got) != 1 || got[0].PK != 1 {
			t.Fatalf("%s: unexpected round trip: %+v", suffix, got)
		}
	}
}

func TestTranslate(t *testing.T) {
	tr := make(Translator)
	tr.Add("issue__issue_identifier", "0003548-19040707", 7)
	tr.Add("ingest__lwm_tool_identifier", "alto2txt-1.2.3", 3)
	tr.Add("data_provider__name", "lwm", 1)

	fields := map[string]interface{}{
		"item_code":                   "0003548-19040707-art0037",
		"digitisation__software":      "", // nullable
		"ingest__lwm_tool_identifier": "alto2txt-1.2.3",
		"issue__issue_identifier":     "0003548-19040707",
		"data_provider__name":         "lwm",
	}
	if err := translate(fields, itemTranslations, tr); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	want := map[string]interface{}{
		"item_code":        "0003548-19040707-art0037",
		"digitisation_id":  nil,
		"ingest_id":        int64(3),
		"issue_id":         int64(7),
		"data_provider_id": int64(1),
	}
	if !cmp.Equal(fields, want) {
		t.Fatalf("translate mismatch (-want +got):\n%s", cmp.Diff(want, fields))
	}
}

func TestTranslateMissingKey(t *testing.T) {
	fields := map[string]interface{}{
		"issue__issue_identifier":     "unknown",
		"ingest__lwm_tool_identifier": "alto2txt-1.2.3",
		"data_provider__name":         "lwm",
	}
	if err := translate(fields, itemTranslations, make(Translator)); err == nil {
		t.Fatal("want error for unknown natural key")
	}
}

func TestNormalize(t *testing.T) {
	fields := map[string]interface{}{
		"item_type":        "article",
		"ocr_quality_mean": "",
		"ocr_quality_sd":   "0.2192",
		"word_count":       "66",
	}
	normalize(ModelItem, fields)
	want := map[string]interface{}{
		"item_type":        "ARTICLE",
		"ocr_quality_mean": 0,
		"ocr_quality_sd":   0.2192,
		"word_count":       int64(66),
	}
	if !cmp.Equal(fields, want) {
		t.Fatalf("normalize mismatch (-want +got):\n%s", cmp.Diff(want, fields))
	}
}

// seedCache fills one collection of a cache directory with one of
// everything, the way the routing stage would.
func seedCache(t *testing.T, home, collection string) {
	t.Helper()
	s := cache.New(home)
	var err error
	for _, step := range []func() error{
		func() error {
			return s.WriteJSON(s.KindPath(collection, "data-provider", collection),
				newspapers.DataProvider{Name: collection, Collection: "newspapers"})
		},
		func() error {
			return s.WriteJSON(s.KindPath(collection, "ingest", "alto2txt-1.2.3"),
				newspapers.Ingest{"lwm_tool_name": "alto2txt", "lwm_tool_version": "1.2.3"})
		},
		func() error {
			return s.WriteJSON(s.KindPath(collection, "digitisation", "ABBYY FineReader"),
				newspapers.Digitisation{XMLFlavour: "alto", Software: "ABBYY FineReader"})
		},
		func() error {
			return s.WriteJSON(s.NewspaperPath(collection, "0003548"),
				newspapers.Newspaper{PublicationCode: "0003548", Title: "New Tredegar Journal"})
		},
		func() error {
			return s.WriteJSON(s.IssuePath(collection, "0003548", "0003548-19040707"), newspapers.Issue{
				IssueCode:       "0003548-19040707",
				IssueDate:       "1904-07-07",
				PublicationCode: "0003548",
				InputSubPath:    "0003548/1904/0707",
			})
		},
		func() error {
			return s.AppendJSONL(s.ItemsPath(collection, "0003548"), newspapers.Item{
				ItemCode:             "0003548-19040707-art0037",
				WordCount:            "66",
				Title:                "LOCAL INTELLIGENCE.",
				ItemType:             "article",
				InputFilename:        "0003548_19040707_art0037.txt",
				DigitisationSoftware: "ABBYY FineReader",
				IngestIdentifier:     "alto2txt-1.2.3",
				IssueIdentifier:      "0003548-19040707",
				DataProviderName:     collection,
			})
		},
	} {
		if err = step(); err != nil {
			t.Fatalf("got %v, want nil", err)
		}
	}
}

func TestParse(t *testing.T) {
	cfg := config.Config{
		Collections:        []string{"lwm"},
		CacheHome:          t.TempDir(),
		Output:             t.TempDir(),
		MaxElementsPerFile: 100,
	}
	seedCache(t, cfg.CacheHome, "lwm")
	if err := Parse(&cfg); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	for _, prefix := range []string{"DataProvider", "Ingest", "Digitisation", "Newspaper", "Issue", "Item"} {
		records := readBatch(t, filepath.Join(cfg.Output, prefix+"-1.json"))
		if len(records) != 1 {
			t.Fatalf("%s: got %d records, want 1", prefix, len(records))
		}
		if records[0].PK != 1 {
			t.Fatalf("%s: got pk %d, want 1", prefix, records[0].PK)
		}
		if records[0].Fields["created_at"] == nil || records[0].Fields["updated_at"] == nil {
			t.Fatalf("%s: missing timestamps: %+v", prefix, records[0].Fields)
		}
	}
	issue := readBatch(t, filepath.Join(cfg.Output, "Issue-1.json"))[0]
	if issue.Model != ModelIssue {
		t.Fatalf("got %v, want %v", issue.Model, ModelIssue)
	}
	if got := issue.Fields["newspaper_id"]; got != float64(1) {
		t.Fatalf("got newspaper_id %v, want 1", got)
	}
	if _, ok := issue.Fields["publication__publication_code"]; ok {
		t.Fatal("natural key field should be renamed away")
	}
	item := readBatch(t, filepath.Join(cfg.Output, "Item-1.json"))[0]
	want := map[string]interface{}{
		"issue_id":         float64(1),
		"ingest_id":        float64(1),
		"digitisation_id":  float64(1),
		"data_provider_id": float64(1),
		"item_type":        "ARTICLE",
		"word_count":       float64(66),
		"ocr_quality_mean": float64(0),
	}
	for k, v := range want {
		if item.Fields[k] != v {
			t.Fatalf("item field %s: got %v, want %v", k, item.Fields[k], v)
		}
	}
}

// TestParseScopedToCollections compiles a cache holding two collections with
// only one of them configured; the other must not leak into the fixtures.
func TestParseScopedToCollections(t *testing.T) {
	cfg := config.Config{
		Collections:        []string{"lwm"},
		CacheHome:          t.TempDir(),
		Output:             t.TempDir(),
		MaxElementsPerFile: 100,
	}
	seedCache(t, cfg.CacheHome, "lwm")
	seedCache(t, cfg.CacheHome, "hmd")
	if err := Parse(&cfg); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	titles := readBatch(t, filepath.Join(cfg.Output, "Newspaper-1.json"))
	if len(titles) != 1 {
		t.Fatalf("got %d newspapers, want 1 (only the configured collection)", len(titles))
	}
	providers := readBatch(t, filepath.Join(cfg.Output, "DataProvider-1.json"))
	if len(providers) != 1 || providers[0].Fields["name"] != "lwm" {
		t.Fatalf("got %+v, want only the lwm data provider", providers)
	}
	items := readBatch(t, filepath.Join(cfg.Output, "Item-1.json"))
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
}
