package fixture

import (
	"fmt"
	"strconv"
	"strings"
)

// Translator maps the natural key fields still embedded in cached records,
// named parent__field, to the primary keys assigned during compilation. The
// parent__field names are unique across all models, so one flat map per
// field is enough.
type Translator map[string]map[string]int64

// Add registers a natural key under a field.
func (t Translator) Add(field, key string, pk int64) {
	m, ok := t[field]
	if !ok {
		m = make(map[string]int64)
		t[field] = m
	}
	m[key] = pk
}

// Lookup resolves a natural key to its primary key.
func (t Translator) Lookup(field, key string) (int64, bool) {
	pk, ok := t[field][key]
	return pk, ok
}

// translation renames one parent__field natural key to its *_id column.
// Nullable translations leave nil in place of a primary key when the source
// value is empty.
type translation struct {
	field    string
	renamed  string
	nullable bool
}

var issueTranslations = []translation{
	{"publication__publication_code", "newspaper_id", false},
}

var itemTranslations = []translation{
	{"digitisation__software", "digitisation_id", true},
	{"ingest__lwm_tool_identifier", "ingest_id", false},
	{"issue__issue_identifier", "issue_id", false},
	{"data_provider__name", "data_provider_id", false},
}

// translate rewrites the natural key fields of one record in place.
func translate(fields map[string]interface{}, translations []translation, t Translator) error {
	for _, tr := range translations {
		raw, _ := fields[tr.field].(string)
		delete(fields, tr.field)
		if raw == "" {
			if tr.nullable {
				fields[tr.renamed] = nil
				continue
			}
			return fmt.Errorf("missing %s value", tr.field)
		}
		pk, ok := t.Lookup(tr.field, raw)
		if !ok {
			return fmt.Errorf("no %s found for %q", tr.field, raw)
		}
		fields[tr.renamed] = pk
	}
	return nil
}

// normalize applies model specific field cleanups: item types are
// uppercased, numeric item fields are typed and empty OCR measurements
// become zero.
func normalize(model string, fields map[string]interface{}) {
	if model != ModelItem {
		return
	}
	if v, ok := fields["item_type"].(string); ok {
		fields["item_type"] = strings.ToUpper(v)
	}
	for _, k := range []string{"ocr_quality_mean", "ocr_quality_sd"} {
		s, _ := fields[k].(string)
		if s == "" {
			fields[k] = 0
			continue
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			fields[k] = f
		}
	}
	if s, ok := fields["word_count"].(string); ok {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			fields["word_count"] = n
		} else {
			fields["word_count"] = 0
		}
	}
}
