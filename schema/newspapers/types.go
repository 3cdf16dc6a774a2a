// Package newspapers contains the entity records the pipeline emits: the
// shapes the downstream relational loader expects, with foreign keys kept as
// natural keys in parent__field form until the fixture stage resolves them.
package newspapers

import "strings"

// TitleMaxLen bounds item titles for JSON and database safety.
const TitleMaxLen = 2097151

// Newspaper is one publication. The cache path doubles as its dedup key.
type Newspaper struct {
	PublicationCode string `json:"publication_code"`
	Title           string `json:"title"`
	Location        string `json:"location"`
}

// Issue is one dated issue of a newspaper.
type Issue struct {
	IssueCode       string `json:"issue_code"`
	IssueDate       string `json:"issue_date"`
	PublicationCode string `json:"publication__publication_code"`
	InputSubPath    string `json:"input_sub_path"`
}

// Item is one article or similar unit within an issue. Field order matters:
// item lines are deduplicated on their serialized form.
type Item struct {
	ItemCode             string `json:"item_code"`
	WordCount            string `json:"word_count"`
	Title                string `json:"title"`
	ItemType             string `json:"item_type"`
	InputFilename        string `json:"input_filename"`
	OCRQualityMean       string `json:"ocr_quality_mean"`
	OCRQualitySD         string `json:"ocr_quality_sd"`
	DigitisationSoftware string `json:"digitisation__software"`
	IngestIdentifier     string `json:"ingest__lwm_tool_identifier"`
	IssueIdentifier      string `json:"issue__issue_identifier"`
	DataProviderName     string `json:"data_provider__name"`
}

// Digitisation describes the software that produced a document. Optional: a
// record with blank software is never cached.
type Digitisation struct {
	XMLFlavour    string `json:"xml_flavour"`
	Software      string `json:"software"`
	METSNamespace string `json:"mets_namespace"`
	ALTONamespace string `json:"alto_namespace"`
}

// Empty reports whether the record should be skipped entirely.
func (d Digitisation) Empty() bool {
	return d.Software == ""
}

// ID is the dedup key, with slashes replaced so it is safe in file paths.
func (d Digitisation) ID() string {
	if d.Software == "" {
		return ""
	}
	return strings.ReplaceAll(d.Software, "/", "---")
}

// Ingest holds all lwm_tool process fields, flattened with a lwm_tool_
// prefix.
type Ingest map[string]string

// ID is the dedup key: tool name and version.
func (in Ingest) ID() string {
	return in["lwm_tool_name"] + "-" + in["lwm_tool_version"]
}

// DataProvider names the collection a document came from.
type DataProvider struct {
	Name       string `json:"name"`
	Collection string `json:"collection"`
	SourceNote string `json:"source_note"`
}

// ID is the dedup key.
func (dp DataProvider) ID() string {
	return dp.Name
}
