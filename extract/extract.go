// Package extract maps one parsed alto2txt document to the typed entity
// records of the pipeline. Derived fields like the publication code involve
// regex scans and lookup cascades and are needed more than once, so each is
// computed once per document and cached in a struct field.
package extract

import (
	"fmt"
	"strings"

	"github.com/lwmdb/alto2fixture/jisc"
	"github.com/lwmdb/alto2fixture/pubcode"
	"github.com/lwmdb/alto2fixture/schema/alto"
	"github.com/lwmdb/alto2fixture/schema/newspapers"
	log "github.com/sirupsen/logrus"
)

// Document is the extraction facade around one parsed metadata file.
type Document struct {
	Root       *alto.Document
	Collection string
	ZipName    string // name of the enclosing archive, carries the title abbreviation
	Papers     jisc.Papers

	pubCode    string
	pubCodeSet bool
	title      string
	titleSet   bool
}

// New wraps a parsed document for extraction.
func New(root *alto.Document, collection, zipName string, papers jisc.Papers) *Document {
	return &Document{
		Root:       root,
		Collection: collection,
		ZipName:    zipName,
		Papers:     papers,
	}
}

// PublicationCode resolves and caches the validated publication code.
func (d *Document) PublicationCode() (string, error) {
	if d.pubCodeSet {
		return d.pubCode, nil
	}
	code, err := pubcode.Resolve(d.Root.Publication.ID, d.Root.Process.InputSubPath)
	if err != nil {
		return "", err
	}
	d.pubCode, d.pubCodeSet = code, true
	return code, nil
}

// Title resolves and caches the newspaper title. An empty title falls back
// to the JISC reference table, keyed by the archive filename abbreviation. A
// document with neither needs manual remediation, so that is an error.
func (d *Document) Title() (string, error) {
	if d.titleSet {
		return d.title, nil
	}
	title := d.Root.TrimmedTitle()
	if title == "" {
		t, err := d.jiscTitle()
		if err != nil {
			return "", err
		}
		title = t
	}
	d.title, d.titleSet = title, true
	return title, nil
}

func (d *Document) jiscTitle() (string, error) {
	if d.ZipName == "" || d.Papers == nil {
		return "", fmt.Errorf("document carries no title and no reference table is loaded")
	}
	abbr := strings.SplitN(d.ZipName, "_", 2)[0]
	code, err := d.PublicationCode()
	if err != nil {
		code = ""
	}
	title, err := d.Papers.TitleFor("", d.Root.Publication.Issue.Date, d.Root.Process.InputSubPath, code, abbr)
	if err != nil {
		return "", fmt.Errorf("title lookup for %s: %w", d.ZipName, err)
	}
	log.WithFields(log.Fields{"zip": d.ZipName, "title": title}).Debug("title resolved from reference table")
	return title, nil
}

// IssueCode derives the issue code from the publication code and date.
func (d *Document) IssueCode() (string, error) {
	code, err := d.PublicationCode()
	if err != nil {
		return "", err
	}
	return pubcode.IssueCode(code, d.Root.Publication.Issue.Date), nil
}

// Newspaper extracts the newspaper record.
func (d *Document) Newspaper() (newspapers.Newspaper, error) {
	code, err := d.PublicationCode()
	if err != nil {
		return newspapers.Newspaper{}, err
	}
	title, err := d.Title()
	if err != nil {
		return newspapers.Newspaper{}, err
	}
	return newspapers.Newspaper{
		PublicationCode: code,
		Title:           title,
		Location:        d.Root.Publication.Location,
	}, nil
}

// Issue extracts the issue record. Issue identity is fully derivable from
// the newspaper and the date, no separate cascade needed.
func (d *Document) Issue() (newspapers.Issue, error) {
	code, err := d.PublicationCode()
	if err != nil {
		return newspapers.Issue{}, err
	}
	issueCode, err := d.IssueCode()
	if err != nil {
		return newspapers.Issue{}, err
	}
	return newspapers.Issue{
		IssueCode:       issueCode,
		IssueDate:       d.Root.Publication.Issue.Date,
		PublicationCode: code,
		InputSubPath:    d.Root.Process.InputSubPath,
	}, nil
}

// Item extracts the item record, with foreign keys kept as natural keys.
func (d *Document) Item() (newspapers.Item, error) {
	issueCode, err := d.IssueCode()
	if err != nil {
		return newspapers.Item{}, err
	}
	var (
		elem  = d.Root.Publication.Issue.Item
		title = elem.Title
	)
	if len(title) > newspapers.TitleMaxLen {
		title = title[:newspapers.TitleMaxLen]
	}
	return newspapers.Item{
		ItemCode:             pubcode.ItemCode(issueCode, elem.ID),
		WordCount:            elem.WordCount,
		Title:                title,
		ItemType:             elem.ItemType,
		InputFilename:        elem.PlainTextFile,
		OCRQualityMean:       elem.OCRQualityMean,
		OCRQualitySD:         elem.OCRQualitySD,
		DigitisationSoftware: d.Digitisation().ID(),
		IngestIdentifier:     d.Ingest().ID(),
		IssueIdentifier:      issueCode,
		DataProviderName:     d.Collection,
	}, nil
}

// Digitisation extracts the digitisation record, possibly empty.
func (d *Document) Digitisation() newspapers.Digitisation {
	return newspapers.Digitisation{
		XMLFlavour:    d.Root.Process.XMLFlavour,
		Software:      d.Root.Process.Software,
		METSNamespace: d.Root.Process.METSNamespace,
		ALTONamespace: d.Root.Process.ALTONamespace,
	}
}

// Ingest extracts all lwm_tool fields.
func (d *Document) Ingest() newspapers.Ingest {
	return newspapers.Ingest(d.Root.LWMToolFields())
}

// DataProvider names the collection.
func (d *Document) DataProvider() newspapers.DataProvider {
	return newspapers.DataProvider{
		Name:       d.Collection,
		Collection: "newspapers",
		SourceNote: "",
	}
}
