// Package jisc loads the reference table of historical JISC newspaper
// titles and resolves titles for documents that carry none, from filename
// abbreviations and publication validity date ranges.
package jisc

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lwmdb/alto2fixture/dateutil"
	"github.com/lwmdb/alto2fixture/pubcode"
)

// ErrTitleNotFound means a title could not be resolved and no abbreviation
// was available; this needs human remediation, not automated recovery.
var ErrTitleNotFound = errors.New("title not found")

// abbrExceptions are known-bad abbreviations, cf. the upstream collection
// notes on mislabelled JISC exports.
var abbrExceptions = map[string]string{
	"IPJL": "Ipswich Journal",
	"BHCH": "Bath Chronicle",
	"LSIR": "Leeds Intelligencer",
	"AGER": "Lancaster Gazetter, And General Advertiser For Lancashire West",
}

var months = map[string]time.Month{
	"Jan":  time.January,
	"Feb":  time.February,
	"Mar":  time.March,
	"Apr":  time.April,
	"May":  time.May,
	"Jun":  time.June,
	"June": time.June,
	"Jul":  time.July,
	"July": time.July,
	"Aug":  time.August,
	"Sep":  time.September,
	"Sept": time.September,
	"Oct":  time.October,
	"Nov":  time.November,
	"Dec":  time.December,
}

// Paper is one row of the JISC reference table: a title, its seven digit
// publication code, the filename abbreviation and the validity range.
type Paper struct {
	Title           string
	PublicationCode string
	Abbr            string
	Valid           dateutil.Interval
}

// Papers is the loaded reference table.
type Papers []Paper

// ReadPapers loads the JISC reference CSV. A missing file is a precondition
// failure for the whole run, so the caller should treat errors as fatal.
func ReadPapers(path string) (Papers, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("jisc papers: %w", err)
	}
	defer f.Close()
	return ParsePapers(f)
}

// ParsePapers parses the reference table from CSV. Expected columns:
// Newspaper Title, NLP, Abbr, StartD, StartM, StartY, EndD, EndM, EndY.
func ParsePapers(r io.Reader) (Papers, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("jisc papers: header: %w", err)
	}
	col := make(map[string]int)
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range []string{"Newspaper Title", "NLP", "Abbr", "StartD", "StartM", "StartY", "EndD", "EndM", "EndY"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("jisc papers: missing column %q", name)
		}
	}
	var papers Papers
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("jisc papers: %w", err)
		}
		start, err := parseDay(rec[col["StartY"]], rec[col["StartM"]], rec[col["StartD"]])
		if err != nil {
			return nil, fmt.Errorf("jisc papers: start date: %w", err)
		}
		end, err := parseDay(rec[col["EndY"]], rec[col["EndM"]], rec[col["EndD"]])
		if err != nil {
			return nil, fmt.Errorf("jisc papers: end date: %w", err)
		}
		papers = append(papers, Paper{
			Title:           fixTitle(rec[col["Newspaper Title"]]),
			PublicationCode: pubcode.Pad(strings.TrimSpace(rec[col["NLP"]])),
			Abbr:            strings.TrimSpace(rec[col["Abbr"]]),
			Valid:           dateutil.Interval{Start: start, End: end},
		})
	}
	return papers, nil
}

// parseDay assembles a date from year, month name and day columns.
func parseDay(y, m, d string) (time.Time, error) {
	year, err := strconv.Atoi(strings.TrimSpace(y))
	if err != nil {
		return time.Time{}, err
	}
	day, err := strconv.Atoi(strings.TrimSpace(d))
	if err != nil {
		return time.Time{}, err
	}
	month, ok := months[strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(m), "."))]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown month: %q", m)
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
}

// fixTitle moves a trailing ", The" to the front.
func fixTitle(title string) string {
	t := strings.TrimSpace(title)
	if len(t) >= 5 && strings.EqualFold(t[len(t)-5:], ", the") {
		return "The " + title[:len(title)-5]
	}
	return title
}

// byCode returns all papers with a given publication code.
func (ps Papers) byCode(code string) (result Papers) {
	for _, p := range ps {
		if p.PublicationCode == code {
			result = append(result, p)
		}
	}
	return
}

// byAbbr returns all papers with a given abbreviation.
func (ps Papers) byAbbr(abbr string) (result Papers) {
	for _, p := range ps {
		if p.Abbr == abbr {
			result = append(result, p)
		}
	}
	return
}

// TitleFor resolves a newspaper title through the lookup cascade: a unique
// publication code recovered from the input sub path, then an abbreviation
// match constrained by the issue date, then a unique title for the
// abbreviation, then the curated exception table, and finally the raw
// abbreviation itself. The passed title is returned unchanged when a code
// match is ambiguous.
func (ps Papers) TitleFor(title, issueDate, inputSubPath, publicationCode, abbr string) (string, error) {
	// First option: the input sub path carries a valid looking code.
	if code, err := pubcode.FromPath(inputSubPath); err == nil {
		if matches := ps.byCode(code); len(matches) == 1 {
			return matches[0].Title, nil
		}
		return title, nil
	}
	key := publicationCode
	if abbr != "" {
		key = abbr
	}
	// Second option: abbreviation match, constrained by the issue date.
	if len(ps.byAbbr(key)) > 0 {
		if date, err := dateutil.Parse(issueDate); err == nil {
			var matches Papers
			for _, p := range ps.byAbbr(key) {
				if p.Valid.Contains(date) {
					matches = append(matches, p)
				}
			}
			if len(matches) == 1 {
				return matches[0].Title, nil
			}
		}
	}
	// Third option: all candidate titles for the abbreviation collapse to
	// one.
	if abbr != "" {
		titles := make(map[string]bool)
		for _, p := range ps.byAbbr(abbr) {
			titles[p.Title] = true
		}
		if len(titles) == 1 {
			for t := range titles {
				return t, nil
			}
		}
	}
	// Fallback: the abbreviation itself, with a few known exceptions.
	if abbr != "" {
		if t, ok := abbrExceptions[abbr]; ok {
			return t, nil
		}
		return abbr, nil
	}
	return "", ErrTitleNotFound
}
