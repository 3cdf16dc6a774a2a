// Package alto contains types for alto2txt metadata XML, one document per
// newspaper item.
package alto

import (
	"encoding/xml"
	"strings"
)

// Document is a single alto2txt metadata file. The root element name varies
// across vendor exports, so we do not pin XMLName here.
type Document struct {
	Process struct {
		XMLFlavour    string `xml:"xml_flavour"`    // alto, bln, ukp
		Software      string `xml:"software"`       // ABBYY FineReader, ...
		METSNamespace string `xml:"mets_namespace"` // http://www.loc.gov/METS/
		ALTONamespace string `xml:"alto_namespace"` // http://www.loc.gov/standards/alto/ns-v2#
		InputSubPath  string `xml:"input_sub_path"` // 0003548/1904/0707
		LWMTool       struct {
			Elements []Element `xml:",any"` // name, version, source, ...
		} `xml:"lwm_tool"`
	} `xml:"process"`
	Publication struct {
		ID       string `xml:"id,attr"` // 0003548, NCBL1001, ...
		Title    string `xml:"title"`   // New Tredegar Journal.
		Location string `xml:"location"`
		Issue    struct {
			Date string `xml:"date"` // 1904-07-07
			Item struct {
				ID             string `xml:"id,attr"` // art0037
				Title          string `xml:"title"`
				WordCount      string `xml:"word_count"`
				OCRQualityMean string `xml:"ocr_quality_mean"`
				OCRQualitySD   string `xml:"ocr_quality_sd"`
				PlainTextFile  string `xml:"plain_text_file"`
				ItemType       string `xml:"item_type"` // ARTICLE, AD, ...
			} `xml:"item"`
		} `xml:"issue"`
	} `xml:"publication"`
}

// Element is a generic child element, kept as tag and text.
type Element struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
}

// LWMToolFields returns all lwm_tool child fields, each key prefixed with
// lwm_tool_, matching the flat cache representation.
func (d *Document) LWMToolFields() map[string]string {
	m := make(map[string]string)
	for _, e := range d.Process.LWMTool.Elements {
		m["lwm_tool_"+e.XMLName.Local] = e.Text
	}
	return m
}

// TrimmedTitle returns the publication title with trailing punctuation
// removed, or the empty string when no usable title is present.
func (d *Document) TrimmedTitle() string {
	t := strings.TrimSpace(d.Publication.Title)
	t = strings.TrimSpace(strings.TrimRight(t, "."))
	t = strings.TrimSpace(strings.TrimRight(t, ":"))
	return t
}
