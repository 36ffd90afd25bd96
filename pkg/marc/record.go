// Package marc reads MARCXML bibliographic records, keeps them in a local
// SQLite database and matches them against subject terms.
package marc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// ErrNoRecord is returned when a document holds no MARC record.
var ErrNoRecord = errors.New("marc: no record in document")

// Record is one MARCXML record.
type Record struct {
	XMLName       xml.Name       `xml:"record"`
	Leader        string         `xml:"leader"`
	ControlFields []ControlField `xml:"controlfield"`
	DataFields    []DataField    `xml:"datafield"`
}

// ControlField is a 00X field.
type ControlField struct {
	Tag   string `xml:"tag,attr"`
	Value string `xml:",chardata"`
}

// DataField is a variable field with indicators and subfields.
type DataField struct {
	Tag       string     `xml:"tag,attr"`
	Ind1      string     `xml:"ind1,attr"`
	Ind2      string     `xml:"ind2,attr"`
	Subfields []Subfield `xml:"subfield"`
}

// Subfield is one coded value of a data field.
type Subfield struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

// ParseXML decodes a record from either a bare <record> document or the
// first record of a <collection>.
func ParseXML(data []byte) (*Record, error) {
	records, err := ParseCollection(data)
	if err != nil {
		return nil, err
	}
	return records[0], nil
}

// ParseCollection decodes every record in data, in document order.
func ParseCollection(data []byte) ([]*Record, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var records []*Record
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("marc: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "record" {
			continue
		}
		var r Record
		if err := dec.DecodeElement(&r, &start); err != nil {
			return nil, fmt.Errorf("marc: decode record: %w", err)
		}
		records = append(records, &r)
	}
	if len(records) == 0 {
		return nil, ErrNoRecord
	}
	return records, nil
}

// Control returns the value of control field tag, or "".
func (r *Record) Control(tag string) string {
	for _, f := range r.ControlFields {
		if f.Tag == tag {
			return f.Value
		}
	}
	return ""
}

// Fields returns the data fields tagged tag.
func (r *Record) Fields(tag string) []DataField {
	var out []DataField
	for _, f := range r.DataFields {
		if f.Tag == tag {
			out = append(out, f)
		}
	}
	return out
}

// subjectTags are the subject access fields. Other 6XX tags (e.g. 680 scope
// notes) are not subjects.
var subjectTags = map[string]bool{
	"600": true, "610": true, "611": true, "630": true, "648": true,
	"650": true, "651": true, "653": true, "654": true, "655": true,
	"656": true, "657": true, "658": true, "662": true, "690": true,
	"691": true, "696": true, "697": true, "698": true, "699": true,
}

// Subjects returns the subject access fields in record order.
func (r *Record) Subjects() []DataField {
	var out []DataField
	for _, f := range r.DataFields {
		if subjectTags[f.Tag] {
			out = append(out, f)
		}
	}
	return out
}

// ID returns the HathiTrust volume id from 974$u, falling back to field 001.
func (r *Record) ID() string {
	for _, f := range r.Fields("974") {
		if u := f.Subfield("u"); len(u) > 0 && u[0] != "" {
			return u[0]
		}
	}
	return r.Control("001")
}

// Title returns 245$a, or "".
func (r *Record) Title() string {
	for _, f := range r.Fields("245") {
		if a := f.Subfield("a"); len(a) > 0 {
			return a[0]
		}
	}
	return ""
}

// Subfield returns the values of every subfield with code, in order.
func (f DataField) Subfield(code string) []string {
	var out []string
	for _, s := range f.Subfields {
		if s.Code == code {
			out = append(out, s.Value)
		}
	}
	return out
}

// Marshal renders r as a standalone MARCXML record.
func (r *Record) Marshal() ([]byte, error) {
	out := *r
	out.XMLName = xml.Name{Space: "http://www.loc.gov/MARC21/slim", Local: "record"}
	data, err := xml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("marc: marshal record: %w", err)
	}
	return data, nil
}
