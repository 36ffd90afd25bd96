package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// Paths served by MockSolr.
const (
	SelectPath = "/solr/select/"
	MARCPath   = "/solr/MARC/"
)

// MockSolr is a search proxy double serving a static corpus. Every query
// matches the whole corpus; q is recorded but not evaluated.
type MockSolr struct {
	*server

	corpusMu sync.RWMutex
	corpus   []map[string]any
	total    int // reported numFound override; -1 uses len(corpus)
	failFrom int // select requests with start >= failFrom fail; -1 disables
	failCode int
}

// NewMockSolr starts a mock search proxy over docs.
func NewMockSolr(docs []map[string]any) *MockSolr {
	m := &MockSolr{corpus: docs, total: -1, failFrom: -1}
	m.server = newServer(m.route)
	return m
}

// SelectURL returns the select endpoint URL.
func (m *MockSolr) SelectURL() string {
	return m.URL() + SelectPath
}

// MARCURL returns the MARC bundle endpoint URL.
func (m *MockSolr) MARCURL() string {
	return m.URL() + MARCPath
}

// SetCorpus replaces the served documents.
func (m *MockSolr) SetCorpus(docs []map[string]any) {
	m.corpusMu.Lock()
	defer m.corpusMu.Unlock()
	m.corpus = docs
}

// SetReportedTotal makes the server report n as numFound regardless of the corpus.
func (m *MockSolr) SetReportedTotal(n int) {
	m.corpusMu.Lock()
	defer m.corpusMu.Unlock()
	m.total = n
}

// FailFrom makes select requests with start >= start answer with status.
func (m *MockSolr) FailFrom(start, status int) {
	m.corpusMu.Lock()
	defer m.corpusMu.Unlock()
	m.failFrom = start
	m.failCode = status
}

func (m *MockSolr) route(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case SelectPath:
		m.handleSelect(w, r)
	case MARCPath:
		m.handleMARC(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockSolr) handleSelect(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	if params.Get("q") == "" || params.Get("qt") != "sharding" {
		http.Error(w, "missing q or qt", http.StatusBadRequest)
		return
	}
	rows, err1 := strconv.Atoi(params.Get("rows"))
	start, err2 := strconv.Atoi(params.Get("start"))
	if err1 != nil || err2 != nil || rows < 0 || start < 0 {
		http.Error(w, "bad rows or start", http.StatusBadRequest)
		return
	}

	m.corpusMu.RLock()
	corpus := m.corpus
	total := m.total
	failFrom, failCode := m.failFrom, m.failCode
	m.corpusMu.RUnlock()

	if failFrom >= 0 && start >= failFrom {
		http.Error(w, "shard unavailable", failCode)
		return
	}
	if total < 0 {
		total = len(corpus)
	}

	end := start + rows
	if end > len(corpus) {
		end = len(corpus)
	}
	if start > end {
		start = end
	}

	var fields []string
	if fl := params.Get("fl"); fl != "" {
		fields = strings.Split(fl, ",")
	}

	docs := make([]map[string]any, 0, end-start)
	for _, doc := range corpus[start:end] {
		docs = append(docs, project(doc, fields))
	}

	if params.Get("wt") == "json" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(map[string]any{
			"responseHeader": map[string]any{"status": 0, "QTime": 1},
			"response": map[string]any{
				"numFound": total,
				"start":    start,
				"docs":     docs,
			},
		})
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><response><result name="response" numFound="%d" start="%d">`, total, start)
	for _, doc := range docs {
		w.Write([]byte("<doc>"))
		for _, k := range sortedKeys(doc) {
			fmt.Fprintf(w, `<str name="%s">`, k)
			xml.EscapeText(w, []byte(fmt.Sprint(doc[k])))
			w.Write([]byte("</str>"))
		}
		w.Write([]byte("</doc>"))
	}
	w.Write([]byte("</result></response>"))
}

func (m *MockSolr) handleMARC(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("volumeIDs")
	if raw == "" {
		http.Error(w, "volumeIDs required", http.StatusBadRequest)
		return
	}
	ids := strings.Split(raw, "|")
	entries := make(map[string][]byte, len(ids))
	for _, id := range ids {
		entries[id+".xml"] = []byte(MARCXML(id, "Whaling"))
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Write(ZipBytes(entries))
}

func project(doc map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return doc
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// Corpus builds n documents with ids "test.000000".."test.n-1" and a title field.
func Corpus(n int) []map[string]any {
	docs := make([]map[string]any, n)
	for i := range docs {
		docs[i] = map[string]any{
			"id":    fmt.Sprintf("test.%06d", i),
			"title": fmt.Sprintf("Volume %d", i),
		}
	}
	return docs
}

// ZipBytes builds a zip archive from name to content, with entries in name order.
func ZipBytes(entries map[string][]byte) []byte {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		f, err := zw.Create(name)
		if err != nil {
			panic(err)
		}
		f.Write(entries[name])
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// MARCXML renders a minimal MARCXML record with a 974$u id and one 650$a subject.
func MARCXML(id, subject string) string {
	var b strings.Builder
	b.WriteString(`<record xmlns="http://www.loc.gov/MARC21/slim">`)
	b.WriteString(`<leader>00000nam a2200000 a 4500</leader>`)
	b.WriteString(`<controlfield tag="001">`)
	xml.EscapeText(&b, []byte("ctl-"+id))
	b.WriteString(`</controlfield>`)
	b.WriteString(`<datafield tag="650" ind1=" " ind2="0"><subfield code="a">`)
	xml.EscapeText(&b, []byte(subject))
	b.WriteString(`</subfield></datafield>`)
	b.WriteString(`<datafield tag="974" ind1=" " ind2=" "><subfield code="u">`)
	xml.EscapeText(&b, []byte(id))
	b.WriteString(`</subfield></datafield>`)
	b.WriteString(`</record>`)
	return b.String()
}
