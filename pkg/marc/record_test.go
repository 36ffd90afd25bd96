package marc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRecord = `<?xml version="1.0" encoding="UTF-8"?>
<collection xmlns="http://www.loc.gov/MARC21/slim">
  <record>
    <leader>01142cam  2200301 a 4500</leader>
    <controlfield tag="001">ocm00123456</controlfield>
    <controlfield tag="008">850101s1851    nyu           000 1 eng d</controlfield>
    <datafield tag="245" ind1="1" ind2="0">
      <subfield code="a">Moby-Dick, or, The whale /</subfield>
      <subfield code="c">Herman Melville.</subfield>
    </datafield>
    <datafield tag="650" ind1=" " ind2="0">
      <subfield code="a">Whaling</subfield>
      <subfield code="v">Fiction.</subfield>
    </datafield>
    <datafield tag="651" ind1=" " ind2="0">
      <subfield code="a">Sea stories</subfield>
    </datafield>
    <datafield tag="700" ind1="1" ind2=" ">
      <subfield code="a">Ahab, Captain</subfield>
    </datafield>
    <datafield tag="974" ind1=" " ind2=" ">
      <subfield code="u">mdp.39015012345678</subfield>
    </datafield>
  </record>
</collection>`

func TestParseXML(t *testing.T) {
	r, err := ParseXML([]byte(sampleRecord))
	require.NoError(t, err)

	assert.Equal(t, "01142cam  2200301 a 4500", r.Leader)
	assert.Equal(t, "ocm00123456", r.Control("001"))
	assert.Equal(t, "", r.Control("003"))
	assert.Equal(t, "mdp.39015012345678", r.ID())
	assert.Equal(t, "Moby-Dick, or, The whale /", r.Title())

	subjects := r.Subjects()
	require.Len(t, subjects, 2)
	assert.Equal(t, "650", subjects[0].Tag)
	assert.Equal(t, []string{"Whaling"}, subjects[0].Subfield("a"))
	assert.Equal(t, []string{"Fiction."}, subjects[0].Subfield("v"))
	assert.Equal(t, "651", subjects[1].Tag)
	assert.Empty(t, subjects[1].Subfield("x"))
}

func TestSubjects_OnlySubjectTags(t *testing.T) {
	r := &Record{DataFields: []DataField{
		{Tag: "600", Subfields: []Subfield{{Code: "a", Value: "Melville, Herman"}}},
		{Tag: "680", Subfields: []Subfield{{Code: "i", Value: "Scope note"}}},
		{Tag: "655", Subfields: []Subfield{{Code: "a", Value: "Sea stories"}}},
		{Tag: "663", Subfields: []Subfield{{Code: "a", Value: "See also"}}},
		{Tag: "699", Subfields: []Subfield{{Code: "a", Value: "Local subject"}}},
		{Tag: "6xx"},
	}}

	var tags []string
	for _, f := range r.Subjects() {
		tags = append(tags, f.Tag)
	}
	assert.Equal(t, []string{"600", "655", "699"}, tags)
}

func TestParseXML_BareRecord(t *testing.T) {
	doc := `<record><controlfield tag="001">local-7</controlfield></record>`
	r, err := ParseXML([]byte(doc))
	require.NoError(t, err)

	// Without 974$u the control number is the id.
	assert.Equal(t, "local-7", r.ID())
	assert.Empty(t, r.Subjects())
}

func TestParseXML_Errors(t *testing.T) {
	_, err := ParseXML([]byte(`<collection></collection>`))
	assert.True(t, errors.Is(err, ErrNoRecord))

	_, err = ParseXML([]byte(`<record><leader>`))
	assert.Error(t, err)
}

func TestParseCollection(t *testing.T) {
	doc := `<collection>
		<record><controlfield tag="001">a</controlfield></record>
		<record><controlfield tag="001">b</controlfield></record>
	</collection>`

	records, err := ParseCollection([]byte(doc))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID())
	assert.Equal(t, "b", records[1].ID())
}

func TestRecord_MarshalRoundTrip(t *testing.T) {
	r, err := ParseXML([]byte(sampleRecord))
	require.NoError(t, err)

	out, err := r.Marshal()
	require.NoError(t, err)

	again, err := ParseXML(out)
	require.NoError(t, err)
	assert.Equal(t, r.ID(), again.ID())
	assert.Equal(t, r.Leader, again.Leader)
	assert.Equal(t, len(r.DataFields), len(again.DataFields))
	assert.Equal(t, r.Subjects()[0].Subfield("a"), again.Subjects()[0].Subfield("a"))
}

func TestMatcher(t *testing.T) {
	r, err := ParseXML([]byte(sampleRecord))
	require.NoError(t, err)

	tests := []struct {
		name  string
		terms []string
		want  bool
	}{
		{name: "exact", terms: []string{"Whaling"}, want: true},
		{name: "case insensitive substring", terms: []string{"WHAL"}, want: true},
		{name: "any of several", terms: []string{"railroads", "sea"}, want: true},
		{name: "only first $a counts", terms: []string{"fiction"}, want: false},
		{name: "non-subject fields ignored", terms: []string{"ahab"}, want: false},
		{name: "no match", terms: []string{"astronomy"}, want: false},
		{name: "blank terms ignored", terms: []string{"", "  "}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewMatcher(tt.terms...).Match(r))
		})
	}
}

func TestMatcher_SubjectWithoutA(t *testing.T) {
	doc := `<record><datafield tag="650"><subfield code="x">Whaling</subfield></datafield></record>`
	r, err := ParseXML([]byte(doc))
	require.NoError(t, err)

	assert.False(t, NewMatcher("whaling").Match(r))
	assert.Equal(t, []string{"whaling"}, NewMatcher(" Whaling ").Terms())
}
