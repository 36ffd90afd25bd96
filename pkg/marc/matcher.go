package marc

import "strings"

// Matcher identifies records whose subject headings mention any of a set of
// terms. Matching is a case-insensitive substring test against the first $a
// of each subject field.
type Matcher struct {
	terms []string
}

// NewMatcher creates a matcher. Blank terms are ignored.
func NewMatcher(terms ...string) *Matcher {
	m := &Matcher{}
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			m.terms = append(m.terms, t)
		}
	}
	return m
}

// Terms returns the normalized terms.
func (m *Matcher) Terms() []string {
	return m.terms
}

// Match reports whether r references any term.
func (m *Matcher) Match(r *Record) bool {
	for _, field := range r.Subjects() {
		a := field.Subfield("a")
		if len(a) == 0 {
			continue
		}
		subject := strings.ToLower(a[0])
		for _, term := range m.terms {
			if strings.Contains(subject, term) {
				return true
			}
		}
	}
	return false
}
