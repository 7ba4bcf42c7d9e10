// Package oeb holds the minimal open e-book document model shared by input
// and output format plugins: book metadata, a manifest of resources and a
// reading order.
package oeb

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Metadata describes a book independently of its container format.
type Metadata struct {
	Title       string
	Authors     []string
	Publisher   string
	Language    string
	Identifiers map[string]string // scheme -> value, e.g. "isbn", "uuid"
	Description string
	Tags        []string
	Pubdate     time.Time
}

// AuthorsString joins authors the way they are shown to users.
func (m *Metadata) AuthorsString() string {
	return strings.Join(m.Authors, " & ")
}

// Identifier returns the identifier for scheme, if any.
func (m *Metadata) Identifier(scheme string) string {
	if m.Identifiers == nil {
		return ""
	}

	return m.Identifiers[strings.ToLower(scheme)]
}

// SetIdentifier stores an identifier under a lower-cased scheme.
func (m *Metadata) SetIdentifier(scheme, value string) {
	if m.Identifiers == nil {
		m.Identifiers = map[string]string{}
	}
	m.Identifiers[strings.ToLower(scheme)] = value
}

// Clone returns a deep copy of m.
func (m *Metadata) Clone() *Metadata {
	c := *m
	c.Authors = slices.Clone(m.Authors)
	c.Tags = slices.Clone(m.Tags)
	c.Identifiers = maps.Clone(m.Identifiers)

	return &c
}

// Apply copies fields from src onto m. Empty fields in src are skipped unless
// applyNull is set, in which case they clear the field on m.
func (m *Metadata) Apply(src *Metadata, applyNull bool) {
	setString := func(dst *string, v string) {
		if v != "" || applyNull {
			*dst = v
		}
	}
	setString(&m.Title, src.Title)
	setString(&m.Publisher, src.Publisher)
	setString(&m.Language, src.Language)
	setString(&m.Description, src.Description)

	if len(src.Authors) > 0 || applyNull {
		m.Authors = slices.Clone(src.Authors)
	}
	if len(src.Tags) > 0 || applyNull {
		m.Tags = slices.Clone(src.Tags)
	}
	if !src.Pubdate.IsZero() || applyNull {
		m.Pubdate = src.Pubdate
	}
	for k, v := range src.Identifiers {
		m.SetIdentifier(k, v)
	}
}

// String renders the metadata as the aligned key/value listing used by the CLI.
func (m *Metadata) String() string {
	var b strings.Builder
	line := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "%-12s: %s\n", k, v)
		}
	}
	line("Title", m.Title)
	line("Author(s)", m.AuthorsString())
	line("Publisher", m.Publisher)
	line("Languages", m.Language)
	line("Tags", strings.Join(m.Tags, ", "))
	if !m.Pubdate.IsZero() {
		line("Published", m.Pubdate.Format("2006-01-02"))
	}
	keys := slices.Sorted(maps.Keys(m.Identifiers))
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k+":"+m.Identifiers[k])
	}
	line("Identifiers", strings.Join(ids, ", "))
	line("Comments", m.Description)

	return b.String()
}

// dateLayouts are the partial ISO 8601 forms found in package documents.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseDate parses the date forms used by OPF and EXTH records. Dates without
// a zone are taken as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
