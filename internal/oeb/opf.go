package oeb

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// XML namespaces of the package document.
const (
	NamespaceOPF = "http://www.idpf.org/2007/opf"
	NamespaceDC  = "http://purl.org/dc/elements/1.1/"
)

type opfCreator struct {
	Role string `xml:"http://www.idpf.org/2007/opf role,attr"`
	Name string `xml:",chardata"`
}

type opfIdentifier struct {
	ID     string `xml:"id,attr"`
	Scheme string `xml:"http://www.idpf.org/2007/opf scheme,attr"`
	Value  string `xml:",chardata"`
}

type opfMeta struct {
	Name     string `xml:"name,attr"`
	Content  string `xml:"content,attr"`
	Property string `xml:"property,attr"`
	Value    string `xml:",chardata"`
}

type opfItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

type opfItemref struct {
	IDRef string `xml:"idref,attr"`
}

// opfDocument is the namespace-aware decoding view of a package document.
type opfDocument struct {
	Version          string `xml:"version,attr"`
	UniqueIdentifier string `xml:"unique-identifier,attr"`
	Metadata         struct {
		Titles       []string        `xml:"http://purl.org/dc/elements/1.1/ title"`
		Creators     []opfCreator    `xml:"http://purl.org/dc/elements/1.1/ creator"`
		Publishers   []string        `xml:"http://purl.org/dc/elements/1.1/ publisher"`
		Languages    []string        `xml:"http://purl.org/dc/elements/1.1/ language"`
		Identifiers  []opfIdentifier `xml:"http://purl.org/dc/elements/1.1/ identifier"`
		Descriptions []string        `xml:"http://purl.org/dc/elements/1.1/ description"`
		Subjects     []string        `xml:"http://purl.org/dc/elements/1.1/ subject"`
		Dates        []string        `xml:"http://purl.org/dc/elements/1.1/ date"`
		Metas        []opfMeta       `xml:"meta"`
	} `xml:"metadata"`
	Manifest []opfItem `xml:"manifest>item"`
	Spine    struct {
		Toc      string       `xml:"toc,attr"`
		Itemrefs []opfItemref `xml:"itemref"`
	} `xml:"spine"`
}

// ParseOPF decodes a package document into a book whose manifest items carry no data.
func ParseOPF(data []byte) (*Book, error) {
	var doc opfDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse package document: %w", err)
	}

	book := NewBook()
	md := &book.Metadata
	md.Title = first(doc.Metadata.Titles)
	md.Publisher = first(doc.Metadata.Publishers)
	md.Language = first(doc.Metadata.Languages)
	md.Description = first(doc.Metadata.Descriptions)
	for _, c := range doc.Metadata.Creators {
		if name := strings.TrimSpace(c.Name); name != "" && (c.Role == "" || c.Role == "aut") {
			md.Authors = append(md.Authors, name)
		}
	}
	for _, s := range doc.Metadata.Subjects {
		if s = strings.TrimSpace(s); s != "" {
			md.Tags = append(md.Tags, s)
		}
	}
	if d := first(doc.Metadata.Dates); d != "" {
		if t, err := ParseDate(d); err == nil {
			md.Pubdate = t
		}
	}
	for _, id := range doc.Metadata.Identifiers {
		scheme, value := identifierScheme(id)
		if value != "" {
			md.SetIdentifier(scheme, value)
		}
	}

	for _, m := range doc.Metadata.Metas {
		if m.Name == "cover" {
			book.Cover = m.Content
		}
	}
	for _, it := range doc.Manifest {
		book.Manifest = append(book.Manifest, &Item{ID: it.ID, Href: it.Href, MediaType: it.MediaType})
	}
	for _, ref := range doc.Spine.Itemrefs {
		book.Spine = append(book.Spine, ref.IDRef)
	}

	return book, nil
}

// identifierScheme derives the scheme of an identifier from its attribute or a urn prefix.
func identifierScheme(id opfIdentifier) (string, string) {
	value := strings.TrimSpace(id.Value)
	scheme := strings.ToLower(id.Scheme)
	lower := strings.ToLower(value)
	switch {
	case strings.HasPrefix(lower, "urn:uuid:"):
		return "uuid", value[len("urn:uuid:"):]
	case strings.HasPrefix(lower, "urn:isbn:"):
		return "isbn", value[len("urn:isbn:"):]
	case scheme != "":
		return scheme, value
	default:
		return "unknown", value
	}
}

func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	return ""
}

// opfOutput is the encoding view; element names carry literal prefixes.
type opfOutput struct {
	XMLName          xml.Name `xml:"package"`
	Xmlns            string   `xml:"xmlns,attr"`
	Version          string   `xml:"version,attr"`
	UniqueIdentifier string   `xml:"unique-identifier,attr"`
	Metadata         struct {
		XmlnsDC     string `xml:"xmlns:dc,attr"`
		XmlnsOPF    string `xml:"xmlns:opf,attr"`
		Title       string `xml:"dc:title"`
		Creators    []outCreator
		Publisher   string          `xml:"dc:publisher,omitempty"`
		Language    string          `xml:"dc:language"`
		Identifiers []outIdentifier `xml:"dc:identifier"`
		Description string          `xml:"dc:description,omitempty"`
		Subjects    []string        `xml:"dc:subject"`
		Date        string          `xml:"dc:date,omitempty"`
		Metas       []outMeta       `xml:"meta"`
	} `xml:"metadata"`
	Manifest []opfItem `xml:"manifest>item"`
	Spine    struct {
		Toc      string       `xml:"toc,attr,omitempty"`
		Itemrefs []opfItemref `xml:"itemref"`
	} `xml:"spine"`
}

type outCreator struct {
	XMLName xml.Name `xml:"dc:creator"`
	Role    string   `xml:"opf:role,attr"`
	Name    string   `xml:",chardata"`
}

type outIdentifier struct {
	ID     string `xml:"id,attr,omitempty"`
	Scheme string `xml:"opf:scheme,attr,omitempty"`
	Value  string `xml:",chardata"`
}

type outMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

// UniqueIDRef is the id of the identifier element referenced by the package.
const UniqueIDRef = "uuid_id"

// WriteOPF encodes the book's package document. A uuid identifier is generated
// when the book has none. Manifest hrefs are written as stored.
func WriteOPF(book *Book) ([]byte, error) {
	md := &book.Metadata
	if md.Identifier("uuid") == "" {
		md.SetIdentifier("uuid", uuid.NewString())
	}

	var out opfOutput
	out.Xmlns = NamespaceOPF
	out.Version = "2.0"
	out.UniqueIdentifier = UniqueIDRef
	out.Metadata.XmlnsDC = NamespaceDC
	out.Metadata.XmlnsOPF = NamespaceOPF
	out.Metadata.Title = md.Title
	if out.Metadata.Title == "" {
		out.Metadata.Title = "Unknown"
	}
	for _, a := range md.Authors {
		out.Metadata.Creators = append(out.Metadata.Creators, outCreator{Role: "aut", Name: a})
	}
	out.Metadata.Publisher = md.Publisher
	out.Metadata.Language = md.Language
	if out.Metadata.Language == "" {
		out.Metadata.Language = "und"
	}
	out.Metadata.Identifiers = append(out.Metadata.Identifiers, outIdentifier{
		ID: UniqueIDRef, Scheme: "uuid", Value: "urn:uuid:" + md.Identifier("uuid"),
	})
	schemes := slices.Sorted(maps.Keys(md.Identifiers))
	for _, scheme := range schemes {
		if scheme == "uuid" {
			continue
		}
		out.Metadata.Identifiers = append(out.Metadata.Identifiers, outIdentifier{
			Scheme: scheme, Value: md.Identifiers[scheme],
		})
	}
	out.Metadata.Description = md.Description
	out.Metadata.Subjects = md.Tags
	if !md.Pubdate.IsZero() {
		out.Metadata.Date = md.Pubdate.Format("2006-01-02")
	}
	if book.Cover != "" {
		out.Metadata.Metas = append(out.Metadata.Metas, outMeta{Name: "cover", Content: book.Cover})
	}

	for _, it := range book.Manifest {
		out.Manifest = append(out.Manifest, opfItem{ID: it.ID, Href: it.Href, MediaType: it.MediaType})
		if it.MediaType == MediaNCX {
			out.Spine.Toc = it.ID
		}
	}
	for _, id := range book.Spine {
		out.Spine.Itemrefs = append(out.Spine.Itemrefs, opfItemref{IDRef: id})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode package document: %w", err)
	}
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}
