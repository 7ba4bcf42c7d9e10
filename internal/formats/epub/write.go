package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"

	"github.com/andrei-cloud/ebookconv/internal/oeb"
	"github.com/google/uuid"
)

// opfDir is the directory the writer places the package and content in.
const opfDir = "OEBPS"

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

// Write encodes book as an EPUB. A table of contents is generated from the
// spine when the manifest has none.
func Write(w io.Writer, book *oeb.Book) error {
	if book.Metadata.Identifier("uuid") == "" {
		book.Metadata.SetIdentifier("uuid", uuid.NewString())
	}
	ensureNCX(book)

	opf, err := oeb.WriteOPF(book)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	// mimetype must be the first entry and stored uncompressed.
	mw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return err
	}
	if _, err := io.WriteString(mw, MimeType); err != nil {
		return err
	}

	if err := writeEntry(zw, containerPath, []byte(containerXML)); err != nil {
		return err
	}
	if err := writeEntry(zw, path.Join(opfDir, "content.opf"), opf); err != nil {
		return err
	}
	for _, it := range book.Manifest {
		if err := writeEntry(zw, path.Join(opfDir, it.Href), it.Data); err != nil {
			return err
		}
	}

	return zw.Close()
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	_, err = f.Write(data)

	return err
}

type ncx struct {
	XMLName xml.Name `xml:"ncx"`
	Xmlns   string   `xml:"xmlns,attr"`
	Version string   `xml:"version,attr"`
	Head    struct {
		Metas []outMeta `xml:"meta"`
	} `xml:"head"`
	Title  string     `xml:"docTitle>text"`
	Points []navPoint `xml:"navMap>navPoint"`
}

type outMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type navPoint struct {
	ID        string `xml:"id,attr"`
	PlayOrder int    `xml:"playOrder,attr"`
	Label     string `xml:"navLabel>text"`
	Content   struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
}

// ensureNCX adds a toc.ncx item listing the spine documents when missing.
func ensureNCX(book *oeb.Book) {
	for _, it := range book.Manifest {
		if it.MediaType == oeb.MediaNCX {
			return
		}
	}

	doc := ncx{Xmlns: "http://www.daisy.org/z3986/2005/ncx/", Version: "2005-1", Title: book.Metadata.Title}
	doc.Head.Metas = []outMeta{{Name: "dtb:uid", Content: book.Metadata.Identifier("uuid")}, {Name: "dtb:depth", Content: "1"}}
	for i, it := range book.SpineItems() {
		label := oeb.DocumentTitle(it.Data)
		if label == "" {
			label = fmt.Sprintf("Chapter %d", i+1)
		}
		np := navPoint{ID: fmt.Sprintf("np%d", i+1), PlayOrder: i + 1, Label: label}
		np.Content.Src = it.Href
		doc.Points = append(doc.Points, np)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return
	}

	book.AddItem("ncx", "toc.ncx", oeb.MediaNCX, buf.Bytes())
}
