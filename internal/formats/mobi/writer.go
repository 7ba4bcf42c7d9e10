package mobi

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/andrei-cloud/ebookconv/internal/oeb"
	"github.com/andrei-cloud/ebookconv/pkg/palmdoc"
)

// File versions written by Write.
const (
	VersionMOBI6 = 6
	// VersionKF8 marks an AZW3 book. The text is stored the same way as in a
	// MOBI 6 book; no KF8 fragment or skeleton indices are written.
	VersionKF8 = 8
)

// multibyteFlag marks the trailing byte counting UTF-8 overlap bytes.
const multibyteFlag = 0x1

// WriteOptions selects the flavour of the written book.
type WriteOptions struct {
	Version     uint32
	Compression uint16
}

// Write encodes book as a MOBI file: the spine documents are flattened into
// one markup stream separated by page breaks and stored as UTF-8 text records.
func Write(w io.Writer, book *oeb.Book, opts WriteOptions) error {
	if opts.Version == 0 {
		opts.Version = VersionMOBI6
	}
	if opts.Compression == 0 {
		opts.Compression = CompressionPalmDOC
	}

	text, err := flatten(book)
	if err != nil {
		return err
	}

	textRecords := splitText(text, opts.Compression)

	title := book.Metadata.Title
	if title == "" {
		title = "Unknown"
	}

	h := &header{
		Compression:  opts.Compression,
		TextLength:   uint32(len(text)),
		RecordCount:  uint16(len(textRecords)),
		RecordSize:   palmdoc.RecordSize,
		MobiType:     2,
		Encoding:     EncodingUTF8,
		UID:          crc32.ChecksumIEEE([]byte(title + book.Metadata.Identifier("uuid"))),
		Version:      opts.Version,
		FirstNonBook: uint32(len(textRecords) + 1),
		FullName:     []byte(title),
		ExtraFlags:   multibyteFlag,
	}

	exth := metadataEXTH(&book.Metadata, EncodingUTF8)
	exth = append(exth, exthRecord{Type: exthCDEType, Data: []byte("EBOK")})

	records := make([][]byte, 0, len(textRecords)+2)
	records = append(records, buildRecord0(h, buildEXTH(exth)))
	records = append(records, textRecords...)
	records = append(records, eofRecord)

	_, err = w.Write(newDatabase(title, records).bytes())

	return err
}

// flatten joins the bodies of the spine documents.
func flatten(book *oeb.Book) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("<html><head><guide></guide></head><body>")
	for i, it := range book.SpineItems() {
		body, err := oeb.BodyMarkup(it.Data)
		if err != nil {
			return nil, fmt.Errorf("flatten %s: %w", it.Href, err)
		}
		if i > 0 {
			buf.WriteString("<mbp:pagebreak/>")
		}
		buf.Write(body)
	}
	buf.WriteString("</body></html>")

	return buf.Bytes(), nil
}

// splitText cuts text into record sized pieces, compressing them when asked.
// Each record is followed by the continuation bytes of a UTF-8 sequence cut
// at its end and a byte counting them.
func splitText(text []byte, compression uint16) [][]byte {
	var records [][]byte
	if compression == CompressionPalmDOC {
		records = palmdoc.CompressRecords(text, palmdoc.RecordSize)
	} else {
		for start := 0; start < len(text); start += palmdoc.RecordSize {
			end := min(start+palmdoc.RecordSize, len(text))
			records = append(records, bytes.Clone(text[start:end]))
		}
	}

	for i := range records {
		end := min((i+1)*palmdoc.RecordSize, len(text))
		overlap := 0
		for end+overlap < len(text) && overlap < 3 && text[end+overlap]&0xc0 == 0x80 {
			overlap++
		}
		records[i] = append(records[i], text[end:end+overlap]...)
		records[i] = append(records[i], byte(overlap))
	}

	return records
}
