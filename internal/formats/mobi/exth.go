package mobi

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/andrei-cloud/ebookconv/internal/oeb"
)

// EXTH record types.
const (
	exthAuthor       = 100
	exthPublisher    = 101
	exthDescription  = 103
	exthISBN         = 104
	exthSubject      = 105
	exthPubdate      = 106
	exthASIN         = 113
	exthContributor  = 108
	exthCDEType      = 501
	exthUpdatedTitle = 503
	exthLanguage     = 524
)

// managed are the EXTH types rebuilt from metadata; other records are kept.
var managed = map[uint32]bool{
	exthAuthor: true, exthPublisher: true, exthDescription: true, exthISBN: true,
	exthSubject: true, exthPubdate: true, exthASIN: true, exthUpdatedTitle: true, exthLanguage: true,
}

type exthRecord struct {
	Type uint32
	Data []byte
}

// parseEXTH decodes an EXTH block. Truncated records end the list.
func parseEXTH(b []byte) []exthRecord {
	if len(b) < 12 || string(b[:4]) != "EXTH" {
		return nil
	}

	count := binary.BigEndian.Uint32(b[8:12])
	recs := make([]exthRecord, 0, min(count, 64))
	pos := 12
	for range count {
		if pos+8 > len(b) {
			break
		}
		typ := binary.BigEndian.Uint32(b[pos:])
		size := int(binary.BigEndian.Uint32(b[pos+4:]))
		if size < 8 || pos+size > len(b) {
			break
		}
		recs = append(recs, exthRecord{Type: typ, Data: b[pos+8 : pos+size]})
		pos += size
	}

	return recs
}

// buildEXTH encodes records as an EXTH block padded to four bytes.
func buildEXTH(recs []exthRecord) []byte {
	body := 0
	for _, r := range recs {
		body += 8 + len(r.Data)
	}
	length := 12 + body
	pad := (4 - length%4) % 4

	out := make([]byte, 0, length+pad)
	out = append(out, "EXTH"...)
	out = binary.BigEndian.AppendUint32(out, uint32(length))
	out = binary.BigEndian.AppendUint32(out, uint32(len(recs)))
	for _, r := range recs {
		out = binary.BigEndian.AppendUint32(out, r.Type)
		out = binary.BigEndian.AppendUint32(out, uint32(8+len(r.Data)))
		out = append(out, r.Data...)
	}

	return append(out, make([]byte, pad)...)
}

// applyEXTH copies EXTH fields onto md, decoding text with enc.
func applyEXTH(md *oeb.Metadata, recs []exthRecord, enc uint32) {
	var authors, tags []string
	for _, r := range recs {
		v := strings.TrimSpace(decodeText(enc, r.Data))
		if v == "" {
			continue
		}
		switch r.Type {
		case exthAuthor:
			authors = append(authors, v)
		case exthPublisher:
			md.Publisher = v
		case exthDescription:
			md.Description = v
		case exthISBN:
			md.SetIdentifier("isbn", v)
		case exthASIN:
			md.SetIdentifier("mobi-asin", v)
		case exthSubject:
			tags = append(tags, v)
		case exthPubdate:
			if t, err := oeb.ParseDate(v); err == nil {
				md.Pubdate = t
			}
		case exthUpdatedTitle:
			md.Title = v
		case exthLanguage:
			md.Language = v
		}
	}
	if len(authors) > 0 {
		md.Authors = authors
	}
	if len(tags) > 0 {
		md.Tags = tags
	}
}

// metadataEXTH encodes md as EXTH records in enc.
func metadataEXTH(md *oeb.Metadata, enc uint32) []exthRecord {
	var recs []exthRecord
	add := func(typ uint32, v string) {
		if v = strings.TrimSpace(v); v != "" {
			recs = append(recs, exthRecord{Type: typ, Data: encodeText(enc, v)})
		}
	}

	for _, a := range md.Authors {
		add(exthAuthor, a)
	}
	add(exthPublisher, md.Publisher)
	add(exthDescription, md.Description)
	add(exthISBN, md.Identifier("isbn"))
	add(exthASIN, md.Identifier("mobi-asin"))
	for _, t := range md.Tags {
		add(exthSubject, t)
	}
	if !md.Pubdate.IsZero() {
		add(exthPubdate, md.Pubdate.UTC().Format(time.RFC3339))
	}
	add(exthUpdatedTitle, md.Title)
	add(exthLanguage, md.Language)

	return recs
}
