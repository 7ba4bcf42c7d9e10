package mobi

import (
	"encoding/binary"
	"io"

	"github.com/andrei-cloud/ebookconv/internal/oeb"
)

// ReadWriteTruncater is a seekable file that can be rewritten in place.
type ReadWriteTruncater interface {
	io.ReadWriteSeeker
	Truncate(size int64) error
}

// SetMetadata merges mi into the EXTH block and full name of the MOBI book in
// s and rewrites the file in place. EXTH records that do not carry metadata
// fields are kept as they were.
func SetMetadata(s ReadWriteTruncater, mi *oeb.Metadata, applyNull bool) error {
	f, err := ParseStream(s)
	if err != nil {
		return err
	}
	h := f.header
	if !h.HasMOBI {
		return malformed("no MOBI header to hold metadata")
	}

	md := f.Metadata()
	md.Apply(mi, applyNull)

	recs := metadataEXTH(md, h.Encoding)
	for _, r := range h.EXTH {
		if !managed[r.Type] {
			recs = append(recs, r)
		}
	}

	rec0 := f.db.records[0]
	fixed := palmDocHeaderLen + int(h.MobiLength)
	if fixed < 0x84 || fixed > len(rec0) {
		return malformed("MOBI header longer than record 0")
	}
	head := append([]byte(nil), rec0[:fixed]...)
	binary.BigEndian.PutUint32(head[0x80:], u32(head, 0x80)|exthFlag)

	f.db.records[0] = appendTail(head, buildEXTH(recs), encodeText(h.Encoding, md.Title))
	f.db.setName(md.Title)
	out := f.db.bytes()

	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := s.Truncate(0); err != nil {
		return err
	}
	_, err = s.Write(out)

	return err
}
