// Package mobi reads and writes MOBI books: a PalmDB database whose first
// record carries the PalmDOC and MOBI headers plus an EXTH metadata block,
// followed by the text records.
package mobi

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
)

const (
	palmHeaderLen  = 78
	recordEntryLen = 8
	maxPalmName    = 31
)

// database is a PalmDB file split into its raw header and records.
type database struct {
	header  [palmHeaderLen]byte
	records [][]byte
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errorcodes.ErrMalformedContainer, fmt.Sprintf(format, args...))
}

func parseDatabase(data []byte) (*database, error) {
	if len(data) < palmHeaderLen {
		return nil, malformed("short PalmDB header")
	}

	db := &database{}
	copy(db.header[:], data)

	n := int(binary.BigEndian.Uint16(data[76:78]))
	listEnd := palmHeaderLen + n*recordEntryLen
	if n == 0 || len(data) < listEnd {
		return nil, malformed("bad record list of %d entries", n)
	}

	offsets := make([]int, n+1)
	for i := range n {
		offsets[i] = int(binary.BigEndian.Uint32(data[palmHeaderLen+i*recordEntryLen:]))
	}
	offsets[n] = len(data)

	db.records = make([][]byte, 0, n)
	for i := range n {
		start, end := offsets[i], offsets[i+1]
		if start < listEnd || start > end || end > len(data) {
			return nil, malformed("record %d out of bounds", i)
		}
		db.records = append(db.records, data[start:end])
	}

	return db, nil
}

// newDatabase returns a BOOK/MOBI database holding records.
func newDatabase(name string, records [][]byte) *database {
	db := &database{records: records}
	db.setName(name)

	now := uint32(time.Now().Unix())
	binary.BigEndian.PutUint32(db.header[36:], now)
	binary.BigEndian.PutUint32(db.header[40:], now)
	copy(db.header[60:64], "BOOK")
	copy(db.header[64:68], "MOBI")

	return db
}

func (db *database) name() string {
	name, _, _ := strings.Cut(string(db.header[:32]), "\x00")
	return name
}

func (db *database) setName(title string) {
	clear(db.header[:32])
	copy(db.header[:maxPalmName], palmName(title))
}

// typeCreator returns the type and creator codes, "BOOKMOBI" for MOBI books.
func (db *database) typeCreator() string {
	return string(db.header[60:68])
}

// bytes lays out the header, the record list and the records.
func (db *database) bytes() []byte {
	n := len(db.records)
	binary.BigEndian.PutUint32(db.header[68:], uint32(2*n-1))
	binary.BigEndian.PutUint32(db.header[72:], 0)
	binary.BigEndian.PutUint16(db.header[76:], uint16(n))

	size := palmHeaderLen + n*recordEntryLen + 2
	for _, r := range db.records {
		size += len(r)
	}

	out := make([]byte, 0, size)
	out = append(out, db.header[:]...)
	offset := palmHeaderLen + n*recordEntryLen + 2
	for i, r := range db.records {
		out = binary.BigEndian.AppendUint32(out, uint32(offset))
		out = binary.BigEndian.AppendUint32(out, uint32(2*i)&0x00ffffff)
		offset += len(r)
	}
	out = append(out, 0, 0)
	for _, r := range db.records {
		out = append(out, r...)
	}

	return out
}

// palmName squeezes a title into the 31 ASCII bytes of a PalmDB name.
func palmName(title string) string {
	var b strings.Builder
	for _, r := range title {
		if b.Len() >= maxPalmName {
			break
		}
		switch {
		case r < 0x80 && (r == ' ' || r == '-' || r == '.' ||
			(r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	return b.String()
}
