// Package palmdoc implements the PalmDOC LZ77 compression scheme used by
// MOBI and PalmDB e-book containers.
//
// Opcode layout of a compressed stream:
//
//	0x00        literal zero
//	0x01-0x08   length prefix of a raw byte run
//	0x09-0x7f   literal byte
//	0x80-0xbf   back-reference, combined with the next byte
//	0xc0-0xff   space followed by (byte ^ 0x80)
package palmdoc

// RecordSize is the uncompressed size of a MOBI text record.
const RecordSize = 4096

const (
	maxDistance = 2047
	minMatch    = 3
	maxMatch    = 10
	maxRun      = 8
)

// isLiteral reports whether b can be emitted as itself.
func isLiteral(b byte) bool {
	return b == 0 || (b > 0x08 && b < 0x80)
}

// CompressRecords splits text into records of size bytes and compresses each one.
// A non-positive size falls back to RecordSize.
func CompressRecords(text []byte, size int) [][]byte {
	if size <= 0 {
		size = RecordSize
	}

	records := make([][]byte, 0, (len(text)+size-1)/size)
	for start := 0; start < len(text); start += size {
		end := min(start+size, len(text))
		records = append(records, Compress(text[start:end]))
	}

	return records
}
