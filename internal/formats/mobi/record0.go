package mobi

import (
	"encoding/binary"
	"fmt"

	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
)

// PalmDOC compression types.
const (
	CompressionNone     = 1
	CompressionPalmDOC  = 2
	CompressionHuffCDIC = 17480
)

const (
	palmDocHeaderLen = 16
	mobiHeaderLen    = 232
	exthFlag         = 0x40
	noIndex          = 0xffffffff
	// extraFlagsOffset is where the trailing entry flags sit in record 0.
	extraFlagsOffset = 0xf2
)

// eofRecord ends the text and resource records of a MOBI file.
var eofRecord = []byte{0xe9, 0x8e, 0x0d, 0x0a}

// header holds the fields of record 0 the reader and writer use.
type header struct {
	Compression  uint16
	TextLength   uint32
	RecordCount  uint16
	RecordSize   uint16
	Encryption   uint16
	HasMOBI      bool
	MobiLength   uint32
	MobiType     uint32
	Encoding     uint32
	UID          uint32
	Version      uint32
	FirstNonBook uint32
	FullName     []byte
	FirstImage   uint32
	EXTHFlags    uint32
	ExtraFlags   uint16
	EXTH         []exthRecord
}

func u32(b []byte, off int) uint32 {
	if off+4 > len(b) {
		return 0
	}
	return binary.BigEndian.Uint32(b[off:])
}

func parseRecord0(rec []byte) (*header, error) {
	if len(rec) < palmDocHeaderLen {
		return nil, malformed("short record 0")
	}

	h := &header{
		Compression: binary.BigEndian.Uint16(rec[0:]),
		TextLength:  binary.BigEndian.Uint32(rec[4:]),
		RecordCount: binary.BigEndian.Uint16(rec[8:]),
		RecordSize:  binary.BigEndian.Uint16(rec[10:]),
		Encryption:  binary.BigEndian.Uint16(rec[12:]),
		Encoding:    EncodingCP1252,
	}

	if len(rec) < 0x18 || string(rec[0x10:0x14]) != "MOBI" {
		return h, nil
	}

	h.HasMOBI = true
	h.MobiLength = u32(rec, 0x14)
	h.MobiType = u32(rec, 0x18)
	h.Encoding = u32(rec, 0x1c)
	h.UID = u32(rec, 0x20)
	h.Version = u32(rec, 0x24)
	h.FirstNonBook = u32(rec, 0x50)
	h.FirstImage = u32(rec, 0x6c)
	h.EXTHFlags = u32(rec, 0x80)
	if h.MobiLength >= 0xe4 && len(rec) >= extraFlagsOffset+2 {
		h.ExtraFlags = binary.BigEndian.Uint16(rec[extraFlagsOffset:])
	}

	nameOff, nameLen := int(u32(rec, 0x54)), int(u32(rec, 0x58))
	if nameOff > 0 && nameOff+nameLen <= len(rec) {
		h.FullName = rec[nameOff : nameOff+nameLen]
	}

	if h.EXTHFlags&exthFlag != 0 {
		start := palmDocHeaderLen + int(h.MobiLength)
		if start < len(rec) {
			h.EXTH = parseEXTH(rec[start:])
		}
	}

	return h, nil
}

// checkReadable rejects what the reader cannot decode.
func (h *header) checkReadable() error {
	if h.Encryption != 0 {
		return errorcodes.ErrC4
	}
	switch h.Compression {
	case CompressionNone, CompressionPalmDOC:
		return nil
	default:
		return fmt.Errorf("%w: %d", errorcodes.ErrUnsupportedCompress, h.Compression)
	}
}

// buildRecord0 lays out the PalmDOC header, a MOBI header, the EXTH block and
// the full name, padded to four bytes.
func buildRecord0(h *header, exth []byte) []byte {
	rec := make([]byte, palmDocHeaderLen+mobiHeaderLen)

	binary.BigEndian.PutUint16(rec[0:], h.Compression)
	binary.BigEndian.PutUint32(rec[4:], h.TextLength)
	binary.BigEndian.PutUint16(rec[8:], h.RecordCount)
	binary.BigEndian.PutUint16(rec[10:], h.RecordSize)

	// unused index fields default to "none".
	for off := 0x28; off < 0x50; off += 4 {
		binary.BigEndian.PutUint32(rec[off:], noIndex)
	}
	for _, off := range []int{0x6c, 0x70, 0xa4, 0xb4, 0xf4} {
		binary.BigEndian.PutUint32(rec[off:], noIndex)
	}

	copy(rec[0x10:], "MOBI")
	binary.BigEndian.PutUint32(rec[0x14:], mobiHeaderLen)
	binary.BigEndian.PutUint32(rec[0x18:], h.MobiType)
	binary.BigEndian.PutUint32(rec[0x1c:], h.Encoding)
	binary.BigEndian.PutUint32(rec[0x20:], h.UID)
	binary.BigEndian.PutUint32(rec[0x24:], h.Version)
	binary.BigEndian.PutUint32(rec[0x50:], h.FirstNonBook)
	binary.BigEndian.PutUint32(rec[0x68:], h.Version)
	binary.BigEndian.PutUint32(rec[0x80:], exthFlag)
	binary.BigEndian.PutUint32(rec[0xa8:], 0)
	binary.BigEndian.PutUint16(rec[0xc0:], 1)
	binary.BigEndian.PutUint16(rec[0xc2:], h.RecordCount)
	binary.BigEndian.PutUint32(rec[0xc4:], 1)
	binary.BigEndian.PutUint16(rec[extraFlagsOffset:], h.ExtraFlags)

	return appendTail(rec, exth, h.FullName)
}

// appendTail appends the EXTH block and full name to the fixed headers and
// points the name fields at it.
func appendTail(rec, exth, fullName []byte) []byte {
	nameOff := len(rec) + len(exth)
	binary.BigEndian.PutUint32(rec[0x54:], uint32(nameOff))
	binary.BigEndian.PutUint32(rec[0x58:], uint32(len(fullName)))

	rec = append(rec, exth...)
	rec = append(rec, fullName...)
	rec = append(rec, 0, 0)
	if pad := (4 - len(rec)%4) % 4; pad > 0 {
		rec = append(rec, make([]byte, pad)...)
	}

	return rec
}
