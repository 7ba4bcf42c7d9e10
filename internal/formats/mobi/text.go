package mobi

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Text encodings of the MOBI header.
const (
	EncodingCP1252 = 1252
	EncodingUTF8   = 65001
)

func decodeText(enc uint32, b []byte) string {
	if enc == EncodingCP1252 {
		out, err := charmap.Windows1252.NewDecoder().Bytes(b)
		if err == nil {
			return string(out)
		}
	}

	return string(b)
}

func encodeText(enc uint32, s string) []byte {
	if enc == EncodingCP1252 {
		out, err := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()).Bytes([]byte(s))
		if err == nil {
			return out
		}
	}

	return []byte(s)
}
