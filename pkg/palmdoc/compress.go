package palmdoc

import (
	"bytes"
	"encoding/binary"
)

// Compress encodes data with the greedy PalmDOC matcher. The match search and
// its tie-breaking are kept exactly as existing encoders produce them so the
// output stays byte-compatible.
func Compress(data []byte) []byte {
	n := len(data)
	if n == 0 {
		return []byte{}
	}

	out := make([]byte, 0, n)
	i := 0
	for i < n {
		if i > 10 && n-i > 10 {
			if length, dist, ok := findMatch(data, i); ok {
				code := uint16(0x8000 + ((dist << 3) & 0x3ff8) + (length - minMatch))
				out = binary.BigEndian.AppendUint16(out, code)
				i += length

				continue
			}
		}

		ch := data[i]
		i++

		if ch == ' ' && i+1 < n {
			if next := data[i]; next >= 0x40 && next < 0x80 {
				out = append(out, next^0x80)
				i++

				continue
			}
		}

		if isLiteral(ch) {
			out = append(out, ch)

			continue
		}

		// binary run: ch plus following non-literal bytes, at most maxRun.
		run := 1
		for j := i; j < n && run < maxRun; j++ {
			if isLiteral(data[j]) {
				break
			}
			run++
		}
		out = append(out, byte(run))
		out = append(out, data[i-1:i-1+run]...)
		i += run - 1
	}

	return out
}

// findMatch looks for the longest chunk starting at i whose last earlier
// occurrence lies within maxDistance. Lengths are tried from maxMatch down; a
// length whose last occurrence is too far away is skipped.
func findMatch(data []byte, i int) (length, dist int, ok bool) {
	for j := maxMatch; j >= minMatch; j-- {
		end := min(i+j, len(data))
		chunk := data[i:end]

		match := bytes.LastIndex(data[:i], chunk)
		if match < 0 {
			continue
		}
		if i-match <= maxDistance {
			return len(chunk), i - match, true
		}
	}

	return 0, 0, false
}
