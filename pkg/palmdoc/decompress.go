package palmdoc

// Decompress decodes a PalmDOC stream. It never fails: a truncated
// back-reference ends decoding, and references pointing outside the output
// produced so far yield zero bytes.
func Decompress(data []byte) []byte {
	n := len(data)
	if n == 0 {
		return []byte{}
	}

	out := make([]byte, 0, n*2)
	i := 0
	for i < n {
		c := data[i]
		i++

		switch {
		case c >= 0x01 && c <= 0x08:
			end := min(i+int(c), n)
			out = append(out, data[i:end]...)
			i += int(c)
		case c <= 0x7f:
			out = append(out, c)
		case c >= 0xc0:
			out = append(out, ' ', c^0x80)
		default:
			if i >= n {
				return out
			}
			code := int(c)<<8 | int(data[i])
			i++

			dist := (code >> 3) & 0x7ff
			length := (code & 0x07) + minMatch
			for range length {
				// source index is relative to the output as it grows.
				src := len(out) - dist
				if src >= 0 && src < len(out) {
					out = append(out, out[src])
				} else {
					out = append(out, 0)
				}
			}
		}
	}

	return out
}
