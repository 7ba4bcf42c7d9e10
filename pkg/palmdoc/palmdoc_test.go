package palmdoc

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoundTrip verifies that Decompress restores the exact input for known samples.
func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", []byte{}},
		{"binary run", []byte("abc\x03\x04\x05\x06ms")},
		{"space pairs and high bytes", []byte("a b c \xfed ")},
		{"repeated chunks", []byte("0123456789axyz2bxyz2cdfgfo9iuyerh")},
		{"long repeat", []byte("0123456789asd0123456789asd|yyzzxxffhhjjkk")},
		{
			"mixed",
			[]byte("ciewacnaq eiu743 r787q 0w%  ; sa fd\xef\x0cfdxosac wocjp acoiecowei " +
				"owaic jociowapjcivcjpoivjporeivjpoavca; p9aw8743y6r74%$^$^%8 "),
		},
		{"trailing space pair", []byte("hello A")},
		{"long binary", bytes.Repeat([]byte{0x80, 0x81, 0x01, 0xff}, 20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.input, Decompress(Compress(tt.input)))
		})
	}
}

// TestRoundTripRandom verifies the round trip on pseudo-random buffers with repetitions.
func TestRoundTripRandom(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	alphabet := []byte("ab \x00\x01\x7f\x80\xc3@Z")
	for size := range 300 {
		buf := make([]byte, size*7)
		for i := range buf {
			buf[i] = alphabet[rng.Intn(len(alphabet))]
		}
		require.Equal(t, buf, Decompress(Compress(buf)), "size %d", len(buf))
	}

	text := bytes.Repeat([]byte("<p>The quick brown fox jumps over the lazy dog.</p>\n"), 200)
	compressed := Compress(text)
	assert.Less(t, len(compressed), len(text))
	assert.Equal(t, text, Decompress(compressed))
}

// TestCompressEncoding verifies the exact opcodes emitted for each encoding case.
func TestCompressEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    []byte
		expected []byte
	}{
		{"literals", []byte("abc"), []byte("abc")},
		{"zero literal", []byte{0x00, 'a'}, []byte{0x00, 'a'}},
		{"space pair", []byte(" Ab"), []byte{0xc1, 'b'}},
		{"space pair needs two bytes after space", []byte(" A"), []byte(" A")},
		{"space before non letter", []byte(" 1x"), []byte(" 1x")},
		{"binary byte", []byte{0x80}, []byte{0x01, 0x80}},
		{"binary run stops at literal", []byte{0x01, 0x02, 'a'}, []byte{0x02, 0x01, 0x02, 'a'}},
		{
			"binary run capped at eight",
			bytes.Repeat([]byte{0x90}, 9),
			append(append([]byte{0x08}, bytes.Repeat([]byte{0x90}, 8)...), 0x01, 0x90),
		},
		{
			"back reference",
			[]byte("0123456789A0123456789ABCDEFGHIJK"),
			append(append([]byte("0123456789A"), 0x80, 0x5f), []byte("ABCDEFGHIJK")...),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Compress(tt.input))
		})
	}
}

// TestDecompressMalformed verifies that decoding degrades instead of failing.
func TestDecompressMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    []byte
		expected []byte
	}{
		{"empty", nil, []byte{}},
		{"truncated back reference", []byte{'a', 0x80}, []byte{'a'}},
		{"truncated raw run", []byte{0x05, 'a', 'b'}, []byte("ab")},
		{"distance beyond output", []byte{'a', 0x80, 0x50}, []byte{'a', 0, 0, 0}},
		{"zero distance", []byte{'a', 0x80, 0x00}, []byte{'a', 0, 0, 0}},
		{"space opcode", []byte{0xc1}, []byte(" A")},
		// distance 1, length 4: repeats the last byte.
		{"overlapping copy", []byte{'x', 0x80, 0x09}, []byte("xxxxx")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Decompress(tt.input))
		})
	}
}

// TestCompressRecords verifies that text is split into independently decodable records.
func TestCompressRecords(t *testing.T) {
	t.Parallel()

	text := bytes.Repeat([]byte("record data "), 1000)
	records := CompressRecords(text, RecordSize)
	require.Len(t, records, (len(text)+RecordSize-1)/RecordSize)

	var joined []byte
	for _, r := range records {
		joined = append(joined, Decompress(r)...)
	}
	assert.Equal(t, text, joined)
	assert.Empty(t, CompressRecords(nil, 0))
}
