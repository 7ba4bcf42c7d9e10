package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalize verifies line ending and whitespace cleanup.
func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		opts  Options
		want  []byte
	}{
		{"crlf", "a\r\nb\r\n", Options{}, []byte("a\nb\n")},
		{"old mac", "a\rb", Options{}, []byte("a\nb")},
		{"trailing blanks", "a  \nb\t\n", Options{}, []byte("a\nb\n")},
		{"collapse blank lines", "a\n\n\n\n\nb", Options{}, []byte("a\n\n\nb")},
		{"keep blank lines", "a \n\n\n\n\nb", Options{KeepBlankLines: true}, []byte("a\n\n\n\n\nb")},
		{"already clean", "a\nb\n", Options{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize([]byte(tt.input), tt.opts))
		})
	}
}

func TestParseOptions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Options{}, ParseOptions(""))
	assert.Equal(t, Options{KeepBlankLines: true}, ParseOptions("foo, Keep-Blank-Lines"))
}
