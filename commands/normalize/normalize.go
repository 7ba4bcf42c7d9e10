// Command normalize is a file type plugin that cleans up plain text and HTML
// before conversion: line endings become LF, trailing blanks are dropped and
// runs of more than two empty lines are collapsed. Build it with
//
//	tinygo build -o plugins/normalize.wasm -target wasi ./commands/normalize
//
// The site customization "keep-blank-lines" turns off blank line collapsing.
package main

import (
	"bytes"
	"strings"
)

// Options selects the normalization steps.
type Options struct {
	KeepBlankLines bool
}

// ParseOptions reads the comma separated site customization.
func ParseOptions(custom string) Options {
	var o Options
	for _, f := range strings.Split(custom, ",") {
		if strings.TrimSpace(strings.ToLower(f)) == "keep-blank-lines" {
			o.KeepBlankLines = true
		}
	}

	return o
}

// Normalize returns the cleaned text, or nil when nothing changed.
func Normalize(data []byte, o Options) []byte {
	text := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	text = bytes.ReplaceAll(text, []byte("\r"), []byte("\n"))

	lines := bytes.Split(text, []byte("\n"))
	out := make([]byte, 0, len(text))
	blank := 0
	for i, line := range lines {
		line = bytes.TrimRight(line, " \t")
		if len(line) == 0 {
			blank++
			if !o.KeepBlankLines && blank > 2 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line...)
		if i < len(lines)-1 {
			out = append(out, '\n')
		}
	}

	if bytes.Equal(out, data) {
		return nil
	}

	return out
}

func main() {}
