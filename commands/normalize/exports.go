//go:build tinygo.wasm

package main

import "github.com/andrei-cloud/ebookconv/pkg/ftplugin"

//export Alloc
func Alloc(size uint32) uint32 {
	return ftplugin.Alloc(size)
}

//export Run
func Run(ptr, length uint32) uint64 {
	opts := ParseOptions(ftplugin.SiteCustomization())
	ftplugin.LogDebug("normalizing " + ftplugin.OriginalPath())

	return ftplugin.Handle(ptr, length, func(data []byte) ([]byte, error) {
		return Normalize(data, opts), nil
	})
}

//export Name
func Name() uint64 { return ftplugin.String("Normalize text") }

//export Description
func Description() uint64 {
	return ftplugin.String("Normalize line endings and trailing whitespace of text and HTML files")
}

//export Author
func Author() uint64 { return ftplugin.String("ebookconv") }

//export Version
func Version() uint64 { return ftplugin.String("1.0.0") }

//export FileTypes
func FileTypes() uint64 { return ftplugin.String("txt,html,htm,xhtml") }

//export Occasions
func Occasions() uint64 { return ftplugin.String("preprocess") }

//export Priority
func Priority() int32 { return 1 }
