package oeb

import (
	"fmt"
	"path"
	"strings"
)

// Common media types.
const (
	MediaXHTML = "application/xhtml+xml"
	MediaNCX   = "application/x-dtbncx+xml"
	MediaCSS   = "text/css"
	MediaJPEG  = "image/jpeg"
	MediaPNG   = "image/png"
	MediaGIF   = "image/gif"
	MediaSVG   = "image/svg+xml"
)

// Item is one manifest resource.
type Item struct {
	ID        string
	Href      string // slash separated, relative to the package document
	MediaType string
	Data      []byte
}

// IsDocument reports whether the item is a markup document.
func (i *Item) IsDocument() bool {
	return i.MediaType == MediaXHTML || i.MediaType == "text/html"
}

// Book is a parsed publication.
type Book struct {
	Metadata Metadata
	Manifest []*Item
	Spine    []string // item ids in reading order
	Cover    string   // item id of the cover image, if any
}

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{Metadata: Metadata{Identifiers: map[string]string{}}}
}

// Item returns the manifest item with the given id.
func (b *Book) Item(id string) (*Item, bool) {
	for _, it := range b.Manifest {
		if it.ID == id {
			return it, true
		}
	}

	return nil, false
}

// ItemByHref returns the manifest item with the given href.
func (b *Book) ItemByHref(href string) (*Item, bool) {
	href = path.Clean(href)
	for _, it := range b.Manifest {
		if path.Clean(it.Href) == href {
			return it, true
		}
	}

	return nil, false
}

// AddItem appends a resource to the manifest, generating an id when empty.
func (b *Book) AddItem(id, href, mediaType string, data []byte) *Item {
	if id == "" {
		id = fmt.Sprintf("id%d", len(b.Manifest)+1)
	}
	it := &Item{ID: id, Href: href, MediaType: mediaType, Data: data}
	b.Manifest = append(b.Manifest, it)

	return it
}

// AddDocument adds a markup document and appends it to the spine.
func (b *Book) AddDocument(id, href string, data []byte) *Item {
	it := b.AddItem(id, href, MediaXHTML, data)
	b.Spine = append(b.Spine, it.ID)

	return it
}

// SpineItems returns the spine documents in reading order, skipping dangling ids.
func (b *Book) SpineItems() []*Item {
	items := make([]*Item, 0, len(b.Spine))
	for _, id := range b.Spine {
		if it, ok := b.Item(id); ok {
			items = append(items, it)
		}
	}

	return items
}

// GuessMediaType maps a file extension to a media type.
func GuessMediaType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".xhtml", ".html", ".htm":
		return MediaXHTML
	case ".css":
		return MediaCSS
	case ".jpg", ".jpeg":
		return MediaJPEG
	case ".png":
		return MediaPNG
	case ".gif":
		return MediaGIF
	case ".svg":
		return MediaSVG
	case ".ncx":
		return MediaNCX
	default:
		return "application/octet-stream"
	}
}
