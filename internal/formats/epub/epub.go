// Package epub reads and writes EPUB containers: a zip holding a mimetype
// entry, META-INF/container.xml and the package document it points at.
package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"

	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
	"github.com/andrei-cloud/ebookconv/internal/oeb"
)

// MimeType is the content of the mimetype entry.
const MimeType = "application/epub+zip"

const (
	containerPath  = "META-INF/container.xml"
	encryptionPath = "META-INF/encryption.xml"
	// fontObfuscation algorithms only mangle embedded fonts.
	idpfObfuscation  = "http://www.idpf.org/2008/embedding"
	adobeObfuscation = "http://ns.adobe.com/pdf/enc#RC"
)

type container struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type encryption struct {
	Data []struct {
		Method struct {
			Algorithm string `xml:"Algorithm,attr"`
		} `xml:"EncryptionMethod"`
	} `xml:"EncryptedData"`
}

// Container is an opened EPUB.
type Container struct {
	zr *zip.Reader
	// OPFPath is the zip path of the package document.
	OPFPath string
}

// Open parses the container structure of an EPUB.
func Open(r io.ReaderAt, size int64) (*Container, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errorcodes.ErrMalformedContainer, err)
	}

	c := &Container{zr: zr}
	data, err := c.ReadFile(containerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errorcodes.ErrC3, err)
	}

	var ct container
	if err := xml.Unmarshal(data, &ct); err != nil {
		return nil, fmt.Errorf("%w: container.xml: %w", errorcodes.ErrMalformedContainer, err)
	}
	for _, rf := range ct.Rootfiles {
		if rf.MediaType == "" || rf.MediaType == "application/oebps-package+xml" {
			c.OPFPath = rf.FullPath
			break
		}
	}
	if c.OPFPath == "" {
		return nil, errorcodes.ErrC3
	}

	return c, nil
}

// OpenStream opens an EPUB from a seekable stream.
func OpenStream(r io.ReadSeeker) (*Container, error) {
	ra, size, err := readerAt(r)
	if err != nil {
		return nil, err
	}

	return Open(ra, size)
}

func readerAt(r io.ReadSeeker) (io.ReaderAt, int64, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, 0, err
	}
	if ra, ok := r.(io.ReaderAt); ok {
		size, err := r.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, err
		}
		return ra, size, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}

	return bytes.NewReader(data), int64(len(data)), nil
}

// ReadFile returns the content of one zip entry.
func (c *Container) ReadFile(name string) ([]byte, error) {
	rc, err := c.zr.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// Encrypted reports whether the book carries encryption beyond font obfuscation.
func (c *Container) Encrypted() bool {
	data, err := c.ReadFile(encryptionPath)
	if err != nil {
		return false
	}

	var enc encryption
	if err := xml.Unmarshal(data, &enc); err != nil {
		return true
	}
	for _, d := range enc.Data {
		switch d.Method.Algorithm {
		case idpfObfuscation, adobeObfuscation:
		default:
			return true
		}
	}

	return false
}

// Package returns the parsed package document with no item data loaded.
func (c *Container) Package() (*oeb.Book, error) {
	data, err := c.ReadFile(c.OPFPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errorcodes.ErrC3, err)
	}

	return oeb.ParseOPF(data)
}

// Book returns the package document with every manifest item's data loaded.
// Items missing from the zip are dropped from the manifest.
func (c *Container) Book() (*oeb.Book, error) {
	if c.Encrypted() {
		return nil, errorcodes.ErrC4
	}

	book, err := c.Package()
	if err != nil {
		return nil, err
	}

	base := path.Dir(c.OPFPath)
	kept := book.Manifest[:0]
	for _, it := range book.Manifest {
		data, err := c.ReadFile(path.Join(base, it.Href))
		if err != nil {
			continue
		}
		it.Data = data
		if it.MediaType == "" {
			it.MediaType = oeb.GuessMediaType(it.Href)
		}
		kept = append(kept, it)
	}
	book.Manifest = kept

	return book, nil
}

// ReadMetadata returns the metadata of the EPUB in r.
func ReadMetadata(r io.ReadSeeker) (*oeb.Metadata, error) {
	c, err := OpenStream(r)
	if err != nil {
		return nil, err
	}
	book, err := c.Package()
	if err != nil {
		return nil, err
	}

	return &book.Metadata, nil
}

