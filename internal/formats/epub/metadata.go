package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
	"github.com/andrei-cloud/ebookconv/internal/oeb"
)

// ReadWriteTruncater is a seekable file that can be rewritten in place.
type ReadWriteTruncater interface {
	io.ReadWriteSeeker
	Truncate(size int64) error
}

// SetMetadata merges mi into the package document of the EPUB in s and
// rewrites the archive in place. Every other entry is copied unchanged.
func SetMetadata(s ReadWriteTruncater, mi *oeb.Metadata, applyNull bool) error {
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(s)
	if err != nil {
		return err
	}

	c, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	book, err := c.Package()
	if err != nil {
		return err
	}
	book.Metadata.Apply(mi, applyNull)

	opf, err := oeb.WriteOPF(book)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	replaced := false
	for _, f := range c.zr.File {
		if f.Name != c.OPFPath {
			if err := zw.Copy(f); err != nil {
				return fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate})
		if err != nil {
			return err
		}
		if _, err := w.Write(opf); err != nil {
			return err
		}
		replaced = true
	}
	if !replaced {
		return errorcodes.ErrC3
	}
	if err := zw.Close(); err != nil {
		return err
	}

	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := s.Truncate(0); err != nil {
		return err
	}
	_, err = s.Write(out.Bytes())

	return err
}
