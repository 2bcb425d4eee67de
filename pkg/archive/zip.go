// Package archive implements the streaming ZIP entry iterator and the
// tar-zstd writer that the conversion engine composes to turn a wheel into a
// conda package.
package archive

import (
	"archive/zip"
	"fmt"
	"io/fs"

	"github.com/cart-wheel/cartwheel/pkg/python"
)

// dataDescriptorFlag is the general-purpose bit flag (bit 3) indicating a
// ZIP entry's size was recorded in a trailing data descriptor rather than
// its local file header.
const dataDescriptorFlag = 0x8

// defaultMode is used for entries whose external attributes carry no POSIX
// mode, e.g. ones produced by a DOS/Windows-side zip tool.
const defaultMode fs.FileMode = 0o644

// Entry is one file within a ZIP archive being read.
type Entry struct {
	Name      string
	IsDir     bool
	KnownSize *uint64 // nil if the entry's size must be discovered by buffering it
	Mode      fs.FileMode // permission bits recovered from the entry's UNIX external attributes, when present
	zf        *zip.File
}

// Open returns a reader for this entry's decompressed content. The caller
// must fully drain and close it before requesting the reader's next entry.
func (e *Entry) Open() (interface {
	Read([]byte) (int, error)
	Close() error
}, error) {
	rc, err := e.zf.Open()
	if err != nil {
		return nil, fmt.Errorf("opening zip entry %q: %w", e.Name, err)
	}
	return rc, nil
}

// Reader iterates the entries of a ZIP archive in their on-disk order.
type Reader struct {
	zr      *zip.Reader
	entries []*zip.File
	pos     int
}

// NewReader wraps a *zip.Reader (built by the caller from a seekable source,
// since the format's central directory lives at the end of the file) as an
// entry iterator.
func NewReader(zr *zip.Reader) *Reader {
	return &Reader{zr: zr, entries: zr.File}
}

// entryMode recovers the POSIX permission bits a Unix-built ZIP (like a
// wheel) stores in the high 16 bits of ExternalAttrs, preserving things like
// the executable bit on bundled console-script shims. Falls back to a sane
// default for archives built on platforms that don't encode UNIX modes.
func entryMode(zf *zip.File) fs.FileMode {
	attrs := python.ParseZIPExternalAttributes(zf.ExternalAttrs)
	if attrs.UNIX == 0 {
		return defaultMode
	}
	return attrs.UNIX.ToGo().Perm()
}

// Next returns the next entry, or nil, nil at the end of the archive.
func (r *Reader) Next() (*Entry, error) {
	if r.pos >= len(r.entries) {
		return nil, nil
	}
	zf := r.entries[r.pos]
	r.pos++

	entry := &Entry{
		Name:  zf.Name,
		IsDir: zf.FileInfo().IsDir(),
		Mode:  entryMode(zf),
		zf:    zf,
	}
	if zf.UncompressedSize64 > 0 || zf.Flags&dataDescriptorFlag == 0 {
		size := zf.UncompressedSize64
		entry.KnownSize = &size
	}
	return entry, nil
}
