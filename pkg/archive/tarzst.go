package archive

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"

	"github.com/klauspost/compress/zstd"

	"github.com/cart-wheel/cartwheel/pkg/reproducible"
)

// FileMetadata is collected for every file written into a TarZstWriter:
// its archive path, content hash, and size.
type FileMetadata struct {
	Path   string
	SHA256 string
	Size   uint64
}

// TarZstWriter writes a tar archive wrapped in a single streaming zstd
// frame, hashing each file's content as it is written. It never requires
// seekable output.
type TarZstWriter struct {
	enc   *zstd.Encoder
	tw    *tar.Writer
	files []FileMetadata
}

// NewTarZstWriter wraps w in a tar writer fed through a zstd encoder at the
// level conda packages use by convention (best compression).
func NewTarZstWriter(w io.Writer) (*TarZstWriter, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, fmt.Errorf("opening zstd encoder: %w", err)
	}
	return &TarZstWriter{enc: enc, tw: tar.NewWriter(enc)}, nil
}

// defaultFileMode is used by AddFile, whose callers write synthesized or
// already-buffered content with no source permission bits to preserve.
const defaultFileMode = 0o644

func (w *TarZstWriter) writeHeader(path string, size int64, mode int64) error {
	return w.tw.WriteHeader(&tar.Header{
		Name:    path,
		Size:    size,
		Mode:    mode,
		ModTime: reproducible.Now(),
	})
}

// AddFile writes a fully-buffered file (used for the three small metadata
// blobs and the synthesized INSTALLER).
func (w *TarZstWriter) AddFile(path string, content []byte) (FileMetadata, error) {
	if err := w.writeHeader(path, int64(len(content)), defaultFileMode); err != nil {
		return FileMetadata{}, err
	}
	if _, err := w.tw.Write(content); err != nil {
		return FileMetadata{}, fmt.Errorf("writing %q: %w", path, err)
	}
	sum := sha256.Sum256(content)
	meta := FileMetadata{Path: path, SHA256: hex.EncodeToString(sum[:]), Size: uint64(len(content))}
	w.files = append(w.files, meta)
	return meta, nil
}

// AddStream writes a file by copying from source, hashing during the copy
// rather than buffering the whole thing first. mode carries the source
// entry's POSIX permission bits (e.g. the executable bit on console-script
// shims), recovered by the ZIP reader from the wheel's external attributes.
func (w *TarZstWriter) AddStream(path string, source io.Reader, size uint64, mode fs.FileMode) (FileMetadata, error) {
	if err := w.writeHeader(path, int64(size), int64(mode.Perm())); err != nil {
		return FileMetadata{}, err
	}
	hasher := sha256.New()
	if _, err := io.Copy(w.tw, io.TeeReader(source, hasher)); err != nil {
		return FileMetadata{}, fmt.Errorf("streaming %q: %w", path, err)
	}
	meta := FileMetadata{Path: path, SHA256: hex.EncodeToString(hasher.Sum(nil)), Size: size}
	w.files = append(w.files, meta)
	return meta, nil
}

// Files returns the metadata for every file written so far.
func (w *TarZstWriter) Files() []FileMetadata {
	return append([]FileMetadata(nil), w.files...)
}

// Close flushes and closes the tar writer and the zstd encoder, in that
// order.
func (w *TarZstWriter) Close() error {
	if err := w.tw.Close(); err != nil {
		return fmt.Errorf("closing tar writer: %w", err)
	}
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("closing zstd encoder: %w", err)
	}
	return nil
}
