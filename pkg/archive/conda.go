package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/cart-wheel/cartwheel/pkg/reproducible"
)

// condaFormatVersion is the single-line manifest every .conda package
// carries at its root.
const condaFormatVersion = `{"conda_pkg_format_version": 2}`

// WriteCondaPackage assembles the outer .conda container: a stored
// (uncompressed) ZIP holding metadata.json, the info-*.tar.zst blob, and the
// pkg-*.tar.zst stream, in that order. pkgTarZst is read rather than held in
// memory, since it may be large; infoTarZst is small enough to hold as
// bytes.
func WriteCondaPackage(w io.Writer, name, version string, infoTarZst []byte, pkgTarZst io.Reader) error {
	zw := zip.NewWriter(w)

	if err := addStored(zw, "metadata.json", strings.NewReader(condaFormatVersion)); err != nil {
		return err
	}
	infoName := fmt.Sprintf("info-%s-%s-py_0.tar.zst", name, version)
	if err := addStored(zw, infoName, bytes.NewReader(infoTarZst)); err != nil {
		return err
	}
	pkgName := fmt.Sprintf("pkg-%s-%s-py_0.tar.zst", name, version)
	if err := addStored(zw, pkgName, pkgTarZst); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing .conda container: %w", err)
	}
	return nil
}

func addStored(zw *zip.Writer, name string, r io.Reader) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Store}
	hdr.SetModTime(reproducible.Now())
	fw, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("creating %q in .conda container: %w", name, err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return fmt.Errorf("writing %q in .conda container: %w", name, err)
	}
	return nil
}

// FileName is the produced .conda filename for a converted package.
func FileName(name, version string) string {
	return fmt.Sprintf("%s-%s-py_0.conda", name, version)
}
