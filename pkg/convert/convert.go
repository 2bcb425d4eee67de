// Package convert drives the archive codec, the wheel metadata parser, and
// the marker translator through a single streaming pass that turns a wheel
// into a conda package, mirroring cart_wheel's convert_wheel.
package convert

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cart-wheel/cartwheel/pkg/archive"
	"github.com/cart-wheel/cartwheel/pkg/cartwheelerr"
	"github.com/cart-wheel/cartwheel/pkg/marker"
	"github.com/cart-wheel/cartwheel/pkg/wheel"
)

// Result is the public contract of a conversion: everything the sync
// orchestrator needs to record in a wheel's state.
type Result struct {
	Path                 string
	Name                 string
	Version              string
	Dependencies         []string
	ExtraDepends         map[string][]string
	EntryPoints          []string
	Subdir               string
	OriginalRequirements []string
}

// File converts a wheel already present on disk.
func File(ctx context.Context, wheelPath, outputDir string) (*Result, error) {
	f, err := os.Open(wheelPath)
	if err != nil {
		return nil, fmt.Errorf("opening wheel: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("statting wheel: %w", err)
	}
	return convert(ctx, f, info.Size(), filepath.Base(wheelPath), outputDir)
}

// Stream converts a wheel read from an arbitrary byte stream (e.g. an HTTP
// download). filename is used only as the tag/name fallback when WHEEL or
// METADATA lacks them, and for diagnostics.
// The stream is copied once into a scratch temp file, since ZIP's central
// directory requires random access; everything downstream of that copy
// still streams through the engine one entry at a time, so the only
// in-memory buffering stays limited to the handful of small metadata files
// the engine already has to buffer.
func Stream(ctx context.Context, r io.Reader, filename, outputDir string) (*Result, error) {
	scratch, err := os.CreateTemp("", "cartwheel-src-*.whl")
	if err != nil {
		return nil, fmt.Errorf("creating scratch file: %w", err)
	}
	defer os.Remove(scratch.Name())
	defer scratch.Close()

	size, err := io.Copy(scratch, r)
	if err != nil {
		return nil, fmt.Errorf("buffering wheel stream to disk: %w", err)
	}
	if _, err := scratch.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding scratch file: %w", err)
	}
	return convert(ctx, scratch, size, filename, outputDir)
}

// bufferedSuffixes are the dist-info files the engine needs in full before it
// can parse metadata; everything else streams straight into the pkg tar.
var bufferedSuffixes = []string{"/METADATA", "/WHEEL", "/entry_points.txt"}

func convert(ctx context.Context, src io.ReaderAt, size int64, filename, outputDir string) (*Result, error) {
	zr, err := zip.NewReader(src, size)
	if err != nil {
		return nil, &cartwheelerr.MalformedWheel{Filename: filename, Reason: err.Error()}
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	pkgTmp, err := os.CreateTemp("", "cartwheel-pkg-*.tar.zst")
	if err != nil {
		return nil, fmt.Errorf("creating pkg scratch file: %w", err)
	}
	defer os.Remove(pkgTmp.Name())
	defer pkgTmp.Close()

	pkgWriter, err := archive.NewTarZstWriter(pkgTmp)
	if err != nil {
		return nil, &cartwheelerr.ArchiveWriteFailure{Err: err}
	}

	buffered, distInfoPrefix, err := copyEntries(archive.NewReader(zr), pkgWriter, filename)
	if err != nil {
		return nil, err
	}
	if distInfoPrefix == "" {
		return nil, &cartwheelerr.MalformedWheel{Filename: filename, Reason: "no *.dist-info directory found"}
	}

	if _, err := pkgWriter.AddFile(sitePackagesPath(distInfoPrefix+"/INSTALLER"), []byte("conda\n")); err != nil {
		return nil, &cartwheelerr.ArchiveWriteFailure{Err: err}
	}
	if err := pkgWriter.Close(); err != nil {
		return nil, &cartwheelerr.ArchiveWriteFailure{Err: err}
	}

	metadataContent := buffered[distInfoPrefix+"/METADATA"]
	wheelContent := buffered[distInfoPrefix+"/WHEEL"]
	if metadataContent == nil || wheelContent == nil {
		return nil, &cartwheelerr.MalformedWheel{Filename: filename, Reason: "missing required METADATA or WHEEL file"}
	}
	entryPointsContent := buffered[distInfoPrefix+"/entry_points.txt"]

	meta, err := wheel.ParseMetadata(metadataContent, wheelContent, entryPointsContent, filename)
	if err != nil {
		return nil, &cartwheelerr.MalformedWheel{Filename: filename, Reason: err.Error()}
	}

	depends, extraDepends, err := marker.ConvertDependencies(meta.Dependencies, meta.RequiresPython)
	if err != nil {
		return nil, err
	}

	infoArchive, err := buildInfoArchive(meta, depends, extraDepends, pkgWriter.Files())
	if err != nil {
		return nil, &cartwheelerr.ArchiveWriteFailure{Err: err}
	}

	if _, err := pkgTmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding pkg scratch file: %w", err)
	}

	outPath := filepath.Join(outputDir, archive.FileName(meta.Name, meta.Version))
	outFile, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}
	defer outFile.Close()

	if err := archive.WriteCondaPackage(outFile, meta.Name, meta.Version, infoArchive, pkgTmp); err != nil {
		return nil, &cartwheelerr.ArchiveWriteFailure{Err: err}
	}

	entryPoints := append(append([]string(nil), meta.ConsoleScripts...), meta.GUIScripts...)
	return &Result{
		Path:                 outPath,
		Name:                 meta.Name,
		Version:              meta.Version,
		Dependencies:         depends,
		ExtraDepends:         extraDepends,
		EntryPoints:          entryPoints,
		Subdir:               meta.Subdir(),
		OriginalRequirements: meta.Dependencies,
	}, nil
}

// sitePackagesPrefix is where every file copied out of a wheel lands inside
// the conda package, per the original implementation's conda.py.
const sitePackagesPrefix = "site-packages/"

func sitePackagesPath(name string) string {
	return sitePackagesPrefix + name
}

// copyEntries walks every entry of the wheel's ZIP exactly once, streaming
// ordinary files straight into the pkg tar (under site-packages/) while
// buffering the small dist-info files the metadata parser needs. It skips
// the wheel's own INSTALLER file (if present), since a fresh one is
// synthesized by the caller once the dist-info prefix is known; RECORD is
// kept, matching the original implementation.
func copyEntries(zr *archive.Reader, pkgWriter *archive.TarZstWriter, filename string) (map[string][]byte, string, error) {
	buffered := make(map[string][]byte)
	distInfoPrefix := ""

	for {
		entry, err := zr.Next()
		if err != nil {
			return nil, "", &cartwheelerr.MalformedWheel{Filename: filename, Reason: err.Error()}
		}
		if entry == nil {
			break
		}
		if entry.IsDir {
			continue
		}

		if distInfoPrefix == "" {
			if idx := strings.Index(entry.Name, ".dist-info/"); idx >= 0 {
				distInfoPrefix = entry.Name[:idx] + ".dist-info"
			}
		}

		base := filepath.Base(entry.Name)
		if base == "INSTALLER" {
			continue
		}

		needsBuffer := false
		for _, suffix := range bufferedSuffixes {
			if strings.HasSuffix(entry.Name, suffix) {
				needsBuffer = true
				break
			}
		}

		rc, err := entry.Open()
		if err != nil {
			return nil, "", &cartwheelerr.MalformedWheel{Filename: filename, Reason: err.Error()}
		}

		if needsBuffer {
			content, readErr := io.ReadAll(rc)
			rc.Close()
			if readErr != nil {
				return nil, "", &cartwheelerr.MalformedWheel{Filename: filename, Reason: readErr.Error()}
			}
			buffered[entry.Name] = content
			if _, err := pkgWriter.AddFile(sitePackagesPath(entry.Name), content); err != nil {
				return nil, "", &cartwheelerr.ArchiveWriteFailure{Err: err}
			}
			continue
		}

		if entry.KnownSize != nil {
			_, err = pkgWriter.AddStream(sitePackagesPath(entry.Name), rc, *entry.KnownSize, entry.Mode)
			rc.Close()
			if err != nil {
				return nil, "", &cartwheelerr.ArchiveWriteFailure{Err: err}
			}
			continue
		}

		// Data-descriptor entries with no advance size: buffer just this
		// one file so the tar header can carry an accurate size.
		content, readErr := io.ReadAll(rc)
		rc.Close()
		if readErr != nil {
			return nil, "", &cartwheelerr.MalformedWheel{Filename: filename, Reason: readErr.Error()}
		}
		if _, err := pkgWriter.AddFile(sitePackagesPath(entry.Name), content); err != nil {
			return nil, "", &cartwheelerr.ArchiveWriteFailure{Err: err}
		}
	}

	return buffered, distInfoPrefix, nil
}
