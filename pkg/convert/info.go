package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cart-wheel/cartwheel/pkg/archive"
	"github.com/cart-wheel/cartwheel/pkg/wheel"
)

type indexJSON struct {
	Name         string              `json:"name"`
	Version      string              `json:"version"`
	Build        string              `json:"build"`
	BuildNumber  int                 `json:"build_number"`
	Depends      []string            `json:"depends"`
	Subdir       string              `json:"subdir"`
	Noarch       string              `json:"noarch,omitempty"`
	License      string              `json:"license,omitempty"`
	ExtraDepends map[string][]string `json:"extra_depends,omitempty"`
}

type pathEntry struct {
	Path        string `json:"_path"`
	PathType    string `json:"path_type"`
	SHA256      string `json:"sha256"`
	SizeInBytes uint64 `json:"size_in_bytes"`
}

type pathsJSON struct {
	Paths        []pathEntry `json:"paths"`
	PathsVersion int         `json:"paths_version"`
}

type aboutJSON struct {
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
	Home        string `json:"home,omitempty"`
	DocURL      string `json:"doc_url,omitempty"`
	DevURL      string `json:"dev_url,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
}

type noarchData struct {
	Type        string   `json:"type"`
	EntryPoints []string `json:"entry_points,omitempty"`
}

type linkJSON struct {
	Noarch                 noarchData `json:"noarch"`
	PackageMetadataVersion int        `json:"package_metadata_version"`
}

// buildInfoArchive constructs the info/ tree (index.json, paths.json, files,
// about.json, plus link.json for pure wheels; in memory, since it is small)
// and returns it as a zstd-compressed tar stream.
func buildInfoArchive(meta *wheel.Metadata, depends []string, extraDepends map[string][]string, files []archive.FileMetadata) ([]byte, error) {
	var buf bytes.Buffer
	tw, err := archive.NewTarZstWriter(&buf)
	if err != nil {
		return nil, err
	}

	index := indexJSON{
		Name:         meta.Name,
		Version:      meta.Version,
		Build:        "py_0",
		BuildNumber:  0,
		Depends:      depends,
		Subdir:       meta.Subdir(),
		License:      meta.License,
		ExtraDepends: extraDepends,
	}
	if meta.IsPure() {
		index.Noarch = "python"
	}
	if err := addJSON(tw, "info/index.json", index); err != nil {
		return nil, err
	}

	paths := make([]pathEntry, len(files))
	pathNames := make([]string, len(files))
	for i, f := range files {
		paths[i] = pathEntry{Path: f.Path, PathType: "hardlink", SHA256: f.SHA256, SizeInBytes: f.Size}
		pathNames[i] = f.Path
	}
	if err := addJSON(tw, "info/paths.json", pathsJSON{Paths: paths, PathsVersion: 1}); err != nil {
		return nil, err
	}

	if _, err := tw.AddFile("info/files", []byte(strings.Join(pathNames, "\n"))); err != nil {
		return nil, err
	}

	about := aboutJSON{
		Summary:     meta.Summary,
		Description: meta.Description,
		Home:        meta.HomeURL,
		DocURL:      meta.DocURL,
		DevURL:      meta.DevURL,
		SourceURL:   meta.SourceURL,
	}
	if err := addJSON(tw, "info/about.json", about); err != nil {
		return nil, err
	}

	if meta.IsPure() {
		entryPoints := append(append([]string(nil), meta.ConsoleScripts...), meta.GUIScripts...)
		link := linkJSON{
			Noarch:                 noarchData{Type: "python", EntryPoints: entryPoints},
			PackageMetadataVersion: 1,
		}
		if err := addJSON(tw, "info/link.json", link); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addJSON(tw *archive.TarZstWriter, path string, v any) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	_, err = tw.AddFile(path, content)
	return err
}
