package wheel

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/textproto"
	"sort"
	"strings"

	"github.com/cart-wheel/cartwheel/pkg/python"
	"github.com/cart-wheel/cartwheel/pkg/python/pep425"
)

// Metadata is the record the conversion engine builds from a wheel's three
// metadata files: METADATA (RFC 822), WHEEL (RFC 822), and the optional
// entry_points.txt.
type Metadata struct {
	RawName       string
	Name          string // Canonicalize(RawName)
	Version       string
	Summary       string
	Description   string
	License       string
	RequiresPython string
	Dependencies  []string // raw, unparsed Requires-Dist values, in file order

	HomeURL   string
	DocURL    string
	DevURL    string
	SourceURL string

	ConsoleScripts []string // "name = module:func"
	GUIScripts     []string

	Tag pep425.Tag

	Filename string // original wheel filename, for display/error messages only
}

// IsPure reports whether the wheel's tag is platform/ABI-independent.
func (m Metadata) IsPure() bool {
	return IsPure(m.Tag)
}

// Subdir derives the target channel subdirectory from the wheel's tags, per
// the token-match table: pure wheels always go to noarch; platform wheels
// are matched by substring against the known conda platform directories.
func (m Metadata) Subdir() string {
	if m.IsPure() {
		return "noarch"
	}
	platform := strings.ToLower(m.Tag.Platform)
	isManylinux := strings.Contains(platform, "manylinux")
	switch {
	case strings.Contains(platform, "win_amd64"), strings.Contains(platform, "win64"):
		return "win-64"
	case strings.Contains(platform, "win32"):
		return "win-32"
	case strings.Contains(platform, "linux_x86_64"), isManylinux && strings.Contains(platform, "x86_64"):
		return "linux-64"
	case strings.Contains(platform, "linux_aarch64"), isManylinux && strings.Contains(platform, "aarch64"):
		return "linux-aarch64"
	case strings.Contains(platform, "macosx") && strings.Contains(platform, "x86_64"):
		return "osx-64"
	case strings.Contains(platform, "macosx") && strings.Contains(platform, "arm64"):
		return "osx-arm64"
	default:
		return "noarch"
	}
}

// parseRFC822 parses an RFC 822-style metadata file (shared by METADATA and
// WHEEL), returning the header multi-map and any body text following the
// blank line separator.
func parseRFC822(content []byte) (textproto.MIMEHeader, string, error) {
	reader := textproto.NewReader(bufio.NewReader(bytes.NewReader(content)))
	header, err := reader.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, "", fmt.Errorf("parsing RFC 822 headers: %w", err)
	}
	body, _ := io.ReadAll(reader.R)
	return header, strings.TrimSpace(string(body)), nil
}

// parseWheelTag parses the first "Tag:" header of a WHEEL file, of the form
// "py3-none-any", into its three dash-separated components.
func parseWheelTag(raw string) (pep425.Tag, error) {
	parts := strings.SplitN(raw, "-", 3)
	if len(parts) != 3 {
		return pep425.Tag{}, fmt.Errorf("invalid WHEEL Tag value: %q", raw)
	}
	return pep425.Tag{Python: parts[0], ABI: parts[1], Platform: parts[2]}, nil
}

func parseProjectURLs(values []string) map[string]string {
	urls := make(map[string]string, len(values))
	for _, entry := range values {
		label, url, ok := strings.Cut(entry, ", ")
		if !ok {
			continue
		}
		urls[strings.ToLower(label)] = url
	}
	return urls
}

// ParseEntryPoints parses the content of an entry_points.txt file, returning
// "name = target" strings for the console_scripts and gui_scripts sections.
func ParseEntryPoints(content []byte) (console, gui []string, err error) {
	if len(content) == 0 {
		return nil, nil, nil
	}
	parser := python.NewConfigParser()
	parser.Delimiters = []string{"="}
	parser.OptionTransform = func(s string) string { return s }
	cfg, err := parser.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing entry_points.txt: %w", err)
	}
	format := func(section python.ConfigSection) []string {
		var out []string
		for name, target := range section {
			out = append(out, fmt.Sprintf("%s = %s", name, target))
		}
		sort.Strings(out)
		return out
	}
	return format(cfg["console_scripts"]), format(cfg["gui_scripts"]), nil
}

// ParseMetadata parses a wheel's three metadata blobs, as buffered by the
// conversion engine during its single streaming pass, into a Metadata
// record. entryPointsContent may be nil if the wheel has no entry points.
func ParseMetadata(metadataContent, wheelContent, entryPointsContent []byte, filename string) (*Metadata, error) {
	metaHeader, body, err := parseRFC822(metadataContent)
	if err != nil {
		return nil, fmt.Errorf("METADATA: %w", err)
	}
	wheelHeader, _, err := parseRFC822(wheelContent)
	if err != nil {
		return nil, fmt.Errorf("WHEEL: %w", err)
	}

	tagValues := wheelHeader.Values("Tag")
	if len(tagValues) == 0 {
		if fn, ferr := ParseFilename(filename); ferr == nil {
			tagValues = []string{fn.Tag.String()}
		}
	}
	if len(tagValues) == 0 {
		return nil, fmt.Errorf("WHEEL: no Tag header and no filename fallback")
	}
	tag, err := parseWheelTag(tagValues[0])
	if err != nil {
		return nil, err
	}

	rawName := metaHeader.Get("Name")
	if rawName == "" {
		if fn, ferr := ParseFilename(filename); ferr == nil {
			rawName = fn.Distribution
		}
	}

	description := metaHeader.Get("Description")
	if description == "" {
		description = body
	}

	console, gui, err := ParseEntryPoints(entryPointsContent)
	if err != nil {
		return nil, err
	}

	urls := parseProjectURLs(metaHeader.Values("Project-URL"))
	home := metaHeader.Get("Home-page")
	if home == "" {
		home = urls["homepage"]
	}

	return &Metadata{
		RawName:        rawName,
		Name:           Canonicalize(rawName),
		Version:        metaHeader.Get("Version"),
		Summary:        metaHeader.Get("Summary"),
		Description:    description,
		License:        metaHeader.Get("License"),
		RequiresPython: metaHeader.Get("Requires-Python"),
		Dependencies:   metaHeader.Values("Requires-Dist"),
		HomeURL:        home,
		DocURL:         urls["documentation"],
		DevURL:         urls["repository"],
		SourceURL:      urls["source"],
		ConsoleScripts: console,
		GUIScripts:     gui,
		Tag:            tag,
		Filename:       filename,
	}, nil
}
