package wheel

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cart-wheel/cartwheel/pkg/python/pep425"
)

// reFilename matches the wheel filename grammar from PEP 427:
//
//	{distribution}-{version}(-{build tag})?-{python tag}-{abi tag}-{platform tag}.whl
var reFilename = regexp.MustCompile(`(?i)^([^-]+)-([^-]+)(?:-([0-9][^-]*))?-([^-]+)-([^-]+)-([^-]+)\.whl$`)

// Filename is the parsed form of a wheel filename.
type Filename struct {
	Distribution string
	Version      string
	BuildTag     string // empty if absent
	Tag          pep425.Tag
}

// ParseFilename parses a wheel filename into its components. The
// distribution name returned is as written in the filename (with underscores
// for hyphens, per PEP 427); callers that need the conda name must run it
// through Canonicalize.
func ParseFilename(name string) (*Filename, error) {
	m := reFilename.FindStringSubmatch(name)
	if m == nil {
		return nil, fmt.Errorf("invalid wheel filename: %q", name)
	}
	return &Filename{
		Distribution: m[1],
		Version:      m[2],
		BuildTag:     m[3],
		Tag: pep425.Tag{
			Python:   m[4],
			ABI:      m[5],
			Platform: m[6],
		},
	}, nil
}

// GenerateFilename re-serializes a Filename, the inverse of ParseFilename.
func GenerateFilename(f Filename) string {
	parts := []string{f.Distribution, f.Version}
	if f.BuildTag != "" {
		parts = append(parts, f.BuildTag)
	}
	parts = append(parts, f.Tag.Python, f.Tag.ABI, f.Tag.Platform)
	return strings.Join(parts, "-") + ".whl"
}

// IsPure reports whether a tag describes a platform/ABI-independent wheel:
// abi "none" and platform "any".
func IsPure(tag pep425.Tag) bool {
	return tag.ABI == "none" && tag.Platform == "any"
}
