package pep440

import (
	"fmt"
	"strings"
	"k8s.io/apimachinery/pkg/util/intstr"
)

type Version = LocalVersion

// ParseVersion parses a string to a Version object, performing normalization.

func ParseVersion(str string) (*Version, error) {
	ver, err := parseVersion(str) // the routine from Appendix B
	if err != nil {
		return nil, fmt.Errorf("pep440.ParseVersion: %w", err)
	}
	return ver, nil
}

type PublicVersion struct {

	// * Epoch segment: ``N!``
	Epoch int

	// * Release segment: ``N(.N)*``
	Release []int

	// * Pre-release segment: ``{a|b|rc}N``
	Pre *PreRelease

	// * Post-release segment: ``.postN``
	Post *int

	// * Development release segment: ``.devN``
	Dev *int
}

type PreRelease struct {
	L string
	N int
}

// GoString implements fmt.GoStringer.

func (ver PublicVersion) GoString() string {
	pre := "nil"
	if ver.Pre != nil {
		pre = fmt.Sprintf("&%#v", *ver.Pre)
	}
	post := "nil"
	if ver.Post != nil {
		post = fmt.Sprintf("intPtr(%#v)", *ver.Post)
	}
	dev := "nil"
	if ver.Dev != nil {
		dev = fmt.Sprintf("intPtr(%#v)", *ver.Dev)
	}
	return fmt.Sprintf("pep440.PublicVersion{Epoch:%d, Release:%#v, Pre:%s, Post:%s, Dev:%s}",
		ver.Epoch, ver.Release, pre, post, dev)
}

func (ver PublicVersion) writeTo(ret *strings.Builder) {
	if ver.Epoch > 0 {
		fmt.Fprintf(ret, "%d!", ver.Epoch)
	}
	if len(ver.Release) == 0 {
		panic("invalid version: no release segments")
	}
	fmt.Fprintf(ret, "%d", ver.Release[0])
	for _, segment := range ver.Release[1:] {
		fmt.Fprintf(ret, ".%d", segment)
	}
	if ver.Pre != nil {
		fmt.Fprintf(ret, "%s%d", ver.Pre.L, ver.Pre.N)
	}
	if ver.Post != nil {
		fmt.Fprintf(ret, ".post%d", *ver.Post)
	}
	if ver.Dev != nil {
		fmt.Fprintf(ret, ".dev%d", *ver.Dev)
	}
}

// String implements fmt.Stringer.  String does not perform any normalization.

func (ver PublicVersion) String() string {
	var ret strings.Builder
	ver.writeTo(&ret)
	return ret.String()
}

type LocalVersion struct {
	PublicVersion
	Local []intstr.IntOrString
}

// GoString implements fmt.GoStringer.

func (ver LocalVersion) GoString() string {
	return fmt.Sprintf("pep440.LocalVersion{PublicVersion:%#v, Local:%#v}",
		ver.PublicVersion, ver.Local)
}

// String implements fmt.Stringer.  String does not perform any normalization.

func (ver LocalVersion) String() string {
	var ret strings.Builder
	ver.PublicVersion.writeTo(&ret)
	sep := "+"
	for _, local := range ver.Local {
		ret.WriteString(sep)
		ret.WriteString(local.String())
		sep = "."
	}
	return ret.String()
}

func cmpLocalSegment(a, b *intstr.IntOrString) int {

	// handle one or both of them being nil
	switch {
	case a == nil && b == nil:
		panic("should not happen: cmpLocal shouldn't have bothered calling this")
	case a == nil && b != nil:
		return -1
	case a != nil && b == nil:
		return 1
	}
	switch {
	case a.Type == intstr.Int && b.Type == intstr.Int:
		return int(a.IntVal - b.IntVal)
	case a.Type == intstr.String && b.Type == intstr.String:
		switch {
		case a.StrVal < b.StrVal:
			return -1
		case a.StrVal > b.StrVal:
			return 1
		}
		return 0
	case a.Type == intstr.Int && b.Type == intstr.String:
		return 1
	case a.Type == intstr.String && b.Type == intstr.Int:
		return -1
	default:
		panic("should not happen: invalid intstr.IntOrString")
	}
}

func cmpLocal(a, b LocalVersion) int {
	for i := 0; i < len(a.Local) || i < len(b.Local); i++ {
		var aSeg, bSeg *intstr.IntOrString
		if i < len(a.Local) {
			aSeg = &(a.Local[i])
		}
		if i < len(b.Local) {
			bSeg = &(b.Local[i])
		}
		if d := cmpLocalSegment(aSeg, bSeg); d != 0 {
			return d
		}
	}
	return 0
}

// Cmp returns a number < 0 if version 'a' is less than version 'b', > 0 if 'a' is greater than 'b',
// or 0 if they are equal.  This is similar to the C-language strcmp.  You may think of this as
// returning the result of arithmetic subtraction "a-b"; though only the sign is defined; the
// magnitude may be anything.

func (a LocalVersion) Cmp(b LocalVersion) int {
	if d := a.PublicVersion.Cmp(b.PublicVersion); d != 0 {
		return d
	}
	return cmpLocal(a, b)
}

func (ver PublicVersion) IsFinal() bool {
	return ver.Pre == nil && ver.Post == nil && ver.Dev == nil
}

func (ver LocalVersion) IsFinal() bool {
	return ver.PublicVersion.IsFinal() && len(ver.Local) == 0
}

func (ver PublicVersion) releaseSegment(n int) int {
	if n < len(ver.Release) {
		return ver.Release[n]
	}
	return 0
}

func cmpRelease(a, b PublicVersion) int {
	for i := 0; i < len(a.Release) || i < len(b.Release); i++ {
		if diff := a.releaseSegment(i) - b.releaseSegment(i); diff != 0 {
			return diff
		}
	}
	return 0
}

func (ver PublicVersion) Major() int { return ver.releaseSegment(0) }

func (ver PublicVersion) Minor() int { return ver.releaseSegment(1) }

func (ver PublicVersion) Micro() int { return ver.releaseSegment(2) }

//nolint:gochecknoglobals // Would be 'const'.
var preReleaseOrder = map[string]int{
	"a":     -3,
	"alpha": -3,
	"b":    -2,
	"beta": -2,
	"rc":      -1,
	"c":       -1,
	"pre":     -1,
	"preview": -1,

	// absent: 0,
}

func cmpPreRelease(a, b PublicVersion) int {
	var aL, aN, bL, bN int
	var ok bool
	if a.Pre != nil {
		aL, ok = preReleaseOrder[a.Pre.L]
		if !ok {
			panic(fmt.Errorf("invalid pre-release string: %q", a.Pre.L))
		}
		aN = a.Pre.N
	} else if a.Dev != nil && a.Post == nil {
		aL = -4
	}
	if b.Pre != nil {
		bL, ok = preReleaseOrder[b.Pre.L]
		if !ok {
			panic(fmt.Errorf("invalid pre-release string: %q", b.Pre.L))
		}
		bN = b.Pre.N
	} else if b.Dev != nil && b.Post == nil {
		bL = -4
	}
	if aL != bL {
		return aL - bL
	}
	return aN - bN
}

func cmpPostRelease(a, b PublicVersion) int {
	aPost := -1
	if a.Post != nil {
		aPost = *a.Post
	}
	bPost := -1
	if b.Post != nil {
		bPost = *b.Post
	}
	return aPost - bPost
}

func (ver PublicVersion) IsPreRelease() bool {
	return ver.Pre != nil || ver.Dev != nil
}

func cmpDevRelease(a, b PublicVersion) int {
	switch {
	case a.Dev == nil && b.Dev == nil:
		return 0
	case a.Dev == nil && b.Dev != nil:
		return 1
	case a.Dev != nil && b.Dev == nil:
		return -1
	default:
		return (*a.Dev) - (*b.Dev)
	}
}

func cmpEpoch(a, b PublicVersion) int {
	return a.Epoch - b.Epoch
}

func (ver PublicVersion) Normalize() (*PublicVersion, error) {
	n, err := ParseVersion(ver.String())
	if err != nil {
		return nil, err
	}
	return &n.PublicVersion, nil
}

func (ver LocalVersion) Normalize() (*LocalVersion, error) {
	n, err := ParseVersion(ver.String())
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Cmp returns a number < 0 if version 'a' is less than version 'b', > 0 if 'a' is greater than 'b',
// or 0 if they are equal.  This is similar to the C-language strcmp.  You may think of this as
// returning the result of arithmetic subtraction "a-b"; though only the sign is defined; the
// magnitude may be anything.

func (a PublicVersion) Cmp(b PublicVersion) int {

	// The epoch segment of version identifiers MUST be sorted according to the
	// numeric value of the given epoch. If no epoch segment is present, the
	// implicit numeric value is ``0``.
	if d := cmpEpoch(a, b); d != 0 {
		return d
	}

	//
	// The release segment of version identifiers MUST be sorted in
	// the same order as Python's tuple sorting when the normalized release segment is
	// parsed as follows::
	//
	//     tuple(map(int, release_segment.split(".")))
	//
	// All release segments involved in the comparison MUST be converted to a
	// consistent length by padding shorter segments with zeros as needed.
	if d := cmpRelease(a, b); d != 0 {
		return d
	}

	//
	// Within a numeric release (``1.0``, ``2.7.3``), the following suffixes
	// are permitted and MUST be ordered as shown::
	//
	//    .devN, aN, bN, rcN, <no suffix>, .postN
	//
	// Note that `c` is considered to be semantically equivalent to `rc` and must be
	// sorted as if it were `rc`. Tools MAY reject the case of having the same ``N``
	// for both a ``c`` and a ``rc`` in the same release segment as ambiguous and
	// remain in compliance with the PEP.
	if d := cmpPreRelease(a, b); d != 0 {
		return d
	}

	//
	// Within an alpha (``1.0a1``), beta (``1.0b1``), or release candidate
	// (``1.0rc1``, ``1.0c1``), the following suffixes are permitted and MUST be
	// ordered as shown::
	//
	//    .devN, <no suffix>, .postN
	if d := cmpPostRelease(a, b); d != 0 {
		return d
	}

	//
	// Within a post-release (``1.0.post1``), the following suffixes are permitted
	// and MUST be ordered as shown::
	//
	//     .devN, <no suffix>
	if d := cmpDevRelease(a, b); d != 0 {
		return d
	}

	//
	// Note that ``devN`` and ``postN`` MUST always be preceded by a dot, even
	// when used immediately following a numeric version (e.g. ``1.0.dev456``,
	// ``1.0.post1``).
	//
	// Within a pre-release, post-release or development release segment with a
	// shared prefix, ordering MUST be by the value of the numeric component.
	return 0
}

