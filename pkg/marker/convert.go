package marker

import (
	"fmt"
	"strings"

	"github.com/cart-wheel/cartwheel/pkg/cartwheelerr"
)

// sentinel results threaded through tree conversion before collapsing to a
// final selector string or one of the two first-class outcomes.
const (
	sentinelSkipDep       = "\x00skip-dep"
	sentinelCPythonAlways = "\x00cpython-always"
)

var platformBySysPlatform = map[string]string{
	"win32":  "__win",
	"cygwin": "__win",
	"linux":  "__linux",
	"darwin": "__osx",
}

var platformBySystem = map[string]string{
	"Windows": "__win",
	"Linux":   "__linux",
	"Darwin":  "__osx",
}

// Outcome is the result of translating a marker: exactly one of Condition,
// SkipDep, or IncludeAlways is meaningful.
type Outcome struct {
	Condition      string // conda selector expression, if conditional
	SkipDep        bool   // the dependency must be dropped entirely
	IncludeAlways  bool   // the dependency is unconditional
}

func atomToConditionOrSentinel(a Atom) (string, error) {
	switch a.Variable {
	case "python_version":
		return fmt.Sprintf("python %s%s", a.Op, a.Value), nil

	case "sys_platform":
		plat, ok := platformBySysPlatform[a.Value]
		switch a.Op {
		case "==":
			if ok {
				return plat, nil
			}
		case "!=":
			if ok {
				return "not " + plat, nil
			}
		}
		return "", &cartwheelerr.MarkerUnsupported{Variable: fmt.Sprintf("sys_platform == %q", a.Value)}

	case "platform_system":
		plat, ok := platformBySystem[a.Value]
		switch a.Op {
		case "==":
			if ok {
				return plat, nil
			}
		case "!=":
			if ok {
				return "not " + plat, nil
			}
		}
		return "", &cartwheelerr.MarkerUnsupported{Variable: fmt.Sprintf("platform_system == %q", a.Value)}

	case "os_name":
		switch {
		case a.Op == "==" && a.Value == "nt":
			return "__win", nil
		case a.Op == "==" && a.Value == "posix":
			return "__unix", nil
		case a.Op == "!=" && a.Value == "nt":
			return "__unix", nil
		}

	case "platform_version":
		return "\x00platform-version" + a.Op + a.Value, nil

	case "platform_python_implementation", "implementation_name":
		isCPython := strings.EqualFold(a.Value, "cpython")
		switch a.Op {
		case "==":
			if isCPython {
				return sentinelCPythonAlways, nil
			}
			return sentinelSkipDep, nil
		case "!=":
			if isCPython {
				return sentinelSkipDep, nil
			}
			return sentinelCPythonAlways, nil
		}
	}

	return "", &cartwheelerr.MarkerUnsupported{Variable: a.Variable}
}

// treeItem classifies one converted slot in a flattened tree, mirroring the
// tagged list the original conversion builds before folding it into a
// string: a plain text fragment, a boolean operator, a platform flag
// (eligible to fuse with a following/preceding platform_version), or a
// dangling platform_version token.
type treeItem struct {
	kind  string // "part", "op", "platform", "version"
	value string
}

// convertTree ports the reference implementation's _convert_marker_tree: it
// walks the flat/nested marker tree, resolves sentinels, fuses
// platform_version tokens with their platform flag, and joins the rest with
// their original boolean operators.
func convertTree(tree Tree) (string, error) {
	var items []treeItem
	hasSkipDep := false
	hasCPythonAlways := false

	for _, raw := range tree {
		switch v := raw.(type) {
		case Tree:
			sub, err := convertTree(v)
			if err != nil {
				return "", err
			}
			switch sub {
			case sentinelSkipDep:
				hasSkipDep = true
			case sentinelCPythonAlways:
				hasCPythonAlways = true
			default:
				items = append(items, treeItem{"part", "(" + sub + ")"})
			}
		case string:
			items = append(items, treeItem{"op", v})
		case Atom:
			converted, err := atomToConditionOrSentinel(v)
			if err != nil {
				return "", err
			}
			switch {
			case converted == sentinelSkipDep:
				hasSkipDep = true
			case converted == sentinelCPythonAlways:
				hasCPythonAlways = true
			case converted == "__win" || converted == "__linux" || converted == "__osx" || converted == "__unix":
				items = append(items, treeItem{"platform", converted})
			case strings.HasPrefix(converted, "\x00platform-version"):
				items = append(items, treeItem{"version", strings.TrimPrefix(converted, "\x00platform-version")})
			default:
				items = append(items, treeItem{"part", converted})
			}
		default:
			return "", fmt.Errorf("marker: unexpected tree item %T", raw)
		}
	}

	if hasSkipDep {
		return sentinelSkipDep, nil
	}
	if hasCPythonAlways && len(items) == 0 {
		return sentinelCPythonAlways, nil
	}

	versionIdx := -1
	var versionValue string
	for i, it := range items {
		if it.kind == "version" {
			versionIdx = i
			versionValue = it.value
			break
		}
	}

	if versionIdx >= 0 {
		flagIdx := -1
		flagCount := 0
		for i, it := range items {
			if it.kind == "platform" {
				flagCount++
				flagIdx = i
			}
		}
		if flagCount == 0 {
			return "", fmt.Errorf("platform_version requires a platform marker")
		}
		if flagCount > 1 {
			return "", fmt.Errorf("platform_version requires exactly one platform marker")
		}

		combined := items[flagIdx].value + " " + versionValue
		lo, hi := flagIdx, versionIdx
		if lo > hi {
			lo, hi = hi, lo
		}
		skip := map[int]bool{flagIdx: true, versionIdx: true}
		for i := lo + 1; i < hi; i++ {
			if items[i].kind == "op" {
				skip[i] = true
				break
			}
		}

		var parts []string
		for i, it := range items {
			if skip[i] {
				if i == flagIdx {
					parts = append(parts, combined)
				}
				continue
			}
			parts = append(parts, it.value)
		}
		return strings.Join(parts, " "), nil
	}

	var parts []string
	for _, it := range items {
		parts = append(parts, it.value)
	}
	return strings.Join(parts, " "), nil
}

// ToCondition translates a parsed marker Tree into an Outcome: a conda
// selector string, or one of the two first-class sentinel outcomes.
func ToCondition(tree Tree) (Outcome, error) {
	result, err := convertTree(tree)
	if err != nil {
		return Outcome{}, err
	}
	switch result {
	case sentinelSkipDep:
		return Outcome{SkipDep: true}, nil
	case sentinelCPythonAlways:
		return Outcome{IncludeAlways: true}, nil
	default:
		return Outcome{Condition: result}, nil
	}
}
