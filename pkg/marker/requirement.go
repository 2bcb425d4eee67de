package marker

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cart-wheel/cartwheel/pkg/wheel"
)

var reRequirement = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)\s*(?:\[([^\]]*)\])?\s*([^;]*?)\s*(?:;\s*(.*))?\s*$`)

// Requirement is a parsed Requires-Dist entry.
type Requirement struct {
	Name      string   // as written (not yet canonicalized)
	Extras    []string
	Specifier string // raw version specifier text, unparsed
	Marker    string // raw marker text after ';', empty if none
}

// ParseRequirement parses one Requires-Dist value, e.g.
// `typing-extensions; python_version < '3.11'` or `foo[bar]>=1.0,<2.0`.
func ParseRequirement(raw string) (*Requirement, error) {
	m := reRequirement.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("invalid requirement: %q", raw)
	}
	var extras []string
	if m[2] != "" {
		for _, e := range strings.Split(m[2], ",") {
			if e = strings.TrimSpace(e); e != "" {
				extras = append(extras, e)
			}
		}
	}
	return &Requirement{
		Name:      m[1],
		Extras:    extras,
		Specifier: strings.TrimSpace(m[3]),
		Marker:    m[4],
	}, nil
}

// CondaString renders a Requirement as a conda dependency string, optionally
// gated by a translated selector condition.
func (r Requirement) CondaString(condition string) string {
	dep := wheel.Canonicalize(r.Name)
	if len(r.Extras) > 0 {
		extras := append([]string(nil), r.Extras...)
		sort.Strings(extras)
		dep = fmt.Sprintf("%s[extras=[%s]]", dep, strings.Join(extras, ","))
	}
	if r.Specifier != "" {
		dep = dep + " " + r.Specifier
	}
	if condition != "" {
		dep = fmt.Sprintf("%s; if %s", dep, condition)
	}
	return dep
}

// ConvertDependencies translates a wheel's raw Requires-Dist strings into
// conda's main `depends` list plus a per-extra `extra_depends` map,
// prepending the `python <requires_python>` (or bare `python`) entry that
// conda's index.json always carries.
func ConvertDependencies(rawDeps []string, requiresPython string) (depends []string, extraDepends map[string][]string, err error) {
	if requiresPython != "" {
		depends = append(depends, "python "+strings.ReplaceAll(requiresPython, " ", ""))
	} else {
		depends = append(depends, "python")
	}
	extraDepends = make(map[string][]string)

	for _, raw := range rawDeps {
		req, perr := ParseRequirement(raw)
		if perr != nil {
			return nil, nil, perr
		}

		if req.Marker == "" {
			depends = append(depends, req.CondaString(""))
			continue
		}

		if extraName, remaining, ok := ExtractExtra(req.Marker); ok {
			condition := ""
			if remaining != "" {
				tree, perr := Parse(remaining)
				if perr != nil {
					return nil, nil, perr
				}
				outcome, cerr := ToCondition(tree)
				if cerr != nil {
					return nil, nil, cerr
				}
				if outcome.SkipDep {
					continue
				}
				if !outcome.IncludeAlways {
					condition = outcome.Condition
				}
			}
			extraDepends[extraName] = append(extraDepends[extraName], req.CondaString(condition))
			continue
		}

		tree, perr := Parse(req.Marker)
		if perr != nil {
			return nil, nil, perr
		}
		outcome, cerr := ToCondition(tree)
		if cerr != nil {
			return nil, nil, cerr
		}
		if outcome.SkipDep {
			continue
		}
		condition := ""
		if !outcome.IncludeAlways {
			condition = outcome.Condition
		}
		depends = append(depends, req.CondaString(condition))
	}

	if len(extraDepends) == 0 {
		extraDepends = nil
	}
	return depends, extraDepends, nil
}
