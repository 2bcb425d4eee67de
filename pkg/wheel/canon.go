// Package wheel implements the conda-facing view of a Python wheel: filename
// parsing, name canonicalization, and the METADATA/WHEEL/entry_points.txt
// parser that the conversion engine drives.
package wheel

import "strings"

// Canonicalize folds a package name to conda's normal form: lowercase with
// underscores mapped to hyphens. It is idempotent and is the only place
// names are normalized; callers must apply it at ingress (wheel METADATA,
// operator input, index responses) and never re-derive it downstream.
func Canonicalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "-")
}
