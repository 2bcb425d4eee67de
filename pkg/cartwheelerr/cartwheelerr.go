// Package cartwheelerr declares the first-class error kinds shared by the
// conversion engine, the closure fetcher, and the sync orchestrator.
//
// Each kind is a distinct type so that callers can use errors.As to decide
// how to react (retry a wheel, halt a package, or abort an interactive
// prompt) rather than matching on error strings.
package cartwheelerr

import "fmt"

// SourceUnavailable wraps a network failure fetching a wheel or index
// document: connection error, 404, or a non-2xx that isn't a 404. It is
// recoverable per wheel and drives the retry counter.
type SourceUnavailable struct {
	URL string
	Err error
}

func (e *SourceUnavailable) Error() string {
	return fmt.Sprintf("source unavailable: %s: %v", e.URL, e.Err)
}

func (e *SourceUnavailable) Unwrap() error { return e.Err }

// MalformedWheel covers a wheel with no dist-info prefix, a missing
// METADATA/WHEEL file, or an unreadable ZIP. It is fatal for that one wheel.
type MalformedWheel struct {
	Filename string
	Reason   string
}

func (e *MalformedWheel) Error() string {
	return fmt.Sprintf("malformed wheel %s: %s", e.Filename, e.Reason)
}

// MarkerUnsupported is raised when the marker translation table is
// exhausted for a variable/operator/value combination.
type MarkerUnsupported struct {
	Variable string
}

func (e *MarkerUnsupported) Error() string {
	return fmt.Sprintf("unsupported marker variable: %s", e.Variable)
}

// ArchiveWriteFailure wraps an I/O error writing the pkg or info archive,
// which often indicates a full disk.
type ArchiveWriteFailure struct {
	Err error
}

func (e *ArchiveWriteFailure) Error() string {
	return fmt.Sprintf("archive write failed: %v", e.Err)
}

func (e *ArchiveWriteFailure) Unwrap() error { return e.Err }

// StateCorruption is fatal for the package whose state or declaration file
// could not be parsed. It never triggers an automatic rewrite of the file.
type StateCorruption struct {
	Package string
	Err     error
}

func (e *StateCorruption) Error() string {
	return fmt.Sprintf("state corruption in package %q: %v", e.Package, e.Err)
}

func (e *StateCorruption) Unwrap() error { return e.Err }

// OperatorAbort is returned when an interactive `add` prompt is declined.
// No declarations are written when this error surfaces.
type OperatorAbort struct {
	Package string
}

func (e *OperatorAbort) Error() string {
	return fmt.Sprintf("operator aborted resolution of %q", e.Package)
}
