// Package state implements the channel's two on-disk surfaces: a
// declarations directory (one TOML file per package) and a state directory
// (one YAML file per package mapping wheel filename to wheel state),
// written atomically via tmp-file-then-rename.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v2"

	"github.com/cart-wheel/cartwheel/pkg/cartwheelerr"
	"github.com/cart-wheel/cartwheel/pkg/wheel"
)

const (
	declExt  = ".toml"
	stateExt = ".yaml"

	// RetryCeiling is the number of consecutive failures after which a
	// wheel is permanently skipped rather than retried.
	RetryCeiling = 3
)

// Status is a wheel's position in the pending -> converted|failed -> skipped
// state machine.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConverted Status = "converted"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// WheelRef is one entry in a declaration's wheel list: an inline table
// carrying just the filename, matching the hand-edited declaration format.
type WheelRef struct {
	Filename string `toml:"filename"`
}

// Declaration is a package declaration: what to track and how.
type Declaration struct {
	Name              string     `toml:"name"`
	VersionConstraint string     `toml:"version_constraint"`
	SkipVersions      []string   `toml:"skip_versions,omitempty"`
	Wheels            []WheelRef `toml:"wheels,omitempty"`
	CondaForge        string     `toml:"conda_forge,omitempty"` // non-empty: defer to an external channel
}

// Dependencies is a wheel's translated dependency summary.
type Dependencies struct {
	Required []string            `yaml:"required"`
	Optional map[string][]string `yaml:"optional,omitempty"`
}

// WheelState is one wheel's state record.
type WheelState struct {
	Status               Status       `yaml:"status"`
	SHA256               string       `yaml:"sha256,omitempty"`
	UploadTime           string       `yaml:"upload_time,omitempty"`
	ConvertedAt          string       `yaml:"converted_at,omitempty"`
	CondaFile            string       `yaml:"conda_file,omitempty"`
	Subdir               string       `yaml:"subdir,omitempty"`
	Dependencies         Dependencies `yaml:"dependencies"`
	OriginalRequirements []string     `yaml:"original_requirements,omitempty"`
	Error                string       `yaml:"error,omitempty"`
	RetryCount           int          `yaml:"retry_count"`
}

// PackageState maps wheel filename to its state record.
type PackageState map[string]*WheelState

// WheelFilenames returns the declared wheel filenames, in declaration order.
func (d *Declaration) WheelFilenames() []string {
	names := make([]string, len(d.Wheels))
	for i, w := range d.Wheels {
		names[i] = w.Filename
	}
	return names
}

// Store roots the two directory surfaces.
type Store struct {
	DeclarationsDir string
	StateDir        string
}

// NewStore builds a Store rooted at the given directories, creating them if
// they don't yet exist.
func NewStore(declarationsDir, stateDir string) (*Store, error) {
	if err := os.MkdirAll(declarationsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating declarations dir: %w", err)
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	return &Store{DeclarationsDir: declarationsDir, StateDir: stateDir}, nil
}

func (s *Store) declPath(name string) string {
	return filepath.Join(s.DeclarationsDir, wheel.Canonicalize(name)+declExt)
}

func (s *Store) statePath(name string) string {
	return filepath.Join(s.StateDir, wheel.Canonicalize(name)+stateExt)
}

// writeAtomic writes content to a sibling *.tmp file, then renames it over
// the target; POSIX rename is atomic within a filesystem.
func writeAtomic(path string, content []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}

// ListPackages returns the canonicalized names of every declared package,
// derived from the declarations directory's file stems.
func (s *Store) ListPackages() ([]string, error) {
	entries, err := os.ReadDir(s.DeclarationsDir)
	if err != nil {
		return nil, fmt.Errorf("listing declarations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), declExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), declExt))
	}
	sort.Strings(names)
	return names, nil
}

// LoadDeclaration loads a package's declaration.
func (s *Store) LoadDeclaration(name string) (*Declaration, error) {
	content, err := os.ReadFile(s.declPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no declaration for %q", wheel.Canonicalize(name))
		}
		return nil, &cartwheelerr.StateCorruption{Package: name, Err: err}
	}
	var decl Declaration
	if err := toml.Unmarshal(content, &decl); err != nil {
		return nil, &cartwheelerr.StateCorruption{Package: name, Err: err}
	}
	return &decl, nil
}

// SaveDeclaration atomically writes a package's declaration.
func (s *Store) SaveDeclaration(decl Declaration) error {
	decl.Name = wheel.Canonicalize(decl.Name)
	content, err := toml.Marshal(decl)
	if err != nil {
		return fmt.Errorf("marshaling declaration for %q: %w", decl.Name, err)
	}
	return writeAtomic(s.declPath(decl.Name), content)
}

// LoadState loads a package's per-wheel state, tolerating a missing file as
// an empty state (a package that has been declared but never synced).
func (s *Store) LoadState(name string) (PackageState, error) {
	content, err := os.ReadFile(s.statePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return PackageState{}, nil
		}
		return nil, &cartwheelerr.StateCorruption{Package: name, Err: err}
	}
	var pkgState PackageState
	if err := yaml.Unmarshal(content, &pkgState); err != nil {
		return nil, &cartwheelerr.StateCorruption{Package: name, Err: err}
	}
	if pkgState == nil {
		pkgState = PackageState{}
	}
	return pkgState, nil
}

// SaveState atomically writes a package's per-wheel state.
func (s *Store) SaveState(name string, pkgState PackageState) error {
	content, err := yaml.Marshal(pkgState)
	if err != nil {
		return fmt.Errorf("marshaling state for %q: %w", name, err)
	}
	return writeAtomic(s.statePath(name), content)
}

// IsPending reports whether a wheel state counts as pending work: not
// converted, not skipped, and not failed with the retry ceiling reached.
func IsPending(ws *WheelState) bool {
	if ws == nil {
		return true
	}
	switch ws.Status {
	case StatusConverted, StatusSkipped:
		return false
	case StatusFailed:
		return ws.RetryCount < RetryCeiling
	default:
		return true
	}
}

// GetPendingWheels returns the filenames of a package's pending wheels,
// given its declaration and current state.
func GetPendingWheels(decl *Declaration, pkgState PackageState) []string {
	var pending []string
	for _, filename := range decl.WheelFilenames() {
		if IsPending(pkgState[filename]) {
			pending = append(pending, filename)
		}
	}
	return pending
}

// RecordFailure advances a wheel's state after a conversion or fetch
// failure: increments the retry counter and transitions to skipped once the
// ceiling is reached.
func RecordFailure(ws *WheelState, errMsg string) *WheelState {
	if ws == nil {
		ws = &WheelState{}
	}
	ws.RetryCount++
	ws.Error = errMsg
	if ws.RetryCount >= RetryCeiling {
		ws.Status = StatusSkipped
	} else {
		ws.Status = StatusFailed
	}
	return ws
}

// MissingDependency is one dependency referenced by a converted wheel with
// no matching declaration.
type MissingDependency struct {
	Package    string
	Dependency string
}

// ValidateDependencies checks one package's first converted wheel's
// required dependency list against the full declared-name set, returning
// any name with no declaration.
func ValidateDependencies(pkgName string, pkgState PackageState, declaredNames map[string]bool) []MissingDependency {
	for _, filename := range sortedKeys(pkgState) {
		ws := pkgState[filename]
		if ws.Status != StatusConverted {
			continue
		}
		var missing []MissingDependency
		for _, dep := range ws.Dependencies.Required {
			name := wheel.Canonicalize(firstToken(dep))
			if name == "python" {
				continue
			}
			if !declaredNames[name] {
				missing = append(missing, MissingDependency{Package: pkgName, Dependency: name})
			}
		}
		return missing // only the first converted wheel, per spec
	}
	return nil
}

// ValidateAllDependencies runs ValidateDependencies over every declared
// package, grouping the results by package name (map order is unspecified).
func ValidateAllDependencies(s *Store) (map[string][]MissingDependency, error) {
	names, err := s.ListPackages()
	if err != nil {
		return nil, err
	}
	declaredNames := make(map[string]bool, len(names))
	for _, n := range names {
		declaredNames[n] = true
	}

	results := make(map[string][]MissingDependency)
	for _, name := range names {
		pkgState, err := s.LoadState(name)
		if err != nil {
			return nil, err
		}
		if missing := ValidateDependencies(name, pkgState, declaredNames); len(missing) > 0 {
			results[name] = missing
		}
	}
	return results, nil
}

func sortedKeys(m PackageState) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstToken(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " ["); i >= 0 {
		return s[:i]
	}
	return s
}
