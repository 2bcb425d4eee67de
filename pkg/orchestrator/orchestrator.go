// Package orchestrator is the sync orchestrator: it enumerates pending
// wheels across every declared package, dispatches their conversion through
// a bounded-concurrency worker pool, and persists the resulting state
// atomically via the state store.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/datawire/dlib/dlog"
	"golang.org/x/sync/semaphore"

	"github.com/cart-wheel/cartwheel/pkg/cartwheelerr"
	"github.com/cart-wheel/cartwheel/pkg/convert"
	"github.com/cart-wheel/cartwheel/pkg/pypi"
	"github.com/cart-wheel/cartwheel/pkg/state"
)

const defaultWeight = 10

// TaskResult records the outcome of converting one wheel.
type TaskResult struct {
	Package  string
	Filename string
	Err      error
}

// SyncResult summarizes one invocation of SyncAll or SyncPackage.
type SyncResult struct {
	Converted []TaskResult
	Failed    []TaskResult
}

// Orchestrator wires the state store, the PyPI client, and the conversion
// engine's output directory together.
type Orchestrator struct {
	Store     *state.Store
	Client    *pypi.Client
	OutputDir string
	Weight    int64
}

// New builds an Orchestrator with the spec's default concurrency bound.
func New(store *state.Store, client *pypi.Client, outputDir string) *Orchestrator {
	return &Orchestrator{Store: store, Client: client, OutputDir: outputDir, Weight: defaultWeight}
}

type task struct {
	pkgName  string
	filename string
}

// SyncAll enumerates every declared package, computes its pending wheel
// list, and converts all pending wheels across every package under one
// shared concurrency bound.
func (o *Orchestrator) SyncAll(ctx context.Context) (*SyncResult, error) {
	names, err := o.Store.ListPackages()
	if err != nil {
		return nil, err
	}

	var tasks []task
	for _, name := range names {
		decl, err := o.Store.LoadDeclaration(name)
		if err != nil {
			dlog.Errorf(ctx, "skipping package %q: %v", name, err)
			continue
		}
		if decl.CondaForge != "" {
			continue // deferred to an external channel; nothing to convert
		}
		pkgState, err := o.Store.LoadState(name)
		if err != nil {
			dlog.Errorf(ctx, "skipping package %q: %v", name, err)
			continue
		}
		for _, filename := range state.GetPendingWheels(decl, pkgState) {
			tasks = append(tasks, task{pkgName: name, filename: filename})
		}
	}

	result, err := o.run(ctx, tasks)
	if err != nil {
		return nil, err
	}
	logPackageSummaries(ctx, result)
	return result, nil
}

// SyncPackage converts one package's pending wheels.
func (o *Orchestrator) SyncPackage(ctx context.Context, name string) (*SyncResult, error) {
	decl, err := o.Store.LoadDeclaration(name)
	if err != nil {
		return nil, err
	}
	pkgState, err := o.Store.LoadState(name)
	if err != nil {
		return nil, err
	}
	var tasks []task
	for _, filename := range state.GetPendingWheels(decl, pkgState) {
		tasks = append(tasks, task{pkgName: name, filename: filename})
	}
	result, err := o.run(ctx, tasks)
	if err != nil {
		return nil, err
	}
	logPackageSummaries(ctx, result)
	return result, nil
}

// logPackageSummaries emits one dlog.Infof line per package touched by a
// sync, counting converted vs. failed wheels, the way the original tool
// logs a per-package summary at the end of every sync regardless of
// verbosity.
func logPackageSummaries(ctx context.Context, result *SyncResult) {
	counts := map[string][2]int{} // package -> {converted, failed}
	order := []string{}
	bump := func(pkg string, idx int) {
		c, ok := counts[pkg]
		if !ok {
			order = append(order, pkg)
		}
		c[idx]++
		counts[pkg] = c
	}
	for _, tr := range result.Converted {
		bump(tr.Package, 0)
	}
	for _, tr := range result.Failed {
		bump(tr.Package, 1)
	}
	for _, pkg := range order {
		c := counts[pkg]
		dlog.Infof(ctx, "%s: converted=%d failed=%d", pkg, c[0], c[1])
	}
}

// run dispatches every task through the bounded worker pool; per-wheel
// operations (fetch URL, download, convert, persist state) are sequential,
// but tasks across wheels run with no ordering guarantee.
func (o *Orchestrator) run(ctx context.Context, tasks []task) (*SyncResult, error) {
	sem := semaphore.NewWeighted(o.Weight)
	var (
		mu     sync.Mutex
		result SyncResult
		wg     sync.WaitGroup
	)

	for _, t := range tasks {
		t := t
		if err := sem.Acquire(ctx, 1); err != nil {
			break // cancelled; in-flight tasks still complete below
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			tr := o.convertOne(ctx, t)

			mu.Lock()
			if tr.Err != nil {
				result.Failed = append(result.Failed, tr)
			} else {
				result.Converted = append(result.Converted, tr)
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	return &result, nil
}

// convertOne runs one wheel's full cycle: find its URL, download, convert,
// and persist the terminal state. Errors are scoped to this wheel and never
// propagate to the caller; they're recorded in the returned TaskResult and
// in the package's persisted state.
func (o *Orchestrator) convertOne(ctx context.Context, t task) TaskResult {
	wheelURL, release, err := o.findWheelURL(ctx, t.pkgName, t.filename)
	if err != nil {
		o.recordFailure(t, err)
		return TaskResult{Package: t.pkgName, Filename: t.filename, Err: err}
	}

	downloadCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()
	body, err := o.Client.DownloadWheel(downloadCtx, *release)
	if err != nil {
		o.recordFailure(t, err)
		return TaskResult{Package: t.pkgName, Filename: t.filename, Err: err}
	}
	defer body.Close()

	result, err := convert.Stream(ctx, body, t.filename, o.OutputDir)
	if err != nil {
		o.recordFailure(t, err)
		return TaskResult{Package: t.pkgName, Filename: t.filename, Err: err}
	}

	pkgState, err := o.Store.LoadState(t.pkgName)
	if err != nil {
		return TaskResult{Package: t.pkgName, Filename: t.filename, Err: err}
	}
	pkgState[t.filename] = &state.WheelState{
		Status:      state.StatusConverted,
		SHA256:      release.SHA256,
		UploadTime:  release.UploadTime.UTC().Format(time.RFC3339),
		ConvertedAt: nowRFC3339(),
		CondaFile:   filepath.Base(result.Path),
		Subdir:      result.Subdir,
		Dependencies: state.Dependencies{
			Required: result.Dependencies,
			Optional: result.ExtraDepends,
		},
		OriginalRequirements: result.OriginalRequirements,
	}
	if err := o.Store.SaveState(t.pkgName, pkgState); err != nil {
		return TaskResult{Package: t.pkgName, Filename: t.filename, Err: &cartwheelerr.StateCorruption{Package: t.pkgName, Err: err}}
	}

	return TaskResult{Package: t.pkgName, Filename: t.filename}
}

// findWheelURL matches filename within the package's constrained release
// set, per spec 4.H step 3.
func (o *Orchestrator) findWheelURL(ctx context.Context, pkgName, filename string) (string, *pypi.WheelInfo, error) {
	decl, err := o.Store.LoadDeclaration(pkgName)
	if err != nil {
		return "", nil, err
	}
	releases, err := o.Client.GetPackageReleases(ctx, pkgName)
	if err != nil {
		return "", nil, err
	}
	matched, err := pypi.GetMatchingVersions(releases, decl.VersionConstraint, 0)
	if err != nil {
		return "", nil, err
	}
	for _, r := range matched {
		for i, w := range r.Wheels {
			if w.Filename == filename {
				return w.URL, &r.Wheels[i], nil
			}
		}
	}
	return "", nil, fmt.Errorf("no release in constrained set carries wheel %q", filename)
}

func (o *Orchestrator) recordFailure(t task, cause error) {
	pkgState, err := o.Store.LoadState(t.pkgName)
	if err != nil {
		return // state file corrupt: halts sync of that package, per spec
	}
	pkgState[t.filename] = state.RecordFailure(pkgState[t.filename], cause.Error())
	_ = o.Store.SaveState(t.pkgName, pkgState) // best effort; a write failure here is itself an ArchiveWriteFailure-class condition
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// UpdateInfo is one entry in a CheckForUpdates report: a release not yet
// listed in the package's declaration.
type UpdateInfo struct {
	Package  string
	Version  string
	Filename string
}

// CheckForUpdates iterates every declared package's releases under its
// constraint, picks the best wheel per release, and reports any whose
// filename isn't already listed in the declaration.
func (o *Orchestrator) CheckForUpdates(ctx context.Context) ([]UpdateInfo, error) {
	names, err := o.Store.ListPackages()
	if err != nil {
		return nil, err
	}

	var updates []UpdateInfo
	for _, name := range names {
		decl, err := o.Store.LoadDeclaration(name)
		if err != nil {
			continue
		}
		if decl.CondaForge != "" {
			continue
		}
		releases, err := o.Client.GetPackageReleases(ctx, name)
		if err != nil {
			dlog.Errorf(ctx, "checking %q for updates: %v", name, err)
			continue
		}
		matched, err := pypi.GetMatchingVersions(releases, decl.VersionConstraint, 0)
		if err != nil {
			continue
		}
		known := make(map[string]bool, len(decl.Wheels))
		for _, w := range decl.Wheels {
			known[w.Filename] = true
		}
		for _, r := range matched {
			best := pypi.SelectBestWheel(r.Wheels)
			if best == nil || known[best.Filename] {
				continue
			}
			updates = append(updates, UpdateInfo{Package: name, Version: r.Version.String(), Filename: best.Filename})
		}
	}
	return updates, nil
}
