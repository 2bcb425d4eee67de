// Package closure implements the dependency-closure fetcher: a
// bounded-concurrency crawl over PyPI that, starting from a root package,
// resolves version constraints and transitively enumerates the dependency
// graph, deduplicating nodes and collecting ones the operator must resolve
// by hand.
package closure

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/textproto"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/cart-wheel/cartwheel/pkg/marker"
	"github.com/cart-wheel/cartwheel/pkg/pypi"
	"github.com/cart-wheel/cartwheel/pkg/wheel"
)

// defaultWeight is the crawl's default fetch concurrency bound.
const defaultWeight = 50

const mappingURLTemplate = "https://conda-mapping.prefix.dev/pypi-to-conda-v1/conda-forge/%s.json"

// PackageInfo is the resolved record for one successfully crawled node.
type PackageInfo struct {
	Name       string
	Constraint string
	RequiredBy string
	Releases   []pypi.PyPIRelease
	Required   []string // raw Requires-Dist entries with no extra marker
	OptionalBy map[string][]string
}

// UnresolvedNode is emitted into the error bucket for the operator to
// resolve by hand: upstream failed and no cross-ecosystem mapping exists.
type UnresolvedNode struct {
	Name       string
	Constraint string
	RequiredBy string
	Err        error
}

// MappingFallback records a node whose upstream fetch failed but for which
// the cross-ecosystem mapping named a conda-forge package; its dependency
// subtree is not crawled, since the external ecosystem takes over from here.
type MappingFallback struct {
	Name       string
	CondaForge string
}

// Result is everything the crawl produced.
type Result struct {
	Resolved   []PackageInfo
	Fallbacks  []MappingFallback
	Unresolved []UnresolvedNode
}

type task struct {
	name       string
	constraint string
	requiredBy string
}

// Fetcher crawls PyPI's dependency graph from a root package.
type Fetcher struct {
	Client      *pypi.Client
	MaxVersions int
	Weight      int64
	HTTP        *http.Client

	// MappingURLTemplate is a %s-templated URL for the cross-ecosystem
	// mapping lookup. Overridable so tests can point it at a local server
	// instead of the real prefix.dev endpoint.
	MappingURLTemplate string
}

// NewFetcher builds a Fetcher with the spec's default concurrency bound.
func NewFetcher(client *pypi.Client, maxVersions int) *Fetcher {
	return &Fetcher{
		Client:             client,
		MaxVersions:        maxVersions,
		Weight:             defaultWeight,
		HTTP:               &http.Client{Timeout: 30 * time.Second},
		MappingURLTemplate: mappingURLTemplate,
	}
}

// Crawl resolves the transitive dependency closure of (rootName, rootConstraint).
func (f *Fetcher) Crawl(ctx context.Context, rootName, rootConstraint string) (*Result, error) {
	sem := semaphore.NewWeighted(f.Weight)

	var (
		mu         sync.Mutex
		visited    = map[string]bool{}
		resolved   []PackageInfo
		fallbacks  []MappingFallback
		unresolved []UnresolvedNode
		wg         sync.WaitGroup
	)

	var enqueue func(t task)
	enqueue = func(t task) {
		name := wheel.Canonicalize(t.name)
		mu.Lock()
		if visited[name] {
			mu.Unlock()
			return
		}
		visited[name] = true
		mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			info, fallback, unresolvedNode := f.visit(ctx, name, t.constraint, t.requiredBy)

			mu.Lock()
			switch {
			case info != nil:
				resolved = append(resolved, *info)
			case fallback != nil:
				fallbacks = append(fallbacks, *fallback)
			case unresolvedNode != nil:
				unresolved = append(unresolved, *unresolvedNode)
			}
			mu.Unlock()

			if info == nil {
				return
			}
			for _, raw := range info.Required {
				if req, err := marker.ParseRequirement(raw); err == nil {
					enqueue(task{name: req.Name, constraint: req.Specifier, requiredBy: name})
				}
			}
			for _, deps := range info.OptionalBy {
				for _, raw := range deps {
					if req, err := marker.ParseRequirement(raw); err == nil {
						enqueue(task{name: req.Name, constraint: req.Specifier, requiredBy: name})
					}
				}
			}
		}()
	}

	enqueue(task{name: rootName, constraint: rootConstraint, requiredBy: ""})
	wg.Wait()

	return &Result{Resolved: resolved, Fallbacks: fallbacks, Unresolved: unresolved}, nil
}

// visit resolves a single node: the release list is fetched in parallel with
// the cross-ecosystem mapping lookup; the newest matching release's metadata
// is read afterwards, per spec 4.F.
func (f *Fetcher) visit(ctx context.Context, name, constraint, requiredBy string) (*PackageInfo, *MappingFallback, *UnresolvedNode) {
	var (
		releases    []pypi.PyPIRelease
		releasesErr error
		mapping     string
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		all, err := f.Client.GetPackageReleases(ctx, name)
		if err != nil {
			releasesErr = err
			return
		}
		matched, err := pypi.GetMatchingVersions(all, constraint, f.MaxVersions)
		if err != nil {
			releasesErr = err
			return
		}
		releases = matched
	}()
	go func() {
		defer wg.Done()
		mapping = f.lookupMapping(ctx, name)
	}()
	wg.Wait()

	if releasesErr != nil || len(releases) == 0 {
		if mapping != "" {
			return nil, &MappingFallback{Name: name, CondaForge: mapping}, nil
		}
		err := releasesErr
		if err == nil {
			err = fmt.Errorf("no releases matched constraint %q", constraint)
		}
		return nil, nil, &UnresolvedNode{Name: name, Constraint: constraint, RequiredBy: requiredBy, Err: err}
	}

	required, optionalByExtra, err := f.gatherRequirements(ctx, releases)
	if err != nil {
		if mapping != "" {
			return nil, &MappingFallback{Name: name, CondaForge: mapping}, nil
		}
		return nil, nil, &UnresolvedNode{Name: name, Constraint: constraint, RequiredBy: requiredBy, Err: err}
	}

	return &PackageInfo{
		Name:       name,
		Constraint: constraint,
		RequiredBy: requiredBy,
		Releases:   releases,
		Required:   required,
		OptionalBy: optionalByExtra,
	}, nil, nil
}

// gatherRequirements fetches pre-published metadata for the best wheel of
// the newest matching release and splits its Requires-Dist entries into
// unconditional requirements and extras-gated ones.
func (f *Fetcher) gatherRequirements(ctx context.Context, releases []pypi.PyPIRelease) ([]string, map[string][]string, error) {
	if len(releases) == 0 {
		return nil, nil, fmt.Errorf("no releases to inspect")
	}
	best := pypi.SelectBestWheel(releases[0].Wheels)
	if best == nil {
		return nil, nil, fmt.Errorf("release %s has no wheel files", releases[0].Version.String())
	}
	content, err := f.Client.FetchWheelMetadata(ctx, *best)
	if err != nil {
		return nil, nil, err
	}

	rawDeps, err := parseRequiresDist(content)
	if err != nil {
		return nil, nil, err
	}

	var required []string
	optionalByExtra := map[string][]string{}
	for _, raw := range rawDeps {
		req, perr := marker.ParseRequirement(raw)
		if perr != nil {
			continue
		}
		if req.Marker != "" {
			if extra, _, ok := marker.ExtractExtra(req.Marker); ok {
				optionalByExtra[extra] = append(optionalByExtra[extra], raw)
				continue
			}
		}
		required = append(required, raw)
	}
	return required, optionalByExtra, nil
}

func (f *Fetcher) lookupMapping(ctx context.Context, name string) string {
	url := fmt.Sprintf(f.MappingURLTemplate, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	var payload struct {
		CondaForge []string `json:"conda-forge"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ""
	}
	if len(payload.CondaForge) == 0 {
		return ""
	}
	return payload.CondaForge[0]
}

// parseRequiresDist extracts the Requires-Dist values from a METADATA blob
// fetched via PEP 658, without needing the rest of the wheel.
func parseRequiresDist(content []byte) ([]string, error) {
	reader := textproto.NewReader(bufio.NewReader(bytes.NewReader(content)))
	header, err := reader.ReadMIMEHeader()
	if err != nil && len(header) == 0 {
		return nil, fmt.Errorf("parsing PEP 658 metadata: %w", err)
	}
	return header.Values("Requires-Dist"), nil
}
