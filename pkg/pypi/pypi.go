// Package pypi is a client for PyPI's JSON API, used to discover wheel
// releases and download them. It deliberately replaces the teacher's
// HTML-based Simple-index client: this spec's upstream is PyPI itself, and
// PyPI's JSON API gives structured release/file metadata directly instead
// of requiring HTML scraping.
package pypi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cart-wheel/cartwheel/pkg/cartwheelerr"
	"github.com/cart-wheel/cartwheel/pkg/python/pep440"
	"github.com/datawire/dlib/dlog"
)

// WheelInfo describes one file attached to a PyPI release.
type WheelInfo struct {
	Filename    string
	URL         string
	PackageType string // "bdist_wheel", "sdist", etc.
	Yanked      bool
	UploadTime  time.Time
	SHA256      string
}

// PyPIRelease is one version of a package as reported by the JSON API,
// filtered down to the wheel files it carries.
type PyPIRelease struct {
	Version    pep440.Version
	Wheels     []WheelInfo
	UploadTime time.Time
	Yanked     bool
}

// Error wraps a non-2xx PyPI response.
type Error struct {
	Package    string
	StatusCode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("pypi: %s: unexpected status %d", e.Package, e.StatusCode)
}

const indexURLTemplate = "https://pypi.org/pypi/%s/json"

type jsonFile struct {
	Filename          string `json:"filename"`
	URL               string `json:"url"`
	PackageType       string `json:"packagetype"`
	Yanked            bool   `json:"yanked"`
	UploadTimeISO8601 string `json:"upload_time_iso_8601"`
	Digests           struct {
		SHA256 string `json:"sha256"`
	} `json:"digests"`
}

type jsonResponse struct {
	Releases map[string][]jsonFile `json:"releases"`
}

// Client fetches package metadata and wheel files from PyPI.
type Client struct {
	HTTP *http.Client

	// IndexURLTemplate is a %s-templated URL for the JSON release index.
	// Overridable so tests can point it at a local server instead of
	// pypi.org.
	IndexURLTemplate string
}

// NewClient builds a Client using a plain net/http.Client. PyPI responses
// change over time (new releases appear), so response caching is out of
// scope; the teacher's SQLite-backed caching client has no role here.
func NewClient() *Client {
	return &Client{
		HTTP:             &http.Client{Timeout: 60 * time.Second},
		IndexURLTemplate: indexURLTemplate,
	}
}

// GetPackageReleases fetches every release of a package, skipping versions
// that fail to parse as PEP 440 (each logged as a warning), sorted
// descending by version.
func (c *Client) GetPackageReleases(ctx context.Context, name string) ([]PyPIRelease, error) {
	url := fmt.Sprintf(c.IndexURLTemplate, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &cartwheelerr.SourceUnavailable{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &cartwheelerr.SourceUnavailable{URL: url, Err: &Error{Package: name, StatusCode: resp.StatusCode}}
	}

	var parsed jsonResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding pypi response for %s: %w", name, err)
	}
	for rawVersion := range parsed.Releases {
		if _, err := pep440.ParseVersion(rawVersion); err != nil {
			dlog.Warnf(ctx, "pypi: %s: skipping non-PEP-440 version %q", name, rawVersion)
		}
	}
	return parseReleases(parsed), nil
}

// parseReleases turns the raw JSON API shape into sorted PyPIRelease
// records, skipping versions that fail PEP 440 parsing and releases that
// carry no wheel file.
func parseReleases(parsed jsonResponse) []PyPIRelease {
	releases := make([]PyPIRelease, 0, len(parsed.Releases))
	for rawVersion, files := range parsed.Releases {
		ver, err := pep440.ParseVersion(rawVersion)
		if err != nil {
			continue // skip non-PEP-440 versions, as the original implementation does
		}
		if len(files) == 0 {
			continue
		}
		release := PyPIRelease{Version: *ver}
		for _, f := range files {
			uploadTime, _ := time.Parse(time.RFC3339, f.UploadTimeISO8601)
			if f.PackageType == "bdist_wheel" {
				release.Wheels = append(release.Wheels, WheelInfo{
					Filename:    f.Filename,
					URL:         f.URL,
					PackageType: f.PackageType,
					Yanked:      f.Yanked,
					UploadTime:  uploadTime,
					SHA256:      f.Digests.SHA256,
				})
			}
			if f.Yanked {
				release.Yanked = true
			}
			if uploadTime.After(release.UploadTime) {
				release.UploadTime = uploadTime
			}
		}
		if len(release.Wheels) == 0 {
			continue
		}
		releases = append(releases, release)
	}

	sort.Slice(releases, func(i, j int) bool {
		return releases[i].Version.Cmp(releases[j].Version) > 0
	})
	return releases
}

// GetMatchingVersions filters releases by a PEP 440 specifier, excludes
// yanked releases, and caps the result at maxVersions (0 means unlimited).
func GetMatchingVersions(releases []PyPIRelease, specifier string, maxVersions int) ([]PyPIRelease, error) {
	spec, err := pep440.ParseSpecifier(specifier)
	if err != nil {
		return nil, fmt.Errorf("parsing version specifier %q: %w", specifier, err)
	}
	var matched []PyPIRelease
	for _, r := range releases {
		if r.Yanked {
			continue
		}
		if !spec.Match(r.Version) {
			continue
		}
		matched = append(matched, r)
		if maxVersions > 0 && len(matched) >= maxVersions {
			break
		}
	}
	return matched, nil
}

// DownloadWheel streams a wheel file's bytes from PyPI's CDN.
func (c *Client) DownloadWheel(ctx context.Context, w WheelInfo) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &cartwheelerr.SourceUnavailable{URL: w.URL, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &cartwheelerr.SourceUnavailable{URL: w.URL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return resp.Body, nil
}

// FetchWheelMetadata fetches a wheel's PEP 658 sidecar METADATA file
// (<wheel-url>.metadata), when the index advertises one, avoiding a full
// wheel download just to read its dependency list.
func (c *Client) FetchWheelMetadata(ctx context.Context, w WheelInfo) ([]byte, error) {
	url := w.URL + ".metadata"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &cartwheelerr.SourceUnavailable{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &cartwheelerr.SourceUnavailable{URL: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return io.ReadAll(resp.Body)
}

// SelectBestWheel prefers a pure wheel (py3-none-any, then py2.py3-none-any)
// over a platform-specific one, matching the original implementation's
// preference order; returns nil if no wheel file is attached to the release.
func SelectBestWheel(wheels []WheelInfo) *WheelInfo {
	if len(wheels) == 0 {
		return nil
	}
	preference := []string{"py3-none-any", "py2.py3-none-any"}
	for _, tag := range preference {
		for i, w := range wheels {
			if strings.Contains(w.Filename, tag) {
				return &wheels[i]
			}
		}
	}
	return &wheels[0]
}
