package pypi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeIndexResponse = `{
  "releases": {
    "1.0.0": [
      {"filename": "demo-1.0.0-py3-none-any.whl", "url": "https://files.example/demo-1.0.0-py3-none-any.whl", "packagetype": "bdist_wheel", "yanked": false, "upload_time_iso_8601": "2024-01-01T00:00:00Z"}
    ],
    "2.0.0": [
      {"filename": "demo-2.0.0-py3-none-any.whl", "url": "https://files.example/demo-2.0.0-py3-none-any.whl", "packagetype": "bdist_wheel", "yanked": false, "upload_time_iso_8601": "2024-06-01T00:00:00Z"}
    ],
    "3.0.0": [
      {"filename": "demo-3.0.0-py3-none-any.whl", "url": "https://files.example/demo-3.0.0-py3-none-any.whl", "packagetype": "bdist_wheel", "yanked": true, "upload_time_iso_8601": "2024-09-01T00:00:00Z"}
    ],
    "not-a-version": [
      {"filename": "demo-not-a-version.tar.gz", "url": "https://files.example/demo.tar.gz", "packagetype": "sdist", "yanked": false}
    ]
  }
}`

func parsedFixture(t *testing.T) []PyPIRelease {
	t.Helper()
	var parsed jsonResponse
	require.NoError(t, json.NewDecoder(strings.NewReader(fakeIndexResponse)).Decode(&parsed))
	return parseReleases(parsed)
}

func TestGetPackageReleasesParsesAndSorts(t *testing.T) {
	releases := parsedFixture(t)

	require.Len(t, releases, 3) // "not-a-version" is skipped
	assert.Equal(t, "3.0.0", releases[0].Version.String())
	assert.True(t, releases[0].Yanked)
	assert.Equal(t, "1.0.0", releases[2].Version.String())
}

func TestGetMatchingVersionsExcludesYankedAndFiltersBySpecifier(t *testing.T) {
	releases := parsedFixture(t)

	matched, err := GetMatchingVersions(releases, ">=1.0.0", 0)
	require.NoError(t, err)
	require.Len(t, matched, 2) // 3.0.0 is yanked, excluded
	for _, r := range matched {
		assert.False(t, r.Yanked)
	}
}

// TestGetPackageReleasesFetchesFromServer exercises the real
// GetPackageReleases code path end to end, with IndexURLTemplate redirected
// at a local server instead of pypi.org.
func TestGetPackageReleasesFetchesFromServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fakeIndexResponse))
	}))
	defer server.Close()

	client := &Client{HTTP: server.Client(), IndexURLTemplate: server.URL + "/%s"}
	releases, err := client.GetPackageReleases(context.Background(), "demo")
	require.NoError(t, err)
	require.Len(t, releases, 3)
	assert.Equal(t, "3.0.0", releases[0].Version.String())
}

func TestSelectBestWheelPrefersPureWheel(t *testing.T) {
	wheels := []WheelInfo{
		{Filename: "demo-1.0.0-cp311-cp311-manylinux_2_17_x86_64.whl"},
		{Filename: "demo-1.0.0-py3-none-any.whl"},
	}
	best := SelectBestWheel(wheels)
	require.NotNil(t, best)
	assert.Equal(t, "demo-1.0.0-py3-none-any.whl", best.Filename)
}

func TestSelectBestWheelNoWheels(t *testing.T) {
	assert.Nil(t, SelectBestWheel(nil))
}
