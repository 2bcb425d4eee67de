package wheel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cart-wheel/cartwheel/pkg/python/pep425"
)

func TestParseFilename(t *testing.T) {
	f, err := ParseFilename("numpy-1.26.0-cp311-cp311-manylinux_2_17_x86_64.whl")
	require.NoError(t, err)
	assert.Equal(t, "numpy", f.Distribution)
	assert.Equal(t, "1.26.0", f.Version)
	assert.Equal(t, "", f.BuildTag)
	assert.Equal(t, pep425.Tag{Python: "cp311", ABI: "cp311", Platform: "manylinux_2_17_x86_64"}, f.Tag)
	assert.False(t, IsPure(f.Tag))
}

func TestParseFilenamePureWithBuildTag(t *testing.T) {
	f, err := ParseFilename("six-1.16.0-1-py2.py3-none-any.whl")
	require.NoError(t, err)
	assert.Equal(t, "1", f.BuildTag)
	assert.True(t, IsPure(f.Tag))
}

func TestParseFilenameInvalid(t *testing.T) {
	_, err := ParseFilename("not-a-wheel.zip")
	assert.Error(t, err)
}

func TestGenerateFilenameRoundTrip(t *testing.T) {
	names := []string{
		"numpy-1.26.0-cp311-cp311-manylinux_2_17_x86_64.whl",
		"six-1.16.0-py2.py3-none-any.whl",
	}
	for _, name := range names {
		f, err := ParseFilename(name)
		require.NoError(t, err)
		assert.Equal(t, name, GenerateFilename(*f))
	}
}
