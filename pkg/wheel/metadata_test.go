package wheel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMetadata = `Metadata-Version: 2.1
Name: Requests
Version: 2.31.0
Summary: Python HTTP for Humans.
License: Apache 2.0
Requires-Python: >=3.7
Requires-Dist: charset-normalizer (<4,>=2)
Requires-Dist: certifi (>=2017.4.17)
Requires-Dist: PySocks (!=1.5.7,>=1.5.6) ; extra == "socks"
Project-URL: Documentation, https://requests.readthedocs.io

A long description.
`

const sampleWheel = `Wheel-Version: 1.0
Generator: flit 3.9.0
Root-Is-Purelib: true
Tag: py3-none-any
`

const sampleEntryPoints = `[console_scripts]
requests-cli = requests.cli:main
`

func TestParseMetadata(t *testing.T) {
	m, err := ParseMetadata([]byte(sampleMetadata), []byte(sampleWheel), []byte(sampleEntryPoints), "requests-2.31.0-py3-none-any.whl")
	require.NoError(t, err)

	assert.Equal(t, "requests", m.Name)
	assert.Equal(t, "2.31.0", m.Version)
	assert.Equal(t, ">=3.7", m.RequiresPython)
	assert.Equal(t, "A long description.", m.Description)
	assert.Equal(t, "https://requests.readthedocs.io", m.DocURL)
	assert.True(t, m.IsPure())
	assert.Equal(t, "noarch", m.Subdir())
	assert.Len(t, m.Dependencies, 3)
	require.Len(t, m.ConsoleScripts, 1)
	assert.Equal(t, "requests-cli = requests.cli:main", m.ConsoleScripts[0])
}

func TestMetadataSubdirPlatformWheel(t *testing.T) {
	m := Metadata{Name: "numpy"}
	m.Tag.ABI = "cp311"
	m.Tag.Platform = "manylinux_2_17_x86_64"
	assert.Equal(t, "linux-64", m.Subdir())
}

func TestParseMetadataMissingWheelFallsBackToFilename(t *testing.T) {
	noTagWheel := []byte("Wheel-Version: 1.0\nRoot-Is-Purelib: true\n")
	m, err := ParseMetadata([]byte(sampleMetadata), noTagWheel, nil, "requests-2.31.0-py3-none-any.whl")
	require.NoError(t, err)
	assert.True(t, m.IsPure())
}
