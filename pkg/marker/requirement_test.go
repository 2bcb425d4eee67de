package marker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequirement(t *testing.T) {
	req, err := ParseRequirement(`PySocks (!=1.5.7,>=1.5.6) ; extra == "socks"`)
	require.NoError(t, err)
	assert.Equal(t, "PySocks", req.Name)
	assert.Equal(t, `extra == "socks"`, req.Marker)
}

func TestParseRequirementWithExtras(t *testing.T) {
	req, err := ParseRequirement(`requests[socks,security]>=2.0`)
	require.NoError(t, err)
	assert.Equal(t, "requests", req.Name)
	assert.ElementsMatch(t, []string{"socks", "security"}, req.Extras)
	assert.Equal(t, "", req.Marker)
}

func TestConvertDependencies(t *testing.T) {
	deps, extras, err := ConvertDependencies([]string{
		"charset-normalizer (<4,>=2)",
		`PySocks (!=1.5.7,>=1.5.6) ; extra == "socks"`,
		`typing-extensions; python_version < '3.11'`,
	}, ">=3.7")
	require.NoError(t, err)

	assert.Contains(t, deps, "python >=3.7")
	foundCharset := false
	foundTyping := false
	for _, d := range deps {
		if d == "charset-normalizer (<4,>=2)" {
			foundCharset = true
		}
		if d == "typing-extensions; if python <3.11" {
			foundTyping = true
		}
	}
	assert.True(t, foundCharset)
	assert.True(t, foundTyping)

	require.Contains(t, extras, "socks")
	assert.Equal(t, []string{"pysocks (!=1.5.7,>=1.5.6)"}, extras["socks"])
}
