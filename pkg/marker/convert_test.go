package marker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func convert(t *testing.T, markerText string) Outcome {
	t.Helper()
	tree, err := Parse(markerText)
	require.NoError(t, err)
	outcome, err := ToCondition(tree)
	require.NoError(t, err)
	return outcome
}

func TestToConditionPythonVersion(t *testing.T) {
	outcome := convert(t, `python_version < '3.11'`)
	assert.Equal(t, "python <3.11", outcome.Condition)
	assert.False(t, outcome.SkipDep)
	assert.False(t, outcome.IncludeAlways)
}

func TestToConditionSysPlatform(t *testing.T) {
	outcome := convert(t, `sys_platform == 'win32'`)
	assert.Equal(t, "__win", outcome.Condition)
}

func TestToConditionSysPlatformAndPlatformVersion(t *testing.T) {
	outcome := convert(t, `sys_platform == 'win32' and platform_version >= '10.0'`)
	assert.Equal(t, "__win >=10.0", outcome.Condition)
}

func TestToConditionPlatformVersionAloneFails(t *testing.T) {
	_, err := Parse(`platform_version >= '10.0'`)
	require.NoError(t, err)
	tree, _ := Parse(`platform_version >= '10.0'`)
	_, err = ToCondition(tree)
	assert.Error(t, err)
}

func TestToConditionPlatformMachineUnsupported(t *testing.T) {
	tree, err := Parse(`platform_machine == 'x86_64'`)
	require.NoError(t, err)
	_, err = ToCondition(tree)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "platform_machine")
}

func TestToConditionCPythonAlways(t *testing.T) {
	outcome := convert(t, `platform_python_implementation == 'CPython'`)
	assert.True(t, outcome.IncludeAlways)
	assert.False(t, outcome.SkipDep)
}

func TestToConditionCPythonSkip(t *testing.T) {
	outcome := convert(t, `platform_python_implementation != 'CPython'`)
	assert.True(t, outcome.SkipDep)
}
