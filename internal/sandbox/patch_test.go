package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPackageJSONPatchesPreservesKeyOrder(t *testing.T) {
	input := `{
  "name": "demo",
  "dependencies": {
    "zeta": "^1.0.0",
    "alpha": "^2.0.0",
    "beta": "^3.0.0"
  },
  "devDependencies": {
    "jest": "^29.0.0"
  }
}
`
	patched, err := applyPatches(KindNodeJS, input, []DependencyPatch{
		{Name: "alpha", TargetVersion: "^5.0.0"},
		{Name: "jest", TargetVersion: "^30.0.0"},
	})
	require.NoError(t, err)

	zetaIdx := indexOf(patched, `"zeta"`)
	alphaIdx := indexOf(patched, `"alpha"`)
	betaIdx := indexOf(patched, `"beta"`)
	require.True(t, zetaIdx < alphaIdx && alphaIdx < betaIdx, "key order must be preserved: %s", patched)

	assert.Contains(t, patched, `"alpha": "^5.0.0"`)
	assert.Contains(t, patched, `"jest": "^30.0.0"`)
	assert.Contains(t, patched, `"zeta": "^1.0.0"`)
}

func TestApplyRequirementsPatchesPreservesCommentsAndOrder(t *testing.T) {
	input := "# core\nflask==2.0.0\n# testing\npytest==7.1.0\nrequests>=2.25.0\n"

	patched, err := applyPatches(KindPython, input, []DependencyPatch{
		{Name: "flask", TargetVersion: "3.0.0"},
		{Name: "pytest", TargetVersion: "8.0.0"},
	})
	require.NoError(t, err)

	assert.Contains(t, patched, "# core\nflask==3.0.0")
	assert.Contains(t, patched, "# testing\npytest==8.0.0")
	assert.Contains(t, patched, "requests>=2.25.0")
}

func TestApplyRequirementsPatchesSkipsUnknownNames(t *testing.T) {
	input := "django==4.0.0\n"
	patched, err := applyPatches(KindPython, input, []DependencyPatch{
		{Name: "flask", TargetVersion: "3.0.0"},
	})
	require.NoError(t, err)
	assert.Equal(t, input, patched)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
