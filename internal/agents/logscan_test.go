package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanLogsTypeErrorBeatsPeerDepSubstring(t *testing.T) {
	installLog := "TypeError: x.peerDependencies is not a function"
	category, fragments := scanLogs(installLog, "")
	assert.Equal(t, CategoryAPIBreakingChange, category)
	assert.NotEmpty(t, fragments)
}

func TestScanLogsPeerDependencyConflictRequiresExactPhrase(t *testing.T) {
	category, _ := scanLogs("npm ERR! peer dep missing: react@^18.0.0", "")
	assert.Equal(t, CategoryPeerDependencyConflict, category)
}

func TestScanLogsBarePeerSubstringDoesNotMatchPeerDependency(t *testing.T) {
	category, _ := scanLogs("npm ERR! could not resolve peer for package", "")
	assert.NotEqual(t, CategoryPeerDependencyConflict, category)
}

func TestScanLogsMissingDependency(t *testing.T) {
	category, _ := scanLogs("Error: cannot find module 'left-pad'", "")
	assert.Equal(t, CategoryMissingDependency, category)

	category, _ = scanLogs("ModuleNotFoundError: No module named 'flask'", "")
	assert.Equal(t, CategoryMissingDependency, category)
}

func TestScanLogsConfigurationErrorViaKeyword(t *testing.T) {
	category, _ := scanLogs("npm ERR! missing config value DATABASE_URL in .env", "")
	assert.Equal(t, CategoryConfigurationError, category)
}

func TestScanLogsGenericInstallFailure(t *testing.T) {
	category, _ := scanLogs("npm ERR! network request failed", "")
	assert.Equal(t, CategoryInstallFailure, category)
}

func TestScanLogsStartupFailureFromTraceback(t *testing.T) {
	category, _ := scanLogs("", "Traceback (most recent call last):\n  File app.py")
	assert.Equal(t, CategoryStartupFailure, category)
}

func TestScanLogsUnknownWhenNothingMatches(t *testing.T) {
	category, fragments := scanLogs("all good here", "still fine")
	assert.Equal(t, CategoryUnknown, category)
	assert.Empty(t, fragments)
}
