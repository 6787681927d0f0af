package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasTestScriptDetectsRealCommand(t *testing.T) {
	assert.True(t, hasTestScript(`{"scripts":{"test":"jest"}}`))
}

func TestHasTestScriptRejectsNpmPlaceholder(t *testing.T) {
	assert.False(t, hasTestScript(`{"scripts":{"test":"echo \"Error: no test specified\" && exit 1"}}`))
}

func TestHasTestScriptHandlesMissingScripts(t *testing.T) {
	assert.False(t, hasTestScript(`{"name":"demo"}`))
}

func TestSummarizeTestOutputNodeJS(t *testing.T) {
	out := summarizeTestOutput(KindNodeJS, "  12 passing (1s)\n  2 failing\n")
	assert.Equal(t, "12 passing, 2 failing", out)
}

func TestSummarizeTestOutputPytestMixed(t *testing.T) {
	out := summarizeTestOutput(KindPython, "===== 4 passed, 1 failed in 0.31s =====")
	assert.Equal(t, "4 passed, 1 failed", out)
}

func TestSummarizeTestOutputPytestAllPassed(t *testing.T) {
	out := summarizeTestOutput(KindPython, "===== 7 passed in 0.12s =====")
	assert.Equal(t, "7 passed, 0 failed", out)
}

func TestDetectHasTestsPython(t *testing.T) {
	assert.True(t, detectHasTests(KindPython, "flask==2.0.0\npytest==7.1.0\n"))
	assert.False(t, detectHasTests(KindPython, "flask==2.0.0\n"))
}

func TestContainerNameForSanitizesJobID(t *testing.T) {
	assert.Equal(t, "ai-modernizer-job-123-abc", containerNameFor("Job 123/abc"))
}
