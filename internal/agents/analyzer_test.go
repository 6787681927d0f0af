package agents

import (
	"context"
	"testing"

	"github.com/artemis/ai-modernizer/internal/modelgateway"
	"github.com/artemis/ai-modernizer/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzerFallbackRecoverableForPeerConflict(t *testing.T) {
	mock := modelgateway.NewMockProvider("")
	gw := modelgateway.New(mock, nil, nil)
	a := NewAnalyzer(gw)

	outcome := sandbox.ValidationOutcome{InstallLog: "npm ERR! peer dep missing: react@^18.0.0"}
	analysis, err := a.Analyze(context.Background(), "job-test", outcome, MigrationPlan{})
	require.NoError(t, err)
	assert.Equal(t, CategoryPeerDependencyConflict, analysis.Category)
	assert.True(t, analysis.Recoverable)
	assert.NotEmpty(t, analysis.Suggestions)
}

func TestAnalyzerFallbackNotRecoverableForUnknown(t *testing.T) {
	mock := modelgateway.NewMockProvider("")
	gw := modelgateway.New(mock, nil, nil)
	a := NewAnalyzer(gw)

	outcome := sandbox.ValidationOutcome{InstallLog: "everything looks fine"}
	analysis, err := a.Analyze(context.Background(), "job-test", outcome, MigrationPlan{})
	require.NoError(t, err)
	assert.Equal(t, CategoryUnknown, analysis.Category)
	assert.False(t, analysis.Recoverable)
}
