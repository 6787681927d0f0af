package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePlanResponseAcceptsArrayContainer(t *testing.T) {
	raw := `{"dependencies":[{"name":"left-pad","current_version":"9.9.9","target":"2.0.0","risk":"major"}]}`
	plan, err := normalizePlanResponse(raw, map[string]string{"left-pad": "1.0.0"})
	require.NoError(t, err)
	require.Len(t, plan.Dependencies, 1)

	dep := plan.Dependencies[0]
	assert.Equal(t, "1.0.0", dep.CurrentVersion, "manifest-verbatim version must win even though the model said 9.9.9")
	assert.Equal(t, "2.0.0", dep.TargetVersion)
	assert.Equal(t, RiskHigh, dep.Risk)
	assert.Equal(t, ActionUpgrade, dep.Action)
}

func TestNormalizePlanResponseAcceptsObjectContainer(t *testing.T) {
	raw := `{"dependencies":{"express":{"currentVersion":"4.0.0","targetVersion":"4.0.0","risk_level":"minor"}}}`
	plan, err := normalizePlanResponse(raw, map[string]string{"express": "4.0.0"})
	require.NoError(t, err)
	require.Len(t, plan.Dependencies, 1)
	assert.Equal(t, "express", plan.Dependencies[0].Name)
	assert.Equal(t, RiskMedium, plan.Dependencies[0].Risk)
	assert.Equal(t, ActionKeep, plan.Dependencies[0].Action)
}

func TestNormalizePlanResponseParsesSiblingPhaseKeys(t *testing.T) {
	raw := `{"dependencies":[{"name":"a","target":"2.0.0"}],"phase1":["a"],"phase2":["b"]}`
	plan, err := normalizePlanResponse(raw, map[string]string{"a": "1.0.0"})
	require.NoError(t, err)
	require.Len(t, plan.Phases, 2)
	assert.Equal(t, []string{"a"}, plan.Phases[0])
	assert.Equal(t, []string{"b"}, plan.Phases[1])
}

func TestNormalizePlanResponseRejectsNonJSON(t *testing.T) {
	_, err := normalizePlanResponse("not json at all", nil)
	require.Error(t, err)
}

func TestCoerceRiskKeywordFallback(t *testing.T) {
	assert.Equal(t, RiskHigh, coerceRisk("breaking change"))
	assert.Equal(t, RiskMedium, coerceRisk("minor bump"))
	assert.Equal(t, RiskLow, coerceRisk("cosmetic"))
	assert.Equal(t, RiskHigh, coerceRisk("HIGH"))
}

func TestOverallRiskTakesMaximum(t *testing.T) {
	deps := []Dependency{{Risk: RiskLow}, {Risk: RiskHigh}, {Risk: RiskMedium}}
	assert.Equal(t, RiskHigh, overallRisk(deps))
}

func TestPlanAnyUpgradesFalseWhenNoneUpgrade(t *testing.T) {
	plan := MigrationPlan{Dependencies: []Dependency{{Action: ActionKeep}, {Action: ActionRemove}}}
	assert.False(t, plan.AnyUpgrades())
}
