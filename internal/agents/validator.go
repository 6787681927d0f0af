package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/artemis/ai-modernizer/internal/apperrors"
	"github.com/artemis/ai-modernizer/internal/modelgateway"
	"github.com/artemis/ai-modernizer/internal/sandbox"
	"github.com/artemis/ai-modernizer/internal/toolhost"
)

// Validator runs a MigrationPlan through the Sandbox Driver and asks the
// model to judge the outcome.
type Validator struct {
	fs      *toolhost.FSClient
	driver  *sandbox.Driver
	gateway *modelgateway.Gateway
}

func NewValidator(fs *toolhost.FSClient, driver *sandbox.Driver, gateway *modelgateway.Gateway) *Validator {
	return &Validator{fs: fs, driver: driver, gateway: gateway}
}

// Validate delegates to the Sandbox Driver unless plan has zero
// upgrades (B1), in which case it short-circuits without creating a
// container.
func (v *Validator) Validate(ctx context.Context, jobID, projectPath string, kind sandbox.ProjectKind, plan MigrationPlan) (sandbox.ValidationOutcome, Verdict, error) {
	if !plan.AnyUpgrades() {
		return sandbox.ValidationOutcome{
			Ran:              false,
			BuildOK:          true,
			InstallOK:        true,
			RuntimeOK:        true,
			HealthOK:         true,
			TestsOK:          true,
			AggregateSuccess: true,
		}, VerdictProceed, nil
	}

	if v.driver == nil {
		return sandbox.ValidationOutcome{}, "", apperrors.New(apperrors.KindSandboxUnavailable, "docker is unreachable, sandbox validation is unavailable")
	}

	manifestPath := manifestPathFor(kind)
	content, err := v.fs.ReadFile(ctx, projectPath+"/"+manifestPath)
	if err != nil {
		return sandbox.ValidationOutcome{}, "", err
	}

	var patches []sandbox.DependencyPatch
	for _, d := range plan.Dependencies {
		if d.Action == ActionUpgrade {
			patches = append(patches, sandbox.DependencyPatch{Name: d.Name, CurrentVersion: d.CurrentVersion, TargetVersion: d.TargetVersion})
		}
	}

	req := sandbox.ValidateRequest{
		JobID:      jobID,
		ProjectDir: projectPath,
		Kind:       kind,
	}

	outcome, err := v.driver.Validate(ctx, req, content, patches)
	if err != nil {
		return outcome, "", err
	}

	verdict := v.judge(ctx, jobID, outcome)
	return outcome, verdict, nil
}

func (v *Validator) judge(ctx context.Context, jobID string, outcome sandbox.ValidationOutcome) Verdict {
	userPrompt := buildValidatorUserPrompt(outcome)
	completion, err := v.gateway.Complete(ctx, jobID, "validator", validatorSystemPrompt, userPrompt)
	if err != nil {
		return mechanicalVerdict(outcome)
	}

	parsed := strings.ToLower(strings.TrimSpace(completion.Text))
	switch {
	case strings.Contains(parsed, "rollback"):
		return VerdictRollback
	case strings.Contains(parsed, "proceed"):
		return VerdictProceed
	case strings.Contains(parsed, "fix"):
		return VerdictFix
	default:
		return mechanicalVerdict(outcome)
	}
}

// mechanicalVerdict is the deterministic fallback used when the model
// call errors or returns something unparseable.
func mechanicalVerdict(outcome sandbox.ValidationOutcome) Verdict {
	if outcome.AggregateSuccess {
		return VerdictProceed
	}
	return VerdictFix
}

const validatorSystemPrompt = `You are a release validator. Given a validation ` +
	`outcome for a dependency upgrade, respond with a single word: proceed, ` +
	`fix, or rollback, followed by a short reason.`

func buildValidatorUserPrompt(outcome sandbox.ValidationOutcome) string {
	return fmt.Sprintf(
		"ran=%v build_ok=%v install_ok=%v runtime_ok=%v health_ok=%v tests_ok=%v\ninstall_log:\n%s\nruntime_log:\n%s\ntest_summary:%s\n",
		outcome.Ran, outcome.BuildOK, outcome.InstallOK, outcome.RuntimeOK, outcome.HealthOK, outcome.TestsOK,
		truncate(outcome.InstallLog, 2000), truncate(outcome.RuntimeLog, 2000), outcome.TestSummary,
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
