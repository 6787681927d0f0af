package agents

import (
	"fmt"
	"context"
	"strings"

	"github.com/artemis/ai-modernizer/internal/sandbox"
	"github.com/artemis/ai-modernizer/internal/toolhost"
)

// Deployer writes the approved plan's manifest changes, opens a branch,
// commits, and requests a pull request through the Tool Host's code
// host client.
type Deployer struct {
	fs        *toolhost.FSClient
	codeHost  *toolhost.CodeHostClient
	clock     Clock
}

func NewDeployer(fs *toolhost.FSClient, codeHost *toolhost.CodeHostClient, clock Clock) *Deployer {
	if clock == nil {
		clock = RealClock
	}
	return &Deployer{fs: fs, codeHost: codeHost, clock: clock}
}

// Deploy writes the upgraded manifest, opens a feature branch, commits
// it, and opens a pull request summarizing the change.
func (d *Deployer) Deploy(ctx context.Context, state MigrationState) (DeploymentResult, error) {
	branchName := d.clock().UTC().Format("upgrade/dependencies-20060102-150405")

	manifestPath := manifestPathFor(state.ProjectKind)
	fullPath := state.ProjectPath + "/" + manifestPath

	content, err := d.fs.ReadFile(ctx, fullPath)
	if err != nil {
		return DeploymentResult{}, err
	}

	var patches []sandbox.DependencyPatch
	for _, dep := range state.Plan.Dependencies {
		if dep.Action == ActionUpgrade {
			patches = append(patches, sandbox.DependencyPatch{Name: dep.Name, CurrentVersion: dep.CurrentVersion, TargetVersion: dep.TargetVersion})
		}
	}

	patched, err := sandbox.ApplyManifestPatches(state.ProjectKind, content, patches)
	if err != nil {
		return DeploymentResult{}, err
	}

	if _, err := d.codeHost.CreateBranch(ctx, state.SourceBranch, branchName); err != nil {
		return DeploymentResult{}, err
	}

	if err := d.fs.WriteFile(ctx, fullPath, patched); err != nil {
		return DeploymentResult{}, err
	}

	commitMsg := buildCommitMessage(patches)
	sha, shaMock, err := d.codeHost.Commit(ctx, branchName, commitMsg, []string{manifestPath})
	if err != nil {
		return DeploymentResult{}, err
	}

	prBody := buildPRBody(state, patches)
	prTitle := fmt.Sprintf("chore(deps): upgrade %d dependencies", len(patches))
	url, prMock, err := d.codeHost.OpenPR(ctx, branchName, state.SourceBranch, prTitle, prBody)
	if err != nil {
		return DeploymentResult{}, err
	}

	return DeploymentResult{
		BranchName:    branchName,
		CommitSHA:     sha,
		PRURL:         url,
		ModifiedPaths: []string{manifestPath},
		Mock:          shaMock || prMock,
	}, nil
}

func buildCommitMessage(patches []sandbox.DependencyPatch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "chore(deps): upgrade %d dependencies\n\n", len(patches))
	for _, p := range patches {
		fmt.Fprintf(&b, "- %s %s→%s\n", p.Name, p.CurrentVersion, p.TargetVersion)
	}
	return b.String()
}

func buildPRBody(state MigrationState, patches []sandbox.DependencyPatch) string {
	var b strings.Builder
	b.WriteString("## Dependency upgrade\n\n")
	for _, p := range patches {
		fmt.Fprintf(&b, "- %s %s→%s\n", p.Name, p.CurrentVersion, p.TargetVersion)
	}
	if state.LatestOutcome != nil {
		o := state.LatestOutcome
		fmt.Fprintf(&b, "\n## Validation\n\nbuild_ok=%v install_ok=%v runtime_ok=%v health_ok=%v tests_ok=%v\n",
			o.BuildOK, o.InstallOK, o.RuntimeOK, o.HealthOK, o.TestsOK)
		if o.TestSummary != "" {
			fmt.Fprintf(&b, "test summary: %s\n", o.TestSummary)
		}
	}
	manifestPath := manifestPathFor(state.ProjectKind)
	fmt.Fprintf(&b, "\n## Rollback\n\n```\ngit checkout %s -- %s\n```\n", state.SourceBranch, manifestPath)
	return b.String()
}
