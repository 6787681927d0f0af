package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/artemis/ai-modernizer/internal/apperrors"
	"github.com/artemis/ai-modernizer/internal/modelgateway"
	"github.com/artemis/ai-modernizer/internal/registryprobe"
	"github.com/artemis/ai-modernizer/internal/sandbox"
	"github.com/artemis/ai-modernizer/internal/toolhost"
)

// Planner reads a project's manifest, probes the package registry for
// current latest versions, and asks the model for a structured upgrade
// plan.
type Planner struct {
	fs      *toolhost.FSClient
	probe   *registryprobe.Probe
	gateway *modelgateway.Gateway
}

func NewPlanner(fs *toolhost.FSClient, probe *registryprobe.Probe, gateway *modelgateway.Gateway) *Planner {
	return &Planner{fs: fs, probe: probe, gateway: gateway}
}

func registryKindFor(kind sandbox.ProjectKind) registryprobe.ProjectKind {
	switch kind {
	case sandbox.KindNodeJS:
		return registryprobe.KindNodeJS
	case sandbox.KindPython:
		return registryprobe.KindPython
	default:
		return registryprobe.ProjectKind(kind)
	}
}

// Plan builds a MigrationPlan for the project at projectPath.
func (p *Planner) Plan(ctx context.Context, jobID, projectPath string, kind sandbox.ProjectKind) (MigrationPlan, string, error) {
	manifestPath := manifestPathFor(kind)
	if manifestPath == "" {
		return MigrationPlan{}, "", apperrors.New(apperrors.KindPlanInputMissing, fmt.Sprintf("unsupported project kind %q", kind))
	}

	fullPath := projectPath + "/" + manifestPath
	content, err := p.fs.ReadFile(ctx, fullPath)
	if err != nil {
		return MigrationPlan{}, "", apperrors.Wrap(apperrors.KindPlanInputMissing, "failed to read manifest", err)
	}

	deps, err := parseManifest(kind, content)
	if err != nil {
		return MigrationPlan{}, "", apperrors.Wrap(apperrors.KindPlanInputMissing, "failed to parse manifest", err)
	}
	if len(deps) == 0 {
		return MigrationPlan{}, "", apperrors.New(apperrors.KindPlanInputMissing, "manifest declares no dependencies")
	}

	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = d.Name
	}
	sort.Strings(names)

	latest := p.probe.Lookup(ctx, registryKindFor(kind), names)

	versions := manifestVersionMap(deps)

	systemPrompt := plannerSystemPrompt
	userPrompt := buildPlannerUserPrompt(kind, deps, latest)

	completion, err := p.gateway.Complete(ctx, jobID, "planner", systemPrompt, userPrompt)
	if err != nil {
		return MigrationPlan{}, content, apperrors.Wrap(apperrors.KindModelUnavailable, "planner model call failed", err)
	}

	plan, err := normalizePlanResponse(completion.Text, versions)
	if err != nil {
		return MigrationPlan{}, content, err
	}

	return plan, content, nil
}

const plannerSystemPrompt = `You are a dependency upgrade planner. Given a list of ` +
	`declared dependencies and their latest known registry versions, ` +
	`produce a JSON object with a "dependencies" field (array or object ` +
	`keyed by package name) where each entry has current, target, action ` +
	`(upgrade, keep, or remove), risk (low, medium, or high), and ` +
	`breaking_changes (a list of short strings). Optionally include a ` +
	`"phases" field grouping dependency names into upgrade phases. Respond ` +
	`with JSON only.`

func buildPlannerUserPrompt(kind sandbox.ProjectKind, deps []enumeratedDependency, latest map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project kind: %s\n", kind)
	b.WriteString("Dependencies (name, current version, latest registry version):\n")
	for _, d := range deps {
		devTag := ""
		if d.Dev {
			devTag = " (dev)"
		}
		fmt.Fprintf(&b, "- %s%s: current=%s latest=%s\n", d.Name, devTag, d.CurrentVersion, latest[d.Name])
	}
	return b.String()
}
