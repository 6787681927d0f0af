package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/artemis/ai-modernizer/internal/modelgateway"
	"github.com/artemis/ai-modernizer/internal/sandbox"
)

// Analyzer turns a failed ValidationOutcome into a categorized root
// cause and ranked fix suggestions. It never mutates the plan itself —
// applying a suggestion is the Workflow Engine's job.
type Analyzer struct {
	gateway *modelgateway.Gateway
}

func NewAnalyzer(gateway *modelgateway.Gateway) *Analyzer {
	return &Analyzer{gateway: gateway}
}

func (a *Analyzer) Analyze(ctx context.Context, jobID string, outcome sandbox.ValidationOutcome, plan MigrationPlan) (ErrorAnalysis, error) {
	category, fragments := scanLogs(outcome.InstallLog, outcome.RuntimeLog)

	completion, err := a.gateway.Complete(ctx, jobID, "analyzer", analyzerSystemPrompt, buildAnalyzerUserPrompt(category, fragments, plan))
	if err != nil {
		return a.fallbackAnalysis(category, fragments), nil
	}

	analysis, parseErr := parseAnalyzerResponse(completion.Text, category)
	if parseErr != nil || len(analysis.Suggestions) == 0 {
		return a.fallbackAnalysis(category, fragments), nil
	}
	return analysis, nil
}

const analyzerSystemPrompt = `You are a dependency upgrade failure analyst. Given ` +
	`a failure category and log excerpts, respond with a JSON object ` +
	`containing root_cause (string), suggestions (array of {target_package, ` +
	`version_change, priority, rationale}), confidence (low, medium, or high), ` +
	`and recoverable (boolean). Respond with JSON only.`

func buildAnalyzerUserPrompt(category Category, fragments []logFragment, plan MigrationPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\n", category)
	for _, f := range fragments {
		fmt.Fprintf(&b, "Excerpt: %s\nContext:\n%s\n\n", f.Excerpt, f.Context)
	}
	b.WriteString("Plan dependencies:\n")
	for _, d := range plan.Dependencies {
		fmt.Fprintf(&b, "- %s: %s -> %s (%s, risk=%s)\n", d.Name, d.CurrentVersion, d.TargetVersion, d.Action, d.Risk)
	}
	return b.String()
}

func parseAnalyzerResponse(raw string, category Category) (ErrorAnalysis, error) {
	var doc struct {
		RootCause   string          `json:"root_cause"`
		Suggestions []FixSuggestion `json:"suggestions"`
		Confidence  string          `json:"confidence"`
		Recoverable bool            `json:"recoverable"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return ErrorAnalysis{}, err
	}

	confidence := ConfidenceLow
	switch strings.ToLower(doc.Confidence) {
	case "high":
		confidence = ConfidenceHigh
	case "medium":
		confidence = ConfidenceMedium
	}

	return ErrorAnalysis{
		Category:    category,
		RootCause:   doc.RootCause,
		Suggestions: doc.Suggestions,
		Confidence:  confidence,
		Recoverable: doc.Recoverable,
	}, nil
}

// fallbackAnalysis is used when the model is unavailable or its
// response has nothing actionable. Only peer_dependency_conflict and
// missing_dependency have an obvious version-pin fix template; every
// other category defaults to non-recoverable, the conservative default
// the Open Question calls for.
func (a *Analyzer) fallbackAnalysis(category Category, fragments []logFragment) ErrorAnalysis {
	analysis := ErrorAnalysis{
		Category:    category,
		Confidence:  ConfidenceLow,
		Recoverable: false,
	}
	if len(fragments) > 0 {
		analysis.RootCause = fragments[0].Excerpt
	}

	switch category {
	case CategoryPeerDependencyConflict, CategoryMissingDependency:
		analysis.Recoverable = true
		analysis.Suggestions = []FixSuggestion{{
			Priority:  PriorityMedium,
			Rationale: "pin the conflicting dependency to a version compatible with its declared peer range",
		}}
	}

	return analysis
}
