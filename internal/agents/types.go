// Package agents implements the Planner, Validator, Analyzer, and
// Deployer steps the Workflow Engine drives a MigrationState through.
package agents

import (
	"time"

	"github.com/artemis/ai-modernizer/internal/sandbox"
)

type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

type Action string

const (
	ActionUpgrade Action = "upgrade"
	ActionKeep    Action = "keep"
	ActionRemove  Action = "remove"
)

// Dependency is one package's upgrade decision. CurrentVersion is always
// the verbatim string captured from the on-disk manifest at
// plan-creation time and is never overwritten by later agents.
type Dependency struct {
	Name            string   `json:"name"`
	CurrentVersion  string   `json:"current_version"`
	TargetVersion   string   `json:"target_version"`
	Action          Action   `json:"action"`
	Risk            Risk     `json:"risk"`
	BreakingChanges []string `json:"breaking_changes"`
}

// MigrationPlan is the Planner's output: an ordered list of per-dependency
// decisions plus an overall risk rollup.
type MigrationPlan struct {
	Dependencies []Dependency `json:"dependencies"`
	OverallRisk  Risk         `json:"overall_risk"`
	Phases       [][]string   `json:"phases,omitempty"`
}

// AnyUpgrades reports whether the plan contains at least one dependency
// marked for upgrade (used for the zero-upgrade short-circuit, B1).
func (p MigrationPlan) AnyUpgrades() bool {
	for _, d := range p.Dependencies {
		if d.Action == ActionUpgrade {
			return true
		}
	}
	return false
}

type Category string

const (
	CategoryMissingDependency       Category = "missing_dependency"
	CategoryPeerDependencyConflict  Category = "peer_dependency_conflict"
	CategoryAPIBreakingChange       Category = "api_breaking_change"
	CategoryConfigurationError      Category = "configuration_error"
	CategoryTypeError               Category = "type_error"
	CategoryInstallFailure          Category = "install_failure"
	CategoryStartupFailure          Category = "startup_failure"
	CategoryUnknown                 Category = "unknown"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// FixSuggestion is one candidate remediation for a failed validation.
type FixSuggestion struct {
	TargetPackage string   `json:"target_package"`
	VersionChange string   `json:"version_change"`
	Priority      Priority `json:"priority"`
	Rationale     string   `json:"rationale"`
}

// ErrorAnalysis is the Analyzer's output.
type ErrorAnalysis struct {
	Category    Category        `json:"category"`
	RootCause   string          `json:"root_cause"`
	Suggestions []FixSuggestion `json:"suggestions"`
	Confidence  Confidence      `json:"confidence"`
	Recoverable bool            `json:"recoverable"`
}

// Verdict is the Validator's judgment on a ValidationOutcome.
type Verdict string

const (
	VerdictProceed  Verdict = "proceed"
	VerdictFix      Verdict = "fix"
	VerdictRollback Verdict = "rollback"
)

// DeploymentResult is the Deployer's output.
type DeploymentResult struct {
	BranchName    string   `json:"branch_name"`
	CommitSHA     string   `json:"commit_sha"`
	PRURL         string   `json:"pr_url"`
	ModifiedPaths []string `json:"modified_paths"`
	Mock          bool     `json:"mock"`
}

// MigrationState is the workflow's single monotonically-extended record,
// owned exclusively by the Workflow Engine.
type MigrationState struct {
	ID            string              `json:"id"`
	ProjectPath   string              `json:"project_path"`
	ProjectKind   sandbox.ProjectKind `json:"project_kind"`
	SourceBranch  string              `json:"source_branch"`
	HasCodeHostToken bool             `json:"has_code_host_token"`

	Plan              *MigrationPlan             `json:"plan,omitempty"`
	LatestOutcome     *sandbox.ValidationOutcome `json:"latest_outcome,omitempty"`
	LatestAnalysis    *ErrorAnalysis             `json:"latest_analysis,omitempty"`
	Deployment        *DeploymentResult          `json:"deployment,omitempty"`

	Status      string   `json:"status"`
	RetryCount  int      `json:"retry_count"`
	RetryBudget int      `json:"retry_budget"`
	Errors      []string `json:"errors,omitempty"`

	CostByAgent map[string]float64 `json:"cost_by_agent"`
	TotalCost   float64            `json:"total_cost"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
