package agents

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/artemis/ai-modernizer/internal/apperrors"
)

// normalizePlanResponse parses a model's plan response, which may use any
// of several field-name synonyms and container shapes, into the
// canonical MigrationPlan. manifestVersions maps dependency name to the
// verbatim current version captured from the manifest before the model
// was ever called; every returned Dependency's CurrentVersion is
// overwritten from this map unconditionally (invariant 1), regardless
// of what the model reported.
func normalizePlanResponse(raw string, manifestVersions map[string]string) (MigrationPlan, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return MigrationPlan{}, apperrors.Wrap(apperrors.KindPlanParseFailed, "model response is not a JSON object", err)
	}

	depsRaw, ok := findKey(doc, "dependencies", "deps")
	if !ok {
		return MigrationPlan{}, apperrors.New(apperrors.KindPlanParseFailed, "model response has no dependencies field")
	}

	deps, err := normalizeDependencyContainer(depsRaw)
	if err != nil {
		return MigrationPlan{}, apperrors.Wrap(apperrors.KindPlanParseFailed, "failed to normalize dependency container", err)
	}

	for i := range deps {
		name := deps[i].Name
		if verbatim, ok := manifestVersions[name]; ok {
			deps[i].CurrentVersion = verbatim
		}
	}

	plan := MigrationPlan{
		Dependencies: deps,
		OverallRisk:  overallRisk(deps),
	}

	if phasesRaw, ok := findKey(doc, "phases"); ok {
		plan.Phases = parsePhaseList(phasesRaw)
	} else {
		plan.Phases = parseSiblingPhaseKeys(doc)
	}

	return plan, nil
}

func findKey(doc map[string]json.RawMessage, names ...string) (json.RawMessage, bool) {
	for _, n := range names {
		if v, ok := doc[n]; ok {
			return v, true
		}
	}
	return nil, false
}

// normalizeDependencyContainer accepts either a JSON array of dependency
// objects or a JSON object keyed by package name.
func normalizeDependencyContainer(raw json.RawMessage) ([]Dependency, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, fmt.Errorf("empty dependency container")
	}

	switch trimmed[0] {
	case '[':
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		deps := make([]Dependency, 0, len(items))
		for _, item := range items {
			d, err := normalizeDependencyFields("", item)
			if err != nil {
				return nil, err
			}
			deps = append(deps, d)
		}
		return deps, nil
	case '{':
		var byName map[string]map[string]json.RawMessage
		if err := json.Unmarshal(raw, &byName); err != nil {
			return nil, err
		}
		names := make([]string, 0, len(byName))
		for name := range byName {
			names = append(names, name)
		}
		sort.Strings(names)
		deps := make([]Dependency, 0, len(names))
		for _, name := range names {
			d, err := normalizeDependencyFields(name, byName[name])
			if err != nil {
				return nil, err
			}
			deps = append(deps, d)
		}
		return deps, nil
	default:
		return nil, fmt.Errorf("dependency container is neither array nor object")
	}
}

func normalizeDependencyFields(nameHint string, fields map[string]json.RawMessage) (Dependency, error) {
	d := Dependency{Name: nameHint}

	if n, ok := stringField(fields, "name", "package", "package_name"); ok {
		d.Name = n
	}
	if d.Name == "" {
		return Dependency{}, fmt.Errorf("dependency entry missing a name")
	}

	if v, ok := stringField(fields, "current", "current_version", "currentVersion"); ok {
		d.CurrentVersion = v
	}
	if v, ok := stringField(fields, "target", "target_version", "targetVersion"); ok {
		d.TargetVersion = v
	}

	action := ActionKeep
	if v, ok := stringField(fields, "action"); ok {
		switch strings.ToLower(v) {
		case "upgrade":
			action = ActionUpgrade
		case "remove":
			action = ActionRemove
		default:
			action = ActionKeep
		}
	} else if d.TargetVersion != "" && d.TargetVersion != d.CurrentVersion && d.TargetVersion != unknownVersionSentinel {
		action = ActionUpgrade
	}
	d.Action = action

	riskRaw, _ := stringField(fields, "risk", "risk_level")
	d.Risk = coerceRisk(riskRaw)

	d.BreakingChanges = stringListField(fields, "breaking_changes", "breakingChanges", "notes")

	return d, nil
}

const unknownVersionSentinel = "unknown"

func stringField(fields map[string]json.RawMessage, names ...string) (string, bool) {
	for _, n := range names {
		raw, ok := fields[n]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, true
		}
	}
	return "", false
}

func stringListField(fields map[string]json.RawMessage, names ...string) []string {
	for _, n := range names {
		raw, ok := fields[n]
		if !ok {
			continue
		}
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil {
			return list
		}
		var single string
		if err := json.Unmarshal(raw, &single); err == nil && single != "" {
			return []string{single}
		}
	}
	return nil
}

// coerceRisk maps anything not already in {low, medium, high} onto that
// set by keyword match, defaulting to low.
func coerceRisk(raw string) Risk {
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch lower {
	case "low", "medium", "high":
		return Risk(lower)
	}
	switch {
	case strings.Contains(lower, "major"), strings.Contains(lower, "breaking"):
		return RiskHigh
	case strings.Contains(lower, "minor"):
		return RiskMedium
	default:
		return RiskLow
	}
}

func overallRisk(deps []Dependency) Risk {
	max := RiskLow
	for _, d := range deps {
		switch d.Risk {
		case RiskHigh:
			return RiskHigh
		case RiskMedium:
			max = RiskMedium
		}
	}
	return max
}

// parsePhaseList normalizes a "phases": [[...], [...]] field into [][]string.
func parsePhaseList(raw json.RawMessage) [][]string {
	var phases [][]string
	if err := json.Unmarshal(raw, &phases); err != nil {
		return nil
	}
	return phases
}

// parseSiblingPhaseKeys collects phase1/phase2/... sibling keys in
// numeric order.
func parseSiblingPhaseKeys(doc map[string]json.RawMessage) [][]string {
	type indexed struct {
		idx   int
		names []string
	}
	var found []indexed
	for key, raw := range doc {
		if !strings.HasPrefix(key, "phase") {
			continue
		}
		numStr := strings.TrimPrefix(key, "phase")
		idx, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}
		var names []string
		if err := json.Unmarshal(raw, &names); err != nil {
			continue
		}
		found = append(found, indexed{idx: idx, names: names})
	}
	if len(found) == 0 {
		return nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i].idx < found[j].idx })
	phases := make([][]string, 0, len(found))
	for _, f := range found {
		phases = append(phases, f.names)
	}
	return phases
}
