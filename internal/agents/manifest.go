package agents

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/artemis/ai-modernizer/internal/sandbox"
)

// manifestPathFor returns the conventional manifest path for a project
// kind, relative to the project root.
func manifestPathFor(kind sandbox.ProjectKind) string {
	switch kind {
	case sandbox.KindNodeJS:
		return "package.json"
	case sandbox.KindPython:
		return "requirements.txt"
	default:
		return ""
	}
}

// enumeratedDependency is one dependency as read directly off the
// manifest, before any model involvement.
type enumeratedDependency struct {
	Name           string
	CurrentVersion string
	Dev            bool
}

var requirementsLineRe = regexp.MustCompile(`^([A-Za-z0-9_.\-]+)(\[[^\]]*\])?\s*(==|>=|<=|~=|!=|>|<)?\s*([A-Za-z0-9_.\-]*)`)

// parseManifest enumerates a project's declared dependencies (and
// dev-dependencies) from its manifest content.
func parseManifest(kind sandbox.ProjectKind, content string) ([]enumeratedDependency, error) {
	switch kind {
	case sandbox.KindNodeJS:
		return parsePackageJSON(content)
	case sandbox.KindPython:
		return parseRequirementsTxt(content), nil
	default:
		return nil, nil
	}
}

func parsePackageJSON(content string) ([]enumeratedDependency, error) {
	var doc struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, err
	}

	var deps []enumeratedDependency
	for name, version := range doc.Dependencies {
		deps = append(deps, enumeratedDependency{Name: name, CurrentVersion: version})
	}
	for name, version := range doc.DevDependencies {
		deps = append(deps, enumeratedDependency{Name: name, CurrentVersion: version, Dev: true})
	}
	return deps, nil
}

func parseRequirementsTxt(content string) []enumeratedDependency {
	var deps []enumeratedDependency
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		m := requirementsLineRe.FindStringSubmatch(trimmed)
		if m == nil || m[1] == "" {
			continue
		}
		deps = append(deps, enumeratedDependency{Name: m[1], CurrentVersion: m[4]})
	}
	return deps
}

// manifestVersionMap builds the name -> verbatim-current-version lookup
// used to enforce invariant 1 during plan normalization.
func manifestVersionMap(deps []enumeratedDependency) map[string]string {
	m := make(map[string]string, len(deps))
	for _, d := range deps {
		m[d.Name] = d.CurrentVersion
	}
	return m
}
