package agents

import (
	"regexp"
	"strings"
)

// logFragment is a matched error excerpt plus a small surrounding
// context window. It carries no category of its own; scanLogs returns
// the category separately.
type logFragment struct {
	Excerpt string
	Context string
}

var (
	typeErrorRe        = regexp.MustCompile(`TypeError|is not a function`)
	peerDepRe          = regexp.MustCompile(`peer dep`)
	missingModuleRe    = regexp.MustCompile(`cannot find module|ModuleNotFoundError`)
	npmErrRe           = regexp.MustCompile(`npm ERR!\s+(.+)`)
	pipErrRe           = regexp.MustCompile(`ERROR:\s+(.+)`)
	configKeywordRe    = regexp.MustCompile(`(?i)config|\.env|ENOENT.*\.json`)
	pythonTracebackRe  = regexp.MustCompile(`Traceback \(most recent call last\)`)
	jsUncaughtFrameRe  = regexp.MustCompile(`at Object\.<anonymous>`)
)

// scanLogs runs the fixed, ordered, non-overlapping category checks
// described by the fallback categorizer over combined install + runtime
// log text. Matches are checked in the specified order so a more
// specific category (api_breaking_change) is never shadowed by a
// broader one that happens to share a substring (peer_dependency_conflict
// scans for the literal "peer dep", never the bare substring "peer").
func scanLogs(installLog, runtimeLog string) (Category, []logFragment) {
	combined := installLog + "\n" + runtimeLog
	lines := strings.Split(combined, "\n")

	if loc := typeErrorRe.FindStringIndex(combined); loc != nil {
		return CategoryAPIBreakingChange, []logFragment{extractContext(lines, combined, loc)}
	}
	if loc := peerDepRe.FindStringIndex(combined); loc != nil {
		return CategoryPeerDependencyConflict, []logFragment{extractContext(lines, combined, loc)}
	}
	if loc := missingModuleRe.FindStringIndex(combined); loc != nil {
		return CategoryMissingDependency, []logFragment{extractContext(lines, combined, loc)}
	}

	if m := npmErrRe.FindStringSubmatch(combined); m != nil {
		cat := CategoryInstallFailure
		if configKeywordRe.MatchString(m[1]) {
			cat = CategoryConfigurationError
		}
		loc := npmErrRe.FindStringIndex(combined)
		return cat, []logFragment{extractContext(lines, combined, loc)}
	}
	if m := pipErrRe.FindStringSubmatch(combined); m != nil {
		cat := CategoryInstallFailure
		if configKeywordRe.MatchString(m[1]) {
			cat = CategoryConfigurationError
		}
		loc := pipErrRe.FindStringIndex(combined)
		return cat, []logFragment{extractContext(lines, combined, loc)}
	}

	if loc := pythonTracebackRe.FindStringIndex(combined); loc != nil {
		return CategoryStartupFailure, []logFragment{extractContext(lines, combined, loc)}
	}
	if loc := jsUncaughtFrameRe.FindStringIndex(combined); loc != nil {
		return CategoryStartupFailure, []logFragment{extractContext(lines, combined, loc)}
	}

	return CategoryUnknown, nil
}

// extractContext returns the matched excerpt plus a +/-3 line window
// around it.
func extractContext(lines []string, combined string, matchLoc []int) logFragment {
	excerpt := combined[matchLoc[0]:matchLoc[1]]

	lineIdx := 0
	consumed := 0
	for i, l := range lines {
		consumed += len(l) + 1
		if consumed > matchLoc[0] {
			lineIdx = i
			break
		}
	}

	start := lineIdx - 3
	if start < 0 {
		start = 0
	}
	end := lineIdx + 4
	if end > len(lines) {
		end = len(lines)
	}

	return logFragment{
		Excerpt: excerpt,
		Context: strings.Join(lines[start:end], "\n"),
	}
}
