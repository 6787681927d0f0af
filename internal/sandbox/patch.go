package sandbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/artemis/ai-modernizer/internal/apperrors"
	"github.com/cespare/xxhash/v2"
)

func manifestPathFor(kind ProjectKind) string {
	switch kind {
	case KindNodeJS:
		return "/workspace/package.json"
	case KindPython:
		return "/workspace/requirements.txt"
	default:
		return ""
	}
}

// ApplyManifestPatches rewrites manifest content, replacing the target
// version of every named dependency that appears in it. It is exported
// so the Deployer agent can re-run the identical patch logic against
// the real project directory, outside of a container.
func ApplyManifestPatches(kind ProjectKind, content string, patches []DependencyPatch) (string, error) {
	return applyPatches(kind, content, patches)
}

// applyPatches rewrites manifest content, replacing the target version of
// every named dependency that appears in it. Dependencies not present in
// the manifest are left untouched.
func applyPatches(kind ProjectKind, content string, patches []DependencyPatch) (string, error) {
	switch kind {
	case KindNodeJS:
		return applyPackageJSONPatches(content, patches)
	case KindPython:
		return applyRequirementsPatches(content, patches), nil
	default:
		return "", fmt.Errorf("unsupported project kind %q", kind)
	}
}

// applyPackageJSONPatches replaces version strings for named dependencies
// in both "dependencies" and "devDependencies". Those two sections keep
// their key order because they are rebuilt from an ordered
// representation; the top-level object is remarshaled from a plain map,
// so its keys come out in sorted order.
func applyPackageJSONPatches(content string, patches []DependencyPatch) (string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return "", fmt.Errorf("failed to parse package.json: %w", err)
	}

	byName := make(map[string]string, len(patches))
	for _, p := range patches {
		byName[p.Name] = p.TargetVersion
	}

	for _, section := range []string{"dependencies", "devDependencies"} {
		raw, ok := doc[section]
		if !ok {
			continue
		}
		patched, err := patchDependencySection(raw, byName)
		if err != nil {
			return "", err
		}
		doc[section] = patched
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to remarshal package.json: %w", err)
	}
	return string(out) + "\n", nil
}

// patchDependencySection walks the raw key/value pairs of a
// dependencies object via json.Decoder token-by-token so the original
// key order is preserved, replacing only the values named in byName.
func patchDependencySection(raw json.RawMessage, byName map[string]string) (json.RawMessage, error) {
	var ordered orderedStringMap
	if err := ordered.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	for i, kv := range ordered.pairs {
		if target, ok := byName[kv.key]; ok {
			ordered.pairs[i].value = target
		}
	}
	return ordered.MarshalJSON()
}

type kv struct {
	key   string
	value string
}

type orderedStringMap struct {
	pairs []kv
}

func (m *orderedStringMap) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	// First decode into a plain map to validate shape, then walk the raw
	// bytes to recover declaration order (encoding/json's decoder token
	// stream reports object keys in source order).
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("dependency section is not a flat string map: %w", err)
	}

	dec := json.NewDecoder(strings.NewReader(string(data)))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected string key")
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return err
		}
		m.pairs = append(m.pairs, kv{key: key, value: value})
	}
	return nil
}

func (m *orderedStringMap) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, p := range m.pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(p.key)
		valJSON, _ := json.Marshal(p.value)
		b.WriteByte('\n')
		b.WriteString("    ")
		b.Write(keyJSON)
		b.WriteString(": ")
		b.Write(valJSON)
	}
	if len(m.pairs) > 0 {
		b.WriteByte('\n')
		b.WriteString("  ")
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

var requirementLineRe = regexp.MustCompile(`^([A-Za-z0-9_.\-]+)(\[[^\]]*\])?\s*(==|>=|<=|~=|!=|>|<)\s*([A-Za-z0-9_.\-]+)(.*)$`)

// applyRequirementsPatches rewrites requirements.txt line by line,
// preserving comments and ordering, substituting only the version
// component of a matched dependency line.
func applyRequirementsPatches(content string, patches []DependencyPatch) string {
	byName := make(map[string]string, len(patches))
	for _, p := range patches {
		byName[strings.ToLower(p.Name)] = p.TargetVersion
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		m := requirementLineRe.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		name, extras, op, _, trailer := m[1], m[2], m[3], m[4], m[5]
		target, ok := byName[strings.ToLower(name)]
		if !ok {
			continue
		}
		lines[i] = fmt.Sprintf("%s%s%s%s%s", name, extras, op, target, trailer)
	}
	return strings.Join(lines, "\n")
}

// writeManifestAndVerify base64-encodes content and pipes it through a
// shell decode inside the container (never shell-interpolating the raw
// content), then reads the file back and compares its xxhash against the
// hash of the bytes that were sent. Only the base64 text reaches the
// shell, so the manifest's own content is never interpreted by it.
func (c *dockerClient) writeManifestAndVerify(ctx context.Context, containerID, path, content string) error {
	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	cmd := []string{"sh", "-c", fmt.Sprintf("echo %s | base64 -d > %s", shellQuote(encoded), shellQuote(path))}

	res, err := c.execInContainer(ctx, containerID, cmd, "/workspace")
	if err != nil {
		return apperrors.Wrap(apperrors.KindSandboxUnavailable, "failed to write patched manifest", err)
	}
	if res.ExitCode != 0 {
		return apperrors.New(apperrors.KindSandboxUnavailable, fmt.Sprintf("manifest write exited %d", res.ExitCode))
	}

	readBack, err := c.execInContainer(ctx, containerID, []string{"cat", path}, "/workspace")
	if err != nil {
		return apperrors.Wrap(apperrors.KindSandboxUnavailable, "failed to read back patched manifest", err)
	}

	expected := xxhash.Sum64([]byte(content))
	actual := xxhash.Sum64([]byte(readBack.Output))
	if expected != actual {
		return apperrors.New(apperrors.KindSandboxUnavailable,
			fmt.Sprintf("manifest patch verification failed: expected hash %x, got %x", expected, actual))
	}
	return nil
}

// shellQuote wraps s in single quotes for safe inclusion in a sh -c
// argument, escaping any embedded single quotes. Base64 output never
// actually contains shell metacharacters, but paths might.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
