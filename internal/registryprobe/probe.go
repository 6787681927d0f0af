// Package registryprobe looks up the latest published version of
// dependencies against the npm and PyPI registries, fanning out bounded
// concurrent HTTP requests.
package registryprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/artemis/ai-modernizer/internal/observability"
	"golang.org/x/sync/errgroup"
)

// ProjectKind selects which registry a name is looked up against.
type ProjectKind string

const (
	KindNodeJS ProjectKind = "nodejs"
	KindPython ProjectKind = "python"

	unknownVersion = "unknown"
)

// DefaultConcurrency is the bounded fan-out width used when the caller
// does not configure one.
const DefaultConcurrency = 8

// Probe looks up the latest published version for every name in names,
// fanning out with bounded concurrency. A name that cannot be resolved
// (network failure, malformed response, non-2xx status) maps to
// "unknown" rather than failing the whole probe.
type Probe struct {
	client      *http.Client
	concurrency int
}

// New builds a Probe with the given concurrency (falls back to
// DefaultConcurrency when concurrency <= 0).
func New(concurrency int) *Probe {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Probe{
		client:      &http.Client{Timeout: 10 * time.Second},
		concurrency: concurrency,
	}
}

// Lookup resolves the latest published version for every name in names
// against the registry for kind. The returned map always has an entry
// for every requested name.
func (p *Probe) Lookup(ctx context.Context, kind ProjectKind, names []string) map[string]string {
	results := make(map[string]string, len(names))
	for _, name := range names {
		results[name] = unknownVersion
	}
	if len(names) == 0 {
		return results
	}

	resultsCh := make(chan [2]string, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, name := range names {
		name := name
		g.Go(func() error {
			version := p.lookupOne(gctx, kind, name)
			select {
			case resultsCh <- [2]string{name, version}:
			case <-gctx.Done():
			}
			return nil
		})
	}

	// errgroup.Wait only returns an error if a Go func returns one; ours
	// never do, since an unresolved lookup degrades to "unknown" instead
	// of failing the group.
	_ = g.Wait()
	close(resultsCh)

	for entry := range resultsCh {
		results[entry[0]] = entry[1]
	}
	return results
}

func (p *Probe) lookupOne(ctx context.Context, kind ProjectKind, name string) string {
	var version string
	var err error

	// Registry calls are best-effort: capped at 2 attempts, grounded on
	// the teacher's withRetry exponential backoff but trimmed down since
	// an unreachable registry degrades to "unknown" rather than failing
	// the caller.
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return unknownVersion
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		version, err = p.fetch(ctx, kind, name)
		if err == nil {
			return version
		}
		if !isRetriable(err) {
			break
		}
	}

	observability.RegistryProbeRequests.WithLabelValues(string(kind), "unresolved").Inc()
	return unknownVersion
}

func (p *Probe) fetch(ctx context.Context, kind ProjectKind, name string) (string, error) {
	var reqURL string
	switch kind {
	case KindNodeJS:
		reqURL = fmt.Sprintf("https://registry.npmjs.org/%s/latest", url.PathEscape(name))
	case KindPython:
		reqURL = fmt.Sprintf("https://pypi.org/pypi/%s/json", url.PathEscape(name))
	default:
		return "", fmt.Errorf("unsupported project kind %q", kind)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		observability.RegistryProbeRequests.WithLabelValues(string(kind), "error").Inc()
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.RegistryProbeRequests.WithLabelValues(string(kind), "non_2xx").Inc()
		return "", fmt.Errorf("registry returned %d for %s", resp.StatusCode, name)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.RegistryProbeRequests.WithLabelValues(string(kind), "error").Inc()
		return "", err
	}

	version, err := parseVersion(kind, raw)
	if err != nil {
		observability.RegistryProbeRequests.WithLabelValues(string(kind), "malformed").Inc()
		return "", err
	}

	observability.RegistryProbeRequests.WithLabelValues(string(kind), "resolved").Inc()
	return version, nil
}

func parseVersion(kind ProjectKind, raw []byte) (string, error) {
	switch kind {
	case KindNodeJS:
		var payload struct {
			Version string `json:"version"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil || payload.Version == "" {
			return "", fmt.Errorf("malformed npm registry response")
		}
		return payload.Version, nil
	case KindPython:
		var payload struct {
			Info struct {
				Version string `json:"version"`
			} `json:"info"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil || payload.Info.Version == "" {
			return "", fmt.Errorf("malformed pypi response")
		}
		return payload.Info.Version, nil
	default:
		return "", fmt.Errorf("unsupported project kind %q", kind)
	}
}

func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{"connection refused", "connection reset", "timeout", "EOF", "temporary failure"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
