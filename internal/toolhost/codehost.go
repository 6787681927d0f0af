package toolhost

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CodeHostClient is a thin typed wrapper over Host.Call for the three
// code-hosting operations the Deployer needs.
type CodeHostClient struct {
	host   *Host
	server string
}

// NewCodeHostClient builds a CodeHostClient calling the given tool
// server name.
func NewCodeHostClient(host *Host, server string) *CodeHostClient {
	return &CodeHostClient{host: host, server: server}
}

type createBranchParams struct {
	From string `json:"from"`
	Name string `json:"name"`
}

type createBranchResult struct {
	Mock bool `json:"mock"`
}

type commitParams struct {
	Branch  string   `json:"branch"`
	Message string   `json:"message"`
	Files   []string `json:"files"`
}

type commitResult struct {
	SHA  string `json:"sha"`
	Mock bool   `json:"mock"`
}

type openPRParams struct {
	Branch string `json:"branch"`
	Base   string `json:"base"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

type openPRResult struct {
	URL  string `json:"url"`
	Mock bool   `json:"mock"`
}

// CreateBranch creates name off of from.
func (c *CodeHostClient) CreateBranch(ctx context.Context, from, name string) (mock bool, err error) {
	var res createBranchResult
	if err := c.host.Call(ctx, c.server, "create_branch", createBranchParams{From: from, Name: name}, &res); err != nil {
		return false, err
	}
	return res.Mock, nil
}

// Commit records a commit of files on branch with message.
func (c *CodeHostClient) Commit(ctx context.Context, branch, message string, files []string) (sha string, mock bool, err error) {
	var res commitResult
	if err := c.host.Call(ctx, c.server, "commit", commitParams{Branch: branch, Message: message, Files: files}, &res); err != nil {
		return "", false, err
	}
	return res.SHA, res.Mock, nil
}

// OpenPR opens a pull request from branch onto base.
func (c *CodeHostClient) OpenPR(ctx context.Context, branch, base, title, body string) (url string, mock bool, err error) {
	var res openPRResult
	if err := c.host.Call(ctx, c.server, "open_pr", openPRParams{Branch: branch, Base: base, Title: title, Body: body}, &res); err != nil {
		return "", false, err
	}
	return res.URL, res.Mock, nil
}

// mockCodeHost records every create_branch/commit/open_pr call in memory
// and returns synthetic mock.codehost.local URLs/SHAs. Used whenever no
// code_host tool server is configured, so the Deployer can still be
// exercised end to end without a real code-hosting credential.
type mockCodeHost struct {
	mu      sync.Mutex
	calls   []string
	nextSeq int
}

// NewMockCodeHost builds the in-process code-host fallback ToolCaller.
func NewMockCodeHost() ToolCaller { return &mockCodeHost{} }

func (m *mockCodeHost) Call(ctx context.Context, method string, params interface{}, result interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSeq++
	seq := m.nextSeq

	switch method {
	case "create_branch":
		p, _ := params.(createBranchParams)
		m.calls = append(m.calls, fmt.Sprintf("create_branch %s from %s", p.Name, p.From))
		if res, ok := result.(*createBranchResult); ok {
			res.Mock = true
		}
		return nil
	case "commit":
		p, _ := params.(commitParams)
		m.calls = append(m.calls, fmt.Sprintf("commit on %s: %s", p.Branch, p.Message))
		if res, ok := result.(*commitResult); ok {
			res.SHA = fmt.Sprintf("mock-sha-%d-%d", time.Now().UnixNano()%1_000_000, seq)
			res.Mock = true
		}
		return nil
	case "open_pr":
		p, _ := params.(openPRParams)
		m.calls = append(m.calls, fmt.Sprintf("open_pr %s -> %s: %s", p.Branch, p.Base, p.Title))
		if res, ok := result.(*openPRResult); ok {
			res.URL = fmt.Sprintf("https://mock.codehost.local/pulls/%d", seq)
			res.Mock = true
		}
		return nil
	default:
		return fmt.Errorf("mock code host: unsupported method %s", method)
	}
}

// Calls returns every call recorded so far, for test assertions.
func (m *mockCodeHost) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}
