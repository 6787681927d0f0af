package toolhost

import "context"

// FSClient is a thin typed wrapper over Host.Call for filesystem
// operations, so agents never see the line-protocol's raw JSON.
type FSClient struct {
	host   *Host
	server string
}

// NewFSClient builds an FSClient calling the given tool server name.
func NewFSClient(host *Host, server string) *FSClient {
	return &FSClient{host: host, server: server}
}

type readFileParams struct {
	Path string `json:"path"`
}

type readFileResult struct {
	Content string `json:"content"`
}

type writeFileParams struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ReadFile reads path's contents through the tool host.
func (c *FSClient) ReadFile(ctx context.Context, path string) (string, error) {
	var res readFileResult
	if err := c.host.Call(ctx, c.server, "read_file", readFileParams{Path: path}, &res); err != nil {
		return "", err
	}
	return res.Content, nil
}

// WriteFile writes content to path through the tool host.
func (c *FSClient) WriteFile(ctx context.Context, path, content string) error {
	return c.host.Call(ctx, c.server, "write_file", writeFileParams{Path: path, Content: content}, nil)
}

// localFS is the in-process fallback used when no fs tool server is
// configured or it has exited: direct os.ReadFile/os.WriteFile.
type localFS struct{}

// NewLocalFS builds the direct-filesystem fallback ToolCaller.
func NewLocalFS() ToolCaller { return &localFS{} }

func (f *localFS) Call(ctx context.Context, method string, params interface{}, result interface{}) error {
	return localFSCall(ctx, method, params, result)
}
