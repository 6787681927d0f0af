package toolhost

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostFallsBackToLocalFSWhenNoServerConfigured(t *testing.T) {
	host := NewHost(nil, NewLocalFS(), NewMockCodeHost(), nil, nil)
	defer host.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"demo"}`), 0644))

	fs := NewFSClient(host, "fs")
	content, err := fs.ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"demo"}`, content)

	require.NoError(t, fs.WriteFile(context.Background(), path, `{"name":"demo2"}`))
	content, err = fs.ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"demo2"}`, content)
}

func TestHostFallsBackToMockCodeHost(t *testing.T) {
	mockHost := NewMockCodeHost()
	host := NewHost(nil, NewLocalFS(), mockHost, nil, nil)
	defer host.Close()

	ch := NewCodeHostClient(host, "code_host")

	mock, err := ch.CreateBranch(context.Background(), "main", "upgrade/dependencies-20260731-000000")
	require.NoError(t, err)
	assert.True(t, mock)

	sha, mock, err := ch.Commit(context.Background(), "upgrade/dependencies-20260731-000000", "chore(deps): upgrade 1 dependency", []string{"package.json"})
	require.NoError(t, err)
	assert.True(t, mock)
	assert.NotEmpty(t, sha)

	url, mock, err := ch.OpenPR(context.Background(), "upgrade/dependencies-20260731-000000", "main", "chore(deps): upgrade 1 dependency", "body")
	require.NoError(t, err)
	assert.True(t, mock)
	assert.Contains(t, url, "mock.codehost.local")
}

func TestHostUnavailableWhenNoServerAndNoFallback(t *testing.T) {
	host := NewHost(nil, nil, nil, nil, nil)
	defer host.Close()

	fs := NewFSClient(host, "fs")
	_, err := fs.ReadFile(context.Background(), "/nonexistent")
	require.Error(t, err)
}
