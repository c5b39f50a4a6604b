package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	color.NoColor = true

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigCommandRedactsSecrets(t *testing.T) {
	t.Setenv("FOLIO_GITHUB_TOKEN", "ghp_secret")
	t.Setenv("FOLIO_GITHUB_USERNAME", "octocat")

	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.NotContains(t, out, "ghp_secret")

	var printed map[string]map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &printed))
	assert.Equal(t, "********", printed["github"]["token"])
	assert.Equal(t, "octocat", printed["github"]["username"])
	assert.Equal(t, "30s", printed["chat"]["timeout"])
}

func TestAskWithMockBackend(t *testing.T) {
	t.Setenv("FOLIO_CHAT_BACKEND", "mock")

	out, err := execute(t, "ask", "which", "projects?")
	require.NoError(t, err)
	assert.Contains(t, out, "which projects?")
}

func TestInvalidConfigFails(t *testing.T) {
	t.Setenv("FOLIO_CHAT_BACKEND", "telepathy")

	_, err := execute(t, "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telepathy")
}

func TestDispatchesNeedsPersistentLog(t *testing.T) {
	_, err := execute(t, "dispatches")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not persistent")
}

func TestDispatchesFromSQLite(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FOLIO_CHAT_BACKEND", "mock")
	t.Setenv("FOLIO_DISPATCH_LOG_BACKEND", "sqlite")
	t.Setenv("FOLIO_DISPATCH_LOG_SQLITE_PATH", dir+"/dispatches.db")

	_, err := execute(t, "ask", "hello")
	require.NoError(t, err)

	out, err := execute(t, "dispatches", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "OUTCOME")
	assert.Contains(t, out, "ok")
}
