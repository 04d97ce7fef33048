package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazelment/agenthub/schema"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8484", cfg.Addr)

	cfg, err = LoadServerConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8484", cfg.Addr)
}

func TestLoadServerConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agenthub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: 127.0.0.1:9000
opencode_url: http://127.0.0.1:4242
startup_timeout: 10s
stop_grace: 2s
binaries:
  claude: /opt/claude/bin/claude
`), 0o644))

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "http://127.0.0.1:4242", cfg.OpenCodeURL)

	timeout, err := cfg.startupTimeout()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, timeout)

	rc, err := cfg.runtimeConfig()
	require.NoError(t, err)
	assert.Equal(t, "/opt/claude/bin/claude", rc.Binaries[schema.AgentClaude])
	assert.Equal(t, 2*time.Second, rc.StopGrace)
}

func TestRuntimeConfigRejectsUnknownAgent(t *testing.T) {
	cfg := &ServerConfig{Binaries: map[string]string{"hal9000": "/bin/hal"}}
	_, err := cfg.runtimeConfig()
	require.Error(t, err)
}

func TestRuntimeConfigRejectsBadDuration(t *testing.T) {
	cfg := &ServerConfig{StopGrace: "soon"}
	_, err := cfg.runtimeConfig()
	require.Error(t, err)
}
