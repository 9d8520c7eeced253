package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDrafterConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url: http://match:9000
match_id: m1
user_id: u1
push:
  kind: nats
`), 0o600))
	t.Setenv("MATCHDRAFT_TOKEN", "secret")

	config, err := loadDrafterConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://match:9000", config.ServerURL)
	assert.Equal(t, PushNATS, config.Push.Kind)
	assert.Equal(t, "secret", config.Token)
	assert.Equal(t, "ws://localhost:8081/ws/match", config.Push.GatewayURL)
}

func TestLoadDrafterConfigRejects(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	_, err := loadDrafterConfig(missing)
	assert.Error(t, err)

	t.Setenv("MATCHDRAFT_MATCH_ID", "m1")
	t.Setenv("MATCHDRAFT_USER_ID", "u1")
	t.Setenv("MATCHDRAFT_PUSH", "carrier-pigeon")
	_, err = loadDrafterConfig(missing)
	assert.Error(t, err)

	t.Setenv("MATCHDRAFT_PUSH", "none")
	config, err := loadDrafterConfig(missing)
	require.NoError(t, err)
	assert.Equal(t, PushNone, config.Push.Kind)
}
