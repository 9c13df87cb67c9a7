package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9090"
queue_depth: 64
seed:
  - client: alice
    currency: RUB
    amount: "1000"
  - client: bob
    currency: USD
    amount: "15"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 64, cfg.QueueDepth)
	require.Len(t, cfg.Seed, 2)
	assert.Equal(t, SeedBalance{Client: "alice", Currency: "RUB", Amount: "1000"}, cfg.Seed[0])
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
seed:
  - client: alice
    currency: RUB
    amount: "1000"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().ListenAddr, cfg.ListenAddr)
	assert.Equal(t, Default().QueueDepth, cfg.QueueDepth)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	path := writeConfig(t, "listen_addr: [")
	_, err := Load(path)
	assert.Error(t, err)
}
