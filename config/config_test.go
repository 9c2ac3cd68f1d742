package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mooncake-db/bptreeidx/internal/bptree"
	"github.com/mooncake-db/bptreeidx/internal/keycodec"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bptree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_FullySpecified(t *testing.T) {
	path := writeConfig(t, `
storage:
  dir: /var/lib/bptreeidx
  buffer_pool_frames: 64
index:
  key_type: str
  max_key_size: 256
  delete_policy: naive
server:
  debug: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/bptreeidx", cfg.Storage.Dir)
	require.Equal(t, 64, cfg.Storage.BufferPoolFrames)
	require.Equal(t, 256, cfg.Index.MaxKeySize)
	require.True(t, cfg.Server.Debug)

	kt, err := cfg.KeyType()
	require.NoError(t, err)
	require.Equal(t, keycodec.KeyTypeStr, kt)

	dp, err := cfg.DeletePolicy()
	require.NoError(t, err)
	require.Equal(t, bptree.DeletePolicyNaive, dp)
}

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
storage:
  dir: /tmp/idx
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 128, cfg.Storage.BufferPoolFrames)

	kt, err := cfg.KeyType()
	require.NoError(t, err)
	require.Equal(t, keycodec.KeyTypeInt, kt)

	dp, err := cfg.DeletePolicy()
	require.NoError(t, err)
	require.Equal(t, bptree.DeletePolicyFull, dp)
}

func TestLoadConfig_UnknownKeyType(t *testing.T) {
	path := writeConfig(t, `
index:
  key_type: float
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	_, err = cfg.KeyType()
	require.Error(t, err)
}
