package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8899", cfg.Chain.RPCURL)
	require.Equal(t, 10000, cfg.Archive.QueueCapacity)
	require.Equal(t, 8080, cfg.RPC.ListenPort)
}

func TestLoadDecodesTOMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.toml")
	data := []byte(`
[node]
data_dir = "/var/tape"

[chain]
rpc_url = "http://chain.local:9000"

[mining]
enabled = true
pow_workers = 4
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/tape", cfg.Node.DataDir)
	require.Equal(t, "http://chain.local:9000", cfg.Chain.RPCURL)
	require.True(t, cfg.Mining.Enabled)
	require.Equal(t, 4, cfg.Mining.PowWorkers)
	// Fields untouched by the file keep the defaults.
	require.Equal(t, 10000, cfg.Archive.QueueCapacity)
}

func TestLoadMissingFileIsConfigurationError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "stat config file", cfgErr.Stage)
}

func TestLoadUnresolvableKeypairPathIsConfigurationError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.toml")
	data := []byte(`
[node]
keypair_path = "/does/not/exist.key"
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "resolve keypair path", cfgErr.Stage)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TAPE_CHAIN_RPC_URL", "http://env-override:1234")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "http://env-override:1234", cfg.Chain.RPCURL)
}
