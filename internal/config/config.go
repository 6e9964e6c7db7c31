// Package config loads the node's TOML configuration file and environment
// overrides, backed by BurntSushi/toml.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified on-disk configuration for a tape-node process.
type Config struct {
	Node struct {
		KeypairPath string `mapstructure:"keypair_path" toml:"keypair_path"`
		DataDir     string `mapstructure:"data_dir" toml:"data_dir"`
	} `mapstructure:"node" toml:"node"`

	Chain struct {
		RPCURL    string `mapstructure:"rpc_url" toml:"rpc_url"`
		ProgramID string `mapstructure:"program_id" toml:"program_id"`
	} `mapstructure:"chain" toml:"chain"`

	Archive struct {
		QueueCapacity int      `mapstructure:"queue_capacity" toml:"queue_capacity"`
		PeerEndpoints []string `mapstructure:"peer_endpoints" toml:"peer_endpoints"`
	} `mapstructure:"archive" toml:"archive"`

	Mining struct {
		Enabled    bool `mapstructure:"enabled" toml:"enabled"`
		PowWorkers int  `mapstructure:"pow_workers" toml:"pow_workers"`
	} `mapstructure:"mining" toml:"mining"`

	RPC struct {
		ListenPort int `mapstructure:"listen_port" toml:"listen_port"`
	} `mapstructure:"rpc" toml:"rpc"`

	Logging struct {
		Level string `mapstructure:"level" toml:"level"`
		JSON  bool   `mapstructure:"json" toml:"json"`
	} `mapstructure:"logging" toml:"logging"`
}

// AppConfig holds the configuration loaded by the most recent Load call, so
// CLI subcommands that don't thread a *Config through every call can still
// reach it without threading a *Config through every call.
var AppConfig Config

// Default returns a Config populated with the node's baseline defaults,
// used when no config file is present.
func Default() Config {
	var c Config
	c.Node.DataDir = "."
	c.Chain.RPCURL = "http://127.0.0.1:8899"
	c.Archive.QueueCapacity = 10000
	c.Mining.PowWorkers = 0
	c.RPC.ListenPort = 8080
	c.Logging.Level = "info"
	return c
}

// Load reads path (a TOML file) into a Config, then layers TAPE_* environment
// overrides on top via viper, and stores the result in AppConfig. A missing
// file, malformed TOML, or an unresolvable keypair path is a Configuration
// error and is fatal at startup.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, &Error{Stage: "stat config file", Err: err}
		}
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, &Error{Stage: "decode toml", Err: err}
		}
	}

	v := viper.New()
	v.SetEnvPrefix("TAPE")
	v.AutomaticEnv()
	applyEnvOverrides(v, &cfg)

	if cfg.Node.KeypairPath != "" {
		if _, err := os.Stat(cfg.Node.KeypairPath); err != nil {
			return nil, &Error{Stage: "resolve keypair path", Err: err}
		}
	}

	AppConfig = cfg
	return &cfg, nil
}

// applyEnvOverrides lets TAPE_CHAIN_RPC_URL, TAPE_RPC_LISTEN_PORT, etc.
// override file values without requiring every call site to know viper's
// API; this keeps the override surface small and explicit rather than
// reflecting over the whole struct.
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if val := v.GetString("CHAIN_RPC_URL"); val != "" {
		cfg.Chain.RPCURL = val
	}
	if val := v.GetString("NODE_DATA_DIR"); val != "" {
		cfg.Node.DataDir = val
	}
	if val := v.GetString("NODE_KEYPAIR_PATH"); val != "" {
		cfg.Node.KeypairPath = val
	}
	if v.IsSet("RPC_LISTEN_PORT") {
		cfg.RPC.ListenPort = v.GetInt("RPC_LISTEN_PORT")
	}
	if v.IsSet("MINING_ENABLED") {
		cfg.Mining.Enabled = v.GetBool("MINING_ENABLED")
	}
	if val := v.GetString("LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}

// Error is a Configuration-kind error: missing file, malformed
// TOML, or an unresolvable keypair path. Fatal at startup.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
