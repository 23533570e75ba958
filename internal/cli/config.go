package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/cofund/internal/logging"
	"github.com/mesh-intelligence/cofund/internal/paths"
	"github.com/mesh-intelligence/cofund/pkg/types"
)

// Config keys.
const (
	keyBackend       = "backend"
	keyDataDir       = "data_dir"
	keyIdentity      = "identity"
	keyLedgerAccount = "ledger_account"
	keyLogLevel      = "log_level"
	keyListenAddr    = "listen_addr"
)

const (
	defaultBackend    = types.BackendSQLite
	defaultListenAddr = "127.0.0.1:8080"
	envPrefix         = "COFUND"
)

// configFile is the structure written to config.yaml.
type configFile struct {
	Backend       string `yaml:"backend"`
	DataDir       string `yaml:"data_dir,omitempty"`
	Identity      string `yaml:"identity,omitempty"`
	LedgerAccount string `yaml:"ledger_account,omitempty"`
	LogLevel      string `yaml:"log_level,omitempty"`
	ListenAddr    string `yaml:"listen_addr,omitempty"`
}

// loadConfig reads config.yaml from configDir with defaults and COFUND_*
// environment overrides. A missing config.yaml is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(keyBackend, defaultBackend)
	v.SetDefault(keyLogLevel, logging.DefaultLevel)
	v.SetDefault(keyListenAddr, defaultListenAddr)

	v.SetEnvPrefix(envPrefix)
	for _, key := range []string{keyBackend, keyDataDir, keyIdentity, keyLedgerAccount, keyLogLevel, keyListenAddr} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	v.SetConfigFile(paths.ConfigFile(configDir))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// writeConfigIfMissing creates config.yaml from cfg if the file does not
// exist. It reports whether it wrote the file.
func writeConfigIfMissing(path string, cfg configFile) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
