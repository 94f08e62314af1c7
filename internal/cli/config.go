package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/unhitch/internal/paths"
	"github.com/mesh-intelligence/unhitch/pkg/types"
)

// Config keys in config.yaml.
const (
	cfgKeyBackend   = "backend"
	cfgKeyDataDir   = "data_dir"
	cfgKeyLogLevel  = "log_level"
	cfgKeyLogFormat = "log_format"
	cfgKeyStrategy  = "strategy"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# unhitch configuration

# Record store backend
backend: sqlite

# Data directory (optional; --data-dir and UNHITCH_DATA_DIR also apply)
# data_dir:

# Logging: debug, info, warn, error / text, json
log_level: warn
log_format: text

# Graph discovery used by "unhitch detach": reflect or navigation
strategy: reflect
`

// loadConfig reads config.yaml from the resolved config directory,
// creating the directory and a default file on first run. Keys can be
// overridden with UNHITCH_* environment variables; flags win over both.
func loadConfig(flags rootFlags) (types.Config, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve config dir: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return types.Config{}, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return types.Config{}, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyLogLevel, "warn")
	v.SetDefault(cfgKeyLogFormat, "text")
	v.SetDefault(cfgKeyStrategy, types.StrategyReflect)
	v.SetConfigFile(filepath.Join(configDir, paths.ConfigFileName))
	v.SetEnvPrefix("UNHITCH")
	for _, key := range []string{cfgKeyBackend, cfgKeyLogLevel, cfgKeyLogFormat, cfgKeyStrategy} {
		if err := v.BindEnv(key); err != nil {
			return types.Config{}, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	if flags.logLevel != "" {
		v.Set(cfgKeyLogLevel, flags.logLevel)
	}

	var config types.Config
	if err := v.Unmarshal(&config); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	config.DataDir, err = paths.ResolveDataDir(flags.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	if err := config.Validate(); err != nil {
		return types.Config{}, err
	}
	return config, nil
}

// ensureDefaultConfigFile creates config.yaml if it does not exist.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, paths.ConfigFileName)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
