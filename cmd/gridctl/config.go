package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyServer       = "server"
	cfgKeyStateDB      = "state_db"
	cfgKeySchemaFile   = "schema_file"
	cfgKeyViewsDir     = "views_dir"
	cfgKeyPollInterval = "poll_interval"
	cfgKeyRetention    = "retention"
	cfgKeyExportDir    = "export.dir"
	cfgKeyExportBucket = "export.bucket"
	cfgKeyExportPrefix = "export.prefix"
	cfgKeyExportRegion = "export.region"
	cfgKeyExportURL    = "export.endpoint"
	cfgKeyExportPath   = "export.path_style"

	defaultServer = "http://localhost:8080/data/"
)

const defaultConfigYAML = `# gridctl configuration

# Controller base URI of the sync server.
server: http://localhost:8080/data/

# Local state (cache snapshot, grid layouts, quick filters).
# state_db: state.db

# Schema file (.json or .cue). When unset the schema is fetched from the server.
# schema_file:

# Directory of grid view files (<type>.yaml).
# views_dir: views

# poll_interval: 30s
# retention: 2160h

export:
  dir: .
  # bucket:
  # prefix: exports/
  # region: us-east-1
  # endpoint:
  # path_style: false
`

// settings holds the configuration loaded by the root command.
var settings *viper.Viper

// resolveConfigDir returns the --config-dir flag, then GRIDCTL_CONFIG_DIR,
// then $HOME/.gridctl.
func resolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv("GRIDCTL_CONFIG_DIR"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(home, ".gridctl"), nil
}

// loadConfig reads config.yaml from configDir, writing the default file on
// first run. Relative paths in the file are resolved against configDir.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyServer, defaultServer)
	v.SetDefault(cfgKeyStateDB, "state.db")
	v.SetDefault(cfgKeyViewsDir, "views")
	v.SetDefault(cfgKeyPollInterval, "30s")
	v.SetDefault(cfgKeyRetention, "2160h")
	v.SetDefault(cfgKeyExportDir, ".")
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("GRIDCTL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for _, key := range []string{cfgKeyStateDB, cfgKeyViewsDir, cfgKeySchemaFile} {
		if p := v.GetString(key); p != "" && !filepath.IsAbs(p) {
			v.Set(key, filepath.Join(configDir, p))
		}
	}
	return v, nil
}

func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
