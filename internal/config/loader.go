package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultConfigFile is the config path used when none is given on the
// command line.
const DefaultConfigFile = "/etc/serverbackup.conf"

// Load reads, parses, and validates the configuration file at path.
// The file is a JSON object; YAML is accepted as well for convenience.
// Any failure here is fatal and must abort before any filesystem mutation.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s not accessible: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)

	// /etc/serverbackup.conf carries no recognized extension; its payload
	// is JSON.
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".conf", "":
		v.SetConfigType("json")
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	default:
		v.SetConfigType("json")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.SetDefaults()
	cfg.LoadFromEnvironment()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
