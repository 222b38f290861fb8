// Package cli provides the command-line interface for calcflow.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds all CLI configuration options.
type Config struct {
	Workbook  string `koanf:"workbook"`
	StatePath string `koanf:"state_path"`
	Port      int    `koanf:"port"`
	Verbose   bool   `koanf:"verbose"`
	Output    string `koanf:"output"`
}

// Default configuration values.
const (
	DefaultWorkbook  = "workbook.yaml"
	DefaultStateFile = ".calcflow/runs.db"
	DefaultPort      = 8090
	DefaultOutput    = "table"
)

var configFileUsed string

// findConfigFile finds the config file to use.
// Priority: explicit path > calcflow.yaml > calcflow.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat("calcflow.yaml"); err == nil {
		return "calcflow.yaml"
	}
	if _, err := os.Stat("calcflow.yml"); err == nil {
		return "calcflow.yml"
	}
	return ""
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"workbook":   DefaultWorkbook,
		"state_path": DefaultStateFile,
		"port":       DefaultPort,
		"verbose":    false,
		"output":     DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables (CALCFLOW_ prefix)
	// Transform: CALCFLOW_STATE_PATH -> state_path
	if err := k.Load(env.Provider("CALCFLOW_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "CALCFLOW_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			// kebab-case flags map to snake_case config keys
			key := strings.ReplaceAll(f.Name, "-", "_")
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}
