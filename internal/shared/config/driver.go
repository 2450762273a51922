package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DriverConfig contains all configuration for submitting a chain.
type DriverConfig struct {
	Engine  EngineConfig  `mapstructure:"engine"`
	Chain   ChainConfig   `mapstructure:"chain"`
	Cleanup CleanupConfig `mapstructure:"cleanup"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// EngineConfig describes the external engine installation.
type EngineConfig struct {
	Home          string   `mapstructure:"home"`
	StreamingJar  string   `mapstructure:"streaming_jar"`
	Interpreter   string   `mapstructure:"interpreter"`
	FrameworkFile string   `mapstructure:"framework_file"`
	ExtraOpts     []string `mapstructure:"extra_opts"`
}

// ChainConfig contains the locations a chain reads and writes.
type ChainConfig struct {
	Inputs          []string `mapstructure:"inputs"`
	Output          string   `mapstructure:"output"`
	IntermediateDir string   `mapstructure:"intermediate_dir"`
	DryRun          bool     `mapstructure:"dry_run"`
}

// CleanupConfig controls removal of intermediate data after a run.
type CleanupConfig struct {
	DeleteIntermediates bool       `mapstructure:"delete_intermediates"`
	Mode                string     `mapstructure:"mode"`
	HDFS                HDFSConfig `mapstructure:"hdfs"`
}

// HDFSConfig is used by the native HDFS cleanup mode.
type HDFSConfig struct {
	Namenode string `mapstructure:"namenode"`
	User     string `mapstructure:"user"`
}

const (
	CleanupModeEngine = "engine"
	CleanupModeHDFS   = "hdfs"
	CleanupModeLocal  = "local"
)

// Flag names bound onto config keys by LoadDriver.
var flagKeys = map[string]string{
	"input":                "chain.inputs",
	"output":               "chain.output",
	"intermediate-dir":     "chain.intermediate_dir",
	"dry-run":              "chain.dry_run",
	"home":                 "engine.home",
	"streaming":            "engine.streaming_jar",
	"interpreter":          "engine.interpreter",
	"extra-opts":           "engine.extra_opts",
	"delete-intermediates": "cleanup.delete_intermediates",
	"log-level":            "logging.level",
}

// LoadDriver loads the driver configuration from the given path.
// If configPath is empty, it looks for mrchain.yaml in the config/ directory.
// Environment variables with MRCHAIN_ prefix override config file values, and
// flags that were set on the command line override both.
func LoadDriver(configPath string, flags *pflag.FlagSet) (*DriverConfig, error) {
	v := viper.New()

	v.SetDefault("engine.home", "/usr/local/hadoop")
	v.SetDefault("engine.streaming_jar", "")
	v.SetDefault("engine.interpreter", "")
	v.SetDefault("engine.framework_file", "")
	v.SetDefault("engine.extra_opts", []string{})
	v.SetDefault("chain.inputs", []string{})
	v.SetDefault("chain.output", "")
	v.SetDefault("chain.intermediate_dir", "/__mrchain")
	v.SetDefault("chain.dry_run", false)
	v.SetDefault("cleanup.delete_intermediates", false)
	v.SetDefault("cleanup.mode", CleanupModeEngine)
	v.SetDefault("cleanup.hdfs.namenode", "")
	v.SetDefault("cleanup.hdfs.user", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("mrchain")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("MRCHAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg DriverConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *DriverConfig) Validate() error {
	switch c.Cleanup.Mode {
	case CleanupModeEngine, CleanupModeLocal:
	case CleanupModeHDFS:
		if c.Cleanup.HDFS.Namenode == "" {
			return errors.New("cleanup.hdfs.namenode is required for hdfs cleanup")
		}
	default:
		return fmt.Errorf("unknown cleanup mode: %s", c.Cleanup.Mode)
	}
	return nil
}
