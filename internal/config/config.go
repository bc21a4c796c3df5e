// Package config provides configuration management for tull.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the tull configuration.
type Config struct {
	Service ServiceConfig `yaml:"service" toml:"service"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`

	// Source is the file the config was read from, empty for defaults.
	Source string `yaml:"-" toml:"-"`
}

// ServiceConfig contains gateway address and storage settings.
type ServiceConfig struct {
	Host         string        `yaml:"host" toml:"host"`
	Port         int           `yaml:"port" toml:"port"`
	Home         string        `yaml:"home" toml:"home"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" toml:"probe_timeout"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level      string   `yaml:"level" toml:"level"`
	Format     string   `yaml:"format" toml:"format"` // "text" or "json"
	Output     []string `yaml:"output" toml:"output"` // "console", "file"
	TimeFormat string   `yaml:"time_format" toml:"time_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Host:         "127.0.0.1",
			Port:         17171,
			Home:         DefaultHome(),
			ProbeTimeout: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"console"},
		},
	}
}

// DefaultHome returns the default base directory, ~/.tull.
func DefaultHome() string {
	if env := os.Getenv("TULL_HOME"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tull"
	}
	return filepath.Join(home, ".tull")
}

// DefaultConfigPath returns the first config file found in the default home,
// preferring config.yaml over config.toml. When neither exists the yaml path
// is returned.
func DefaultConfigPath() string {
	return FindConfig(DefaultHome())
}

// FindConfig returns the config file path inside home.
func FindConfig(home string) string {
	yamlPath := filepath.Join(home, "config.yaml")
	tomlPath := filepath.Join(home, "config.toml")
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath
	}
	return yamlPath
}

// Load loads configuration from a file. A missing file yields the defaults.
// Files ending in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables in the config
	expanded := os.ExpandEnv(string(data))

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Service.Home = expandTilde(cfg.Service.Home)
	if abs, err := filepath.Abs(path); err == nil {
		cfg.Source = abs
	} else {
		cfg.Source = path
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Service.Host == "" {
		return fmt.Errorf("service.host must not be empty")
	}
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port %d out of range", c.Service.Port)
	}
	if c.Service.Home == "" {
		return fmt.Errorf("service.home must not be empty")
	}
	if c.Service.ProbeTimeout <= 0 {
		c.Service.ProbeTimeout = 2 * time.Second
	}
	return nil
}

// Address returns the host:port the gateway listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Service.Host, c.Service.Port)
}

// BaseURL returns the gateway root URL.
func (c *Config) BaseURL() string {
	return "http://" + c.Address() + "/tull"
}

// DataDir returns the directory holding one file per session.
func (c *Config) DataDir() string {
	return filepath.Join(c.Service.Home, "data")
}

// MetaDir returns the directory holding server logs.
func (c *Config) MetaDir() string {
	return filepath.Join(c.Service.Home, "meta")
}

// ServerLogPath returns the path the launched gateway writes its output to.
func (c *Config) ServerLogPath() string {
	return filepath.Join(c.MetaDir(), "server.log")
}

func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
