// Package config loads the stack definition: per-service ports and binary
// paths, the document root, the ordered virtual-host route list, and the
// daemon's own knobs. It is the engine-facing face of the configuration
// store; the supervisor consumes immutable snapshots of it.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/webstackd/webstackd/internal/logger"
	"github.com/webstackd/webstackd/internal/service"
)

// WebServerConfig locates the web server binary and the path the generated
// configuration is written to.
type WebServerConfig struct {
	Binary     string   `mapstructure:"binary"`
	Args       []string `mapstructure:"args"`
	WorkDir    string   `mapstructure:"workdir"`
	Port       int      `mapstructure:"port"`
	ConfigPath string   `mapstructure:"config_path"`
}

// RuntimeConfig locates the script runtime (FastCGI) installation.
type RuntimeConfig struct {
	Binary  string   `mapstructure:"binary"`
	Args    []string `mapstructure:"args"`
	WorkDir string   `mapstructure:"workdir"`
	Port    int      `mapstructure:"port"`
	Dir     string   `mapstructure:"dir"` // installation directory (ini dir)
	Version string   `mapstructure:"version"`
}

// DatabaseConfig locates the database server and its data directory.
// InitBinary/InitArgs describe the one-time data-directory bootstrap run
// synchronously before the first start.
type DatabaseConfig struct {
	Binary     string   `mapstructure:"binary"`
	Args       []string `mapstructure:"args"`
	WorkDir    string   `mapstructure:"workdir"`
	Port       int      `mapstructure:"port"`
	DataDir    string   `mapstructure:"data_dir"`
	InitBinary string   `mapstructure:"init_binary"`
	InitArgs   []string `mapstructure:"init_args"`
}

type ServerConfig struct {
	Listen   string `mapstructure:"listen"`
	BasePath string `mapstructure:"base_path"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

type JournalConfig struct {
	DSN string `mapstructure:"dsn"`
}

// Config is the top-level TOML structure.
type Config struct {
	WebServer     WebServerConfig      `mapstructure:"webserver"`
	ScriptRuntime RuntimeConfig        `mapstructure:"scriptruntime"`
	Database      DatabaseConfig       `mapstructure:"database"`
	DocumentRoot  string               `mapstructure:"document_root"`
	Routes        []service.VHostRoute `mapstructure:"routes"`

	Log     logger.Config  `mapstructure:"log"`
	Server  *ServerConfig  `mapstructure:"server"`
	Metrics *MetricsConfig `mapstructure:"metrics"`
	Journal *JournalConfig `mapstructure:"journal"`

	HealthInterval time.Duration `mapstructure:"health_interval"`
	StartStagger   time.Duration `mapstructure:"start_stagger"`
	StopWait       time.Duration `mapstructure:"stop_wait"`
}

// Defaults applied when the file leaves the knobs unset.
const (
	DefaultHealthInterval = 5 * time.Second
	DefaultStartStagger   = 500 * time.Millisecond
	DefaultStopWait       = 3 * time.Second
)

// Load reads and validates a TOML config file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.HealthInterval <= 0 {
		c.HealthInterval = DefaultHealthInterval
	}
	if c.StartStagger <= 0 {
		c.StartStagger = DefaultStartStagger
	}
	if c.StopWait <= 0 {
		c.StopWait = DefaultStopWait
	}
}

// Validate checks the parts the engine cannot limp along without.
func (c *Config) Validate() error {
	type svc struct {
		name   string
		binary string
		port   int
	}
	for _, s := range []svc{
		{"webserver", c.WebServer.Binary, c.WebServer.Port},
		{"scriptruntime", c.ScriptRuntime.Binary, c.ScriptRuntime.Port},
		{"database", c.Database.Binary, c.Database.Port},
	} {
		if strings.TrimSpace(s.binary) == "" {
			return fmt.Errorf("%s: binary is required", s.name)
		}
		if s.port <= 0 || s.port > 65535 {
			return fmt.Errorf("%s: invalid port %d", s.name, s.port)
		}
	}
	if strings.TrimSpace(c.WebServer.ConfigPath) == "" {
		return fmt.Errorf("webserver: config_path is required")
	}
	if strings.TrimSpace(c.DocumentRoot) == "" {
		return fmt.Errorf("document_root is required")
	}
	if err := service.ValidateRoutes(c.Routes); err != nil {
		return err
	}
	return nil
}
