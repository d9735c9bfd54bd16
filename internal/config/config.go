package config

import (
	"net"
	"strconv"
	"time"
)

// Storage drivers.
const (
	StorageDriverFile   = "file"
	StorageDriverSQLite = "sqlite"
)

// StorageConfig selects and locates the history persister.
type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// Config holds server configuration values.
type Config struct {
	Host              string        `mapstructure:"host" yaml:"host"`
	Port              int           `mapstructure:"port" yaml:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	Storage           StorageConfig `mapstructure:"storage" yaml:"storage"`
}

// Default returns configuration with reasonable starter defaults: port 3001
// on all interfaces, JSON file history next to the working directory.
func Default() Config {
	return Config{
		Host:              "",
		Port:              3001,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		Storage: StorageConfig{
			Driver: StorageDriverFile,
			Path:   "chat-history/history.json",
		},
	}
}

// ListenAddr combines host and port into a listen address.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
