// Package config provides configuration management for idaframe connections
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration of a database session
type Config struct {
	// Connection Configuration
	Driver       string `json:"driver" yaml:"driver"`                 // database/sql driver name
	DSN          string `json:"dsn" yaml:"dsn"`                       // Driver-specific data source name
	Schema       string `json:"schema" yaml:"schema"`                 // Schema prefixed to unqualified table names
	MaxOpenConns int    `json:"max_open_conns" yaml:"max_open_conns"` // Maximum open connections (0 = unlimited)

	// Analytics Engine Configuration
	AEFunction string `json:"ae_function" yaml:"ae_function"` // Registered table function running AE code

	// Debugging Configuration
	LogLevel          string `json:"log_level" yaml:"log_level"`                   // debug, info, warn or error
	VerboseLogging    bool   `json:"verbose_logging" yaml:"verbose_logging"`       // Log generated SQL text
	MetricsCollection bool   `json:"metrics_collection" yaml:"metrics_collection"` // Enable metrics collection
}

// Global configuration instance
var (
	globalConfig Config
	configMutex  sync.RWMutex
)

// Default configuration values
const (
	DefaultDriver     = "nzgo"
	DefaultAEFunction = "py_udtf"
	DefaultLogLevel   = "info"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Initialize global configuration with defaults
func init() {
	globalConfig = NewConfig()
}

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		Driver:       DefaultDriver,
		MaxOpenConns: 0,

		AEFunction: DefaultAEFunction,

		LogLevel:          DefaultLogLevel,
		VerboseLogging:    false,
		MetricsCollection: false,
	}
}

// Validate validates the configuration and returns every problem found
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Driver == "" {
		result = multierror.Append(result, fmt.Errorf("Driver must not be empty"))
	}

	if c.MaxOpenConns < 0 {
		result = multierror.Append(result, fmt.Errorf("MaxOpenConns must be non-negative, got %d", c.MaxOpenConns))
	}

	if c.AEFunction == "" {
		result = multierror.Append(result, fmt.Errorf("AEFunction must not be empty"))
	} else if strings.ContainsAny(c.AEFunction, " '\"();") {
		result = multierror.Append(result, fmt.Errorf("AEFunction %q is not a valid function name", c.AEFunction))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		result = multierror.Append(result, fmt.Errorf("LogLevel must be one of debug, info, warn, error, got %q", c.LogLevel))
	}

	if strings.ContainsAny(c.Schema, " '\";") {
		result = multierror.Append(result, fmt.Errorf("Schema %q is not a valid identifier", c.Schema))
	}

	return result.ErrorOrNil()
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	if c.Driver == "" {
		c.Driver = defaults.Driver
	}
	if c.AEFunction == "" {
		c.AEFunction = defaults.AEFunction
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}

	// Boolean fields are left as given so an explicit false survives.
	return c
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = config
}

// GetGlobalConfig returns the current global configuration
func GetGlobalConfig() Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// LoadFromJSON loads configuration from JSON data
func LoadFromJSON(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a file (supports JSON and YAML)
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	return config.WithDefaults(), nil
}

// LoadFromEnv loads configuration from IDA_* environment variables on top of base
func LoadFromEnv(base Config) Config {
	config := base

	if val := os.Getenv("IDA_DRIVER"); val != "" {
		config.Driver = val
	}

	if val := os.Getenv("IDA_DSN"); val != "" {
		config.DSN = val
	}

	if val := os.Getenv("IDA_SCHEMA"); val != "" {
		config.Schema = val
	}

	if val := os.Getenv("IDA_MAX_OPEN_CONNS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.MaxOpenConns = parsed
		}
	}

	if val := os.Getenv("IDA_AE_FUNCTION"); val != "" {
		config.AEFunction = val
	}

	if val := os.Getenv("IDA_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	if val := os.Getenv("IDA_VERBOSE_LOGGING"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.VerboseLogging = parsed
		}
	}

	if val := os.Getenv("IDA_METRICS_COLLECTION"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.MetricsCollection = parsed
		}
	}

	return config
}
