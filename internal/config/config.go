// Package config provides configuration for the labelkit server.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8484
	DefaultLogLevel = "info"
	DefaultDataDir  = ".labelkit"

	// Environment variable names
	EnvPort     = "LABELKIT_PORT"
	EnvLogLevel = "LABELKIT_LOG_LEVEL"
	EnvDataDir  = "LABELKIT_DATA_DIR"

	// Detector environment variable names
	EnvDetectorPython = "LABELKIT_DETECTOR_PYTHON"
	EnvDetectorModule = "LABELKIT_DETECTOR_MODULE"

	// Database filename
	DBFilename = "labelkit.db"

	// Detector defaults
	DefaultDetectorModule  = "labelkit_detector"
	DefaultDetectorTimeout = 120 // seconds
	DefaultProbeTimeout    = 30  // seconds
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	MediaDir() string
	DetectorPython() string
	DetectorModule() string
	DetectorTimeout() time.Duration
	ProbeTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string

	detectorPython string
	detectorModule string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.detectorPython = os.Getenv(EnvDetectorPython)

	if dm := os.Getenv(EnvDetectorModule); dm != "" {
		cfg.detectorModule = dm
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// MediaDir returns the directory holding uploaded images, thumbnails
// and mask files.
func (c *EnvConfig) MediaDir() string {
	return filepath.Join(c.dataDir, "media")
}

func (c *EnvConfig) DetectorPython() string {
	return c.detectorPython
}

func (c *EnvConfig) DetectorModule() string {
	if c.detectorModule != "" {
		return c.detectorModule
	}
	return DefaultDetectorModule
}

func (c *EnvConfig) DetectorTimeout() time.Duration {
	return time.Duration(DefaultDetectorTimeout) * time.Second
}

func (c *EnvConfig) ProbeTimeout() time.Duration {
	return time.Duration(DefaultProbeTimeout) * time.Second
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
