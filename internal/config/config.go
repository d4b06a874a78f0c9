// Package config handles application paths and environment configuration.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// RoutingConfigFileName is the routing config file the proxy runtime reads
	RoutingConfigFileName = "routing.json"
	// StateDBFileName is the SQLite database holding the persisted store state
	StateDBFileName = "state.sqlite"
	// DataDirName is the directory name under user home
	DataDirName = ".profilehub"
	// EnvDataDir is the environment variable for data directory (highest priority)
	EnvDataDir = "DATA"
	// EnvPort is the environment variable for the IPC port (highest priority)
	EnvPort = "PORT"
)

// ErrInvalidPort is returned for ports outside 1-65535.
var ErrInvalidPort = errors.New("port must be between 1 and 65535")

// GetDataDir returns the data directory path
// Priority order:
// 1. DATA environment variable (highest priority)
// 2. User home directory under .profilehub
// 3. Current directory as a last resort
func GetDataDir() string {
	if envDir := os.Getenv(EnvDataDir); envDir != "" {
		if err := os.MkdirAll(envDir, 0755); err == nil {
			return envDir
		}
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		dataDir := filepath.Join(homeDir, DataDirName)
		os.MkdirAll(dataDir, 0755)
		return dataDir
	}

	return "."
}

// RoutingConfigPath returns the path of the routing config file inside the
// data directory.
func RoutingConfigPath(dataDir string) string {
	return filepath.Join(dataDir, RoutingConfigFileName)
}

// StateDBPath returns the path of the state database inside the data
// directory.
func StateDBPath(dataDir string) string {
	return filepath.Join(dataDir, StateDBFileName)
}

// GetPortFromEnv returns the port from environment variable if set
// Returns 0 if not set or invalid
func GetPortFromEnv() int {
	if envPort := os.Getenv(EnvPort); envPort != "" {
		if port, err := strconv.Atoi(envPort); err == nil && port >= 1 && port <= 65535 {
			return port
		}
	}
	return 0
}

// ValidatePort checks if a port number is valid (1-65535)
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return ErrInvalidPort
	}
	return nil
}
