package sync

import (
	"fmt"
	"os"
	"path/filepath"

	"profilehub/internal/routing"
)

// FileConfigSink writes snapshots to the config file the proxy runtime reads.
// Writes go through a temp file and rename so the runtime never observes a
// partially written config.
type FileConfigSink struct {
	path string
}

// NewFileConfigSink creates a sink writing to the given path.
func NewFileConfigSink(path string) *FileConfigSink {
	return &FileConfigSink{path: path}
}

// Path returns the destination path.
func (s *FileConfigSink) Path() string {
	return s.path
}

// WriteConfig serializes the snapshot and atomically replaces the config
// file.
func (s *FileConfigSink) WriteConfig(cfg *routing.RoutingConfig) error {
	if s.path == "" {
		return fmt.Errorf("config path is empty")
	}

	data, err := cfg.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize routing config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}
