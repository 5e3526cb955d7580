package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nfmesh/scp/pkg/config"
)

// Init writes the commented sample configuration to path (the default
// location when empty). Existing files are preserved unless force is
// set.
func Init(path string, force bool) error {
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(config.SampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Wrote sample configuration to %s\n", path)
	return nil
}
