package pathing

import (
	"os"
	"path/filepath"
)

const (
	defaultDataDir   = "/var/lib/european_smart_meter"
	defaultConfigDir = "/etc/european_smart_meter"
)

// EnsureDirs creates the directories the binaries write to.
func EnsureDirs() error {
	// Directories that must exist:
	dirs := []string{
		GetConfigDir(),
		GetDataDir(),
	}

	// Create all directories
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func GetMeterDbPath() string {
	// Join path
	return filepath.Join(GetDataDir(), "esm-meter.db")
}

// GetDataDir can be overridden with ESM_DATA_DIR.
func GetDataDir() string {
	if dir := os.Getenv("ESM_DATA_DIR"); dir != "" {
		return dir
	}
	return defaultDataDir
}

// GetConfigDir can be overridden with ESM_CONFIG_DIR.
func GetConfigDir() string {
	if dir := os.Getenv("ESM_CONFIG_DIR"); dir != "" {
		return dir
	}
	return defaultConfigDir
}
