package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/armbench/internal/constants"
)

// DataDir returns the per-user armbench directory.
// On Unix: ~/.armbench
// On Windows: %USERPROFILE%\.armbench
func DataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.DirName), nil
}

// DefaultDBPath returns the run database used when no path is given,
// ~/.armbench/runs.db.
func DefaultDBPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.DBFileName), nil
}

// EnsureDataDir creates the per-user armbench directory if it doesn't exist.
// Returns nil if the directory already exists or was successfully created.
func EnsureDataDir() error {
	dir, err := DataDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", constants.DirName, err)
	}

	return nil
}
