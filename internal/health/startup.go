// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fondat/fondat-core/internal/log"
)

// CheckDataDir verifies that the directory holding path exists and is writable.
func CheckDataDir(path string) error {
	logger := log.WithComponent("startup-check")
	dir := filepath.Dir(filepath.Clean(path))

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", dir)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dir)
	}

	// Check write permissions by creating a temp file
	probe, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", dir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	logger.Debug().Str("path", dir).Msg("data directory is writable")
	return nil
}
