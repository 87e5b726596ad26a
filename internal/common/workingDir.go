package common

import (
	"os"
	"path/filepath"
)

func WorkingDir(wd *string) error {

	exe, err := os.Executable()
	if err != nil {
		return err
	}
	*wd, err = filepath.Abs(filepath.Dir(exe))
	if err != nil {
		return err
	}

	return nil
}

// DefaultConfigPath is <executable dir>/config/<name>, or config/<name>
// relative to the current directory when the executable can't be located.
func DefaultConfigPath(name string) string {
	var workDir string
	if err := WorkingDir(&workDir); err != nil {
		return filepath.Join("config", name)
	}
	return filepath.Join(workDir, "config", name)
}
