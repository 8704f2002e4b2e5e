package file

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns the default tidemark data directory,
// ~/.local/share/tidemark.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "tidemark"), nil
}

// writeFileAtomic writes data to path via a temporary sibling file and an
// atomic rename, so readers never observe a partially written file.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
