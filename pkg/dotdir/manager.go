// Package dotdir manages the .recall/ and ~/.recall directories.
//
// The directory holds config.toml and the CLI's current session pointer.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirName = ".recall"

	// EnvDir names a directory used in place of ./.recall and ~/.recall.
	EnvDir = "RECALL_DIR"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path of the recall directory, creating it if
// needed. Precedence:
//  1. overrideDir
//  2. $RECALL_DIR
//  3. ./.recall when it already exists
//  4. ~/.recall
func (m *Manager) Target(overrideDir string) (string, error) {
	dir, err := m.resolve(overrideDir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating recall directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}

// Path returns name joined onto Target(overrideDir).
func (m *Manager) Path(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (m *Manager) resolve(overrideDir string) (string, error) {
	if overrideDir != "" {
		return overrideDir, nil
	}
	if env := os.Getenv(EnvDir); env != "" {
		return env, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	local := filepath.Join(cwd, dirName)
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}
