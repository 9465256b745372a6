// Package dotdir manages the .docqa/ and ~/.docqa directories.
//
// The dot directory holds config.toml, credentials.toml and, unless another
// path is configured, the persisted sqlite-vec index built by docqa ingest.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the name of the docqa directory.
	DirName = ".docqa"

	// IndexFile is the default file name of the persisted vector index.
	IndexFile = "index.sqlite"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .docqa/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.docqa/ dir
//  3. Home ~/.docqa/ dir
//  4. If none found, attempt to create ~/.docqa/ dir
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, DirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, DirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating docqa directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// IndexPath returns the default location of the persisted index inside the
// resolved .docqa/ directory.
func (m *Manager) IndexPath(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, IndexFile), nil
}

// localDirExists checks whether a .docqa/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, DirName))
	return err == nil && info.IsDir()
}
