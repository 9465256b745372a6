package document

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SkippedFile records a file that matched a loader but could not be read.
type SkippedFile struct {
	Path string
	Err  error
}

// DirResult is the outcome of a directory load.
type DirResult struct {
	Documents []Document
	Skipped   []SkippedFile
}

// DirLoader walks a documents root and loads every file with a registered
// extension.
type DirLoader struct {
	registry   *Registry
	extensions map[string]bool
	logger     *slog.Logger
}

// DirLoaderConfig configures a DirLoader.
type DirLoaderConfig struct {
	// Registry resolves loaders. Defaults to DefaultRegistry.
	Registry *Registry

	// Extensions restricts the walk to these extensions. Empty means every
	// registered extension.
	Extensions []string

	Logger *slog.Logger
}

// NewDirLoader creates a DirLoader.
func NewDirLoader(c DirLoaderConfig) *DirLoader {
	reg := c.Registry
	if reg == nil {
		reg = DefaultRegistry()
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var exts map[string]bool
	if len(c.Extensions) > 0 {
		exts = make(map[string]bool, len(c.Extensions))
		for _, ext := range c.Extensions {
			exts[normalizeExt(ext)] = true
		}
	}

	return &DirLoader{registry: reg, extensions: exts, logger: logger}
}

// Load walks root in lexical order. Files that fail to load are logged and
// reported in DirResult.Skipped; only an unusable root is an error.
func (d *DirLoader) Load(ctx context.Context, root string) (*DirResult, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return nil, fmt.Errorf("stat documents root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootNotFound, root)
	}

	result := &DirResult{}
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			d.logger.Warn("skipping unreadable path", "path", path, "error", walkErr)
			result.Skipped = append(result.Skipped, SkippedFile{Path: path, Err: walkErr})
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		name := entry.Name()
		if entry.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		// Office lock files and dotfiles.
		if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
			return nil
		}
		if !d.accepts(path) {
			return nil
		}

		docs, err := d.registry.Load(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Warn("skipping document", "path", path, "error", err)
			result.Skipped = append(result.Skipped, SkippedFile{Path: path, Err: err})
			return nil
		}

		d.logger.Debug("loaded document", "path", path, "parts", len(docs))
		result.Documents = append(result.Documents, docs...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk documents root: %w", err)
	}

	return result, nil
}

func (d *DirLoader) accepts(path string) bool {
	ext := normalizeExt(filepath.Ext(path))
	if d.extensions != nil && !d.extensions[ext] {
		return false
	}
	_, ok := d.registry.LoaderFor(path)
	return ok
}
