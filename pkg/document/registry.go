package document

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Registry maps file extensions to loaders.
type Registry struct {
	loaders map[string]Loader
}

// NewRegistry creates a registry holding the given loaders. Later loaders
// replace earlier ones for the same extension.
func NewRegistry(loaders ...Loader) *Registry {
	r := &Registry{loaders: make(map[string]Loader)}
	for _, l := range loaders {
		r.Register(l)
	}
	return r
}

// DefaultRegistry returns a registry with every built-in loader.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewDocxLoader(),
		NewPDFLoader(),
		NewTextLoader(),
	)
}

// Register adds l for each of its extensions.
func (r *Registry) Register(l Loader) {
	for _, ext := range l.Extensions() {
		r.loaders[normalizeExt(ext)] = l
	}
}

// Extensions returns the sorted list of registered extensions.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// LoaderFor returns the loader registered for path's extension.
func (r *Registry) LoaderFor(path string) (Loader, bool) {
	l, ok := r.loaders[normalizeExt(filepath.Ext(path))]
	return l, ok
}

// Load dispatches path to its loader.
func (r *Registry) Load(ctx context.Context, path string) ([]Document, error) {
	l, ok := r.LoaderFor(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return l.Load(ctx, path)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
