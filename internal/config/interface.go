package config

import (
	"context"
	"path/filepath"
	"strings"
)

// Loader is the interface for a format-specific record loader.
type Loader interface {
	// Extensions lists the file suffixes the loader understands.
	Extensions() []string
	// LoadFile parses a single file into a Model.
	LoadFile(ctx context.Context, path string) (*Model, error)
}

// MultiLoader dispatches files to the loader registered for their extension.
type MultiLoader struct {
	loaders []Loader
}

// NewMultiLoader combines loaders. Earlier loaders win on overlapping
// extensions.
func NewMultiLoader(loaders ...Loader) *MultiLoader {
	return &MultiLoader{loaders: loaders}
}

// Extensions returns the union of the loaders' extensions.
func (m *MultiLoader) Extensions() []string {
	var exts []string
	for _, l := range m.loaders {
		exts = append(exts, l.Extensions()...)
	}
	return exts
}

// For returns the loader handling path, or nil.
func (m *MultiLoader) For(path string) Loader {
	ext := strings.ToLower(filepath.Ext(path))
	for _, l := range m.loaders {
		for _, e := range l.Extensions() {
			if e == ext {
				return l
			}
		}
	}
	return nil
}
