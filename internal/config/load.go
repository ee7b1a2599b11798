package config

import (
	"context"
	"fmt"

	"github.com/specialistvlad/causalgrid/internal/ctxlog"
	"github.com/specialistvlad/causalgrid/internal/fsutil"
)

// LoadPaths discovers every file the loader understands under paths and
// merges them into one Model.
func (m *MultiLoader) LoadPaths(ctx context.Context, paths ...string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Record loader started.", "path_count", len(paths))

	files, err := fsutil.FindFilesByExtension(paths, m.Extensions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to discover record files: %w", err)
	}
	logger.Debug("Discovered record files.", "count", len(files))

	out := NewModel()
	for _, file := range files {
		loader := m.For(file)
		if loader == nil {
			continue
		}
		fileModel, err := loader.LoadFile(ctx, file)
		if err != nil {
			return nil, err
		}
		if err := out.Merge(fileModel); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}

	if len(files) == 0 {
		logger.Warn("No record files found.", "paths", paths)
	}
	logger.Debug("Record loading complete.", "nodes", len(out.Nodes), "mechanisms", len(out.Mechanisms),
		"consolidations", len(out.Consolidations), "interventions", len(out.Interventions))
	return out, nil
}
