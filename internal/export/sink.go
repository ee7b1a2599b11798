package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/specialistvlad/causalgrid/internal/ctxlog"
)

// Sink receives exported documents.
type Sink interface {
	Write(ctx context.Context, doc *Document) error
}

// FileSink writes the document to Path, in YAML when the extension says so
// and JSON otherwise. The file is replaced atomically.
type FileSink struct {
	Path string
}

func (s *FileSink) Write(ctx context.Context, doc *Document) error {
	logger := ctxlog.FromContext(ctx).With("sink", "file", "path", s.Path)

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := doc.Encode(tmp, FormatFromPath(s.Path)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to flush export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	logger.Info("Snapshot exported.", "version", doc.SnapshotVersion, "nodes", len(doc.Nodes), "mechanisms", len(doc.Mechanisms))
	return nil
}

// ReadFile decodes and verifies a document written by FileSink.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()
	return Decode(f, FormatFromPath(path))
}
