package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/causalgrid/internal/ctxlog"
)

// Serve loads the corpus, starts the HTTP API and, when enabled, the corpus
// watcher, then blocks until ctx is done. A corpus that fails to load is a
// startup error.
func (a *App) Serve(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Serve method started.")

	report, err := a.Load(ctx)
	if err != nil {
		if report != nil {
			for _, f := range report.Errors {
				a.logger.Error("Validation error.", "finding", f.String())
			}
		}
		_ = a.Close()
		return fmt.Errorf("initial load failed: %w", err)
	}

	if a.config.Watch {
		if err := a.Watch(ctx); err != nil {
			_ = a.Close()
			return fmt.Errorf("failed to watch corpus: %w", err)
		}
	}
	a.startServer()

	<-ctx.Done()
	a.logger.Info("Shutdown requested.")
	return a.Close()
}
