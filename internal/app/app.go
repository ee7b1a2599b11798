package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/causalgrid/internal/badgerstore"
	"github.com/specialistvlad/causalgrid/internal/config"
	"github.com/specialistvlad/causalgrid/internal/ctxlog"
	"github.com/specialistvlad/causalgrid/internal/engine"
	"github.com/specialistvlad/causalgrid/internal/graph"
	"github.com/specialistvlad/causalgrid/internal/hcl"
	"github.com/specialistvlad/causalgrid/internal/inmemorystore"
	"github.com/specialistvlad/causalgrid/internal/inmemorytopology"
	"github.com/specialistvlad/causalgrid/internal/nodestore"
	"github.com/specialistvlad/causalgrid/internal/yamlcfg"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	ctx    context.Context
	config *Config

	loader    *config.MultiLoader
	history   nodestore.Store
	telemetry *telemetry

	// engine is swapped as a whole on reload; readers never see a
	// half-loaded graph.
	engine   atomic.Pointer[engine.Engine]
	reloadMu sync.Mutex

	httpServer *http.Server
	watcher    *corpusWatcher
	closeOnce  sync.Once
}

// NewApp is the constructor for the main application. It returns an App
// with its own isolated logger, telemetry providers and history store, and
// an empty engine. Call Load to read the corpus.
func NewApp(outW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	tel, err := newTelemetry(outW, cfg.TraceStdout)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	logger.Debug("Telemetry configured.", "trace_stdout", cfg.TraceStdout)

	history, err := openHistory(cfg, logger)
	if err != nil {
		_ = tel.shutdown(ctx)
		return nil, err
	}

	a := &App{
		outW:      outW,
		logger:    logger,
		ctx:       ctx,
		config:    cfg,
		loader:    config.NewMultiLoader(hcl.NewLoader(), yamlcfg.NewLoader()),
		history:   history,
		telemetry: tel,
	}
	a.engine.Store(a.newEngine())
	return a, nil
}

func openHistory(cfg *Config, logger *slog.Logger) (nodestore.Store, error) {
	if cfg.StorePath == "" {
		logger.Debug("Using in-memory history store.")
		return inmemorystore.New(), nil
	}
	bcfg := badgerstore.DefaultConfig(cfg.StorePath)
	bcfg.Logger = logger.With("component", "badger")
	store, err := badgerstore.Open(bcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store at %s: %w", cfg.StorePath, err)
	}
	logger.Info("History store opened.", "path", cfg.StorePath)
	return store, nil
}

func (a *App) newEngine() *engine.Engine {
	return engine.New(graph.New(a.history, inmemorytopology.New()), a.config.Simulation)
}

// Context returns the application context carrying its logger.
func (a *App) Context() context.Context { return a.ctx }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Config returns the configuration the app was built with.
func (a *App) Config() *Config { return a.config }

// Engine returns the engine currently serving reads.
func (a *App) Engine() *engine.Engine { return a.engine.Load() }

// Close stops the watcher and the HTTP server, flushes telemetry and closes
// the history store. It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		if a.watcher != nil {
			a.watcher.stop()
		}
		if err := a.closeServer(); err != nil {
			errs = append(errs, err)
		}
		if err := a.telemetry.shutdown(a.ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
		if err := a.history.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close history store: %w", err))
		}
		a.logger.Debug("App closed.")
	})
	return errors.Join(errs...)
}
