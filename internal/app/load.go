package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/specialistvlad/causalgrid/internal/config"
	"github.com/specialistvlad/causalgrid/internal/ctxlog"
	"github.com/specialistvlad/causalgrid/internal/validation"
)

var reloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "causalgrid",
	Name:      "corpus_reloads_total",
	Help:      "Corpus reloads by outcome.",
}, []string{"outcome"})

// LoadCorpus reads every record file under the configured paths.
func (a *App) LoadCorpus(ctx context.Context) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading corpus...", "paths", a.config.Paths)

	m, err := a.loader.LoadPaths(ctx, a.config.Paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	logger.Debug("Corpus read.", "records", m.RecordCount(), "interventions", len(m.Interventions))
	return m, nil
}

// Load reads the corpus into the current engine. The report is returned
// even when validation fails.
func (a *App) Load(ctx context.Context) (*validation.Report, error) {
	m, err := a.LoadCorpus(ctx)
	if err != nil {
		return nil, err
	}
	_, report, err := a.Engine().Load(ctx, m)
	return report, err
}

// Reload builds a fresh engine from the corpus and swaps it in only when it
// loads cleanly. A rejected reload leaves the serving engine untouched.
func (a *App) Reload(ctx context.Context) (*validation.Report, error) {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()
	logger := ctxlog.FromContext(ctx)

	m, err := a.LoadCorpus(ctx)
	if err != nil {
		reloadsTotal.WithLabelValues("rejected").Inc()
		logger.Warn("Reload rejected, keeping previous graph.", "error", err)
		return nil, err
	}
	next := a.newEngine()
	snap, report, err := next.Load(ctx, m)
	if err != nil {
		reloadsTotal.WithLabelValues("rejected").Inc()
		logger.Warn("Reload rejected, keeping previous graph.", "error", err)
		return report, err
	}
	a.engine.Store(next)
	reloadsTotal.WithLabelValues("applied").Inc()
	logger.Info("Corpus reloaded.", "version", snap.Version(), "nodes", len(snap.Nodes()), "edges", len(snap.Edges()))
	return report, nil
}
