package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/specialistvlad/causalgrid/internal/config"
	"github.com/specialistvlad/causalgrid/internal/ctxlog"
	"github.com/specialistvlad/causalgrid/internal/export"
	"github.com/specialistvlad/causalgrid/internal/graph"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/specialistvlad/causalgrid/internal/propagation"
	"github.com/specialistvlad/causalgrid/internal/query"
	"github.com/specialistvlad/causalgrid/internal/validation"
)

var tracer = otel.Tracer("causalgrid.engine")

// ErrValidationFailed is returned when a load or import is rejected because
// its report has errors. The report itself is returned alongside.
var ErrValidationFailed = errors.New("validation failed")

// ErrUnknownIntervention is returned for an intervention name that was not
// loaded.
var ErrUnknownIntervention = errors.New("unknown intervention")

// Engine owns one graph and the interventions loaded with it.
type Engine struct {
	graph      graph.Graph
	simulation propagation.Options

	mu            sync.RWMutex
	interventions map[string]*model.Intervention
	report        *validation.Report
}

// New creates an engine over g with the default simulation options.
func New(g graph.Graph, opts propagation.Options) *Engine {
	return &Engine{
		graph:         g,
		simulation:    opts,
		interventions: make(map[string]*model.Intervention),
	}
}

// Graph returns the underlying graph.
func (e *Engine) Graph() graph.Graph { return e.graph }

// Snapshot returns the current published snapshot.
func (e *Engine) Snapshot() *graph.Snapshot { return e.graph.Snapshot() }

// SimulationOptions returns the defaults used by Simulate.
func (e *Engine) SimulationOptions() propagation.Options { return e.simulation }

// Report returns the validation report of the last successful load, or nil.
func (e *Engine) Report() *validation.Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.report
}

// Load applies the records of m in one write: nodes, then consolidations,
// then mechanisms. Every record that fails is reported as one error finding
// and nothing is published. Otherwise the candidate snapshot is validated
// and published only when the report has no errors. The returned error
// wraps ErrValidationFailed together with the typed errors of the findings.
func (e *Engine) Load(ctx context.Context, m *config.Model) (_ *graph.Snapshot, _ *validation.Report, err error) {
	ctx, span := tracer.Start(ctx, "Engine.Load", trace.WithAttributes(
		attribute.Int("nodes", len(m.Nodes)),
		attribute.Int("mechanisms", len(m.Mechanisms)),
		attribute.Int("consolidations", len(m.Consolidations)),
	))
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load failed")
		}
	}()
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading records.", "records", m.RecordCount())

	var (
		records *validation.Report
		report  *validation.Report
	)
	snap, err := e.graph.Write(ctx, func(tx *graph.Tx) error {
		records = applyRecords(tx, m)
		if !records.OK() {
			return ErrValidationFailed
		}
		return nil
	}, e.validate(&report))

	switch {
	case records != nil && !records.OK():
		records.Sort()
		logger.Warn("Records rejected, nothing loaded.", "errors", len(records.Errors))
		return nil, records, fmt.Errorf("%w: %w", ErrValidationFailed, records.Err())
	case err != nil && report != nil && !report.OK():
		logger.Warn("Validation failed, nothing published.", "errors", len(report.Errors), "warnings", len(report.Warnings))
		return nil, report, fmt.Errorf("%w: %w", ErrValidationFailed, report.Err())
	case err != nil:
		return nil, report, err
	}

	if report == nil {
		// Nothing changed, so the write published nothing and ran no checks.
		if report, err = validation.Run(ctx, snap); err != nil {
			return nil, nil, err
		}
	}

	e.mu.Lock()
	maps.Copy(e.interventions, m.Interventions)
	e.report = report
	e.mu.Unlock()

	logger.Info("Records loaded.", "version", snap.Version(), "nodes", len(snap.Nodes()),
		"edges", len(snap.Edges()), "warnings", len(report.Warnings))
	return snap, report, nil
}

// validate returns a write check that runs the validation engine on the
// candidate and keeps its report.
func (e *Engine) validate(out **validation.Report) graph.Check {
	return func(ctx context.Context, candidate *graph.Snapshot) error {
		report, err := validation.Run(ctx, candidate)
		if err != nil {
			return err
		}
		*out = report
		if !report.OK() {
			return ErrValidationFailed
		}
		return nil
	}
}

// applyRecords applies every record to tx and reports one finding per
// record that fails. Failed records leave tx untouched.
func applyRecords(tx *graph.Tx, m *config.Model) *validation.Report {
	report := validation.NewReport(0)
	for _, n := range m.Nodes {
		if _, err := tx.Register(n); err != nil {
			report.Add(validation.RecordFinding("node", string(n.ID), err))
		}
	}
	for _, c := range m.Consolidations {
		if err := tx.Consolidate(c); err != nil {
			report.Add(validation.RecordFinding("consolidation", c.Name, err))
		}
	}
	for _, spec := range m.Mechanisms {
		if _, err := tx.AddMechanism(spec); err != nil {
			id := spec.ID
			var ref *model.ReferentialIntegrityError
			if errors.As(err, &ref) {
				id = string(ref.MechanismID)
			}
			report.Add(validation.RecordFinding("mechanism", id, err))
		}
	}
	return report
}

// Validate re-runs the validation engine on the current snapshot.
func (e *Engine) Validate(ctx context.Context) (*validation.Report, error) {
	return validation.Run(ctx, e.Snapshot())
}

// Intervention returns a loaded intervention by name.
func (e *Engine) Intervention(name string) (*model.Intervention, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	iv, ok := e.interventions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntervention, name)
	}
	return iv, nil
}

// Interventions lists the loaded intervention names, sorted.
func (e *Engine) Interventions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Sorted(maps.Keys(e.interventions))
}

// Simulate runs iv against the current snapshot with the engine's default
// options.
func (e *Engine) Simulate(ctx context.Context, iv *model.Intervention) (*propagation.EffectReport, error) {
	return e.SimulateWith(ctx, iv, e.simulation)
}

// SimulateWith runs iv with explicit options.
func (e *Engine) SimulateWith(ctx context.Context, iv *model.Intervention, opts propagation.Options) (*propagation.EffectReport, error) {
	report, err := propagation.Simulate(ctx, e.Snapshot(), iv, opts)
	if err != nil {
		return nil, err
	}
	if report.Divergence != nil {
		ctxlog.FromContext(ctx).Warn("Simulation diverged.", "intervention", iv.Name, "nodes", report.Diverged)
	}
	return report, nil
}

// Descendants queries the current snapshot.
func (e *Engine) Descendants(ctx context.Context, id nodeid.ID, opts ...query.Option) (*query.ReachResult, error) {
	return query.Descendants(ctx, e.Snapshot(), id, opts...)
}

// Ancestors queries the current snapshot.
func (e *Engine) Ancestors(ctx context.Context, id nodeid.ID, opts ...query.Option) (*query.ReachResult, error) {
	return query.Ancestors(ctx, e.Snapshot(), id, opts...)
}

// StrongestPath queries the current snapshot.
func (e *Engine) StrongestPath(ctx context.Context, from, to nodeid.ID, opts ...query.Option) (*query.StrongestResult, error) {
	return query.StrongestPath(ctx, e.Snapshot(), from, to, opts...)
}

// FindPaths queries the current snapshot.
func (e *Engine) FindPaths(ctx context.Context, from, to nodeid.ID, opts ...query.Option) (*query.PathResult, error) {
	return query.FindPaths(ctx, e.Snapshot(), from, to, opts...)
}

// ScaleCrossingChains queries the current snapshot.
func (e *Engine) ScaleCrossingChains(ctx context.Context, from, to model.Scale, opts ...query.Option) (*query.ChainResult, error) {
	return query.ScaleCrossingChains(ctx, e.Snapshot(), from, to, opts...)
}

// Export copies the current snapshot into a document.
func (e *Engine) Export(ctx context.Context) *export.Document {
	_, span := tracer.Start(ctx, "Engine.Export")
	defer span.End()
	return export.FromSnapshot(e.Snapshot())
}

// ExportTo writes the current snapshot to every sink, stopping at the first
// failure.
func (e *Engine) ExportTo(ctx context.Context, sinks ...export.Sink) (*export.Document, error) {
	doc := e.Export(ctx)
	for _, s := range sinks {
		if err := s.Write(ctx, doc); err != nil {
			return doc, err
		}
	}
	return doc, nil
}

// Import restores doc into the graph. The graph must be empty. The restored
// snapshot is validated like a load and published only when it passes.
func (e *Engine) Import(ctx context.Context, doc *export.Document) (*graph.Snapshot, *validation.Report, error) {
	ctx, span := tracer.Start(ctx, "Engine.Import", trace.WithAttributes(attribute.String("document", doc.ID.String())))
	defer span.End()

	if n := len(e.Snapshot().Nodes()); n > 0 {
		return nil, nil, fmt.Errorf("import needs an empty graph, current snapshot has %d nodes", n)
	}
	var report *validation.Report
	snap, err := e.graph.Write(ctx, func(tx *graph.Tx) error {
		return export.Restore(tx, doc)
	}, e.validate(&report))
	if err != nil {
		if report != nil && !report.OK() {
			return nil, report, fmt.Errorf("%w: %w", ErrValidationFailed, report.Err())
		}
		return nil, report, err
	}
	if report == nil {
		if report, err = validation.Run(ctx, snap); err != nil {
			return nil, nil, err
		}
	}
	e.mu.Lock()
	e.report = report
	e.mu.Unlock()
	ctxlog.FromContext(ctx).Info("Snapshot imported.", "document", doc.ID, "version", snap.Version())
	return snap, report, nil
}
