package validation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/specialistvlad/causalgrid/internal/ctxlog"
	"github.com/specialistvlad/causalgrid/internal/graph"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
	"github.com/specialistvlad/causalgrid/internal/registry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("causalgrid.validation")

// cancelEvery is how many items a check processes between context checks.
const cancelEvery = 256

// weightTolerance is how far composite weights may stray from summing to 1.
const weightTolerance = 1e-6

type check struct {
	name string
	run  func(ctx context.Context, snap *graph.Snapshot, emit func(Finding)) error
}

var checks = []check{
	{"schema", checkSchema},
	{"lineage", checkLineage},
	{"mechanisms", checkMechanisms},
	{"edges", checkEdges},
	{"tags", checkTags},
	{"composites", checkComposites},
	{"loops", checkLoops},
}

func tick(ctx context.Context, i int) error {
	if i%cancelEvery == 0 {
		return ctx.Err()
	}
	return nil
}

// Run validates snap. It returns ctx.Err() if the context is cancelled
// before every check has finished.
func Run(ctx context.Context, snap *graph.Snapshot) (*Report, error) {
	ctx, span := tracer.Start(ctx, "Validation.Run")
	defer span.End()
	start := time.Now()

	results := make([][]Finding, len(checks))
	g, gCtx := errgroup.WithContext(ctx)
	for i, c := range checks {
		g.Go(func() error {
			emit := func(f Finding) { results[i] = append(results[i], f) }
			if err := c.run(gCtx, snap, emit); err != nil {
				return fmt.Errorf("validation check %s: %w", c.name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	report := NewReport(snap.Version())
	for _, fs := range results {
		for _, f := range fs {
			report.Add(f)
		}
	}
	report.Sort()

	span.SetAttributes(
		attribute.Int("validation.errors", len(report.Errors)),
		attribute.Int("validation.warnings", len(report.Warnings)),
	)
	ctxlog.FromContext(ctx).Debug("Validation finished.",
		"version", snap.Version(),
		"errors", len(report.Errors),
		"warnings", len(report.Warnings),
		"duration", time.Since(start),
	)
	return report, nil
}

func checkSchema(ctx context.Context, snap *graph.Snapshot, emit func(Finding)) error {
	for i, n := range snap.Nodes() {
		if err := tick(ctx, i); err != nil {
			return err
		}
		if err := registry.ValidateNode(n); err != nil {
			emit(Finding{Severity: SeverityError, Code: CodeSchema, Nodes: []nodeid.ID{n.ID}, Message: err.Error(), Err: err})
		}
	}
	return nil
}

func checkLineage(ctx context.Context, snap *graph.Snapshot, emit func(Finding)) error {
	for i, ts := range snap.Tombstones() {
		if err := tick(ctx, i); err != nil {
			return err
		}
		_, err := snap.Resolve(ts.ID)
		var cycle *model.ConsistencyError
		switch {
		case errors.As(err, &cycle):
			emit(Finding{Severity: SeverityError, Code: CodeAliasCycle, Nodes: []nodeid.ID{ts.ID}, Message: err.Error(), Err: err})
		case errors.Is(err, model.ErrUnknownNode):
			emit(Finding{Severity: SeverityError, Code: CodeDanglingEdge, Nodes: []nodeid.ID{ts.ID, ts.Successor}, Message: fmt.Sprintf("tombstone successor: %v", err), Err: err})
		}
	}
	return nil
}

func checkMechanisms(ctx context.Context, snap *graph.Snapshot, emit func(Finding)) error {
	for i, u := range snap.Unresolved() {
		if err := tick(ctx, i); err != nil {
			return err
		}
		refErr := &model.ReferentialIntegrityError{MechanismID: u.Mechanism.ID, NodeID: u.NodeID, Endpoint: u.Endpoint, Cause: u.Err}
		code := CodeDanglingEdge
		if errors.Is(u.Err, model.ErrUnresolvable) {
			code = CodeOrphanMechanism
		}
		emit(Finding{Severity: SeverityError, Code: code, Nodes: []nodeid.ID{u.NodeID}, MechanismID: u.Mechanism.ID, Message: refErr.Error(), Err: refErr})
	}
	return nil
}

func checkEdges(ctx context.Context, snap *graph.Snapshot, emit func(Finding)) error {
	for i, e := range snap.Edges() {
		if err := tick(ctx, i); err != nil {
			return err
		}
		ends := []nodeid.ID{e.Source, e.Target}

		if e.SelfLoop {
			emit(Finding{Code: CodeSelfLoop, Nodes: ends[:1], MechanismID: e.ID,
				Message: fmt.Sprintf("node influences itself via %q", e.Pathway)})
		}

		for _, other := range e.Collapsed {
			m, _ := snap.Mechanism(other)
			if m != nil && m.Source == e.DeclaredSource && m.Target == e.DeclaredTarget {
				emit(Finding{Severity: SeverityError, Code: CodeDuplicateMechanism, Nodes: ends, MechanismID: other,
					Message: fmt.Sprintf("repeats mechanism %q with the same endpoints and pathway", e.ID),
					Err:     fmt.Errorf("%w: %q repeats %q", model.ErrDuplicateMechanism, other, e.ID)})
				continue
			}
			emit(Finding{Code: CodeCollapsedEdge, Nodes: ends, MechanismID: other,
				Message: fmt.Sprintf("resolves onto mechanism %q and is folded into it", e.ID)})
		}

		if e.Transform != "" {
			continue
		}
		src, _ := snap.RawNode(e.Source)
		tgt, _ := snap.RawNode(e.Target)
		if src == nil || tgt == nil {
			continue
		}
		if !model.Compatible(src.UnitFamily(), tgt.UnitFamily()) {
			err := &model.UnitMismatchError{MechanismID: e.ID, From: src.Unit, To: tgt.Unit}
			emit(Finding{Code: CodeUnitMismatch, Nodes: ends, MechanismID: e.ID,
				Message: fmt.Sprintf("%s (%s -> %s)", err.Error(), src.UnitFamily(), tgt.UnitFamily()), Err: err})
		}
	}
	return nil
}

func checkTags(ctx context.Context, snap *graph.Snapshot, emit func(Finding)) error {
	for i, n := range snap.ActiveNodes() {
		if err := tick(ctx, i); err != nil {
			return err
		}
		ids := []nodeid.ID{n.ID}
		if !n.Type.Known() {
			emit(Finding{Code: CodeUnknownType, Nodes: ids, Message: fmt.Sprintf("type %q is not a recognised variant", n.Type)})
		}
		if n.HasUnknownDomain() {
			emit(Finding{Code: CodeUnknownDomain, Nodes: ids, Message: fmt.Sprintf("domains %s include the %q placeholder", strings.Join(n.Domains, ", "), model.UnknownDomain)})
		}
		if n.Baseline.IsEmpty() {
			emit(Finding{Code: CodeMissingBaseline, Nodes: ids, Message: "no baseline figure recorded"})
		}
		if snap.OutDegree(n.ID) == 0 && snap.InDegree(n.ID) == 0 {
			emit(Finding{Code: CodeIsolatedNode, Nodes: ids, Message: "no active mechanism touches this node"})
		}
	}
	return nil
}

func checkComposites(ctx context.Context, snap *graph.Snapshot, emit func(Finding)) error {
	seen := make(map[nodeid.ID]bool)
	for i, ts := range snap.Tombstones() {
		if err := tick(ctx, i); err != nil {
			return err
		}
		if !ts.HasWeight() || seen[ts.Successor] {
			continue
		}
		seen[ts.Successor] = true
		comps := snap.Components(ts.Successor)
		sum := 0.0
		ids := []nodeid.ID{ts.Successor}
		for _, c := range comps {
			sum += c.Weight
			ids = append(ids, c.ID)
		}
		if math.Abs(sum-1) > weightTolerance {
			emit(Finding{Code: CodeCompositeWeights, Nodes: ids,
				Message: fmt.Sprintf("component weights of %q sum to %.6g, not 1", ts.Successor, sum)})
		}
	}
	return nil
}

func checkLoops(ctx context.Context, snap *graph.Snapshot, emit func(Finding)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, comp := range snap.Condensation().Cyclic() {
		if err := tick(ctx, i+1); err != nil {
			return err
		}
		if len(comp.Members) < 2 {
			continue
		}
		emit(Finding{Code: CodeFeedbackLoop, Nodes: comp.Members,
			Message: fmt.Sprintf("%d nodes form a feedback loop", len(comp.Members))})
	}
	return nil
}
