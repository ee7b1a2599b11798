package propagation

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/specialistvlad/causalgrid/internal/ctxlog"
	"github.com/specialistvlad/causalgrid/internal/graph"
	"github.com/specialistvlad/causalgrid/internal/model"
	"github.com/specialistvlad/causalgrid/internal/nodeid"
)

// Simulate propagates the intervention through the snapshot and reports the
// change of every node it reaches. A divergent loop does not fail the run:
// its members and everything downstream are reported as diverged and
// listed in EffectReport.Divergence. Errors are returned for invalid input
// and for caller cancellation.
func Simulate(ctx context.Context, snap *graph.Snapshot, iv *model.Intervention, opts Options) (_ *EffectReport, err error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation options: %w", err)
	}
	if opts.Uncertainty == "" {
		opts.Uncertainty = ModeNone
	}

	ctx, span := tracer.Start(ctx, "Propagation.Simulate", trace.WithAttributes(
		attribute.String("intervention", iv.Name),
		attribute.String("uncertainty", string(opts.Uncertainty)),
		attribute.Int64("snapshot_version", int64(snap.Version())),
	))
	defer span.End()

	start := time.Now()
	var report *EffectReport
	defer func() {
		recordSimulationMetrics(ctx, time.Since(start), report, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "simulation failed")
		}
	}()

	logger := ctxlog.FromContext(ctx).With("intervention", iv.Name)

	deltas, err := resolveDeltas(snap, iv)
	if err != nil {
		return nil, err
	}
	s := buildSystem(snap, deltas)

	report = &EffectReport{
		Intervention:    iv.Name,
		SnapshotVersion: snap.Version(),
		Mode:            opts.Uncertainty,
	}

	loops := s.divergentLoops(snap.Condensation(), opts.Uncertainty == ModeInterval)
	var (
		loopMembers []nodeid.ID
		undecided   []loop
	)
	loopGain := 0.0
	for _, l := range loops {
		if !l.certain {
			undecided = append(undecided, l)
			logger.Debug("Feedback loop with mixed signs, relaxation decides.", "members", l.members, "gain", l.gain)
			continue
		}
		loopMembers = append(loopMembers, l.members...)
		loopGain = max(loopGain, l.gain)
		logger.Debug("Divergent feedback loop.", "members", l.members, "gain", l.gain)
	}
	structure := snap.Structure()
	diverged := s.exclude(structure, loopMembers)

	b := boundsOf(opts, start.Add(opts.Timeout))
	var (
		point  []float64
		lo, hi []float64
		out    relaxOutcome
	)
	if opts.Uncertainty == ModeInterval {
		lo, hi, out, err = relaxInterval(ctx, s, b)
		if err != nil {
			return nil, err
		}
		// The point estimate shares the interval run's deadline.
		var pointOut relaxOutcome
		point, pointOut, err = relax(ctx, s, nil, b)
		if err != nil {
			return nil, err
		}
		out = mergeOutcomes(out, pointOut)
	} else {
		point, out, err = relax(ctx, s, nil, b)
		if err != nil {
			return nil, err
		}
	}

	status := make([]Status, len(s.ids))
	for i := range status {
		status[i] = StatusConverged
	}
	for _, id := range diverged {
		status[s.index[id]] = StatusDiverged
	}
	if !out.converged {
		var moving []nodeid.ID
		for i, id := range s.ids {
			if s.active[i] && out.moving[i] {
				moving = append(moving, id)
			}
		}
		affected := s.exclude(structure, moving)
		mark := StatusDiverged
		if out.timedOut {
			mark = StatusTimedOut
			report.TimedOut = true
			logger.Warn("Simulation timed out, returning partial result.", "iterations", out.iterations, "nodes", len(affected))
		} else {
			diverged = append(diverged, affected...)
			slices.Sort(diverged)
			for _, l := range undecided {
				if out.moving[s.index[l.members[0]]] {
					loopGain = max(loopGain, l.gain)
				}
			}
		}
		for _, id := range affected {
			status[s.index[id]] = mark
		}
	}
	report.Iterations = out.iterations
	report.Converged = out.converged && len(diverged) == 0

	if opts.Uncertainty == ModeMonteCarlo && !out.timedOut {
		var kept int
		lo, hi, kept, err = monteCarlo(ctx, s, opts, b)
		if err != nil {
			return nil, err
		}
		report.Samples = kept
		report.DroppedSamples = opts.Samples - kept
		if report.DroppedSamples > 0 {
			logger.Debug("Monte Carlo samples dropped.", "dropped", report.DroppedSamples)
		}
	}

	paths, err := topPaths(ctx, snap, s, opts.TopK, opts.MaxPathHops, opts.PathBudget)
	if err != nil {
		return nil, err
	}

	report.Effects = make([]Effect, len(s.ids))
	for i, id := range s.ids {
		e := Effect{Node: id, Status: status[i], Paths: paths[id]}
		if status[i] == StatusDiverged {
			e.Delta, e.Clamped, e.Low, e.High = math.NaN(), math.NaN(), math.NaN(), math.NaN()
			e.Paths = nil
			report.Effects[i] = e
			continue
		}
		e.Delta = point[i]
		if n, ok := snap.RawNode(id); ok {
			e.Clamped = clampDelta(n, e.Delta)
		} else {
			e.Clamped = e.Delta
		}
		e.Low, e.High = e.Delta, e.Delta
		if lo != nil {
			e.Low, e.High = lo[i], hi[i]
		}
		report.Effects[i] = e
	}

	if len(diverged) > 0 {
		report.Diverged = diverged
		report.Divergence = &model.DivergentSimulationError{
			Nodes:      diverged,
			Iterations: out.iterations,
			LoopGain:   loopGain,
		}
		span.SetAttributes(attribute.Int("diverged", len(diverged)))
	}
	report.Elapsed = time.Since(start)
	span.SetAttributes(attribute.Int("iterations", report.Iterations), attribute.Int("effects", len(report.Effects)))
	logger.Debug("Simulation finished.", "iterations", report.Iterations, "effects", len(report.Effects), "diverged", len(diverged), "elapsed", report.Elapsed)
	return report, nil
}

// mergeOutcomes combines two relaxations that ran over the same system.
func mergeOutcomes(a, b relaxOutcome) relaxOutcome {
	out := relaxOutcome{
		iterations: max(a.iterations, b.iterations),
		converged:  a.converged && b.converged,
		timedOut:   a.timedOut || b.timedOut,
		moving:     make([]bool, len(a.moving)),
	}
	for i := range out.moving {
		out.moving[i] = a.moving[i] || b.moving[i]
	}
	return out
}
