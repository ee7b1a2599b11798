package propagation

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
)

// triangular draws from the triangular distribution on [lo, hi] with the
// given mode. A degenerate interval returns the mode.
func triangular(r *rand.Rand, lo, mode, hi float64) float64 {
	if hi <= lo {
		return mode
	}
	u := r.Float64()
	c := (mode - lo) / (hi - lo)
	if u < c {
		return lo + math.Sqrt(u*(hi-lo)*(mode-lo))
	}
	return hi - math.Sqrt((1-u)*(hi-lo)*(hi-mode))
}

type sampleResult struct {
	values []float64
	ok     bool
}

// monteCarlo relaxes the system once per sample with coefficients drawn
// from each edge's confidence interval. Sample i always uses the PCG stream
// (seed, i), so results do not depend on worker scheduling. Samples that do
// not settle within the bounds are dropped.
func monteCarlo(ctx context.Context, s *system, o Options, b bounds) (lo, hi []float64, kept int, err error) {
	workers := o.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]sampleResult, o.Samples)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < o.Samples; i++ {
		g.Go(func() error {
			r := rand.New(rand.NewPCG(o.Seed, uint64(i)))
			coef := make([]float64, len(s.edges))
			for k, e := range s.edges {
				coef[k] = triangular(r, e.Low, e.Coefficient, e.High)
			}
			values, out, err := relax(gCtx, s, coef, b)
			if err != nil {
				return err
			}
			results[i] = sampleResult{values: values, ok: out.converged}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, 0, err
	}

	n := len(s.ids)
	lo = make([]float64, n)
	hi = make([]float64, n)
	tail := (1 - o.Confidence) / 2
	column := make([]float64, 0, len(results))
	for t := 0; t < n; t++ {
		column = column[:0]
		for _, r := range results {
			if r.ok {
				column = append(column, r.values[t])
			}
		}
		if len(column) == 0 {
			lo[t], hi[t] = math.NaN(), math.NaN()
			continue
		}
		slices.Sort(column)
		lo[t] = percentile(column, tail)
		hi[t] = percentile(column, 1-tail)
	}
	for _, r := range results {
		if r.ok {
			kept++
		}
	}
	return lo, hi, kept, nil
}

// percentile interpolates linearly between closest ranks of sorted.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	i := int(math.Floor(pos))
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(i)
	return sorted[i] + frac*(sorted[i+1]-sorted[i])
}
