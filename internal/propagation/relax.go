package propagation

import (
	"context"
	"math"
	"time"
)

// checkEvery is how many iterations pass between deadline checks.
const checkEvery = 16

type relaxOutcome struct {
	iterations int
	converged  bool
	timedOut   bool
	// moving is true for nodes whose last update was at least epsilon.
	moving []bool
}

// bounds carries the stopping rules of one relaxation.
type bounds struct {
	damping  float64
	epsilon  float64
	maxIter  int
	deadline time.Time
}

func boundsOf(o Options, deadline time.Time) bounds {
	return bounds{damping: o.Damping, epsilon: o.Epsilon, maxIter: o.MaxIterations, deadline: deadline}
}

// relax runs the damped Jacobi iteration over the active nodes of s. coef,
// when non-nil, overrides the coefficient of every edge by index. The
// returned values are zero for inactive nodes.
func relax(ctx context.Context, s *system, coef []float64, b bounds) ([]float64, relaxOutcome, error) {
	n := len(s.ids)
	value := make([]float64, n)
	next := make([]float64, n)
	for i := range value {
		if s.active[i] {
			value[i] = s.delta[i]
		}
	}
	out := relaxOutcome{moving: make([]bool, n)}
	gamma := b.damping

	for iter := 1; iter <= b.maxIter; iter++ {
		if iter%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, out, err
			}
			if time.Now().After(b.deadline) {
				out.timedOut = true
				return value, out, nil
			}
		}

		maxDiff := 0.0
		for t := 0; t < n; t++ {
			if !s.active[t] {
				continue
			}
			sum := 0.0
			for _, tm := range s.in[t] {
				if !s.active[tm.src] {
					continue
				}
				k := tm.coef
				if coef != nil {
					k = coef[tm.edge]
				}
				sum += k * value[tm.src]
			}
			next[t] = (1-gamma)*value[t] + gamma*(s.delta[t]+sum)
			diff := math.Abs(next[t] - value[t])
			out.moving[t] = diff >= b.epsilon || math.IsNaN(diff)
			maxDiff = max(maxDiff, diff)
		}
		value, next = next, value
		out.iterations = iter
		if maxDiff < b.epsilon {
			out.converged = true
			return value, out, nil
		}
	}
	return value, out, nil
}

// relaxInterval runs the same iteration on interval arithmetic, using each
// edge's coefficient interval. Perturbations are exact.
func relaxInterval(ctx context.Context, s *system, b bounds) (lo, hi []float64, out relaxOutcome, err error) {
	n := len(s.ids)
	lo = make([]float64, n)
	hi = make([]float64, n)
	nextLo := make([]float64, n)
	nextHi := make([]float64, n)
	for i := range lo {
		if s.active[i] {
			lo[i], hi[i] = s.delta[i], s.delta[i]
		}
	}
	out.moving = make([]bool, n)
	gamma := b.damping

	for iter := 1; iter <= b.maxIter; iter++ {
		if iter%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, out, err
			}
			if time.Now().After(b.deadline) {
				out.timedOut = true
				return lo, hi, out, nil
			}
		}

		maxDiff := 0.0
		for t := 0; t < n; t++ {
			if !s.active[t] {
				continue
			}
			sumLo, sumHi := 0.0, 0.0
			for _, tm := range s.in[t] {
				if !s.active[tm.src] {
					continue
				}
				pl, ph := intervalMul(tm.lo, tm.hi, lo[tm.src], hi[tm.src])
				sumLo += pl
				sumHi += ph
			}
			nextLo[t] = (1-gamma)*lo[t] + gamma*(s.delta[t]+sumLo)
			nextHi[t] = (1-gamma)*hi[t] + gamma*(s.delta[t]+sumHi)
			diff := max(math.Abs(nextLo[t]-lo[t]), math.Abs(nextHi[t]-hi[t]))
			out.moving[t] = diff >= b.epsilon || math.IsNaN(diff)
			maxDiff = max(maxDiff, diff)
		}
		lo, nextLo = nextLo, lo
		hi, nextHi = nextHi, hi
		out.iterations = iter
		if maxDiff < b.epsilon {
			out.converged = true
			return lo, hi, out, nil
		}
	}
	return lo, hi, out, nil
}

// intervalMul multiplies [a1,a2]·[b1,b2].
func intervalMul(a1, a2, b1, b2 float64) (float64, float64) {
	p1, p2, p3, p4 := a1*b1, a1*b2, a2*b1, a2*b2
	return min(p1, p2, p3, p4), max(p1, p2, p3, p4)
}
